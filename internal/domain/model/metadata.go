package model

// TriState represents a metadata flag that may be explicitly set, omitted
// from the file, or unavailable because the file itself does not exist.
type TriState string

const (
	TriStateTrue     TriState = "true"
	TriStateFalse    TriState = "false"
	TriStateAbsent   TriState = "absent"    // File exists but the key is missing.
	TriStateNotFound TriState = "not_found" // Branch or metadata file does not exist.
)

// GenerationMetadata mirrors the per-artifact metadata file committed to the
// PR's head branch by the generation tooling. A missing branch or file is a
// normal condition, not an error.
type GenerationMetadata struct {
	DependenciesFulfilled TriState
	LintFixesAttempted    TriState
}

// MetadataUnavailable returns the GenerationMetadata used when the head
// branch or metadata file does not exist.
func MetadataUnavailable() GenerationMetadata {
	return GenerationMetadata{
		DependenciesFulfilled: TriStateNotFound,
		LintFixesAttempted:    TriStateNotFound,
	}
}
