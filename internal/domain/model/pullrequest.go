// Package model holds the domain entities for pipeline status synthesis.
// Every entity is a read-only snapshot rebuilt from live GitHub reads on
// each request; nothing here is persisted except the terminal-state cache.
package model

import "time"

// PRState represents the state of a pull request.
type PRState string

const (
	PRStateOpen   PRState = "open"
	PRStateClosed PRState = "closed"
)

// PullRequest is a snapshot of the pull request under synthesis.
type PullRequest struct {
	Number     int
	Title      string
	State      PRState
	IsMerged   bool
	URL        string
	Author     string
	HeadSHA    string
	HeadBranch string
	BaseBranch string
	UpdatedAt  time.Time
}

// IsOpen reports whether the pull request is still open.
func (pr PullRequest) IsOpen() bool {
	return pr.State == PRStateOpen
}
