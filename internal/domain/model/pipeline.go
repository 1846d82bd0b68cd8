package model

import "time"

// PipelineState is the synthesized stage of the automated handoff chain
// (verification -> dependency resolution -> lint fixing -> manual review).
// It is recomputed from scratch on every request; there is no stored
// state machine.
type PipelineState string

const (
	StateVPRRunning            PipelineState = "VPR_RUNNING"
	StateAwaitingDependencyFix PipelineState = "VPR_FAILED_AWAITING_DEPENDENCY_FIX"
	StateAwaitingLintFix       PipelineState = "VPR_FAILED_AWAITING_LINT_FIX"
	StateNeedsManualReview     PipelineState = "VPR_FAILED_NEEDS_MANUAL_REVIEW"
	StateVPRSucceeded          PipelineState = "VPR_SUCCEEDED"
	StateChecksPending         PipelineState = "CHECKS_PENDING"
	StateClosed                PipelineState = "CLOSED"
)

// TerminalForHead reports whether the state is terminal for a given head SHA:
// once reached, no automated actor will change it without a new commit.
// CLOSED is excluded because it is a property of the PR, not the commit.
func (s PipelineState) TerminalForHead() bool {
	return s == StateVPRSucceeded || s == StateNeedsManualReview
}

// WorkflowVPR is the verification workflow tag reported while the automated
// chain is active for the current head commit.
const WorkflowVPR = "VPR"

// NextAction is the next automated actor expected to act on the PR.
type NextAction string

const (
	NextActionDependencyManager NextAction = "ADM"
	NextActionLintFixer         NextAction = "ALF"
	NextActionManualReview      NextAction = "MANUAL_REVIEW"
	NextActionNone              NextAction = "NONE"
)

// AutomatedActions summarizes the pipeline's position in the handoff chain
// and tells polling clients whether another automated transition is expected.
type AutomatedActions struct {
	State                  PipelineState
	Summary                string
	ActiveWorkflow         string     // WorkflowVPR while the chain is active, "" otherwise.
	NextAction             NextAction // "" when no actor determination applies.
	ShouldContinuePolling  bool
	LastBotComment         *ClassifiedComment
	VerificationConclusion string // "success", "failure", or "" when undetermined.
	StateCached            bool   // True when a cached terminal state overrode a transient snapshot.
}

// CachedState is a persisted terminal pipeline state keyed by head SHA,
// used to damp non-monotonic flapping under racing upstream updates.
type CachedState struct {
	HeadSHA    string
	State      PipelineState
	Summary    string
	RecordedAt time.Time
}

// PipelineStatus is the full synthesized status document for one PR.
type PipelineStatus struct {
	PR                 PullRequest
	Checks             []CheckRun
	OverallCheckStatus OverallCheckStatus
	Preview            PreviewDeployment
	Metadata           GenerationMetadata
	Actions            AutomatedActions
	GeneratedAt        time.Time
}
