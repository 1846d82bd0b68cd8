package model

import "time"

// BotRole identifies which automation account in the handoff chain authored
// a comment. Roles are resolved from configured usernames, case-insensitively.
type BotRole string

const (
	BotRoleVerifier          BotRole = "verifier"
	BotRoleDependencyManager BotRole = "dependency_manager"
	BotRoleLintFixer         BotRole = "lint_fixer"
	BotRolePRCreator         BotRole = "pr_creator"
)

// IssueComment is a raw PR-level comment from the Issues API.
type IssueComment struct {
	ID        int64
	Author    string
	Body      string
	URL       string
	CreatedAt time.Time
}

// CommentIntent is the classified purpose of a recognized bot comment.
type CommentIntent string

const (
	IntentDependencyHandoff     CommentIntent = "dependency_handoff"
	IntentLintHandoff           CommentIntent = "lint_handoff"
	IntentVerificationSucceeded CommentIntent = "verification_succeeded"
	IntentVerificationFailed    CommentIntent = "verification_failed"
	IntentPRCreated             CommentIntent = "pr_created"
	IntentUnknown               CommentIntent = "unknown"
)

// ClassifiedComment is a bot-authored comment with its derived intent.
// Body is truncated for transport; the full text is never needed downstream.
type ClassifiedComment struct {
	Role      BotRole
	Author    string
	Intent    CommentIntent
	Summary   string
	Body      string
	URL       string
	CreatedAt time.Time
}
