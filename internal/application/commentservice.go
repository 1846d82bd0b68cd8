package application

import (
	"sort"
	"strings"

	"github.com/ericfisherdev/checkpilot/internal/config"
	"github.com/ericfisherdev/checkpilot/internal/domain/model"
)

// maxCommentBodyRunes bounds the comment body carried in the status document.
const maxCommentBodyRunes = 280

// BotDirectory resolves comment author logins to their pipeline roles.
// Matching is case-insensitive and tolerates the "[bot]" suffix GitHub
// appends to app-owned accounts.
type BotDirectory struct {
	entries map[string]model.BotRole
}

// NewBotDirectory builds a directory from the configured bot identities.
// Empty usernames are skipped.
func NewBotDirectory(bots config.BotIdentities) *BotDirectory {
	d := &BotDirectory{entries: make(map[string]model.BotRole, 4)}
	d.add(bots.Verifier, model.BotRoleVerifier)
	d.add(bots.DependencyManager, model.BotRoleDependencyManager)
	d.add(bots.LintFixer, model.BotRoleLintFixer)
	d.add(bots.PRCreator, model.BotRolePRCreator)
	return d
}

func (d *BotDirectory) add(login string, role model.BotRole) {
	if login == "" {
		return
	}
	d.entries[normalizeLogin(login)] = role
}

// Lookup returns the role for a login, if it belongs to a known bot.
func (d *BotDirectory) Lookup(login string) (model.BotRole, bool) {
	role, ok := d.entries[normalizeLogin(login)]
	return role, ok
}

func normalizeLogin(login string) string {
	return strings.TrimSuffix(strings.ToLower(login), "[bot]")
}

// intentRule pairs a body predicate with the intent and summary it yields.
// Rules are evaluated in order; the first match wins.
type intentRule struct {
	intent  model.CommentIntent
	summary string
	match   func(body string) bool
}

// intentRules is the ordered classification table. Predicates receive the
// lowercased comment body. Handoff signals come first: they are the ones the
// state machine acts on.
var intentRules = []intentRule{
	{
		intent:  model.IntentDependencyHandoff,
		summary: "handoff to dependency manager",
		match:   containsAny("dependency manager", "missing dependencies", "resolving dependencies"),
	},
	{
		intent:  model.IntentLintHandoff,
		summary: "handoff to lint fixer",
		match:   containsAny("lint fixer", "lint errors detected", "attempting lint fixes"),
	},
	{
		intent:  model.IntentVerificationFailed,
		summary: "verification failed, manual review required",
		match:   containsAny("vpr failed", "verification failed", "manual review required"),
	},
	{
		intent:  model.IntentVerificationSucceeded,
		summary: "verification succeeded",
		match:   containsAny("vpr succeeded", "verification passed", "all checks passed"),
	},
	{
		intent:  model.IntentPRCreated,
		summary: "pull request created by tooling",
		match:   containsAny("created this pull request", "generated artifact submitted"),
	},
}

func containsAny(substrings ...string) func(string) bool {
	return func(body string) bool {
		for _, s := range substrings {
			if strings.Contains(body, s) {
				return true
			}
		}
		return false
	}
}

// ClassifyComments filters the comments down to those authored by known bots,
// derives each one's intent, and returns them newest first along with the
// single most recent classified comment (nil when no bot has commented).
// Unmatched authors are skipped without error.
func ClassifyComments(comments []model.IssueComment, bots *BotDirectory) ([]model.ClassifiedComment, *model.ClassifiedComment) {
	classified := make([]model.ClassifiedComment, 0, len(comments))
	for _, comment := range comments {
		role, ok := bots.Lookup(comment.Author)
		if !ok {
			continue
		}
		classified = append(classified, classifyOne(comment, role))
	}

	// Upstream returns newest first; re-sort defensively since the contract
	// depends on it.
	sort.SliceStable(classified, func(i, j int) bool {
		return classified[i].CreatedAt.After(classified[j].CreatedAt)
	})

	if len(classified) == 0 {
		return classified, nil
	}

	latest := classified[0]
	return classified, &latest
}

// classifyOne evaluates the intent rule table against one bot comment.
func classifyOne(comment model.IssueComment, role model.BotRole) model.ClassifiedComment {
	intent := model.IntentUnknown
	summary := "automated pipeline comment"

	body := strings.ToLower(comment.Body)
	for _, rule := range intentRules {
		if rule.match(body) {
			intent = rule.intent
			summary = rule.summary
			break
		}
	}

	return model.ClassifiedComment{
		Role:      role,
		Author:    comment.Author,
		Intent:    intent,
		Summary:   summary,
		Body:      truncateRunes(comment.Body, maxCommentBodyRunes),
		URL:       comment.URL,
		CreatedAt: comment.CreatedAt,
	}
}

// truncateRunes shortens s to at most n runes, appending an ellipsis when
// anything was cut.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
