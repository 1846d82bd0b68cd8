package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/checkpilot/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// PipelineStatusResponse is the JSON representation of a synthesized
// pipeline status document.
type PipelineStatusResponse struct {
	PRNumber               int                        `json:"pr_number"`
	PRURL                  string                     `json:"pr_url"`
	Title                  string                     `json:"title"`
	Author                 string                     `json:"author"`
	HeadSHA                string                     `json:"head_sha"`
	HeadBranch             string                     `json:"head_branch"`
	PRState                string                     `json:"pr_state"`
	IsMerged               bool                       `json:"is_merged"`
	Checks                 []CheckRunResponse         `json:"checks"`
	OverallCheckStatus     string                     `json:"overall_check_status"`
	PreviewURL             string                     `json:"preview_url,omitempty"`
	PreviewScreenshotURL   string                     `json:"preview_screenshot_url,omitempty"`
	PreviewDeploySucceeded bool                       `json:"preview_deploy_succeeded"`
	GenerationMetadata     GenerationMetadataResponse `json:"generation_metadata"`
	AutomatedActions       AutomatedActionsResponse   `json:"automated_actions"`
	LastUpdated            string                     `json:"last_updated"`
}

// CheckRunResponse is the JSON representation of one retained check run.
type CheckRunResponse struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Conclusion  string `json:"conclusion,omitempty"`
	DetailsURL  string `json:"details_url,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// GenerationMetadataResponse carries the per-artifact metadata flags.
type GenerationMetadataResponse struct {
	DependenciesFulfilled string `json:"dependencies_fulfilled"`
	LintFixesAttempted    string `json:"lint_fixes_attempted"`
}

// AutomatedActionsResponse summarizes the bot handoff chain's position.
// ActiveWorkflow, NextExpectedAction, and VerificationConclusionForHead are
// nullable in the wire contract.
type AutomatedActionsResponse struct {
	StatusSummary                 string              `json:"status_summary"`
	PipelineState                 string              `json:"pipeline_state"`
	ActiveWorkflow                *string             `json:"active_workflow"`
	NextExpectedAction            *string             `json:"next_expected_action"`
	ShouldContinuePolling         bool                `json:"should_continue_polling"`
	LastBotComment                *BotCommentResponse `json:"last_bot_comment,omitempty"`
	VerificationConclusionForHead *string             `json:"verification_conclusion_for_head"`
	StateCached                   bool                `json:"state_cached,omitempty"`
}

// BotCommentResponse is the latest classified bot comment.
type BotCommentResponse struct {
	Author    string `json:"author"`
	BotRole   string `json:"bot_role"`
	Intent    string `json:"intent"`
	Summary   string `json:"summary"`
	Body      string `json:"body"`
	BodyHTML  string `json:"body_html"`
	URL       string `json:"url,omitempty"`
	CreatedAt string `json:"created_at"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toPipelineStatusResponse converts a domain PipelineStatus to its JSON
// representation.
func toPipelineStatusResponse(status *model.PipelineStatus) PipelineStatusResponse {
	checks := make([]CheckRunResponse, 0, len(status.Checks))
	for _, check := range status.Checks {
		checks = append(checks, toCheckRunResponse(check))
	}

	return PipelineStatusResponse{
		PRNumber:               status.PR.Number,
		PRURL:                  status.PR.URL,
		Title:                  status.PR.Title,
		Author:                 status.PR.Author,
		HeadSHA:                status.PR.HeadSHA,
		HeadBranch:             status.PR.HeadBranch,
		PRState:                string(status.PR.State),
		IsMerged:               status.PR.IsMerged,
		Checks:                 checks,
		OverallCheckStatus:     string(status.OverallCheckStatus),
		PreviewURL:             status.Preview.URL,
		PreviewScreenshotURL:   status.Preview.ScreenshotURL,
		PreviewDeploySucceeded: status.Preview.Succeeded,
		GenerationMetadata: GenerationMetadataResponse{
			DependenciesFulfilled: string(status.Metadata.DependenciesFulfilled),
			LintFixesAttempted:    string(status.Metadata.LintFixesAttempted),
		},
		AutomatedActions: toAutomatedActionsResponse(status.Actions),
		LastUpdated:      status.GeneratedAt.UTC().Format(time.RFC3339),
	}
}

// toCheckRunResponse converts a domain CheckRun to its JSON representation.
func toCheckRunResponse(check model.CheckRun) CheckRunResponse {
	resp := CheckRunResponse{
		Name:       check.Name,
		Status:     check.Status,
		Conclusion: check.Conclusion,
		DetailsURL: check.DetailsURL,
	}
	if !check.StartedAt.IsZero() {
		resp.StartedAt = check.StartedAt.UTC().Format(time.RFC3339)
	}
	if !check.CompletedAt.IsZero() {
		resp.CompletedAt = check.CompletedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// toAutomatedActionsResponse converts the synthesized actions, mapping empty
// workflow/action/conclusion values to JSON null.
func toAutomatedActionsResponse(actions model.AutomatedActions) AutomatedActionsResponse {
	resp := AutomatedActionsResponse{
		StatusSummary:                 actions.Summary,
		PipelineState:                 string(actions.State),
		ActiveWorkflow:                nullableString(actions.ActiveWorkflow),
		NextExpectedAction:            nullableString(string(actions.NextAction)),
		ShouldContinuePolling:         actions.ShouldContinuePolling,
		VerificationConclusionForHead: nullableString(actions.VerificationConclusion),
		StateCached:                   actions.StateCached,
	}

	if actions.LastBotComment != nil {
		resp.LastBotComment = &BotCommentResponse{
			Author:    actions.LastBotComment.Author,
			BotRole:   string(actions.LastBotComment.Role),
			Intent:    string(actions.LastBotComment.Intent),
			Summary:   actions.LastBotComment.Summary,
			Body:      actions.LastBotComment.Body,
			BodyHTML:  RenderMarkdown(actions.LastBotComment.Body),
			URL:       actions.LastBotComment.URL,
			CreatedAt: actions.LastBotComment.CreatedAt.UTC().Format(time.RFC3339),
		}
	}

	return resp
}

// nullableString maps "" to nil so the field serializes as JSON null.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
