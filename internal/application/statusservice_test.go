package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/checkpilot/internal/domain/model"
	"github.com/ericfisherdev/checkpilot/internal/domain/port/driven"
)

// mockStateCache implements driven.StateCacheStore for synthesizer tests.
type mockStateCache struct {
	states map[string]*model.CachedState
	getErr error
	putErr error
}

func newMockStateCache() *mockStateCache {
	return &mockStateCache{states: make(map[string]*model.CachedState)}
}

func (m *mockStateCache) Get(_ context.Context, headSHA string) (*model.CachedState, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.states[headSHA], nil
}

func (m *mockStateCache) Put(_ context.Context, state model.CachedState) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.states[state.HeadSHA] = &state
	return nil
}

func openPR() model.PullRequest {
	return model.PullRequest{
		Number:     42,
		State:      model.PRStateOpen,
		URL:        "https://github.com/ericfisherdev/checkpilot/pull/42",
		HeadSHA:    "abc123",
		HeadBranch: "feature/gen-widget",
	}
}

func handoffComment(intent model.CommentIntent, summary string) *model.ClassifiedComment {
	return &model.ClassifiedComment{
		Role:      model.BotRoleVerifier,
		Author:    "vpr-bot",
		Intent:    intent,
		Summary:   summary,
		CreatedAt: baseTime,
	}
}

func metadataWith(deps, lint model.TriState) model.GenerationMetadata {
	return model.GenerationMetadata{DependenciesFulfilled: deps, LintFixesAttempted: lint}
}

// --- SynthesizeActions state machine coverage ---

func TestSynthesizeActions_VPRRunning(t *testing.T) {
	checks := []model.CheckRun{
		{Name: "validate-artifact", Status: "in_progress", StartedAt: baseTime},
	}

	act := SynthesizeActions(openPR(), checks, model.CheckStatusPending, model.MetadataUnavailable(), nil)

	assert.Equal(t, model.StateVPRRunning, act.State)
	assert.Equal(t, model.WorkflowVPR, act.ActiveWorkflow)
	assert.True(t, act.ShouldContinuePolling)
	assert.Empty(t, act.VerificationConclusion)
}

func TestSynthesizeActions_AwaitingDependencyFix(t *testing.T) {
	checks := []model.CheckRun{
		{Name: "validate-artifact", Status: "completed", Conclusion: "failure", StartedAt: baseTime},
	}
	meta := metadataWith(model.TriStateAbsent, model.TriStateFalse)
	lastBot := handoffComment(model.IntentDependencyHandoff, "handoff to dependency manager")

	act := SynthesizeActions(openPR(), checks, model.CheckStatusFailure, meta, lastBot)

	assert.Equal(t, model.StateAwaitingDependencyFix, act.State)
	assert.Equal(t, model.NextActionDependencyManager, act.NextAction)
	assert.Equal(t, "failure", act.VerificationConclusion)
	assert.True(t, act.ShouldContinuePolling)
}

func TestSynthesizeActions_AwaitingLintFix(t *testing.T) {
	checks := []model.CheckRun{
		{Name: "validate-artifact", Status: "completed", Conclusion: "failure", StartedAt: baseTime},
	}
	meta := metadataWith(model.TriStateTrue, model.TriStateFalse)
	lastBot := handoffComment(model.IntentLintHandoff, "handoff to lint fixer")

	act := SynthesizeActions(openPR(), checks, model.CheckStatusFailure, meta, lastBot)

	assert.Equal(t, model.StateAwaitingLintFix, act.State)
	assert.Equal(t, model.NextActionLintFixer, act.NextAction)
	assert.True(t, act.ShouldContinuePolling)
}

func TestSynthesizeActions_ManualReviewWhenFixesExhausted(t *testing.T) {
	checks := []model.CheckRun{
		{Name: "validate-artifact", Status: "completed", Conclusion: "failure", StartedAt: baseTime},
	}

	tests := []struct {
		name    string
		meta    model.GenerationMetadata
		lastBot *model.ClassifiedComment
	}{
		{
			name:    "dependencies attempted and still broken",
			meta:    metadataWith(model.TriStateFalse, model.TriStateFalse),
			lastBot: handoffComment(model.IntentDependencyHandoff, "handoff to dependency manager"),
		},
		{
			name:    "lint fixes already attempted",
			meta:    metadataWith(model.TriStateTrue, model.TriStateTrue),
			lastBot: handoffComment(model.IntentLintHandoff, "handoff to lint fixer"),
		},
		{
			name:    "failure with no recognized handoff signal",
			meta:    model.MetadataUnavailable(),
			lastBot: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act := SynthesizeActions(openPR(), checks, model.CheckStatusFailure, tt.meta, tt.lastBot)

			assert.Equal(t, model.StateNeedsManualReview, act.State)
			assert.Equal(t, model.NextActionManualReview, act.NextAction)
			assert.False(t, act.ShouldContinuePolling)
		})
	}
}

func TestSynthesizeActions_VPRSucceeded(t *testing.T) {
	checks := []model.CheckRun{
		{Name: "validate-artifact", Status: "completed", Conclusion: "success", StartedAt: baseTime},
	}

	act := SynthesizeActions(openPR(), checks, model.CheckStatusSuccess, model.MetadataUnavailable(), nil)

	assert.Equal(t, model.StateVPRSucceeded, act.State)
	assert.Equal(t, "success", act.VerificationConclusion)
	assert.Equal(t, model.NextActionNone, act.NextAction)
	assert.False(t, act.ShouldContinuePolling)
	assert.Empty(t, act.ActiveWorkflow)
}

func TestSynthesizeActions_ChecksPending(t *testing.T) {
	checks := []model.CheckRun{
		{Name: "build", Status: "in_progress", StartedAt: baseTime},
	}

	act := SynthesizeActions(openPR(), checks, model.CheckStatusPending, model.MetadataUnavailable(), nil)

	assert.Equal(t, model.StateChecksPending, act.State)
	assert.True(t, act.ShouldContinuePolling)
}

func TestSynthesizeActions_ChecksPendingErrorStopsPolling(t *testing.T) {
	pr := openPR()
	pr.State = model.PRStateClosed

	act := SynthesizeActions(pr, nil, model.CheckStatusError, model.MetadataUnavailable(), nil)

	// Closed override applies, but the error verdict alone also stops polling.
	assert.False(t, act.ShouldContinuePolling)
}

func TestSynthesizeActions_ClosedOverridesEverything(t *testing.T) {
	pr := openPR()
	pr.State = model.PRStateClosed
	pr.IsMerged = true

	checks := []model.CheckRun{
		{Name: "validate-artifact", Status: "in_progress", StartedAt: baseTime},
	}

	act := SynthesizeActions(pr, checks, model.CheckStatusPending, model.MetadataUnavailable(), nil)

	assert.Equal(t, model.StateClosed, act.State)
	assert.True(t, len(act.Summary) > 0 && act.Summary[:7] == "Merged.", "summary is prefixed with the merge outcome")
	assert.Equal(t, model.NextActionNone, act.NextAction)
	assert.Empty(t, act.ActiveWorkflow)
	assert.False(t, act.ShouldContinuePolling)
}

func TestSynthesizeActions_ClosedWithoutMerge(t *testing.T) {
	pr := openPR()
	pr.State = model.PRStateClosed

	act := SynthesizeActions(pr, nil, model.CheckStatusError, model.MetadataUnavailable(), nil)

	assert.Equal(t, model.StateClosed, act.State)
	assert.Contains(t, act.Summary, "Closed without merge.")
}

// --- GetPipelineStatus end-to-end scenarios ---

func newTestStatusService(gh *mockGitHubClient, cache *mockStateCache) *StatusService {
	deploy := NewDeployService(gh, "netlify")
	var store driven.StateCacheStore
	if cache != nil {
		store = cache
	}
	svc := NewStatusService(gh, deploy, testBots(), store, time.Second)
	svc.now = func() time.Time { return baseTime }
	return svc
}

func TestGetPipelineStatus_VerificationInProgress(t *testing.T) {
	pr := openPR()
	gh := &mockGitHubClient{
		pr: &pr,
		checkRuns: []model.CheckRun{
			{ID: 1, Name: "validate-artifact", Status: "in_progress", StartedAt: baseTime},
		},
		metadata: model.MetadataUnavailable(),
	}

	status, err := newTestStatusService(gh, nil).GetPipelineStatus(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, model.CheckStatusPending, status.OverallCheckStatus)
	assert.Equal(t, model.WorkflowVPR, status.Actions.ActiveWorkflow)
	assert.True(t, status.Actions.ShouldContinuePolling)
}

func TestGetPipelineStatus_DependencyHandoffScenario(t *testing.T) {
	pr := openPR()
	gh := &mockGitHubClient{
		pr: &pr,
		checkRuns: []model.CheckRun{
			{ID: 1, Name: "validate-artifact", Status: "completed", Conclusion: "failure", StartedAt: baseTime, CompletedAt: baseTime.Add(time.Minute)},
		},
		comments: []model.IssueComment{
			{ID: 1, Author: "vpr-bot", Body: "VPR Failed: missing dependencies. Handing off to the dependency manager.", CreatedAt: baseTime},
		},
		metadata: metadataWith(model.TriStateAbsent, model.TriStateFalse),
	}

	status, err := newTestStatusService(gh, nil).GetPipelineStatus(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, model.NextActionDependencyManager, status.Actions.NextAction)
	assert.True(t, status.Actions.ShouldContinuePolling)
	require.NotNil(t, status.Actions.LastBotComment)
	assert.Equal(t, model.IntentDependencyHandoff, status.Actions.LastBotComment.Intent)
}

func TestGetPipelineStatus_MergedPR(t *testing.T) {
	pr := openPR()
	pr.State = model.PRStateClosed
	pr.IsMerged = true
	gh := &mockGitHubClient{pr: &pr, metadata: model.MetadataUnavailable()}

	status, err := newTestStatusService(gh, nil).GetPipelineStatus(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, model.PRStateClosed, status.PR.State)
	assert.True(t, status.PR.IsMerged)
	assert.False(t, status.Actions.ShouldContinuePolling)
	assert.Contains(t, status.Actions.Summary, "Merged.")
}

func TestGetPipelineStatus_Idempotent(t *testing.T) {
	pr := openPR()
	gh := &mockGitHubClient{
		pr: &pr,
		checkRuns: []model.CheckRun{
			{ID: 1, Name: "validate-artifact", Status: "completed", Conclusion: "success", StartedAt: baseTime, CompletedAt: baseTime.Add(time.Minute)},
		},
		metadata: model.MetadataUnavailable(),
	}
	svc := newTestStatusService(gh, nil)

	first, err := svc.GetPipelineStatus(context.Background(), 42)
	require.NoError(t, err)
	second, err := svc.GetPipelineStatus(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGetPipelineStatus_FanOutFailureAbortsRequest(t *testing.T) {
	pr := openPR()
	gh := &mockGitHubClient{
		pr:          &pr,
		commentsErr: errors.New("upstream unavailable"),
		metadata:    model.MetadataUnavailable(),
	}

	_, err := newTestStatusService(gh, nil).GetPipelineStatus(context.Background(), 42)

	assert.Error(t, err)
}

func TestGetPipelineStatus_PRFetchErrorPropagates(t *testing.T) {
	gh := &mockGitHubClient{prErr: model.ErrNotFound}

	_, err := newTestStatusService(gh, nil).GetPipelineStatus(context.Background(), 42)

	assert.ErrorIs(t, err, model.ErrNotFound)
}

// --- terminal-state cache behavior ---

func TestReconcileTerminalState_RecordsTerminalStates(t *testing.T) {
	pr := openPR()
	cache := newMockStateCache()
	gh := &mockGitHubClient{
		pr: &pr,
		checkRuns: []model.CheckRun{
			{ID: 1, Name: "validate-artifact", Status: "completed", Conclusion: "success", StartedAt: baseTime, CompletedAt: baseTime.Add(time.Minute)},
		},
		metadata: model.MetadataUnavailable(),
	}

	_, err := newTestStatusService(gh, cache).GetPipelineStatus(context.Background(), 42)

	require.NoError(t, err)
	require.NotNil(t, cache.states["abc123"])
	assert.Equal(t, model.StateVPRSucceeded, cache.states["abc123"].State)
}

func TestReconcileTerminalState_DampsFlapping(t *testing.T) {
	pr := openPR()
	cache := newMockStateCache()
	cache.states["abc123"] = &model.CachedState{
		HeadSHA: "abc123",
		State:   model.StateVPRSucceeded,
		Summary: "Verification succeeded. No further automated action expected.",
	}

	// Upstream flapped back to an in-progress verification run.
	gh := &mockGitHubClient{
		pr: &pr,
		checkRuns: []model.CheckRun{
			{ID: 1, Name: "validate-artifact", Status: "in_progress", StartedAt: baseTime},
		},
		metadata: model.MetadataUnavailable(),
	}

	status, err := newTestStatusService(gh, cache).GetPipelineStatus(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, model.StateVPRSucceeded, status.Actions.State)
	assert.True(t, status.Actions.StateCached)
	assert.False(t, status.Actions.ShouldContinuePolling)
	assert.Equal(t, "success", status.Actions.VerificationConclusion)
}

func TestReconcileTerminalState_CacheErrorsNeverFailRequest(t *testing.T) {
	pr := openPR()
	cache := newMockStateCache()
	cache.getErr = errors.New("disk on fire")
	cache.putErr = errors.New("disk on fire")

	gh := &mockGitHubClient{
		pr: &pr,
		checkRuns: []model.CheckRun{
			{ID: 1, Name: "validate-artifact", Status: "in_progress", StartedAt: baseTime},
		},
		metadata: model.MetadataUnavailable(),
	}

	status, err := newTestStatusService(gh, cache).GetPipelineStatus(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, model.StateVPRRunning, status.Actions.State)
	assert.False(t, status.Actions.StateCached)
}
