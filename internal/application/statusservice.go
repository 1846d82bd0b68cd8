package application

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/checkpilot/internal/domain/model"
	"github.com/ericfisherdev/checkpilot/internal/domain/port/driven"
)

// StatusService assembles the full pipeline status snapshot for one PR.
// Nothing is persisted between calls except the optional terminal-state
// cache, so two back-to-back requests with unchanged upstream state produce
// identical documents (modulo the generation timestamp).
type StatusService struct {
	gh              driven.GitHubClient
	deploy          *DeployService
	bots            *BotDirectory
	stateCache      driven.StateCacheStore // Optional; nil disables flap damping.
	upstreamTimeout time.Duration
	now             func() time.Time
}

// NewStatusService creates a StatusService. stateCache may be nil.
func NewStatusService(
	gh driven.GitHubClient,
	deploy *DeployService,
	bots *BotDirectory,
	stateCache driven.StateCacheStore,
	upstreamTimeout time.Duration,
) *StatusService {
	return &StatusService{
		gh:              gh,
		deploy:          deploy,
		bots:            bots,
		stateCache:      stateCache,
		upstreamTimeout: upstreamTimeout,
		now:             time.Now,
	}
}

// GetPipelineStatus fetches the PR snapshot, fans out to the independent
// signal reads, and synthesizes the combined status. Any fan-out failure
// aborts the whole request; polling clients retry on their own schedule.
func (s *StatusService) GetPipelineStatus(ctx context.Context, prNumber int) (*model.PipelineStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, s.upstreamTimeout)
	defer cancel()

	pr, err := s.gh.FetchPullRequest(ctx, prNumber)
	if err != nil {
		return nil, err
	}

	var (
		runs     []model.CheckRun
		comments []model.IssueComment
		meta     model.GenerationMetadata
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		runs, err = s.gh.FetchCheckRuns(gctx, pr.HeadSHA)
		return err
	})
	g.Go(func() error {
		var err error
		comments, err = s.gh.FetchIssueComments(gctx, prNumber)
		return err
	})
	g.Go(func() error {
		var err error
		meta, err = s.gh.FetchGenerationMetadata(gctx, pr.HeadBranch)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	checks := AggregateCheckRuns(runs)
	overall := OverallCheckStatus(checks, pr.IsOpen())
	_, lastBot := ClassifyComments(comments, s.bots)

	preview, err := s.deploy.Resolve(ctx, checks, comments, pr.HeadBranch)
	if err != nil {
		return nil, err
	}

	actions := SynthesizeActions(*pr, checks, overall, meta, lastBot)
	s.reconcileTerminalState(ctx, pr.HeadSHA, &actions)

	return &model.PipelineStatus{
		PR:                 *pr,
		Checks:             checks,
		OverallCheckStatus: overall,
		Preview:            preview,
		Metadata:           meta,
		Actions:            actions,
		GeneratedAt:        s.now().UTC(),
	}, nil
}

// SynthesizeActions is the state machine: it combines the aggregated check
// verdict, generation metadata, and the latest classified bot comment into
// the pipeline stage, the next expected actor, and the polling decision.
// Transitions are evaluated in precedence order against the current snapshot;
// a closed PR overrides everything.
func SynthesizeActions(
	pr model.PullRequest,
	checks []model.CheckRun,
	overall model.OverallCheckStatus,
	meta model.GenerationMetadata,
	lastBot *model.ClassifiedComment,
) model.AutomatedActions {
	act := model.AutomatedActions{LastBotComment: lastBot}

	var verification []model.CheckRun
	for _, check := range checks {
		if IsVerificationCheck(check.Name) {
			verification = append(verification, check)
		}
	}

	switch {
	case anyRunning(verification):
		act.State = model.StateVPRRunning
		act.ActiveWorkflow = model.WorkflowVPR
		act.Summary = "Verification workflow is running."
		act.ShouldContinuePolling = true

	case anyFailed(verification):
		act.VerificationConclusion = "failure"
		act.ActiveWorkflow = model.WorkflowVPR
		synthesizeFailureHandoff(&act, meta, lastBot)

	case len(verification) > 0 && allSucceeded(verification):
		act.State = model.StateVPRSucceeded
		act.VerificationConclusion = "success"
		act.NextAction = model.NextActionNone
		act.Summary = "Verification succeeded. No further automated action expected."

	default:
		act.State = model.StateChecksPending
		act.Summary = "Waiting for checks to report."
		// Zero checks on a closed PR is unresolvable; anything else may
		// still converge, so clients keep polling.
		act.ShouldContinuePolling = overall != model.CheckStatusError
		if overall == model.CheckStatusFailure {
			act.Summary = "Checks are failing outside the verification workflow."
		}
	}

	if pr.State == model.PRStateClosed {
		prefix := "Closed without merge."
		if pr.IsMerged {
			prefix = "Merged."
		}
		act.State = model.StateClosed
		act.Summary = prefix + " " + act.Summary
		act.ActiveWorkflow = ""
		act.NextAction = model.NextActionNone
		act.ShouldContinuePolling = false
	}

	return act
}

// synthesizeFailureHandoff resolves which automated actor (if any) is
// expected to pick up a verification failure. Handoffs require both the
// matching bot comment signal and metadata showing the fix has not already
// been attempted; otherwise the failure needs a human.
func synthesizeFailureHandoff(act *model.AutomatedActions, meta model.GenerationMetadata, lastBot *model.ClassifiedComment) {
	intent := model.IntentUnknown
	if lastBot != nil {
		intent = lastBot.Intent
	}

	switch {
	case meta.DependenciesFulfilled == model.TriStateAbsent && intent == model.IntentDependencyHandoff:
		act.State = model.StateAwaitingDependencyFix
		act.NextAction = model.NextActionDependencyManager
		act.Summary = "Verification failed. Dependency manager is resolving missing dependencies."
		act.ShouldContinuePolling = true

	case meta.LintFixesAttempted != model.TriStateTrue && intent == model.IntentLintHandoff:
		act.State = model.StateAwaitingLintFix
		act.NextAction = model.NextActionLintFixer
		act.Summary = "Verification failed. Lint fixer is applying automated fixes."
		act.ShouldContinuePolling = true

	default:
		// Covers dependencies already attempted and still broken, lint
		// fixes exhausted, and failures with no recognized handoff signal.
		act.State = model.StateNeedsManualReview
		act.NextAction = model.NextActionManualReview
		act.Summary = "Verification failed. Manual review required."
	}
}

// reconcileTerminalState damps non-monotonic flapping: once a terminal state
// has been recorded for a head SHA, later transient snapshots for the same
// SHA report the cached terminal state instead. Cache errors are logged and
// ignored; the cache is never allowed to fail a request.
func (s *StatusService) reconcileTerminalState(ctx context.Context, headSHA string, act *model.AutomatedActions) {
	if s.stateCache == nil || act.State == model.StateClosed {
		return
	}

	if act.State.TerminalForHead() {
		err := s.stateCache.Put(ctx, model.CachedState{
			HeadSHA:    headSHA,
			State:      act.State,
			Summary:    act.Summary,
			RecordedAt: s.now().UTC(),
		})
		if err != nil {
			slog.Warn("recording terminal state failed", "head_sha", headSHA, "error", err)
		}
		return
	}

	cached, err := s.stateCache.Get(ctx, headSHA)
	if err != nil {
		slog.Warn("reading terminal state cache failed", "head_sha", headSHA, "error", err)
		return
	}
	if cached == nil {
		return
	}

	slog.Debug("terminal state cache hit", "head_sha", headSHA, "state", cached.State)

	act.State = cached.State
	act.Summary = cached.Summary
	act.StateCached = true
	act.ShouldContinuePolling = false
	act.ActiveWorkflow = ""
	if cached.State == model.StateVPRSucceeded {
		act.VerificationConclusion = "success"
		act.NextAction = model.NextActionNone
	} else {
		act.VerificationConclusion = "failure"
		act.NextAction = model.NextActionManualReview
	}
}

func anyRunning(runs []model.CheckRun) bool {
	for _, run := range runs {
		if run.Status == "queued" || run.Status == "in_progress" {
			return true
		}
	}
	return false
}

func anyFailed(runs []model.CheckRun) bool {
	for _, run := range runs {
		if run.FailedConclusion() {
			return true
		}
	}
	return false
}

func allSucceeded(runs []model.CheckRun) bool {
	for _, run := range runs {
		if !run.Completed() || run.Conclusion != "success" {
			return false
		}
	}
	return true
}
