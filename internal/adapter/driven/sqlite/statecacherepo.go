package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/checkpilot/internal/domain/model"
	"github.com/ericfisherdev/checkpilot/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.StateCacheStore = (*StateCacheRepo)(nil)

// StateCacheRepo is the SQLite implementation of the StateCacheStore port.
type StateCacheRepo struct {
	db *DB
}

// NewStateCacheRepo creates a new StateCacheRepo backed by the given DB.
func NewStateCacheRepo(db *DB) *StateCacheRepo {
	return &StateCacheRepo{db: db}
}

// Get returns the cached terminal state for a head SHA, or nil when none
// has been recorded.
func (r *StateCacheRepo) Get(ctx context.Context, headSHA string) (*model.CachedState, error) {
	const query = `
		SELECT head_sha, state, summary, recorded_at
		FROM pipeline_state_cache
		WHERE head_sha = ?
	`

	var cached model.CachedState
	var state, recordedAt string

	err := r.db.Reader.QueryRowContext(ctx, query, headSHA).Scan(
		&cached.HeadSHA, &state, &cached.Summary, &recordedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query state cache for %s: %w", headSHA, err)
	}

	cached.State = model.PipelineState(state)
	cached.RecordedAt, err = time.Parse(time.RFC3339, recordedAt)
	if err != nil {
		return nil, fmt.Errorf("parse recorded_at for %s: %w", headSHA, err)
	}

	return &cached, nil
}

// Put records (or refreshes) the terminal state for a head SHA.
func (r *StateCacheRepo) Put(ctx context.Context, state model.CachedState) error {
	const query = `
		INSERT INTO pipeline_state_cache (head_sha, state, summary, recorded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(head_sha) DO UPDATE SET
			state = excluded.state,
			summary = excluded.summary,
			recorded_at = excluded.recorded_at
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		state.HeadSHA, string(state.State), state.Summary,
		state.RecordedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert state cache for %s: %w", state.HeadSHA, err)
	}

	return nil
}
