package driven

import (
	"context"

	"github.com/ericfisherdev/checkpilot/internal/domain/model"
)

// StateCacheStore persists the last terminal pipeline state observed per head
// SHA. The cache is best-effort: callers log and ignore its errors rather
// than failing a status request.
type StateCacheStore interface {
	// Get returns the cached terminal state for a head SHA, or nil when
	// none has been recorded.
	Get(ctx context.Context, headSHA string) (*model.CachedState, error)

	// Put records (or refreshes) the terminal state for a head SHA.
	Put(ctx context.Context, state model.CachedState) error
}
