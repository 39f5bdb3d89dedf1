package pipeline

import (
	"context"

	"github.com/couchcryptid/spotlane/internal/domain"
)

// SubmitFunc hands a parsed spot to the dispatcher. It is bound once when a
// source is constructed and is safe to call from any goroutine.
type SubmitFunc func(spot domain.Spot)

// Source produces spots asynchronously.
//
// Start and Stop are idempotent and may be called from any goroutine. Stop
// blocks until the source's workers have exited; no submit happens after it
// returns.
type Source interface {
	Start(ctx context.Context) error
	Stop()
}

// Liveness is implemented by sources whose worker can end on its own, such
// as a poller that gives up after a failed fetch.
type Liveness interface {
	Running() bool
}

// Factory builds a Source bound to submit.
type Factory func(submit SubmitFunc) Source

// Publisher forwards accepted spots downstream.
type Publisher interface {
	Publish(ctx context.Context, spot domain.Spot) error
}
