package geodair

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	runIDKey       contextKey = "runID"
	startedTimeKey contextKey = "startedTime"
)

// StartRun returns a context carrying a new run ID, the start time and a
// logger annotated with the run ID, stage and date.
func StartRun(ctx context.Context, stage Stage, date string) context.Context {
	id := uuid.NewString()

	l := log.Ctx(ctx).With().
		Str("run_id", id).
		Str("stage", string(stage)).
		Str("date", date).
		Logger()

	ctx = l.WithContext(ctx)
	ctx = context.WithValue(ctx, runIDKey, id)
	ctx = context.WithValue(ctx, startedTimeKey, time.Now())

	return ctx
}

// RunIDFrom returns the run ID set by StartRun.
func RunIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok
}

// StartedTimeFrom returns the start time set by StartRun.
func StartedTimeFrom(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(startedTimeKey).(time.Time)
	return t, ok
}
