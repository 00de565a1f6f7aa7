package services

import "context"

// ctxKey scopes request-scoped values set by this package.
type ctxKey int

const (
	jobIDKey ctxKey = iota
	stageKey
	fingerprintKey
	requestIDKey
)

// withValue leaves ctx untouched for empty values so lookups never report an
// empty string as present.
func withValue(ctx context.Context, key ctxKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueOf(ctx context.Context, key ctxKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithJobID tags ctx with the job being processed.
func WithJobID(ctx context.Context, id string) context.Context { return withValue(ctx, jobIDKey, id) }

func JobIDFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, jobIDKey) }

// WithStage tags ctx with the running pipeline stage.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, stageKey) }

// WithFingerprint tags ctx with the content fingerprint of the comic.
func WithFingerprint(ctx context.Context, fp string) context.Context {
	return withValue(ctx, fingerprintKey, fp)
}

func FingerprintFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, fingerprintKey) }

// WithRequestID tags ctx with the correlation id of an API or IPC request.
// Collaborator calls forward it as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, requestIDKey) }
