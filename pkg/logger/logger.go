package logger

import (
	"context"

	"go.uber.org/zap"
)

type Sugared = *zap.SugaredLogger

type ctxKey struct{}

func New(env string) Sugared {
	var z *zap.Logger
	if env == "prod" {
		z, _ = zap.NewProduction()
	} else {
		z, _ = zap.NewDevelopment()
	}
	return z.Sugar()
}

// WithContext stores a request-scoped logger in ctx.
func WithContext(ctx context.Context, log Sugared) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// From returns the request-scoped logger, or a no-op logger if none was attached.
func From(ctx context.Context) Sugared {
	if l, ok := ctx.Value(ctxKey{}).(*zap.SugaredLogger); ok && l != nil {
		return l
	}
	return zap.NewNop().Sugar()
}
