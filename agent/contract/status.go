package contract

import "context"

type StatusKind string

const (
	StatusThinking       StatusKind = "thinking"
	StatusExecutingTools StatusKind = "executing_tools"
	StatusRetrying       StatusKind = "retrying"
	StatusGeneratingUI   StatusKind = "generating_ui"
)

// StatusFunc receives progress notices while an exchange is running.
type StatusFunc func(kind StatusKind, message string)

type statusKey struct{}

func WithStatus(ctx context.Context, fn StatusFunc) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, statusKey{}, fn)
}

// ReportStatus forwards a notice to the StatusFunc carried by ctx, if any.
func ReportStatus(ctx context.Context, kind StatusKind, message string) {
	if fn, ok := ctx.Value(statusKey{}).(StatusFunc); ok {
		fn(kind, message)
	}
}
