package ports

import "context"

// ErrorReporter forwards unexpected failures to an external error tracker.
type ErrorReporter interface {
	Report(ctx context.Context, err error, tags map[string]string)
	Flush()
}
