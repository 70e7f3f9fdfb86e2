package simulator

import "context"

type dryRunKey struct{}

// WithDryRun marks ctx as belonging to a dry run.
func WithDryRun(ctx context.Context) context.Context {
	return context.WithValue(ctx, dryRunKey{}, true)
}

// IsDryRun reports whether ctx belongs to a dry run. Executors that reach
// real chains or services must not cause side effects when it is true.
func IsDryRun(ctx context.Context) bool {
	dry, _ := ctx.Value(dryRunKey{}).(bool)

	return dry
}
