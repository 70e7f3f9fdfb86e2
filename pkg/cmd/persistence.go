package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flowplan/pkg/persistence"
	"github.com/dukex/flowplan/pkg/persistence/file"
	"github.com/dukex/flowplan/pkg/persistence/postgresql"
	"github.com/dukex/flowplan/pkg/persistence/redis"
)

var ErrUnsupportedBackend = errors.New("unsupported persistence backend")

// NewPersistence picks the backend from the scheme of databaseURL. A plain
// path or a file:// URL selects file storage.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider, rest, found := strings.Cut(databaseURL, "://")
	if !found {
		provider, rest = "file", databaseURL
	}

	logger.InfoContext(ctx, "Opening persistence", "provider", provider)

	switch provider {
	case "file":
		return file.NewPersistence(rest), nil
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "redis", "rediss":
		return redis.NewPersistence(ctx, logger, databaseURL)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, provider)
	}
}
