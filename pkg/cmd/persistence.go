package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/actionhub/pkg/persistence"
	"github.com/dukex/actionhub/pkg/persistence/file"
	"github.com/dukex/actionhub/pkg/persistence/postgresql"
)

var (
	ErrUnsupportedEventBus    = errors.New("unsupported event bus provider")
	ErrUnsupportedPersistence = errors.New("unsupported persistence provider")
)

// NewPersistence picks the store from the URL scheme: file:// or postgres://.
// A bare path is treated as a file store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger.With("module", "postgresql"), databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres persistence: %w", err)
		}

		return p, nil
	case "file":
		return file.NewPersistence(databaseURL), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPersistence, databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
