package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/motortwin/motortwin/pkg/types"
	"github.com/motortwin/motortwin/server/internal/config"
)

var (
	// ErrInvalidLimit is returned by Recent for a non-positive limit.
	ErrInvalidLimit = errors.New("store: limit must be positive")

	// ErrConflict is returned by Append when the backend already holds a
	// reading under the same key. Stored readings are never replaced.
	ErrConflict = errors.New("store: reading already exists")
)

// Store is an append-only reading store.
type Store interface {
	// Append persists r. r.ID must be set.
	Append(ctx context.Context, r types.Reading) error

	// Recent returns up to limit readings ordered by timestamp descending.
	Recent(ctx context.Context, limit int) ([]types.Reading, error)

	// RecentByMotor is Recent restricted to readings of one motor.
	RecentByMotor(ctx context.Context, motorID string, limit int) ([]types.Reading, error)

	// Count returns the number of stored readings.
	Count(ctx context.Context) (int, error)

	Close() error
}

// Latest returns the most recent reading, or false when the store is empty.
func Latest(ctx context.Context, s Store) (types.Reading, bool, error) {
	rs, err := s.Recent(ctx, 1)
	if err != nil {
		return types.Reading{}, false, err
	}
	if len(rs) == 0 {
		return types.Reading{}, false, nil
	}
	return rs[0], true, nil
}

// History returns up to limit readings of motorID in chronological order,
// ready for the analytics functions. An empty motorID spans every motor.
func History(ctx context.Context, s Store, motorID string, limit int) ([]types.Reading, error) {
	var (
		rs  []types.Reading
		err error
	)
	if motorID == "" {
		rs, err = s.Recent(ctx, limit)
	} else {
		rs, err = s.RecentByMotor(ctx, motorID, limit)
	}
	if err != nil {
		return nil, err
	}
	return types.Reverse(rs), nil
}

// Open builds the backend selected by cfg.Backend. motorID is the DynamoDB
// partition that Recent and Count read.
func Open(ctx context.Context, cfg config.StorageConfig, motorID string) (Store, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemory(cfg.Capacity), nil
	case "sqlite":
		return OpenSQLite(cfg.Path)
	case "redis":
		return OpenRedis(ctx, cfg.Redis)
	case "dynamodb":
		return OpenDynamo(cfg.DynamoDB, motorID)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}
