package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Debug wraps any Backend and logs every operation. This keeps debug
// logging out of the backend implementations; any backend can be wrapped.
type Debug struct {
	backend Backend
	logger  zerolog.Logger
}

// NewDebug creates a debug wrapper around backend.
func NewDebug(backend Backend, logger zerolog.Logger) *Debug {
	return &Debug{
		backend: backend,
		logger:  logger.With().Str("component", "cache-debug").Logger(),
	}
}

// Get retrieves a value with debug logging.
func (d *Debug) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := d.backend.Get(ctx, key)
	switch {
	case err == nil:
		d.logger.Debug().Str("key", key).Int("size", len(value)).Msg("get: hit")
	case err == ErrMiss:
		d.logger.Debug().Str("key", key).Msg("get: miss")
	default:
		d.logger.Debug().Str("key", key).Err(err).Msg("get: error")
	}
	return value, err
}

// Set stores a value with debug logging.
func (d *Debug) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := d.backend.Set(ctx, key, value, ttl)
	if err != nil {
		d.logger.Debug().Str("key", key).Err(err).Msg("set: error")
		return err
	}
	d.logger.Debug().Str("key", key).Int("size", len(value)).Dur("ttl", ttl).Msg("set: stored")
	return nil
}

// Ping checks the backend with debug logging.
func (d *Debug) Ping(ctx context.Context) error {
	err := d.backend.Ping(ctx)
	if err != nil {
		d.logger.Debug().Err(err).Msg("ping: error")
	}
	return err
}

// Close closes the underlying backend.
func (d *Debug) Close() error {
	d.logger.Debug().Msg("close: closing backend")
	return d.backend.Close()
}
