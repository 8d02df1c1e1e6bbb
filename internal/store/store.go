// Package store provides durable delivery ledgers for the reminder poller.
package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/classroom/internal/model"
	"github.com/nhle/classroom/internal/sync"
)

var (
	_ sync.Ledger = (*SQLiteLedger)(nil)
	_ sync.Ledger = (*RedisLedger)(nil)
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenLedger builds the ledger selected by cfg.Backend. The returned closer
// releases the backend's connection and is never nil.
func OpenLedger(ctx context.Context, cfg model.LedgerConfig, logger *zap.Logger) (sync.Ledger, io.Closer, error) {
	ttl := time.Duration(cfg.TTLHours) * time.Hour

	switch cfg.Backend {
	case "", "memory":
		return sync.NewMemoryLedger(ttl), nopCloser{}, nil

	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("creating ledger directory %s: %w", dir, err)
			}
		}
		l, err := NewSQLiteLedger(cfg.SQLitePath, ttl)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using sqlite delivery ledger", zap.String("path", cfg.SQLitePath))
		return l, l, nil

	case "redis":
		l, err := NewRedisLedger(ctx, cfg.RedisAddr, cfg.RedisDB, ttl)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using redis delivery ledger", zap.String("addr", cfg.RedisAddr))
		return l, l, nil

	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}
