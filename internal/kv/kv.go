// Package kv wraps the Redis-backed key-value store used by RiskSupervisor
// (risk config reads) and Trader (the manual-signal inlet).
package kv

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const TradeSignalsList = "trade_signals"

// Store is a thin wrapper over a redis.Client exposing only the commands
// this executor uses: GET for numeric config keys and LPOP for the
// manual-signal FIFO.
type Store struct {
	client *redis.Client
}

// New parses a Redis URL and builds a Store. It does not connect eagerly;
// the first command surfaces any connectivity error.
func New(url string) (*Store, error) {
	if url == "" {
		return nil, fmt.Errorf("key-value store URL is not configured")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Store{client: redis.NewClient(opt)}, nil
}

// GetFloat reads key and parses it as a float64, returning fallback if
// the key is absent or unparsable.
func (s *Store) GetFloat(ctx context.Context, key string, fallback float64) float64 {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return f
}

// LPopTradeSignal pops one raw JSON payload off the trade_signals list.
// Returns ("", nil) if the list is empty.
func (s *Store) LPopTradeSignal(ctx context.Context) (string, error) {
	val, err := s.client.LPop(ctx, TradeSignalsList).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lpop %s: %w", TradeSignalsList, err)
	}
	return val, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
