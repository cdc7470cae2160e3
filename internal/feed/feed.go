// Package feed implements FeedSource: the live log-subscription stream and
// the file-based replay loader, both of which produce LaunchEvents onto a
// single bounded channel.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"launchexec/internal/launchevent"
)

const (
	// EventsBufferSize is the capacity of the events channel: bounded
	// back-pressure at the tail, matching spec.md §5.
	EventsBufferSize = 10000

	steadyBackoff  = 5 * time.Second
	initialBackoff = time.Second
	writeTimeout   = 10 * time.Second
)

// Source produces LaunchEvents into a bounded channel. FeedSource (live)
// and the replay loader both implement it.
type Source interface {
	Run(ctx context.Context, out chan<- launchevent.LaunchEvent) error
}

// subscribeRequest mirrors the logsSubscribe wire shape from spec.md §6.
type subscribeRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// PlatformFeed is one independent subscriber task for a single platform:
// its own connection, its own reconnect loop. It never exits on frame or
// connection errors; it just reconnects forever with a fixed backoff.
type PlatformFeed struct {
	platform  launchevent.Platform
	wsURL     string
	programID string
	logger    *slog.Logger
}

// NewPlatformFeed derives a wss:// URL from rpcURL (scheme-rewriting
// http/https to ws/wss) and builds a subscriber for platform/programID.
func NewPlatformFeed(platform launchevent.Platform, rpcURL, programID string, logger *slog.Logger) *PlatformFeed {
	return &PlatformFeed{
		platform:  platform,
		wsURL:     toWebsocketURL(rpcURL),
		programID: programID,
		logger:    logger.With("component", "feed", "platform", platform),
	}
}

func toWebsocketURL(rpcURL string) string {
	switch {
	case strings.HasPrefix(rpcURL, "https://"):
		return "wss://" + strings.TrimPrefix(rpcURL, "https://")
	case strings.HasPrefix(rpcURL, "http://"):
		return "ws://" + strings.TrimPrefix(rpcURL, "http://")
	default:
		return rpcURL
	}
}

// Run connects and maintains the subscription with a fixed backoff,
// pushing normalised LaunchEvents onto out with a non-blocking send
// (drop-on-full is the deliberate lossy policy at the tail in live mode).
// Blocks until ctx is cancelled.
func (f *PlatformFeed) Run(ctx context.Context, out chan<- launchevent.LaunchEvent) error {
	firstAttempt := true

	for {
		err := f.connectAndRead(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		backoff := steadyBackoff
		if firstAttempt {
			backoff = initialBackoff
		}
		firstAttempt = false

		f.logger.Warn("feed disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (f *PlatformFeed) connectAndRead(ctx context.Context, out chan<- launchevent.LaunchEvent) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := f.subscribe(conn); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("feed connected")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, frame, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		if len(frame) > MaxFrameBytes {
			f.logger.Warn("dropping oversize frame", "bytes", len(frame))
			continue
		}

		ev, ok := Normalise(frame)
		if !ok {
			continue
		}
		ev.Platform = f.platform

		select {
		case out <- ev:
		default:
			f.logger.Warn("events queue full, dropping event", "mint", ev.Mint)
		}
	}
}

func (f *PlatformFeed) subscribe(conn *websocket.Conn) error {
	req := subscribeRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "logsSubscribe",
		Params: []interface{}{
			map[string]interface{}{"mentions": []string{f.programID}},
			map[string]interface{}{"commitment": "finalized"},
		},
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(req)
}
