package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"launchexec/internal/launchevent"
)

// ReplaySource reads LaunchEvents from a file instead of a live
// subscription. It applies back-pressure with a blocking send, unlike the
// live feed's drop-on-full policy.
type ReplaySource struct {
	path string
}

// NewReplaySource builds a loader for the given file. Supported
// extensions are .json/.jsonl (one JSON-encoded LaunchEvent per line) and
// .parquet (not implemented — see Run).
func NewReplaySource(path string) *ReplaySource {
	return &ReplaySource{path: path}
}

// replayRecord is the JSON shape a replay file's LaunchEvents are encoded
// in; EncodeLine writes it and runJSONLines reads it back.
type replayRecord struct {
	Mint           string  `json:"mint"`
	Creator        string  `json:"creator"`
	HoldersAt60    uint64  `json:"holders_60"`
	LP             float64 `json:"lp"`
	Platform       string  `json:"platform"`
	AmountUSDC     float64 `json:"amount_usdc,omitempty"`
	MaxSlippageBps int     `json:"max_slippage_bps,omitempty"`
}

func (r replayRecord) toLaunchEvent() launchevent.LaunchEvent {
	return launchevent.LaunchEvent{
		Mint:           r.Mint,
		Creator:        r.Creator,
		HoldersAt60:    r.HoldersAt60,
		LP:             r.LP,
		Platform:       launchevent.Platform(r.Platform),
		AmountUSDC:     r.AmountUSDC,
		MaxSlippageBps: r.MaxSlippageBps,
	}
}

func fromLaunchEvent(e launchevent.LaunchEvent) replayRecord {
	return replayRecord{
		Mint:           e.Mint,
		Creator:        e.Creator,
		HoldersAt60:    e.HoldersAt60,
		LP:             e.LP,
		Platform:       string(e.Platform),
		AmountUSDC:     e.AmountUSDC,
		MaxSlippageBps: e.MaxSlippageBps,
	}
}

// Run reads the replay file to exhaustion, blocking-sending each decoded
// LaunchEvent onto out, and returns nil on success.
func (r *ReplaySource) Run(ctx context.Context, out chan<- launchevent.LaunchEvent) error {
	switch {
	case strings.HasSuffix(r.path, ".json"), strings.HasSuffix(r.path, ".jsonl"):
		return r.runJSONLines(ctx, out)
	case strings.HasSuffix(r.path, ".parquet"):
		// parquet-go is not part of this executor's dependency surface;
		// document the gap rather than fake success.
		return fmt.Errorf("replay: parquet format not supported, use .jsonl")
	default:
		return fmt.Errorf("replay: unrecognised file extension for %q", r.path)
	}
}

func (r *ReplaySource) runJSONLines(ctx context.Context, out chan<- launchevent.LaunchEvent) error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec replayRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return fmt.Errorf("decode replay line: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- rec.toLaunchEvent():
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan replay file: %w", err)
	}
	return nil
}

// EncodeLine JSON-encodes a LaunchEvent the way the replay loader expects
// to read it back, one record per line.
func EncodeLine(e launchevent.LaunchEvent) ([]byte, error) {
	return json.Marshal(fromLaunchEvent(e))
}
