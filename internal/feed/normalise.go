package feed

import (
	"encoding/json"
	"strconv"
	"strings"

	"launchexec/internal/launchevent"
)

// MaxFrameBytes is the hard cap on an accepted notification frame.
// Oversize frames are dropped with a warning and never reach Normalise
// successfully; the stream is not terminated.
const MaxFrameBytes = 65536

type logsNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Value struct {
				Logs []string        `json:"logs"`
				Err  json.RawMessage `json:"err"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// launchIndicators are log-line substrings that mark a notification as a
// launch event. Which indicator applies is a platform-specific decision;
// this set covers both program families configured by this executor.
var launchIndicators = []string{
	"Instruction: Create",
	"Instruction: Initialize",
	"initialize2",
}

// Normalise parses a single notification frame into a LaunchEvent. It
// returns ok=false if the frame is oversize, malformed, not a
// logsNotification, carries a non-null inner error, lacks a recognised
// launch indicator, or is missing mint/creator. Pure and deterministic:
// identical input always yields identical output.
func Normalise(frame []byte) (launchevent.LaunchEvent, bool) {
	if len(frame) > MaxFrameBytes {
		return launchevent.LaunchEvent{}, false
	}

	var note logsNotification
	if err := json.Unmarshal(frame, &note); err != nil {
		return launchevent.LaunchEvent{}, false
	}
	if note.Method != "logsNotification" {
		return launchevent.LaunchEvent{}, false
	}
	if !isNullErr(note.Params.Result.Value.Err) {
		return launchevent.LaunchEvent{}, false
	}

	logs := note.Params.Result.Value.Logs
	if !hasLaunchIndicator(logs) {
		return launchevent.LaunchEvent{}, false
	}

	ev := extractFields(logs)
	if !ev.Valid() {
		return launchevent.LaunchEvent{}, false
	}
	return ev, true
}

func isNullErr(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true // field absent, treat as null
	}
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "null" || trimmed == ""
}

func hasLaunchIndicator(logs []string) bool {
	for _, line := range logs {
		for _, ind := range launchIndicators {
			if strings.Contains(line, ind) {
				return true
			}
		}
	}
	return false
}

func extractFields(logs []string) launchevent.LaunchEvent {
	var ev launchevent.LaunchEvent
	var haveMint, haveCreator, haveHolders, haveLP bool

	for _, line := range logs {
		if !haveMint {
			if v, ok := firstToken(line, "mint: "); ok {
				ev.Mint = v
				haveMint = true
			}
		}
		if !haveCreator {
			if v, ok := firstToken(line, "creator: "); ok {
				ev.Creator = v
				haveCreator = true
			}
		}
		if !haveHolders {
			if v, ok := firstToken(line, "holders_60: "); ok {
				if n, err := strconv.ParseUint(v, 10, 64); err == nil {
					ev.HoldersAt60 = n
					haveHolders = true
				}
			}
		}
		if !haveLP {
			if v, ok := firstToken(line, "lp: "); ok {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					ev.LP = f
					haveLP = true
				}
			}
		}
	}

	return ev
}

func firstToken(line, prefix string) (string, bool) {
	idx := strings.Index(line, prefix)
	if idx < 0 {
		return "", false
	}
	rest := line[idx+len(prefix):]
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}
