// Package launchevent defines the shared vocabulary for a newly observed
// on-chain token launch: the LaunchEvent record itself and the Platform
// enumeration it is tagged with.
package launchevent

import (
	"fmt"
	"strings"
)

// Platform identifies the upstream program family a LaunchEvent was
// observed on. New platforms are added by extending the registry below,
// not by touching call sites.
type Platform string

const (
	PumpFun  Platform = "pumpfun"
	LetsBonk Platform = "letsbonk"
)

// registryEntry pairs a platform with the environment variable that
// carries its on-chain program identifier.
type registryEntry struct {
	envVar string
}

var registry = map[Platform]registryEntry{
	PumpFun:  {envVar: "PUMPFUN_PROGRAM_ID"},
	LetsBonk: {envVar: "LETSBONK_PROGRAM_ID"},
}

// ProgramIDEnvVar returns the environment variable name that carries p's
// on-chain program identifier, or false if p is not recognised.
func ProgramIDEnvVar(p Platform) (string, bool) {
	e, ok := registry[p]
	if !ok {
		return "", false
	}
	return e.envVar, true
}

// Known reports whether p is a recognised platform.
func (p Platform) Known() bool {
	_, ok := registry[p]
	return ok
}

func (p Platform) String() string { return string(p) }

// ParsePlatform looks up a platform by its configuration name. Matching is
// case-insensitive on the lower-case form already used by the constants.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(s))
	if !p.Known() {
		return "", fmt.Errorf("unrecognised platform %q", s)
	}
	return p, nil
}

// LaunchEvent is an immutable record identifying a newly observed token,
// save for a single enrichment pass performed by the trader that may
// fill in LP with a freshly fetched value; HoldersAt60 is not changed.
type LaunchEvent struct {
	Mint        string
	Creator     string
	HoldersAt60 uint64
	LP          float64
	Platform    Platform

	// AmountUSDC and MaxSlippageBps are carried by manually-submitted
	// trade signals and replay files. A positive AmountUSDC replaces the
	// configured position size; zero means "use the configured default".
	// MaxSlippageBps is not read by the trader: aggregator requests always
	// use 100 bps.
	AmountUSDC     float64
	MaxSlippageBps int
}

// DedupKey identifies a LaunchEvent for the purposes of the trader's
// deduplication window.
type DedupKey struct {
	Mint    string
	Creator string
}

// Key returns the DedupKey for e.
func (e LaunchEvent) Key() DedupKey {
	return DedupKey{Mint: e.Mint, Creator: e.Creator}
}

// Valid reports whether e has the minimum fields required to be emitted:
// both Mint and Creator must be non-empty.
func (e LaunchEvent) Valid() bool {
	return e.Mint != "" && e.Creator != ""
}
