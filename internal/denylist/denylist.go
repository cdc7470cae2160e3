// Package denylist wires the OFAC_DENYLIST environment variable into a
// compliance.Denylist at startup. It exists as a thin seam between CLI/env
// provisioning and the compliance package so the latter stays a pure,
// easily-tested data structure.
package denylist

import (
	"os"

	"launchexec/internal/compliance"
)

// LoadFromEnv builds a compliance.Denylist from OFAC_DENYLIST.
func LoadFromEnv() *compliance.Denylist {
	return compliance.NewDenylist(os.Getenv("OFAC_DENYLIST"))
}
