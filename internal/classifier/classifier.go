// Package classifier scores LaunchEvents in [0, 1]. The default heuristic
// is pure and stable; an operator may additionally load a sandboxed
// scoring module at startup to override it.
package classifier

import (
	"fmt"
	"sync/atomic"

	"github.com/dop251/goja"

	"launchexec/internal/launchevent"
)

// PositiveThreshold is the score above which Trader treats a classification
// as positive. The boundary itself is inclusive in the scoring function,
// not here: score(E) == 0.9 counts as positive because 0.9 > 0.5.
const PositiveThreshold = 0.5

// Score applies the default heuristic: 0.9 if the event has at least 50
// holders at t+60s and at least 0.5 liquidity, 0.1 otherwise. Both bounds
// are inclusive.
func Score(e launchevent.LaunchEvent) float64 {
	if e.HoldersAt60 >= 50 && e.LP >= 0.5 {
		return 0.9
	}
	return 0.1
}

// Classifier scores LaunchEvents, optionally delegating to a sandboxed
// user module loaded at startup. The zero value is ready to use and
// behaves exactly like the package-level Score function.
type Classifier struct {
	// module holds *goja.Program, swapped atomically so concurrent
	// scoring never observes a partially-loaded module.
	module atomic.Pointer[goja.Program]
}

// New returns a Classifier using the default heuristic until a module is
// loaded via LoadModule.
func New() *Classifier {
	return &Classifier{}
}

// LoadModule validates and compiles src in a sandboxed JavaScript VM
// (goja programs have no filesystem, network, or host-memory access
// unless the host explicitly binds them, which this loader never does)
// before making it available. src must define a top-level function
// `score(event) -> number` taking an object with mint/creator/holders_60/lp
// fields. On any compile error, the default heuristic continues to be
// used and the error is returned to the caller.
func (c *Classifier) LoadModule(src []byte) error {
	prog, err := goja.Compile("module", string(src), true)
	if err != nil {
		return fmt.Errorf("compile scoring module: %w", err)
	}

	// Smoke-test the module in an isolated VM so a program that compiles
	// but throws on load (e.g. references an undefined global) is also
	// rejected before being installed.
	vm := goja.New()
	if _, err := vm.RunProgram(prog); err != nil {
		return fmt.Errorf("load scoring module: %w", err)
	}
	if fn, ok := goja.AssertFunction(vm.Get("score")); !ok || fn == nil {
		return fmt.Errorf("scoring module does not define a score(event) function")
	}

	c.module.Store(prog)
	return nil
}

// Score scores e, using the loaded user module if one is installed,
// falling back to the default heuristic otherwise (and if the module
// invocation itself fails).
func (c *Classifier) Score(e launchevent.LaunchEvent) float64 {
	prog := c.module.Load()
	if prog == nil {
		return Score(e)
	}

	vm := goja.New()
	if _, err := vm.RunProgram(prog); err != nil {
		return Score(e)
	}
	fn, ok := goja.AssertFunction(vm.Get("score"))
	if !ok {
		return Score(e)
	}

	result, err := fn(goja.Undefined(), vm.ToValue(map[string]interface{}{
		"mint":        e.Mint,
		"creator":     e.Creator,
		"holders_60":  e.HoldersAt60,
		"lp":          e.LP,
		"platform":    string(e.Platform),
	}))
	if err != nil {
		return Score(e)
	}

	f := result.ToFloat()
	if f < 0 || f > 1 {
		return Score(e)
	}
	return f
}
