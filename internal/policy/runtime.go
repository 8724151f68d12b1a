package policy

import "sync/atomic"

// PrefBlockDowngrades is the preference key holding the block flag.
const PrefBlockDowngrades = "blockDowngrades"

// Runtime holds the live policy flags consulted at decision time. Readers
// always observe the latest Set; values are never cached by callers.
type Runtime struct {
	blockDowngrades atomic.Bool
}

// NewRuntime creates a runtime policy with the given initial block flag.
func NewRuntime(blockDowngrades bool) *Runtime {
	r := &Runtime{}
	r.blockDowngrades.Store(blockDowngrades)
	return r
}

// BlockDowngrades reports whether downgraded requests in a detected loop are
// cancelled. A nil Runtime never blocks.
func (r *Runtime) BlockDowngrades() bool {
	if r == nil {
		return false
	}
	return r.blockDowngrades.Load()
}

// SetBlockDowngrades updates the flag, typically from a preference change
// notification.
func (r *Runtime) SetBlockDowngrades(v bool) {
	r.blockDowngrades.Store(v)
}

// OnPreference applies a preference change notification. Unknown keys are
// ignored.
func (r *Runtime) OnPreference(key string, value bool) {
	if key == PrefBlockDowngrades {
		r.SetBlockDowngrades(value)
	}
}
