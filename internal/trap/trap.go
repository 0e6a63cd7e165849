// Package trap implements the trap table: signal number → action
// string, with signal 0 denoting EXIT.
package trap

import (
	"strconv"
	"strings"
	"syscall"

	mobysignal "github.com/moby/sys/signal"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/lash-shell/lash/internal/shellerr"
)

// ExitSignal is the pseudo-signal number denoting the EXIT trap.
const ExitSignal = syscall.Signal(0)

// Action is the stored trap action: "" means ignore, "-" means reset to
// default, anything else is a command to evaluate.
type Action string

const (
	Ignore  Action = ""
	Default Action = "-"
)

// Table holds signal -> action mappings and the set of currently-trapped
// signals for fast membership checks from the job manager / dispatcher.
type Table struct {
	actions map[syscall.Signal]Action
	trapped mapset.Set[syscall.Signal]
}

// New creates an empty trap table.
func New() *Table {
	return &Table{actions: map[syscall.Signal]Action{}, trapped: mapset.NewSet[syscall.Signal]()}
}

// ParseSignal resolves a signal name or number (as accepted by `trap` and
// `kill`) to a syscall.Signal, using moby/sys/signal's name table. "EXIT"
// and "0" both resolve to ExitSignal.
func ParseSignal(spec string) (syscall.Signal, error) {
	spec = strings.ToUpper(strings.TrimPrefix(spec, "-"))
	if spec == "EXIT" || spec == "0" {
		return ExitSignal, nil
	}
	if n, err := strconv.Atoi(spec); err == nil {
		return syscall.Signal(n), nil
	}
	sig, ok := mobysignal.SignalMap[strings.TrimPrefix(spec, "SIG")]
	if !ok {
		return 0, shellerr.Trap("%s: invalid signal specification", spec)
	}
	return sig, nil
}

// Clone returns a snapshot of the table, for subshell/pipeline-stage
// isolation.
func (t *Table) Clone() *Table {
	clone := New()
	for sig, action := range t.actions {
		clone.actions[sig] = action
		clone.trapped.Add(sig)
	}
	return clone
}

// Set stores action for sig.
func (t *Table) Set(sig syscall.Signal, action Action) {
	t.actions[sig] = action
	if action == Default {
		t.trapped.Remove(sig)
		delete(t.actions, sig)
		return
	}
	t.trapped.Add(sig)
}

// Get returns the action configured for sig, and whether one is set.
func (t *Table) Get(sig syscall.Signal) (Action, bool) {
	a, ok := t.actions[sig]
	return a, ok
}

// IsTrapped reports whether sig currently has a non-default action.
func (t *Table) IsTrapped(sig syscall.Signal) bool {
	return t.trapped.Contains(sig)
}

// Signals lists every signal with a configured action, for the `trap -p`
// listing.
func (t *Table) Signals() []syscall.Signal {
	return t.trapped.ToSlice()
}
