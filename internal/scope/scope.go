// Package scope implements the symbol/scope manager: a stack of lexical
// frames with read lookup walking innermost→outer and
// writes defaulting to the global frame unless `local` targets the
// innermost non-global frame.
package scope

import "github.com/lash-shell/lash/internal/shellerr"

// Kind is a scope frame's kind.
type Kind int

const (
	Global Kind = iota
	FunctionFrame
	LoopFrame
	Subshell
)

// Symbol is one variable binding.
type Symbol struct {
	Name     string
	Value    string
	Exported bool
	Readonly bool
	Local    bool
}

type frame struct {
	kind  Kind
	label string
	vars  map[string]*Symbol
}

// Manager is the scope stack. The zero value is not usable; use New.
type Manager struct {
	frames []*frame
}

// New creates a Manager with a single Global frame.
func New() *Manager {
	m := &Manager{}
	m.frames = []*frame{{kind: Global, label: "global", vars: map[string]*Symbol{}}}
	return m
}

// PushScope pushes a new frame of the given kind.
func (m *Manager) PushScope(kind Kind, label string) {
	m.frames = append(m.frames, &frame{kind: kind, label: label, vars: map[string]*Symbol{}})
}

// PopScope pops the innermost frame. Popping the last (global) frame is a
// no-op, guarding against unbalanced calls.
func (m *Manager) PopScope() {
	if len(m.frames) <= 1 {
		return
	}
	m.frames = m.frames[:len(m.frames)-1]
}

// CurrentLevel reports the stack depth (1 = only Global).
func (m *Manager) CurrentLevel() int { return len(m.frames) }

func (m *Manager) top() *frame { return m.frames[len(m.frames)-1] }

func (m *Manager) globalFrame() *frame { return m.frames[0] }

// innermostWriteFrame finds the frame `local` targets: the innermost
// non-global frame, or global if the stack has no other frames.
func (m *Manager) innermostWriteFrame() *frame {
	if len(m.frames) > 1 {
		return m.top()
	}
	return m.globalFrame()
}

// Get looks up name, walking innermost→outer.
func (m *Manager) Get(name string) (string, bool) {
	for i := len(m.frames) - 1; i >= 0; i-- {
		if sym, ok := m.frames[i].vars[name]; ok {
			return sym.Value, true
		}
	}
	return "", false
}

// Lookup is like Get but returns the full Symbol.
func (m *Manager) Lookup(name string) (*Symbol, bool) {
	for i := len(m.frames) - 1; i >= 0; i-- {
		if sym, ok := m.frames[i].vars[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// findWritable locates the existing Symbol for name in any frame, for
// readonly/export checks that must see a previous binding regardless of
// which frame it lives in.
func (m *Manager) findWritable(name string) *Symbol {
	for i := len(m.frames) - 1; i >= 0; i-- {
		if sym, ok := m.frames[i].vars[name]; ok {
			return sym
		}
	}
	return nil
}

// SetGlobal assigns name=value, honoring readonly: an existing binding is
// updated in whichever frame holds it, and a new name is created in the
// global frame.
func (m *Manager) SetGlobal(name, value string) error {
	if sym := m.findWritable(name); sym != nil {
		if sym.Readonly {
			return shellerr.Runtime(name, 1, "readonly variable")
		}
		sym.Value = value
		return nil
	}
	m.globalFrame().vars[name] = &Symbol{Name: name, Value: value}
	return nil
}

// SetLocal assigns name=value in the innermost non-global frame, the one
// `local` targets.
func (m *Manager) SetLocal(name, value string) error {
	f := m.innermostWriteFrame()
	if existing, ok := f.vars[name]; ok {
		if existing.Readonly {
			return shellerr.Runtime(name, 1, "readonly variable")
		}
		existing.Value = value
		return nil
	}
	f.vars[name] = &Symbol{Name: name, Value: value, Local: f.kind != Global}
	return nil
}

// Export marks name as exported, creating it (empty value) if unset.
func (m *Manager) Export(name string) error {
	sym := m.findWritable(name)
	if sym == nil {
		sym = &Symbol{Name: name}
		m.globalFrame().vars[name] = sym
	}
	sym.Exported = true
	return nil
}

// Readonly marks name readonly, creating it with the given value if it
// does not yet exist. If it exists, value is ignored (readonly only
// flags; callers assign first).
func (m *Manager) Readonly(name string, value string, hasValue bool) error {
	sym := m.findWritable(name)
	if sym == nil {
		sym = &Symbol{Name: name}
		m.globalFrame().vars[name] = sym
	}
	if hasValue {
		if sym.Readonly {
			return shellerr.Runtime(name, 1, "readonly variable")
		}
		sym.Value = value
	}
	sym.Readonly = true
	return nil
}

// Unset removes name from whichever frame holds it; readonly variables
// cannot be unset.
func (m *Manager) Unset(name string) error {
	for i := len(m.frames) - 1; i >= 0; i-- {
		if sym, ok := m.frames[i].vars[name]; ok {
			if sym.Readonly {
				return shellerr.Runtime(name, 1, "readonly variable")
			}
			delete(m.frames[i].vars, name)
			return nil
		}
	}
	return nil
}

// Dump returns every visible symbol, innermost frame's bindings shadowing
// outer ones of the same name, for the `set`/`dump` builtins.
func (m *Manager) Dump() []*Symbol {
	seen := map[string]bool{}
	var out []*Symbol
	for i := len(m.frames) - 1; i >= 0; i-- {
		for name, sym := range m.frames[i].vars {
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, sym)
		}
	}
	return out
}

// Exported returns the name=value pairs that should be mirrored into a
// child process's environment at exec time.
func (m *Manager) Exported() map[string]string {
	seen := map[string]bool{}
	out := map[string]string{}
	for i := len(m.frames) - 1; i >= 0; i-- {
		for name, sym := range m.frames[i].vars {
			if seen[name] {
				continue
			}
			seen[name] = true
			if sym.Exported {
				out[name] = sym.Value
			}
		}
	}
	return out
}

// Clone deep-copies the entire frame stack, for subshell isolation. The
// clone shares no *Symbol pointers with m, so writes against the clone
// never reach m.
func (m *Manager) Clone() *Manager {
	clone := &Manager{frames: make([]*frame, len(m.frames))}
	for i, f := range m.frames {
		nf := &frame{kind: f.kind, label: f.label, vars: make(map[string]*Symbol, len(f.vars))}
		for name, sym := range f.vars {
			cp := *sym
			nf.vars[name] = &cp
		}
		clone.frames[i] = nf
	}
	return clone
}

// ReadonlyNames lists readonly variable names with their current values,
// for the `readonly` builtin's listing format (`readonly name=value`,
// one per line).
func (m *Manager) ReadonlyNames() []*Symbol {
	var out []*Symbol
	for _, sym := range m.Dump() {
		if sym.Readonly {
			out = append(out, sym)
		}
	}
	return out
}
