// Package collab defines the narrow interfaces the core uses to talk to
// the pluggable collaborators it treats as external: the line
// editor and history store's UI, the completion/hints provider, the
// prompt/theme renderer, the configuration file loader, the plugin
// loader, the autocorrect suggestion engine, and debug tracing. The core
// never implements any of these itself — it only calls through these
// interfaces, and every call site is nil-checked so a host program that
// doesn't wire a collaborator simply gets the core's default behavior.
package collab

// LineEditor reads one line of interactive input, given the rendered
// prompt string.
type LineEditor interface {
	ReadLine(prompt string) (string, error)
}

// HistoryHints suggests completions for a partially typed command given
// the history already recorded.
type HistoryHints interface {
	Suggest(prefix string) []string
}

// PromptContext carries the state a prompt renderer needs.
type PromptContext struct {
	WorkingDir string
	LastStatus int
	JobCount   int
}

// PromptRenderer renders the interactive prompt string.
type PromptRenderer interface {
	Render(ctx PromptContext) string
}

// Theme is an opaque display theme handed to a ThemeProvider's consumer.
type Theme struct {
	Name   string
	Colors map[string]string
}

// ThemeProvider supplies the active display theme.
type ThemeProvider interface {
	Theme() Theme
}

// Options is the subset of engine.Options a ConfigSource may populate.
// It is defined here (rather than imported from engine) so this package
// has no dependency on the core.
type Options struct {
	IFS          string
	PS1          string
	Errexit      bool
	Nounset      bool
	Noglob       bool
	HistSize     int
	LoopBound    int
	AliasDepth   int
	ExtraAliases map[string]string
}

// ConfigSource loads shell startup configuration from wherever the host
// program keeps it (an rc file, a database, a remote store — the core
// does not care).
type ConfigSource interface {
	Load() (Options, error)
}

// PluginLoader loads an external plugin by path. The core never
// interprets plugin contents; it only calls Load at startup for each
// configured plugin path.
type PluginLoader interface {
	Load(path string) error
}

// Autocorrect suggests corrections for a command that was not found, used
// only when the optional spell-correction option is
// enabled.
type Autocorrect interface {
	Suggest(cmd string) []string
}

// Tracer receives debug-tracing events. The core calls Trace at a small,
// fixed set of points (command dispatch, job state transitions, trap
// delivery) and never depends on what, if anything, consumes them.
type Tracer interface {
	Trace(event string, fields map[string]any)
}
