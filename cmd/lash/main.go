// Command lash is the shell's process entry point: it parses the
// command line, merges configuration, builds an engine.Engine, and
// dispatches to either batch execution or the interactive REPL.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lash-shell/lash/internal/engine"
	"github.com/lash-shell/lash/internal/shellerr"
)

// options holds the raw command-line surface before it is folded into
// engine.Options, following cmd/dockerd's daemonOptions/installFlags
// split between flag parsing and the configuration the rest of the
// program actually consumes.
type options struct {
	command  string
	norc     bool
	login    bool
	noexec   bool
	set      []string
	script   string
	scriptArgs []string
}

func (o *options) installFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&o.command, "command", "c", "", "run commands from string instead of reading stdin/a script")
	flags.BoolVar(&o.norc, "norc", false, "do not read any startup configuration")
	flags.BoolVarP(&o.login, "login", "l", false, "act as a login shell")
	flags.BoolVarP(&o.noexec, "noexec", "n", false, "read commands but do not execute them (set -n)")
	flags.StringArrayVar(&o.set, "set", nil, "define an alias as name=value (repeatable)")
}

func newLashCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "lash [script] [args...]",
		Short:         "lash is a POSIX-style interactive shell",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.script = args[0]
				opts.scriptArgs = args[1:]
			}
			return runLash(cmd, opts)
		},
	}
	opts.installFlags(cmd.Flags())
	return cmd
}

func main() {
	cmd := newLashCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

// runLash builds the engine from the parsed flags and dispatches to
// batch or interactive execution, exiting the process with the resulting
// status.
func runLash(cmd *cobra.Command, opts *options) error {
	cliOpts := engine.Options{
		Login:        opts.login,
		NoRC:         opts.norc,
		NoExec:       opts.noexec,
		AutoCD:       false,
		ScriptName:   opts.script,
		ScriptArg:    opts.scriptArgs,
		ExtraAliases: parseSetAliases(opts.set),
	}
	merged, err := engine.MergeOptions(cliOpts)
	if err != nil {
		return err
	}

	interactive := opts.command == "" && opts.script == "" && isTerminal(os.Stdin)

	e, err := engine.New(merged, interactive)
	if err != nil {
		return err
	}

	var status int
	switch {
	case opts.command != "":
		status = e.RunScript(opts.command)
	case opts.script != "":
		data, readErr := os.ReadFile(opts.script)
		if readErr != nil {
			fmt.Fprintf(os.Stderr, "lash: %s: %v\n", opts.script, readErr)
			os.Exit(127)
		}
		status = e.RunScript(string(data))
	case interactive:
		status = e.Repl()
	default:
		data, readErr := os.ReadFile("/dev/stdin")
		if readErr != nil {
			return shellerr.Wrap(readErr, "lash")
		}
		status = e.RunScript(string(data))
	}

	os.Exit(status)
	return nil
}

// parseSetAliases turns repeated --set key=value flags into the
// ExtraAliases map engine.Options carries, seeding the alias table from
// the command line alongside any config-file aliases.
func parseSetAliases(sets []string) map[string]string {
	if len(sets) == 0 {
		return nil
	}
	out := make(map[string]string, len(sets))
	for _, kv := range sets {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		out[name] = value
	}
	return out
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
