package job

import (
	"os"

	"github.com/moby/term"
	"golang.org/x/sys/unix"
)

// TermControl owns the controlling terminal handoff between the shell's
// own process group and a foreground job's process group (the shell
// reclaims the terminal after a foreground job exits or stops), plus
// raw-mode save/restore for job-control-aware line editing
// collaborators (internal/collab.LineEditor).
type TermControl struct {
	fd       int
	shellPgid int
	saved    *term.State
}

// NewTermControl opens control of fd (typically os.Stdin.Fd()) for the
// shell's own process group. Returns nil, nil if fd is not a terminal
// (e.g. piped/non-interactive input), since job control only applies to
// interactive sessions.
func NewTermControl(fd int) (*TermControl, error) {
	if !term.IsTerminal(uintptr(fd)) {
		return nil, nil
	}
	pgid, err := unix.IoctlGetInt(fd, unix.TIOCGPGRP)
	if err != nil {
		return nil, err
	}
	return &TermControl{fd: fd, shellPgid: pgid}, nil
}

// GiveTerminalTo transfers terminal ownership to pgid.
func (t *TermControl) GiveTerminalTo(pgid int) {
	if t == nil {
		return
	}
	_ = unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, pgid)
}

// TakeTerminalBack reclaims terminal ownership for the shell's own
// process group.
func (t *TermControl) TakeTerminalBack() {
	if t == nil {
		return
	}
	_ = unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, t.shellPgid)
}

// EnterRawMode puts the terminal into raw mode, saving the prior state
// for RestoreMode. Used around foreground command-line editing.
func (t *TermControl) EnterRawMode() error {
	if t == nil {
		return nil
	}
	st, err := term.SetRawTerminal(uintptr(t.fd))
	if err != nil {
		return err
	}
	t.saved = st
	return nil
}

// RestoreMode restores whatever terminal state was captured by
// EnterRawMode.
func (t *TermControl) RestoreMode() error {
	if t == nil || t.saved == nil {
		return nil
	}
	return term.RestoreTerminal(uintptr(t.fd), t.saved)
}

// WinSize returns the terminal's current size, for SIGWINCH-driven
// prompt/collaborator layout updates.
func (t *TermControl) WinSize() (*term.Winsize, error) {
	if t == nil {
		return nil, os.ErrInvalid
	}
	return term.GetWinsize(uintptr(t.fd))
}
