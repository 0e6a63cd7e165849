// Package job implements the job manager: process-group-based job
// tracking with foreground/background control, reaping, and terminal
// ownership handoff.
package job

import (
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"code.cloudfoundry.org/clock"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/moby/locker"
	"golang.org/x/sys/unix"

	"github.com/lash-shell/lash/internal/shellerr"
)

// State is a job's run state.
type State int

const (
	Running State = iota
	Stopped
	Done
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Proc is one process within a job's pipeline.
type Proc struct {
	Pid        int
	Command    string
	LastStatus int // exit code, or 128+signal on signal death
	Exited     bool
	cmd        *exec.Cmd
}

// Job is a tracked process group. TraceID is a globally unique
// correlation id for structured logging/tracing (internal/engine's
// Tracer), kept separate from the small sequential ID `jobs`/`fg`/`bg`
// show the user.
type Job struct {
	ID          int
	TraceID     string
	Pgid        int
	State       State
	Foreground  bool
	Procs       []*Proc
	CommandLine string
	StartedAt   time.Time
}

// Status returns the job's reportable exit status: the last process's
// LastStatus (a pipeline reports its rightmost stage).
func (j *Job) Status() int {
	if len(j.Procs) == 0 {
		return 0
	}
	return j.Procs[len(j.Procs)-1].LastStatus
}

// Manager tracks all jobs. The zero value is not usable; use New.
type Manager struct {
	mu      sync.Mutex
	jobs    map[int]*Job
	nextID  int
	lockers *locker.Locker
	term    *TermControl
	livePids mapset.Set[int]
	clock   clock.Clock
}

// New creates an empty job manager. term may be nil in non-interactive
// contexts (no controlling terminal to hand off). Job start times are
// stamped from the real wall clock; see NewWithClock to inject a fake
// one for tests.
func New(term *TermControl) *Manager {
	return NewWithClock(term, clock.NewClock())
}

// NewWithClock is New with an injected clock.Clock, so tests can
// control Job.StartedAt (and the elapsed time Elapsed reports from it)
// without sleeping real wall-clock time.
func NewWithClock(term *TermControl, clk clock.Clock) *Manager {
	return &Manager{
		jobs:     map[int]*Job{},
		nextID:   1,
		lockers:  locker.New(),
		term:     term,
		livePids: mapset.NewSet[int](),
		clock:    clk,
	}
}

// Elapsed returns how long job j has been running, per this Manager's
// clock (`times`/`jobs -v` use this instead of time.Since so fake-clock
// tests are deterministic).
func (m *Manager) Elapsed(j *Job) time.Duration {
	return m.clock.Now().Sub(j.StartedAt)
}

// StartPipeline starts every cmd in procs as one process group (the
// first process becomes the group leader), connected as already wired by
// the caller (internal/exec sets up the pipes). It returns the new Job,
// already registered, in Running state.
func (m *Manager) StartPipeline(commandLine string, procs []*exec.Cmd, foreground bool) (*Job, error) {
	if len(procs) == 0 {
		return nil, shellerr.Runtime("job", 1, "empty pipeline")
	}
	pgid := 0
	started := make([]*Proc, 0, len(procs))
	for i, c := range procs {
		c.SysProcAttr = procSysAttr(pgid)
		if err := c.Start(); err != nil {
			for _, p := range started {
				_ = syscall.Kill(p.Pid, syscall.SIGTERM)
			}
			return nil, shellerr.Runtime("job", 1, "%v", err)
		}
		if i == 0 {
			pgid = c.Process.Pid
		}
		m.livePids.Add(c.Process.Pid)
		started = append(started, &Proc{Pid: c.Process.Pid, Command: c.Path, cmd: c})
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	j := &Job{ID: id, TraceID: uuid.New().String(), Pgid: pgid, State: Running, Foreground: foreground, Procs: started, CommandLine: commandLine, StartedAt: m.clock.Now()}
	m.jobs[id] = j
	m.mu.Unlock()

	if foreground && m.term != nil {
		m.term.GiveTerminalTo(pgid)
	}
	return j, nil
}

// Wait blocks until every process of job j has exited or stopped,
// updating Proc.LastStatus as each reports, and returns the job's final
// Status(). If the job is in the foreground, terminal ownership is
// restored to the shell's own process group afterward.
func (m *Manager) Wait(j *Job) (int, error) {
	defer func() {
		if j.Foreground && m.term != nil {
			m.term.TakeTerminalBack()
		}
	}()
	for _, p := range j.Procs {
		if p.Exited {
			continue
		}
		err := p.cmd.Wait()
		m.lockers.Lock(fmt.Sprint(j.ID))
		p.Exited = true
		p.LastStatus = exitStatus(err)
		m.livePids.Remove(p.Pid)
		m.lockers.Unlock(fmt.Sprint(j.ID))
	}
	m.mu.Lock()
	allDone := true
	for _, p := range j.Procs {
		if !p.Exited {
			allDone = false
		}
	}
	if allDone {
		j.State = Done
		delete(m.jobs, j.ID)
	}
	m.mu.Unlock()
	return j.Status(), nil
}

func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok {
			if ws.Signaled() {
				return 128 + int(ws.Signal())
			}
			return ws.ExitStatus()
		}
		return ee.ExitCode()
	}
	return 1
}

// Background marks j as running in the background, returning its pid
// (the process group leader's pid, reported to $!).
func (m *Manager) Background(j *Job) int {
	j.Foreground = false
	return j.Pgid
}

// Reap performs a single non-blocking pass (WNOHANG|WUNTRACED) over
// background jobs, updating state and returning the jobs whose state
// changed this pass (for `jobs`/prompt notices). Completed jobs are
// removed from the table.
func (m *Manager) Reap() []*Job {
	var changed []*Job
	m.mu.Lock()
	jobs := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	m.mu.Unlock()

	for _, j := range jobs {
		if j.Foreground {
			continue
		}
		key := fmt.Sprint(j.ID)
		m.lockers.Lock(key)
		before := j.State
		allDone := true
		anyStopped := false
		for _, p := range j.Procs {
			if p.Exited {
				continue
			}
			var ws unix.WaitStatus
			pid, err := unix.Wait4(p.Pid, &ws, unix.WNOHANG|unix.WUNTRACED, nil)
			if err != nil || pid == 0 {
				allDone = false
				continue
			}
			switch {
			case ws.Exited():
				p.Exited = true
				p.LastStatus = ws.ExitStatus()
				m.livePids.Remove(p.Pid)
			case ws.Signaled():
				p.Exited = true
				p.LastStatus = 128 + int(ws.Signal())
				m.livePids.Remove(p.Pid)
			case ws.Stopped():
				anyStopped = true
				allDone = false
			default:
				allDone = false
			}
		}
		switch {
		case allDone:
			j.State = Done
		case anyStopped:
			j.State = Stopped
		default:
			j.State = Running
		}
		m.lockers.Unlock(key)

		if j.State != before {
			changed = append(changed, j)
		}
		if j.State == Done {
			m.mu.Lock()
			delete(m.jobs, j.ID)
			m.mu.Unlock()
		}
	}
	return changed
}

// List returns every currently tracked job, ordered by job id.
func (m *Manager) List() []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Job, 0, len(m.jobs))
	for id := 1; id < m.nextID; id++ {
		if j, ok := m.jobs[id]; ok {
			out = append(out, j)
		}
	}
	return out
}

// Get returns the job with the given id.
func (m *Manager) Get(id int) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	return j, ok
}

// Fg continues job id (if stopped) and brings it to the foreground,
// waiting for it.
func (m *Manager) Fg(id int) (int, error) {
	j, ok := m.Get(id)
	if !ok {
		return 0, shellerr.Runtime("fg", 1, "%d: no such job", id)
	}
	j.Foreground = true
	if j.State == Stopped {
		if err := syscall.Kill(-j.Pgid, syscall.SIGCONT); err != nil {
			return 0, shellerr.Runtime("fg", 1, "%v", err)
		}
		j.State = Running
	}
	if m.term != nil {
		m.term.GiveTerminalTo(j.Pgid)
	}
	return m.Wait(j)
}

// Bg continues job id (if stopped) in the background.
func (m *Manager) Bg(id int) error {
	j, ok := m.Get(id)
	if !ok {
		return shellerr.Runtime("bg", 1, "%d: no such job", id)
	}
	if j.State == Stopped {
		if err := syscall.Kill(-j.Pgid, syscall.SIGCONT); err != nil {
			return shellerr.Runtime("bg", 1, "%v", err)
		}
		j.State = Running
	}
	j.Foreground = false
	return nil
}

// KillGroup sends sig to job id's entire process group, so `kill %n`
// reaches every stage of a pipeline job.
func (m *Manager) KillGroup(id int, sig syscall.Signal) error {
	j, ok := m.Get(id)
	if !ok {
		return shellerr.Runtime("kill", 1, "%d: no such job", id)
	}
	return syscall.Kill(-j.Pgid, sig)
}

func procSysAttr(pgid int) *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true, Pgid: pgid}
}
