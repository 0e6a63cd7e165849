package job

import (
	"os/exec"
	"testing"
	"time"

	"code.cloudfoundry.org/clock"
	"gotest.tools/v3/assert"
)

func TestStartPipelineAndWaitReportsExitStatus(t *testing.T) {
	m := New(nil)
	cmd := exec.Command("true")
	j, err := m.StartPipeline("true", []*exec.Cmd{cmd}, true)
	assert.NilError(t, err)
	status, err := m.Wait(j)
	assert.NilError(t, err)
	assert.Equal(t, status, 0)
}

func TestStartPipelineNonZeroExit(t *testing.T) {
	m := New(nil)
	cmd := exec.Command("false")
	j, err := m.StartPipeline("false", []*exec.Cmd{cmd}, true)
	assert.NilError(t, err)
	status, _ := m.Wait(j)
	assert.Equal(t, status, 1)
}

func TestBackgroundJobTrackedUntilReaped(t *testing.T) {
	m := New(nil)
	cmd := exec.Command("sleep", "0.05")
	j, err := m.StartPipeline("sleep 0.05 &", []*exec.Cmd{cmd}, false)
	assert.NilError(t, err)
	assert.Equal(t, len(m.List()), 1)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.Reap()
		if _, ok := m.Get(j.ID); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("background job was never reaped")
}

func TestKillGroupNoSuchJob(t *testing.T) {
	m := New(nil)
	err := m.KillGroup(99, 0)
	assert.ErrorContains(t, err, "no such job")
}

func TestFgNoSuchJob(t *testing.T) {
	m := New(nil)
	_, err := m.Fg(99)
	assert.ErrorContains(t, err, "no such job")
}

func TestStartPipelineStampsTraceIDAndStartedAt(t *testing.T) {
	m := NewWithClock(nil, clock.NewClock())
	cmd := exec.Command("true")
	j, err := m.StartPipeline("true", []*exec.Cmd{cmd}, true)
	assert.NilError(t, err)
	assert.Assert(t, j.TraceID != "")
	assert.Assert(t, !j.StartedAt.IsZero())
	_, _ = m.Wait(j)
}

func TestElapsedGrowsOverTime(t *testing.T) {
	m := NewWithClock(nil, clock.NewClock())
	cmd := exec.Command("sleep", "0.05")
	j, err := m.StartPipeline("sleep 0.05", []*exec.Cmd{cmd}, true)
	assert.NilError(t, err)
	_, _ = m.Wait(j)
	assert.Assert(t, m.Elapsed(j) > 0)
}
