package exec

import (
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/lash-shell/lash/internal/ast"
	"github.com/lash-shell/lash/internal/shellerr"
)

// flattenPipe unrolls the left-skewed *ast.Pipe tree into stage order,
// leftmost first.
func flattenPipe(node *ast.Pipe) []ast.Node {
	var stages []ast.Node
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		if p, ok := n.(*ast.Pipe); ok {
			walk(p.Left)
			walk(p.Right)
			return
		}
		stages = append(stages, n)
	}
	walk(node)
	return stages
}

// execPipeline wires every stage of node to its neighbors with OS pipes
// and runs them concurrently, reporting the rightmost stage's status.
// A stage may be any node kind, not just a simple command — a builtin or
// function stage runs in-process; an external stage goes through the
// usual runExternal path, so job.Manager still owns and waits on that
// stage's process individually (each external stage is its own job-table
// entry rather than one shared process group, since a pipeline mixing
// builtin and external stages has no single pgid to group them under).
// Every stage executes against its own snapshot Executor (stageExecutor),
// never the shared one: stages run on separate goroutines, and a stage
// that assigns a variable, defines a function, or swaps stdio must not
// race against its siblings — nor leak the mutation into the parent,
// matching real shells' run-each-stage-in-a-subshell semantics.
func (ex *Executor) execPipeline(node *ast.Pipe, foreground bool) (int, error) {
	stages := flattenPipe(node)
	n := len(stages)

	readers := make([]io.Reader, n)
	writers := make([]io.Writer, n)
	readers[0] = ex.Stdin
	writers[n-1] = ex.Stdout

	var opened []*os.File
	for i := 0; i < n-1; i++ {
		pr, pw, err := os.Pipe()
		if err != nil {
			for _, f := range opened {
				_ = f.Close()
			}
			return 1, shellerr.Runtime("exec", 1, "pipe: %v", err)
		}
		writers[i] = pw
		readers[i+1] = pr
		opened = append(opened, pr, pw)
	}

	run := func() int {
		var g errgroup.Group
		statuses := make([]int, n)
		for i, stage := range stages {
			i, stage := i, stage
			g.Go(func() error {
				if pw, ok := writers[i].(*os.File); ok && i < n-1 {
					defer pw.Close()
				}
				if pr, ok := readers[i].(*os.File); ok && i > 0 {
					defer pr.Close()
				}
				std := stdio{In: readers[i], Out: writers[i], Err: ex.Stderr}
				status, err := ex.runPipelineStage(stage, std)
				statuses[i] = status
				return err
			})
		}
		_ = g.Wait()
		return statuses[n-1]
	}

	if !foreground {
		go run()
		ex.LastBgPID = ex.ShellPID
		return 0, nil
	}
	return run(), nil
}

// runPipelineStage executes one pipeline stage against std, returning its
// exit status. The stage gets a snapshot Executor of its own, so nothing
// it does touches state a concurrently running sibling stage can see.
func (ex *Executor) runPipelineStage(n ast.Node, std stdio) (int, error) {
	sub := ex.stageExecutor(std)
	sig, err := sub.Execute(n)
	switch sig.Kind {
	case SigExit, SigReturn:
		return sig.Code, err
	default:
		return sub.Status, err
	}
}
