package exec

import (
	"bytes"
	"io"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lash-shell/lash/internal/shellerr"
)

// RunCommandSubstitution satisfies expand.CommandRunner: it parses and
// runs src against a cloned scope, so mutations to variables inside
// $(...) never escape it, capturing stdout. The capture pipe is
// drained concurrently with the child's execution via errgroup so a
// substitution that writes more than the pipe buffer holds can't
// deadlock against its own completion.
func (ex *Executor) RunCommandSubstitution(src string) (string, error) {
	prog, err := parseSource(src)
	if err != nil {
		return "", err
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return "", shellerr.Runtime("exec", 1, "pipe: %v", err)
	}

	sub := ex.stageExecutor(stdio{In: ex.Stdin, Out: pw, Err: ex.Stderr})

	var g errgroup.Group
	var out bytes.Buffer
	g.Go(func() error {
		defer pr.Close()
		_, err := io.Copy(&out, pr)
		return err
	})

	_, runErr := sub.Execute(prog)
	_ = pw.Close()
	_ = g.Wait()

	return strings.TrimRight(out.String(), "\n"), runErr
}
