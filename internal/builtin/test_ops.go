package builtin

import (
	"io"
	"os"
	"strconv"

	"github.com/lash-shell/lash/internal/exec"
)

// builtinTest implements `test expr` — a small subset of POSIX test(1):
// string comparison, integer comparison, and the common unary file/
// string predicates. It reports truth as exit status 0, falsity as 1,
// and usage errors as 2.
func builtinTest(_ *exec.Executor, argv []string, _ io.Reader, _, _ io.Writer) (int, error) {
	return evalTest(argv[1:]), nil
}

// builtinBracket implements `[ expr ]`, requiring the trailing `]`.
func builtinBracket(_ *exec.Executor, argv []string, _ io.Reader, _, _ io.Writer) (int, error) {
	args := argv[1:]
	if len(args) == 0 || args[len(args)-1] != "]" {
		return 2, nil
	}
	return evalTest(args[:len(args)-1]), nil
}

func boolStatus(b bool) int {
	if b {
		return 0
	}
	return 1
}

func evalTest(args []string) int {
	switch len(args) {
	case 0:
		return 1
	case 1:
		return boolStatus(args[0] != "")
	case 2:
		return evalUnary(args[0], args[1])
	case 3:
		return evalBinary(args[0], args[1], args[2])
	default:
		return 2
	}
}

func evalUnary(op, arg string) int {
	switch op {
	case "-z":
		return boolStatus(arg == "")
	case "-n":
		return boolStatus(arg != "")
	case "-e":
		_, err := os.Stat(arg)
		return boolStatus(err == nil)
	case "-f":
		fi, err := os.Stat(arg)
		return boolStatus(err == nil && fi.Mode().IsRegular())
	case "-d":
		fi, err := os.Stat(arg)
		return boolStatus(err == nil && fi.IsDir())
	case "-r":
		return boolStatus(accessible(arg, 0o444))
	case "-w":
		return boolStatus(accessible(arg, 0o222))
	case "-x":
		return boolStatus(accessible(arg, 0o111))
	case "-s":
		fi, err := os.Stat(arg)
		return boolStatus(err == nil && fi.Size() > 0)
	default:
		return 2
	}
}

func accessible(path string, bits os.FileMode) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.Mode().Perm()&bits != 0
}

func evalBinary(a, op, b string) int {
	switch op {
	case "=", "==":
		return boolStatus(a == b)
	case "!=":
		return boolStatus(a != b)
	case "-eq":
		return boolStatus(intOf(a) == intOf(b))
	case "-ne":
		return boolStatus(intOf(a) != intOf(b))
	case "-lt":
		return boolStatus(intOf(a) < intOf(b))
	case "-le":
		return boolStatus(intOf(a) <= intOf(b))
	case "-gt":
		return boolStatus(intOf(a) > intOf(b))
	case "-ge":
		return boolStatus(intOf(a) >= intOf(b))
	default:
		return 2
	}
}

func intOf(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
