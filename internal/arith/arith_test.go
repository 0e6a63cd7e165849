package arith

import (
	"testing"

	"gotest.tools/v3/assert"
)

type memVars map[string]string

func (m memVars) Get(name string) string     { return m[name] }
func (m memVars) Set(name, value string)     { m[name] = value }

func eval(t *testing.T, expr string, vars memVars) int64 {
	t.Helper()
	if vars == nil {
		vars = memVars{}
	}
	v, err := Eval(expr, vars)
	assert.NilError(t, err, "evaluating %q", expr)
	return v
}

func TestBasicArithmetic(t *testing.T) {
	cases := []struct {
		expr string
		want int64
	}{
		{"1+2", 3},
		{"2*3+4", 10},
		{"2+3*4", 14},
		{"(2+3)*4", 20},
		{"10/3", 3},
		{"10%3", 1},
		{"2**10", 1024},
		{"-5+3", -2},
		{"!0", 1},
		{"!5", 0},
		{"~0", -1},
		{"1<<4", 16},
		{"256>>4", 16},
		{"1&&0", 0},
		{"1||0", 1},
		{"5==5", 1},
		{"5!=5", 0},
		{"1?2:3", 2},
		{"0?2:3", 3},
	}
	for _, tc := range cases {
		assert.Equal(t, eval(t, tc.expr, nil), tc.want, "expr=%q", tc.expr)
	}
}

func TestVariableReferenceAndAssignment(t *testing.T) {
	vars := memVars{"x": "1", "y": "2"}
	assert.Equal(t, eval(t, "x+y", vars), int64(3))

	eval(t, "x=5", vars)
	assert.Equal(t, vars["x"], "5")

	eval(t, "x+=3", vars)
	assert.Equal(t, vars["x"], "8")
}

func TestUnsetVariableIsZero(t *testing.T) {
	vars := memVars{}
	assert.Equal(t, eval(t, "unset_var+1", vars), int64(1))
}

func TestIncrementDecrement(t *testing.T) {
	vars := memVars{"i": "5"}
	assert.Equal(t, eval(t, "i++", vars), int64(5))
	assert.Equal(t, vars["i"], "6")
	assert.Equal(t, eval(t, "++i", vars), int64(7))
	assert.Equal(t, vars["i"], "7")
}

func TestDivisionByZeroIsError(t *testing.T) {
	_, err := Eval("1/0", memVars{})
	assert.ErrorContains(t, err, "arithmetic: division by zero")
}

func TestModuloByZeroIsError(t *testing.T) {
	_, err := Eval("1%0", memVars{})
	assert.ErrorContains(t, err, "division by zero")
}
