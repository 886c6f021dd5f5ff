// Package expr compiles and evaluates the boolean conditions that decide when
// an agent run stops.
package expr

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Env is the environment a condition is evaluated against.
//
//	counts   map of tool name to number of invocations so far
//	calls    tool names in invocation order
//	last     name of the most recent invocation, "" before the first
//	target   number of items the run must produce
//	count(n) shorthand for counts[n], zero when absent
type Env struct {
	Counts map[string]int   `expr:"counts"`
	Calls  []string         `expr:"calls"`
	Last   string           `expr:"last"`
	Target int              `expr:"target"`
	Count  func(string) int `expr:"count"`
}

// NewEnv builds an environment from an ordered list of tool invocations.
func NewEnv(calls []string, target int) Env {
	counts := make(map[string]int, len(calls))
	for _, c := range calls {
		counts[c]++
	}
	env := Env{
		Counts: counts,
		Calls:  calls,
		Target: target,
		Count:  func(name string) int { return counts[name] },
	}
	if len(calls) > 0 {
		env.Last = calls[len(calls)-1]
	}
	return env
}

// CompiledExpr represents a compiled condition ready for evaluation.
type CompiledExpr struct {
	Source  string
	program *vm.Program
}

// Compile type-checks source against Env and requires a boolean result.
func Compile(source string) (*CompiledExpr, error) {
	if source == "" {
		return nil, fmt.Errorf("empty expression")
	}

	program, err := expr.Compile(source, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("expression compile error: %w", err)
	}

	return &CompiledExpr{
		Source:  source,
		program: program,
	}, nil
}

// MustCompile is like Compile but panics on error. It is meant for
// package-level conditions whose source is a constant.
func MustCompile(source string) *CompiledExpr {
	c, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return c
}
