package expr

import (
	"fmt"

	"github.com/expr-lang/expr"
)

// EvalBool evaluates a compiled condition against env.
func EvalBool(compiled *CompiledExpr, env Env) (bool, error) {
	if compiled == nil || compiled.program == nil {
		return false, fmt.Errorf("nil compiled expression")
	}
	if env.Count == nil {
		env = NewEnv(env.Calls, env.Target)
	}

	result, err := expr.Run(compiled.program, env)
	if err != nil {
		return false, fmt.Errorf("expression eval error for %q: %w", compiled.Source, err)
	}

	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, expected bool", compiled.Source, result)
	}
	return b, nil
}
