package expr

import (
	"testing"
)

// ---------------------------------------------------------------------------
// Compile
// ---------------------------------------------------------------------------

func TestCompile(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantErr bool
	}{
		{"count call", `count("pickFinalAnswer") > 0`, false},
		{"counts map", `counts.searchMovies >= target`, false},
		{"last", `last == "pickFinalAnswer"`, false},
		{"empty", ``, true},
		{"bad syntax", `count( > `, true},
		{"non-bool result", `target + 1`, true},
		{"unknown variable", `finished`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Compile(tt.source)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Compile(%q) error = %v, wantErr %v", tt.source, err, tt.wantErr)
			}
			if err == nil && c.Source != tt.source {
				t.Errorf("Source = %q, want %q", c.Source, tt.source)
			}
		})
	}
}

func TestMustCompilePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustCompile did not panic on invalid source")
		}
	}()
	MustCompile("")
}

// ---------------------------------------------------------------------------
// EvalBool
// ---------------------------------------------------------------------------

func TestEvalBool(t *testing.T) {
	strict := MustCompile(`count("finalize") > 0 && count("consult") > 0 && count("search") >= target`)

	tests := []struct {
		name  string
		cond  *CompiledExpr
		calls []string
		want  bool
	}{
		{"empty record", strict, nil, false},
		{"finalize without searches", strict, []string{"consult", "finalize"}, false},
		{"all satisfied", strict, []string{"consult", "search", "search", "finalize"}, true},
		{"last call", MustCompile(`last == "finalize"`), []string{"search", "finalize"}, true},
		{"missing key reads zero", MustCompile(`counts.nothing == 0`), []string{"search"}, true},
		{"calls length", MustCompile(`len(calls) > 2`), []string{"a", "b"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalBool(tt.cond, NewEnv(tt.calls, 2))
			if err != nil {
				t.Fatalf("EvalBool() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvalBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvalBoolFillsCount(t *testing.T) {
	c := MustCompile(`count("search") == 2`)
	got, err := EvalBool(c, Env{Calls: []string{"search", "search"}})
	if err != nil {
		t.Fatalf("EvalBool() error = %v", err)
	}
	if !got {
		t.Error("EvalBool() = false, want true")
	}
}

func TestEvalBoolNil(t *testing.T) {
	if _, err := EvalBool(nil, Env{}); err == nil {
		t.Error("expected error for nil expression")
	}
}
