package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lucrnz/ai-movies-rec-app/internal/recommend"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "movierec version "+version) {
		t.Errorf("output = %q", out.String())
	}
}

func TestConfigCommandMasksSecrets(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TMDB_API_KEY", "tmdb-secret")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("MOVIEREC_PROVIDER", "")
	t.Setenv("MOVIEREC_CONFIG", "")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	got := out.String()
	if strings.Contains(got, "tmdb-secret") {
		t.Error("config output leaks the catalog key")
	}
	if !strings.Contains(got, "# provider: ollama") {
		t.Errorf("output missing provider line:\n%s", got)
	}
}

func TestPrintMovies(t *testing.T) {
	year := "1979"
	movies := []recommend.EnrichedMovie{
		{Item: recommend.Item{ID: 348, Title: "Alien", Reason: "Claustrophobic horror."}, ReleaseYear: &year},
		{Item: recommend.Item{ID: 603, Title: "The Matrix", Reason: "Reality bending."}},
	}

	tests := []struct {
		name   string
		movies []recommend.EnrichedMovie
		json   bool
		want   string
	}{
		{name: "text", movies: movies, want: "1. Alien (1979)\n   Claustrophobic horror.\n2. The Matrix\n   Reality bending.\n"},
		{name: "empty", want: "No movies found.\n"},
		{name: "json", movies: movies[1:], json: true, want: `"title": "The Matrix"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := printMovies(&buf, tt.movies, tt.json); err != nil {
				t.Fatalf("printMovies() error = %v", err)
			}
			if tt.json {
				if !strings.Contains(buf.String(), tt.want) {
					t.Errorf("output = %q, want substring %q", buf.String(), tt.want)
				}
				return
			}
			if buf.String() != tt.want {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}
