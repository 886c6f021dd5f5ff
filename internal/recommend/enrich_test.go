package recommend

import (
	"context"
	"testing"

	"github.com/lucrnz/ai-movies-rec-app/internal/catalog"
)

type outcomeCounter map[string]int

func (o outcomeCounter) Enrichment(outcome string) { o[outcome]++ }

func TestEnrich(t *testing.T) {
	cat := newFakeCatalog(
		catalog.Details{ID: 1, Overview: "A thief.", PosterPath: strPtr("/p.jpg"), ReleaseDate: "2010-07-15"},
		catalog.Details{ID: 2, ReleaseDate: ""},
	)
	cat.failing[3] = true
	counts := outcomeCounter{}
	e := NewEnricher(cat, 2, nil, counts)

	tests := []struct {
		id       int64
		wantOK   bool
		poster   *string
		overview *string
		year     *string
	}{
		{1, true, strPtr("/p.jpg"), strPtr("A thief."), strPtr("2010")},
		{2, true, nil, nil, nil},
		{3, true, nil, nil, nil},
		{4, false, nil, nil, nil},
	}
	for _, tt := range tests {
		item := Item{ID: tt.id, Title: "T", Reason: reasonFor(int(tt.id))}
		m, ok, err := e.Enrich(context.Background(), item)
		if err != nil {
			t.Fatalf("id %d: error = %v", tt.id, err)
		}
		if ok != tt.wantOK {
			t.Errorf("id %d: ok = %v, want %v", tt.id, ok, tt.wantOK)
			continue
		}
		if m.Item != item {
			t.Errorf("id %d: item changed to %+v", tt.id, m.Item)
		}
		if !equalPtr(m.PosterURL, tt.poster) || !equalPtr(m.Overview, tt.overview) || !equalPtr(m.ReleaseYear, tt.year) {
			t.Errorf("id %d: got poster=%v overview=%v year=%v", tt.id, deref(m.PosterURL), deref(m.Overview), deref(m.ReleaseYear))
		}
	}
	if counts["found"] != 2 || counts["not_found"] != 1 || counts["error"] != 1 {
		t.Errorf("outcomes = %v", counts)
	}
}

func TestEnrichAllKeepsOrder(t *testing.T) {
	var movies []catalog.Details
	for i := int64(1); i <= 8; i++ {
		movies = append(movies, catalog.Details{ID: i, ReleaseDate: "1999-01-01"})
	}
	cat := newFakeCatalog(movies...)
	e := NewEnricher(cat, 3, nil, nil)

	items := []Item{{ID: 5}, {ID: 42}, {ID: 1}, {ID: 8}, {ID: 3}}
	got, err := e.EnrichAll(context.Background(), items)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{5, 1, 8, 3}
	if len(got) != len(want) {
		t.Fatalf("got %d movies, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: id %d, want %d", i, got[i].ID, id)
		}
	}
}

func TestEnrichAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cat := newFakeCatalog()
	cat.failing[1] = true
	if _, err := NewEnricher(cat, 1, nil, nil).EnrichAll(ctx, []Item{{ID: 1}}); err == nil {
		t.Error("EnrichAll() on a canceled context returned nil error")
	}
}

func TestReleaseYear(t *testing.T) {
	tests := map[string]*string{
		"2010-07-15": strPtr("2010"),
		"1999-":      strPtr("1999"),
		"":           nil,
		"2010":       nil,
		"-05-01":     nil,
	}
	for in, want := range tests {
		if got := ReleaseYear(in); !equalPtr(got, want) {
			t.Errorf("ReleaseYear(%q) = %v, want %v", in, deref(got), deref(want))
		}
	}
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
