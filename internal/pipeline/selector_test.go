package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/danielorf/ArtCaptionBot/internal/exclusion"
	"github.com/danielorf/ArtCaptionBot/internal/model"
	"github.com/danielorf/ArtCaptionBot/internal/source"
)

// fakeSource returns items for every category, or the next queued error
type fakeSource struct {
	items      []model.ContentItem
	errs       []error
	calls      int
	categories []string
	limits     []int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) ListCandidates(_ context.Context, category string, limit int) ([]model.ContentItem, error) {
	f.calls++
	f.categories = append(f.categories, category)
	f.limits = append(f.limits, limit)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.items, nil
}

var _ source.ContentSource = (*fakeSource)(nil)

func item(id, url string) model.ContentItem {
	return model.ContentItem{ID: id, Title: "post " + id, URL: url, Permalink: "https://redd.it/" + id}
}

func TestSelector_SkipsExcludedAndInvalid(t *testing.T) {
	src := &fakeSource{items: []model.ContentItem{
		item("p1", "https://i.redd.it/p1.jpg"),
		item("p2", "https://example.com/p2.txt"),
		item("p4", "https://v.redd.it/p4.mp4"),
		item("p3", "https://i.redd.it/p3.png"),
		item("p5", "https://i.redd.it/p5.gif"),
	}}
	sel := NewSelector(src, []string{"pics"}, 0)

	got, err := sel.Select(context.Background(), exclusion.New([]string{"p1"}))
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if got.ID != "p3" {
		t.Errorf("expected p3, got %s", got.ID)
	}
	if got.Category != "pics" {
		t.Errorf("expected category to be filled, got %q", got.Category)
	}
	if src.limits[0] != source.DefaultLimit {
		t.Errorf("expected default limit %d, got %d", source.DefaultLimit, src.limits[0])
	}
}

func TestSelector_DoesNotExcludeSkippedItems(t *testing.T) {
	src := &fakeSource{items: []model.ContentItem{
		item("p2", "https://example.com/p2.txt"),
		item("p3", "https://i.redd.it/p3.png"),
	}}
	ex := exclusion.New(nil)

	if _, err := NewSelector(src, []string{"pics"}, 10).Select(context.Background(), ex); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if ex.Contains("p2") || ex.Len() != 0 {
		t.Errorf("selection must not change exclusions, len=%d", ex.Len())
	}
}

func TestSelector_NeverReturnsExcludedOrInvalid(t *testing.T) {
	items := []model.ContentItem{
		item("a", "https://x/a.jpg"),
		item("b", "https://x/b.html"),
		item("c", "https://x/c.jpeg"),
		item("d", "https://x/d"),
		item("e", "https://x/e.bmp"),
		item("f", "https://x/f.webm"),
		item("g", "https://x/g.PNG"),
	}
	src := &fakeSource{items: items}
	sel := NewSelector(src, []string{"pics"}, 10)
	ex := exclusion.New(nil)

	var picked []string
	for {
		got, err := sel.Select(context.Background(), ex)
		if errors.Is(err, ErrNoCandidateAvailable) {
			break
		}
		if err != nil {
			t.Fatalf("Select failed: %v", err)
		}
		if ex.Contains(got.ID) {
			t.Fatalf("selected excluded item %s", got.ID)
		}
		picked = append(picked, got.ID)
		ex.Ignore(got.ID)
	}

	want := []string{"a", "c", "e", "g"}
	if len(picked) != len(want) {
		t.Fatalf("picked %v, want %v", picked, want)
	}
	for i := range want {
		if picked[i] != want[i] {
			t.Errorf("picked[%d] = %s, want %s", i, picked[i], want[i])
		}
	}
}

func TestSelector_RandomCategory(t *testing.T) {
	src := &fakeSource{items: []model.ContentItem{item("p", "https://x/p.jpg")}}
	sel := NewSelector(src, []string{"a", "b", "c"}, 5)
	sel.intn = func(n int) int { return n - 1 }

	got, err := sel.Select(context.Background(), exclusion.New(nil))
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if src.categories[0] != "c" || got.Category != "c" {
		t.Errorf("expected category c, got %v / %q", src.categories, got.Category)
	}
}

func TestSelector_SourceUnavailable(t *testing.T) {
	cause := errors.New("connection reset")
	src := &fakeSource{errs: []error{cause}}

	_, err := NewSelector(src, []string{"pics"}, 5).Select(context.Background(), exclusion.New(nil))
	var unavailable *SourceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected SourceUnavailableError, got %v", err)
	}
	if unavailable.Category != "pics" || !errors.Is(err, cause) {
		t.Errorf("unexpected error detail: %+v", unavailable)
	}
}

func TestSelector_NoCandidates(t *testing.T) {
	src := &fakeSource{items: []model.ContentItem{item("p1", "https://x/p1.jpg")}}
	_, err := NewSelector(src, []string{"pics"}, 5).Select(context.Background(), exclusion.New([]string{"p1"}))
	if !errors.Is(err, ErrNoCandidateAvailable) {
		t.Errorf("expected ErrNoCandidateAvailable, got %v", err)
	}
}

func TestSafetyFilter(t *testing.T) {
	explicit := model.Annotation{CaptionText: "x", IsExplicit: true}
	if err := (SafetyFilter{Enabled: true}).Reject(explicit); !errors.Is(err, ErrExplicitContent) {
		t.Errorf("expected ErrExplicitContent, got %v", err)
	}
	if err := (SafetyFilter{Enabled: false}).Reject(explicit); err != nil {
		t.Errorf("disabled filter rejected: %v", err)
	}
	if err := (SafetyFilter{Enabled: true}).Reject(model.Annotation{CaptionText: "x"}); err != nil {
		t.Errorf("clean annotation rejected: %v", err)
	}
}
