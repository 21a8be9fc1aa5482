package binding

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleData() map[string]any {
	return map[string]any{
		"title": "Inspection",
		"findings": []any{
			map[string]any{"title": "Rust", "photos": []any{"a.jpg", "b.jpg"}},
			map[string]any{"title": "Leak", "photos": []any{}},
		},
		"owner": map[string]any{"name": "Ops", "score": 4.5},
	}
}

func TestResolveFansOutArrays(t *testing.T) {
	root := NewRoot(sampleData())
	refs, err := Resolve(root, "findings")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	var paths []string
	for _, r := range refs {
		paths = append(paths, r.Path)
	}
	want := []string{"$.findings[0]", "$.findings[1]"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
	if refs[1].Index != 1 {
		t.Fatalf("expected index 1, got %d", refs[1].Index)
	}

	photos, err := Resolve(root, "findings.photos")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if len(photos) != 2 {
		t.Fatalf("expected 2 photos across findings, got %d", len(photos))
	}
}

func TestResolveMissingPathIsEmpty(t *testing.T) {
	refs, err := Resolve(NewRoot(sampleData()), "nothing.here")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected no refs, got %d", len(refs))
	}
}

func TestResolveOneErrors(t *testing.T) {
	root := NewRoot(sampleData())
	if _, err := ResolveOne(root, "findings"); !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("expected ErrAmbiguous, got %v", err)
	}
	if _, err := ResolveOne(root, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	ref, err := ResolveOne(root, "owner")
	if err != nil {
		t.Fatalf("ResolveOne returned error: %v", err)
	}
	item, err := ResolveOne(ref, "$.findings[0].title")
	if err != nil {
		t.Fatalf("absolute path failed: %v", err)
	}
	if item.Value != "Rust" {
		t.Fatalf("expected Rust, got %v", item.Value)
	}
}

func TestRefInterpolateFallsBackToRoot(t *testing.T) {
	root := NewRoot(sampleData())
	refs, _ := Resolve(root, "findings")
	got, err := refs[0].Interpolate("${title} / ${owner.name} / ${$.title} / ${unknown}")
	if err != nil {
		t.Fatalf("Interpolate returned error: %v", err)
	}
	want := "Rust / Ops / Inspection / ${unknown}"
	if got != want {
		t.Fatalf("Interpolate() = %q, want %q", got, want)
	}
}

func TestInterpolateFormatsNumbers(t *testing.T) {
	got, err := NewRoot(sampleData()).Interpolate("score ${owner.score}")
	if err != nil {
		t.Fatalf("Interpolate returned error: %v", err)
	}
	if got != "score 4.5" {
		t.Fatalf("unexpected interpolation: %q", got)
	}
}

func TestInterpolateRejectsAmbiguousPath(t *testing.T) {
	root := NewRoot(sampleData())
	if _, err := root.Interpolate("T: ${findings.title}"); !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("expected ErrAmbiguous, got %v", err)
	}
	got, err := root.Interpolate("T: ${findings[1].title}")
	if err != nil {
		t.Fatalf("indexed path failed: %v", err)
	}
	if got != "T: Leak" {
		t.Fatalf("unexpected interpolation: %q", got)
	}
}

func TestSatisfied(t *testing.T) {
	root := NewRoot(sampleData())
	refs, _ := Resolve(root, "findings")
	if !Satisfied(refs[0], "photos") {
		t.Fatalf("first finding has photos")
	}
	if Satisfied(refs[1], "photos") {
		t.Fatalf("second finding has no photos")
	}
}
