package exclusion

import (
	"reflect"
	"testing"
)

func TestNew_SeedsHistory(t *testing.T) {
	s := New([]string{"a", "b", "a"})
	if s.Len() != 2 {
		t.Errorf("expected 2 ids, got %d", s.Len())
	}
	if !s.Contains("a") || !s.Contains("b") {
		t.Error("expected history ids to be excluded")
	}
	if s.Contains("c") {
		t.Error("unexpected id c")
	}
	if len(s.Ignored()) != 0 {
		t.Errorf("history must not appear on the ignore list, got %v", s.Ignored())
	}
}

func TestAdd_Idempotent(t *testing.T) {
	s := New(nil)
	s.Add("x")
	s.Add("x")
	if s.Len() != 1 {
		t.Errorf("expected 1 id, got %d", s.Len())
	}
}

func TestIgnore_RecordsOrder(t *testing.T) {
	s := New([]string{"h"})
	s.Ignore("p2")
	s.Ignore("p1")
	s.Ignore("p2")
	s.Ignore("h")

	want := []string{"p2", "p1"}
	if got := s.Ignored(); !reflect.DeepEqual(got, want) {
		t.Errorf("Ignored() = %v, want %v", got, want)
	}
	if s.Len() != 3 {
		t.Errorf("expected 3 ids, got %d", s.Len())
	}
}

func TestIgnored_ReturnsCopy(t *testing.T) {
	s := New(nil)
	s.Ignore("a")
	got := s.Ignored()
	got[0] = "mutated"
	if s.Ignored()[0] != "a" {
		t.Error("Ignored must not expose internal state")
	}
}
