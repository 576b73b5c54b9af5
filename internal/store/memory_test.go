package store

import (
	"context"
	"errors"
	"testing"

	"github.com/brokerload/lenderdesk/internal/lender"
)

func mustCreate(t *testing.T, s *MemoryLenderStore, name, code string) *lender.Lender {
	t.Helper()
	rec, err := s.Create(context.Background(), lender.CreateInput{
		Name: name, Code: code, UpfrontCommissionRate: 1, TrialCommissionRate: 1, Active: true,
	})
	if err != nil {
		t.Fatalf("create %s: %v", code, err)
	}
	return rec
}

func TestMemoryLenderStore_DuplicateCode(t *testing.T) {
	s := NewMemoryLenderStore()
	mustCreate(t, s, "First", "AAA")

	_, err := s.Create(context.Background(), lender.CreateInput{Name: "Second", Code: "AAA"})
	if !errors.Is(err, lender.ErrDuplicateCode) {
		t.Fatalf("err = %v, want ErrDuplicateCode", err)
	}
}

func TestMemoryLenderStore_CreationOrder(t *testing.T) {
	s := NewMemoryLenderStore()
	codes := []string{"CCC", "AAA", "BBB"}
	for _, c := range codes {
		mustCreate(t, s, "Lender "+c, c)
	}

	first, err := s.First(context.Background())
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first.Code != "CCC" {
		t.Errorf("first code = %q, want CCC", first.Code)
	}

	var seen []string
	err = s.ForEachOrderedByCreation(context.Background(), func(l *lender.Lender) error {
		seen = append(seen, l.Code)
		return nil
	})
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	for i, c := range codes {
		if seen[i] != c {
			t.Errorf("position %d = %q, want %q", i, seen[i], c)
		}
	}
}

func TestMemoryLenderStore_ForEachStopsOnError(t *testing.T) {
	s := NewMemoryLenderStore()
	mustCreate(t, s, "One", "AAA")
	mustCreate(t, s, "Two", "BBB")

	sentinel := errors.New("stop")
	calls := 0
	err := s.ForEachOrderedByCreation(context.Background(), func(*lender.Lender) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want sentinel", err)
	}
	if calls != 1 {
		t.Errorf("callback ran %d times, want 1", calls)
	}
}

func TestMemoryLenderStore_UpdateCodeChange(t *testing.T) {
	s := NewMemoryLenderStore()
	mustCreate(t, s, "One", "AAA")
	mustCreate(t, s, "Two", "BBB")

	_, err := s.Update(context.Background(), "AAA", lender.UpdateInput{Name: "One", Code: "BBB"})
	if !errors.Is(err, lender.ErrDuplicateCode) {
		t.Fatalf("collision err = %v, want ErrDuplicateCode", err)
	}

	rec, err := s.Update(context.Background(), "AAA", lender.UpdateInput{Name: "Renamed", Code: "CCC", Active: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if rec.Code != "CCC" || rec.Name != "Renamed" {
		t.Errorf("updated = %+v", rec)
	}
	if _, err := s.GetByCode(context.Background(), "AAA"); !errors.Is(err, lender.ErrNotFound) {
		t.Error("old code still resolves after rename")
	}
	if _, err := s.GetByCode(context.Background(), "CCC"); err != nil {
		t.Errorf("new code does not resolve: %v", err)
	}
}

func TestMemoryLenderStore_Delete(t *testing.T) {
	s := NewMemoryLenderStore()
	mustCreate(t, s, "One", "AAA")
	mustCreate(t, s, "Two", "BBB")

	if err := s.Delete(context.Background(), "AAA"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(context.Background(), "AAA"); !errors.Is(err, lender.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}

	first, err := s.First(context.Background())
	if err != nil {
		t.Fatalf("first after delete: %v", err)
	}
	if first.Code != "BBB" {
		t.Errorf("first after delete = %q, want BBB", first.Code)
	}
}

func TestMemoryLenderStore_ListOrderingWhitelist(t *testing.T) {
	s := NewMemoryLenderStore()
	mustCreate(t, s, "One", "AAA")

	_, err := s.List(context.Background(), lender.ListQuery{OrderBy: "password"})
	if !errors.Is(err, lender.ErrInvalidOrdering) {
		t.Fatalf("err = %v, want ErrInvalidOrdering", err)
	}

	for _, term := range []string{"", "created", "-created", "code", "-code", "upfront_commission_rate", "trial_commission_rate", "active"} {
		if _, err := s.List(context.Background(), lender.ListQuery{OrderBy: term}); err != nil {
			t.Errorf("ordering %q rejected: %v", term, err)
		}
	}
}

func TestMemoryLenderStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryLenderStore()
	mustCreate(t, s, "One", "AAA")

	rec, err := s.GetByCode(context.Background(), "AAA")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	rec.Name = "Mutated"

	again, err := s.GetByCode(context.Background(), "AAA")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if again.Name != "One" {
		t.Error("caller mutation leaked into the store")
	}
}
