package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pavelanni/traderpath/internal/model"
	"github.com/pavelanni/traderpath/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadStagesReimportsChangedFile(t *testing.T) {
	db := newTestStore(t)
	path := filepath.Join(t.TempDir(), "stages.json")

	write := func(body string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	write(`[{"name":"Foundations","order_index":1,"materials":[{"title":"Intro","url":"https://example.com/a"}]},
	        {"name":"Risk","order_index":2}]`)
	if err := loadStages(db, []string{path}); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if err := loadStages(db, []string{path}); err != nil {
		t.Fatalf("unchanged load: %v", err)
	}
	stages, _ := db.ListStages(true)
	if len(stages) != 2 {
		t.Fatalf("stages = %d, want 2", len(stages))
	}

	write(`[{"name":"Foundations","description":"Basics","order_index":1},
	        {"name":"Risk","order_index":2},
	        {"name":"Execution","order_index":3}]`)
	if err := loadStages(db, []string{path}); err != nil {
		t.Fatalf("changed load: %v", err)
	}
	stages, _ = db.ListStages(true)
	if len(stages) != 3 {
		t.Fatalf("stages after reimport = %d, want 3", len(stages))
	}
	for _, st := range stages {
		if st.Name == "Foundations" && st.Description != "Basics" {
			t.Errorf("Foundations not updated: %+v", st)
		}
	}

	if err := loadStages(db, []string{filepath.Join(t.TempDir(), "missing.json")}); err != nil {
		t.Errorf("missing file should be skipped: %v", err)
	}
	write(`{not json`)
	if err := loadStages(db, []string{path}); err == nil {
		t.Error("expected parse error")
	}
}

func TestSeedAdmin(t *testing.T) {
	db := newTestStore(t)
	if err := seedAdmin(db, ""); err == nil {
		t.Fatal("expected error without password")
	}
	if err := seedAdmin(db, "s3cret-pass"); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	u, err := db.GetUserByUsername("admin")
	if err != nil || u == nil || u.Role != model.RoleTeamLead {
		t.Fatalf("admin = %+v, %v", u, err)
	}
	// A populated database is left alone.
	if err := seedAdmin(db, ""); err != nil {
		t.Errorf("second seed: %v", err)
	}
}
