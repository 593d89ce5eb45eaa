package db

import (
	"database/sql"
	"testing"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPreferences(t *testing.T) {
	db := openTestDB(t)

	if _, ok, err := GetPreference(db, "theme"); err != nil || ok {
		t.Fatalf("GetPreference(unset) = ok %v, err %v", ok, err)
	}

	if err := SetPreference(db, "theme", "dark"); err != nil {
		t.Fatalf("SetPreference() error = %v", err)
	}
	if err := SetPreference(db, "theme", "light"); err != nil {
		t.Fatalf("SetPreference(overwrite) error = %v", err)
	}
	v, ok, err := GetPreference(db, "theme")
	if err != nil || !ok || v != "light" {
		t.Fatalf("GetPreference() = %q, %v, %v; want light", v, ok, err)
	}

	if err := DeletePreference(db, "theme"); err != nil {
		t.Fatalf("DeletePreference() error = %v", err)
	}
	if err := DeletePreference(db, "theme"); err != nil {
		t.Fatalf("DeletePreference(missing) error = %v", err)
	}
	if _, ok, _ := GetPreference(db, "theme"); ok {
		t.Error("preference still present after delete")
	}
}

func TestOpenFolders(t *testing.T) {
	db := openTestDB(t)

	for _, id := range []int64{3, 7} {
		if err := SetFolderOpen(db, id, true); err != nil {
			t.Fatalf("SetFolderOpen(%d) error = %v", id, err)
		}
	}
	// Opening twice is an upsert.
	if err := SetFolderOpen(db, 3, true); err != nil {
		t.Fatalf("SetFolderOpen(repeat) error = %v", err)
	}
	if err := SetFolderOpen(db, 7, false); err != nil {
		t.Fatalf("SetFolderOpen(close) error = %v", err)
	}

	open, err := OpenFolders(db)
	if err != nil {
		t.Fatalf("OpenFolders() error = %v", err)
	}
	if len(open) != 1 || !open[3] {
		t.Errorf("OpenFolders() = %v, want only 3", open)
	}
}

func TestSelection(t *testing.T) {
	db := openTestDB(t)
	sel := NewSelection(db)

	if _, ok, err := sel.Get(); err != nil || ok {
		t.Fatalf("Get(empty) = ok %v, err %v", ok, err)
	}

	if err := sel.Set(42); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	id, ok, err := sel.Get()
	if err != nil || !ok || id != 42 {
		t.Fatalf("Get() = %d, %v, %v; want 42", id, ok, err)
	}

	raw, _, _ := GetPreference(db, SelectedFolderKey)
	if raw != "42" {
		t.Errorf("stored value = %q, want \"42\"", raw)
	}

	if err := sel.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, ok, _ := sel.Get(); ok {
		t.Error("selection survived Clear")
	}
}

func TestSelection_CorruptValueIsCleared(t *testing.T) {
	db := openTestDB(t)
	if err := SetPreference(db, SelectedFolderKey, "not-a-number"); err != nil {
		t.Fatalf("SetPreference() error = %v", err)
	}

	id, ok, err := NewSelection(db).Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok || id != 0 {
		t.Errorf("Get() = %d, %v; want no selection", id, ok)
	}
	if _, stillThere, _ := GetPreference(db, SelectedFolderKey); stillThere {
		t.Error("corrupt value was not cleared")
	}
}
