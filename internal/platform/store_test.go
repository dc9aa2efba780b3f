package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirResourceStoreEmptyDirYieldsNoResources(t *testing.T) {
	s, err := NewDirResourceStore("")
	if err != nil {
		t.Fatalf("NewDirResourceStore: %v", err)
	}
	if _, ok := s.ID("anything"); ok {
		t.Error("expected no resources for an empty dir path")
	}
}

func TestDirResourceStoreIndexesFilesBySortedName(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	s, err := NewDirResourceStore(dir)
	if err != nil {
		t.Fatalf("NewDirResourceStore: %v", err)
	}

	idA, ok := s.ID("a.png")
	if !ok {
		t.Fatal("expected a.png to be indexed")
	}
	idB, ok := s.ID("b.png")
	if !ok {
		t.Fatal("expected b.png to be indexed")
	}
	if idA != 1 || idB != 2 {
		t.Errorf("ids = a:%d b:%d, want sorted order a:1 b:2", idA, idB)
	}

	data, err := s.Data(idA)
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if string(data) != "a.png" {
		t.Errorf("Data(a) = %q, want %q", data, "a.png")
	}
}

func TestMemDatabaseRepositoryAddGetRoundTrip(t *testing.T) {
	repo := NewMemDatabaseRepository()
	db, err := repo.Open("scores")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	id, err := db.Add([]byte("record-1"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := db.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "record-1" {
		t.Errorf("Get = %q, want %q", got, "record-1")
	}

	if ids := db.RecordIDs(); len(ids) != 1 || ids[0] != id {
		t.Errorf("RecordIDs = %v, want [%d]", ids, id)
	}
}

func TestMemDatabaseRepositoryReopenReturnsSameDatabase(t *testing.T) {
	repo := NewMemDatabaseRepository()
	db1, _ := repo.Open("scores")
	id, _ := db1.Add([]byte("x"))

	db2, err := repo.Open("scores")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := db2.Get(id); err != nil {
		t.Errorf("expected reopened database to retain records: %v", err)
	}
}
