package db

import (
	"testing"
	"testing/fstest"
)

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_clients.sql": {Data: []byte("SELECT 1")},
		"001_init.sql":    {Data: []byte("SELECT 1")},
		"003_next.SQL":    {Data: []byte("SELECT 1")},
		"README.md":       {Data: []byte("docs")},
		"sub/004.sql":     {Data: []byte("SELECT 1")},
	}

	got, err := pendingMigrations(fsys, map[string]bool{"001_init.sql": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"002_clients.sql", "003_next.SQL"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
