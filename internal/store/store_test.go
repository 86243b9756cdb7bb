package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) err = %v, want ErrNotFound", err)
	}
	if err := s.Put(ctx, "k", `{"a":1}`); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != `{"a":1}` {
		t.Errorf("Get = %q", got)
	}
	if err := s.Put(ctx, "k", "second"); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	if got, _ := s.Get(ctx, "k"); got != "second" {
		t.Errorf("after overwrite Get = %q, want second", got)
	}

	for _, id := range []string{"a", "b", "c"} {
		if err := s.PutDeadLetter(ctx, id, []byte("rec-"+id)); err != nil {
			t.Fatalf("PutDeadLetter(%s): %v", id, err)
		}
	}
	letters, err := s.DeadLetters(ctx, 2)
	if err != nil {
		t.Fatalf("DeadLetters: %v", err)
	}
	if len(letters) != 2 {
		t.Fatalf("len = %d, want 2", len(letters))
	}
	if letters[0].ID != "c" || string(letters[0].Record) != "rec-c" {
		t.Errorf("newest = %+v", letters[0])
	}
	if letters[1].ID != "b" {
		t.Errorf("second = %+v", letters[1])
	}
	all, _ := s.DeadLetters(ctx, 0)
	if len(all) != 3 {
		t.Errorf("unlimited len = %d, want 3", len(all))
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	exerciseStore(t, s)
}

func TestBoltStore(t *testing.T) {
	s, err := OpenBolt(filepath.Join(t.TempDir(), "karajan.db"), "test-")
	if err != nil {
		t.Fatalf("OpenBolt: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestBoltStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "karajan.db")
	s, err := OpenBolt(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(context.Background(), "user:1", "ann"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = OpenBolt(path, "")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if got, err := s.Get(context.Background(), "user:1"); err != nil || got != "ann" {
		t.Errorf("Get = %q, %v", got, err)
	}
}

func TestBoltStore_PrefixIsolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "karajan.db")
	a, err := OpenBolt(path, "a-")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_ = a.Put(ctx, "k", "from-a")
	a.Close()

	b, err := OpenBolt(path, "b-")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if _, err := b.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("prefix b sees key from a: err = %v", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		dsn     string
		wantErr bool
	}{
		{"", false},
		{"memory", false},
		{"bolt://" + filepath.Join(t.TempDir(), "x.db"), false},
		{"redis://localhost", true},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			s, err := Open(ctx, tt.dsn, "")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open(%q) err = %v, wantErr %v", tt.dsn, err, tt.wantErr)
			}
			if s != nil {
				s.Close()
			}
		})
	}
}
