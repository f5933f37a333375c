package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

type stubKV struct{ key string }

func (s stubKV) GetKey() string { return s.key }

func TestMemoryBackendRoundTrip(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()
	if err := b.Write(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	data, ok, err := b.Read(ctx, "k")
	if err != nil || !ok || string(data) != "v" {
		t.Fatalf("got %q %v %v", data, ok, err)
	}
	if _, ok, _ := b.Read(ctx, "missing"); ok {
		t.Fatal("want miss for unknown key")
	}
}

func TestFSBackendRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	b, err := NewFSBackend(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := b.Write(ctx, "thesaurus_engineer", []byte(`{"a":1}`)); err != nil {
		t.Fatal(err)
	}
	data, ok, err := b.Read(ctx, "thesaurus_engineer")
	if err != nil || !ok || string(data) != `{"a":1}` {
		t.Fatalf("got %q %v %v", data, ok, err)
	}
}

func TestStoreSaveToAllAndLoadPrefersFastestProfile(t *testing.T) {
	s := NewStore()
	mem := NewMemoryBackend()
	dir := t.TempDir()
	fs, err := NewFSBackend(dir)
	if err != nil {
		t.Fatal(err)
	}
	s.AddProfile("memory", mem)
	s.AddProfile("fs", fs)

	ctx := context.Background()
	rec := stubKV{key: "role_engineer"}
	if err := s.SaveToAll(ctx, rec, []byte("payload")); err != nil {
		t.Fatal(err)
	}

	s.RefreshRanking(ctx, time.Second)

	data, err := s.Load(ctx, "role_engineer")
	if err != nil || string(data) != "payload" {
		t.Fatalf("got %q %v", data, err)
	}
}

func TestStoreLoadMissReturnsErrNotFound(t *testing.T) {
	s := NewStore()
	s.AddProfile("memory", NewMemoryBackend())
	_, err := s.Load(context.Background(), "nope")
	if err == nil {
		t.Fatal("want error for missing key")
	}
}

func TestStoreSaveToProfileUnknownProfile(t *testing.T) {
	s := NewStore()
	s.AddProfile("memory", NewMemoryBackend())
	err := s.SaveToProfile(context.Background(), "nonexistent", stubKV{key: "k"}, []byte("v"))
	if err == nil {
		t.Fatal("want error for unknown profile")
	}
}

func TestKeyCanonicalizesName(t *testing.T) {
	if got := Key("thesaurus", "Software Engineer"); got != "thesaurus_softwareengineer" {
		t.Fatalf("got %q", got)
	}
}
