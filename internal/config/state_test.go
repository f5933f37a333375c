package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeStateConfig(t *testing.T, path, kgDir string) {
	t.Helper()
	content := `
roles:
  engineer:
    name: engineer
    kg:
      path: ` + kgDir + `
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeLogseqPage(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".md"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestStateBuildsAndCachesRoleGraph(t *testing.T) {
	kgDir := t.TempDir()
	writeLogseqPage(t, kgDir, "kubernetes", "---\ntitle:: Kubernetes\n---\n")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeStateConfig(t, path, kgDir)

	s, err := NewState(path, WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	role, ok := s.Role("engineer")
	if !ok {
		t.Fatal("want engineer role present")
	}

	rg1, err := s.RoleGraph(context.Background(), role)
	if err != nil {
		t.Fatal(err)
	}
	rg2, err := s.RoleGraph(context.Background(), role)
	if err != nil {
		t.Fatal(err)
	}
	if rg1 != rg2 {
		t.Fatal("want cached role graph to be the same instance across calls")
	}
}

func TestStateInvalidateRoleForcesRebuild(t *testing.T) {
	kgDir := t.TempDir()
	writeLogseqPage(t, kgDir, "kubernetes", "---\ntitle:: Kubernetes\n---\n")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeStateConfig(t, path, kgDir)

	s, err := NewState(path, WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	role, _ := s.Role("engineer")
	rg1, err := s.RoleGraph(context.Background(), role)
	if err != nil {
		t.Fatal(err)
	}

	s.InvalidateRole("engineer")

	rg2, err := s.RoleGraph(context.Background(), role)
	if err != nil {
		t.Fatal(err)
	}
	if rg1 == rg2 {
		t.Fatal("want a fresh role graph instance after invalidation")
	}
}
