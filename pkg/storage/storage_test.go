package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = %v, %v", ok, err)
	}
	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok, err := s.Get(ctx, "k"); err != nil || !ok || v != "v" {
		t.Fatalf("Get(k) = %q, %v, %v", v, ok, err)
	}
	if err := s.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove(missing): %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("key still present after Remove")
	}
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemoryStorage())
}

func TestFileStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	exerciseStorage(t, NewFileStorage(dir))
}

func TestFileStorage_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	if err := NewFileStorage(dir).Set(ctx, "walletmesh:theme", "dark"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := NewFileStorage(dir).Get(ctx, "walletmesh:theme")
	if err != nil || !ok || v != "dark" {
		t.Errorf("Get = %q, %v, %v", v, ok, err)
	}
	if _, err := os.Stat(filepath.Join(dir, preferencesFileName+".tmp")); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestFileStorage_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, preferencesFileName), []byte("{oops"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewFileStorage(dir).Get(context.Background(), "k"); err == nil {
		t.Error("expected error for corrupt file")
	}
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	p := NewPreferences(NewMemoryStorage())

	if theme, _ := p.Theme(ctx); theme != "system" {
		t.Errorf("default theme = %q, want system", theme)
	}
	_ = p.SetTheme(ctx, "dark")
	if theme, _ := p.Theme(ctx); theme != "dark" {
		t.Errorf("theme = %q, want dark", theme)
	}

	_ = p.SetPreferredWallet(ctx, "io.metamask")
	if id, ok, _ := p.PreferredWallet(ctx); !ok || id != "io.metamask" {
		t.Errorf("PreferredWallet = %q, %v", id, ok)
	}
	_ = p.ClearPreferredWallet(ctx)
	if _, ok, _ := p.PreferredWallet(ctx); ok {
		t.Error("preferred wallet not cleared")
	}
}
