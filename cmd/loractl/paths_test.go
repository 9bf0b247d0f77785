package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write file %s: %v", name, err)
		}
	}
}

func TestDiscoverModelsSorted(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "b.safetensors", "a.SAFETENSORS", "ignore.ckpt")

	got, err := discoverModels(dir)
	if err != nil {
		t.Fatalf("discoverModels returned error: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.SAFETENSORS"),
		filepath.Join(dir, "b.safetensors"),
	}
	if len(got) != len(want) {
		t.Fatalf("unexpected model count: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected ordering at %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestResolveModelPath(t *testing.T) {
	t.Run("model flag bypasses env", func(t *testing.T) {
		t.Setenv(envModelsDir, "")
		got, err := resolveModelPath("/tmp/base.safetensors", "", bytes.NewBuffer(nil), io.Discard)
		if err != nil {
			t.Fatalf("resolveModelPath returned error: %v", err)
		}
		if got != filepath.Clean("/tmp/base.safetensors") {
			t.Fatalf("unexpected model path: got %q", got)
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		t.Setenv(envModelsDir, "")
		if _, err := resolveModelPath("", "", bytes.NewBuffer(nil), io.Discard); err == nil {
			t.Fatal("expected error without model or models dir")
		}
	})

	t.Run("single model selects automatically", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, "only.safetensors")
		t.Setenv(envModelsDir, dir)

		prevTTY := stdinIsTTY
		stdinIsTTY = func() bool { return false }
		defer func() { stdinIsTTY = prevTTY }()

		got, err := resolveModelPath("", "", bytes.NewBuffer(nil), io.Discard)
		if err != nil {
			t.Fatalf("resolveModelPath returned error: %v", err)
		}
		if want := filepath.Join(dir, "only.safetensors"); got != want {
			t.Fatalf("unexpected model path: got %q want %q", got, want)
		}
	})

	t.Run("multiple models requires tty", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, "a.safetensors", "b.safetensors")
		t.Setenv(envModelsDir, dir)

		prevTTY := stdinIsTTY
		stdinIsTTY = func() bool { return false }
		defer func() { stdinIsTTY = prevTTY }()

		if _, err := resolveModelPath("", "", bytes.NewBuffer(nil), io.Discard); err == nil {
			t.Fatalf("expected error when multiple models and stdin is not a tty")
		}
	})

	t.Run("interactive selection chooses sorted index", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, "b.safetensors", "a.safetensors")
		t.Setenv(envModelsDir, dir)

		prevTTY := stdinIsTTY
		stdinIsTTY = func() bool { return true }
		defer func() { stdinIsTTY = prevTTY }()

		got, err := resolveModelPath("", "", bytes.NewBufferString("7\n2\n"), io.Discard)
		if err != nil {
			t.Fatalf("resolveModelPath returned error: %v", err)
		}
		if want := filepath.Join(dir, "b.safetensors"); got != want {
			t.Fatalf("unexpected model selection: got %q want %q", got, want)
		}
	})
}

func TestResolveLoraDir(t *testing.T) {
	root := t.TempDir()
	model := filepath.Join(root, "base.safetensors")

	if _, err := resolveLoraDir("", model); err == nil {
		t.Fatal("expected error when the default loras dir does not exist")
	}
	if err := os.Mkdir(filepath.Join(root, "loras"), 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := resolveLoraDir("", model)
	if err != nil {
		t.Fatalf("resolveLoraDir returned error: %v", err)
	}
	if got != filepath.Join(root, "loras") {
		t.Fatalf("unexpected default: %q", got)
	}
	if _, err := resolveLoraDir(model, ""); err == nil {
		t.Fatal("expected error for a non-directory")
	}
	if _, err := resolveLoraDir("", ""); err == nil {
		t.Fatal("expected error with nothing configured")
	}
}
