package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "70000")
	if _, err := Port("TEST_PORT", "8080"); err == nil {
		t.Fatal("expected error for out of range port")
	}
	t.Setenv("TEST_PORT", "")
	p, err := Port("TEST_PORT", "8083")
	if err != nil || p != "8083" {
		t.Fatalf("expected fallback 8083, got %q (%v)", p, err)
	}
}

func TestTypedGetters(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_DURATION", "250ms")
	t.Setenv("TEST_LIST", " a, ,b ")

	if n, err := Int("TEST_INT", 1); err != nil || n != 42 {
		t.Fatalf("expected 42, got %d (%v)", n, err)
	}
	if b, err := Bool("TEST_BOOL", false); err != nil || !b {
		t.Fatalf("expected true, got %v (%v)", b, err)
	}
	if d, err := Duration("TEST_DURATION", time.Second); err != nil || d != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s (%v)", d, err)
	}
	if got := List("TEST_LIST"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected list %v", got)
	}

	t.Setenv("TEST_INT", "x")
	if _, err := Int("TEST_INT", 1); err == nil {
		t.Fatal("expected error for non-integer")
	}
	t.Setenv("TEST_DURATION", "-1s")
	if _, err := Duration("TEST_DURATION", time.Second); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("DOTENV_ONLY_KEY=from-file\nDOTENV_SET_KEY=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("DOTENV_SET_KEY", "from-env")
	t.Setenv("DOTENV_ONLY_KEY", "")
	os.Unsetenv("DOTENV_ONLY_KEY")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("DOTENV_ONLY_KEY"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("DOTENV_SET_KEY"); got != "from-env" {
		t.Fatalf("expected existing env to win, got %q", got)
	}
}
