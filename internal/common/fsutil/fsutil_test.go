package fsutil

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
)

func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
	return home
}

func TestExpandHome(t *testing.T) {
	home := setHome(t)
	// raw path unaffected
	if got, err := ExpandHome("/tmp"); err != nil || got != "/tmp" {
		t.Fatalf("got %q err=%v", got, err)
	}
	// empty path
	if got, err := ExpandHome(""); err != nil || got != "" {
		t.Fatalf("got %q err=%v", got, err)
	}
	p, err := ExpandHome("~")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if p != home {
		t.Fatalf("expected %q, got %q", home, p)
	}
	exp, err := ExpandHome("~/models/quantized")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if want := filepath.Join(home, "models", "quantized"); exp != want {
		t.Fatalf("expected %q, got %q", want, exp)
	}
}

func TestEnsureDir_Idempotent(t *testing.T) {
	home := setHome(t)
	for i := 0; i < 2; i++ {
		p, err := EnsureDir("~/out/nested")
		if err != nil {
			t.Fatalf("ensure #%d: %v", i, err)
		}
		if p != filepath.Join(home, "out", "nested") {
			t.Fatalf("unexpected path %q", p)
		}
		fi, err := os.Stat(p)
		if err != nil || !fi.IsDir() {
			t.Fatalf("dir not created: %v", err)
		}
	}
}

func TestPathExists(t *testing.T) {
	d := t.TempDir()
	if !PathExists(d) {
		t.Fatalf("expected %s to exist", d)
	}
	if PathExists(filepath.Join(d, "missing")) {
		t.Fatalf("expected missing path to not exist")
	}
}

func TestSafeName(t *testing.T) {
	if got := SafeName("Qwen/Qwen3-1.7B"); got != "Qwen-Qwen3-1.7B" {
		t.Fatalf("got %q", got)
	}
}

func TestExpandHome_OtherUser(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("usernames carry a domain prefix on windows")
	}
	setHome(t)
	cur, err := user.Current()
	if err != nil {
		t.Skipf("no current user: %v", err)
	}
	u, err := user.Lookup(cur.Username)
	if err != nil || u.HomeDir == "" {
		t.Skipf("cannot look up %q: %v", cur.Username, err)
	}
	got, err := ExpandHome("~" + cur.Username + "/models")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if want := filepath.Join(u.HomeDir, "models"); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	const unknown = "~no-such-user-7f3a/models"
	got, err = ExpandHome(unknown)
	if err != nil || got != unknown {
		t.Fatalf("unknown user: got %q err=%v, want unchanged", got, err)
	}
}
