package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sppchat.log")
	log, err := New("info", path)
	if err != nil {
		t.Fatal(err)
	}
	log.Debug("hidden")
	log.Info("link: connected")
	log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"link: connected"`) {
		t.Fatalf("info line missing: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered: %s", out)
	}
	if !strings.Contains(out, `"app":"sppchat"`) {
		t.Fatalf("app field missing: %s", out)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud", ""); err == nil {
		t.Fatal("expected an error")
	}
}
