package version

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/JustinTDCT/SerialDesk/internal/logger"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "version.json")
	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(good, []byte(`{"version":"1.4.2"}`), 0o644)
	os.WriteFile(bad, []byte(`not json`), 0o644)

	tests := []struct {
		path string
		want string
	}{
		{good, "1.4.2"},
		{bad, "0.0.0"},
		{filepath.Join(dir, "missing.json"), "0.0.0"},
	}
	for _, tt := range tests {
		if got := Load(tt.path, logger.Nop()).Version; got != tt.want {
			t.Errorf("Load(%s) = %q, want %q", filepath.Base(tt.path), got, tt.want)
		}
	}
}
