package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// DataDir returns a private data directory that is removed after the test
func DataDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "txflow")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("failed to create data dir: %v", err)
	}
	return dir
}

// ConfigEnv sets TXFLOW_* overrides for the test from key/value pairs such as
// "client_id", "abc". Previous values are restored afterwards.
func ConfigEnv(t *testing.T, kv ...string) {
	t.Helper()
	if len(kv)%2 != 0 {
		t.Fatalf("ConfigEnv needs key/value pairs, got %d args", len(kv))
	}
	for i := 0; i < len(kv); i += 2 {
		t.Setenv("TXFLOW_"+strings.ToUpper(kv[i]), kv[i+1])
	}
}
