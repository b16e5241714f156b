package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDebugLogger(t *testing.T) {
	dir := t.TempDir()
	l := NewDebugLoggerForDir(dir)
	l.Log("step %d", 7)
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, DebugLogFile))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "Engine Debug Log Started") || !strings.Contains(string(data), "step 7") {
		t.Errorf("log contents = %q", data)
	}

	var nilLogger *DebugLogger
	nilLogger.Log("ignored")
	if err := nilLogger.Close(); err != nil {
		t.Errorf("nil Close() = %v", err)
	}
	NopLogger().Log("ignored")
}
