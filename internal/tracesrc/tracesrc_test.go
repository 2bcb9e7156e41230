package tracesrc

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTraceFile(t *testing.T, root, kindDir string, traceID, node int, lines []string) {
	t.Helper()
	dir := filepath.Join(root, kindDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, filepathBase(traceID, node))
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func filepathBase(traceID, node int) string {
	return "s" + itoa(traceID) + "n" + itoa(node) + ".txt"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestLoadReadsOneFloatPerLine(t *testing.T) {
	dir := t.TempDir()
	writeTraceFile(t, dir, "failure_events", 1, 0, []string{"12.5", "48.0", "100.25"})

	l := NewLoader(dir)
	values, err := l.Load(Permanent, 1, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []float64{12.5, 48.0, 100.25}
	if len(values) != len(want) {
		t.Fatalf("got %v, want %v", values, want)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Fatalf("index %d: got %v, want %v", i, values[i], want[i])
		}
	}
}

func TestLoadMissingFileReturnsEmptyNotError(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(dir)
	values, err := l.Load(Permanent, 9, 9)
	if err != nil {
		t.Fatalf("Load on missing file should not error, got %v", err)
	}
	if len(values) != 0 {
		t.Fatalf("expected empty trace, got %v", values)
	}
}

func TestLoadFailureSourceFeedsTraceSource(t *testing.T) {
	dir := t.TempDir()
	writeTraceFile(t, dir, "failure_events", 2, 3, []string{"5", "10", "20"})

	l := NewLoader(dir)
	src, err := l.LoadFailureSource(2, 3)
	if err != nil {
		t.Fatalf("LoadFailureSource: %v", err)
	}
	delta, ok, err := src.NextFailureIn(nil, 0)
	if err != nil || !ok {
		t.Fatalf("NextFailureIn: delta=%v ok=%v err=%v", delta, ok, err)
	}
	if delta != 5 {
		t.Fatalf("expected first failure at delta 5, got %v", delta)
	}
}

func TestLoadTransientSourcesIndexAligned(t *testing.T) {
	dir := t.TempDir()
	writeTraceFile(t, dir, "transient_events", 1, 1, []string{"1", "2"})
	writeTraceFile(t, dir, "transient_repair", 1, 1, []string{"0.5", "0.75"})

	l := NewLoader(dir)
	fail, repair, err := l.LoadTransientSources(1, 1)
	if err != nil {
		t.Fatalf("LoadTransientSources: %v", err)
	}
	fd, ok, _ := fail.NextFailureIn(nil, 0)
	if !ok || fd != 1 {
		t.Fatalf("expected first transient failure at 1, got %v ok=%v", fd, ok)
	}
	rd, ok, _ := repair.NextFailureIn(nil, 0)
	if !ok || rd != 0.5 {
		t.Fatalf("expected first transient repair duration 0.5, got %v ok=%v", rd, ok)
	}
}
