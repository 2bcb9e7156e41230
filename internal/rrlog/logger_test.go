package rrlog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestInfoWritesJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	l.Info("job started", "seed", int64(42), "iterations", 100)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "job started" {
		t.Fatalf("expected message field, got %+v", entry)
	}
	if entry["seed"] != float64(42) {
		t.Fatalf("expected seed=42 field, got %+v", entry)
	}
}

func TestDebugSuppressedBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Format: FormatJSON, Output: &buf})

	l.Info("should not appear")
	l.Debug("should not appear either")

	if buf.Len() != 0 {
		t.Fatalf("expected no output below the warn threshold, got %q", buf.String())
	}
}

func TestOddFieldCountReportsError(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	l.Info("broken", "onlykey")

	if !strings.Contains(buf.String(), "odd number of log fields") {
		t.Fatalf("expected odd-field-count marker in output, got %q", buf.String())
	}
}

func TestWithFieldsCarriesIntoChildLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})
	child := l.WithFields(map[string]interface{}{"job": 7})

	child.Info("job done")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON line: %v", err)
	}
	if entry["job"] != float64(7) {
		t.Fatalf("expected inherited job field, got %+v", entry)
	}
}
