// Package tracesrc consumes the already-split failure/transient-event
// trace files (one float hours-until-event per line) that the
// out-of-core CSV-to-trace pipeline (out of scope here) produces, and
// adapts them to distributions.FailureTimeSource so the simulators can
// replay recorded history in place of a fitted Weibull.
package tracesrc

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jihwankim/rackrel/internal/distributions"
)

// Kind selects which of the three trace directories to read from,
// matching the three subdirectories trace.Trace's constructor branches
// on ('p', 't', 'r').
type Kind int

const (
	// Permanent reads failure_events/ — permanent, data-loss-relevant
	// failures.
	Permanent Kind = iota
	// Transient reads transient_events/ — transient failure onsets.
	Transient
	// TransientRepair reads transient_repair/ — matching transient
	// repair durations, index-aligned with Transient.
	TransientRepair
)

func (k Kind) dirName() string {
	switch k {
	case Permanent:
		return "failure_events"
	case Transient:
		return "transient_events"
	case TransientRepair:
		return "transient_repair"
	default:
		return "failure_events"
	}
}

// Loader reads trace files out of a root directory laid out exactly as
// the original pipeline writes them: root/<kind>/s<traceID>n<node>.txt.
type Loader struct {
	root string
}

// NewLoader builds a Loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{root: dir}
}

// path returns the file path for a given trace id, node index and kind.
func (l *Loader) path(kind Kind, traceID, node int) string {
	fname := fmt.Sprintf("s%dn%d.txt", traceID, node)
	return filepath.Join(l.root, kind.dirName(), fname)
}

// Load reads one trace file, one float (hours) per line, mirroring
// trace.Trace: a missing file is not an error — it yields an empty
// trace, exactly as the Python constructor's `os.path.exists` guard
// silently leaves trace_ls empty.
func (l *Loader) Load(kind Kind, traceID, node int) ([]float64, error) {
	path := l.path(kind, traceID, node)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("tracesrc: open %s: %w", path, err)
	}
	defer f.Close()

	var values []float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("tracesrc: parse %s: %w", path, err)
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("tracesrc: read %s: %w", path, err)
	}
	return values, nil
}

// LoadFailureSource loads a disk or node's permanent-failure trace as a
// distributions.FailureTimeSource, ready to wire into devstate.Disk or
// devstate.Node in place of a WeibullSource.
func (l *Loader) LoadFailureSource(traceID, node int) (*distributions.TraceSource, error) {
	values, err := l.Load(Permanent, traceID, node)
	if err != nil {
		return nil, err
	}
	return distributions.NewTraceSource(values), nil
}

// LoadTransientSources loads a node's transient failure-onset and
// matching repair-duration traces. The two files are index-aligned, as
// trace.Trace.write_repair_events pairs them positionally.
func (l *Loader) LoadTransientSources(traceID, node int) (fail, repair *distributions.TraceSource, err error) {
	failVals, err := l.Load(Transient, traceID, node)
	if err != nil {
		return nil, nil, err
	}
	repairVals, err := l.Load(TransientRepair, traceID, node)
	if err != nil {
		return nil, nil, err
	}
	return distributions.NewTraceSource(failVals), distributions.NewTraceSource(repairVals), nil
}
