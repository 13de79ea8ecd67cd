package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if m.Registry() != reg {
		t.Error("expected registry to be kept")
	}

	if _, err := New(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestRecordCycle(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}

	m.RecordCycle(20*time.Millisecond, 2, 1)
	m.RecordCycle(30*time.Millisecond, 0, 3)

	if got := testutil.ToFloat64(m.cyclesTotal); got != 2 {
		t.Errorf("cycles = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.marksTotal); got != 2 {
		t.Errorf("marks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.unknownFacesTotal); got != 4 {
		t.Errorf("unknown = %v, want 4", got)
	}
}

func TestRecordSave(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}

	m.RecordSave(ResultSuccess, 30)
	m.RecordSave(ResultError, 30)
	m.RecordSave(ResultInvalid, 0)

	expected := `
# HELP attendance_ledger_saves_total Total number of attendance batch saves
# TYPE attendance_ledger_saves_total counter
attendance_ledger_saves_total{result="error"} 1
attendance_ledger_saves_total{result="invalid"} 1
attendance_ledger_saves_total{result="success"} 1
`
	if err := testutil.CollectAndCompare(m.savesTotal, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
	if got := testutil.ToFloat64(m.recordsSavedTotal); got != 30 {
		t.Errorf("records saved = %v, want 30", got)
	}
}

func TestActiveSessions(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	m.SessionStarted()
	m.SessionStarted()
	m.SessionStopped()
	if got := testutil.ToFloat64(m.activeSessions); got != 1 {
		t.Errorf("active sessions = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordCycle(time.Second, 1, 1)
	m.RecordSave(ResultSuccess, 1)
	m.SessionStarted()
	m.SessionStopped()
	if m.Registry() != nil {
		t.Error("expected nil registry")
	}
}
