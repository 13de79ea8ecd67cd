package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/smart-attendance/internal/database"
	apperrors "github.com/kozaktomas/smart-attendance/internal/errors"
)

func TestOpenWorkingSet_InitialState(t *testing.T) {
	store := setupStore()
	conf := 0.9
	store.AddRecord(database.AttendanceRecord{StudentID: "s2", Date: "2026-03-03", Status: database.StatusPresent, Method: database.MethodFaceScan, Confidence: &conf})
	l := newLedger(store)

	ws, err := l.OpenWorkingSet(context.Background(), "class1", "2026-03-03")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	entries := ws.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].StudentID != "s1" || entries[0].Status != database.StatusAbsent || entries[0].Method != database.MethodManual {
		t.Errorf("expected s1 Absent/Manual by default, got %+v", entries[0])
	}
	if entries[1].StudentID != "s2" || entries[1].Status != database.StatusPresent || entries[1].Method != database.MethodFaceScan {
		t.Errorf("expected s2 from saved record, got %+v", entries[1])
	}
	if entries[1].Confidence == nil || *entries[1].Confidence != 0.9 {
		t.Errorf("expected saved confidence, got %v", entries[1].Confidence)
	}
	if ws.Dirty() {
		t.Error("freshly opened sheet should not be dirty")
	}
	if len(ws.Warnings()) != 0 {
		t.Errorf("unexpected warnings: %v", ws.Warnings())
	}
}

func TestOpenWorkingSet_HolidayRejected(t *testing.T) {
	store := setupStore()
	store.AddHoliday(database.Holiday{SchoolID: "school1", Date: "2026-03-04", Description: "Holi"})

	_, err := newLedger(store).OpenWorkingSet(context.Background(), "class1", "2026-03-04")
	if !apperrors.IsKind(err, apperrors.KindInput) {
		t.Fatalf("expected input error on holiday, got %v", err)
	}
}

func TestOpenWorkingSet_WeeklyOffWarns(t *testing.T) {
	ws, err := newLedger(setupStore()).OpenWorkingSet(context.Background(), "class1", "2026-03-08")
	if err != nil {
		t.Fatalf("weekly off-day should be allowed: %v", err)
	}
	if len(ws.Warnings()) != 1 {
		t.Errorf("expected one warning, got %v", ws.Warnings())
	}
}

func TestOpenWorkingSet_Errors(t *testing.T) {
	l := newLedger(setupStore())
	ctx := context.Background()

	if _, err := l.OpenWorkingSet(ctx, "ghost", "2026-03-03"); !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Errorf("expected not-found for unknown class, got %v", err)
	}
	if _, err := l.OpenWorkingSet(ctx, "class1", "tomorrow"); !apperrors.IsKind(err, apperrors.KindInput) {
		t.Errorf("expected input error for bad date, got %v", err)
	}

	store := setupStore()
	store.HolidayError = errors.New("db down")
	if _, err := newLedger(store).OpenWorkingSet(ctx, "class1", "2026-03-03"); !apperrors.IsKind(err, apperrors.KindPersistence) {
		t.Errorf("expected persistence error, got %v", err)
	}
}

func TestOpenWorkingSet_EmptyClassWarns(t *testing.T) {
	store := setupStore()
	store.AddClass(database.ClassSection{ID: "empty", Name: "6C", SchoolID: "school1"})

	ws, err := newLedger(store).OpenWorkingSet(context.Background(), "empty", "2026-03-03")
	if err != nil {
		t.Fatal(err)
	}
	if len(ws.Entries()) != 0 || len(ws.Warnings()) != 1 {
		t.Errorf("expected empty sheet with a warning, got %d entries, %v", len(ws.Entries()), ws.Warnings())
	}
}

func TestWorkingSet_MarkOverrides(t *testing.T) {
	ws, err := newLedger(setupStore()).OpenWorkingSet(context.Background(), "class1", "2026-03-03")
	if err != nil {
		t.Fatal(err)
	}

	conf := 0.8
	if err := ws.Mark(Mark{StudentID: "s1", Status: database.StatusPresent, Method: database.MethodFaceScan, Confidence: &conf}); err != nil {
		t.Fatal(err)
	}
	e, _ := ws.Entry("s1")
	if e.Status != database.StatusPresent || e.Method != database.MethodFaceScan {
		t.Fatalf("unexpected entry after face scan: %+v", e)
	}

	if err := ws.Mark(Mark{StudentID: "s1", Status: database.StatusAbsent, Method: database.MethodManual}); err != nil {
		t.Fatal(err)
	}
	e, _ = ws.Entry("s1")
	if e.Status != database.StatusAbsent || e.Method != database.MethodManual || e.Confidence != nil {
		t.Errorf("expected manual override to replace face scan, got %+v", e)
	}
	if !ws.Dirty() {
		t.Error("expected dirty sheet after marks")
	}

	if p, a := ws.Counts(); p != 0 || a != 2 {
		t.Errorf("Counts() = %d, %d; want 0, 2", p, a)
	}
}

func TestWorkingSet_MarkErrors(t *testing.T) {
	ws, err := newLedger(setupStore()).OpenWorkingSet(context.Background(), "class1", "2026-03-03")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		mark Mark
	}{
		{"student from another class", Mark{StudentID: "s3", Status: database.StatusPresent, Method: database.MethodManual}},
		{"bad status", Mark{StudentID: "s1", Status: "Late", Method: database.MethodManual}},
		{"bad method", Mark{StudentID: "s1", Status: database.StatusPresent}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ws.Mark(tt.mark); !apperrors.IsKind(err, apperrors.KindInput) {
				t.Errorf("expected input error, got %v", err)
			}
		})
	}
}

func TestSaveWorkingSet(t *testing.T) {
	store := setupStore()
	l := newLedger(store)
	ctx := context.Background()

	ws, err := l.OpenWorkingSet(ctx, "class1", "2026-03-03")
	if err != nil {
		t.Fatal(err)
	}
	_ = ws.Mark(Mark{StudentID: "s2", Status: database.StatusPresent, Method: database.MethodManual})

	store.SaveAttendError = errors.New("disk full")
	if err := l.SaveWorkingSet(ctx, ws); !apperrors.IsKind(err, apperrors.KindPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if !ws.Dirty() {
		t.Error("failed save must keep the sheet dirty for retry")
	}

	store.SaveAttendError = nil
	if err := l.SaveWorkingSet(ctx, ws); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if ws.Dirty() {
		t.Error("expected clean sheet after save")
	}

	got, _ := l.Query(ctx, database.AttendanceFilter{ClassID: "class1", Date: "2026-03-03"})
	if len(got) != 2 {
		t.Fatalf("expected both students saved, got %d", len(got))
	}
	for _, r := range got {
		want := database.StatusAbsent
		if r.StudentID == "s2" {
			want = database.StatusPresent
		}
		if r.Status != want {
			t.Errorf("student %s: status %s, want %s", r.StudentID, r.Status, want)
		}
	}
}
