package database

import (
	"math"
	"testing"
)

func TestAttendanceFilter_Matches(t *testing.T) {
	rec := AttendanceRecord{StudentID: "s1", Date: "2026-03-04", Status: StatusPresent, Method: MethodManual}

	tests := []struct {
		name   string
		filter AttendanceFilter
		want   bool
	}{
		{"empty filter", AttendanceFilter{}, true},
		{"student match", AttendanceFilter{StudentID: "s1"}, true},
		{"student mismatch", AttendanceFilter{StudentID: "s2"}, false},
		{"date match", AttendanceFilter{Date: "2026-03-04"}, true},
		{"date mismatch", AttendanceFilter{Date: "2026-03-05"}, false},
		{"range inclusive start", AttendanceFilter{Range: &DateRange{Start: "2026-03-04", End: "2026-03-10"}}, true},
		{"range inclusive end", AttendanceFilter{Range: &DateRange{Start: "2026-03-01", End: "2026-03-04"}}, true},
		{"range outside", AttendanceFilter{Range: &DateRange{Start: "2026-03-05", End: "2026-03-10"}}, false},
		{"conjunctive", AttendanceFilter{StudentID: "s1", Date: "2026-03-05"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Matches(&rec); got != tc.want {
				t.Errorf("Matches() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestStatusAndMethodValid(t *testing.T) {
	if !StatusPresent.Valid() || !StatusAbsent.Valid() || AttendanceStatus("Late").Valid() {
		t.Error("unexpected status validity")
	}
	if !MethodManual.Valid() || !MethodFaceScan.Valid() || MarkMethod("").Valid() {
		t.Error("unexpected method validity")
	}
}

func TestStudentHasReference(t *testing.T) {
	s := Student{ID: "s1"}
	if s.HasReference() {
		t.Error("expected no reference for empty descriptor")
	}
	s.FaceDescriptor = []float32{0.1}
	if !s.HasReference() {
		t.Error("expected reference after setting descriptor")
	}
}

func TestEuclideanDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"unit", []float32{0, 0}, []float32{1, 0}, 1},
		{"3-4-5", []float32{0, 0}, []float32{3, 4}, 5},
		{"length mismatch", []float32{1}, []float32{1, 2}, math.Inf(1)},
		{"empty", nil, nil, math.Inf(1)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := EuclideanDistance(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 && !(math.IsInf(got, 1) && math.IsInf(tc.want, 1)) {
				t.Errorf("EuclideanDistance() = %f, want %f", got, tc.want)
			}
		})
	}
}
