package database

import (
	"time"
)

// AttendanceStatus is the presence state of a student on a day.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "Present"
	StatusAbsent  AttendanceStatus = "Absent"
)

// Valid reports whether s is a known status.
func (s AttendanceStatus) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// MarkMethod records how an attendance mark was produced.
type MarkMethod string

const (
	MethodManual   MarkMethod = "Manual"
	MethodFaceScan MarkMethod = "FaceScan"
)

// Valid reports whether m is a known method.
func (m MarkMethod) Valid() bool {
	return m == MethodManual || m == MethodFaceScan
}

// Role of a staff user.
type Role string

const (
	RoleTeacher   Role = "Teacher"
	RolePrincipal Role = "Principal"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleTeacher || r == RolePrincipal
}

// School is the top-level tenant. Classes, users and holidays are scoped to a school.
type School struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	PrincipalName string    `json:"principal_name"`
	ContactEmail  string    `json:"contact_email"`
	ContactPhone  string    `json:"contact_phone"`
	CreatedAt     time.Time `json:"created_at"`
}

// User is a staff account. Credentials are stored opaquely; authentication is handled elsewhere.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
	SchoolID     string `json:"school_id"`
}

// ClassSection is a class within a school, optionally assigned to a teacher.
type ClassSection struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SchoolID  string `json:"school_id"`
	TeacherID string `json:"teacher_id,omitempty"`
}

// Student is enrolled in exactly one class. FaceDescriptor is the reference embedding
// used for recognition; it is empty until the student has been enrolled.
type Student struct {
	ID             string    `json:"id"`
	ClassID        string    `json:"class_id"`
	SchoolID       string    `json:"school_id"`
	Name           string    `json:"name"`
	RollNo         string    `json:"roll_no"`
	FatherName     string    `json:"father_name"`
	Village        string    `json:"village"`
	Photo          []byte    `json:"photo,omitempty"`
	FaceDescriptor []float32 `json:"face_descriptor,omitempty"`
	ConsentGiven   bool      `json:"consent_given"`
}

// HasReference reports whether the student can be recognized.
func (s *Student) HasReference() bool {
	return len(s.FaceDescriptor) > 0
}

// AttendanceRecord is the single record for a (StudentID, Date) pair.
// Date is a calendar date in YYYY-MM-DD form.
type AttendanceRecord struct {
	ID         string           `json:"id"`
	StudentID  string           `json:"student_id"`
	Date       string           `json:"date"`
	Status     AttendanceStatus `json:"status"`
	Method     MarkMethod       `json:"method"`
	Confidence *float64         `json:"confidence,omitempty"`
}

// Key returns the upsert key of the record.
func (r *AttendanceRecord) Key() RecordKey {
	return RecordKey{StudentID: r.StudentID, Date: r.Date}
}

// RecordKey identifies the slot an AttendanceRecord occupies.
type RecordKey struct {
	StudentID string
	Date      string
}

// Holiday marks a school-wide non-working date. Unique on (SchoolID, Date).
type Holiday struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	SchoolID    string `json:"school_id"`
}

// DateRange is an inclusive range of YYYY-MM-DD dates.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AttendanceFilter selects records. Empty fields mean no constraint; all set fields must match.
type AttendanceFilter struct {
	ClassID   string
	StudentID string
	Date      string
	Range     *DateRange
}

// Matches reports whether rec satisfies every field of the filter except ClassID,
// which needs the student table and is resolved by the store.
func (f *AttendanceFilter) Matches(rec *AttendanceRecord) bool {
	if f.StudentID != "" && rec.StudentID != f.StudentID {
		return false
	}
	if f.Date != "" && rec.Date != f.Date {
		return false
	}
	if f.Range != nil && (rec.Date < f.Range.Start || rec.Date > f.Range.End) {
		return false
	}
	return true
}

// ReferenceEmbedding is one entry of the recognition gallery.
type ReferenceEmbedding struct {
	StudentID string
	ClassID   string
	Embedding []float32
}
