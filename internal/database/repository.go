package database

import (
	"context"
)

// SchoolReader provides read-only access to schools
type SchoolReader interface {
	// GetSchool retrieves a school by ID, returns nil if not found
	GetSchool(ctx context.Context, id string) (*School, error)
	// ListSchools returns all schools ordered by name
	ListSchools(ctx context.Context) ([]School, error)
}

// SchoolWriter provides write access to schools
type SchoolWriter interface {
	SchoolReader

	// SaveSchool inserts or updates a school. An empty ID is assigned a new one.
	SaveSchool(ctx context.Context, school *School) error
}

// UserReader provides read-only access to staff users
type UserReader interface {
	// GetUser retrieves a user by ID, returns nil if not found
	GetUser(ctx context.Context, id string) (*User, error)
	// ListUsers returns the users of a school
	ListUsers(ctx context.Context, schoolID string) ([]User, error)
}

// UserWriter provides write access to staff users
type UserWriter interface {
	UserReader

	// SaveUser inserts or updates a user. An empty ID is assigned a new one.
	// A username held by another user returns ErrDuplicateUsername.
	SaveUser(ctx context.Context, user *User) error
}

// ClassReader provides read-only access to classes
type ClassReader interface {
	// GetClass retrieves a class by ID, returns nil if not found
	GetClass(ctx context.Context, id string) (*ClassSection, error)
	// ListClasses returns the classes of a school ordered by name
	ListClasses(ctx context.Context, schoolID string) ([]ClassSection, error)
	// GetClassByTeacher returns the class assigned to a teacher, nil if none
	GetClassByTeacher(ctx context.Context, teacherID string) (*ClassSection, error)
}

// ClassWriter provides write access to classes
type ClassWriter interface {
	ClassReader

	// CreateClass inserts a class. Names are unique per school (case-insensitive);
	// a duplicate returns ErrDuplicateClass.
	CreateClass(ctx context.Context, class *ClassSection) error
	// AssignTeacher sets the teacher of a class
	AssignTeacher(ctx context.Context, classID, teacherID string) error
	// DeleteClass removes a class together with its students
	DeleteClass(ctx context.Context, id string) error
}

// StudentReader provides read-only access to students
type StudentReader interface {
	// GetStudent retrieves a student by ID, returns nil if not found
	GetStudent(ctx context.Context, id string) (*Student, error)
	// ListStudents returns the students of a class ordered by roll number
	ListStudents(ctx context.Context, classID string) ([]Student, error)
	// ListReferenceEmbeddings returns the reference embeddings of every enrolled student.
	// An empty classID returns all classes.
	ListReferenceEmbeddings(ctx context.Context, classID string) ([]ReferenceEmbedding, error)
}

// StudentWriter provides write access to students
type StudentWriter interface {
	StudentReader

	// SaveStudent inserts or updates a student. An empty ID is assigned a new one.
	SaveStudent(ctx context.Context, student *Student) error
	// SetReference stores the reference embedding and photo of a student
	SetReference(ctx context.Context, studentID string, embedding []float32, photo []byte) error
}

// AttendanceReader provides read-only access to attendance records
type AttendanceReader interface {
	// QueryAttendance returns the records matching every set field of the filter,
	// ordered by date then student ID
	QueryAttendance(ctx context.Context, filter AttendanceFilter) ([]AttendanceRecord, error)
}

// AttendanceWriter provides write access to attendance records
type AttendanceWriter interface {
	AttendanceReader

	// SaveAttendance upserts a batch of records keyed by (student, date).
	// The batch is applied in a single transaction: all records or none.
	SaveAttendance(ctx context.Context, records []AttendanceRecord) error
}

// HolidayReader provides read-only access to holidays
type HolidayReader interface {
	// ListHolidays returns the holidays of a school ordered by date
	ListHolidays(ctx context.Context, schoolID string) ([]Holiday, error)
}

// HolidayWriter provides write access to holidays
type HolidayWriter interface {
	HolidayReader

	// SetHoliday upserts a holiday keyed by (school, date), updating the description
	SetHoliday(ctx context.Context, holiday *Holiday) error
	// RemoveHoliday deletes the holiday of a school on date; missing holidays are ignored
	RemoveHoliday(ctx context.Context, schoolID, date string) error
}

// Store bundles every repository a storage backend provides.
type Store interface {
	SchoolWriter
	UserWriter
	ClassWriter
	StudentWriter
	AttendanceWriter
	HolidayWriter

	// Close releases the backend's connections
	Close() error
}
