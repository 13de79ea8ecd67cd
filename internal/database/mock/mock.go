// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/kozaktomas/smart-attendance/internal/database"
)

// ErrInjected is returned by SaveAttendance when SaveFailAfter triggers.
var ErrInjected = errors.New("injected failure")

// MockStore is an in-memory implementation of database.Store
type MockStore struct {
	mu         sync.RWMutex
	schools    map[string]*database.School
	users      map[string]*database.User
	classes    map[string]*database.ClassSection
	students   map[string]*database.Student
	attendance map[database.RecordKey]database.AttendanceRecord
	holidays   map[string]map[string]database.Holiday // schoolID -> date -> holiday

	// Error injection
	GetError        error
	ListError       error
	SaveError       error
	QueryError      error
	SaveAttendError error
	HolidayError    error

	// SaveFailAfter makes SaveAttendance fail after applying that many records of a batch.
	// Negative disables the hook. The partially applied batch is discarded.
	SaveFailAfter int

	// SaveCalls counts SaveAttendance invocations
	SaveCalls int
	closed    bool
}

// NewMockStore creates a new mock store
func NewMockStore() *MockStore {
	return &MockStore{
		schools:       make(map[string]*database.School),
		users:         make(map[string]*database.User),
		classes:       make(map[string]*database.ClassSection),
		students:      make(map[string]*database.Student),
		attendance:    make(map[database.RecordKey]database.AttendanceRecord),
		holidays:      make(map[string]map[string]database.Holiday),
		SaveFailAfter: -1,
	}
}

// AddSchool adds a school to the mock store
func (m *MockStore) AddSchool(s database.School) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schools[s.ID] = &s
}

// AddClass adds a class to the mock store
func (m *MockStore) AddClass(c database.ClassSection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes[c.ID] = &c
}

// AddStudent adds a student to the mock store
func (m *MockStore) AddStudent(s database.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[s.ID] = &s
}

// AddRecord adds an attendance record without going through SaveAttendance
func (m *MockStore) AddRecord(r database.AttendanceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attendance[r.Key()] = r
}

// AddHoliday adds a holiday to the mock store
func (m *MockStore) AddHoliday(h database.Holiday) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holidays[h.SchoolID] == nil {
		m.holidays[h.SchoolID] = make(map[string]database.Holiday)
	}
	m.holidays[h.SchoolID][h.Date] = h
}

// RecordCount returns the number of stored attendance records
func (m *MockStore) RecordCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.attendance)
}

// IsClosed reports whether Close was called
func (m *MockStore) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func newID() string {
	return uuid.NewString()
}

// GetSchool retrieves a school by ID
func (m *MockStore) GetSchool(ctx context.Context, id string) (*database.School, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.schools[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

// ListSchools returns all schools ordered by name
func (m *MockStore) ListSchools(ctx context.Context) ([]database.School, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.School, 0, len(m.schools))
	for _, s := range m.schools {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SaveSchool inserts or updates a school
func (m *MockStore) SaveSchool(ctx context.Context, school *database.School) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if school.ID == "" {
		school.ID = newID()
	}
	cp := *school
	m.schools[school.ID] = &cp
	return nil
}

// GetUser retrieves a user by ID
func (m *MockStore) GetUser(ctx context.Context, id string) (*database.User, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

// ListUsers returns the users of a school
func (m *MockStore) ListUsers(ctx context.Context, schoolID string) ([]database.User, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.User
	for _, u := range m.users {
		if u.SchoolID == schoolID {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SaveUser inserts or updates a user
func (m *MockStore) SaveUser(ctx context.Context, user *database.User) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if id != user.ID && u.Username == user.Username {
			return database.ErrDuplicateUsername
		}
	}
	if user.ID == "" {
		user.ID = newID()
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

// GetClass retrieves a class by ID
func (m *MockStore) GetClass(ctx context.Context, id string) (*database.ClassSection, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.classes[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

// ListClasses returns the classes of a school
func (m *MockStore) ListClasses(ctx context.Context, schoolID string) ([]database.ClassSection, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.ClassSection
	for _, c := range m.classes {
		if c.SchoolID == schoolID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetClassByTeacher returns the class assigned to a teacher
func (m *MockStore) GetClassByTeacher(ctx context.Context, teacherID string) (*database.ClassSection, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.classes {
		if c.TeacherID == teacherID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

// CreateClass inserts a class, rejecting duplicate names within a school
func (m *MockStore) CreateClass(ctx context.Context, class *database.ClassSection) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.classes {
		if c.SchoolID == class.SchoolID && strings.EqualFold(c.Name, class.Name) {
			return database.ErrDuplicateClass
		}
	}
	if class.ID == "" {
		class.ID = newID()
	}
	cp := *class
	m.classes[class.ID] = &cp
	return nil
}

// AssignTeacher sets the teacher of a class
func (m *MockStore) AssignTeacher(ctx context.Context, classID, teacherID string) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classes[classID]
	if !ok {
		return fmt.Errorf("class %s not found", classID)
	}
	c.TeacherID = teacherID
	return nil
}

// DeleteClass removes a class and its students
func (m *MockStore) DeleteClass(ctx context.Context, id string) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.classes, id)
	for sid, s := range m.students {
		if s.ClassID == id {
			delete(m.students, sid)
		}
	}
	return nil
}

// GetStudent retrieves a student by ID
func (m *MockStore) GetStudent(ctx context.Context, id string) (*database.Student, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.students[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

// ListStudents returns the students of a class ordered by roll number
func (m *MockStore) ListStudents(ctx context.Context, classID string) ([]database.Student, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.Student
	for _, s := range m.students {
		if s.ClassID == classID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RollNo != out[j].RollNo {
			return out[i].RollNo < out[j].RollNo
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListReferenceEmbeddings returns the embeddings of enrolled students
func (m *MockStore) ListReferenceEmbeddings(ctx context.Context, classID string) ([]database.ReferenceEmbedding, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.ReferenceEmbedding
	for _, s := range m.students {
		if !s.HasReference() || (classID != "" && s.ClassID != classID) {
			continue
		}
		out = append(out, database.ReferenceEmbedding{
			StudentID: s.ID,
			ClassID:   s.ClassID,
			Embedding: slices.Clone(s.FaceDescriptor),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

// SaveStudent inserts or updates a student
func (m *MockStore) SaveStudent(ctx context.Context, student *database.Student) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if student.ID == "" {
		student.ID = newID()
	}
	cp := *student
	m.students[student.ID] = &cp
	return nil
}

// SetReference stores a student's reference embedding and photo
func (m *MockStore) SetReference(ctx context.Context, studentID string, embedding []float32, photo []byte) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[studentID]
	if !ok {
		return fmt.Errorf("student %s not found", studentID)
	}
	s.FaceDescriptor = slices.Clone(embedding)
	if photo != nil {
		s.Photo = slices.Clone(photo)
	}
	return nil
}

// QueryAttendance filters records conjunctively
func (m *MockStore) QueryAttendance(ctx context.Context, filter database.AttendanceFilter) ([]database.AttendanceRecord, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []database.AttendanceRecord
	for _, rec := range m.attendance {
		if filter.ClassID != "" {
			s, ok := m.students[rec.StudentID]
			if !ok || s.ClassID != filter.ClassID {
				continue
			}
		}
		if !filter.Matches(&rec) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out, nil
}

// SaveAttendance upserts a batch on a staged copy and commits it only when every record applied
func (m *MockStore) SaveAttendance(ctx context.Context, records []database.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++

	if m.SaveAttendError != nil {
		return m.SaveAttendError
	}

	staged := maps.Clone(m.attendance)
	for i, rec := range records {
		if m.SaveFailAfter >= 0 && i >= m.SaveFailAfter {
			return fmt.Errorf("save record %d: %w", i, ErrInjected)
		}
		if rec.ID == "" {
			rec.ID = newID()
		}
		staged[rec.Key()] = rec
	}
	m.attendance = staged
	return nil
}

// ListHolidays returns the holidays of a school ordered by date
func (m *MockStore) ListHolidays(ctx context.Context, schoolID string) ([]database.Holiday, error) {
	if m.HolidayError != nil {
		return nil, m.HolidayError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Holiday, 0, len(m.holidays[schoolID]))
	for _, h := range m.holidays[schoolID] {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// SetHoliday upserts a holiday keyed by (school, date)
func (m *MockStore) SetHoliday(ctx context.Context, holiday *database.Holiday) error {
	if m.HolidayError != nil {
		return m.HolidayError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holidays[holiday.SchoolID] == nil {
		m.holidays[holiday.SchoolID] = make(map[string]database.Holiday)
	}
	if existing, ok := m.holidays[holiday.SchoolID][holiday.Date]; ok {
		holiday.ID = existing.ID
	} else if holiday.ID == "" {
		holiday.ID = newID()
	}
	m.holidays[holiday.SchoolID][holiday.Date] = *holiday
	return nil
}

// RemoveHoliday deletes a holiday
func (m *MockStore) RemoveHoliday(ctx context.Context, schoolID, date string) error {
	if m.HolidayError != nil {
		return m.HolidayError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.holidays[schoolID], date)
	return nil
}

// Close marks the store closed
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ database.Store = (*MockStore)(nil)
