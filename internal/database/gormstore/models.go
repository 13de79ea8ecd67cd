package gormstore

import (
	"strings"
	"time"

	"github.com/kozaktomas/smart-attendance/internal/database"
)

type schoolModel struct {
	ID            string `gorm:"primaryKey;size:64"`
	Name          string `gorm:"size:255;not null"`
	PrincipalName string `gorm:"size:255"`
	ContactEmail  string `gorm:"size:255"`
	ContactPhone  string `gorm:"size:64"`
	CreatedAt     time.Time
}

func (schoolModel) TableName() string { return "schools" }

type userModel struct {
	ID           string `gorm:"primaryKey;size:64"`
	Name         string `gorm:"size:255;not null"`
	Username     string `gorm:"size:255;uniqueIndex"`
	PasswordHash string `gorm:"type:text"`
	Role         string `gorm:"size:32"`
	SchoolID     string `gorm:"size:64;index"`
}

func (userModel) TableName() string { return "users" }

// classModel carries a lowercased copy of the name so the unique index is case-insensitive
// on every dialect.
type classModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:255;not null"`
	NameKey   string `gorm:"size:255;uniqueIndex:idx_classes_school_name"`
	SchoolID  string `gorm:"size:64;uniqueIndex:idx_classes_school_name"`
	TeacherID string `gorm:"size:64;index"`
}

func (classModel) TableName() string { return "classes" }

type studentModel struct {
	ID             string    `gorm:"primaryKey;size:64"`
	ClassID        string    `gorm:"size:64;index"`
	SchoolID       string    `gorm:"size:64"`
	Name           string    `gorm:"size:255;not null"`
	RollNo         string    `gorm:"size:64"`
	FatherName     string    `gorm:"size:255"`
	Village        string    `gorm:"size:255"`
	Photo          []byte
	FaceDescriptor []float32 `gorm:"serializer:json;type:text"`
	ConsentGiven   bool
}

func (studentModel) TableName() string { return "students" }

type attendanceModel struct {
	ID         string   `gorm:"primaryKey;size:64"`
	StudentID  string   `gorm:"size:64;uniqueIndex:idx_attendance_student_date"`
	Date       string   `gorm:"size:10;uniqueIndex:idx_attendance_student_date;index"`
	Status     string   `gorm:"size:16"`
	Method     string   `gorm:"size:16"`
	Confidence *float64 `gorm:"default:null"`
	UpdatedAt  time.Time
}

func (attendanceModel) TableName() string { return "attendance" }

type holidayModel struct {
	ID          string `gorm:"primaryKey;size:64"`
	Date        string `gorm:"size:10;uniqueIndex:idx_holidays_school_date"`
	Description string `gorm:"type:text"`
	SchoolID    string `gorm:"size:64;uniqueIndex:idx_holidays_school_date"`
}

func (holidayModel) TableName() string { return "holidays" }

func allModels() []any {
	return []any{
		&schoolModel{}, &userModel{}, &classModel{}, &studentModel{}, &attendanceModel{}, &holidayModel{},
	}
}

func classKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (m *schoolModel) toDomain() database.School {
	return database.School{
		ID: m.ID, Name: m.Name, PrincipalName: m.PrincipalName,
		ContactEmail: m.ContactEmail, ContactPhone: m.ContactPhone, CreatedAt: m.CreatedAt,
	}
}

func (m *userModel) toDomain() database.User {
	return database.User{
		ID: m.ID, Name: m.Name, Username: m.Username, PasswordHash: m.PasswordHash,
		Role: database.Role(m.Role), SchoolID: m.SchoolID,
	}
}

func (m *classModel) toDomain() database.ClassSection {
	return database.ClassSection{ID: m.ID, Name: m.Name, SchoolID: m.SchoolID, TeacherID: m.TeacherID}
}

func (m *studentModel) toDomain() database.Student {
	return database.Student{
		ID: m.ID, ClassID: m.ClassID, SchoolID: m.SchoolID, Name: m.Name, RollNo: m.RollNo,
		FatherName: m.FatherName, Village: m.Village, Photo: m.Photo,
		FaceDescriptor: m.FaceDescriptor, ConsentGiven: m.ConsentGiven,
	}
}

func (m *attendanceModel) toDomain() database.AttendanceRecord {
	return database.AttendanceRecord{
		ID: m.ID, StudentID: m.StudentID, Date: m.Date,
		Status: database.AttendanceStatus(m.Status), Method: database.MarkMethod(m.Method),
		Confidence: m.Confidence,
	}
}

func (m *holidayModel) toDomain() database.Holiday {
	return database.Holiday{ID: m.ID, Date: m.Date, Description: m.Description, SchoolID: m.SchoolID}
}
