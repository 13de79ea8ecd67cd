package gormstore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kozaktomas/smart-attendance/internal/database"
)

// GetSchool retrieves a school by ID, nil if not found.
func (s *Store) GetSchool(ctx context.Context, id string) (*database.School, error) {
	var m schoolModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get school: %w", err)
	}
	school := m.toDomain()
	return &school, nil
}

// ListSchools returns all schools ordered by name.
func (s *Store) ListSchools(ctx context.Context) ([]database.School, error) {
	var rows []schoolModel
	if err := s.db.WithContext(ctx).Order("name, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	out := make([]database.School, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// SaveSchool inserts or updates a school.
func (s *Store) SaveSchool(ctx context.Context, school *database.School) error {
	if school.ID == "" {
		school.ID = newID()
	}
	m := schoolModel{
		ID: school.ID, Name: school.Name, PrincipalName: school.PrincipalName,
		ContactEmail: school.ContactEmail, ContactPhone: school.ContactPhone, CreatedAt: school.CreatedAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "principal_name", "contact_email", "contact_phone"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("save school: %w", err)
	}
	school.CreatedAt = m.CreatedAt
	return nil
}

// GetUser retrieves a user by ID, nil if not found.
func (s *Store) GetUser(ctx context.Context, id string) (*database.User, error) {
	var m userModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u := m.toDomain()
	return &u, nil
}

// ListUsers returns the users of a school ordered by name.
func (s *Store) ListUsers(ctx context.Context, schoolID string) ([]database.User, error) {
	var rows []userModel
	if err := s.db.WithContext(ctx).Where("school_id = ?", schoolID).Order("name, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]database.User, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// SaveUser inserts or updates a user.
func (s *Store) SaveUser(ctx context.Context, user *database.User) error {
	if user.ID == "" {
		user.ID = newID()
	}
	m := userModel{
		ID: user.ID, Name: user.Name, Username: user.Username, PasswordHash: user.PasswordHash,
		Role: string(user.Role), SchoolID: user.SchoolID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&userModel{}).Where("username = ? AND id <> ?", m.Username, m.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return database.ErrDuplicateUsername
		}
		return tx.Save(&m).Error
	})
	if errors.Is(err, database.ErrDuplicateUsername) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return database.ErrDuplicateUsername
	}
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// GetClass retrieves a class by ID, nil if not found.
func (s *Store) GetClass(ctx context.Context, id string) (*database.ClassSection, error) {
	var m classModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get class: %w", err)
	}
	c := m.toDomain()
	return &c, nil
}

// ListClasses returns the classes of a school ordered by name.
func (s *Store) ListClasses(ctx context.Context, schoolID string) ([]database.ClassSection, error) {
	var rows []classModel
	if err := s.db.WithContext(ctx).Where("school_id = ?", schoolID).Order("name, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	out := make([]database.ClassSection, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// GetClassByTeacher returns the class assigned to a teacher, nil if none.
func (s *Store) GetClassByTeacher(ctx context.Context, teacherID string) (*database.ClassSection, error) {
	var m classModel
	if err := s.db.WithContext(ctx).Where("teacher_id = ?", teacherID).Order("name").First(&m).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get class by teacher: %w", err)
	}
	c := m.toDomain()
	return &c, nil
}

// CreateClass inserts a class, rejecting a name already used in the school.
func (s *Store) CreateClass(ctx context.Context, class *database.ClassSection) error {
	if class.ID == "" {
		class.ID = newID()
	}
	m := classModel{
		ID: class.ID, Name: class.Name, NameKey: classKey(class.Name),
		SchoolID: class.SchoolID, TeacherID: class.TeacherID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&classModel{}).Where("school_id = ? AND name_key = ?", m.SchoolID, m.NameKey).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return database.ErrDuplicateClass
		}
		return tx.Create(&m).Error
	})
	if errors.Is(err, database.ErrDuplicateClass) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return database.ErrDuplicateClass
	}
	if err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// AssignTeacher sets the teacher of a class.
func (s *Store) AssignTeacher(ctx context.Context, classID, teacherID string) error {
	res := s.db.WithContext(ctx).Model(&classModel{}).Where("id = ?", classID).Update("teacher_id", teacherID)
	if res.Error != nil {
		return fmt.Errorf("assign teacher: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("class %s not found", classID)
	}
	return nil
}

// DeleteClass removes a class, its students and their attendance in one transaction.
func (s *Store) DeleteClass(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		studentIDs := tx.Model(&studentModel{}).Select("id").Where("class_id = ?", id)
		if err := tx.Where("student_id IN (?)", studentIDs).Delete(&attendanceModel{}).Error; err != nil {
			return fmt.Errorf("delete attendance: %w", err)
		}
		if err := tx.Where("class_id = ?", id).Delete(&studentModel{}).Error; err != nil {
			return fmt.Errorf("delete students: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&classModel{}).Error; err != nil {
			return fmt.Errorf("delete class: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.ReferenceIndex() != nil {
		if err := s.RebuildReferenceIndex(ctx); err != nil {
			log.Warn("reference index rebuild failed", "class_id", id, "error", err)
		}
	}
	return nil
}

// GetStudent retrieves a student by ID, nil if not found.
func (s *Store) GetStudent(ctx context.Context, id string) (*database.Student, error) {
	var m studentModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	st := m.toDomain()
	return &st, nil
}

// ListStudents returns the students of a class ordered by roll number.
func (s *Store) ListStudents(ctx context.Context, classID string) ([]database.Student, error) {
	var rows []studentModel
	if err := s.db.WithContext(ctx).Where("class_id = ?", classID).Order("roll_no, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	out := make([]database.Student, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// ListReferenceEmbeddings returns the reference embeddings of enrolled students.
func (s *Store) ListReferenceEmbeddings(ctx context.Context, classID string) ([]database.ReferenceEmbedding, error) {
	q := s.db.WithContext(ctx).Select("id", "class_id", "face_descriptor").Order("id")
	if classID != "" {
		q = q.Where("class_id = ?", classID)
	}
	var rows []studentModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list reference embeddings: %w", err)
	}

	var out []database.ReferenceEmbedding
	for i := range rows {
		if len(rows[i].FaceDescriptor) == 0 {
			continue
		}
		out = append(out, database.ReferenceEmbedding{
			StudentID: rows[i].ID,
			ClassID:   rows[i].ClassID,
			Embedding: rows[i].FaceDescriptor,
		})
	}
	return out, nil
}

// SaveStudent inserts or updates a student's details without touching the reference.
func (s *Store) SaveStudent(ctx context.Context, student *database.Student) error {
	if student.ID == "" {
		student.ID = newID()
	}
	m := studentModel{
		ID: student.ID, ClassID: student.ClassID, SchoolID: student.SchoolID, Name: student.Name,
		RollNo: student.RollNo, FatherName: student.FatherName, Village: student.Village,
		ConsentGiven: student.ConsentGiven,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"class_id", "school_id", "name", "roll_no", "father_name", "village", "consent_given",
		}),
	}).Omit("photo", "face_descriptor").Create(&m).Error
	if err != nil {
		return fmt.Errorf("save student: %w", err)
	}
	return nil
}

// SetReference stores the reference embedding and photo of a student. A nil photo keeps the stored one.
func (s *Store) SetReference(ctx context.Context, studentID string, embedding []float32, photo []byte) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&studentModel{}).Where("id = ?", studentID).Count(&count).Error; err != nil {
			return fmt.Errorf("set reference: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("student %s not found", studentID)
		}

		// Struct updates run the json serializer of face_descriptor; map updates do not.
		m := studentModel{FaceDescriptor: slices.Clone(embedding), Photo: photo}
		columns := []string{"face_descriptor"}
		if photo != nil {
			columns = append(columns, "photo")
		}
		if err := tx.Model(&studentModel{}).Where("id = ?", studentID).Select(columns).Updates(&m).Error; err != nil {
			return fmt.Errorf("set reference: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if idx := s.ReferenceIndex(); idx != nil {
		if len(embedding) == 0 {
			idx.Remove(studentID)
		} else {
			idx.Add(database.ReferenceEmbedding{StudentID: studentID, Embedding: embedding})
		}
	}
	return nil
}

// QueryAttendance returns the records matching every set field of the filter,
// ordered by date then student.
func (s *Store) QueryAttendance(ctx context.Context, filter database.AttendanceFilter) ([]database.AttendanceRecord, error) {
	q := s.db.WithContext(ctx).Model(&attendanceModel{})
	if filter.ClassID != "" {
		q = q.Where("student_id IN (?)",
			s.db.Model(&studentModel{}).Select("id").Where("class_id = ?", filter.ClassID))
	}
	if filter.StudentID != "" {
		q = q.Where("student_id = ?", filter.StudentID)
	}
	if filter.Date != "" {
		q = q.Where("date = ?", filter.Date)
	}
	if filter.Range != nil {
		q = q.Where("date >= ? AND date <= ?", filter.Range.Start, filter.Range.End)
	}

	var rows []attendanceModel
	if err := q.Order("date, student_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	out := make([]database.AttendanceRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// SaveAttendance upserts a batch keyed by (student_id, date) in one transaction.
func (s *Store) SaveAttendance(ctx context.Context, records []database.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, rec := range records {
			id := rec.ID
			if id == "" {
				id = newID()
			}
			m := attendanceModel{
				ID: id, StudentID: rec.StudentID, Date: rec.Date,
				Status: string(rec.Status), Method: string(rec.Method), Confidence: rec.Confidence,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "student_id"}, {Name: "date"}},
				DoUpdates: clause.AssignmentColumns([]string{"status", "method", "confidence", "updated_at"}),
			}).Create(&m).Error
			if err != nil {
				return fmt.Errorf("save record %d: %w", i, err)
			}
		}
		return nil
	})
}

// ListHolidays returns the holidays of a school ordered by date.
func (s *Store) ListHolidays(ctx context.Context, schoolID string) ([]database.Holiday, error) {
	var rows []holidayModel
	if err := s.db.WithContext(ctx).Where("school_id = ?", schoolID).Order("date").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	out := make([]database.Holiday, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// SetHoliday upserts a holiday keyed by (school_id, date). An existing row keeps its ID.
func (s *Store) SetHoliday(ctx context.Context, holiday *database.Holiday) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing holidayModel
		err := tx.Where("school_id = ? AND date = ?", holiday.SchoolID, holiday.Date).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&existing).Update("description", holiday.Description).Error; err != nil {
				return fmt.Errorf("set holiday: %w", err)
			}
			holiday.ID = existing.ID
			return nil
		case !notFound(err):
			return fmt.Errorf("set holiday: %w", err)
		}

		if holiday.ID == "" {
			holiday.ID = newID()
		}
		m := holidayModel{ID: holiday.ID, Date: holiday.Date, Description: holiday.Description, SchoolID: holiday.SchoolID}
		if err := tx.Create(&m).Error; err != nil {
			return fmt.Errorf("set holiday: %w", err)
		}
		return nil
	})
}

// RemoveHoliday deletes the holiday of a school on date. Missing rows are ignored.
func (s *Store) RemoveHoliday(ctx context.Context, schoolID, date string) error {
	if err := s.db.WithContext(ctx).Where("school_id = ? AND date = ?", schoolID, date).Delete(&holidayModel{}).Error; err != nil {
		return fmt.Errorf("remove holiday: %w", err)
	}
	return nil
}
