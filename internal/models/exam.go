package models

import (
	"time"

	"github.com/google/uuid"
)

// Exam is the read-only exam metadata owned by the authoring surface. The
// attempt lifecycle only consults it for the availability window and duration.
type Exam struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title           string    `gorm:"size:255;not null" json:"title"`
	Description     string    `gorm:"type:text" json:"description"`
	CreatedBy       uuid.UUID `gorm:"type:uuid" json:"created_by"`
	DurationMinutes int       `gorm:"not null" json:"duration_minutes"`
	StartTime       time.Time `gorm:"not null" json:"start_time"`
	EndTime         time.Time `gorm:"not null" json:"end_time"`
	IsActive        bool      `gorm:"default:true" json:"is_active"`
}

// WindowContains reports whether t falls within the exam's availability window.
func (e Exam) WindowContains(t time.Time) bool {
	return !t.Before(e.StartTime) && !t.After(e.EndTime)
}

// AttemptDeadline returns the per-user deadline for an attempt started at the
// given instant. The absolute end of the exam window still applies separately.
func (e Exam) AttemptDeadline(startedAt time.Time) time.Time {
	return startedAt.Add(time.Duration(e.DurationMinutes) * time.Minute)
}

// ExamAssignment links an exam to a class whose members may take it.
type ExamAssignment struct {
	ExamID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"exam_id"`
	ClassID uuid.UUID `gorm:"type:uuid;primaryKey" json:"class_id"`
}

// Class is a minimal roster grouping, owned by the class-management surface.
type Class struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name string    `gorm:"size:255;not null" json:"name"`
}

// ClassMember links a user to a class.
type ClassMember struct {
	ClassID uuid.UUID `gorm:"type:uuid;primaryKey" json:"class_id"`
	UserID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
}

// User carries the identity facts this service reads. Account management and
// credentials live in the auth service.
type User struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name string    `gorm:"size:255;not null" json:"name"`
	Role string    `gorm:"size:32;not null" json:"role"`
}

const (
	// RoleStudent takes exams and tracks their own progress.
	RoleStudent = "student"
	// RoleTeacher may view attempts and progress of other users.
	RoleTeacher = "teacher"
	// RoleAdmin has the same visibility as teachers for this service.
	RoleAdmin = "admin"
)
