package group

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ischoolgo/core"
)

// Statuses
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusCompleted = "completed"
)

type Group struct {
	ID          string      `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Level       string      `json:"level" db:"level"`
	Subject     string      `json:"subject" db:"subject"`
	TeacherID   null.String `json:"teacher_id" db:"teacher_id"`
	Schedule    null.JSON   `json:"schedule" db:"schedule"`
	MaxStudents int         `json:"max_students" db:"max_students"`
	FeeAmount   float64     `json:"fee_amount" db:"fee_amount"`
	Description null.String `json:"description" db:"description"`
	Status      string      `json:"status" db:"status"`
	StartDate   null.String `json:"start_date" db:"start_date"` // YYYY-MM-DD
	EndDate     null.String `json:"end_date" db:"end_date"`     // YYYY-MM-DD
	CreatedAt   time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"` // UTC

	// derived
	TeacherName  null.String `json:"teacher_name" db:"teacher_name"`
	StudentCount int         `json:"student_count" db:"student_count"`
}

// Member is an active student of a group.
type Member struct {
	ID             string      `json:"id" db:"id"`
	Name           string      `json:"name" db:"name"`
	Email          null.String `json:"email" db:"email"`
	Phone          null.String `json:"phone" db:"phone"`
	EnrollmentDate string      `json:"enrollment_date" db:"enrollment_date"`
	Status         string      `json:"status" db:"status"`
}

// NewGroup contains information needed to open a new Group.
type NewGroup struct {
	Name        string      `json:"name" validate:"required,notblank"`
	Level       string      `json:"level" validate:"required,notblank"`
	Subject     string      `json:"subject" validate:"required,notblank"`
	TeacherID   null.String `json:"teacher_id" validate:"omitempty,uuid"`
	Schedule    null.JSON   `json:"schedule"`
	MaxStudents int         `json:"max_students" validate:"gte=0"`
	FeeAmount   float64     `json:"fee_amount" validate:"gte=0"`
	Description null.String `json:"description"`
	Status      string      `json:"status" validate:"omitempty,oneof=active inactive completed"`
	StartDate   null.String `json:"start_date" validate:"omitempty,date"`
	EndDate     null.String `json:"end_date" validate:"omitempty,date"`
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	ng.Level = core.CleanString(ng.Level)
	ng.Subject = core.CleanString(ng.Subject)
	ng.Status = core.CleanString(ng.Status, true /* lower */)
	if ng.TeacherID.Valid && ng.TeacherID.String == "" {
		ng.TeacherID.Valid = false
	}
	return validate.Struct(ng)
}

// UpdateGroup defines what information may be provided to modify an existing Group.
// nil fields are left untouched; empty strings clear optional fields.
type UpdateGroup struct {
	Name        *string   `json:"name" validate:"omitempty,notblank"`
	Level       *string   `json:"level" validate:"omitempty,notblank"`
	Subject     *string   `json:"subject" validate:"omitempty,notblank"`
	TeacherID   *string   `json:"teacher_id" validate:"omitempty,uuid"`
	Schedule    null.JSON `json:"schedule"`
	MaxStudents *int      `json:"max_students" validate:"omitempty,gte=0"`
	FeeAmount   *float64  `json:"fee_amount" validate:"omitempty,gte=0"`
	Description *string   `json:"description"`
	Status      *string   `json:"status" validate:"omitempty,oneof=active inactive completed"`
	StartDate   *string   `json:"start_date" validate:"omitempty,date"`
	EndDate     *string   `json:"end_date" validate:"omitempty,date"`
}

func (ug *UpdateGroup) Validate(validate *validator.Validate) error {
	for _, s := range []*string{ug.Name, ug.Level, ug.Subject} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	return validate.Struct(ug)
}

func optString(s *string, current null.String) null.String {
	if s == nil {
		return current
	}
	return null.NewString(*s, *s != "")
}

func (ug UpdateGroup) apply(g *Group) {
	if ug.Name != nil {
		g.Name = *ug.Name
	}
	if ug.Level != nil {
		g.Level = *ug.Level
	}
	if ug.Subject != nil {
		g.Subject = *ug.Subject
	}
	g.TeacherID = optString(ug.TeacherID, g.TeacherID)
	if ug.Schedule.Valid {
		g.Schedule = ug.Schedule
	}
	if ug.MaxStudents != nil {
		g.MaxStudents = *ug.MaxStudents
	}
	if ug.FeeAmount != nil {
		g.FeeAmount = *ug.FeeAmount
	}
	g.Description = optString(ug.Description, g.Description)
	if ug.Status != nil && *ug.Status != "" {
		g.Status = *ug.Status
	}
	g.StartDate = optString(ug.StartDate, g.StartDate)
	g.EndDate = optString(ug.EndDate, g.EndDate)
}

type QueryFilter struct {
	// Search does a case-insensitive substring match on name or subject.
	Search    string `query:"search"`
	Status    string `query:"status"`
	Level     string `query:"level"`
	TeacherID string `query:"teacher_id"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Level = core.CleanString(qf.Level)
	qf.TeacherID = core.CleanString(qf.TeacherID)
}
