package student

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
	StatusGraduated = "graduated"
	StatusDropped   = "dropped"
)

type Student struct {
	ID               string      `json:"id" db:"id"`
	Name             string      `json:"name" db:"name"`
	Email            null.String `json:"email" db:"email"`
	Phone            null.String `json:"phone" db:"phone"`
	DateOfBirth      null.String `json:"date_of_birth" db:"date_of_birth"` // YYYY-MM-DD
	Address          null.String `json:"address" db:"address"`
	EmergencyContact null.JSON   `json:"emergency_contact" db:"emergency_contact"`
	GroupID          null.String `json:"group_id" db:"group_id"`
	EnrollmentDate   string      `json:"enrollment_date" db:"enrollment_date"` // YYYY-MM-DD
	Status           string      `json:"status" db:"status"`
	Notes            null.String `json:"notes" db:"notes"`
	Avatar           null.String `json:"avatar" db:"avatar"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"` // UTC

	// joined from the student's group
	GroupName  null.String `json:"group_name" db:"group_name"`
	GroupLevel null.String `json:"group_level" db:"group_level"`
}

// Detail is a Student with the totals derived from its attendance and payment facts.
type Detail struct {
	Student
	GroupFee         null.Float64 `json:"group_fee" db:"group_fee"`
	TotalSessions    int          `json:"total_sessions" db:"total_sessions"`
	AttendedSessions int          `json:"attended_sessions" db:"attended_sessions"`
	MissedSessions   int          `json:"missed_sessions" db:"missed_sessions"`
	TotalPayments    float64      `json:"total_payments" db:"total_payments"`
}

// NewStudent contains information needed to enroll a new Student.
type NewStudent struct {
	Name             string      `json:"name" validate:"required,notblank"`
	Email            null.String `json:"email" validate:"omitempty,email"`
	Phone            null.String `json:"phone"`
	DateOfBirth      null.String `json:"date_of_birth" validate:"omitempty,date"`
	Address          null.String `json:"address"`
	EmergencyContact null.JSON   `json:"emergency_contact"`
	GroupID          null.String `json:"group_id" validate:"omitempty,uuid"`
	EnrollmentDate   string      `json:"enrollment_date" validate:"omitempty,date"`
	Status           string      `json:"status" validate:"omitempty,oneof=active inactive graduated dropped"`
	Notes            null.String `json:"notes"`
	Avatar           null.String `json:"avatar"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	if ns.Email.Valid {
		ns.Email.String = core.CleanString(ns.Email.String, true /* lower */)
		ns.Email.Valid = ns.Email.String != ""
	}
	if ns.GroupID.Valid && ns.GroupID.String == "" {
		ns.GroupID.Valid = false
	}
	ns.Status = core.CleanString(ns.Status, true /* lower */)
	return validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// nil fields are left untouched; empty strings clear optional fields.
type UpdateStudent struct {
	Name             *string   `json:"name" validate:"omitempty,notblank"`
	Email            *string   `json:"email" validate:"omitempty,email"`
	Phone            *string   `json:"phone"`
	DateOfBirth      *string   `json:"date_of_birth" validate:"omitempty,date"`
	Address          *string   `json:"address"`
	EmergencyContact null.JSON `json:"emergency_contact"`
	GroupID          *string   `json:"group_id" validate:"omitempty,uuid"`
	EnrollmentDate   *string   `json:"enrollment_date" validate:"omitempty,date"`
	Status           *string   `json:"status" validate:"omitempty,oneof=active inactive graduated dropped"`
	Notes            *string   `json:"notes"`
	Avatar           *string   `json:"avatar"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	if us.Name != nil {
		*us.Name = core.CleanString(*us.Name)
	}
	if us.Email != nil {
		*us.Email = core.CleanString(*us.Email, true /* lower */)
	}
	return validate.Struct(us)
}

func optString(s *string, current null.String) null.String {
	if s == nil {
		return current
	}
	return null.NewString(*s, *s != "")
}

func (us UpdateStudent) apply(s *Student) {
	if us.Name != nil {
		s.Name = *us.Name
	}
	s.Email = optString(us.Email, s.Email)
	s.Phone = optString(us.Phone, s.Phone)
	s.DateOfBirth = optString(us.DateOfBirth, s.DateOfBirth)
	s.Address = optString(us.Address, s.Address)
	if us.EmergencyContact.Valid {
		s.EmergencyContact = us.EmergencyContact
	}
	s.GroupID = optString(us.GroupID, s.GroupID)
	if us.EnrollmentDate != nil && *us.EnrollmentDate != "" {
		s.EnrollmentDate = *us.EnrollmentDate
	}
	if us.Status != nil && *us.Status != "" {
		s.Status = *us.Status
	}
	s.Notes = optString(us.Notes, s.Notes)
	s.Avatar = optString(us.Avatar, s.Avatar)
}

type QueryFilter struct {
	// Search does a case-insensitive substring match on name or email.
	Search  string `query:"search"`
	GroupID string `query:"group_id"`
	Status  string `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.GroupID = core.CleanString(qf.GroupID)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

// GroupSeats describes the occupancy of the group a student joins.
type GroupSeats struct {
	MaxStudents    int `db:"max_students"`
	ActiveStudents int `db:"active_students"`
}

func (gs GroupSeats) IsFull() bool {
	return gs.MaxStudents > 0 && gs.ActiveStudents >= gs.MaxStudents
}

// DeletionMode tells how a student was removed.
type DeletionMode string

const (
	// HardDeleted students had no attendance or payment facts and were removed.
	HardDeleted DeletionMode = "hard"
	// SoftDeleted students have facts referencing them and were made inactive.
	SoftDeleted DeletionMode = "soft"
)
