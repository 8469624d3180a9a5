package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ischoolgo/core"
)

// Statuses
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusExcused = "excused"

	// StatusNotRecorded is reported for roster students without a record for the date. It is never stored.
	StatusNotRecorded = "not_recorded"
)

// Record is the attendance of one student in one group on one date.
// (StudentID, GroupID, Date) is unique.
type Record struct {
	ID         string      `json:"id" db:"id"`
	StudentID  string      `json:"student_id" db:"student_id"`
	GroupID    string      `json:"group_id" db:"group_id"`
	Date       string      `json:"date" db:"date"` // YYYY-MM-DD
	Status     string      `json:"status" db:"status"`
	Notes      null.String `json:"notes" db:"notes"`
	RecordedBy null.String `json:"recorded_by" db:"recorded_by"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt  time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

// RosterEntry is one active student of a group with its attendance on a date, if any.
type RosterEntry struct {
	StudentID    string      `json:"student_id" db:"student_id"`
	StudentName  string      `json:"student_name" db:"student_name"`
	StudentEmail null.String `json:"student_email" db:"student_email"`
	RecordID     null.String `json:"record_id" db:"record_id"`
	Date         string      `json:"date" db:"-"`
	Status       string      `json:"status" db:"status"`
	Notes        null.String `json:"notes" db:"notes"`
	RecordedBy   null.String `json:"recorded_by" db:"recorded_by"`
}

// HistoryEntry is a Record with the name and level of its group.
type HistoryEntry struct {
	Record
	GroupName  null.String `json:"group_name" db:"group_name"`
	GroupLevel null.String `json:"group_level" db:"group_level"`
}

// NewRecord contains information needed to record a student's attendance.
type NewRecord struct {
	StudentID string      `json:"student_id" validate:"required,uuid"`
	GroupID   string      `json:"group_id" validate:"required,uuid"`
	Date      string      `json:"date" validate:"required,date"`
	Status    string      `json:"status" validate:"required,oneof=present absent late excused"`
	Notes     null.String `json:"notes"`
}

func (nr *NewRecord) Validate(validate *validator.Validate) error {
	nr.StudentID = core.CleanString(nr.StudentID)
	nr.GroupID = core.CleanString(nr.GroupID)
	nr.Date = core.CleanString(nr.Date)
	nr.Status = core.CleanString(nr.Status, true /* lower */)
	return validate.Struct(nr)
}

// BulkEntry is the attendance of one student within a BulkRecord.
type BulkEntry struct {
	StudentID string      `json:"student_id" validate:"required,uuid"`
	Status    string      `json:"status" validate:"required,oneof=present absent late excused"`
	Notes     null.String `json:"notes"`
}

// BulkRecord records the attendance of a whole group on one date.
type BulkRecord struct {
	Date    string      `json:"date" validate:"required,date"`
	Entries []BulkEntry `json:"entries" validate:"required,min=1,dive"`
}

type HistoryFilter struct {
	StartDate string `query:"start_date"`
	EndDate   string `query:"end_date"`
	Limit     int    `query:"limit"`
}

func (hf *HistoryFilter) Clean() {
	if !core.IsDate(hf.StartDate) {
		hf.StartDate = ""
	}
	if !core.IsDate(hf.EndDate) {
		hf.EndDate = ""
	}
	if hf.Limit < 0 {
		hf.Limit = 0
	}
}

// StatsFilter scopes attendance statistics by date range and group.
type StatsFilter struct {
	StartDate string `query:"start_date"`
	EndDate   string `query:"end_date"`
	GroupID   string `query:"group_id"`
}

func (sf *StatsFilter) Clean() {
	if !core.IsDate(sf.StartDate) {
		sf.StartDate = ""
	}
	if !core.IsDate(sf.EndDate) {
		sf.EndDate = ""
	}
	sf.GroupID = core.CleanString(sf.GroupID)
}

type Stats struct {
	TotalRecords   int     `json:"total_records" db:"total_records"`
	PresentCount   int     `json:"present_count" db:"present_count"`
	AbsentCount    int     `json:"absent_count" db:"absent_count"`
	LateCount      int     `json:"late_count" db:"late_count"`
	ExcusedCount   int     `json:"excused_count" db:"excused_count"`
	AttendanceRate float64 `json:"attendance_rate" db:"-"`
}

// Rate returns the share of present facts among all facts, as a percentage.
// Late, absent and excused facts all count against the rate.
func Rate(present, total int) float64 {
	return core.Percent(present, total)
}
