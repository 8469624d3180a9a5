package stats

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Timeframes of the dashboard overview
const (
	TimeframeWeek  = "week"
	TimeframeMonth = "month"
	TimeframeYear  = "year"
)

// TimeframeDays returns the length in days of a dashboard timeframe. Unknown timeframes last 30 days.
func TimeframeDays(timeframe string) int {
	switch timeframe {
	case TimeframeWeek:
		return 7
	case TimeframeYear:
		return 365
	default:
		return 30
	}
}

const (
	recentActivityDays  = 7
	recentActivityLimit = 5
	topGroupsDays       = 30
	topGroupsLimit      = 10
	trendDays           = 365
)

type Overview struct {
	Stats            OverviewStats `json:"stats"`
	RecentActivities []Activity    `json:"recent_activities"`
	// Degraded lists the figures that could not be computed and were reported as zero.
	Degraded []string `json:"degraded,omitempty"`
}

type OverviewStats struct {
	ActiveStudents int     `json:"active_students"`
	NewStudents    int     `json:"new_students"`
	ActiveGroups   int     `json:"active_groups"`
	TotalTeachers  int     `json:"total_teachers"`
	Revenue        float64 `json:"revenue"`
	TotalPayments  int     `json:"total_payments"`
	AttendanceRate float64 `json:"attendance_rate"` // whole percent
}

// Activity is one entry of the dashboard feed.
type Activity struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

const ActivityStudentEnrolled = "student_enrolled"

type MonthlyRevenue struct {
	Period       string  `json:"period"` // YYYY-MM
	Revenue      float64 `json:"revenue"`
	PaymentCount int     `json:"payment_count"`
}

type EnrollmentTrend struct {
	Month             string `json:"month"` // YYYY-MM
	NewEnrollments    int    `json:"new_enrollments"`
	ActiveEnrollments int    `json:"active_enrollments"`
}

// GroupRanking is an active group with its active student count and trailing attendance rate.
type GroupRanking struct {
	ID             string      `json:"id" db:"id"`
	Name           string      `json:"name" db:"name"`
	Level          string      `json:"level" db:"level"`
	TeacherName    null.String `json:"teacher_name" db:"teacher_name"`
	StudentCount   int         `json:"student_count" db:"student_count"`
	AttendanceRate float64     `json:"attendance_rate" db:"-"` // whole percent
}

// Raw facts read from the store.
type (
	PaymentFact struct {
		PaymentDate string  `db:"payment_date"`
		Amount      float64 `db:"amount"`
	}

	EnrollmentFact struct {
		EnrollmentDate string `db:"enrollment_date"`
		Status         string `db:"status"`
	}

	RecentStudent struct {
		Name      string    `db:"name"`
		CreatedAt time.Time `db:"created_at"`
	}

	AttendanceCount struct {
		Total   int `db:"total"`
		Present int `db:"present"`
	}

	RevenueTotal struct {
		Amount float64 `db:"amount"`
		Count  int     `db:"count"`
	}
)
