package ai

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ischoolgo/core"
)

// Payment statuses
const (
	PaymentUpToDate = "up_to_date"
	PaymentBehind   = "behind"
)

// Risk levels
const (
	RiskHigh   = "high"
	RiskMedium = "medium"
	RiskLow    = "low"
)

const (
	// WindowDays is the trailing window over which attendance and payments are assessed.
	WindowDays = 30

	atRiskThreshold = 70.0
	mediumThreshold = 85.0
)

// StudentFacts gathers what is known about a student over the trailing window.
type StudentFacts struct {
	StudentID        string       `json:"student_id" db:"student_id"`
	Name             string       `json:"name" db:"name"`
	Status           string       `json:"status" db:"status"`
	EnrollmentDate   string       `json:"enrollment_date" db:"enrollment_date"`
	GroupName        null.String  `json:"group_name" db:"group_name"`
	GroupLevel       null.String  `json:"group_level" db:"group_level"`
	GroupFee         null.Float64 `json:"group_fee" db:"group_fee"`
	TotalSessions    int          `json:"total_sessions" db:"total_sessions"`
	AttendedSessions int          `json:"attended_sessions" db:"attended_sessions"`
	TotalPayments    float64      `json:"total_payments" db:"total_payments"`
	LastPaymentDate  null.String  `json:"last_payment_date" db:"last_payment_date"` // last completed payment
}

func (f StudentFacts) MissedSessions() int {
	return f.TotalSessions - f.AttendedSessions
}

// AttendanceRate returns the share of attended sessions, rounded to two decimals.
func (f StudentFacts) AttendanceRate() float64 {
	return core.Round(core.Percent(f.AttendedSessions, f.TotalSessions), 2)
}

// PaymentStatus reports a student as behind when their group charges a fee, they enrolled more
// than WindowDays ago and no completed payment is dated within the window.
func (f StudentFacts) PaymentStatus(now time.Time) string {
	if !f.GroupFee.Valid || f.GroupFee.Float64 <= 0 {
		return PaymentUpToDate
	}
	cutoff := core.DaysAgo(now, WindowDays)
	if f.EnrollmentDate >= cutoff {
		return PaymentUpToDate
	}
	if f.LastPaymentDate.Valid && f.LastPaymentDate.String >= cutoff {
		return PaymentUpToDate
	}
	return PaymentBehind
}

// IsAtRisk flags attendance below 70% or a payment status of behind.
// A student without sessions in the window has a rate of 0 and is flagged.
func IsAtRisk(f StudentFacts, paymentStatus string) bool {
	if f.AttendanceRate() < atRiskThreshold {
		return true
	}
	return paymentStatus == PaymentBehind
}

// RiskLevel grades an attendance rate.
func RiskLevel(rate float64) string {
	switch {
	case rate < atRiskThreshold:
		return RiskHigh
	case rate < mediumThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Response is a generated text.
type Response struct {
	Text      string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatRequest struct {
	Message string `json:"message" validate:"required,notblank,max=4000"`
	Context string `json:"context" validate:"max=4000"`
}

func (cr *ChatRequest) Validate(validate *validator.Validate) error {
	cr.Message = core.CleanString(cr.Message)
	cr.Context = core.CleanString(cr.Context)
	return validate.Struct(cr)
}

type MarketingRequest struct {
	CampaignType      string `json:"campaign_type" validate:"required,notblank,max=200"`
	TargetAudience    string `json:"target_audience" validate:"required,notblank,max=200"`
	AdditionalContext string `json:"additional_context" validate:"max=2000"`
}

func (mr *MarketingRequest) Validate(validate *validator.Validate) error {
	mr.CampaignType = core.CleanString(mr.CampaignType)
	mr.TargetAudience = core.CleanString(mr.TargetAudience)
	mr.AdditionalContext = core.CleanString(mr.AdditionalContext)
	return validate.Struct(mr)
}

type MarketingContent struct {
	Content        string    `json:"content"`
	CampaignType   string    `json:"campaign_type"`
	TargetAudience string    `json:"target_audience"`
	GeneratedAt    time.Time `json:"generated_at"`
}

type Metrics struct {
	AttendanceRate float64 `json:"attendance_rate"`
	PaymentStatus  string  `json:"payment_status"`
	RiskLevel      string  `json:"risk_level"`
}

type StudentAnalysis struct {
	Student   StudentFacts `json:"student"`
	Analysis  string       `json:"analysis"`
	Metrics   Metrics      `json:"metrics"`
	Timestamp time.Time    `json:"timestamp"`
}

// AtRiskStudent is a flagged student with the generated commentary.
// Error is set instead of Analysis when the commentary could not be generated.
type AtRiskStudent struct {
	StudentID        string      `json:"id"`
	Name             string      `json:"name"`
	GroupName        null.String `json:"group_name"`
	AttendedSessions int         `json:"attended_sessions"`
	TotalSessions    int         `json:"total_sessions"`
	AttendanceRate   float64     `json:"attendance_rate"`
	PaymentStatus    string      `json:"payment_status"`
	Analysis         string      `json:"ai_analysis"`
	Error            string      `json:"error,omitempty"`
}

type AtRiskReport struct {
	Students      []AtRiskStudent `json:"at_risk_students"`
	TotalAnalyzed int             `json:"total_analyzed"`
	RiskCount     int             `json:"risk_count"`
	AnalysisDate  time.Time       `json:"analysis_date"`
}
