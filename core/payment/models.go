package payment

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ischoolgo/core"
)

// Statuses
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
)

// Methods
const (
	MethodCash         = "cash"
	MethodCard         = "card"
	MethodBankTransfer = "bank_transfer"
	MethodCheck        = "check"
)

type Payment struct {
	ID            string      `json:"id" db:"id"`
	StudentID     string      `json:"student_id" db:"student_id"`
	Amount        float64     `json:"amount" db:"amount"`
	PaymentMethod string      `json:"payment_method" db:"payment_method"`
	PaymentDate   string      `json:"payment_date" db:"payment_date"` // YYYY-MM-DD
	Status        string      `json:"status" db:"status"`
	ReceiptNumber string      `json:"receipt_number" db:"receipt_number"`
	Notes         null.String `json:"notes" db:"notes"`
	ProcessedBy   null.String `json:"processed_by" db:"processed_by"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"` // UTC

	// joined from the student and its group
	StudentName null.String `json:"student_name" db:"student_name"`
	GroupName   null.String `json:"group_name" db:"group_name"`
}

// NewPayment contains information needed to record a Payment.
type NewPayment struct {
	StudentID     string      `json:"student_id" validate:"required,uuid"`
	Amount        float64     `json:"amount" validate:"required,gt=0"`
	PaymentMethod string      `json:"payment_method" validate:"required,oneof=cash card bank_transfer check"`
	PaymentDate   string      `json:"payment_date" validate:"omitempty,date"`
	Status        string      `json:"status" validate:"omitempty,oneof=pending completed failed refunded"`
	ReceiptNumber string      `json:"receipt_number" validate:"omitempty,max=64"`
	Notes         null.String `json:"notes"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.StudentID = core.CleanString(np.StudentID)
	np.PaymentMethod = core.CleanString(np.PaymentMethod, true /* lower */)
	np.Status = core.CleanString(np.Status, true /* lower */)
	np.ReceiptNumber = core.CleanString(np.ReceiptNumber)
	return validate.Struct(np)
}

// UpdatePayment defines what information may be provided to modify an existing Payment.
type UpdatePayment struct {
	Amount        *float64 `json:"amount" validate:"omitempty,gt=0"`
	PaymentMethod *string  `json:"payment_method" validate:"omitempty,oneof=cash card bank_transfer check"`
	PaymentDate   *string  `json:"payment_date" validate:"omitempty,date"`
	Status        *string  `json:"status" validate:"omitempty,oneof=pending completed failed refunded"`
	ReceiptNumber *string  `json:"receipt_number" validate:"omitempty,max=64"`
	Notes         *string  `json:"notes"`
}

func (up *UpdatePayment) Validate(validate *validator.Validate) error {
	return validate.Struct(up)
}

func (up UpdatePayment) apply(p *Payment) {
	if up.Amount != nil {
		p.Amount = *up.Amount
	}
	if up.PaymentMethod != nil && *up.PaymentMethod != "" {
		p.PaymentMethod = *up.PaymentMethod
	}
	if up.PaymentDate != nil && *up.PaymentDate != "" {
		p.PaymentDate = *up.PaymentDate
	}
	if up.Status != nil && *up.Status != "" {
		p.Status = *up.Status
	}
	if up.ReceiptNumber != nil && *up.ReceiptNumber != "" {
		p.ReceiptNumber = *up.ReceiptNumber
	}
	if up.Notes != nil {
		p.Notes = null.NewString(*up.Notes, *up.Notes != "")
	}
}

// UpdateStatus moves a Payment to another status.
type UpdateStatus struct {
	Status string      `json:"status" validate:"required,oneof=pending completed failed refunded"`
	Notes  null.String `json:"notes"`
}

type QueryFilter struct {
	// Search does a case-insensitive substring match on the receipt number.
	Search        string `query:"search"`
	StudentID     string `query:"student_id"`
	Status        string `query:"status"`
	PaymentMethod string `query:"payment_method"`
	StartDate     string `query:"start_date"`
	EndDate       string `query:"end_date"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.PaymentMethod = core.CleanString(qf.PaymentMethod, true /* lower */)
	if !core.IsDate(qf.StartDate) {
		qf.StartDate = ""
	}
	if !core.IsDate(qf.EndDate) {
		qf.EndDate = ""
	}
}

// StatsFilter scopes payment statistics by payment date and by the student's group.
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
	TotalPayments     int     `json:"total_payments" db:"total_payments"`
	CompletedPayments int     `json:"completed_payments" db:"completed_payments"`
	PendingPayments   int     `json:"pending_payments" db:"pending_payments"`
	FailedPayments    int     `json:"failed_payments" db:"failed_payments"`
	RefundedPayments  int     `json:"refunded_payments" db:"refunded_payments"`
	TotalRevenue      float64 `json:"total_revenue" db:"total_revenue"`
	AveragePayment    float64 `json:"average_payment" db:"-"`
}
