package payment

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/user"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("payment not found")
	ErrStudentNotFound = errors.New("student not found")
)

type (
	Repository interface {
		// QueryPayments returns one page of payments matching filter, newest payment date first, and the total number of matches.
		QueryPayments(ctx context.Context, filter QueryFilter, page core.Pagination, exec ...core.DBExecutor) ([]Payment, int, error)
		GetPayment(ctx context.Context, id string, exec ...core.DBExecutor) (Payment, error)
		CreatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		UpdatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		GetStats(ctx context.Context, filter StatsFilter, exec ...core.DBExecutor) (Stats, error)
		StudentExists(ctx context.Context, studentID string, exec ...core.DBExecutor) (bool, error)
	}

	Service struct {
		db       core.DB
		repo     Repository
		validate *validator.Validate
		now      func() time.Time
	}
)

func NewService(db core.DB, repo Repository, validate *validator.Validate) *Service {
	return &Service{db: db, repo: repo, validate: validate, now: time.Now}
}

func (svc *Service) List(ctx context.Context, filter QueryFilter, page core.Pagination) (core.Page[Payment], error) {
	if err := user.Authorize(ctx, user.PermPaymentsRead); err != nil {
		return core.Page[Payment]{}, err
	}
	filter.Clean()
	page.Clean()
	payments, total, err := svc.repo.QueryPayments(ctx, filter, page)
	if err != nil {
		return core.Page[Payment]{}, errors.Wrap(err, "querying payments")
	}
	return core.NewPage(payments, page, total), nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Payment, error) {
	if err := user.Authorize(ctx, user.PermPaymentsRead); err != nil {
		return Payment{}, err
	}
	return svc.repo.GetPayment(ctx, id)
}

// Create records a payment. Status defaults to completed and a receipt number is generated when none is given.
func (svc *Service) Create(ctx context.Context, np NewPayment) (Payment, error) {
	if err := user.Authorize(ctx, user.PermPaymentsWrite); err != nil {
		return Payment{}, err
	}
	if err := np.Validate(svc.validate); err != nil {
		return Payment{}, err
	}

	now := svc.now().UTC()
	p := Payment{
		StudentID:     np.StudentID,
		Amount:        np.Amount,
		PaymentMethod: np.PaymentMethod,
		PaymentDate:   np.PaymentDate,
		Status:        np.Status,
		ReceiptNumber: np.ReceiptNumber,
		Notes:         np.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if p.PaymentDate == "" {
		p.PaymentDate = now.Format(core.DateLayout)
	}
	if p.Status == "" {
		p.Status = StatusCompleted
	}
	if p.ReceiptNumber == "" {
		p.ReceiptNumber = NewReceiptNumber(now)
	}
	if actor, ok := user.ActorFromContext(ctx); ok && actor.ID != "" {
		p.ProcessedBy = null.StringFrom(actor.ID)
	}

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		exists, err := svc.repo.StudentExists(ctx, p.StudentID, tx)
		if err != nil {
			return err
		}
		if !exists {
			return core.NewValidationError(ErrStudentNotFound, core.FieldError{Field: "student_id", Error: ErrStudentNotFound.Error()})
		}
		p, err = svc.repo.CreatePayment(ctx, p, tx)
		return err
	})
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

func (svc *Service) Update(ctx context.Context, id string, up UpdatePayment) (Payment, error) {
	if err := user.Authorize(ctx, user.PermPaymentsWrite); err != nil {
		return Payment{}, err
	}
	if err := up.Validate(svc.validate); err != nil {
		return Payment{}, err
	}
	return svc.update(ctx, id, up.apply)
}

// UpdateStatus moves a payment to another status, replacing its notes.
func (svc *Service) UpdateStatus(ctx context.Context, id string, us UpdateStatus) (Payment, error) {
	if err := user.Authorize(ctx, user.PermPaymentsWrite); err != nil {
		return Payment{}, err
	}
	if err := svc.validate.Struct(us); err != nil {
		return Payment{}, err
	}
	return svc.update(ctx, id, func(p *Payment) {
		p.Status = us.Status
		p.Notes = us.Notes
	})
}

func (svc *Service) update(ctx context.Context, id string, apply func(p *Payment)) (Payment, error) {
	var p Payment
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if p, err = svc.repo.GetPayment(ctx, id, tx); err != nil {
			return err
		}
		apply(&p)
		p.UpdatedAt = svc.now().UTC()
		p, err = svc.repo.UpdatePayment(ctx, p, tx)
		return err
	})
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

// Stats counts payments per status and sums the completed revenue.
func (svc *Service) Stats(ctx context.Context, filter StatsFilter) (Stats, error) {
	if err := user.Authorize(ctx, user.PermPaymentsRead); err != nil {
		return Stats{}, err
	}
	filter.Clean()
	stats, err := svc.repo.GetStats(ctx, filter)
	if err != nil {
		return Stats{}, errors.Wrap(err, "computing payment stats")
	}
	if stats.CompletedPayments > 0 {
		stats.AveragePayment = core.Round(stats.TotalRevenue/float64(stats.CompletedPayments), 2)
	}
	return stats, nil
}
