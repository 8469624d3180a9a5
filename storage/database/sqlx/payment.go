package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/payment"
)

var paymentColumns = []string{
	"id", "student_id", "amount", "payment_method", "payment_date", "status", "receipt_number", "notes",
	"processed_by", "created_at", "updated_at",
}

type paymentRepository struct {
	repository
}

var _ payment.Repository = (*paymentRepository)(nil)

func NewPaymentRepository(db core.DBExecutor) *paymentRepository {
	return &paymentRepository{repository: newRepository(db)}
}

func (repo *paymentRepository) selectPayments() sq.SelectBuilder {
	cols := make([]string, 0, len(paymentColumns)+2)
	for _, col := range paymentColumns {
		cols = append(cols, "p."+col)
	}
	cols = append(cols, "s.name AS student_name", "g.name AS group_name")
	return repo.builder.Select(cols...).
		From("payments p").
		LeftJoin("students s ON s.id = p.student_id").
		LeftJoin(`"groups" g ON g.id = s.group_id`)
}

func (repo *paymentRepository) QueryPayments(ctx context.Context, filter payment.QueryFilter, page core.Pagination, exec ...core.DBExecutor) ([]payment.Payment, int, error) {
	query := repo.selectPayments()
	if filter.Search != "" {
		query = query.Where(likeAny(filter.Search, "p.receipt_number"))
	}
	if filter.StudentID != "" {
		query = query.Where(sq.Eq{"p.student_id": filter.StudentID})
	}
	if filter.Status != "" {
		query = query.Where(sq.Eq{"p.status": filter.Status})
	}
	if filter.PaymentMethod != "" {
		query = query.Where(sq.Eq{"p.payment_method": filter.PaymentMethod})
	}
	if filter.StartDate != "" {
		query = query.Where(sq.GtOrEq{"p.payment_date": filter.StartDate})
	}
	if filter.EndDate != "" {
		query = query.Where(sq.LtOrEq{"p.payment_date": filter.EndDate})
	}

	db := repo.getExec(exec)
	total, err := repo.count(ctx, db, query)
	if err != nil {
		return nil, 0, core.NewStoreError(err, "counting payments")
	}

	query = paginate(query.OrderBy("p.payment_date DESC", "p.created_at DESC", "p.id"), page)
	payments := make([]payment.Payment, 0, page.Limit)
	if err = repo.sel(ctx, db, &payments, query); err != nil {
		return nil, 0, core.NewStoreError(err, "querying payments")
	}
	return payments, total, nil
}

func (repo *paymentRepository) GetPayment(ctx context.Context, id string, exec ...core.DBExecutor) (payment.Payment, error) {
	var p payment.Payment
	if err := repo.get(ctx, repo.getExec(exec), &p, repo.selectPayments().Where(sq.Eq{"p.id": id})); err != nil {
		if err = trapNoRowsErr(err, payment.ErrNotFound); err == payment.ErrNotFound {
			return payment.Payment{}, err
		}
		return payment.Payment{}, core.NewStoreError(err, "getting payment")
	}
	return p, nil
}

func (repo *paymentRepository) CreatePayment(ctx context.Context, p payment.Payment, exec ...core.DBExecutor) (payment.Payment, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	query := repo.builder.Insert("payments").Columns(paymentColumns...).Values(
		p.ID, p.StudentID, p.Amount, p.PaymentMethod, p.PaymentDate, p.Status, p.ReceiptNumber, p.Notes,
		p.ProcessedBy, p.CreatedAt, p.UpdatedAt,
	)
	db := repo.getExec(exec)
	if _, err := repo.run(ctx, db, query); err != nil {
		return payment.Payment{}, core.NewStoreError(err, "inserting payment")
	}
	return repo.GetPayment(ctx, p.ID, db)
}

func (repo *paymentRepository) UpdatePayment(ctx context.Context, p payment.Payment, exec ...core.DBExecutor) (payment.Payment, error) {
	query := repo.builder.Update("payments").SetMap(map[string]interface{}{
		"amount":         p.Amount,
		"payment_method": p.PaymentMethod,
		"payment_date":   p.PaymentDate,
		"status":         p.Status,
		"receipt_number": p.ReceiptNumber,
		"notes":          p.Notes,
		"updated_at":     p.UpdatedAt,
	}).Where(sq.Eq{"id": p.ID})

	db := repo.getExec(exec)
	res, err := repo.run(ctx, db, query)
	if err != nil {
		return payment.Payment{}, core.NewStoreError(err, "updating payment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return payment.Payment{}, payment.ErrNotFound
	}
	return repo.GetPayment(ctx, p.ID, db)
}

func (repo *paymentRepository) GetStats(ctx context.Context, filter payment.StatsFilter, exec ...core.DBExecutor) (payment.Stats, error) {
	query := repo.builder.Select(
		"COUNT(*) AS total_payments",
		countStatus("p.status", payment.StatusCompleted, "completed_payments"),
		countStatus("p.status", payment.StatusPending, "pending_payments"),
		countStatus("p.status", payment.StatusFailed, "failed_payments"),
		countStatus("p.status", payment.StatusRefunded, "refunded_payments"),
		"COALESCE(SUM(CASE WHEN p.status = '"+payment.StatusCompleted+"' THEN p.amount ELSE 0 END), 0) AS total_revenue",
	).From("payments p")
	if filter.StartDate != "" {
		query = query.Where(sq.GtOrEq{"p.payment_date": filter.StartDate})
	}
	if filter.EndDate != "" {
		query = query.Where(sq.LtOrEq{"p.payment_date": filter.EndDate})
	}
	if filter.GroupID != "" {
		query = query.Join("students s ON s.id = p.student_id").Where(sq.Eq{"s.group_id": filter.GroupID})
	}

	var stats payment.Stats
	if err := repo.get(ctx, repo.getExec(exec), &stats, query); err != nil {
		return payment.Stats{}, core.NewStoreError(err, "computing payment stats")
	}
	return stats, nil
}

func (repo *paymentRepository) StudentExists(ctx context.Context, studentID string, exec ...core.DBExecutor) (bool, error) {
	ok, err := repo.exists(ctx, repo.getExec(exec), "students", studentID)
	if err != nil {
		return false, core.NewStoreError(err, "checking student")
	}
	return ok, nil
}

// countStatus counts the rows whose `column` equals `status`. Statuses are package constants.
func countStatus(column, status, alias string) string {
	return "COALESCE(SUM(CASE WHEN " + column + " = '" + status + "' THEN 1 ELSE 0 END), 0) AS " + alias
}
