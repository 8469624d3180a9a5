package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/ai"
	"github.com/trezcool/ischoolgo/core/attendance"
	"github.com/trezcool/ischoolgo/core/payment"
	"github.com/trezcool/ischoolgo/core/student"
)

type factsRepository struct {
	repository
}

var _ ai.Repository = (*factsRepository)(nil)

func NewFactsRepository(db core.DBExecutor) *factsRepository {
	return &factsRepository{repository: newRepository(db)}
}

func (repo *factsRepository) selectFacts(since string) sq.SelectBuilder {
	completed := "p.student_id = s.id AND p.status = '" + payment.StatusCompleted + "'"
	return repo.builder.Select(
		"s.id AS student_id",
		"s.name",
		"s.status",
		"s.enrollment_date",
		"g.name AS group_name",
		"g.level AS group_level",
		"g.fee_amount AS group_fee",
	).
		Column(sq.Expr("(SELECT COUNT(*) FROM attendance a WHERE a.student_id = s.id AND a.date >= ?) AS total_sessions", since)).
		Column(sq.Expr("(SELECT COUNT(*) FROM attendance a WHERE a.student_id = s.id AND a.date >= ? AND a.status = '"+
			attendance.StatusPresent+"') AS attended_sessions", since)).
		Column("(SELECT COALESCE(SUM(p.amount), 0) FROM payments p WHERE " + completed + ") AS total_payments").
		Column("(SELECT MAX(p.payment_date) FROM payments p WHERE " + completed + ") AS last_payment_date").
		From("students s").
		LeftJoin(`"groups" g ON g.id = s.group_id`)
}

func (repo *factsRepository) StudentFacts(ctx context.Context, studentID, since string) (ai.StudentFacts, error) {
	var facts ai.StudentFacts
	if err := repo.get(ctx, repo.db, &facts, repo.selectFacts(since).Where(sq.Eq{"s.id": studentID})); err != nil {
		if err = trapNoRowsErr(err, ai.ErrStudentNotFound); err == ai.ErrStudentNotFound {
			return ai.StudentFacts{}, err
		}
		return ai.StudentFacts{}, core.NewStoreError(err, "getting student facts")
	}
	return facts, nil
}

func (repo *factsRepository) ActiveStudentFacts(ctx context.Context, since string) ([]ai.StudentFacts, error) {
	query := repo.selectFacts(since).
		Where(sq.Eq{"s.status": student.StatusActive}).
		OrderBy("s.name ASC", "s.id")

	facts := make([]ai.StudentFacts, 0)
	if err := repo.sel(ctx, repo.db, &facts, query); err != nil {
		return nil, core.NewStoreError(err, "querying student facts")
	}
	return facts, nil
}
