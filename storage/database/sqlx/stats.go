package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/attendance"
	"github.com/trezcool/ischoolgo/core/group"
	"github.com/trezcool/ischoolgo/core/payment"
	"github.com/trezcool/ischoolgo/core/stats"
	"github.com/trezcool/ischoolgo/core/student"
	"github.com/trezcool/ischoolgo/core/user"
)

type statsRepository struct {
	repository
}

var _ stats.Repository = (*statsRepository)(nil)

func NewStatsRepository(db core.DBExecutor) *statsRepository {
	return &statsRepository{repository: newRepository(db)}
}

func (repo *statsRepository) countWhere(ctx context.Context, table string, pred interface{}, op string) (int, error) {
	var n int
	if err := repo.get(ctx, repo.db, &n, repo.builder.Select("COUNT(*)").From(table).Where(pred)); err != nil {
		return 0, core.NewStoreError(err, op)
	}
	return n, nil
}

func (repo *statsRepository) CountActiveStudents(ctx context.Context) (int, error) {
	return repo.countWhere(ctx, "students", sq.Eq{"status": student.StatusActive}, "counting active students")
}

// CountStudentsCreatedSince counts the active students created since `since`.
func (repo *statsRepository) CountStudentsCreatedSince(ctx context.Context, since time.Time) (int, error) {
	pred := sq.And{sq.Eq{"status": student.StatusActive}, sq.GtOrEq{"created_at": since.UTC()}}
	return repo.countWhere(ctx, "students", pred, "counting new students")
}

func (repo *statsRepository) CountActiveGroups(ctx context.Context) (int, error) {
	return repo.countWhere(ctx, `"groups"`, sq.Eq{"status": group.StatusActive}, "counting active groups")
}

func (repo *statsRepository) CountActiveTeachers(ctx context.Context) (int, error) {
	pred := sq.Eq{"role": user.TeacherRoles, "status": user.StatusActive}
	return repo.countWhere(ctx, "users", pred, "counting teachers")
}

func (repo *statsRepository) CompletedRevenueSince(ctx context.Context, since string) (stats.RevenueTotal, error) {
	query := repo.builder.Select("COALESCE(SUM(amount), 0) AS amount", "COUNT(*) AS count").
		From("payments").
		Where(sq.Eq{"status": payment.StatusCompleted}).
		Where(sq.GtOrEq{"payment_date": since})

	var rev stats.RevenueTotal
	if err := repo.get(ctx, repo.db, &rev, query); err != nil {
		return stats.RevenueTotal{}, core.NewStoreError(err, "summing revenue")
	}
	return rev, nil
}

func (repo *statsRepository) CountAttendanceSince(ctx context.Context, groupID, since string) (stats.AttendanceCount, error) {
	query := repo.builder.Select("COUNT(*) AS total", countStatus("status", attendance.StatusPresent, "present")).
		From("attendance").
		Where(sq.GtOrEq{"date": since})
	if groupID != "" {
		query = query.Where(sq.Eq{"group_id": groupID})
	}

	var c stats.AttendanceCount
	if err := repo.get(ctx, repo.db, &c, query); err != nil {
		return stats.AttendanceCount{}, core.NewStoreError(err, "counting attendance")
	}
	return c, nil
}

func (repo *statsRepository) RecentStudents(ctx context.Context, since time.Time, limit int) ([]stats.RecentStudent, error) {
	query := repo.builder.Select("name", "created_at").
		From("students").
		Where(sq.GtOrEq{"created_at": since.UTC()}).
		OrderBy("created_at DESC").
		Limit(uint64(limit))

	students := make([]stats.RecentStudent, 0, limit)
	if err := repo.sel(ctx, repo.db, &students, query); err != nil {
		return nil, core.NewStoreError(err, "querying recent students")
	}
	return students, nil
}

func (repo *statsRepository) CompletedPaymentsSince(ctx context.Context, since string) ([]stats.PaymentFact, error) {
	query := repo.builder.Select("payment_date", "amount").
		From("payments").
		Where(sq.Eq{"status": payment.StatusCompleted}).
		Where(sq.GtOrEq{"payment_date": since})

	payments := make([]stats.PaymentFact, 0)
	if err := repo.sel(ctx, repo.db, &payments, query); err != nil {
		return nil, core.NewStoreError(err, "querying payments")
	}
	return payments, nil
}

func (repo *statsRepository) EnrollmentsSince(ctx context.Context, since string) ([]stats.EnrollmentFact, error) {
	query := repo.builder.Select("enrollment_date", "status").
		From("students").
		Where(sq.GtOrEq{"enrollment_date": since})

	enrollments := make([]stats.EnrollmentFact, 0)
	if err := repo.sel(ctx, repo.db, &enrollments, query); err != nil {
		return nil, core.NewStoreError(err, "querying enrollments")
	}
	return enrollments, nil
}

func (repo *statsRepository) ActiveGroups(ctx context.Context) ([]stats.GroupRanking, error) {
	query := repo.builder.Select("g.id", "g.name", "g.level", "u.name AS teacher_name", activeStudentCount).
		From(`"groups" g`).
		LeftJoin("users u ON u.id = g.teacher_id").
		Where(sq.Eq{"g.status": group.StatusActive})

	groups := make([]stats.GroupRanking, 0)
	if err := repo.sel(ctx, repo.db, &groups, query); err != nil {
		return nil, core.NewStoreError(err, "querying active groups")
	}
	return groups, nil
}
