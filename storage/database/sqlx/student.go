package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/student"
)

var (
	studentColumns = []string{
		"id", "name", "email", "phone", "date_of_birth", "address", "emergency_contact", "group_id",
		"enrollment_date", "status", "notes", "avatar", "created_at", "updated_at",
	}
	studentOrdering = map[string]string{
		"name":            "s.name",
		"email":           "s.email",
		"status":          "s.status",
		"enrollment_date": "s.enrollment_date",
		"created_at":      "s.created_at",
	}
)

type studentRepository struct {
	repository
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db core.DBExecutor) *studentRepository {
	return &studentRepository{repository: newRepository(db)}
}

func (repo *studentRepository) selectStudents(extra ...string) sq.SelectBuilder {
	cols := make([]string, 0, len(studentColumns)+2+len(extra))
	for _, col := range studentColumns {
		cols = append(cols, "s."+col)
	}
	cols = append(cols, "g.name AS group_name", "g.level AS group_level")
	return repo.builder.Select(append(cols, extra...)...).
		From("students s").
		LeftJoin(`"groups" g ON g.id = s.group_id`)
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter student.QueryFilter, page core.Pagination, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]student.Student, int, error) {
	query := repo.selectStudents()
	if filter.Search != "" {
		query = query.Where(likeAny(filter.Search, "s.name", "s.email"))
	}
	if filter.GroupID != "" {
		query = query.Where(sq.Eq{"s.group_id": filter.GroupID})
	}
	if filter.Status != "" {
		query = query.Where(sq.Eq{"s.status": filter.Status})
	}

	db := repo.getExec(exec)
	total, err := repo.count(ctx, db, query)
	if err != nil {
		return nil, 0, core.NewStoreError(err, "counting students")
	}

	query = paginate(query.OrderBy(orderBy(ordering, studentOrdering, "s.created_at DESC", "s.id")...), page)
	students := make([]student.Student, 0, page.Limit)
	if err = repo.sel(ctx, db, &students, query); err != nil {
		return nil, 0, core.NewStoreError(err, "querying students")
	}
	return students, total, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	var s student.Student
	if err := repo.get(ctx, repo.getExec(exec), &s, repo.selectStudents().Where(sq.Eq{"s.id": id})); err != nil {
		if err = trapNoRowsErr(err, student.ErrNotFound); err == student.ErrNotFound {
			return student.Student{}, err
		}
		return student.Student{}, core.NewStoreError(err, "getting student")
	}
	return s, nil
}

func (repo *studentRepository) GetStudentDetail(ctx context.Context, id string, exec ...core.DBExecutor) (student.Detail, error) {
	query := repo.selectStudents(
		"g.fee_amount AS group_fee",
		"(SELECT COUNT(*) FROM attendance a WHERE a.student_id = s.id) AS total_sessions",
		"(SELECT COUNT(*) FROM attendance a WHERE a.student_id = s.id AND a.status = 'present') AS attended_sessions",
		"(SELECT COALESCE(SUM(p.amount), 0) FROM payments p WHERE p.student_id = s.id AND p.status = 'completed') AS total_payments",
	).Where(sq.Eq{"s.id": id})

	var d student.Detail
	if err := repo.get(ctx, repo.getExec(exec), &d, query); err != nil {
		if err = trapNoRowsErr(err, student.ErrNotFound); err == student.ErrNotFound {
			return student.Detail{}, err
		}
		return student.Detail{}, core.NewStoreError(err, "getting student detail")
	}
	d.MissedSessions = d.TotalSessions - d.AttendedSessions
	return d, nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	if s.ID == "" {
		s.ID = newID()
	}
	query := repo.builder.Insert("students").Columns(studentColumns...).Values(
		s.ID, s.Name, s.Email, s.Phone, s.DateOfBirth, s.Address, s.EmergencyContact, s.GroupID,
		s.EnrollmentDate, s.Status, s.Notes, s.Avatar, s.CreatedAt, s.UpdatedAt,
	)
	db := repo.getExec(exec)
	if _, err := repo.run(ctx, db, query); err != nil {
		return student.Student{}, core.NewStoreError(err, "inserting student")
	}
	return repo.GetStudent(ctx, s.ID, db)
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	query := repo.builder.Update("students").SetMap(map[string]interface{}{
		"name":              s.Name,
		"email":             s.Email,
		"phone":             s.Phone,
		"date_of_birth":     s.DateOfBirth,
		"address":           s.Address,
		"emergency_contact": s.EmergencyContact,
		"group_id":          s.GroupID,
		"enrollment_date":   s.EnrollmentDate,
		"status":            s.Status,
		"notes":             s.Notes,
		"avatar":            s.Avatar,
		"updated_at":        s.UpdatedAt,
	}).Where(sq.Eq{"id": s.ID})

	db := repo.getExec(exec)
	res, err := repo.run(ctx, db, query)
	if err != nil {
		return student.Student{}, core.NewStoreError(err, "updating student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return repo.GetStudent(ctx, s.ID, db)
}

func (repo *studentRepository) HasFacts(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error) {
	query := repo.builder.Select().Column(sq.Expr(
		"(SELECT COUNT(*) FROM attendance WHERE student_id = ?) + (SELECT COUNT(*) FROM payments WHERE student_id = ?)",
		id, id,
	))
	var n int
	if err := repo.get(ctx, repo.getExec(exec), &n, query); err != nil {
		return false, core.NewStoreError(err, "checking student facts")
	}
	return n > 0, nil
}

func (repo *studentRepository) DeleteStudent(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.run(ctx, repo.getExec(exec), repo.builder.Delete("students").Where(sq.Eq{"id": id}))
	if err != nil {
		return core.NewStoreError(err, "deleting student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return student.ErrNotFound
	}
	return nil
}

func (repo *studentRepository) GetGroupSeats(ctx context.Context, groupID, excludedStudentID string, exec ...core.DBExecutor) (student.GroupSeats, error) {
	// subqueries keep "?" placeholders, the outer builder numbers them
	active := sq.Select("COUNT(*)").From("students").
		Where(sq.Eq{"group_id": groupID, "status": student.StatusActive})
	if excludedStudentID != "" {
		active = active.Where(sq.NotEq{"id": excludedStudentID})
	}
	query := repo.builder.Select("g.max_students").
		Column(sq.Alias(active, "active_students")).
		From(`"groups" g`).
		Where(sq.Eq{"g.id": groupID})

	var seats student.GroupSeats
	if err := repo.get(ctx, repo.getExec(exec), &seats, query); err != nil {
		if err = trapNoRowsErr(err, student.ErrGroupNotFound); err == student.ErrGroupNotFound {
			return student.GroupSeats{}, err
		}
		return student.GroupSeats{}, core.NewStoreError(err, "getting group seats")
	}
	return seats, nil
}
