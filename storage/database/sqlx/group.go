package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/group"
	"github.com/trezcool/ischoolgo/core/student"
	"github.com/trezcool/ischoolgo/core/user"
)

var (
	groupColumns = []string{
		"id", "name", "level", "subject", "teacher_id", "schedule", "max_students", "fee_amount",
		"description", "status", "start_date", "end_date", "created_at", "updated_at",
	}
	groupOrdering = map[string]string{
		"name":       "g.name",
		"level":      "g.level",
		"subject":    "g.subject",
		"status":     "g.status",
		"start_date": "g.start_date",
		"created_at": "g.created_at",
	}
	// activeStudentCount counts the active students of the group aliased g.
	activeStudentCount = "(SELECT COUNT(*) FROM students s WHERE s.group_id = g.id AND s.status = '" + student.StatusActive + "') AS student_count"
)

type groupRepository struct {
	repository
}

var _ group.Repository = (*groupRepository)(nil)

func NewGroupRepository(db core.DBExecutor) *groupRepository {
	return &groupRepository{repository: newRepository(db)}
}

func (repo *groupRepository) selectGroups() sq.SelectBuilder {
	cols := make([]string, 0, len(groupColumns)+2)
	for _, col := range groupColumns {
		cols = append(cols, "g."+col)
	}
	cols = append(cols, "u.name AS teacher_name", activeStudentCount)
	return repo.builder.Select(cols...).
		From(`"groups" g`).
		LeftJoin("users u ON u.id = g.teacher_id")
}

func (repo *groupRepository) QueryGroups(ctx context.Context, filter group.QueryFilter, page core.Pagination, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]group.Group, int, error) {
	query := repo.selectGroups()
	if filter.Search != "" {
		query = query.Where(likeAny(filter.Search, "g.name", "g.subject"))
	}
	if filter.Status != "" {
		query = query.Where(sq.Eq{"g.status": filter.Status})
	}
	if filter.Level != "" {
		query = query.Where(sq.Eq{"g.level": filter.Level})
	}
	if filter.TeacherID != "" {
		query = query.Where(sq.Eq{"g.teacher_id": filter.TeacherID})
	}

	db := repo.getExec(exec)
	total, err := repo.count(ctx, db, query)
	if err != nil {
		return nil, 0, core.NewStoreError(err, "counting groups")
	}

	query = paginate(query.OrderBy(orderBy(ordering, groupOrdering, "g.created_at DESC", "g.id")...), page)
	groups := make([]group.Group, 0, page.Limit)
	if err = repo.sel(ctx, db, &groups, query); err != nil {
		return nil, 0, core.NewStoreError(err, "querying groups")
	}
	return groups, total, nil
}

func (repo *groupRepository) GetGroup(ctx context.Context, id string, exec ...core.DBExecutor) (group.Group, error) {
	var g group.Group
	if err := repo.get(ctx, repo.getExec(exec), &g, repo.selectGroups().Where(sq.Eq{"g.id": id})); err != nil {
		if err = trapNoRowsErr(err, group.ErrNotFound); err == group.ErrNotFound {
			return group.Group{}, err
		}
		return group.Group{}, core.NewStoreError(err, "getting group")
	}
	return g, nil
}

func (repo *groupRepository) CreateGroup(ctx context.Context, g group.Group, exec ...core.DBExecutor) (group.Group, error) {
	if g.ID == "" {
		g.ID = newID()
	}
	query := repo.builder.Insert(`"groups"`).Columns(groupColumns...).Values(
		g.ID, g.Name, g.Level, g.Subject, g.TeacherID, g.Schedule, g.MaxStudents, g.FeeAmount,
		g.Description, g.Status, g.StartDate, g.EndDate, g.CreatedAt, g.UpdatedAt,
	)
	db := repo.getExec(exec)
	if _, err := repo.run(ctx, db, query); err != nil {
		return group.Group{}, core.NewStoreError(err, "inserting group")
	}
	return repo.GetGroup(ctx, g.ID, db)
}

func (repo *groupRepository) UpdateGroup(ctx context.Context, g group.Group, exec ...core.DBExecutor) (group.Group, error) {
	query := repo.builder.Update(`"groups"`).SetMap(map[string]interface{}{
		"name":         g.Name,
		"level":        g.Level,
		"subject":      g.Subject,
		"teacher_id":   g.TeacherID,
		"schedule":     g.Schedule,
		"max_students": g.MaxStudents,
		"fee_amount":   g.FeeAmount,
		"description":  g.Description,
		"status":       g.Status,
		"start_date":   g.StartDate,
		"end_date":     g.EndDate,
		"updated_at":   g.UpdatedAt,
	}).Where(sq.Eq{"id": g.ID})

	db := repo.getExec(exec)
	res, err := repo.run(ctx, db, query)
	if err != nil {
		return group.Group{}, core.NewStoreError(err, "updating group")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return group.Group{}, group.ErrNotFound
	}
	return repo.GetGroup(ctx, g.ID, db)
}

func (repo *groupRepository) QueryMembers(ctx context.Context, groupID string, exec ...core.DBExecutor) ([]group.Member, error) {
	query := repo.builder.Select("id", "name", "email", "phone", "enrollment_date", "status").
		From("students").
		Where(sq.Eq{"group_id": groupID, "status": student.StatusActive}).
		OrderBy("name ASC", "id")

	members := make([]group.Member, 0)
	if err := repo.sel(ctx, repo.getExec(exec), &members, query); err != nil {
		return nil, core.NewStoreError(err, "querying group members")
	}
	return members, nil
}

func (repo *groupRepository) IsTeacher(ctx context.Context, userID string, exec ...core.DBExecutor) (bool, error) {
	var n int
	query := repo.builder.Select("COUNT(*)").From("users").
		Where(sq.Eq{"id": userID, "role": user.TeacherRoles})
	if err := repo.get(ctx, repo.getExec(exec), &n, query); err != nil {
		return false, core.NewStoreError(err, "checking teacher")
	}
	return n > 0, nil
}
