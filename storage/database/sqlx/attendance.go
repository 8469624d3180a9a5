package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/attendance"
	"github.com/trezcool/ischoolgo/core/student"
)

const attendanceUpsertSuffix = "ON CONFLICT (student_id, group_id, date) DO UPDATE SET " +
	"status = excluded.status, notes = excluded.notes, recorded_by = excluded.recorded_by, updated_at = excluded.updated_at"

var attendanceColumns = []string{
	"id", "student_id", "group_id", "date", "status", "notes", "recorded_by", "created_at", "updated_at",
}

type attendanceRepository struct {
	repository
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db core.DBExecutor) *attendanceRepository {
	return &attendanceRepository{repository: newRepository(db)}
}

// UpsertRecord relies on the unique index over (student_id, group_id, date): concurrent recordings of
// the same key resolve to a single row holding the last write.
func (repo *attendanceRepository) UpsertRecord(ctx context.Context, r attendance.Record, exec ...core.DBExecutor) (attendance.Record, error) {
	if r.ID == "" {
		r.ID = newID()
	}
	query := repo.builder.Insert("attendance").Columns(attendanceColumns...).Values(
		r.ID, r.StudentID, r.GroupID, r.Date, r.Status, r.Notes, r.RecordedBy, r.CreatedAt, r.UpdatedAt,
	).Suffix(attendanceUpsertSuffix)

	db := repo.getExec(exec)
	if _, err := repo.run(ctx, db, query); err != nil {
		return attendance.Record{}, core.NewStoreError(err, "upserting attendance")
	}

	var rec attendance.Record
	sel := repo.builder.Select(attendanceColumns...).From("attendance").
		Where(sq.Eq{"student_id": r.StudentID, "group_id": r.GroupID, "date": r.Date})
	if err := repo.get(ctx, db, &rec, sel); err != nil {
		return attendance.Record{}, core.NewStoreError(err, "getting attendance")
	}
	return rec, nil
}

func (repo *attendanceRepository) QueryRoster(ctx context.Context, groupID, date string, exec ...core.DBExecutor) ([]attendance.RosterEntry, error) {
	query := repo.builder.Select(
		"s.id AS student_id",
		"s.name AS student_name",
		"s.email AS student_email",
		"a.id AS record_id",
		"COALESCE(a.status, '') AS status",
		"a.notes",
		"a.recorded_by",
	).
		From("students s").
		LeftJoin("attendance a ON a.student_id = s.id AND a.group_id = ? AND a.date = ?", groupID, date).
		Where(sq.Eq{"s.group_id": groupID, "s.status": student.StatusActive}).
		OrderBy("s.name ASC", "s.id")

	roster := make([]attendance.RosterEntry, 0)
	if err := repo.sel(ctx, repo.getExec(exec), &roster, query); err != nil {
		return nil, core.NewStoreError(err, "querying roster")
	}
	return roster, nil
}

func (repo *attendanceRepository) QueryHistory(ctx context.Context, studentID string, filter attendance.HistoryFilter, exec ...core.DBExecutor) ([]attendance.HistoryEntry, error) {
	cols := make([]string, 0, len(attendanceColumns)+2)
	for _, col := range attendanceColumns {
		cols = append(cols, "a."+col)
	}
	query := repo.builder.Select(append(cols, "g.name AS group_name", "g.level AS group_level")...).
		From("attendance a").
		LeftJoin(`"groups" g ON g.id = a.group_id`).
		Where(sq.Eq{"a.student_id": studentID}).
		OrderBy("a.date DESC", "a.created_at DESC")
	if filter.StartDate != "" {
		query = query.Where(sq.GtOrEq{"a.date": filter.StartDate})
	}
	if filter.EndDate != "" {
		query = query.Where(sq.LtOrEq{"a.date": filter.EndDate})
	}
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}

	history := make([]attendance.HistoryEntry, 0)
	if err := repo.sel(ctx, repo.getExec(exec), &history, query); err != nil {
		return nil, core.NewStoreError(err, "querying attendance history")
	}
	return history, nil
}

func (repo *attendanceRepository) CountStatuses(ctx context.Context, filter attendance.StatsFilter, exec ...core.DBExecutor) (attendance.Stats, error) {
	query := repo.builder.Select(
		"COUNT(*) AS total_records",
		countStatus("status", attendance.StatusPresent, "present_count"),
		countStatus("status", attendance.StatusAbsent, "absent_count"),
		countStatus("status", attendance.StatusLate, "late_count"),
		countStatus("status", attendance.StatusExcused, "excused_count"),
	).From("attendance")
	if filter.StartDate != "" {
		query = query.Where(sq.GtOrEq{"date": filter.StartDate})
	}
	if filter.EndDate != "" {
		query = query.Where(sq.LtOrEq{"date": filter.EndDate})
	}
	if filter.GroupID != "" {
		query = query.Where(sq.Eq{"group_id": filter.GroupID})
	}

	var stats attendance.Stats
	if err := repo.get(ctx, repo.getExec(exec), &stats, query); err != nil {
		return attendance.Stats{}, core.NewStoreError(err, "counting attendance")
	}
	return stats, nil
}

func (repo *attendanceRepository) GroupExists(ctx context.Context, groupID string, exec ...core.DBExecutor) (bool, error) {
	ok, err := repo.exists(ctx, repo.getExec(exec), `"groups"`, groupID)
	if err != nil {
		return false, core.NewStoreError(err, "checking group")
	}
	return ok, nil
}

func (repo *attendanceRepository) StudentExists(ctx context.Context, studentID string, exec ...core.DBExecutor) (bool, error) {
	ok, err := repo.exists(ctx, repo.getExec(exec), "students", studentID)
	if err != nil {
		return false, core.NewStoreError(err, "checking student")
	}
	return ok, nil
}
