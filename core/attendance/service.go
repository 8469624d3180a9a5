package attendance

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
	ErrGroupNotFound   = core.NewNotFoundError("group not found")
	ErrStudentNotFound = core.NewNotFoundError("student not found")
	ErrInvalidDate     = errors.New("date must be formatted as YYYY-MM-DD")
	ErrDuplicateEntry  = errors.New("a student appears more than once")
)

type (
	Repository interface {
		// UpsertRecord inserts r, or overwrites status, notes and recorder of the record sharing its
		// (student, group, date) key, in one atomic statement. It returns the stored record.
		UpsertRecord(ctx context.Context, r Record, exec ...core.DBExecutor) (Record, error)
		// QueryRoster returns one entry per active student of the group, with the record of `date` if any.
		QueryRoster(ctx context.Context, groupID, date string, exec ...core.DBExecutor) ([]RosterEntry, error)
		// QueryHistory returns the records of a student, newest date first.
		QueryHistory(ctx context.Context, studentID string, filter HistoryFilter, exec ...core.DBExecutor) ([]HistoryEntry, error)
		CountStatuses(ctx context.Context, filter StatsFilter, exec ...core.DBExecutor) (Stats, error)
		GroupExists(ctx context.Context, groupID string, exec ...core.DBExecutor) (bool, error)
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

// Record stores the attendance of a student, replacing any record with the same student, group and date.
func (svc *Service) Record(ctx context.Context, nr NewRecord) (Record, error) {
	if err := user.Authorize(ctx, user.PermAttendanceWrite); err != nil {
		return Record{}, err
	}
	if err := nr.Validate(svc.validate); err != nil {
		return Record{}, err
	}

	var rec Record
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkRefs(ctx, tx, nr.GroupID, nr.StudentID); err != nil {
			return err
		}
		var err error
		rec, err = svc.repo.UpsertRecord(ctx, svc.newRecord(ctx, nr.StudentID, nr.GroupID, nr.Date, nr.Status, nr.Notes), tx)
		return err
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// RecordBulk stores the attendance of several students of a group on one date, all or nothing.
func (svc *Service) RecordBulk(ctx context.Context, groupID string, br BulkRecord) ([]Record, error) {
	if err := user.Authorize(ctx, user.PermAttendanceWrite); err != nil {
		return nil, err
	}
	if err := svc.validate.Struct(br); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(br.Entries))
	studentIDs := make([]string, 0, len(br.Entries))
	for _, e := range br.Entries {
		if _, ok := seen[e.StudentID]; ok {
			return nil, &core.ConflictError{Err: errors.Wrap(ErrDuplicateEntry, e.StudentID)}
		}
		seen[e.StudentID] = struct{}{}
		studentIDs = append(studentIDs, e.StudentID)
	}

	records := make([]Record, 0, len(br.Entries))
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkRefs(ctx, tx, groupID, studentIDs...); err != nil {
			return err
		}
		for _, e := range br.Entries {
			rec, err := svc.repo.UpsertRecord(ctx, svc.newRecord(ctx, e.StudentID, groupID, br.Date, e.Status, e.Notes), tx)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ByGroupAndDate returns the full roster of a group for a date.
// Students without a record are reported as StatusNotRecorded.
func (svc *Service) ByGroupAndDate(ctx context.Context, groupID, date string) ([]RosterEntry, error) {
	if err := user.Authorize(ctx, user.PermAttendanceRead); err != nil {
		return nil, err
	}
	if !core.IsDate(date) {
		return nil, core.NewValidationError(ErrInvalidDate, core.FieldError{Field: "date", Error: ErrInvalidDate.Error()})
	}
	exists, err := svc.repo.GroupExists(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrGroupNotFound
	}

	roster, err := svc.repo.QueryRoster(ctx, groupID, date)
	if err != nil {
		return nil, errors.Wrap(err, "querying roster")
	}
	for i := range roster {
		roster[i].Date = date
		if roster[i].Status == "" {
			roster[i].Status = StatusNotRecorded
		}
	}
	return roster, nil
}

func (svc *Service) StudentHistory(ctx context.Context, studentID string, filter HistoryFilter) ([]HistoryEntry, error) {
	if err := user.Authorize(ctx, user.PermAttendanceRead); err != nil {
		return nil, err
	}
	exists, err := svc.repo.StudentExists(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrStudentNotFound
	}
	filter.Clean()
	return svc.repo.QueryHistory(ctx, studentID, filter)
}

// Stats counts records per status; the attendance rate is rounded to two decimals.
func (svc *Service) Stats(ctx context.Context, filter StatsFilter) (Stats, error) {
	if err := user.Authorize(ctx, user.PermAttendanceRead); err != nil {
		return Stats{}, err
	}
	filter.Clean()
	stats, err := svc.repo.CountStatuses(ctx, filter)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting attendance")
	}
	stats.AttendanceRate = core.Round(Rate(stats.PresentCount, stats.TotalRecords), 2)
	return stats, nil
}

func (svc *Service) newRecord(ctx context.Context, studentID, groupID, date, status string, notes null.String) Record {
	now := svc.now().UTC()
	rec := Record{
		StudentID: studentID,
		GroupID:   groupID,
		Date:      date,
		Status:    status,
		Notes:     notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if actor, ok := user.ActorFromContext(ctx); ok && actor.ID != "" {
		rec.RecordedBy = null.StringFrom(actor.ID)
	}
	return rec
}

func (svc *Service) checkRefs(ctx context.Context, exec core.DBExecutor, groupID string, studentIDs ...string) error {
	exists, err := svc.repo.GroupExists(ctx, groupID, exec)
	if err != nil {
		return err
	}
	if !exists {
		return ErrGroupNotFound
	}
	for _, id := range studentIDs {
		if exists, err = svc.repo.StudentExists(ctx, id, exec); err != nil {
			return err
		}
		if !exists {
			return errors.Wrap(ErrStudentNotFound, id)
		}
	}
	return nil
}
