package group

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/user"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("group not found")
	ErrInvalidTeacher  = errors.New("teacher not found")
	ErrCapacityTooLow  = core.NewConflictError("max_students is lower than the number of active students")
	ErrInvalidDuration = errors.New("end_date cannot be before start_date")
)

type (
	Repository interface {
		// QueryGroups returns one page of groups matching filter, and the total number of matches.
		QueryGroups(ctx context.Context, filter QueryFilter, page core.Pagination, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Group, int, error)
		GetGroup(ctx context.Context, id string, exec ...core.DBExecutor) (Group, error)
		CreateGroup(ctx context.Context, g Group, exec ...core.DBExecutor) (Group, error)
		UpdateGroup(ctx context.Context, g Group, exec ...core.DBExecutor) (Group, error)
		// QueryMembers returns the active students of a group, ordered by name.
		QueryMembers(ctx context.Context, groupID string, exec ...core.DBExecutor) ([]Member, error)
		// IsTeacher reports whether userID belongs to a user with a teaching role.
		IsTeacher(ctx context.Context, userID string, exec ...core.DBExecutor) (bool, error)
	}

	Service struct {
		db       core.DB
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(db core.DB, repo Repository, validate *validator.Validate) *Service {
	return &Service{db: db, repo: repo, validate: validate}
}

func (svc *Service) List(ctx context.Context, filter QueryFilter, page core.Pagination, ordering []core.DBOrdering) (core.Page[Group], error) {
	if err := user.Authorize(ctx, user.PermGroupsRead); err != nil {
		return core.Page[Group]{}, err
	}
	filter.Clean()
	page.Clean()
	groups, total, err := svc.repo.QueryGroups(ctx, filter, page, ordering)
	if err != nil {
		return core.Page[Group]{}, errors.Wrap(err, "querying groups")
	}
	return core.NewPage(groups, page, total), nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Group, error) {
	if err := user.Authorize(ctx, user.PermGroupsRead); err != nil {
		return Group{}, err
	}
	return svc.repo.GetGroup(ctx, id)
}

// Students returns the active roster of a group.
func (svc *Service) Students(ctx context.Context, id string) ([]Member, error) {
	if err := user.Authorize(ctx, user.PermGroupsRead); err != nil {
		return nil, err
	}
	if _, err := svc.repo.GetGroup(ctx, id); err != nil {
		return nil, err
	}
	return svc.repo.QueryMembers(ctx, id)
}

func (svc *Service) Create(ctx context.Context, ng NewGroup) (Group, error) {
	if err := user.Authorize(ctx, user.PermGroupsWrite); err != nil {
		return Group{}, err
	}
	if err := ng.Validate(svc.validate); err != nil {
		return Group{}, err
	}

	now := time.Now().UTC()
	g := Group{
		Name:        ng.Name,
		Level:       ng.Level,
		Subject:     ng.Subject,
		TeacherID:   ng.TeacherID,
		Schedule:    ng.Schedule,
		MaxStudents: ng.MaxStudents,
		FeeAmount:   ng.FeeAmount,
		Description: ng.Description,
		Status:      ng.Status,
		StartDate:   ng.StartDate,
		EndDate:     ng.EndDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if g.Status == "" {
		g.Status = StatusActive
	}

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.check(ctx, g, tx); err != nil {
			return err
		}
		var err error
		g, err = svc.repo.CreateGroup(ctx, g, tx)
		return err
	})
	if err != nil {
		return Group{}, err
	}
	return g, nil
}

func (svc *Service) Update(ctx context.Context, id string, ug UpdateGroup) (Group, error) {
	if err := user.Authorize(ctx, user.PermGroupsWrite); err != nil {
		return Group{}, err
	}
	if err := ug.Validate(svc.validate); err != nil {
		return Group{}, err
	}

	var g Group
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if g, err = svc.repo.GetGroup(ctx, id, tx); err != nil {
			return err
		}
		ug.apply(&g)
		if err = svc.check(ctx, g, tx); err != nil {
			return err
		}
		if g.MaxStudents > 0 && g.MaxStudents < g.StudentCount {
			return ErrCapacityTooLow
		}
		g.UpdatedAt = time.Now().UTC()
		g, err = svc.repo.UpdateGroup(ctx, g, tx)
		return err
	})
	if err != nil {
		return Group{}, err
	}
	return g, nil
}

// check validates the references and dates of g.
func (svc *Service) check(ctx context.Context, g Group, exec core.DBExecutor) error {
	if g.StartDate.Valid && g.EndDate.Valid && g.EndDate.String < g.StartDate.String {
		return core.NewValidationError(ErrInvalidDuration, core.FieldError{Field: "end_date", Error: ErrInvalidDuration.Error()})
	}
	if g.TeacherID.Valid {
		ok, err := svc.repo.IsTeacher(ctx, g.TeacherID.String, exec)
		if err != nil {
			return err
		}
		if !ok {
			return core.NewValidationError(ErrInvalidTeacher, core.FieldError{Field: "teacher_id", Error: ErrInvalidTeacher.Error()})
		}
	}
	return nil
}
