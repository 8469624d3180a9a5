package student

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
	ErrNotFound      = core.NewNotFoundError("student not found")
	ErrGroupNotFound = errors.New("group not found")
	ErrGroupFull     = core.NewConflictError("the group has reached its maximum number of students")
)

type (
	Repository interface {
		// QueryStudents returns one page of students matching filter, and the total number of matches.
		QueryStudents(ctx context.Context, filter QueryFilter, page core.Pagination, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, int, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		GetStudentDetail(ctx context.Context, id string, exec ...core.DBExecutor) (Detail, error)
		CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		UpdateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		// HasFacts reports whether any attendance record or payment references the student.
		HasFacts(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error)
		DeleteStudent(ctx context.Context, id string, exec ...core.DBExecutor) error
		// GetGroupSeats returns the occupancy of a group, not counting excludedStudentID.
		GetGroupSeats(ctx context.Context, groupID, excludedStudentID string, exec ...core.DBExecutor) (GroupSeats, error)
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

func (svc *Service) List(ctx context.Context, filter QueryFilter, page core.Pagination, ordering []core.DBOrdering) (core.Page[Student], error) {
	if err := user.Authorize(ctx, user.PermStudentsRead); err != nil {
		return core.Page[Student]{}, err
	}
	filter.Clean()
	page.Clean()
	students, total, err := svc.repo.QueryStudents(ctx, filter, page, ordering)
	if err != nil {
		return core.Page[Student]{}, errors.Wrap(err, "querying students")
	}
	return core.NewPage(students, page, total), nil
}

// GetByID returns the student with its derived attendance & payment totals.
func (svc *Service) GetByID(ctx context.Context, id string) (Detail, error) {
	if err := user.Authorize(ctx, user.PermStudentsRead); err != nil {
		return Detail{}, err
	}
	return svc.repo.GetStudentDetail(ctx, id)
}

func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	if err := user.Authorize(ctx, user.PermStudentsWrite); err != nil {
		return Student{}, err
	}
	if err := ns.Validate(svc.validate); err != nil {
		return Student{}, err
	}

	now := time.Now().UTC()
	s := Student{
		Name:             ns.Name,
		Email:            ns.Email,
		Phone:            ns.Phone,
		DateOfBirth:      ns.DateOfBirth,
		Address:          ns.Address,
		EmergencyContact: ns.EmergencyContact,
		GroupID:          ns.GroupID,
		EnrollmentDate:   ns.EnrollmentDate,
		Status:           ns.Status,
		Notes:            ns.Notes,
		Avatar:           ns.Avatar,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if s.EnrollmentDate == "" {
		s.EnrollmentDate = now.Format(core.DateLayout)
	}
	if s.Status == "" {
		s.Status = StatusActive
	}

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkGroupSeats(ctx, s, tx); err != nil {
			return err
		}
		var err error
		s, err = svc.repo.CreateStudent(ctx, s, tx)
		return err
	})
	if err != nil {
		return Student{}, err
	}
	return s, nil
}

func (svc *Service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	if err := user.Authorize(ctx, user.PermStudentsWrite); err != nil {
		return Student{}, err
	}
	if err := us.Validate(svc.validate); err != nil {
		return Student{}, err
	}

	var s Student
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if s, err = svc.repo.GetStudent(ctx, id, tx); err != nil {
			return err
		}
		prevGroup, prevStatus := s.GroupID, s.Status
		us.apply(&s)
		if s.GroupID != prevGroup || (s.Status == StatusActive && prevStatus != StatusActive) {
			if err = svc.checkGroupSeats(ctx, s, tx); err != nil {
				return err
			}
		}
		s.UpdatedAt = time.Now().UTC()
		s, err = svc.repo.UpdateStudent(ctx, s, tx)
		return err
	})
	if err != nil {
		return Student{}, err
	}
	return s, nil
}

// Delete removes a student without history, and deactivates a student with attendance or payment facts.
func (svc *Service) Delete(ctx context.Context, id string) (DeletionMode, error) {
	if err := user.Authorize(ctx, user.PermStudentsDelete); err != nil {
		return "", err
	}

	var mode DeletionMode
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		s, err := svc.repo.GetStudent(ctx, id, tx)
		if err != nil {
			return err
		}
		hasFacts, err := svc.repo.HasFacts(ctx, id, tx)
		if err != nil {
			return err
		}
		if !hasFacts {
			mode = HardDeleted
			return svc.repo.DeleteStudent(ctx, id, tx)
		}

		mode = SoftDeleted
		s.Status = StatusInactive
		s.UpdatedAt = time.Now().UTC()
		_, err = svc.repo.UpdateStudent(ctx, s, tx)
		return err
	})
	if err != nil {
		return "", err
	}
	return mode, nil
}

// checkGroupSeats makes sure an active student only joins an existing group with a free seat.
func (svc *Service) checkGroupSeats(ctx context.Context, s Student, exec core.DBExecutor) error {
	if !s.GroupID.Valid {
		return nil
	}
	seats, err := svc.repo.GetGroupSeats(ctx, s.GroupID.String, s.ID, exec)
	if err != nil {
		return svc.trapGroupNotFound(err)
	}
	if s.Status == StatusActive && seats.IsFull() {
		return ErrGroupFull
	}
	return nil
}

func (svc *Service) trapGroupNotFound(err error) error {
	if err == ErrGroupNotFound {
		return core.NewValidationError(err, core.FieldError{Field: "group_id", Error: err.Error()})
	}
	return err
}
