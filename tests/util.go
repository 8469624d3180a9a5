package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/attendance"
	"github.com/trezcool/ischoolgo/core/group"
	"github.com/trezcool/ischoolgo/core/payment"
	"github.com/trezcool/ischoolgo/core/student"
	"github.com/trezcool/ischoolgo/core/user"
	"github.com/trezcool/ischoolgo/storage/database"
	sqlxrepos "github.com/trezcool/ischoolgo/storage/database/sqlx"
)

// PrepareDB returns a migrated throw-away sqlite database, closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	conf := core.NewTestConfig()
	conf.Database.Path = filepath.Join(t.TempDir(), "test.db")

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	goose.SetLogger(goose.NopLogger())
	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// NewValidator returns a validator configured like the app's.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

// ContextAs returns a context acting as `usr`.
func ContextAs(usr user.User) context.Context {
	return user.ContextWithActor(context.Background(), usr.Actor())
}

// ContextWithRole returns a context acting as an anonymous user with `role`.
func ContextWithRole(role string) context.Context {
	return user.ContextWithActor(context.Background(), user.Actor{Role: role})
}

func CreateUser(t *testing.T, db core.DBExecutor, name, email, pwd, role string, createdAt ...time.Time) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		Status:    user.StatusActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := sqlxrepos.NewUserRepository(db).CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateGroup(t *testing.T, db core.DBExecutor, name string, maxStudents int, fee float64) group.Group {
	t.Helper()

	now := time.Now().UTC()
	g, err := sqlxrepos.NewGroupRepository(db).CreateGroup(context.Background(), group.Group{
		Name:        name,
		Level:       "A1",
		Subject:     "English",
		MaxStudents: maxStudents,
		FeeAmount:   fee,
		Status:      group.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateGroup() failed: %v", err)
	}
	return g
}

// CreateStudent creates an active student, in group `groupID` unless empty.
func CreateStudent(t *testing.T, db core.DBExecutor, name, groupID, enrollmentDate string, createdAt ...time.Time) student.Student {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if enrollmentDate == "" {
		enrollmentDate = tstamp.Format(core.DateLayout)
	}
	s, err := sqlxrepos.NewStudentRepository(db).CreateStudent(context.Background(), student.Student{
		Name:           name,
		GroupID:        null.NewString(groupID, groupID != ""),
		EnrollmentDate: enrollmentDate,
		Status:         student.StatusActive,
		CreatedAt:      tstamp,
		UpdatedAt:      tstamp,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}

func CreatePayment(t *testing.T, db core.DBExecutor, studentID string, amount float64, date, status string) payment.Payment {
	t.Helper()

	now := time.Now().UTC()
	p, err := sqlxrepos.NewPaymentRepository(db).CreatePayment(context.Background(), payment.Payment{
		StudentID:     studentID,
		Amount:        amount,
		PaymentMethod: payment.MethodCash,
		PaymentDate:   date,
		Status:        status,
		ReceiptNumber: payment.NewReceiptNumber(now),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("CreatePayment() failed: %v", err)
	}
	return p
}

func RecordAttendance(t *testing.T, db core.DBExecutor, studentID, groupID, date, status string) attendance.Record {
	t.Helper()

	now := time.Now().UTC()
	rec, err := sqlxrepos.NewAttendanceRepository(db).UpsertRecord(context.Background(), attendance.Record{
		StudentID: studentID,
		GroupID:   groupID,
		Date:      date,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("RecordAttendance() failed: %v", err)
	}
	return rec
}
