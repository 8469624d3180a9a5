package group_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/group"
	"github.com/trezcool/ischoolgo/core/user"
	sqlxrepos "github.com/trezcool/ischoolgo/storage/database/sqlx"
	"github.com/trezcool/ischoolgo/tests"
)

func newService(t *testing.T) (*group.Service, core.DB) {
	db := testutil.PrepareDB(t)
	validate, _ := testutil.NewValidator()
	return group.NewService(db, sqlxrepos.NewGroupRepository(db), validate), db
}

func intPtr(i int) *int { return &i }

func TestService_Create(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.ContextWithRole(user.RoleHeadTrainer)
	teacher := testutil.CreateUser(t, db, "Mr Teacher", "teacher@ischool.test", "", user.RoleTeacher)
	agent := testutil.CreateUser(t, db, "Ms Agent", "agent@ischool.test", "", user.RoleAgent)

	g, err := svc.Create(ctx, group.NewGroup{
		Name: "Beginner English", Level: "A1", Subject: "English",
		TeacherID: null.StringFrom(teacher.ID), MaxStudents: 12, FeeAmount: 40,
		Schedule: null.JSONFrom([]byte(`{"days":["mon","wed"],"time":"18:00"}`)),
	})
	require.NoError(t, err)
	assert.Equal(t, group.StatusActive, g.Status)
	assert.Equal(t, "Mr Teacher", g.TeacherName.String)
	assert.JSONEq(t, `{"days":["mon","wed"],"time":"18:00"}`, string(g.Schedule.JSON))

	var verr *core.ValidationError
	_, err = svc.Create(ctx, group.NewGroup{Name: "X", Level: "A1", Subject: "Math", TeacherID: null.StringFrom(agent.ID)})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "teacher_id", verr.Fields[0].Field)

	_, err = svc.Create(ctx, group.NewGroup{
		Name: "X", Level: "A1", Subject: "Math",
		StartDate: null.StringFrom("2024-06-01"), EndDate: null.StringFrom("2024-01-01"),
	})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "end_date", verr.Fields[0].Field)

	_, err = svc.Create(testutil.ContextWithRole(user.RoleTeacher), group.NewGroup{})
	assert.IsType(t, &core.ForbiddenError{}, err)
}

func TestService_Update(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.ContextWithRole(user.RoleAdmin)
	g := testutil.CreateGroup(t, db, "Chess", 0, 0)
	testutil.CreateStudent(t, db, "One", g.ID, "")
	testutil.CreateStudent(t, db, "Two", g.ID, "")

	_, err := svc.Update(ctx, g.ID, group.UpdateGroup{MaxStudents: intPtr(1)})
	assert.Equal(t, group.ErrCapacityTooLow, err)

	got, err := svc.Update(ctx, g.ID, group.UpdateGroup{MaxStudents: intPtr(2), Description: core.StringPtr("Tuesdays")})
	require.NoError(t, err)
	assert.Equal(t, 2, got.MaxStudents)
	assert.Equal(t, 2, got.StudentCount)
	assert.Equal(t, "Tuesdays", got.Description.String)

	_, err = svc.Update(ctx, "3b241101-e2bb-4255-8caf-4136c566a962", group.UpdateGroup{})
	assert.Equal(t, group.ErrNotFound, err)
}

func TestService_ListAndStudents(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.ContextWithRole(user.RoleTeacher)
	chess := testutil.CreateGroup(t, db, "Chess", 0, 0)
	testutil.CreateGroup(t, db, "Robotics", 0, 0)
	testutil.CreateStudent(t, db, "Zed", chess.ID, "")
	testutil.CreateStudent(t, db, "Ali", chess.ID, "")

	page, err := svc.List(ctx, group.QueryFilter{Search: "chess"}, core.Pagination{}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, 2, page.Items[0].StudentCount)

	members, err := svc.Students(ctx, chess.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Ali", members[0].Name)

	_, err = svc.Students(ctx, "3b241101-e2bb-4255-8caf-4136c566a962")
	assert.Equal(t, group.ErrNotFound, err)
}
