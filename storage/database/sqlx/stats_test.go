package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/ai"
	"github.com/trezcool/ischoolgo/core/attendance"
	"github.com/trezcool/ischoolgo/core/group"
	"github.com/trezcool/ischoolgo/core/payment"
	"github.com/trezcool/ischoolgo/core/stats"
	"github.com/trezcool/ischoolgo/core/student"
	"github.com/trezcool/ischoolgo/core/user"
	sqlxrepos "github.com/trezcool/ischoolgo/storage/database/sqlx"
	"github.com/trezcool/ischoolgo/tests"
)

func TestStatsRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewStatsRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	today := now.Format(core.DateLayout)
	weekAgo := core.DaysAgo(now, 7)
	longAgo := core.DaysAgo(now, 90)

	teacher := testutil.CreateUser(t, db, "Mr Teacher", "teacher@ischool.test", "", user.RoleTeacher)
	testutil.CreateUser(t, db, "Ms Agent", "agent@ischool.test", "", user.RoleAgent)

	grp := testutil.CreateGroup(t, db, "Beginner English", 0, 30)
	empty := testutil.CreateGroup(t, db, "Empty", 0, 0)
	_, err := sqlxrepos.NewGroupRepository(db).UpdateGroup(ctx, withTeacher(grp, teacher.ID))
	require.NoError(t, err)

	old := testutil.CreateStudent(t, db, "Old", grp.ID, longAgo, now.AddDate(0, 0, -90))
	fresh := testutil.CreateStudent(t, db, "Fresh", grp.ID, today)

	testutil.RecordAttendance(t, db, old.ID, grp.ID, weekAgo, attendance.StatusPresent)
	testutil.RecordAttendance(t, db, fresh.ID, grp.ID, weekAgo, attendance.StatusLate)
	testutil.RecordAttendance(t, db, old.ID, grp.ID, longAgo, attendance.StatusAbsent)

	testutil.CreatePayment(t, db, old.ID, 30, weekAgo, payment.StatusCompleted)
	testutil.CreatePayment(t, db, fresh.ID, 30, today, payment.StatusCompleted)
	testutil.CreatePayment(t, db, fresh.ID, 99, today, payment.StatusPending)
	testutil.CreatePayment(t, db, old.ID, 30, longAgo, payment.StatusCompleted)

	n, err := repo.CountActiveStudents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.CountStudentsCreatedSince(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.CountActiveGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.CountActiveTeachers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rev, err := repo.CompletedRevenueSince(ctx, core.DaysAgo(now, 30))
	require.NoError(t, err)
	assert.Equal(t, stats.RevenueTotal{Amount: 60, Count: 2}, rev)

	c, err := repo.CountAttendanceSince(ctx, "", core.DaysAgo(now, 30))
	require.NoError(t, err)
	assert.Equal(t, stats.AttendanceCount{Total: 2, Present: 1}, c)

	c, err = repo.CountAttendanceSince(ctx, empty.ID, core.DaysAgo(now, 30))
	require.NoError(t, err)
	assert.Zero(t, c.Total)

	recent, err := repo.RecentStudents(ctx, now.AddDate(0, 0, -7), 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Fresh", recent[0].Name)

	payments, err := repo.CompletedPaymentsSince(ctx, core.DaysAgo(now, 365))
	require.NoError(t, err)
	assert.Len(t, payments, 3)

	enrollments, err := repo.EnrollmentsSince(ctx, core.DaysAgo(now, 30))
	require.NoError(t, err)
	assert.Len(t, enrollments, 1)

	groups, err := repo.ActiveGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	byID := map[string]stats.GroupRanking{groups[0].ID: groups[0], groups[1].ID: groups[1]}
	assert.Equal(t, 2, byID[grp.ID].StudentCount)
	assert.Equal(t, "Mr Teacher", byID[grp.ID].TeacherName.String)
	assert.Zero(t, byID[empty.ID].StudentCount)
}

func TestStatsRepository_CountStudentsCreatedSince(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewStatsRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	testutil.CreateStudent(t, db, "Active", "", "")
	dropped := testutil.CreateStudent(t, db, "Dropped", "", "")
	dropped.Status = student.StatusDropped
	_, err := sqlxrepos.NewStudentRepository(db).UpdateStudent(ctx, dropped)
	require.NoError(t, err)

	n, err := repo.CountStudentsCreatedSince(ctx, now.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFactsRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewFactsRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	since := core.DaysAgo(now, ai.WindowDays)

	grp := testutil.CreateGroup(t, db, "Beginner English", 0, 40)
	s := testutil.CreateStudent(t, db, "Sara Mohamed", grp.ID, core.DaysAgo(now, 120))
	testutil.RecordAttendance(t, db, s.ID, grp.ID, core.DaysAgo(now, 3), attendance.StatusPresent)
	testutil.RecordAttendance(t, db, s.ID, grp.ID, core.DaysAgo(now, 2), attendance.StatusAbsent)
	testutil.RecordAttendance(t, db, s.ID, grp.ID, core.DaysAgo(now, 60), attendance.StatusAbsent)
	testutil.CreatePayment(t, db, s.ID, 40, core.DaysAgo(now, 45), payment.StatusCompleted)
	testutil.CreatePayment(t, db, s.ID, 40, core.DaysAgo(now, 5), payment.StatusFailed)

	facts, err := repo.StudentFacts(ctx, s.ID, since)
	require.NoError(t, err)
	assert.Equal(t, "Sara Mohamed", facts.Name)
	assert.Equal(t, 2, facts.TotalSessions)
	assert.Equal(t, 1, facts.AttendedSessions)
	assert.Equal(t, float64(40), facts.GroupFee.Float64)
	assert.Equal(t, float64(40), facts.TotalPayments)
	assert.Equal(t, core.DaysAgo(now, 45), facts.LastPaymentDate.String)
	assert.Equal(t, ai.PaymentBehind, facts.PaymentStatus(now))

	_, err = repo.StudentFacts(ctx, "3b241101-e2bb-4255-8caf-4136c566a962", since)
	assert.Equal(t, ai.ErrStudentNotFound, err)

	all, err := repo.ActiveStudentFacts(ctx, since)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func withTeacher(g group.Group, teacherID string) group.Group {
	g.TeacherID = null.StringFrom(teacherID)
	return g
}
