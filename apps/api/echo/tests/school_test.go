package tests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/attendance"
	"github.com/trezcool/ischoolgo/core/group"
	"github.com/trezcool/ischoolgo/core/payment"
	"github.com/trezcool/ischoolgo/core/student"
	"github.com/trezcool/ischoolgo/core/user"
	"github.com/trezcool/ischoolgo/tests"
)

const unknownID = "3b241101-e2bb-4255-8caf-4136c566a962"

func Test_studentApi(t *testing.T) {
	app := setup(t)

	agent := testutil.CreateUser(t, app.db, "Agent", "agent@ischool.test", pwd, user.RoleAgent)
	marketer := testutil.CreateUser(t, app.db, "Marketer", "marketer@ischool.test", pwd, user.RoleMarketer)
	director := testutil.CreateUser(t, app.db, "Director", "director@ischool.test", pwd, user.RoleDirector)
	agentToken := getToken(t, app, agent)
	directorToken := getToken(t, app, director)

	full := testutil.CreateGroup(t, app.db, "Chess", 1, 20)
	testutil.CreateStudent(t, app.db, "Seated", full.ID, "")
	grp := testutil.CreateGroup(t, app.db, "Beginner English", 0, 30)
	for i := 0; i < 12; i++ {
		testutil.CreateStudent(t, app.db, fmt.Sprintf("Student %02d", i), grp.ID, "")
	}

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", path: "/v1/students", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "forbidden role", path: "/v1/students", token: getToken(t, app, marketer), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "Forbidden", Message: `permission denied: role "marketer" may not students:read`}),
		},
		{
			name: "required name", method: http.MethodPost, path: "/v1/students", body: []byte(`{}`), token: agentToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"name": "this field is required"}),
		},
		{
			name: "malformed body", method: http.MethodPost, path: "/v1/students", body: []byte(`{"name":`), token: agentToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "full group", method: http.MethodPost, path: "/v1/students", token: agentToken,
			body:     marchallObj(t, map[string]string{"name": "Late Comer", "group_id": full.ID}),
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "Conflict", Message: "the group has reached its maximum number of students"}),
		},
		{
			name: "unknown student", path: "/v1/students/" + unknownID, token: agentToken, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "Not Found", Message: "student not found"}),
		},
		{
			name: "agent cannot delete", method: http.MethodDelete, path: "/v1/students/" + unknownID, token: agentToken,
			wantCode: http.StatusForbidden,
		},
	})

	t.Run("list pages", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/students?group_id="+grp.ID+"&page=2&limit=5&ordering=name", agentToken)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var page core.Page[student.Student]
		unmarchallObj(t, rec.Body.Bytes(), &page)
		assert.Equal(t, 12, page.Total)
		assert.Equal(t, 3, page.PageCount)
		require.Len(t, page.Items, 5)
		assert.Equal(t, "Student 05", page.Items[0].Name)
		assert.Equal(t, "Beginner English", page.Items[0].GroupName.String)
	})

	var created student.Student
	t.Run("create", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"name": "  Amina Diallo ", "email": "Amina@Mail.test", "group_id": grp.ID})
		req, rec := newAuthRequest(http.MethodPost, "/v1/students", agentToken, body)
		app.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		unmarchallObj(t, rec.Body.Bytes(), &created)
		assert.Equal(t, "Amina Diallo", created.Name)
		assert.Equal(t, "amina@mail.test", created.Email.String)
		assert.Equal(t, student.StatusActive, created.Status)
	})

	t.Run("update", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/students/"+created.ID, agentToken, []byte(`{"phone":"+212600000001"}`))
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var s student.Student
		unmarchallObj(t, rec.Body.Bytes(), &s)
		assert.Equal(t, "+212600000001", s.Phone.String)
		assert.Equal(t, "Amina Diallo", s.Name)
	})

	t.Run("delete", func(t *testing.T) {
		testutil.CreatePayment(t, app.db, created.ID, 30, "2024-03-01", payment.StatusCompleted)

		req, rec := newAuthRequest(http.MethodDelete, "/v1/students/"+created.ID, directorToken)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"mode":"soft"`)

		req, rec = newAuthRequest(http.MethodGet, "/v1/students/"+created.ID, agentToken)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var d student.Detail
		unmarchallObj(t, rec.Body.Bytes(), &d)
		assert.Equal(t, student.StatusInactive, d.Status)
		assert.Equal(t, float64(30), d.TotalPayments)
	})
}

func Test_groupApi(t *testing.T) {
	app := setup(t)

	headTrainer := testutil.CreateUser(t, app.db, "Head Trainer", "head@ischool.test", pwd, user.RoleHeadTrainer)
	teacher := testutil.CreateUser(t, app.db, "Teacher", "teacher@ischool.test", pwd, user.RoleTeacher)
	agent := testutil.CreateUser(t, app.db, "Agent", "agent@ischool.test", pwd, user.RoleAgent)
	headToken := getToken(t, app, headTrainer)
	teacherToken := getToken(t, app, teacher)

	newGroup := marchallObj(t, map[string]interface{}{
		"name": "Intermediate Math", "level": "B1", "subject": "Math", "teacher_id": teacher.ID,
		"max_students": 2, "fee_amount": 45, "schedule": map[string]string{"monday": "18:00"},
	})

	runHTTPTests(t, app, []httpTest{
		{name: "agent cannot read", path: "/v1/groups", token: getToken(t, app, agent), wantCode: http.StatusForbidden},
		{name: "teacher cannot write", method: http.MethodPost, path: "/v1/groups", body: newGroup, token: teacherToken, wantCode: http.StatusForbidden},
		{
			name: "invalid teacher", method: http.MethodPost, path: "/v1/groups", token: headToken,
			body: marchallObj(t, map[string]interface{}{
				"name": "Robotics", "level": "A1", "subject": "Science", "teacher_id": agent.ID,
			}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"teacher_id": "teacher not found"}),
		},
		{name: "unknown group", path: "/v1/groups/" + unknownID, token: teacherToken, wantCode: http.StatusNotFound},
	})

	var grp group.Group
	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/groups", headToken, newGroup)
		app.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		unmarchallObj(t, rec.Body.Bytes(), &grp)
		assert.Equal(t, "Teacher", grp.TeacherName.String)
		assert.Equal(t, group.StatusActive, grp.Status)
		assert.JSONEq(t, `{"monday":"18:00"}`, string(grp.Schedule.JSON))
	})

	ali := testutil.CreateStudent(t, app.db, "Ali", grp.ID, "")
	badr := testutil.CreateStudent(t, app.db, "Badr", grp.ID, "")

	runHTTPTests(t, app, []httpTest{
		{
			name: "capacity below roster", method: http.MethodPut, path: "/v1/groups/" + grp.ID, body: []byte(`{"max_students":1}`),
			token: headToken, wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "Conflict", Message: "max_students is lower than the number of active students"}),
		},
		{name: "bad roster date", path: "/v1/groups/" + grp.ID + "/attendance?date=10-03-2024", token: teacherToken, wantCode: http.StatusBadRequest},
	})

	t.Run("students", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/groups/"+grp.ID+"/students", teacherToken)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var members []group.Member
		unmarchallObj(t, rec.Body.Bytes(), &members)
		require.Len(t, members, 2)
		assert.Equal(t, "Ali", members[0].Name)
	})

	t.Run("bulk attendance then roster", func(t *testing.T) {
		body := marchallObj(t, attendance.BulkRecord{
			Date:    "2024-03-04",
			Entries: []attendance.BulkEntry{{StudentID: ali.ID, Status: attendance.StatusPresent}},
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/groups/"+grp.ID+"/attendance", teacherToken, body)
		app.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, "/v1/groups/"+grp.ID+"/attendance?date=2024-03-04", teacherToken)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var roster []attendance.RosterEntry
		unmarchallObj(t, rec.Body.Bytes(), &roster)
		require.Len(t, roster, 2)
		assert.Equal(t, attendance.StatusPresent, roster[0].Status)
		assert.Equal(t, teacher.ID, roster[0].RecordedBy.String)
		assert.Equal(t, badr.ID, roster[1].StudentID)
		assert.Equal(t, attendance.StatusNotRecorded, roster[1].Status)
	})
}

func Test_attendanceApi(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.db, "Teacher", "teacher@ischool.test", pwd, user.RoleTeacher)
	token := getToken(t, app, teacher)
	grp := testutil.CreateGroup(t, app.db, "Beginner English", 0, 0)
	s := testutil.CreateStudent(t, app.db, "Lina", grp.ID, "")

	record := func(date, status string) []byte {
		return marchallObj(t, attendance.NewRecord{StudentID: s.ID, GroupID: grp.ID, Date: date, Status: status})
	}

	runHTTPTests(t, app, []httpTest{
		{
			name: "bad status", method: http.MethodPost, path: "/v1/attendance", body: record("2024-03-04", "sleeping"), token: token,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "agent cannot record", method: http.MethodPost, path: "/v1/attendance", body: record("2024-03-04", attendance.StatusAbsent),
			token: getToken(t, app, testutil.CreateUser(t, app.db, "Agent", "agent@ischool.test", pwd, user.RoleAgent)), wantCode: http.StatusForbidden,
		},
		{name: "absent", method: http.MethodPost, path: "/v1/attendance", body: record("2024-03-04", attendance.StatusAbsent), token: token, wantCode: http.StatusOK},
		{name: "corrected to present", method: http.MethodPost, path: "/v1/attendance", body: record("2024-03-04", attendance.StatusPresent), token: token, wantCode: http.StatusOK},
		{name: "late next day", method: http.MethodPost, path: "/v1/attendance", body: record("2024-03-05", attendance.StatusLate), token: token, wantCode: http.StatusOK},
		{
			name: "stats", path: "/v1/attendance/stats?group_id=" + grp.ID, token: token, wantCode: http.StatusOK,
			wantData: marchallObj(t, attendance.Stats{TotalRecords: 2, PresentCount: 1, LateCount: 1, AttendanceRate: 50}),
		},
	})

	t.Run("student history", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/students/"+s.ID+"/attendance?limit=1", token)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var history []attendance.HistoryEntry
		unmarchallObj(t, rec.Body.Bytes(), &history)
		require.Len(t, history, 1)
		assert.Equal(t, "2024-03-05", history[0].Date)
		assert.Equal(t, "Beginner English", history[0].GroupName.String)
	})
}

func Test_paymentApi(t *testing.T) {
	app := setup(t)

	agent := testutil.CreateUser(t, app.db, "Agent", "agent@ischool.test", pwd, user.RoleAgent)
	teacher := testutil.CreateUser(t, app.db, "Teacher", "teacher@ischool.test", pwd, user.RoleTeacher)
	token := getToken(t, app, agent)
	grp := testutil.CreateGroup(t, app.db, "Beginner English", 0, 30)
	s := testutil.CreateStudent(t, app.db, "Lina", grp.ID, "")

	runHTTPTests(t, app, []httpTest{
		{name: "teacher cannot read", path: "/v1/payments", token: getToken(t, app, teacher), wantCode: http.StatusForbidden},
		{
			name: "unknown student", method: http.MethodPost, path: "/v1/payments", token: token,
			body:     marchallObj(t, map[string]interface{}{"student_id": unknownID, "amount": 30, "payment_method": payment.MethodCash}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"student_id": "student not found"}),
		},
		{
			name: "amount required", method: http.MethodPost, path: "/v1/payments", token: token,
			body:     marchallObj(t, map[string]interface{}{"student_id": s.ID, "payment_method": payment.MethodCash}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"amount": "this field is required"}),
		},
		{name: "unknown payment", path: "/v1/payments/" + unknownID, token: token, wantCode: http.StatusNotFound},
	})

	var p payment.Payment
	t.Run("create", func(t *testing.T) {
		body := marchallObj(t, map[string]interface{}{
			"student_id": s.ID, "amount": 30, "payment_method": payment.MethodCard, "payment_date": "2024-03-01",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/payments", token, body)
		app.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		unmarchallObj(t, rec.Body.Bytes(), &p)
		assert.Equal(t, payment.StatusCompleted, p.Status)
		assert.Regexp(t, `^RCP-\d+-[A-Z0-9]{6}$`, p.ReceiptNumber)
		assert.Equal(t, agent.ID, p.ProcessedBy.String)
	})

	t.Run("refund", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPatch, "/v1/payments/"+p.ID+"/status", token, []byte(`{"status":"refunded","notes":"left the school"}`))
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var updated payment.Payment
		unmarchallObj(t, rec.Body.Bytes(), &updated)
		assert.Equal(t, payment.StatusRefunded, updated.Status)
		assert.Equal(t, "left the school", updated.Notes.String)
	})

	t.Run("list and stats", func(t *testing.T) {
		testutil.CreatePayment(t, app.db, s.ID, 30, "2024-04-01", payment.StatusCompleted)

		req, rec := newAuthRequest(http.MethodGet, "/v1/payments?status=completed", token)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var page core.Page[payment.Payment]
		unmarchallObj(t, rec.Body.Bytes(), &page)
		require.Equal(t, 1, page.Total)
		assert.Equal(t, "Lina", page.Items[0].StudentName.String)

		req, rec = newAuthRequest(http.MethodGet, "/v1/payments/stats", token)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var stats payment.Stats
		unmarchallObj(t, rec.Body.Bytes(), &stats)
		assert.Equal(t, 2, stats.TotalPayments)
		assert.Equal(t, 1, stats.CompletedPayments)
		assert.Equal(t, float64(30), stats.TotalRevenue)
	})
}

func Test_storeFailure(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, app.db, "Admin", "admin@ischool.test", pwd, user.RoleAdmin)
	token := getToken(t, app, admin)
	_, err := app.db.Exec("DROP TABLE payments")
	require.NoError(t, err)

	runHTTPTests(t, app, []httpTest{
		{
			name: "title and failed operation", path: "/v1/payments", token: token, wantCode: http.StatusInternalServerError,
			wantData: marchallObj(t, httpErr{Error: "Store Error", Message: "counting payments"}),
		},
	})
}
