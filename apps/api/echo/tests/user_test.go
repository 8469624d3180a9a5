package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ischoolgo/core/user"
	sqlxrepos "github.com/trezcool/ischoolgo/storage/database/sqlx"
	"github.com/trezcool/ischoolgo/tests"
)

const pwd = "Passw0rd!x"

type tokenResponse struct {
	Token string `json:"token"`
}

func Test_userApi_userLogin(t *testing.T) {
	app := setup(t)

	testutil.CreateUser(t, app.db, "Amina Diallo", "amina@ischool.test", pwd, user.RoleTeacher)
	suspended := testutil.CreateUser(t, app.db, "Omar Ali", "omar@ischool.test", pwd, user.RoleAgent)
	suspended.Status = user.StatusSuspended
	_, err := sqlxrepos.NewUserRepository(app.db).UpdateUser(context.Background(), suspended)
	require.NoError(t, err)

	login := func(email, password string) []byte {
		return marchallObj(t, map[string]string{"email": email, "password": password})
	}
	badCredentials := marchallObj(t, httpErr{Error: "invalid email or password"})

	runHTTPTests(t, app, []httpTest{
		{name: "empty body", method: http.MethodPost, path: "/v1/users/login", body: []byte("{}"), wantCode: http.StatusBadRequest, wantData: badCredentials},
		{name: "unknown email", method: http.MethodPost, path: "/v1/users/login", body: login("nobody@ischool.test", pwd), wantCode: http.StatusBadRequest, wantData: badCredentials},
		{name: "wrong password", method: http.MethodPost, path: "/v1/users/login", body: login("amina@ischool.test", "nope"), wantCode: http.StatusBadRequest, wantData: badCredentials},
		{
			name: "suspended account", method: http.MethodPost, path: "/v1/users/login", body: login("omar@ischool.test", pwd),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("success", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/login", login(" Amina@ISchool.test ", pwd))
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp tokenResponse
		unmarchallObj(t, rec.Body.Bytes(), &resp)
		claims, err := app.tokens.Parse(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, user.RoleTeacher, claims.Role)

		usr, err := sqlxrepos.NewUserRepository(app.db).GetUser(context.Background(), user.GetFilter{ID: claims.Subject})
		require.NoError(t, err)
		assert.True(t, usr.LastLogin.Valid)
	})
}

func Test_userApi_auth(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.db, "Amina Diallo", "amina@ischool.test", pwd, user.RoleTeacher)
	token := getToken(t, app, teacher)

	expired := app.tokens.Claims(teacher)
	expired.ExpiresAt.Time = time.Now().Add(-time.Minute)
	expiredToken, err := app.tokens.GenerateToken(expired)
	require.NoError(t, err)

	invalidToken := marchallObj(t, httpErr{Error: "invalid or expired jwt"})

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", path: "/v1/users/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "garbage token", path: "/v1/users/me", token: "not.a.jwt", wantCode: http.StatusUnauthorized, wantData: invalidToken},
		{name: "expired token", path: "/v1/users/me", token: expiredToken, wantCode: http.StatusUnauthorized, wantData: invalidToken},
		{name: "me", path: "/v1/users/me", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, teacher)},
	})

	t.Run("refresh", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", token)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp tokenResponse
		unmarchallObj(t, rec.Body.Bytes(), &resp)
		claims, err := app.tokens.Parse(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, teacher.ID, claims.Subject)
	})

	t.Run("logout revokes the token", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/logout", token)
		app.do(req, rec)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", token)
		app.do(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: invalidToken}, rec)
	})
}

func Test_userApi_userCreate(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, app.db, "Admin", "admin@ischool.test", pwd, user.RoleAdmin)
	agent := testutil.CreateUser(t, app.db, "Agent", "agent@ischool.test", pwd, user.RoleAgent)
	adminToken := getToken(t, app, admin)

	newUser := func(email string) []byte {
		return marchallObj(t, user.NewUser{
			Name: "Sara Mohamed", Email: email, Role: user.RoleTeacher, Password: pwd, PasswordConfirm: pwd,
		})
	}

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/users/register", body: newUser("sara@ischool.test"), wantCode: http.StatusUnauthorized},
		{
			name: "management only", method: http.MethodPost, path: "/v1/users/register", body: newUser("sara@ischool.test"),
			token: getToken(t, app, agent), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "Forbidden", Message: `permission denied: role "agent" may not users:write`}),
		},
		{
			name: "required fields", method: http.MethodPost, path: "/v1/users/register", body: []byte(`{"role":"teacher","password":"` + pwd + `"}`),
			token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name":             "this field is required",
				"email":            "this field is required",
				"password_confirm": "this field is required",
			}),
		},
		{
			name: "email taken", method: http.MethodPost, path: "/v1/users/register", body: newUser("agent@ischool.test"),
			token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "a user with this email already exists"}),
		},
	})

	t.Run("success", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", adminToken, newUser("Sara@ISchool.test"))
		app.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var usr user.User
		unmarchallObj(t, rec.Body.Bytes(), &usr)
		assert.Equal(t, "sara@ischool.test", usr.Email)
		assert.NotContains(t, rec.Body.String(), "password")
		assert.Len(t, app.mailSvc.SentMessages(), 1)
	})
}

func Test_userApi_userDetail(t *testing.T) {
	app := setup(t)

	director := testutil.CreateUser(t, app.db, "Director", "director@ischool.test", pwd, user.RoleDirector)
	teacher := testutil.CreateUser(t, app.db, "Teacher", "teacher@ischool.test", pwd, user.RoleTeacher)
	other := testutil.CreateUser(t, app.db, "Other", "other@ischool.test", pwd, user.RoleTeacher)
	directorToken := getToken(t, app, director)
	teacherToken := getToken(t, app, teacher)

	runHTTPTests(t, app, []httpTest{
		{name: "self", path: "/v1/users/" + teacher.ID, token: teacherToken, wantCode: http.StatusOK, wantData: marchallObj(t, teacher)},
		{name: "someone else", path: "/v1/users/" + other.ID, token: teacherToken, wantCode: http.StatusForbidden},
		{name: "manager", path: "/v1/users/" + other.ID, token: directorToken, wantCode: http.StatusOK, wantData: marchallObj(t, other)},
		{
			name: "unknown", path: "/v1/users/3b241101-e2bb-4255-8caf-4136c566a962", token: directorToken, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "Not Found", Message: "user not found"}),
		},
		{
			name: "teacher cannot change own role", method: http.MethodPut, path: "/v1/users/" + teacher.ID,
			body: []byte(`{"role":"admin"}`), token: teacherToken, wantCode: http.StatusForbidden,
		},
		{
			name: "delete self", method: http.MethodDelete, path: "/v1/users/" + director.ID, token: directorToken, wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "Conflict", Message: "users cannot delete their own account"}),
		},
		{name: "delete other", method: http.MethodDelete, path: "/v1/users/" + other.ID, token: directorToken, wantCode: http.StatusNoContent},
		{name: "delete unknown", method: http.MethodDelete, path: "/v1/users/" + other.ID, token: directorToken, wantCode: http.StatusNotFound},
	})

	t.Run("update own profile", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/"+teacher.ID, teacherToken, []byte(`{"name":"Mr Teacher","phone":"+212600000000"}`))
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var usr user.User
		unmarchallObj(t, rec.Body.Bytes(), &usr)
		assert.Equal(t, "Mr Teacher", usr.Name)
		assert.Equal(t, "+212600000000", usr.Phone.String)
		assert.Equal(t, user.RoleTeacher, usr.Role)
	})
}

func Test_userApi_passwordReset(t *testing.T) {
	app := setup(t)
	testutil.CreateUser(t, app.db, "Amina Diallo", "amina@ischool.test", pwd, user.RoleTeacher)

	ok := marchallObj(t, map[string]string{"message": "if the account exists, a reset link has been sent"})
	runHTTPTests(t, app, []httpTest{
		{name: "unknown email", method: http.MethodPost, path: "/v1/users/password-reset", body: []byte(`{"email":"nobody@ischool.test"}`), wantCode: http.StatusOK, wantData: ok},
		{name: "known email", method: http.MethodPost, path: "/v1/users/password-reset", body: []byte(`{"email":"amina@ischool.test"}`), wantCode: http.StatusOK, wantData: ok},
	})

	sent := app.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	data, isMap := sent[0].TemplateData.(map[string]string)
	require.True(t, isMap)

	newPwd := "N3w-Passw0rd!"
	confirm := func(token string) []byte {
		return marchallObj(t, user.ResetUserPassword{UID: data["UID"], Token: token, Password: newPwd, PasswordConfirm: newPwd})
	}
	runHTTPTests(t, app, []httpTest{
		{
			name: "bad token", method: http.MethodPost, path: "/v1/users/password-reset-confirm", body: confirm("bad-token"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Validation Error", Message: "the password reset link is invalid or has expired"}),
		},
		{
			name: "success", method: http.MethodPost, path: "/v1/users/password-reset-confirm", body: confirm(data["Token"]),
			wantCode: http.StatusOK, wantData: marchallObj(t, map[string]string{"message": "password has been reset"}),
		},
	})

	req, rec := newRequest(http.MethodPost, "/v1/users/login", marchallObj(t, map[string]string{"email": "amina@ischool.test", "password": newPwd}))
	assert.Equal(t, http.StatusOK, app.do(req, rec).Code)
}

func Test_userApi_staleToken(t *testing.T) {
	app := setup(t)
	repo := sqlxrepos.NewUserRepository(app.db)

	director := testutil.CreateUser(t, app.db, "Director", "director@ischool.test", pwd, user.RoleDirector)
	demoted := testutil.CreateUser(t, app.db, "Demoted", "demoted@ischool.test", pwd, user.RoleDirector)
	suspended := testutil.CreateUser(t, app.db, "Suspended", "suspended@ischool.test", pwd, user.RoleDirector)
	demotedToken := getToken(t, app, demoted)
	suspendedToken := getToken(t, app, suspended)
	deletedToken := getToken(t, app, director)

	demoted.Role = user.RoleMarketer
	_, err := repo.UpdateUser(context.Background(), demoted)
	require.NoError(t, err)
	suspended.Status = user.StatusSuspended
	_, err = repo.UpdateUser(context.Background(), suspended)
	require.NoError(t, err)
	_, err = repo.DeleteUsersByID(context.Background(), []string{director.ID})
	require.NoError(t, err)

	runHTTPTests(t, app, []httpTest{
		{
			name: "demoted user gets the stored role", path: "/v1/students", token: demotedToken, wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "Forbidden", Message: `permission denied: role "marketer" may not students:read`}),
		},
		{name: "demoted user keeps what the stored role allows", path: "/v1/dashboard/overview", token: demotedToken, wantCode: http.StatusOK},
		{
			name: "suspended account", path: "/v1/students", token: suspendedToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "deleted account", path: "/v1/students", token: deletedToken,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
		},
	})
}
