package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/jmoiron/sqlx"

	. "github.com/trezcool/ischoolgo/apps/api/echo"
	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/ai"
	"github.com/trezcool/ischoolgo/core/attendance"
	"github.com/trezcool/ischoolgo/core/group"
	"github.com/trezcool/ischoolgo/core/payment"
	"github.com/trezcool/ischoolgo/core/stats"
	"github.com/trezcool/ischoolgo/core/student"
	"github.com/trezcool/ischoolgo/core/user"
	emailsvc "github.com/trezcool/ischoolgo/services/email"
	"github.com/trezcool/ischoolgo/services/genai"
	logsvc "github.com/trezcool/ischoolgo/services/logger"
	sqlxrepos "github.com/trezcool/ischoolgo/storage/database/sqlx"
	"github.com/trezcool/ischoolgo/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*Server
	db      *sqlx.DB
	tokens  *TokenIssuer
	mailSvc *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) testApp {
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	core.ParseEmailTemplates(conf, logger)

	// set up DB & repos
	db := testutil.PrepareDB(t)
	validate, translator := testutil.NewValidator()

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewService(db, sqlxrepos.NewUserRepository(db), mailSvc, validate, conf)
	tokens := NewTokenIssuer(conf)

	// set up server
	srv := NewServer(
		"",  /* addr */
		nil, /* shutdown */
		&Deps{
			Conf:          conf,
			Logger:        logger,
			Translator:    translator,
			Tokens:        tokens,
			UserSvc:       usrSvc,
			StudentSvc:    student.NewService(db, sqlxrepos.NewStudentRepository(db), validate),
			GroupSvc:      group.NewService(db, sqlxrepos.NewGroupRepository(db), validate),
			AttendanceSvc: attendance.NewService(db, sqlxrepos.NewAttendanceRepository(db), validate),
			PaymentSvc:    payment.NewService(db, sqlxrepos.NewPaymentRepository(db), validate),
			StatsSvc:      stats.NewService(sqlxrepos.NewStatsRepository(db), logger),
			AISvc: ai.NewService(
				sqlxrepos.NewFactsRepository(db), genai.NewStaticGenerator("Keep up the good work."), validate, logger, conf,
			),
		},
	)
	return testApp{Server: srv, db: db, tokens: tokens, mailSvc: mailSvc}
}

func (app testApp) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, app testApp, usr user.User) string {
	token, err := app.tokens.GenerateToken(app.tokens.Claims(usr))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func unmarchallObj(t *testing.T, data []byte, dest interface{}) {
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("unmarchallObj(): %v; data %s", err, data)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, app.do(req, rec))
		})
	}
}
