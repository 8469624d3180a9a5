package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/user"
)

var (
	today   = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	errDown = core.NewExternalServiceError("genai", 503, errors.New("overloaded"))
)

type stubRepo struct {
	facts []StudentFacts
	since string
}

func (r *stubRepo) StudentFacts(_ context.Context, id, since string) (StudentFacts, error) {
	r.since = since
	for _, f := range r.facts {
		if f.StudentID == id {
			return f, nil
		}
	}
	return StudentFacts{}, ErrStudentNotFound
}

func (r *stubRepo) ActiveStudentFacts(_ context.Context, since string) ([]StudentFacts, error) {
	r.since = since
	return r.facts, nil
}

// stubGenerator answers every prompt with a fixed text, or fails on prompts containing a marker.
type stubGenerator struct {
	mu      sync.Mutex
	prompts []string
	failOn  string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.failOn != "" && strings.Contains(prompt, g.failOn) {
		return "", errDown
	}
	return "generated", nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newTestService(repo Repository, gen TextGenerator) *Service {
	validate := validator.New()
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	core.InitValidators(validate, translator)

	conf := core.NewTestConfig()
	conf.AppName = "iSchool"
	svc := NewService(repo, gen, validate, nopLogger{}, conf)
	svc.now = func() time.Time { return today }
	return svc
}

func ctxAs(role string) context.Context {
	return user.ContextWithActor(context.Background(), user.Actor{ID: "u1", Role: role})
}

func TestStudentFacts_PaymentStatus(t *testing.T) {
	tests := []struct {
		name  string
		facts StudentFacts
		want  string
	}{
		{
			name:  "no group fee",
			facts: StudentFacts{EnrollmentDate: "2023-01-01"},
			want:  PaymentUpToDate,
		},
		{
			name:  "recently enrolled",
			facts: StudentFacts{EnrollmentDate: "2024-03-01", GroupFee: null.Float64From(50)},
			want:  PaymentUpToDate,
		},
		{
			name: "paid within the window",
			facts: StudentFacts{
				EnrollmentDate:  "2023-09-01",
				GroupFee:        null.Float64From(50),
				LastPaymentDate: null.StringFrom("2024-02-20"),
			},
			want: PaymentUpToDate,
		},
		{
			name: "last payment too old",
			facts: StudentFacts{
				EnrollmentDate:  "2023-09-01",
				GroupFee:        null.Float64From(50),
				LastPaymentDate: null.StringFrom("2024-01-02"),
			},
			want: PaymentBehind,
		},
		{
			name:  "never paid",
			facts: StudentFacts{EnrollmentDate: "2023-09-01", GroupFee: null.Float64From(50)},
			want:  PaymentBehind,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.facts.PaymentStatus(today))
		})
	}
}

func TestIsAtRisk(t *testing.T) {
	assert.True(t, IsAtRisk(StudentFacts{TotalSessions: 20, AttendedSessions: 13}, PaymentUpToDate))  // 65%
	assert.False(t, IsAtRisk(StudentFacts{TotalSessions: 20, AttendedSessions: 15}, PaymentUpToDate)) // 75%
	assert.True(t, IsAtRisk(StudentFacts{TotalSessions: 20, AttendedSessions: 15}, PaymentBehind))
	assert.True(t, IsAtRisk(StudentFacts{}, PaymentUpToDate)) // no sessions
}

func TestRiskLevel(t *testing.T) {
	assert.Equal(t, RiskHigh, RiskLevel(69.99))
	assert.Equal(t, RiskMedium, RiskLevel(70))
	assert.Equal(t, RiskMedium, RiskLevel(84.9))
	assert.Equal(t, RiskLow, RiskLevel(85))
}

func TestService_Chat(t *testing.T) {
	gen := new(stubGenerator)
	svc := newTestService(new(stubRepo), gen)

	resp, err := svc.Chat(ctxAs(user.RoleMarketer), ChatRequest{Message: "  How many groups?  "})
	require.NoError(t, err)
	assert.Equal(t, "generated", resp.Text)
	assert.Equal(t, today, resp.Timestamp)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "User Question: How many groups?")
	assert.Contains(t, gen.prompts[0], "General assistance")

	_, err = svc.Chat(ctxAs(user.RoleMarketer), ChatRequest{Message: "  "})
	assert.Error(t, err)

	_, err = svc.Chat(context.Background(), ChatRequest{Message: "hi"})
	var forbidden *core.ForbiddenError
	assert.ErrorAs(t, err, &forbidden)
}

func TestService_GenerateMarketing(t *testing.T) {
	svc := newTestService(new(stubRepo), new(stubGenerator))

	content, err := svc.GenerateMarketing(ctxAs(user.RoleMarketer), MarketingRequest{CampaignType: "summer", TargetAudience: "parents"})
	require.NoError(t, err)
	assert.Equal(t, "generated", content.Content)
	assert.Equal(t, "summer", content.CampaignType)

	_, err = svc.GenerateMarketing(ctxAs(user.RoleTeacher), MarketingRequest{CampaignType: "summer", TargetAudience: "parents"})
	assert.Error(t, err)

	failing := newTestService(new(stubRepo), &stubGenerator{failOn: "summer"})
	_, err = failing.GenerateMarketing(ctxAs(user.RoleAdmin), MarketingRequest{CampaignType: "summer", TargetAudience: "parents"})
	var extErr *core.ExternalServiceError
	assert.ErrorAs(t, err, &extErr)
}

func TestService_AnalyzeStudent(t *testing.T) {
	repo := &stubRepo{facts: []StudentFacts{{
		StudentID:        "s1",
		Name:             "Ahmed Hassan",
		EnrollmentDate:   "2024-01-15",
		GroupName:        null.StringFrom("Beginner English"),
		GroupLevel:       null.StringFrom("A1"),
		TotalSessions:    24,
		AttendedSessions: 18,
	}}}
	gen := new(stubGenerator)
	svc := newTestService(repo, gen)

	analysis, err := svc.AnalyzeStudent(ctxAs(user.RoleDirector), "s1")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-09", repo.since)
	assert.Equal(t, Metrics{AttendanceRate: 75, PaymentStatus: PaymentUpToDate, RiskLevel: RiskMedium}, analysis.Metrics)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Beginner English (A1)")
	assert.Contains(t, gen.prompts[0], "18/24")

	_, err = svc.AnalyzeStudent(ctxAs(user.RoleDirector), "missing")
	assert.Equal(t, ErrStudentNotFound, err)
}

func TestService_PredictAtRisk(t *testing.T) {
	repo := &stubRepo{facts: []StudentFacts{
		{StudentID: "s1", Name: "Sara", EnrollmentDate: "2023-10-01", TotalSessions: 20, AttendedSessions: 13},
		{StudentID: "s2", Name: "Omar", EnrollmentDate: "2023-10-01", TotalSessions: 20, AttendedSessions: 15},
		{StudentID: "s3", Name: "Lina", EnrollmentDate: "2023-10-01", GroupFee: null.Float64From(40), TotalSessions: 8, AttendedSessions: 8},
		{StudentID: "s4", Name: "Yusuf", EnrollmentDate: "2024-03-05"},
	}}
	svc := newTestService(repo, &stubGenerator{failOn: "Lina"})

	report, err := svc.PredictAtRisk(ctxAs(user.RoleHeadTrainer))
	require.NoError(t, err)
	assert.Equal(t, 4, report.TotalAnalyzed)
	assert.Equal(t, 3, report.RiskCount)
	require.Len(t, report.Students, 3)

	sara, lina, yusuf := report.Students[0], report.Students[1], report.Students[2]
	assert.Equal(t, "s1", sara.StudentID)
	assert.Equal(t, float64(65), sara.AttendanceRate)
	assert.Equal(t, "generated", sara.Analysis)
	assert.Empty(t, sara.Error)

	assert.Equal(t, "s3", lina.StudentID)
	assert.Equal(t, PaymentBehind, lina.PaymentStatus)
	assert.Empty(t, lina.Analysis)
	assert.NotEmpty(t, lina.Error)

	// no sessions in the window counts as a zero rate
	assert.Equal(t, "s4", yusuf.StudentID)
	assert.Equal(t, float64(0), yusuf.AttendanceRate)
	assert.Equal(t, "generated", yusuf.Analysis)

	_, err = svc.PredictAtRisk(ctxAs(user.RoleAgent))
	assert.Error(t, err)
}
