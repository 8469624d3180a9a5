package ai

import (
	"bytes"
	"context"
	"text/template"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/user"
	appfs "github.com/trezcool/ischoolgo/fs"
)

const maxConcurrentGenerations = 4

var (
	// errors
	ErrStudentNotFound = core.NewNotFoundError("student not found")

	prompts = template.Must(template.New("prompts").Option("missingkey=error").ParseFS(appfs.FS, "templates/prompts/*.tmpl"))
)

type (
	Repository interface {
		// StudentFacts returns the facts of a student with attendance counted from `since` (YYYY-MM-DD).
		StudentFacts(ctx context.Context, studentID, since string) (StudentFacts, error)
		// ActiveStudentFacts returns the facts of every active student.
		ActiveStudentFacts(ctx context.Context, since string) ([]StudentFacts, error)
	}

	// TextGenerator turns a prompt into free text.
	TextGenerator interface {
		Generate(ctx context.Context, prompt string) (string, error)
	}

	Service struct {
		repo     Repository
		gen      TextGenerator
		validate *validator.Validate
		logger   core.Logger
		appName  string
		now      func() time.Time
	}

	factsPrompt struct {
		StudentFacts
		AttendanceRate float64
		PaymentStatus  string
		MissedSessions int
		WindowDays     int
	}
)

func NewService(repo Repository, gen TextGenerator, validate *validator.Validate, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		gen:      gen,
		validate: validate,
		logger:   logger,
		appName:  conf.AppName,
		now:      time.Now,
	}
}

func (svc *Service) Chat(ctx context.Context, req ChatRequest) (Response, error) {
	if err := user.Authorize(ctx, user.PermAIChat); err != nil {
		return Response{}, err
	}
	if err := req.Validate(svc.validate); err != nil {
		return Response{}, err
	}
	text, err := svc.generate(ctx, "chat.tmpl", map[string]string{
		"AppName": svc.appName,
		"Context": req.Context,
		"Message": req.Message,
	})
	if err != nil {
		return Response{}, err
	}
	return Response{Text: text, Timestamp: svc.now().UTC()}, nil
}

func (svc *Service) GenerateMarketing(ctx context.Context, req MarketingRequest) (MarketingContent, error) {
	if err := user.Authorize(ctx, user.PermMarketing); err != nil {
		return MarketingContent{}, err
	}
	if err := req.Validate(svc.validate); err != nil {
		return MarketingContent{}, err
	}
	text, err := svc.generate(ctx, "marketing.tmpl", map[string]string{
		"AppName":           svc.appName,
		"CampaignType":      req.CampaignType,
		"TargetAudience":    req.TargetAudience,
		"AdditionalContext": req.AdditionalContext,
	})
	if err != nil {
		return MarketingContent{}, err
	}
	return MarketingContent{
		Content:        text,
		CampaignType:   req.CampaignType,
		TargetAudience: req.TargetAudience,
		GeneratedAt:    svc.now().UTC(),
	}, nil
}

// AnalyzeStudent grades a student's risk from their facts and asks for a narrative analysis.
func (svc *Service) AnalyzeStudent(ctx context.Context, studentID string) (StudentAnalysis, error) {
	if err := user.Authorize(ctx, user.PermAnalytics); err != nil {
		return StudentAnalysis{}, err
	}
	now := svc.now().UTC()
	facts, err := svc.repo.StudentFacts(ctx, studentID, core.DaysAgo(now, WindowDays))
	if err != nil {
		return StudentAnalysis{}, err
	}

	data := svc.factsPrompt(facts, now)
	text, err := svc.generate(ctx, "student_analysis.tmpl", data)
	if err != nil {
		return StudentAnalysis{}, err
	}
	return StudentAnalysis{
		Student:  facts,
		Analysis: text,
		Metrics: Metrics{
			AttendanceRate: data.AttendanceRate,
			PaymentStatus:  data.PaymentStatus,
			RiskLevel:      RiskLevel(data.AttendanceRate),
		},
		Timestamp: now,
	}, nil
}

// PredictAtRisk flags the active students at risk and asks for commentary on each.
// A student whose commentary fails stays in the report with the error.
func (svc *Service) PredictAtRisk(ctx context.Context) (AtRiskReport, error) {
	if err := user.Authorize(ctx, user.PermAnalytics); err != nil {
		return AtRiskReport{}, err
	}
	now := svc.now().UTC()
	students, err := svc.repo.ActiveStudentFacts(ctx, core.DaysAgo(now, WindowDays))
	if err != nil {
		return AtRiskReport{}, errors.Wrap(err, "querying student facts")
	}

	flagged := make([]AtRiskStudent, 0)
	data := make([]factsPrompt, 0)
	for _, facts := range students {
		d := svc.factsPrompt(facts, now)
		if !IsAtRisk(facts, d.PaymentStatus) {
			continue
		}
		flagged = append(flagged, AtRiskStudent{
			StudentID:        facts.StudentID,
			Name:             facts.Name,
			GroupName:        facts.GroupName,
			AttendedSessions: facts.AttendedSessions,
			TotalSessions:    facts.TotalSessions,
			AttendanceRate:   d.AttendanceRate,
			PaymentStatus:    d.PaymentStatus,
		})
		data = append(data, d)
	}

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentGenerations)
	for i := range flagged {
		entry, d := &flagged[i], data[i]
		g.Go(func() error {
			text, err := svc.generate(ctx, "at_risk.tmpl", d)
			if err != nil {
				svc.logger.Warn("at-risk commentary failed", "student", entry.StudentID, "error", err)
				entry.Error = err.Error()
				return nil
			}
			entry.Analysis = text
			return nil
		})
	}
	_ = g.Wait()

	return AtRiskReport{
		Students:      flagged,
		TotalAnalyzed: len(students),
		RiskCount:     len(flagged),
		AnalysisDate:  now,
	}, nil
}

func (svc *Service) factsPrompt(facts StudentFacts, now time.Time) factsPrompt {
	return factsPrompt{
		StudentFacts:   facts,
		AttendanceRate: facts.AttendanceRate(),
		PaymentStatus:  facts.PaymentStatus(now),
		MissedSessions: facts.MissedSessions(),
		WindowDays:     WindowDays,
	}
}

func (svc *Service) generate(ctx context.Context, name string, data interface{}) (string, error) {
	var prompt bytes.Buffer
	if err := prompts.ExecuteTemplate(&prompt, name, data); err != nil {
		return "", errors.Wrapf(err, "rendering %s", name)
	}
	text, err := svc.gen.Generate(ctx, prompt.String())
	if err != nil {
		return "", errors.Wrap(err, "generating text")
	}
	return text, nil
}
