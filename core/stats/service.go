package stats

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/user"
)

// Repository reads the aggregates the dashboard is built from.
// Dates are YYYY-MM-DD strings; an empty groupID means every group.
type Repository interface {
	CountActiveStudents(ctx context.Context) (int, error)
	CountStudentsCreatedSince(ctx context.Context, since time.Time) (int, error)
	CountActiveGroups(ctx context.Context) (int, error)
	CountActiveTeachers(ctx context.Context) (int, error)
	CompletedRevenueSince(ctx context.Context, since string) (RevenueTotal, error)
	CountAttendanceSince(ctx context.Context, groupID, since string) (AttendanceCount, error)
	RecentStudents(ctx context.Context, since time.Time, limit int) ([]RecentStudent, error)
	CompletedPaymentsSince(ctx context.Context, since string) ([]PaymentFact, error)
	EnrollmentsSince(ctx context.Context, since string) ([]EnrollmentFact, error)
	// ActiveGroups returns the active groups with their teacher name and active student count.
	ActiveGroups(ctx context.Context) ([]GroupRanking, error)
}

type Service struct {
	repo   Repository
	logger core.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Overview builds the dashboard for a timeframe (week, month or year).
// Figures are fetched concurrently; a figure whose query fails is reported as zero.
func (svc *Service) Overview(ctx context.Context, timeframe string) (Overview, error) {
	if err := user.Authorize(ctx, user.PermDashboardView); err != nil {
		return Overview{}, err
	}

	now := svc.now().UTC()
	days := TimeframeDays(timeframe)
	since := now.AddDate(0, 0, -days)
	sinceDate := core.DaysAgo(now, days)

	var (
		ov       Overview
		mu       sync.Mutex
		degraded []string
	)
	degrade := func(figure string, err error) {
		svc.logger.Warn("dashboard figure degraded to zero", "figure", figure, "error", err)
		mu.Lock()
		degraded = append(degraded, figure)
		mu.Unlock()
	}
	count := func(figure string, dst *int, query func(context.Context) (int, error)) func() error {
		return func() error {
			n, err := query(ctx)
			if err != nil {
				degrade(figure, err)
				return nil
			}
			*dst = n
			return nil
		}
	}

	g := new(errgroup.Group)
	g.Go(count("active_students", &ov.Stats.ActiveStudents, svc.repo.CountActiveStudents))
	g.Go(count("new_students", &ov.Stats.NewStudents, func(ctx context.Context) (int, error) {
		return svc.repo.CountStudentsCreatedSince(ctx, since)
	}))
	g.Go(count("active_groups", &ov.Stats.ActiveGroups, svc.repo.CountActiveGroups))
	g.Go(count("total_teachers", &ov.Stats.TotalTeachers, svc.repo.CountActiveTeachers))
	g.Go(func() error {
		rev, err := svc.repo.CompletedRevenueSince(ctx, sinceDate)
		if err != nil {
			degrade("revenue", err)
			return nil
		}
		ov.Stats.Revenue = rev.Amount
		ov.Stats.TotalPayments = rev.Count
		return nil
	})
	g.Go(func() error {
		c, err := svc.repo.CountAttendanceSince(ctx, "", sinceDate)
		if err != nil {
			degrade("attendance_rate", err)
			return nil
		}
		ov.Stats.AttendanceRate = WholeRate(c)
		return nil
	})
	g.Go(func() error {
		students, err := svc.repo.RecentStudents(ctx, now.AddDate(0, 0, -recentActivityDays), recentActivityLimit)
		if err != nil {
			degrade("recent_activities", err)
			return nil
		}
		ov.RecentActivities = make([]Activity, 0, len(students))
		for _, s := range students {
			ov.RecentActivities = append(ov.RecentActivities, enrolledActivity(s))
		}
		return nil
	})
	_ = g.Wait() // figures never fail the overview

	if ov.RecentActivities == nil {
		ov.RecentActivities = []Activity{}
	}
	ov.Degraded = degraded
	return ov, nil
}

// Revenue returns the completed revenue of the trailing year, per month.
func (svc *Service) Revenue(ctx context.Context) ([]MonthlyRevenue, error) {
	if err := user.Authorize(ctx, user.PermAnalytics); err != nil {
		return nil, err
	}
	payments, err := svc.repo.CompletedPaymentsSince(ctx, core.DaysAgo(svc.now().UTC(), trendDays))
	if err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	return RevenueByMonth(payments), nil
}

// EnrollmentTrends returns the enrollments of the trailing year, per month.
func (svc *Service) EnrollmentTrends(ctx context.Context) ([]EnrollmentTrend, error) {
	if err := user.Authorize(ctx, user.PermAnalytics); err != nil {
		return nil, err
	}
	enrollments, err := svc.repo.EnrollmentsSince(ctx, core.DaysAgo(svc.now().UTC(), trendDays))
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return EnrollmentsByMonth(enrollments), nil
}

// TopGroups ranks the active groups by their attendance rate over the trailing 30 days.
// A group whose attendance cannot be counted is ranked with a zero rate.
func (svc *Service) TopGroups(ctx context.Context) ([]GroupRanking, error) {
	if err := user.Authorize(ctx, user.PermDashboardView); err != nil {
		return nil, err
	}
	groups, err := svc.repo.ActiveGroups(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}

	since := core.DaysAgo(svc.now().UTC(), topGroupsDays)
	g := new(errgroup.Group)
	g.SetLimit(8)
	for i := range groups {
		grp := &groups[i]
		if grp.StudentCount == 0 {
			continue
		}
		g.Go(func() error {
			c, err := svc.repo.CountAttendanceSince(ctx, grp.ID, since)
			if err != nil {
				svc.logger.Warn("group attendance degraded to zero", "group", grp.ID, "error", err)
				return nil
			}
			grp.AttendanceRate = WholeRate(c)
			return nil
		})
	}
	_ = g.Wait()

	return RankGroups(groups, topGroupsLimit), nil
}
