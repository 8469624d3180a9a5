package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/trezcool/ischoolgo/core/attendance"
)

// month returns the YYYY-MM prefix of a YYYY-MM-DD date.
func month(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

// RevenueByMonth buckets payments by the year-month of their payment date, oldest month first.
func RevenueByMonth(payments []PaymentFact) []MonthlyRevenue {
	buckets := make(map[string]*MonthlyRevenue)
	for _, p := range payments {
		period := month(p.PaymentDate)
		b, ok := buckets[period]
		if !ok {
			b = &MonthlyRevenue{Period: period}
			buckets[period] = b
		}
		b.Revenue += p.Amount
		b.PaymentCount++
	}

	revenue := make([]MonthlyRevenue, 0, len(buckets))
	for _, b := range buckets {
		revenue = append(revenue, *b)
	}
	sort.Slice(revenue, func(i, j int) bool { return revenue[i].Period < revenue[j].Period })
	return revenue
}

// EnrollmentsByMonth buckets students by the year-month of their enrollment date, oldest month first.
func EnrollmentsByMonth(enrollments []EnrollmentFact) []EnrollmentTrend {
	buckets := make(map[string]*EnrollmentTrend)
	for _, e := range enrollments {
		m := month(e.EnrollmentDate)
		b, ok := buckets[m]
		if !ok {
			b = &EnrollmentTrend{Month: m}
			buckets[m] = b
		}
		b.NewEnrollments++
		if e.Status == "active" {
			b.ActiveEnrollments++
		}
	}

	trends := make([]EnrollmentTrend, 0, len(buckets))
	for _, b := range buckets {
		trends = append(trends, *b)
	}
	sort.Slice(trends, func(i, j int) bool { return trends[i].Month < trends[j].Month })
	return trends
}

// RankGroups keeps the groups with at least one active student, sorted by attendance rate then
// student count, both descending, and returns the first `limit`.
func RankGroups(groups []GroupRanking, limit int) []GroupRanking {
	ranked := make([]GroupRanking, 0, len(groups))
	for _, g := range groups {
		if g.StudentCount > 0 {
			ranked = append(ranked, g)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].AttendanceRate != ranked[j].AttendanceRate {
			return ranked[i].AttendanceRate > ranked[j].AttendanceRate
		}
		return ranked[i].StudentCount > ranked[j].StudentCount
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// WholeRate returns the attendance rate of `c` rounded to a whole percent.
func WholeRate(c AttendanceCount) float64 {
	return math.Round(attendance.Rate(c.Present, c.Total))
}

func enrolledActivity(s RecentStudent) Activity {
	return Activity{
		Type:        ActivityStudentEnrolled,
		Description: fmt.Sprintf("New student %s enrolled", s.Name),
		Timestamp:   s.CreatedAt,
	}
}
