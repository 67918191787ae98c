package etl

import (
	"math"

	"github.com/V4T54L/medallion/internal/domain"
)

// Performance grades keyed off the average response time in milliseconds.
const (
	GradeExcellent = "Excellent"
	GradeGood      = "Good"
	GradeFair      = "Fair"
	GradePoor      = "Poor"
	GradeUnknown   = "Unknown"
)

// Grade maps an average response time to a performance grade.
func Grade(avgResponseMS float64) string {
	switch {
	case avgResponseMS < 200:
		return GradeExcellent
	case avgResponseMS < 500:
		return GradeGood
	case avgResponseMS < 1000:
		return GradeFair
	default:
		return GradePoor
	}
}

// ApplyKPIs fills the derived business indicators of a daily metric from its
// counts. A row without requests gets zero rates and GradeUnknown instead of
// NaN or infinite values.
func ApplyKPIs(m *domain.DailyMetric) {
	if m.TotalRequests <= 0 || math.IsNaN(m.AvgResponseTime) || math.IsInf(m.AvgResponseTime, 0) {
		m.ErrorRate = 0
		m.SuccessRate = 0
		m.AvailabilityScore = 0
		m.AvgResponseTimeSeconds = 0
		m.PerformanceGrade = GradeUnknown
		return
	}
	total := float64(m.TotalRequests)
	m.ErrorRate = round(float64(m.ClientErrorCount+m.ServerErrorCount)*100/total, 2)
	m.SuccessRate = round(float64(m.SuccessCount)*100/total, 2)
	m.AvailabilityScore = round(float64(m.SuccessCount)*100/total, 2)
	m.AvgResponseTimeSeconds = round(m.AvgResponseTime/1000, 3)
	m.PerformanceGrade = Grade(m.AvgResponseTime)
}

func round(x float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(x*p) / p
}
