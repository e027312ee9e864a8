package services

import (
	"fmt"
	"sort"
	"time"

	"consulta_ciudadana_go/models"

	"gorm.io/gorm"
)

const (
	// DefaultStatsDays is the window of the by-date chart when none is requested
	DefaultStatsDays = 30
	// MaxStatsDays caps the by-date window
	MaxStatsDays = 365
	// TopSectorsLimit is how many sectors the by-sector chart shows
	TopSectorsLimit = 10
)

// DashboardStats are the headline numbers of the dashboard
type DashboardStats struct {
	Total        int64                       `json:"total"`
	Active       int64                       `json:"active"`
	Archived     int64                       `json:"archived"`
	Today        int64                       `json:"today"`
	LastWeek     int64                       `json:"lastWeek"`
	Departments  int64                       `json:"departments"`
	ByPersonType map[models.PersonType]int64 `json:"byPersonType"`
}

// DateCount is one point of the consultations-by-date series
type DateCount struct {
	Date  string `json:"date"` // YYYY-MM-DD, UTC
	Count int64  `json:"count"`
}

// SectorCount is one bar of the consultations-by-sector chart
type SectorCount struct {
	Sector string `json:"sector"`
	Count  int64  `json:"count"`
}

// GetDashboardStats computes the headline counters relative to now
func GetDashboardStats(db *gorm.DB, now time.Time) (*DashboardStats, error) {
	stats := &DashboardStats{
		ByPersonType: map[models.PersonType]int64{
			models.PersonNatural:  0,
			models.PersonJuridica: 0,
			models.PersonAnonimo:  0,
		},
	}
	startOfToday := truncateToDay(now)

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&stats.Total, db.Model(&models.Consultation{})},
		{&stats.Active, db.Model(&models.Consultation{}).Where("status = ?", models.ConsultationActive)},
		{&stats.Archived, db.Model(&models.Consultation{}).Where("status = ?", models.ConsultationArchived)},
		{&stats.Today, db.Model(&models.Consultation{}).Where("created_at >= ?", startOfToday)},
		{&stats.LastWeek, db.Model(&models.Consultation{}).Where("created_at >= ?", startOfToday.AddDate(0, 0, -6))},
		{&stats.Departments, db.Model(&models.Consultation{}).Distinct("department_id")},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to count consultations: %w", err)
		}
	}

	var rows []struct {
		PersonType models.PersonType
		Count      int64
	}
	if err := db.Model(&models.Consultation{}).
		Select("person_type, COUNT(*) AS count").
		Group("person_type").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count by person type: %w", err)
	}
	for _, r := range rows {
		stats.ByPersonType[r.PersonType] = r.Count
	}

	return stats, nil
}

// ConsultationsByDate counts consultations per UTC calendar day over the last
// days days (today included). Days without consultations are omitted and the
// series is ascending by date.
func ConsultationsByDate(db *gorm.DB, days int, now time.Time) ([]DateCount, error) {
	days = ClampStatsDays(days)
	since := truncateToDay(now).AddDate(0, 0, -(days - 1))

	var createdAt []time.Time
	if err := db.Model(&models.Consultation{}).
		Where("created_at >= ?", since).
		Pluck("created_at", &createdAt).Error; err != nil {
		return nil, fmt.Errorf("failed to load consultation dates: %w", err)
	}

	byDay := make(map[string]int64)
	for _, t := range createdAt {
		byDay[t.UTC().Format("2006-01-02")]++
	}

	series := make([]DateCount, 0, len(byDay))
	for day, count := range byDay {
		series = append(series, DateCount{Date: day, Count: count})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })
	return series, nil
}

// ClampStatsDays applies the default and the upper bound of the by-date window
func ClampStatsDays(days int) int {
	if days <= 0 {
		return DefaultStatsDays
	}
	if days > MaxStatsDays {
		return MaxStatsDays
	}
	return days
}

// ConsultationsBySector tallies every selected sector across all consultations
func ConsultationsBySector(db *gorm.DB) ([]SectorCount, error) {
	var consultations []models.Consultation
	if err := db.Select("id", "selected_sectors").Find(&consultations).Error; err != nil {
		return nil, fmt.Errorf("failed to load consultation sectors: %w", err)
	}

	lists := make([][]string, 0, len(consultations))
	for _, c := range consultations {
		lists = append(lists, c.SelectedSectors)
	}
	return TallySectors(lists, TopSectorsLimit), nil
}

// TallySectors counts each sector once per occurrence and returns the top
// limit entries by count, ties broken by sector name ascending.
func TallySectors(lists [][]string, limit int) []SectorCount {
	tally := make(map[string]int64)
	for _, sectors := range lists {
		for _, s := range sectors {
			tally[s]++
		}
	}

	result := make([]SectorCount, 0, len(tally))
	for name, count := range tally {
		result = append(result, SectorCount{Sector: name, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Sector < result[j].Sector
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
