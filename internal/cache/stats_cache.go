package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Statistics is the per-day activity counter rolled up for the settings
// dashboard.
type Statistics struct {
	Weekly  map[string]int64 `json:"weekly"`  // Mon..Sun of the current week
	Monthly map[string]int64 `json:"monthly"` // Jan..Dec of the current year
	Yearly  map[string]int64 `json:"yearly"`
	Total   int64            `json:"total"`
}

type StatsCache struct {
	rdb redis.UniversalClient
}

func NewStatsCache(rdb redis.UniversalClient) *StatsCache { return &StatsCache{rdb: rdb} }

// Incr bumps today's counter by one.
func (c *StatsCache) Incr(ctx context.Context) error {
	today := time.Now().UTC().Format("2006-01-02")
	return c.rdb.HIncrBy(ctx, keyStatistics, today, 1).Err()
}

// Statistics rolls the raw day->count hash into weekly/monthly/yearly views.
func (c *StatsCache) Statistics(ctx context.Context) (*Statistics, error) {
	raw, err := c.rdb.HGetAll(ctx, keyStatistics).Result()
	if err != nil {
		return nil, err
	}
	return rollupStatistics(raw, time.Now().UTC()), nil
}

func rollupStatistics(raw map[string]string, now time.Time) *Statistics {
	today := now.Truncate(24 * time.Hour)
	stats := &Statistics{
		Weekly:  map[string]int64{},
		Monthly: map[string]int64{},
		Yearly:  map[string]int64{},
	}
	for _, m := range []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"} {
		stats.Monthly[m] = 0
	}

	// current week, Monday first
	weekday := (int(today.Weekday()) + 6) % 7
	monday := today.AddDate(0, 0, -weekday)
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		v, _ := strconv.ParseInt(raw[day.Format("2006-01-02")], 10, 64)
		stats.Weekly[day.Format("Mon")] = v
	}

	for dateStr, countStr := range raw {
		day, err := time.Parse("2006-01-02", dateStr)
		if err != nil || day.After(today) {
			continue
		}
		count, _ := strconv.ParseInt(countStr, 10, 64)
		stats.Total += count
		stats.Yearly[strconv.Itoa(day.Year())] += count
		if day.Year() == today.Year() {
			stats.Monthly[day.Format("Jan")] += count
		}
	}
	return stats
}
