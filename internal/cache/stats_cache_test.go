package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrBumpsTodayBucket(t *testing.T) {
	_, client := newTestRedis(t)
	sc := NewStatsCache(client)
	ctx := context.Background()

	require.NoError(t, sc.Incr(ctx))
	require.NoError(t, sc.Incr(ctx))

	today := time.Now().UTC().Format("2006-01-02")
	assert.Equal(t, "2", client.HGet(ctx, "statistics", today).Val())
}

func TestRollupStatistics(t *testing.T) {
	// 2024-05-15 is a Wednesday; the week runs 05-13 (Mon) .. 05-19 (Sun)
	now := time.Date(2024, 5, 15, 10, 30, 0, 0, time.UTC)
	raw := map[string]string{
		"2024-05-13": "3",
		"2024-05-15": "2",
		"2024-05-19": "1", // later this week
		"2024-04-01": "5",
		"2023-12-31": "7",
		"2024-06-01": "9", // future
		"garbage":    "4",
	}

	stats := rollupStatistics(raw, now)

	assert.Equal(t, int64(3), stats.Weekly["Mon"])
	assert.Equal(t, int64(2), stats.Weekly["Wed"])
	assert.Equal(t, int64(0), stats.Weekly["Tue"])
	assert.Equal(t, int64(1), stats.Weekly["Sun"])

	assert.Equal(t, int64(5), stats.Monthly["May"]) // 05-19 与 06-01 未到今天，不计入
	assert.Equal(t, int64(5), stats.Monthly["Apr"])
	assert.Equal(t, int64(0), stats.Monthly["Dec"]) // 去年 12 月不混入今年视图

	assert.Equal(t, int64(10), stats.Yearly["2024"])
	assert.Equal(t, int64(7), stats.Yearly["2023"])

	assert.Equal(t, int64(17), stats.Total)
}

func TestRollupStatisticsEmpty(t *testing.T) {
	stats := rollupStatistics(map[string]string{}, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, int64(0), stats.Total)
	assert.Len(t, stats.Weekly, 7)
	assert.Len(t, stats.Monthly, 12)
	assert.Empty(t, stats.Yearly)
}
