package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/d60-Lab/feedpulse/config"
	"github.com/d60-Lab/feedpulse/internal/cache"
)

func must[T any](v T, err error) T { if err != nil { panic(err) }; return v }

func pct(vs []time.Duration, p float64) time.Duration {
    if len(vs) == 0 { return 0 }
    xs := append([]time.Duration(nil), vs...)
    sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
    k := int(math.Ceil(p*float64(len(xs)))) - 1
    if k < 0 { k = 0 }
    if k >= len(xs) { k = len(xs)-1 }
    return xs[k]
}

func envInt(name string, def int) int {
    if s := os.Getenv(name); s != "" {
        if v, e := strconv.Atoi(s); e == nil && v > 0 { return v }
    }
    return def
}

// 对比两条路径：
//  1. 发帖 fan-out（单管道提交 N 个粉丝时间线）
//  2. 翻页水合（固定 3 次管道往返 vs 逐条 await 的朴素实现）
func main() {
    cfg := must(config.Load())
    rdb := cache.NewClient(cfg)
    ctx := context.Background()
    if !cache.Ready(ctx, rdb) { panic("redis not reachable") }

    N := envInt("N", 10000)       // followers of the author
    POSTS := envInt("POSTS", 100) // posts to publish
    PAGE := envInt("PAGE", 20)    // timeline page size

    scorer := cache.NewScorer(cfg.Ranking)
    feedCache := cache.NewFeedCache(rdb, scorer, cfg.Timeline)
    followCache := cache.NewFollowCache(rdb)

    // seed author + N followers (cache edges only; durable store not involved)
    author := "author-" + uuid.NewString()[:8]
    for i := 0; i < N; i++ {
        must(0, followCache.AddFollower(ctx, fmt.Sprintf("fan-%d", i), author))
    }

    // publish POSTS posts, each fanning out to N following-timelines
    pubRecs := make([]time.Duration, 0, POSTS)
    t0 := time.Now()
    for i := 0; i < POSTS; i++ {
        st := time.Now()
        must(0, feedCache.CreateFeed(ctx, &cache.FeedMeta{
            ID:       uuid.NewString(),
            AuthorID: author,
            Body:     fmt.Sprintf("post %d", i),
        }))
        pubRecs = append(pubRecs, time.Since(st))
    }
    pubDur := time.Since(t0)

    // hydrated page reads through the pipelined path
    readRecs := make([]time.Duration, 0, POSTS)
    for i := 0; i < POSTS; i++ {
        st := time.Now()
        must(feedCache.DiscoverTimeline(ctx, "fan-0", 0, PAGE-1))
        readRecs = append(readRecs, time.Since(st))
    }

    // naive per-item hydration for comparison: one HGETALL await per entry
    ids := must(rdb.ZRevRange(ctx, "global_timeline", 0, int64(PAGE-1)).Result())
    naiveRecs := make([]time.Duration, 0, POSTS)
    for i := 0; i < POSTS; i++ {
        st := time.Now()
        for _, id := range ids {
            _ = rdb.HGetAll(ctx, "feeds:"+id+":meta").Val()
        }
        naiveRecs = append(naiveRecs, time.Since(st))
    }

    fmt.Printf("N=%d POSTS=%d PAGE=%d\n", N, POSTS, PAGE)
    fmt.Printf("Publish fan-out: total=%v per-post=%v p50=%v p95=%v p99=%v\n",
        pubDur, pubDur/time.Duration(POSTS), pct(pubRecs, 0.50), pct(pubRecs, 0.95), pct(pubRecs, 0.99))
    fmt.Printf("Page hydration (pipelined): p50=%v p95=%v p99=%v\n",
        pct(readRecs, 0.50), pct(readRecs, 0.95), pct(readRecs, 0.99))
    fmt.Printf("Page hydration (naive per-item): p50=%v p95=%v p99=%v\n",
        pct(naiveRecs, 0.50), pct(naiveRecs, 0.95), pct(naiveRecs, 0.99))

    _ = rdb.Close()
}
