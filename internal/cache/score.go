package cache

import (
	"math"
	"time"

	"github.com/d60-Lab/feedpulse/config"
)

// EngagementCounts holds the cardinalities that feed the ranking score.
type EngagementCounts struct {
	Comments int64
	Likes    int64
	Views    int64
	Reposts  int64
	Quotes   int64
}

// Scorer computes timeline ranking scores. The epoch-additive form keeps sort
// order stable under a monotonic clock: a newer post with equal engagement
// always outranks an older one, and more engagement at fixed age always wins.
type Scorer struct {
	cfg config.RankingConfig
}

func NewScorer(cfg config.RankingConfig) *Scorer { return &Scorer{cfg: cfg} }

func (s *Scorer) weighted(c EngagementCounts) float64 {
	return float64(c.Comments)*s.cfg.CommentWeight +
		float64(c.Likes)*s.cfg.LikeWeight +
		float64(c.Views)*s.cfg.ViewWeight +
		float64(c.Reposts)*s.cfg.RepostWeight +
		float64(c.Quotes)*s.cfg.QuoteWeight
}

// Score = created_at_epoch_seconds + scale * ln(1 + weighted_engagement).
func (s *Scorer) Score(c EngagementCounts, createdAt time.Time) float64 {
	return float64(createdAt.Unix()) + s.cfg.Scale*math.Log1p(s.weighted(c))
}

// DecayScore 纯衰减变体（旧版公式，仅 bench 对比用，不参与线上排序）
func (s *Scorer) DecayScore(c EngagementCounts, createdAt time.Time, halfLife, boostFactor float64) float64 {
	ageHours := time.Since(createdAt).Hours()
	engagement := math.Log1p(s.weighted(c))
	return engagement*math.Exp(-ageHours/halfLife) + 10*math.Exp(-ageHours/boostFactor)
}
