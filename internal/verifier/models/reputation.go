package models

import "time"

// ReputationPolicy scores a submitted result. The bonuses are business
// thresholds, tunable through configuration. The score is a heuristic and
// not a fraud control.
type ReputationPolicy struct {
	Base             float64
	Diligence        float64
	Timeliness       float64
	MinSummaryLength int
	TimelinessWindow time.Duration
}

// DefaultReputationPolicy is +1 per result, +0.5 for a summary over 100
// characters, +0.5 for submitting within 24h of assignment.
func DefaultReputationPolicy() ReputationPolicy {
	return ReputationPolicy{
		Base:             1.0,
		Diligence:        0.5,
		Timeliness:       0.5,
		MinSummaryLength: 100,
		TimelinessWindow: 24 * time.Hour,
	}
}

// Performance describes one submitted verification result.
type Performance struct {
	Verified    bool
	Summary     string
	AssignedAt  time.Time
	SubmittedAt time.Time
}

// Delta returns the reputation adjustment earned by p.
func (rp ReputationPolicy) Delta(p Performance) float64 {
	delta := rp.Base
	if len([]rune(p.Summary)) > rp.MinSummaryLength {
		delta += rp.Diligence
	}
	if !p.SubmittedAt.Before(p.AssignedAt) && p.SubmittedAt.Sub(p.AssignedAt) <= rp.TimelinessWindow {
		delta += rp.Timeliness
	}
	return delta
}

// ClampReputation bounds a score to [0, 100].
func ClampReputation(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

// Stats summarizes the directory.
type Stats struct {
	Total             int                    `json:"total"`
	ByTier            map[Tier]int           `json:"by_tier"`
	ByStatus          map[VerifierStatus]int `json:"by_status"`
	AverageReputation float64                `json:"average_reputation"`
	ExpiredCredential int                    `json:"expired_credentials"`
}
