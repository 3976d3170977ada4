package services

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Mariosat15/Chatvot-sub008/models"
)

var ErrUnknownRankingMethod = errors.New("unknown ranking method")

// ParticipantMetrics is the ranking engine's view of a participant — a plain
// snapshot, so competitions and 1v1 challenges feed the same math.
type ParticipantMetrics struct {
	UserID          string
	Status          models.ParticipantStatus
	JoinedAt        time.Time
	StartingCapital float64
	CurrentCapital  float64
	Pnl             float64
	TotalTrades     int
	WinningTrades   int
	GrossProfit     float64
	GrossLoss       float64 // positive magnitude
}

// Standing is the ranking result for one participant.
type Standing struct {
	UserID              string                   `json:"user_id"`
	CurrentRank         int                      `json:"current_rank"`
	MetricValue         float64                  `json:"metric_value"`
	TopCompetitorMetric float64                  `json:"top_competitor_metric"`
	GapToLeader         float64                  `json:"gap_to_leader"`
	PercentOfLeader     float64                  `json:"percent_of_leader"`
	MeetsMinimumTrades  bool                     `json:"meets_minimum_trades"`
	ProbabilityScore    float64                  `json:"probability_score"`
	Status              models.ParticipantStatus `json:"status"`
}

// disqualifiedScoreBand is the fixed probability score for disqualified
// participants, below anything an eligible participant can receive.
const disqualifiedScoreBand = 5.0

// MetricValue extracts the ranking metric for one participant. A zero-loss
// profit factor with positive profit is unbounded and reported as +Inf rather
// than dividing by zero.
func MetricValue(method models.RankingMethod, p ParticipantMetrics) (float64, error) {
	switch method {
	case models.RankByPnl:
		return p.Pnl, nil
	case models.RankByROI:
		if p.StartingCapital == 0 {
			return 0, nil
		}
		return p.Pnl / p.StartingCapital, nil
	case models.RankByTotalCapital:
		return p.CurrentCapital, nil
	case models.RankByWinRate:
		if p.TotalTrades == 0 {
			return 0, nil
		}
		return float64(p.WinningTrades) / float64(p.TotalTrades), nil
	case models.RankByTotalWins:
		return float64(p.WinningTrades), nil
	case models.RankByProfitFactor:
		if p.GrossLoss == 0 {
			if p.GrossProfit > 0 {
				return math.Inf(1), nil
			}
			return 0, nil
		}
		return p.GrossProfit / p.GrossLoss, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRankingMethod, method)
	}
}

// RankParticipants ranks the full participant set, descending by metric value.
// Ties break by earliest join time, then user ID, so the ordering is stable
// and deterministic regardless of input order.
func RankParticipants(method models.RankingMethod, participants []ParticipantMetrics, minimumTrades int) ([]Standing, error) {
	if len(participants) == 0 {
		return nil, nil
	}

	type scored struct {
		ParticipantMetrics
		metric float64
	}
	rows := make([]scored, 0, len(participants))
	for _, p := range participants {
		m, err := MetricValue(method, p)
		if err != nil {
			return nil, err
		}
		rows = append(rows, scored{ParticipantMetrics: p, metric: m})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].metric != rows[j].metric {
			// NaN never occurs: every metric extraction guards its denominator
			return rows[i].metric > rows[j].metric
		}
		if !rows[i].JoinedAt.Equal(rows[j].JoinedAt) {
			return rows[i].JoinedAt.Before(rows[j].JoinedAt)
		}
		return rows[i].UserID < rows[j].UserID
	})

	leaderMetric := rows[0].metric

	// percent-of-leader comparisons are made against eligible traders only
	eligibleLeader := math.Inf(-1)
	haveEligibleLeader := false
	for _, r := range rows {
		if r.Status == models.ParticipantActive && r.TotalTrades >= minimumTrades {
			if !haveEligibleLeader || r.metric > eligibleLeader {
				eligibleLeader = r.metric
				haveEligibleLeader = true
			}
		}
	}
	if !haveEligibleLeader {
		eligibleLeader = leaderMetric
	}

	total := len(rows)
	standings := make([]Standing, 0, total)
	for i, r := range rows {
		rank := i + 1
		percent := percentOfLeader(r.metric, eligibleLeader)
		s := Standing{
			UserID:              r.UserID,
			CurrentRank:         rank,
			MetricValue:         r.metric,
			TopCompetitorMetric: leaderMetric,
			GapToLeader:         gapToLeader(leaderMetric, r.metric),
			PercentOfLeader:     percent,
			MeetsMinimumTrades:  r.TotalTrades >= minimumTrades,
			Status:              r.Status,
		}
		s.ProbabilityScore = probabilityScore(rank, total, percent, r.Status == models.ParticipantDisqualified)
		standings = append(standings, s)
	}
	return standings, nil
}

// RankOf returns the standing of a single participant within the full set.
func RankOf(method models.RankingMethod, userID string, participants []ParticipantMetrics, minimumTrades int) (*Standing, error) {
	standings, err := RankParticipants(method, participants, minimumTrades)
	if err != nil {
		return nil, err
	}
	for i := range standings {
		if standings[i].UserID == userID {
			return &standings[i], nil
		}
	}
	return nil, fmt.Errorf("participant %s not in ranking set", userID)
}

func gapToLeader(leader, metric float64) float64 {
	if math.IsInf(leader, 1) {
		if math.IsInf(metric, 1) {
			return 0
		}
		return math.Inf(1)
	}
	return leader - metric
}

func percentOfLeader(metric, leader float64) float64 {
	switch {
	case math.IsInf(leader, 1):
		if math.IsInf(metric, 1) {
			return 100
		}
		return 0
	case leader <= 0:
		if metric >= leader {
			// degenerate leaderboard (everyone flat or losing); the closest
			// to the leader still counts as level with them
			if metric == leader {
				return 100
			}
			return 0
		}
		return 0
	}
	pct := metric / leader * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// probabilityScore maps rank position and gap-to-leader into a 0-100 score.
// Monotonic: rank 1 always scores at least as high as rank 2; disqualified
// participants are pinned to a fixed low band.
func probabilityScore(rank, total int, percentOfLeader float64, disqualified bool) float64 {
	if disqualified {
		return disqualifiedScoreBand
	}
	position := float64(total-rank+1) / float64(total)
	score := 70*position + 30*(percentOfLeader/100)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
