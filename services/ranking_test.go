package services

import (
	"math"
	"testing"
	"time"

	"github.com/Mariosat15/Chatvot-sub008/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metricsFixture(userID string, joinOffset time.Duration, pnl float64, trades int) ParticipantMetrics {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return ParticipantMetrics{
		UserID:          userID,
		Status:          models.ParticipantActive,
		JoinedAt:        base.Add(joinOffset),
		StartingCapital: 10000,
		CurrentCapital:  10000 + pnl,
		Pnl:             pnl,
		TotalTrades:     trades,
		WinningTrades:   trades / 2,
	}
}

func TestMetricValueProfitFactor(t *testing.T) {
	p := ParticipantMetrics{GrossProfit: 500, GrossLoss: 0}
	v, err := MetricValue(models.RankByProfitFactor, p)
	require.NoError(t, err)
	assert.True(t, math.IsInf(v, 1), "zero loss with profit should be unbounded")

	p = ParticipantMetrics{GrossProfit: 0, GrossLoss: 0}
	v, err = MetricValue(models.RankByProfitFactor, p)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	p = ParticipantMetrics{GrossProfit: 300, GrossLoss: 150}
	v, err = MetricValue(models.RankByProfitFactor, p)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
}

func TestMetricValueGuardsDenominators(t *testing.T) {
	v, err := MetricValue(models.RankByWinRate, ParticipantMetrics{TotalTrades: 0, WinningTrades: 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	v, err = MetricValue(models.RankByROI, ParticipantMetrics{StartingCapital: 0, Pnl: 500})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestMetricValueUnknownMethod(t *testing.T) {
	_, err := MetricValue(models.RankingMethod("sharpe"), ParticipantMetrics{})
	assert.ErrorIs(t, err, ErrUnknownRankingMethod)
}

func TestRankParticipantsDeterministicAcrossInputOrder(t *testing.T) {
	a := metricsFixture("user-a", 0, 500, 10)
	b := metricsFixture("user-b", time.Minute, 300, 10)
	c := metricsFixture("user-c", 2*time.Minute, 800, 10)

	first, err := RankParticipants(models.RankByPnl, []ParticipantMetrics{a, b, c}, 0)
	require.NoError(t, err)
	second, err := RankParticipants(models.RankByPnl, []ParticipantMetrics{c, b, a}, 0)
	require.NoError(t, err)

	require.Len(t, first, 3)
	assert.Equal(t, first, second)
	assert.Equal(t, "user-c", first[0].UserID)
	assert.Equal(t, "user-a", first[1].UserID)
	assert.Equal(t, "user-b", first[2].UserID)
}

func TestRankParticipantsTieBreaksByJoinTime(t *testing.T) {
	early := metricsFixture("late-alphabet-z", 0, 500, 10)
	late := metricsFixture("early-alphabet-a", time.Hour, 500, 10)

	standings, err := RankParticipants(models.RankByPnl, []ParticipantMetrics{late, early}, 0)
	require.NoError(t, err)

	require.Len(t, standings, 2)
	assert.Equal(t, "late-alphabet-z", standings[0].UserID, "earlier join wins the tie regardless of user ID order")
	assert.Equal(t, 1, standings[0].CurrentRank)
	assert.Equal(t, 2, standings[1].CurrentRank)
}

func TestRankParticipantsGapAndPercentOfLeader(t *testing.T) {
	leader := metricsFixture("leader", 0, 1000, 10)
	chaser := metricsFixture("chaser", time.Minute, 250, 10)

	standings, err := RankParticipants(models.RankByPnl, []ParticipantMetrics{leader, chaser}, 0)
	require.NoError(t, err)

	assert.Equal(t, 0.0, standings[0].GapToLeader)
	assert.Equal(t, 100.0, standings[0].PercentOfLeader)
	assert.Equal(t, 750.0, standings[1].GapToLeader)
	assert.Equal(t, 25.0, standings[1].PercentOfLeader)
}

func TestProbabilityScoreMonotonicByRank(t *testing.T) {
	ps := []ParticipantMetrics{
		metricsFixture("u1", 0, 900, 10),
		metricsFixture("u2", time.Minute, 600, 10),
		metricsFixture("u3", 2*time.Minute, 300, 10),
		metricsFixture("u4", 3*time.Minute, 100, 10),
	}
	standings, err := RankParticipants(models.RankByPnl, ps, 0)
	require.NoError(t, err)

	for i := 1; i < len(standings); i++ {
		assert.GreaterOrEqual(t, standings[i-1].ProbabilityScore, standings[i].ProbabilityScore,
			"rank %d must score at least as high as rank %d", i, i+1)
	}
	for _, s := range standings {
		assert.GreaterOrEqual(t, s.ProbabilityScore, 0.0)
		assert.LessOrEqual(t, s.ProbabilityScore, 100.0)
	}
}

func TestProbabilityScorePinsDisqualified(t *testing.T) {
	dq := metricsFixture("dq-user", 0, 5000, 10)
	dq.Status = models.ParticipantDisqualified
	active := metricsFixture("active-user", time.Minute, 100, 10)

	standings, err := RankParticipants(models.RankByPnl, []ParticipantMetrics{dq, active}, 0)
	require.NoError(t, err)

	for _, s := range standings {
		if s.UserID == "dq-user" {
			assert.Equal(t, disqualifiedScoreBand, s.ProbabilityScore)
		} else {
			assert.Greater(t, s.ProbabilityScore, disqualifiedScoreBand)
		}
	}
}

func TestRankParticipantsMinimumTradesFlag(t *testing.T) {
	grinder := metricsFixture("grinder", 0, 100, 20)
	tourist := metricsFixture("tourist", time.Minute, 900, 2)

	standings, err := RankParticipants(models.RankByPnl, []ParticipantMetrics{grinder, tourist}, 5)
	require.NoError(t, err)

	// tourist still ranks first by metric but is flagged ineligible
	assert.Equal(t, "tourist", standings[0].UserID)
	assert.False(t, standings[0].MeetsMinimumTrades)
	assert.True(t, standings[1].MeetsMinimumTrades)
}

func TestRankParticipantsEmptySet(t *testing.T) {
	standings, err := RankParticipants(models.RankByPnl, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, standings)
}

func TestRankParticipantsInfLeader(t *testing.T) {
	perfect := metricsFixture("perfect", 0, 500, 10)
	perfect.GrossProfit = 500
	perfect.GrossLoss = 0
	mortal := metricsFixture("mortal", time.Minute, 200, 10)
	mortal.GrossProfit = 400
	mortal.GrossLoss = 200

	standings, err := RankParticipants(models.RankByProfitFactor, []ParticipantMetrics{mortal, perfect}, 0)
	require.NoError(t, err)

	assert.Equal(t, "perfect", standings[0].UserID)
	assert.Equal(t, 100.0, standings[0].PercentOfLeader)
	assert.Equal(t, 0.0, standings[1].PercentOfLeader, "finite metric against an infinite leader")
	assert.True(t, math.IsInf(standings[1].GapToLeader, 1))
}
