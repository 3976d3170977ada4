package services

import (
	"testing"
	"time"

	"github.com/Mariosat15/Chatvot-sub008/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeCompetition() models.Competition {
	return models.Competition{
		ID:            "comp-1",
		Name:          "March Arena",
		Status:        models.CompetitionActive,
		RankingMethod: models.RankByPnl,
		EntryFee:      250,
		PrizeDistribution: []models.PrizeSlot{
			{Rank: 1, Percentage: 60},
			{Rank: 2, Percentage: 30},
			{Rank: 3, Percentage: 10},
		},
	}
}

func compParticipant(userID string, joinOffset time.Duration, pnl float64, trades int) models.CompetitionParticipant {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return models.CompetitionParticipant{
		ID:              "p-" + userID,
		CompetitionID:   "comp-1",
		UserID:          userID,
		Status:          models.ParticipantActive,
		JoinedAt:        base.Add(joinOffset),
		StartingCapital: 10000,
		CurrentCapital:  10000 + pnl,
		Pnl:             pnl,
		TotalTrades:     trades,
	}
}

func creditSum(credits []Credit) float64 {
	var sum float64
	for _, c := range credits {
		sum += c.Amount
	}
	return sum
}

func TestSettlementRefusesNonActiveCompetition(t *testing.T) {
	comp := activeCompetition()
	comp.Status = models.CompetitionCompleted

	_, err := BuildCompetitionSettlement(comp, nil)
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
}

func TestSettlementSecondRunEmitsNoCredits(t *testing.T) {
	comp := activeCompetition()
	participants := []models.CompetitionParticipant{
		compParticipant("u1", 0, 500, 5),
		compParticipant("u2", time.Minute, 100, 5),
	}

	first, err := BuildCompetitionSettlement(comp, participants)
	require.NoError(t, err)
	require.NotEmpty(t, first.Credits)

	// the committed settlement flipped the status; a re-entrant tick sees the
	// terminal state and must move no money and notify nobody
	comp.Status = models.CompetitionCompleted
	second, err := BuildCompetitionSettlement(comp, participants)

	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Nil(t, second)
}

func TestSettlementRejectsDuplicatePrizeRanks(t *testing.T) {
	comp := activeCompetition()
	comp.PrizeDistribution = []models.PrizeSlot{
		{Rank: 1, Percentage: 40},
		{Rank: 1, Percentage: 40},
	}

	_, err := BuildCompetitionSettlement(comp, []models.CompetitionParticipant{
		compParticipant("u1", 0, 100, 5),
	})
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
}

func TestSettlementUnclaimedPoolClampedAtZero(t *testing.T) {
	comp := activeCompetition()
	comp.EntryFee = 0.33
	comp.PrizeDistribution = []models.PrizeSlot{
		{Rank: 1, Percentage: 50},
		{Rank: 2, Percentage: 50},
	}

	// 3 × 0.33 = 0.99 collected; each 50% slot rounds 0.495 up to 0.50, so the
	// per-slot rounding overshoots the pool by a cent
	participants := []models.CompetitionParticipant{
		compParticipant("u1", 0, 500, 5),
		compParticipant("u2", time.Minute, 300, 5),
		compParticipant("u3", 2*time.Minute, 100, 5),
	}

	out, err := BuildCompetitionSettlement(comp, participants)
	require.NoError(t, err)

	assert.Equal(t, 1.0, out.PaidOut)
	assert.Equal(t, 0.0, out.UnclaimedPool, "rounding overshoot must clamp, never record a negative pool")
	assert.GreaterOrEqual(t, out.UnclaimedPool, 0.0)
}

func TestRound2RoundsNegativesToNearestCent(t *testing.T) {
	assert.Equal(t, -1.01, round2(-1.006))
	assert.Equal(t, -1.0, round2(-1.004))
	assert.Equal(t, 1.01, round2(1.006))
}

func TestSettlementRejectsOversubscribedDistribution(t *testing.T) {
	comp := activeCompetition()
	comp.PrizeDistribution = []models.PrizeSlot{
		{Rank: 1, Percentage: 70},
		{Rank: 2, Percentage: 40},
	}

	_, err := BuildCompetitionSettlement(comp, []models.CompetitionParticipant{
		compParticipant("u1", 0, 100, 5),
	})
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
}

func TestSettlementUnoccupiedSlotsFlowToUnclaimedPool(t *testing.T) {
	comp := activeCompetition()
	comp.MinimumTrades = 5

	// 4 entries × 250 = 1000 collected; only two participants traded enough,
	// so the rank-3 slot has no occupant.
	participants := []models.CompetitionParticipant{
		compParticipant("winner", 0, 900, 10),
		compParticipant("runner-up", time.Minute, 400, 10),
		compParticipant("idle-1", 2*time.Minute, 50, 1),
		compParticipant("idle-2", 3*time.Minute, 20, 0),
	}

	out, err := BuildCompetitionSettlement(comp, participants)
	require.NoError(t, err)

	assert.Equal(t, 1000.0, out.TotalCollected)
	require.Len(t, out.Winners, 2)
	assert.Equal(t, "winner", out.Winners[0].UserID)
	assert.Equal(t, 600.0, out.Winners[0].Amount)
	assert.Equal(t, "runner-up", out.Winners[1].UserID)
	assert.Equal(t, 300.0, out.Winners[1].Amount)
	assert.Equal(t, 100.0, out.UnclaimedPool, "the empty rank-3 slot must not be redistributed")

	require.Len(t, out.Disqualified, 2)
	for _, d := range out.Disqualified {
		assert.Equal(t, DQReasonMinimumTrades, d.Reason)
	}

	// conservation
	assert.InDelta(t, out.TotalCollected, out.PaidOut+out.PlatformFee+out.UnclaimedPool, 0.001)
	assert.InDelta(t, out.TotalCollected, creditSum(out.Credits), 0.001)
}

func TestSettlementPlatformFeeComesOffTheTop(t *testing.T) {
	comp := activeCompetition()
	comp.PlatformFeePercentage = 10
	comp.PrizeDistribution = []models.PrizeSlot{{Rank: 1, Percentage: 100}}

	participants := []models.CompetitionParticipant{
		compParticipant("u1", 0, 500, 5),
		compParticipant("u2", time.Minute, 100, 5),
		compParticipant("u3", 2*time.Minute, -50, 5),
		compParticipant("u4", 3*time.Minute, -200, 5),
	}

	out, err := BuildCompetitionSettlement(comp, participants)
	require.NoError(t, err)

	assert.Equal(t, 1000.0, out.TotalCollected)
	assert.Equal(t, 100.0, out.PlatformFee)
	require.Len(t, out.Winners, 1)
	assert.Equal(t, 900.0, out.Winners[0].Amount)
	assert.Equal(t, 0.0, out.UnclaimedPool)
	assert.InDelta(t, out.TotalCollected, out.PaidOut+out.PlatformFee+out.UnclaimedPool, 0.001)
}

func TestSettlementSkipsWithdrawnParticipants(t *testing.T) {
	comp := activeCompetition()
	comp.PrizeDistribution = []models.PrizeSlot{{Rank: 1, Percentage: 100}}

	gone := compParticipant("gone", 0, 700, 5)
	gone.Status = models.ParticipantWithdrawn
	participants := []models.CompetitionParticipant{
		gone,
		compParticipant("stayed", time.Minute, 100, 5),
	}

	out, err := BuildCompetitionSettlement(comp, participants)
	require.NoError(t, err)

	assert.Equal(t, 250.0, out.TotalCollected, "withdrawn entries were refunded at exit and count for nothing")
	require.Len(t, out.Winners, 1)
	assert.Equal(t, "stayed", out.Winners[0].UserID)
}

func TestSettlementAllDisqualifiedPaysNobody(t *testing.T) {
	comp := activeCompetition()
	comp.MinimumTrades = 5
	comp.PlatformFeePercentage = 20

	participants := []models.CompetitionParticipant{
		compParticipant("idle-1", 0, 50, 0),
		compParticipant("idle-2", time.Minute, -20, 1),
	}

	out, err := BuildCompetitionSettlement(comp, participants)
	require.NoError(t, err)

	assert.Empty(t, out.Winners)
	assert.Equal(t, 500.0, out.TotalCollected)
	assert.Equal(t, 100.0, out.PlatformFee)
	assert.Equal(t, 400.0, out.UnclaimedPool)
	assert.InDelta(t, out.TotalCollected, out.PaidOut+out.PlatformFee+out.UnclaimedPool, 0.001)
}

func TestCancellationRefundsEverythingWithoutFee(t *testing.T) {
	comp := activeCompetition()
	comp.PlatformFeePercentage = 15 // must be ignored on cancel

	participants := []models.CompetitionParticipant{
		compParticipant("u1", 0, 500, 5),
		compParticipant("u2", time.Minute, -300, 0),
	}

	out, err := BuildCompetitionCancellation(comp, participants)
	require.NoError(t, err)

	assert.True(t, out.Cancelled)
	assert.Equal(t, out.TotalCollected, out.TotalRefunds)
	assert.Equal(t, 0.0, out.PlatformFee)
	assert.Equal(t, 500.0, out.TotalRefunds)
	for _, c := range out.Credits {
		assert.Equal(t, models.TxEntryRefund, c.Type)
		assert.Equal(t, 250.0, c.Amount)
	}
}

func TestCancellationRefusesSettledCompetition(t *testing.T) {
	comp := activeCompetition()
	comp.Status = models.CompetitionCancelled

	_, err := BuildCompetitionCancellation(comp, nil)
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
}

// --- challenges ---

func activeChallenge() models.Challenge {
	return models.Challenge{
		ID:                    "duel-1",
		ChallengerID:          "alice",
		ChallengedID:          "bob",
		Status:                models.ChallengeActive,
		RankingMethod:         models.RankByPnl,
		EntryFee:              50,
		PlatformFeePercentage: 10,
	}
}

func chalParticipant(userID string, joinOffset time.Duration, pnl float64, trades int) models.ChallengeParticipant {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return models.ChallengeParticipant{
		ID:              "cp-" + userID,
		ChallengeID:     "duel-1",
		UserID:          userID,
		Status:          models.ParticipantActive,
		JoinedAt:        base.Add(joinOffset),
		StartingCapital: 10000,
		CurrentCapital:  10000 + pnl,
		Pnl:             pnl,
		TotalTrades:     trades,
	}
}

func TestChallengeSettlementRequiresTwoParticipants(t *testing.T) {
	_, err := BuildChallengeSettlement(activeChallenge(), []models.ChallengeParticipant{
		chalParticipant("alice", 0, 100, 3),
	})
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
}

func TestChallengeHigherMetricWins(t *testing.T) {
	out, err := BuildChallengeSettlement(activeChallenge(), []models.ChallengeParticipant{
		chalParticipant("alice", 0, 120, 3),
		chalParticipant("bob", time.Minute, 340, 3),
	})
	require.NoError(t, err)

	assert.Equal(t, "bob", out.WinnerID)
	assert.Equal(t, "alice", out.LoserID)
	assert.Equal(t, 100.0, out.TotalCollected)
	assert.Equal(t, 10.0, out.PlatformFee)
	assert.Equal(t, 90.0, out.WinnerPrize)
	assert.InDelta(t, out.TotalCollected, creditSum(out.Credits), 0.001)
}

func TestChallengeOnlyEligibleSideWins(t *testing.T) {
	ch := activeChallenge()
	ch.MinimumTrades = 3

	out, err := BuildChallengeSettlement(ch, []models.ChallengeParticipant{
		chalParticipant("alice", 0, 900, 1), // best pnl but too few trades
		chalParticipant("bob", time.Minute, -50, 5),
	})
	require.NoError(t, err)

	assert.Equal(t, "bob", out.WinnerID, "eligibility beats performance")
	assert.False(t, out.IsTie)
	assert.False(t, out.BothDisqualified)
}

func TestChallengeBothDisqualifiedUnclaimedPool(t *testing.T) {
	ch := activeChallenge()
	ch.MinimumTrades = 3

	out, err := BuildChallengeSettlement(ch, []models.ChallengeParticipant{
		chalParticipant("alice", 0, 100, 0),
		chalParticipant("bob", time.Minute, 200, 1),
	})
	require.NoError(t, err)

	assert.True(t, out.BothDisqualified)
	assert.Empty(t, out.WinnerID)
	assert.Equal(t, 10.0, out.PlatformFee)
	assert.Equal(t, 90.0, out.UnclaimedPool)

	// every cent lands in the platform account, none silently dropped
	assert.InDelta(t, out.TotalCollected, creditSum(out.Credits), 0.001)
	for _, c := range out.Credits {
		assert.Equal(t, models.PlatformAccountID, c.UserID)
	}
}

func TestChallengeBothDisqualifiedFullFeeOmitsZeroCredits(t *testing.T) {
	ch := activeChallenge()
	ch.MinimumTrades = 3
	ch.PlatformFeePercentage = 100 // entire pool is fee, unclaimed share is zero

	out, err := BuildChallengeSettlement(ch, []models.ChallengeParticipant{
		chalParticipant("alice", 0, 100, 0),
		chalParticipant("bob", time.Minute, 200, 1),
	})
	require.NoError(t, err)

	assert.True(t, out.BothDisqualified)
	assert.Equal(t, 100.0, out.PlatformFee)
	assert.Equal(t, 0.0, out.UnclaimedPool)
	require.Len(t, out.Credits, 1, "a zero-amount unclaimed credit must not hit the ledger")
	assert.Equal(t, models.TxPlatformFee, out.Credits[0].Type)
}

func TestChallengeExactTieRefundsBoth(t *testing.T) {
	out, err := BuildChallengeSettlement(activeChallenge(), []models.ChallengeParticipant{
		chalParticipant("alice", 0, 150, 3),
		chalParticipant("bob", time.Minute, 150, 3),
	})
	require.NoError(t, err)

	assert.True(t, out.IsTie)
	assert.Empty(t, out.WinnerID)
	assert.Equal(t, 0.0, out.PlatformFee, "a tie is not a revenue event")
	assert.Equal(t, 100.0, out.TotalRefunds)
	require.Len(t, out.Credits, 2)
	for _, c := range out.Credits {
		assert.Equal(t, models.TxEntryRefund, c.Type)
		assert.Equal(t, 50.0, c.Amount)
	}
}

func TestChallengeRefusesNonActive(t *testing.T) {
	ch := activeChallenge()
	ch.Status = models.ChallengePending

	_, err := BuildChallengeSettlement(ch, []models.ChallengeParticipant{
		chalParticipant("alice", 0, 100, 3),
		chalParticipant("bob", time.Minute, 200, 3),
	})
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
}
