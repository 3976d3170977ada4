package services

import (
	"fmt"
	"math"

	"github.com/Mariosat15/Chatvot-sub008/models"
)

// IntegrityError marks a data-model invariant breach (prize percentages over
// 100%, double settlement). Settlement of the affected entity must hard-stop
// before any credit is applied.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string {
	return "settlement integrity violation: " + e.Reason
}

// Credit is a single ledger mutation the settlement decided on. The store
// layer applies it together with its paired WalletTransaction row.
type Credit struct {
	UserID      string
	Type        models.TransactionType
	Amount      float64
	Description string
}

// Notification is a side effect for the notification sink; applied by the
// effect runner after the money movement commits, best-effort.
type Notification struct {
	UserID string
	Event  string
	Vars   map[string]string
}

// XPAward is a progression side effect, same delivery semantics as
// notifications.
type XPAward struct {
	UserID    string
	Event     string
	FinalRank int
	Won       bool
}

// WinnerAlloc is one prize allocation of a settled competition.
type WinnerAlloc struct {
	UserID     string
	Rank       int
	Percentage float64
	Amount     float64
	FinalPnl   float64
}

// Disqualification records why a participant was excluded from prizes.
type Disqualification struct {
	UserID string
	Reason string
}

// Disqualify reasons.
const (
	DQReasonMinimumTrades = "minimum_trades"
	DQReasonLiquidated    = "liquidated"
)

// CompetitionOutcome is the pure result of settling (or cancelling) one
// competition: totals, allocations and the effects to perform. No I/O happens
// while building it.
type CompetitionOutcome struct {
	CompetitionID string
	Cancelled     bool

	Standings    []Standing
	Winners      []WinnerAlloc
	Disqualified []Disqualification

	TotalCollected float64
	PlatformFee    float64
	PaidOut        float64
	UnclaimedPool  float64
	TotalRefunds   float64

	Credits       []Credit
	Notifications []Notification
	XPAwards      []XPAward
}

// BuildCompetitionSettlement computes the full settlement for one expired
// competition from a single consistent participant snapshot.
//
// Money invariant: PaidOut + PlatformFee + UnclaimedPool == TotalCollected.
func BuildCompetitionSettlement(comp models.Competition, participants []models.CompetitionParticipant) (*CompetitionOutcome, error) {
	if comp.Status != models.CompetitionActive {
		return nil, &IntegrityError{Reason: fmt.Sprintf("competition %s is %s, not active", comp.ID, comp.Status)}
	}
	if err := validatePrizeDistribution(comp.PrizeDistribution); err != nil {
		return nil, err
	}

	out := &CompetitionOutcome{CompetitionID: comp.ID}

	// Partition the snapshot. Withdrawn users were refunded when they left and
	// take no further part in the accounting.
	var eligible []ParticipantMetrics
	pnlByUser := make(map[string]float64)
	for _, p := range participants {
		switch p.Status {
		case models.ParticipantWithdrawn:
			continue
		case models.ParticipantDisqualified:
			out.TotalCollected += comp.EntryFee
			reason := p.DisqualifyReason
			if reason == "" {
				reason = DQReasonLiquidated
			}
			out.Disqualified = append(out.Disqualified, Disqualification{UserID: p.UserID, Reason: reason})
		case models.ParticipantActive:
			out.TotalCollected += comp.EntryFee
			if p.TotalTrades < comp.MinimumTrades {
				out.Disqualified = append(out.Disqualified, Disqualification{UserID: p.UserID, Reason: DQReasonMinimumTrades})
				continue
			}
			eligible = append(eligible, competitionMetrics(p))
			pnlByUser[p.UserID] = p.Pnl
		default:
			return nil, &IntegrityError{Reason: fmt.Sprintf("participant %s has unknown status %q", p.ID, p.Status)}
		}
	}

	standings, err := RankParticipants(comp.RankingMethod, eligible, comp.MinimumTrades)
	if err != nil {
		return nil, err
	}
	out.Standings = standings

	// Platform fee comes off the top, independent of how many slots pay out.
	out.PlatformFee = round2(out.TotalCollected * comp.PlatformFeePercentage / 100)
	pool := out.TotalCollected - out.PlatformFee

	// Walk the distribution by rank. A slot with no eligible occupant — too few
	// finishers, or the slot's would-be holder was disqualified — flows into
	// the unclaimed pool, never to other ranks.
	byRank := make(map[int]Standing, len(standings))
	for _, s := range standings {
		byRank[s.CurrentRank] = s
	}
	for _, slot := range comp.PrizeDistribution {
		s, occupied := byRank[slot.Rank]
		if !occupied {
			continue
		}
		amount := round2(pool * slot.Percentage / 100)
		out.Winners = append(out.Winners, WinnerAlloc{
			UserID:     s.UserID,
			Rank:       slot.Rank,
			Percentage: slot.Percentage,
			Amount:     amount,
			FinalPnl:   pnlByUser[s.UserID],
		})
		out.PaidOut += amount
	}
	// Any share the distribution never allocated (< 100%) is unclaimed too.
	// Per-slot rounding can overshoot the pool by a cent; clamp rather than
	// record a negative pool.
	out.UnclaimedPool = round2(pool - out.PaidOut)
	if out.UnclaimedPool < 0 {
		out.UnclaimedPool = 0
	}

	buildCompetitionCredits(comp, out)
	buildCompetitionEffects(comp, out)
	return out, nil
}

// BuildCompetitionCancellation refunds every entered participant in full.
// No platform fee is retained: TotalRefunds must equal TotalCollected.
func BuildCompetitionCancellation(comp models.Competition, participants []models.CompetitionParticipant) (*CompetitionOutcome, error) {
	if comp.Status == models.CompetitionCompleted || comp.Status == models.CompetitionCancelled {
		return nil, &IntegrityError{Reason: fmt.Sprintf("competition %s already settled as %s", comp.ID, comp.Status)}
	}

	out := &CompetitionOutcome{CompetitionID: comp.ID, Cancelled: true}
	for _, p := range participants {
		if p.Status == models.ParticipantWithdrawn {
			continue
		}
		out.TotalCollected += comp.EntryFee
		out.TotalRefunds += comp.EntryFee
		out.Credits = append(out.Credits, Credit{
			UserID:      p.UserID,
			Type:        models.TxEntryRefund,
			Amount:      comp.EntryFee,
			Description: fmt.Sprintf("entry fee refund for cancelled competition %s", comp.Name),
		})
		out.Notifications = append(out.Notifications, Notification{
			UserID: p.UserID,
			Event:  "competition_cancelled",
			Vars: map[string]string{
				"competition_id":   comp.ID,
				"competition_name": comp.Name,
				"refund_amount":    fmt.Sprintf("%.2f", comp.EntryFee),
			},
		})
	}
	return out, nil
}

func buildCompetitionCredits(comp models.Competition, out *CompetitionOutcome) {
	for _, w := range out.Winners {
		out.Credits = append(out.Credits, Credit{
			UserID:      w.UserID,
			Type:        models.TxPrizePayout,
			Amount:      w.Amount,
			Description: fmt.Sprintf("rank %d prize in competition %s", w.Rank, comp.Name),
		})
	}
	if out.PlatformFee > 0 {
		out.Credits = append(out.Credits, Credit{
			UserID:      models.PlatformAccountID,
			Type:        models.TxPlatformFee,
			Amount:      out.PlatformFee,
			Description: fmt.Sprintf("platform fee for competition %s", comp.Name),
		})
	}
	if out.UnclaimedPool > 0 {
		out.Credits = append(out.Credits, Credit{
			UserID:      models.PlatformAccountID,
			Type:        models.TxUnclaimedPool,
			Amount:      out.UnclaimedPool,
			Description: fmt.Sprintf("unclaimed prize pool for competition %s", comp.Name),
		})
	}
}

func buildCompetitionEffects(comp models.Competition, out *CompetitionOutcome) {
	winners := make(map[string]WinnerAlloc, len(out.Winners))
	for _, w := range out.Winners {
		winners[w.UserID] = w
		event := "competition_podium"
		if w.Rank == 1 {
			event = "competition_won"
		}
		out.Notifications = append(out.Notifications, Notification{
			UserID: w.UserID,
			Event:  event,
			Vars: map[string]string{
				"competition_id":   comp.ID,
				"competition_name": comp.Name,
				"rank":             fmt.Sprintf("%d", w.Rank),
				"prize":            fmt.Sprintf("%.2f", w.Amount),
			},
		})
	}
	for _, d := range out.Disqualified {
		out.Notifications = append(out.Notifications, Notification{
			UserID: d.UserID,
			Event:  "competition_disqualified",
			Vars: map[string]string{
				"competition_id":   comp.ID,
				"competition_name": comp.Name,
				"reason":           d.Reason,
			},
		})
	}
	for _, s := range out.Standings {
		w, won := winners[s.UserID]
		award := XPAward{
			UserID:    s.UserID,
			Event:     fmt.Sprintf("competition_%s_rank_%d", comp.ID, s.CurrentRank),
			FinalRank: s.CurrentRank,
			Won:       won && w.Rank == 1,
		}
		out.XPAwards = append(out.XPAwards, award)
	}
}

// ChallengeOutcome is the pure settlement result for a 1v1 challenge.
type ChallengeOutcome struct {
	ChallengeID      string
	WinnerID         string
	LoserID          string
	IsTie            bool
	BothDisqualified bool

	WinnerPrize    float64
	TotalCollected float64
	PlatformFee    float64
	UnclaimedPool  float64
	TotalRefunds   float64

	Credits       []Credit
	Notifications []Notification
	XPAwards      []XPAward
}

// BuildChallengeSettlement settles an expired 1v1 challenge using the same
// metric extraction as competitions, compared head to head.
func BuildChallengeSettlement(ch models.Challenge, participants []models.ChallengeParticipant) (*ChallengeOutcome, error) {
	if ch.Status != models.ChallengeActive {
		return nil, &IntegrityError{Reason: fmt.Sprintf("challenge %s is %s, not active", ch.ID, ch.Status)}
	}
	if len(participants) != 2 {
		return nil, &IntegrityError{Reason: fmt.Sprintf("challenge %s has %d participants, want 2", ch.ID, len(participants))}
	}

	out := &ChallengeOutcome{
		ChallengeID:    ch.ID,
		TotalCollected: ch.EntryFee * 2,
	}

	a, b := participants[0], participants[1]
	aOK := challengeEligible(a, ch.MinimumTrades)
	bOK := challengeEligible(b, ch.MinimumTrades)

	switch {
	case !aOK && !bOK:
		// No winner: the pool minus the platform cut is unclaimed, credited to
		// the platform — never silently dropped.
		out.BothDisqualified = true
		out.PlatformFee = round2(out.TotalCollected * ch.PlatformFeePercentage / 100)
		out.UnclaimedPool = round2(out.TotalCollected - out.PlatformFee)
		if out.PlatformFee > 0 {
			out.Credits = append(out.Credits, Credit{
				UserID:      models.PlatformAccountID,
				Type:        models.TxPlatformFee,
				Amount:      out.PlatformFee,
				Description: fmt.Sprintf("platform fee for challenge %s", ch.ID),
			})
		}
		if out.UnclaimedPool > 0 {
			out.Credits = append(out.Credits, Credit{
				UserID:      models.PlatformAccountID,
				Type:        models.TxUnclaimedPool,
				Amount:      out.UnclaimedPool,
				Description: fmt.Sprintf("unclaimed pool for challenge %s (both disqualified)", ch.ID),
			})
		}
		for _, p := range participants {
			out.Notifications = append(out.Notifications, Notification{
				UserID: p.UserID,
				Event:  "challenge_disqualified",
				Vars:   map[string]string{"challenge_id": ch.ID},
			})
		}
		return out, nil

	case aOK && !bOK:
		return challengeWin(ch, out, a, b), nil
	case bOK && !aOK:
		return challengeWin(ch, out, b, a), nil
	}

	ma, err := MetricValue(ch.RankingMethod, challengeMetrics(a))
	if err != nil {
		return nil, err
	}
	mb, err := MetricValue(ch.RankingMethod, challengeMetrics(b))
	if err != nil {
		return nil, err
	}

	if ma == mb {
		// Exact tie with both eligible: full refund of both entry fees. A tie
		// is not a platform-revenue event.
		out.IsTie = true
		out.TotalRefunds = out.TotalCollected
		for _, p := range participants {
			out.Credits = append(out.Credits, Credit{
				UserID:      p.UserID,
				Type:        models.TxEntryRefund,
				Amount:      ch.EntryFee,
				Description: fmt.Sprintf("entry fee refund for tied challenge %s", ch.ID),
			})
			out.Notifications = append(out.Notifications, Notification{
				UserID: p.UserID,
				Event:  "challenge_tied",
				Vars:   map[string]string{"challenge_id": ch.ID, "refund": fmt.Sprintf("%.2f", ch.EntryFee)},
			})
		}
		return out, nil
	}

	if ma > mb {
		return challengeWin(ch, out, a, b), nil
	}
	return challengeWin(ch, out, b, a), nil
}

func challengeWin(ch models.Challenge, out *ChallengeOutcome, winner, loser models.ChallengeParticipant) *ChallengeOutcome {
	out.WinnerID = winner.UserID
	out.LoserID = loser.UserID
	out.PlatformFee = round2(out.TotalCollected * ch.PlatformFeePercentage / 100)
	out.WinnerPrize = round2(out.TotalCollected - out.PlatformFee)

	out.Credits = append(out.Credits, Credit{
		UserID:      winner.UserID,
		Type:        models.TxChallengePrize,
		Amount:      out.WinnerPrize,
		Description: fmt.Sprintf("challenge %s won against %s", ch.ID, loser.UserID),
	})
	if out.PlatformFee > 0 {
		out.Credits = append(out.Credits, Credit{
			UserID:      models.PlatformAccountID,
			Type:        models.TxPlatformFee,
			Amount:      out.PlatformFee,
			Description: fmt.Sprintf("platform fee for challenge %s", ch.ID),
		})
	}
	out.Notifications = append(out.Notifications,
		Notification{
			UserID: winner.UserID,
			Event:  "challenge_won",
			Vars:   map[string]string{"challenge_id": ch.ID, "prize": fmt.Sprintf("%.2f", out.WinnerPrize)},
		},
		Notification{
			UserID: loser.UserID,
			Event:  "challenge_lost",
			Vars:   map[string]string{"challenge_id": ch.ID},
		},
	)
	out.XPAwards = append(out.XPAwards,
		XPAward{UserID: winner.UserID, Event: fmt.Sprintf("challenge_%s_won", ch.ID), FinalRank: 1, Won: true},
		XPAward{UserID: loser.UserID, Event: fmt.Sprintf("challenge_%s_lost", ch.ID), FinalRank: 2},
	)
	return out
}

func challengeEligible(p models.ChallengeParticipant, minimumTrades int) bool {
	return p.Status != models.ParticipantDisqualified && p.TotalTrades >= minimumTrades
}

func competitionMetrics(p models.CompetitionParticipant) ParticipantMetrics {
	return ParticipantMetrics{
		UserID:          p.UserID,
		Status:          p.Status,
		JoinedAt:        p.JoinedAt,
		StartingCapital: p.StartingCapital,
		CurrentCapital:  p.CurrentCapital,
		Pnl:             p.Pnl,
		TotalTrades:     p.TotalTrades,
		WinningTrades:   p.WinningTrades,
		GrossProfit:     p.GrossProfit,
		GrossLoss:       p.GrossLoss,
	}
}

func challengeMetrics(p models.ChallengeParticipant) ParticipantMetrics {
	return ParticipantMetrics{
		UserID:          p.UserID,
		Status:          p.Status,
		JoinedAt:        p.JoinedAt,
		StartingCapital: p.StartingCapital,
		CurrentCapital:  p.CurrentCapital,
		Pnl:             p.Pnl,
		TotalTrades:     p.TotalTrades,
		WinningTrades:   p.WinningTrades,
		GrossProfit:     p.GrossProfit,
		GrossLoss:       p.GrossLoss,
	}
}

func validatePrizeDistribution(slots []models.PrizeSlot) error {
	var sum float64
	seen := make(map[int]bool, len(slots))
	for _, s := range slots {
		if s.Rank < 1 {
			return &IntegrityError{Reason: fmt.Sprintf("prize slot has rank %d, ranks are 1-based", s.Rank)}
		}
		if seen[s.Rank] {
			return &IntegrityError{Reason: fmt.Sprintf("prize distribution has duplicate slot for rank %d", s.Rank)}
		}
		seen[s.Rank] = true
		if s.Percentage < 0 {
			return &IntegrityError{Reason: fmt.Sprintf("prize slot for rank %d has negative percentage", s.Rank)}
		}
		sum += s.Percentage
	}
	if sum > 100+1e-9 {
		return &IntegrityError{Reason: fmt.Sprintf("prize distribution percentages sum to %.2f%%", sum)}
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
