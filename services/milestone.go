package services

import (
	"fmt"
	"log"

	"etf-invest-system/models"

	"gorm.io/gorm"
)

// Milestone pairs a lifetime-deposit threshold with its one-time bonus,
// paid in ETF tokens.
type Milestone struct {
	ThresholdUSD float64
	BonusTokens  float64
}

// DepositMilestones is the authoritative bonus table. A stale client-side
// table with inflated bonuses circulated at one point; this one is the
// resolved source of truth (see DESIGN.md).
var DepositMilestones = []Milestone{
	{ThresholdUSD: 1000, BonusTokens: 10},
	{ThresholdUSD: 5000, BonusTokens: 50},
	{ThresholdUSD: 10000, BonusTokens: 150},
	{ThresholdUSD: 50000, BonusTokens: 500},
}

// LoyaltyPointsPerToken converts a milestone bonus into loyalty points.
const LoyaltyPointsPerToken = 10

// CrossedMilestones returns every milestone t with previousTotal < t <= newTotal.
// A single large deposit can cross several thresholds at once; each threshold
// fires exactly once over an account's lifetime because totals never decrease.
func CrossedMilestones(previousTotal, newTotal float64) ([]Milestone, error) {
	if previousTotal < 0 {
		return nil, fmt.Errorf("previous total cannot be negative")
	}
	if newTotal <= previousTotal {
		return nil, fmt.Errorf("new total must exceed previous total")
	}

	var crossed []Milestone
	for _, m := range DepositMilestones {
		if previousTotal < m.ThresholdUSD && m.ThresholdUSD <= newTotal {
			crossed = append(crossed, m)
		}
	}
	return crossed, nil
}

// applyMilestones grants the crossed milestones inside the caller's deposit
// transaction: one auto-claimed Incentive per threshold, ETF tokens and
// loyalty points credited to the portfolio. The portfolio row is mutated but
// not saved here; the caller persists it with the rest of the deposit.
func applyMilestones(tx *gorm.DB, port *models.Portfolio, previousTotal, newTotal float64) ([]models.Incentive, error) {
	crossed, err := CrossedMilestones(previousTotal, newTotal)
	if err != nil {
		return nil, err
	}

	var granted []models.Incentive
	for _, m := range crossed {
		points := int64(m.BonusTokens) * LoyaltyPointsPerToken
		inc := models.Incentive{
			UserID:      port.UserID,
			Type:        models.IncentiveTypeMilestoneBonus,
			Title:       fmt.Sprintf("Deposit milestone $%.0f reached", m.ThresholdUSD),
			Description: fmt.Sprintf("Lifetime deposits crossed $%.0f", m.ThresholdUSD),
			Amount:      m.BonusTokens,
			Points:      points,
			Claimed:     true, // auto-granted
		}
		if err := tx.Create(&inc).Error; err != nil {
			return nil, err
		}

		port.ETFTokenBalance += m.BonusTokens
		port.LoyaltyPoints += points
		granted = append(granted, inc)

		log.Printf("🏆 Milestone granted: user=%s threshold=$%.0f bonus=%.0f ETF", port.UserID, m.ThresholdUSD, m.BonusTokens)
	}
	return granted, nil
}
