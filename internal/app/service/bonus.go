package service

import (
	"context"
	"fmt"

	"github.com/trackflow/trackflow/internal/app/model"
	"github.com/trackflow/trackflow/internal/app/repository"
)

// BonusCalculator computes the promotional bonus to attach on top of a base
// payout. The surrounding application owns promo-code bookkeeping; this core
// only reads the active assignment.
type BonusCalculator interface {
	Bonus(ctx context.Context, offerID string, base float64) (float64, error)
}

type promoBonusCalculator struct {
	offers repository.OfferRepository
}

// NewPromoBonusCalculator returns a calculator over the offer's active promo
// code, if any.
func NewPromoBonusCalculator(offers repository.OfferRepository) BonusCalculator {
	return &promoBonusCalculator{offers: offers}
}

func (c *promoBonusCalculator) Bonus(ctx context.Context, offerID string, base float64) (float64, error) {
	code, err := c.offers.ActivePromoCode(ctx, offerID)
	if err != nil {
		return 0, fmt.Errorf("load promo code: %w", err)
	}
	if code == nil {
		return 0, nil
	}

	switch code.BonusType {
	case model.BonusTypePercent:
		return base * code.BonusValue / 100, nil
	case model.BonusTypeFixed:
		return code.BonusValue, nil
	default:
		return 0, fmt.Errorf("unknown bonus type %q", code.BonusType)
	}
}
