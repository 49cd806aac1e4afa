package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/trackflow/trackflow/internal/app/model"
	"github.com/trackflow/trackflow/internal/app/repository"
)

// AddSmartRuleInput captures the fields of a new smart rule. Priorities are
// unique per offer; 1 is the highest.
type AddSmartRuleInput struct {
	OfferID  string   `validate:"required"`
	Type     string   `validate:"required,oneof=geo backup"`
	Priority int      `validate:"required,min=1"`
	GeoList  []string `validate:"max=50"`
	URL      string   `validate:"required,url"`
}

// OfferService covers the authoring-side checks this core owns: smart-rule
// validation. Offer CRUD itself belongs to the surrounding application.
type OfferService struct {
	offers   repository.OfferRepository
	validate *validator.Validate
}

// NewOfferService creates the offer authoring service.
func NewOfferService(offers repository.OfferRepository) *OfferService {
	return &OfferService{
		offers:   offers,
		validate: validator.New(),
	}
}

// AddSmartRule validates and stores a smart rule, rejecting duplicate
// priorities on the same offer.
func (s *OfferService) AddSmartRule(ctx context.Context, in AddSmartRuleInput) (*model.SmartRule, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if _, err := s.offers.GetByID(ctx, in.OfferID); err != nil {
		return nil, fmt.Errorf("add smart rule: %w", err)
	}

	rule := &model.SmartRule{
		OfferID:  in.OfferID,
		Type:     in.Type,
		Priority: in.Priority,
		GeoList:  model.StringList(in.GeoList),
		URL:      in.URL,
		Active:   true,
	}
	if err := s.offers.AddSmartRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("add smart rule: %w", err)
	}
	return rule, nil
}
