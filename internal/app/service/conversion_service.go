package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trackflow/trackflow/internal/app/model"
	"github.com/trackflow/trackflow/internal/app/repository"
	infraprometheus "github.com/trackflow/trackflow/internal/infra/prometheus"
	"go.uber.org/zap"
)

// JobPublisher pushes a freshly enqueued postback job onto the work queue so
// the dispatcher picks it up without waiting for the next sweep.
type JobPublisher interface {
	PublishJob(jobID string) error
}

// RecordConversionInput carries conversion parameters. Payout overrides the
// offer's configured payout only when set.
type RecordConversionInput struct {
	Payout        *float64
	Currency      string
	Status        string
	TransactionID string
	ExternalID    string
	IP            string
}

// ConversionService validates and persists conversions against prior clicks
// under the offer's duplicate policy, and triggers downstream payout work.
type ConversionService struct {
	logger      *zap.Logger
	offers      repository.OfferRepository
	clicks      repository.ClickRepository
	conversions repository.ConversionRepository
	jobs        repository.PostbackJobRepository
	bonus       BonusCalculator
	publisher   JobPublisher
}

// NewConversionService wires the conversion recorder with its collaborators.
func NewConversionService(
	logger *zap.Logger,
	offers repository.OfferRepository,
	clicks repository.ClickRepository,
	conversions repository.ConversionRepository,
	jobs repository.PostbackJobRepository,
	bonus BonusCalculator,
	publisher JobPublisher,
) *ConversionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversionService{
		logger:      logger,
		offers:      offers,
		clicks:      clicks,
		conversions: conversions,
		jobs:        jobs,
		bonus:       bonus,
		publisher:   publisher,
	}
}

// RecordConversion attaches a conversion to the click, enforcing the window
// boundary and the offer's duplicate policy, then enqueues the outbound
// postback job and applies any promo bonus.
func (s *ConversionService) RecordConversion(ctx context.Context, clickID string, in RecordConversionInput) (*model.Conversion, error) {
	if clickID == "" {
		return nil, fmt.Errorf("%w: click id is required", ErrValidation)
	}

	click, err := s.clicks.GetByID(ctx, clickID)
	if err != nil {
		return nil, fmt.Errorf("record conversion: %w", err)
	}

	// The window is fixed at click time and never extended; attempts at or
	// past the boundary instant are rejected.
	if !time.Now().Before(click.ExpiresAt) {
		return nil, fmt.Errorf("record conversion: %w", ErrWindowExpired)
	}

	offer, err := s.offers.GetByID(ctx, click.OfferID)
	if err != nil {
		return nil, fmt.Errorf("record conversion: %w", err)
	}

	ip := in.IP
	if ip == "" {
		ip = click.IP
	}

	if err := s.checkDuplicatePolicy(ctx, offer, clickID, ip); err != nil {
		return nil, err
	}

	payout := offer.Payout
	if in.Payout != nil {
		payout = *in.Payout
	}
	currency := in.Currency
	if currency == "" {
		currency = offer.Currency
	}
	status := in.Status
	if status == "" {
		status = model.ConversionStatusPending
	}

	bonus, err := s.bonus.Bonus(ctx, offer.ID, payout)
	if err != nil {
		s.logger.Error("bonus calculation failed, recording without bonus",
			zap.String("offer_id", offer.ID), zap.Error(err))
		bonus = 0
	}

	conversion := &model.Conversion{
		ID:            uuid.New().String(),
		ClickID:       clickID,
		OfferID:       offer.ID,
		AffiliateID:   click.AffiliateID,
		Payout:        payout,
		Bonus:         bonus,
		Currency:      currency,
		Status:        status,
		TransactionID: in.TransactionID,
		ExternalID:    in.ExternalID,
		IP:            ip,
	}

	if err := s.conversions.Create(ctx, conversion); err != nil {
		return nil, fmt.Errorf("record conversion: %w", err)
	}
	infraprometheus.ConversionsTotal.Inc()

	if err := s.clicks.MarkConverted(ctx, clickID); err != nil {
		s.logger.Error("failed to flip click status",
			zap.String("click_id", clickID), zap.Error(err))
	}

	if offer.PartnerPostbackURL != "" {
		s.enqueuePostback(ctx, offer, conversion)
	}

	return conversion, nil
}

func (s *ConversionService) checkDuplicatePolicy(ctx context.Context, offer *model.Offer, clickID, ip string) error {
	switch offer.DuplicatePolicy {
	case model.DuplicatePolicyAllow:
		return nil
	case model.DuplicatePolicyUnique:
		exists, err := s.conversions.ExistsOpenForOfferIP(ctx, offer.ID, ip)
		if err != nil {
			return fmt.Errorf("record conversion: %w", err)
		}
		if exists {
			return fmt.Errorf("record conversion: %w", ErrDuplicateConversion)
		}
		fallthrough
	default: // deny
		exists, err := s.conversions.ExistsOpenForClick(ctx, clickID)
		if err != nil {
			return fmt.Errorf("record conversion: %w", err)
		}
		if exists {
			return fmt.Errorf("record conversion: %w", ErrDuplicateConversion)
		}
		return nil
	}
}

// enqueuePostback persists the job row first, then nudges the work queue.
// A failed publish is harmless: the sweeper picks the row up on its next run.
func (s *ConversionService) enqueuePostback(ctx context.Context, offer *model.Offer, conversion *model.Conversion) {
	method := offer.PartnerPostbackMethod
	if method == "" {
		method = "GET"
	}
	job := &model.PostbackJob{
		ID:            uuid.New().String(),
		ConversionID:  conversion.ID,
		URL:           offer.PartnerPostbackURL,
		Method:        method,
		Status:        model.PostbackStatusPending,
		MaxAttempts:   model.PostbackMaxAttempts,
		NextAttemptAt: time.Now(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		s.logger.Error("failed to enqueue postback job",
			zap.String("conversion_id", conversion.ID), zap.Error(err))
		return
	}

	if s.publisher != nil {
		if err := s.publisher.PublishJob(job.ID); err != nil {
			s.logger.Warn("failed to publish postback job, sweeper will retry",
				zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}
