package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/trackflow/trackflow/internal/app/model"
	"github.com/trackflow/trackflow/internal/app/repository"
	infraprometheus "github.com/trackflow/trackflow/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	// Sizing for the seen-click-id bloom prefilter.
	bloomExpectedClicks  = 1_000_000
	bloomFalsePositiveRt = 0.01

	uniquenessWindow = 24 * time.Hour
)

// RecordClickInput carries the tracking-link parameters and request context
// for one click.
type RecordClickInput struct {
	OfferID     string
	AffiliateID string
	Signature   string
	Sub1        string
	Sub2        string
	Sub3        string
	Sub4        string
	Sub5        string
	IP          string
	UserAgent   string
	Country     string
	Referrer    string
	PlacementID uint
}

// ClickService validates and persists clicks exactly once and resolves their
// redirect target.
type ClickService struct {
	logger   *zap.Logger
	offers   repository.OfferRepository
	clicks   repository.ClickRepository
	scorer   *FraudScorer
	resolver *RuleResolver
	velocity VelocityStore

	// seen prefilters duplicate lookups: when the filter reports the id as
	// definitely new to this process, the replay query is skipped. It is a
	// fast path only; cross-instance replays are caught by the conflict
	// check on insert.
	seenMu sync.Mutex
	seen   *bloom.BloomFilter
}

// NewClickService wires the click recorder with its collaborators.
func NewClickService(
	logger *zap.Logger,
	offers repository.OfferRepository,
	clicks repository.ClickRepository,
	scorer *FraudScorer,
	resolver *RuleResolver,
	velocity VelocityStore,
) *ClickService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickService{
		logger:   logger,
		offers:   offers,
		clicks:   clicks,
		scorer:   scorer,
		resolver: resolver,
		velocity: velocity,
		seen:     bloom.NewWithEstimates(bloomExpectedClicks, bloomFalsePositiveRt),
	}
}

// RecordClick runs the full click pipeline: parameter validation, signature
// verification, idempotent replay, fraud scoring, persistence, offer hit
// counting, and redirect resolution. Replaying an already-recorded click id
// returns the originally resolved redirect target without a second row.
func (s *ClickService) RecordClick(ctx context.Context, clickID string, in RecordClickInput) (*model.Click, error) {
	if clickID == "" || in.OfferID == "" || in.AffiliateID == "" || in.Signature == "" {
		return nil, fmt.Errorf("%w: click id, offer id, affiliate id, and hash are required", ErrValidation)
	}

	offer, err := s.offers.GetByID(ctx, in.OfferID)
	if err != nil {
		return nil, fmt.Errorf("record click: %w", err)
	}
	if !offer.IsActive() {
		return nil, fmt.Errorf("record click: %w", repository.ErrOfferNotFound)
	}

	if !VerifyLink(offer.ID, in.AffiliateID, clickID, offer.Secret, in.Signature) {
		return nil, fmt.Errorf("record click: %w", ErrSignature)
	}

	if existing := s.replay(ctx, clickID); existing != nil {
		return existing, nil
	}

	fraud := s.scorer.Score(ctx, ClickContext{
		IP:          in.IP,
		UserAgent:   in.UserAgent,
		Referrer:    in.Referrer,
		OfferID:     in.OfferID,
		AffiliateID: in.AffiliateID,
	})

	now := time.Now()
	click := &model.Click{
		ID:           clickID,
		OfferID:      offer.ID,
		AffiliateID:  in.AffiliateID,
		PlacementID:  in.PlacementID,
		IP:           in.IP,
		UserAgent:    in.UserAgent,
		Country:      in.Country,
		Referrer:     in.Referrer,
		Sub1:         in.Sub1,
		Sub2:         in.Sub2,
		Sub3:         in.Sub3,
		Sub4:         in.Sub4,
		Sub5:         in.Sub5,
		Status:       model.ClickStatusClicked,
		RedirectURL:  s.resolver.Resolve(offer, in.Country, now),
		FraudScore:   fraud.Score,
		FraudReasons: fraud.Reasons,
		IsUnique:     s.isUnique(ctx, offer.ID, in.IP),
		IsFraud:      fraud.IsFraud,
		ExpiresAt:    now.AddDate(0, 0, offer.ConversionWindowDays),
	}

	inserted, err := s.clicks.Create(ctx, click)
	if err != nil {
		return nil, fmt.Errorf("record click: %w", err)
	}
	s.remember(clickID)
	if !inserted {
		// Another instance (or a racing request) recorded this id first; the
		// bloom filter only sees local traffic, so the insert result is the
		// authoritative replay signal. Return the stored row so the caller
		// gets the originally resolved redirect.
		existing, err := s.clicks.GetByID(ctx, clickID)
		if err != nil {
			return nil, fmt.Errorf("record click: load replayed click: %w", err)
		}
		return existing, nil
	}
	infraprometheus.ClicksTotal.Inc()

	if fraud.Score > model.FraudThreshold {
		infraprometheus.FraudFlaggedTotal.Inc()
		signal := &model.FraudSignal{
			ClickID: clickID,
			Score:   fraud.Score,
			Reasons: fraud.Reasons,
		}
		if err := s.clicks.CreateFraudSignal(ctx, signal); err != nil {
			s.logger.Error("failed to record fraud signal",
				zap.String("click_id", clickID), zap.Error(err))
		}
	}

	if err := s.offers.IncrementHits(ctx, offer.ID, 1); err != nil {
		s.logger.Error("failed to increment offer hits",
			zap.String("offer_id", offer.ID), zap.Error(err))
	}

	return click, nil
}

// replay returns the existing click when the id was already recorded.
func (s *ClickService) replay(ctx context.Context, clickID string) *model.Click {
	s.seenMu.Lock()
	maybeSeen := s.seen.TestString(clickID)
	s.seenMu.Unlock()
	if !maybeSeen {
		return nil
	}

	existing, err := s.clicks.GetByID(ctx, clickID)
	if err != nil {
		return nil
	}
	return existing
}

func (s *ClickService) remember(clickID string) {
	s.seenMu.Lock()
	s.seen.AddString(clickID)
	s.seenMu.Unlock()
}

func (s *ClickService) isUnique(ctx context.Context, offerID, ip string) bool {
	if s.velocity == nil {
		return true
	}
	count, err := s.velocity.IncrWindow(ctx, fmt.Sprintf("uniq:%s:%s", offerID, ip), uniquenessWindow)
	if err != nil {
		return true
	}
	return count <= 1
}
