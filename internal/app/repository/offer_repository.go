package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trackflow/trackflow/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrOfferNotFound signals that the requested offer does not exist.
	ErrOfferNotFound = errors.New("offer not found")
	// ErrRulePriorityTaken signals a smart-rule priority collision on an offer.
	ErrRulePriorityTaken = errors.New("smart rule priority already taken")
)

// OfferRepository defines the data access contract for offers and their
// smart-rule configuration.
type OfferRepository interface {
	Create(ctx context.Context, offer *model.Offer) error
	GetByID(ctx context.Context, id string) (*model.Offer, error)
	IncrementHits(ctx context.Context, id string, delta int64) error
	AddSmartRule(ctx context.Context, rule *model.SmartRule) error
	ActivePromoCode(ctx context.Context, offerID string) (*model.PromoCode, error)
}

type offerRepository struct {
	db   *gorm.DB
	pool *pgxpool.Pool
}

// NewOfferRepository returns a GORM-backed OfferRepository; the pgx pool is
// used for atomic counter updates.
func NewOfferRepository(db *gorm.DB, pool *pgxpool.Pool) OfferRepository {
	return &offerRepository{db: db, pool: pool}
}

func (r *offerRepository) Create(ctx context.Context, offer *model.Offer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

func (r *offerRepository) GetByID(ctx context.Context, id string) (*model.Offer, error) {
	var offer model.Offer
	err := r.db.WithContext(ctx).
		Preload("Schedule").
		Preload("SmartRules").
		Where("id = ?", id).
		First(&offer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	return &offer, nil
}

// IncrementHits bumps the offer hit counter atomically so concurrent click
// recorders never lose an increment.
func (r *offerRepository) IncrementHits(ctx context.Context, id string, delta int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE offers SET hit_count = hit_count + $1, updated_at = now() WHERE id = $2`,
		delta, id)
	return err
}

func (r *offerRepository) AddSmartRule(ctx context.Context, rule *model.SmartRule) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.SmartRule{}).
		Where("offer_id = ? AND priority = ?", rule.OfferID, rule.Priority).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrRulePriorityTaken
	}
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *offerRepository) ActivePromoCode(ctx context.Context, offerID string) (*model.PromoCode, error) {
	var code model.PromoCode
	err := r.db.WithContext(ctx).
		Where("offer_id = ? AND active = ?", offerID, true).
		Order("created_at DESC").
		First(&code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &code, nil
}
