package repository

import (
	"context"
	"errors"

	"github.com/trackflow/trackflow/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrPartnerNotFound signals an unknown inbound partner key.
	ErrPartnerNotFound = errors.New("partner not found")
	// ErrPlacementNotFound signals that the requested placement does not exist.
	ErrPlacementNotFound = errors.New("placement not found")
)

// InboundRepository defines the data access contract for inbound postback
// events, forwarded records, and partner/placement resolution.
type InboundRepository interface {
	CreateEvent(ctx context.Context, event *model.InboundPostbackEvent) error
	CreateForwardedRecord(ctx context.Context, record *model.ForwardedPostbackRecord) error
	GetPartnerByKey(ctx context.Context, key string) (*model.Partner, error)
	GetPlacement(ctx context.Context, id uint) (*model.Placement, error)
}

type inboundRepository struct {
	db *gorm.DB
}

// NewInboundRepository returns a GORM-backed InboundRepository.
func NewInboundRepository(db *gorm.DB) InboundRepository {
	return &inboundRepository{db: db}
}

func (r *inboundRepository) CreateEvent(ctx context.Context, event *model.InboundPostbackEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *inboundRepository) CreateForwardedRecord(ctx context.Context, record *model.ForwardedPostbackRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *inboundRepository) GetPartnerByKey(ctx context.Context, key string) (*model.Partner, error) {
	var partner model.Partner
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&partner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPartnerNotFound
		}
		return nil, err
	}
	return &partner, nil
}

func (r *inboundRepository) GetPlacement(ctx context.Context, id uint) (*model.Placement, error) {
	var placement model.Placement
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&placement).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlacementNotFound
		}
		return nil, err
	}
	return &placement, nil
}
