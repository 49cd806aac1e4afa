package repository

import (
	"context"
	"errors"

	"github.com/trackflow/trackflow/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrConversionNotFound signals that the requested conversion does not exist.
	ErrConversionNotFound = errors.New("conversion not found")
)

// ConversionRepository defines the data access contract for conversions.
type ConversionRepository interface {
	Create(ctx context.Context, conversion *model.Conversion) error
	GetByID(ctx context.Context, id string) (*model.Conversion, error)
	ExistsOpenForClick(ctx context.Context, clickID string) (bool, error)
	ExistsOpenForOfferIP(ctx context.Context, offerID, ip string) (bool, error)
}

type conversionRepository struct {
	db *gorm.DB
}

// NewConversionRepository returns a GORM-backed ConversionRepository.
func NewConversionRepository(db *gorm.DB) ConversionRepository {
	return &conversionRepository{db: db}
}

func (r *conversionRepository) Create(ctx context.Context, conversion *model.Conversion) error {
	return r.db.WithContext(ctx).Create(conversion).Error
}

func (r *conversionRepository) GetByID(ctx context.Context, id string) (*model.Conversion, error) {
	var conversion model.Conversion
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&conversion).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversionNotFound
		}
		return nil, err
	}
	return &conversion, nil
}

// ExistsOpenForClick reports whether a pending or approved conversion is
// already recorded for the click (deny duplicate policy).
func (r *conversionRepository) ExistsOpenForClick(ctx context.Context, clickID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Conversion{}).
		Where("click_id = ? AND status IN ?", clickID,
			[]string{model.ConversionStatusPending, model.ConversionStatusApproved}).
		Count(&count).Error
	return count > 0, err
}

// ExistsOpenForOfferIP reports whether a pending or approved conversion is
// recorded for the same offer and ip regardless of click (unique policy).
func (r *conversionRepository) ExistsOpenForOfferIP(ctx context.Context, offerID, ip string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Conversion{}).
		Where("offer_id = ? AND ip = ? AND status IN ?", offerID, ip,
			[]string{model.ConversionStatusPending, model.ConversionStatusApproved}).
		Count(&count).Error
	return count > 0, err
}
