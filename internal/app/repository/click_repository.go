package repository

import (
	"context"
	"errors"
	"time"

	"github.com/trackflow/trackflow/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrClickNotFound signals that the requested click does not exist.
	ErrClickNotFound = errors.New("click not found")
)

// ClickRepository defines the data access contract for clicks and fraud
// signals.
type ClickRepository interface {
	Create(ctx context.Context, click *model.Click) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Click, error)
	MarkConverted(ctx context.Context, id string) error
	LatestForPlacement(ctx context.Context, placementID uint, since time.Time) (*model.Click, error)
	CreateFraudSignal(ctx context.Context, signal *model.FraudSignal) error
}

type clickRepository struct {
	db *gorm.DB
}

// NewClickRepository returns a GORM-backed ClickRepository.
func NewClickRepository(db *gorm.DB) ClickRepository {
	return &clickRepository{db: db}
}

// Create inserts the click; concurrent duplicate requests for the same click
// id resolve to a single row via DO NOTHING on conflict. The boolean reports
// whether this call actually inserted the row, so callers can tell a fresh
// click from a replay regardless of which instance recorded it first.
func (r *clickRepository) Create(ctx context.Context, click *model.Click) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(click)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *clickRepository) GetByID(ctx context.Context, id string) (*model.Click, error) {
	var click model.Click
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&click).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClickNotFound
		}
		return nil, err
	}
	return &click, nil
}

// MarkConverted flips the click status; this is the only mutation a click
// ever receives.
func (r *clickRepository) MarkConverted(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&model.Click{}).
		Where("id = ?", id).
		Update("status", model.ClickStatusConverted)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrClickNotFound
	}
	return nil
}

// LatestForPlacement is the degraded attribution path for inbound postbacks
// that arrive without a click id.
func (r *clickRepository) LatestForPlacement(ctx context.Context, placementID uint, since time.Time) (*model.Click, error) {
	var click model.Click
	err := r.db.WithContext(ctx).
		Where("placement_id = ? AND created_at >= ?", placementID, since).
		Order("created_at DESC").
		First(&click).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClickNotFound
		}
		return nil, err
	}
	return &click, nil
}

func (r *clickRepository) CreateFraudSignal(ctx context.Context, signal *model.FraudSignal) error {
	return r.db.WithContext(ctx).Create(signal).Error
}
