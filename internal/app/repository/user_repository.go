package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trackflow/trackflow/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound signals that the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository defines the data access contract for publisher accounts and
// the points ledger.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	CreditPoints(ctx context.Context, userID uint, delta float64) error
	AppendPointsTransaction(ctx context.Context, tx *model.PointsTransaction) error
}

type userRepository struct {
	db   *gorm.DB
	pool *pgxpool.Pool
}

// NewUserRepository returns a repository backed by GORM for row access and
// pgx for the atomic balance increment.
func NewUserRepository(db *gorm.DB, pool *pgxpool.Pool) UserRepository {
	return &userRepository{db: db, pool: pool}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreditPoints applies an increment-by-delta at the storage layer; concurrent
// forwards for the same user must never lose an increment.
func (r *userRepository) CreditPoints(ctx context.Context, userID uint, delta float64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET points = points + $1, updated_at = now() WHERE id = $2`,
		delta, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepository) AppendPointsTransaction(ctx context.Context, tx *model.PointsTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}
