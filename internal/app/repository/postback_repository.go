package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trackflow/trackflow/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrJobNotFound signals that the requested postback job does not exist.
	ErrJobNotFound = errors.New("postback job not found")
)

// PostbackJobRepository defines the data access contract for the outbound
// postback queue and its delivery audit trail.
type PostbackJobRepository interface {
	Create(ctx context.Context, job *model.PostbackJob) error
	GetByID(ctx context.Context, id string) (*model.PostbackJob, error)
	LeaseDue(ctx context.Context, limit int, lease time.Duration) ([]string, error)
	MarkSent(ctx context.Context, id string, attempts int) error
	ScheduleRetry(ctx context.Context, id string, attempts int, nextAttemptAt time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int) error
	AppendDeliveryLog(ctx context.Context, log *model.DeliveryLog) error
}

type postbackJobRepository struct {
	db   *gorm.DB
	pool *pgxpool.Pool
}

// NewPostbackJobRepository returns a repository backed by GORM for row
// access and pgx for leased pickup.
func NewPostbackJobRepository(db *gorm.DB, pool *pgxpool.Pool) PostbackJobRepository {
	return &postbackJobRepository{db: db, pool: pool}
}

func (r *postbackJobRepository) Create(ctx context.Context, job *model.PostbackJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *postbackJobRepository) GetByID(ctx context.Context, id string) (*model.PostbackJob, error) {
	var job model.PostbackJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// LeaseDue claims up to limit due pending jobs and pushes their next-attempt
// time forward by the lease duration, so concurrent sweepers never pick the
// same job twice. Returns the claimed job ids.
func (r *postbackJobRepository) LeaseDue(ctx context.Context, limit int, lease time.Duration) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE postback_queue
		SET next_attempt_at = now() + $2::interval, updated_at = now()
		WHERE id IN (
			SELECT id FROM postback_queue
			WHERE status = 'pending' AND attempts < max_attempts AND next_attempt_at <= now()
			ORDER BY next_attempt_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id`,
		limit, lease.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postbackJobRepository) MarkSent(ctx context.Context, id string, attempts int) error {
	return r.db.WithContext(ctx).Model(&model.PostbackJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":   model.PostbackStatusSent,
			"attempts": attempts,
		}).Error
}

func (r *postbackJobRepository) ScheduleRetry(ctx context.Context, id string, attempts int, nextAttemptAt time.Time) error {
	return r.db.WithContext(ctx).Model(&model.PostbackJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          model.PostbackStatusPending,
			"attempts":        attempts,
			"next_attempt_at": nextAttemptAt,
		}).Error
}

func (r *postbackJobRepository) MarkFailed(ctx context.Context, id string, attempts int) error {
	return r.db.WithContext(ctx).Model(&model.PostbackJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":   model.PostbackStatusFailed,
			"attempts": attempts,
		}).Error
}

func (r *postbackJobRepository) AppendDeliveryLog(ctx context.Context, log *model.DeliveryLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}
