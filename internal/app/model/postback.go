package model

import "time"

// PostbackJob statuses.
const (
	PostbackStatusPending = "pending"
	PostbackStatusSent    = "sent"
	PostbackStatusFailed  = "failed"
)

// PostbackMaxAttempts bounds outbound delivery retries.
const PostbackMaxAttempts = 3

// JetStream wiring for the outbound postback work queue.
const (
	PostbackStreamName     = "POSTBACKS"
	PostbackStreamSubject  = "postbacks.due"
	PostbackConsumerName   = "postback-sender"
	PostbackStreamMaxBytes = 1024 * 1024 * 50 // 50MB
)

// PostbackJob is a durable outbound-notification queue entry. The sweeper
// and sender mutate it along the pending → sent | failed state machine.
type PostbackJob struct {
	ID            string    `db:"id" gorm:"primaryKey;size:64"`
	ConversionID  string    `db:"conversion_id" gorm:"size:64;not null;index"`
	URL           string    `db:"url" gorm:"type:text;not null"`
	Method        string    `db:"method" gorm:"size:8;not null;default:GET"`
	Status        string    `db:"status" gorm:"size:16;not null;default:pending;index"`
	Attempts      int       `db:"attempts" gorm:"not null;default:0"`
	MaxAttempts   int       `db:"max_attempts" gorm:"not null;default:3"`
	NextAttemptAt time.Time `db:"next_attempt_at" gorm:"not null;index"`
	CreatedAt     time.Time `db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `db:"updated_at" gorm:"autoUpdateTime"`
}

// TableName keeps the historical table name.
func (PostbackJob) TableName() string {
	return "postback_queue"
}

// DeliveryLog is the append-only audit trail of outbound send attempts.
type DeliveryLog struct {
	ID           uint      `db:"id" gorm:"primaryKey"`
	JobID        string    `db:"job_id" gorm:"size:64;not null;index"`
	Attempt      int       `db:"attempt" gorm:"not null"`
	ResponseCode *int      `db:"response_code"`
	ResponseBody string    `db:"response_body" gorm:"type:text"`
	Error        string    `db:"error" gorm:"type:text"`
	CreatedAt    time.Time `db:"created_at" gorm:"autoCreateTime"`
}

// TableName keeps the historical table name.
func (DeliveryLog) TableName() string {
	return "postback_logs"
}

// InboundPostbackEvent is the append-only raw receipt of every external
// postback call, written before any attribution is attempted.
type InboundPostbackEvent struct {
	ID         string    `db:"id" gorm:"primaryKey;size:64"`
	PartnerKey string    `db:"partner_key" gorm:"size:64;index"`
	Method     string    `db:"method" gorm:"size:8"`
	Params     ParamMap  `db:"params" gorm:"type:jsonb"`
	IP         string    `db:"ip" gorm:"size:64"`
	CreatedAt  time.Time `db:"created_at" gorm:"autoCreateTime;index"`
}

// TableName keeps the historical table name.
func (InboundPostbackEvent) TableName() string {
	return "received_postbacks"
}

// Forwarded-postback statuses.
const (
	ForwardStatusSuccess = "success"
	ForwardStatusFailed  = "failed"
)

// ForwardedPostbackRecord is the append-only result of forwarding an inbound
// event to the owning publisher's endpoint.
type ForwardedPostbackRecord struct {
	ID        uint      `db:"id" gorm:"primaryKey"`
	EventID   string    `db:"event_id" gorm:"size:64;not null;index"`
	UserID    uint      `db:"user_id" gorm:"not null;index"`
	Username  string    `db:"username" gorm:"size:64"`
	Points    float64   `db:"points" gorm:"not null;default:0"`
	URL       string    `db:"url" gorm:"type:text"`
	Status    string    `db:"status" gorm:"size:16;not null;index"`
	Response  string    `db:"response" gorm:"type:text"`
	CreatedAt time.Time `db:"created_at" gorm:"autoCreateTime"`
}

// TableName keeps the historical table name.
func (ForwardedPostbackRecord) TableName() string {
	return "forwarded_postbacks"
}

// PointsTransaction is an append-only ledger entry; the running balance on
// the user row is updated only via atomic increment.
type PointsTransaction struct {
	ID        uint      `db:"id" gorm:"primaryKey"`
	UserID    uint      `db:"user_id" gorm:"not null;index"`
	Delta     float64   `db:"delta" gorm:"not null"`
	Reason    string    `db:"reason" gorm:"size:255"`
	RefID     string    `db:"ref_id" gorm:"size:64;index"`
	CreatedAt time.Time `db:"created_at" gorm:"autoCreateTime"`
}
