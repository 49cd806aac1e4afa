package model

import "time"

// Conversion statuses.
const (
	ConversionStatusPending  = "pending"
	ConversionStatusApproved = "approved"
	ConversionStatusRejected = "rejected"
)

// Conversion records a completion event attributed to a prior click.
type Conversion struct {
	ID            string    `db:"id" gorm:"primaryKey;size:64"`
	ClickID       string    `db:"click_id" gorm:"size:64;not null;index"`
	OfferID       string    `db:"offer_id" gorm:"size:32;not null;index"`
	AffiliateID   string    `db:"affiliate_id" gorm:"size:64;not null;index"`
	Payout        float64   `db:"payout" gorm:"not null;default:0"`
	Bonus         float64   `db:"bonus" gorm:"not null;default:0"`
	Currency      string    `db:"currency" gorm:"size:8;not null;default:USD"`
	Status        string    `db:"status" gorm:"size:16;not null;default:pending;index"`
	TransactionID string    `db:"transaction_id" gorm:"size:128"`
	ExternalID    string    `db:"external_id" gorm:"size:128"`
	IP            string    `db:"ip" gorm:"size:64"`
	CreatedAt     time.Time `db:"created_at" gorm:"autoCreateTime;index"`
}
