package model

import "time"

// Click statuses.
const (
	ClickStatusClicked   = "clicked"
	ClickStatusConverted = "converted"
)

// FraudThreshold is the score above which a click is flagged as fraud.
const FraudThreshold = 70

// Click records one visit to a tracking link. Created exactly once per click
// id; the only mutation ever applied is flipping status to converted.
type Click struct {
	ID           string     `db:"id" gorm:"primaryKey;size:64"`
	OfferID      string     `db:"offer_id" gorm:"size:32;not null;index"`
	AffiliateID  string     `db:"affiliate_id" gorm:"size:64;not null;index"`
	PlacementID  uint       `db:"placement_id" gorm:"index"`
	IP           string     `db:"ip" gorm:"size:64"`
	UserAgent    string     `db:"user_agent" gorm:"size:1024"`
	Country      string     `db:"country" gorm:"size:8"`
	Referrer     string     `db:"referrer" gorm:"size:1024"`
	Sub1         string     `db:"sub1" gorm:"size:255"`
	Sub2         string     `db:"sub2" gorm:"size:255"`
	Sub3         string     `db:"sub3" gorm:"size:255"`
	Sub4         string     `db:"sub4" gorm:"size:255"`
	Sub5         string     `db:"sub5" gorm:"size:255"`
	Status       string     `db:"status" gorm:"size:16;not null;default:clicked;index"`
	RedirectURL  string     `db:"redirect_url" gorm:"type:text"`
	FraudScore   int        `db:"fraud_score" gorm:"not null;default:0"`
	FraudReasons StringList `db:"fraud_reasons" gorm:"type:jsonb"`
	IsUnique     bool       `db:"is_unique" gorm:"not null;default:true"`
	IsFraud      bool       `db:"is_fraud" gorm:"not null;default:false"`
	ExpiresAt    time.Time  `db:"expires_at" gorm:"not null;index"`
	CreatedAt    time.Time  `db:"created_at" gorm:"autoCreateTime;index"`
}

// FraudSignal is an append-only record written when a click's score exceeds
// the fraud threshold.
type FraudSignal struct {
	ID        uint       `db:"id" gorm:"primaryKey"`
	ClickID   string     `db:"click_id" gorm:"size:64;not null;index"`
	Score     int        `db:"score" gorm:"not null"`
	Reasons   StringList `db:"reasons" gorm:"type:jsonb"`
	CreatedAt time.Time  `db:"created_at" gorm:"autoCreateTime"`
}

// TableName keeps the historical table name.
func (FraudSignal) TableName() string {
	return "fraud_logs"
}
