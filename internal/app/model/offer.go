package model

import "time"

// Offer lifecycle states.
const (
	OfferStatusActive = "active"
	OfferStatusPaused = "paused"
	OfferStatusEnded  = "ended"
)

// Duplicate-conversion policies configurable per offer.
const (
	DuplicatePolicyAllow  = "allow"
	DuplicatePolicyDeny   = "deny"
	DuplicatePolicyUnique = "unique"
)

// Smart-rule types.
const (
	SmartRuleTypeGeo    = "geo"
	SmartRuleTypeBackup = "backup"
)

// Offer describes a monetized campaign that tracking links point at.
type Offer struct {
	ID                    string     `db:"id" gorm:"primaryKey;size:32"`
	Name                  string     `db:"name" gorm:"size:255;not null"`
	Status                string     `db:"status" gorm:"size:16;not null;default:active;index"`
	TargetURL             string     `db:"target_url" gorm:"type:text;not null"`
	NonAccessURL          string     `db:"non_access_url" gorm:"type:text"`
	AllowedCountries      StringList `db:"allowed_countries" gorm:"type:jsonb"`
	Payout                float64    `db:"payout" gorm:"not null;default:0"`
	Currency              string     `db:"currency" gorm:"size:8;not null;default:USD"`
	ConversionWindowDays  int        `db:"conversion_window_days" gorm:"not null;default:30"`
	DuplicatePolicy       string     `db:"duplicate_policy" gorm:"size:16;not null;default:deny"`
	Secret                string     `db:"secret" gorm:"size:64"`
	HitCount              int64      `db:"hit_count" gorm:"not null;default:0"`
	PartnerPostbackURL    string     `db:"partner_postback_url" gorm:"type:text"`
	PartnerPostbackMethod string     `db:"partner_postback_method" gorm:"size:8;default:GET"`
	CreatedAt             time.Time  `db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt             time.Time  `db:"updated_at" gorm:"autoUpdateTime"`

	Schedule   *OfferSchedule `gorm:"foreignKey:OfferID"`
	SmartRules []SmartRule    `gorm:"foreignKey:OfferID"`
	PromoCodes []PromoCode    `gorm:"foreignKey:OfferID"`
}

// IsActive reports whether the offer is in its active lifecycle state.
func (o *Offer) IsActive() bool {
	return o.Status == OfferStatusActive
}

// OfferSchedule gates an offer's smart rules to a time window, optionally
// recurring on a weekday set.
type OfferSchedule struct {
	ID          uint       `db:"id" gorm:"primaryKey"`
	OfferID     string     `db:"offer_id" gorm:"size:32;not null;uniqueIndex"`
	Status      string     `db:"status" gorm:"size:16;not null;default:active"`
	StartAt     *time.Time `db:"start_at"`
	EndAt       *time.Time `db:"end_at"`
	IsRecurring bool       `db:"is_recurring" gorm:"not null;default:false"`
	Weekdays    StringList `db:"weekdays" gorm:"type:jsonb"`
	CreatedAt   time.Time  `db:"created_at" gorm:"autoCreateTime"`
}

// SmartRule is a priority-ordered, geo-conditioned redirect override.
// Priority 1 is highest; priorities are unique per offer.
type SmartRule struct {
	ID        uint       `db:"id" gorm:"primaryKey"`
	OfferID   string     `db:"offer_id" gorm:"size:32;not null;uniqueIndex:idx_smart_rule_priority"`
	Type      string     `db:"type" gorm:"size:16;not null"`
	Priority  int        `db:"priority" gorm:"not null;uniqueIndex:idx_smart_rule_priority"`
	GeoList   StringList `db:"geo_list" gorm:"type:jsonb"`
	URL       string     `db:"url" gorm:"type:text;not null"`
	Active    bool       `db:"active" gorm:"not null;default:true"`
	CreatedAt time.Time  `db:"created_at" gorm:"autoCreateTime"`
}

// Promo-code bonus types.
const (
	BonusTypePercent = "percent"
	BonusTypeFixed   = "fixed"
)

// PromoCode carries a promotional payout bonus assigned to an offer.
type PromoCode struct {
	ID         uint      `db:"id" gorm:"primaryKey"`
	Code       string    `db:"code" gorm:"size:64;not null;uniqueIndex"`
	OfferID    string    `db:"offer_id" gorm:"size:32;not null;index"`
	BonusType  string    `db:"bonus_type" gorm:"size:16;not null"`
	BonusValue float64   `db:"bonus_value" gorm:"not null;default:0"`
	Active     bool      `db:"active" gorm:"not null;default:true"`
	CreatedAt  time.Time `db:"created_at" gorm:"autoCreateTime"`
}

// Partner identifies an upstream network that sends inbound postbacks,
// keyed by the opaque key in its postback URL.
type Partner struct {
	ID          uint      `db:"id" gorm:"primaryKey"`
	Key         string    `db:"key" gorm:"size:64;not null;uniqueIndex"`
	Name        string    `db:"name" gorm:"size:255;not null"`
	PlacementID uint      `db:"placement_id" gorm:"index"`
	CreatedAt   time.Time `db:"created_at" gorm:"autoCreateTime"`
}

// Placement is a publisher-owned integration point that clicks attribute to.
type Placement struct {
	ID        uint      `db:"id" gorm:"primaryKey"`
	Key       string    `db:"key" gorm:"size:64;not null;uniqueIndex"`
	Name      string    `db:"name" gorm:"size:255"`
	UserID    uint      `db:"user_id" gorm:"not null;index"`
	CreatedAt time.Time `db:"created_at" gorm:"autoCreateTime"`
}

// User is a publisher account holding the point balance and the forwarding
// postback endpoint. Balance mutates only via atomic increment.
type User struct {
	ID          uint      `db:"id" gorm:"primaryKey"`
	Username    string    `db:"username" gorm:"size:64;not null;uniqueIndex"`
	DisplayName string    `db:"display_name" gorm:"size:255"`
	PostbackURL string    `db:"postback_url" gorm:"type:text"`
	Points      float64   `db:"points" gorm:"not null;default:0"`
	CreatedAt   time.Time `db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `db:"updated_at" gorm:"autoUpdateTime"`
}
