package service

import (
	"sort"
	"strings"
	"time"

	"github.com/trackflow/trackflow/internal/app/model"
	"go.uber.org/zap"
)

// RuleResolver computes the destination URL for a click from the offer's
// configuration. It is a pure function over the offer snapshot; a broken
// rule must never block legitimate traffic, so every gate fails open to the
// plain target URL.
type RuleResolver struct {
	logger *zap.Logger
	// defaultBlockedURL is used when the geo gate trips and the offer has no
	// nonAccessUrl configured.
	defaultBlockedURL string
}

// NewRuleResolver creates a resolver with the given fallback blocked-page URL.
func NewRuleResolver(logger *zap.Logger, defaultBlockedURL string) *RuleResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleResolver{logger: logger, defaultBlockedURL: defaultBlockedURL}
}

// Resolve evaluates lifecycle, geo, schedule, and smart-rule gates in order.
func (r *RuleResolver) Resolve(offer *model.Offer, geo string, now time.Time) (target string) {
	target = offer.TargetURL
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("rule resolution panicked, failing open",
				zap.Any("panic", rec), zap.String("offer_id", offer.ID))
			target = offer.TargetURL
		}
	}()

	if !offer.IsActive() {
		return offer.TargetURL
	}

	// Geo gate trumps everything else: a blocked country never sees the
	// smart-rule destinations.
	if len(offer.AllowedCountries) > 0 && !offer.AllowedCountries.ContainsFold(geo) {
		if offer.NonAccessURL != "" {
			return offer.NonAccessURL
		}
		return r.defaultBlockedURL
	}

	if offer.Schedule != nil && !scheduleOpen(offer.Schedule, now) {
		return offer.TargetURL
	}

	if rule := matchSmartRule(offer.SmartRules, geo); rule != nil {
		return rule.URL
	}

	return offer.TargetURL
}

func scheduleOpen(s *model.OfferSchedule, now time.Time) bool {
	if !strings.EqualFold(s.Status, model.OfferStatusActive) {
		return false
	}
	if s.StartAt != nil && now.Before(*s.StartAt) {
		return false
	}
	if s.EndAt != nil && now.After(*s.EndAt) {
		return false
	}
	if s.IsRecurring && !s.Weekdays.ContainsFold(now.Weekday().String()) {
		return false
	}
	return true
}

// matchSmartRule walks active rules in ascending priority (1 = highest) and
// returns the first geo or backup rule that applies.
func matchSmartRule(rules []model.SmartRule, geo string) *model.SmartRule {
	active := make([]model.SmartRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Active {
			active = append(active, rule)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].Priority < active[j].Priority
	})

	for i := range active {
		rule := &active[i]
		switch rule.Type {
		case model.SmartRuleTypeGeo:
			if rule.GeoList.ContainsFold(geo) {
				return rule
			}
		case model.SmartRuleTypeBackup:
			if len(rule.GeoList) == 0 || rule.GeoList.ContainsFold(geo) {
				return rule
			}
		}
	}
	return nil
}
