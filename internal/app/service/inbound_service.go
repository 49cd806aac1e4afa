package service

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/trackflow/trackflow/internal/app/model"
	"github.com/trackflow/trackflow/internal/app/repository"
	infraprometheus "github.com/trackflow/trackflow/internal/infra/prometheus"
	"go.uber.org/zap"
)

// placementAttributionWindow bounds the degraded most-recent-click fallback
// used when an upstream partner drops the click id.
const placementAttributionWindow = time.Hour

// InboundService receives partner postbacks, attributes them to a click and
// its owning publisher, computes the payout with bonus, and forwards a
// rewritten notification to the owner's endpoint. Forwarding is a single
// best-effort attempt: failures are recorded, never retried.
type InboundService struct {
	logger      *zap.Logger
	inbound     repository.InboundRepository
	clicks      repository.ClickRepository
	offers      repository.OfferRepository
	users       repository.UserRepository
	conversions *ConversionService
	bonus       BonusCalculator
	sender      Sender
}

// NewInboundService wires the inbound router with its collaborators.
func NewInboundService(
	logger *zap.Logger,
	inbound repository.InboundRepository,
	clicks repository.ClickRepository,
	offers repository.OfferRepository,
	users repository.UserRepository,
	conversions *ConversionService,
	bonus BonusCalculator,
	sender Sender,
) *InboundService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InboundService{
		logger:      logger,
		inbound:     inbound,
		clicks:      clicks,
		offers:      offers,
		users:       users,
		conversions: conversions,
		bonus:       bonus,
		sender:      sender,
	}
}

// Receive persists the raw call first, then runs attribution, conversion
// creation, and forwarding. It always returns the stored event; every
// downstream failure is logged rather than surfaced, so upstream senders
// never see an error.
func (s *InboundService) Receive(ctx context.Context, partnerKey, method string, params map[string]string, ip string) *model.InboundPostbackEvent {
	event := &model.InboundPostbackEvent{
		ID:         uuid.New().String(),
		PartnerKey: partnerKey,
		Method:     method,
		Params:     model.ParamMap(params),
		IP:         ip,
	}
	if err := s.inbound.CreateEvent(ctx, event); err != nil {
		s.logger.Error("failed to persist inbound postback event",
			zap.String("partner_key", partnerKey), zap.Error(err))
	}

	partner, err := s.inbound.GetPartnerByKey(ctx, partnerKey)
	if err != nil {
		// Unknown senders are handled as standalone sources, not rejected.
		s.logger.Info("inbound postback from unattributed source",
			zap.String("partner_key", partnerKey))
		partner = nil
	}

	s.recordConversionFromParams(ctx, params, ip)

	click := s.attributeClick(ctx, partner, params)
	if click == nil {
		s.logger.Warn("inbound postback could not be attributed to a click",
			zap.String("event_id", event.ID), zap.String("partner_key", partnerKey))
		return event
	}

	s.forward(ctx, event, click)
	return event
}

// recordConversionFromParams attempts automatic conversion creation when the
// caller supplied a click id. Failures here do not stop forwarding.
func (s *InboundService) recordConversionFromParams(ctx context.Context, params map[string]string, ip string) {
	clickID := firstParam(params, "click_id", "survey_id")
	if clickID == "" {
		return
	}

	input := RecordConversionInput{
		Status:        params["status"],
		TransactionID: params["transaction_id"],
		ExternalID:    params["external_id"],
		IP:            ip,
	}
	if raw := firstParam(params, "payout", "revenue"); raw != "" {
		if payout, err := strconv.ParseFloat(raw, 64); err == nil {
			input.Payout = &payout
		}
	}

	if _, err := s.conversions.RecordConversion(ctx, clickID, input); err != nil {
		s.logger.Info("automatic conversion not created",
			zap.String("click_id", clickID), zap.Error(err))
	}
}

// attributeClick prefers an explicit click id; without one it degrades to
// the most recent click on the partner's placement within the last hour, a
// best-effort heuristic with no correctness guarantee under concurrent
// traffic.
func (s *InboundService) attributeClick(ctx context.Context, partner *model.Partner, params map[string]string) *model.Click {
	if clickID := firstParam(params, "click_id", "survey_id"); clickID != "" {
		click, err := s.clicks.GetByID(ctx, clickID)
		if err == nil {
			return click
		}
		s.logger.Warn("inbound click id did not resolve",
			zap.String("click_id", clickID), zap.Error(err))
	}

	if partner == nil || partner.PlacementID == 0 {
		return nil
	}

	since := time.Now().Add(-placementAttributionWindow)
	click, err := s.clicks.LatestForPlacement(ctx, partner.PlacementID, since)
	if err != nil {
		return nil
	}
	s.logger.Warn("attributed inbound postback via degraded placement fallback",
		zap.String("click_id", click.ID), zap.Uint("placement_id", partner.PlacementID))
	return click
}

// forward resolves the owning publisher, computes the total payout, rewrites
// the owner's postback URL, and sends once. On 200 it credits the completing
// user's balance and appends a ledger entry.
func (s *InboundService) forward(ctx context.Context, event *model.InboundPostbackEvent, click *model.Click) {
	if click.PlacementID == 0 {
		s.logger.Info("click has no placement, skipping forward",
			zap.String("click_id", click.ID))
		return
	}

	placement, err := s.inbound.GetPlacement(ctx, click.PlacementID)
	if err != nil {
		s.logger.Warn("placement lookup failed, skipping forward",
			zap.Uint("placement_id", click.PlacementID), zap.Error(err))
		return
	}

	owner, err := s.users.GetByID(ctx, placement.UserID)
	if err != nil {
		s.logger.Warn("placement owner lookup failed, skipping forward",
			zap.Uint("user_id", placement.UserID), zap.Error(err))
		return
	}
	if owner.PostbackURL == "" {
		s.logger.Info("placement owner has no forwarding endpoint configured",
			zap.Uint("user_id", owner.ID))
		return
	}

	offer, err := s.offers.GetByID(ctx, click.OfferID)
	if err != nil {
		s.logger.Warn("offer lookup failed, skipping forward",
			zap.String("offer_id", click.OfferID), zap.Error(err))
		return
	}

	total := offer.Payout
	if bonus, err := s.bonus.Bonus(ctx, offer.ID, offer.Payout); err == nil {
		total += bonus
	} else {
		s.logger.Warn("bonus calculation failed, forwarding base payout",
			zap.String("offer_id", offer.ID), zap.Error(err))
	}

	completing := s.resolveCompletingUser(ctx, event, click, owner)

	status := event.Params["status"]
	if status == "" {
		status = model.ConversionStatusApproved
	}

	rendered, unknown := RenderMacros(owner.PostbackURL, MacroValues{
		ClickID:       click.ID,
		Payout:        total,
		Status:        status,
		OfferID:       click.OfferID,
		ConversionID:  event.Params["conversion_id"],
		TransactionID: event.Params["transaction_id"],
		AffiliateID:   click.AffiliateID,
		Sub1:          click.Sub1,
		Sub2:          click.Sub2,
		Sub3:          click.Sub3,
		Sub4:          click.Sub4,
		Sub5:          click.Sub5,
		Currency:      offer.Currency,
	})
	if len(unknown) > 0 {
		s.logger.Warn("unknown macros in owner postback URL",
			zap.Uint("user_id", owner.ID), zap.Strings("macros", unknown))
	}

	record := &model.ForwardedPostbackRecord{
		EventID:  event.ID,
		UserID:   owner.ID,
		Username: completing.Username,
		Points:   total,
		URL:      rendered,
	}

	code, body, sendErr := s.sender.Send(ctx, http.MethodGet, rendered)
	if sendErr != nil || code != http.StatusOK {
		record.Status = model.ForwardStatusFailed
		if sendErr != nil {
			record.Response = sendErr.Error()
		} else {
			record.Response = body
		}
		infraprometheus.ForwardsTotal.WithLabelValues(model.ForwardStatusFailed).Inc()
		if err := s.inbound.CreateForwardedRecord(ctx, record); err != nil {
			s.logger.Error("failed to persist forwarded postback record", zap.Error(err))
		}
		return
	}

	record.Status = model.ForwardStatusSuccess
	record.Response = body
	infraprometheus.ForwardsTotal.WithLabelValues(model.ForwardStatusSuccess).Inc()
	if err := s.inbound.CreateForwardedRecord(ctx, record); err != nil {
		s.logger.Error("failed to persist forwarded postback record", zap.Error(err))
	}

	if err := s.users.CreditPoints(ctx, completing.ID, total); err != nil {
		s.logger.Error("failed to credit points",
			zap.Uint("user_id", completing.ID), zap.Error(err))
		return
	}
	ledger := &model.PointsTransaction{
		UserID: completing.ID,
		Delta:  total,
		Reason: "postback forward",
		RefID:  event.ID,
	}
	if err := s.users.AppendPointsTransaction(ctx, ledger); err != nil {
		s.logger.Error("failed to append points transaction",
			zap.Uint("user_id", completing.ID), zap.Error(err))
	}
}

// resolveCompletingUser finds the end user who completed the offer: the
// username parameter when present, else the click's sub1, else the placement
// owner.
func (s *InboundService) resolveCompletingUser(ctx context.Context, event *model.InboundPostbackEvent, click *model.Click, owner *model.User) *model.User {
	for _, candidate := range []string{event.Params["username"], click.Sub1} {
		if candidate == "" {
			continue
		}
		if user, err := s.users.GetByUsername(ctx, candidate); err == nil {
			return user
		}
	}
	return owner
}

func firstParam(params map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := params[key]; v != "" {
			return v
		}
	}
	return ""
}
