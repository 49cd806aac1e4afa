package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/trackflow/trackflow/internal/app/repository"
	"github.com/trackflow/trackflow/internal/app/service"
	httpUtil "github.com/trackflow/trackflow/internal/http/util"
	"github.com/trackflow/trackflow/internal/http/view"
	"go.uber.org/zap"
)

// TrackDeps groups dependencies required by click-tracking handlers.
type TrackDeps struct {
	Logger   *zap.Logger
	Offers   repository.OfferRepository
	Clicks   *service.ClickService
	Resolver *service.RuleResolver
	Checksum *httpUtil.ChecksumSigner
}

// TrackHandler implements the click-tracking and redirect flows.
type TrackHandler struct {
	logger   *zap.Logger
	offers   repository.OfferRepository
	clicks   *service.ClickService
	resolver *service.RuleResolver
	checksum *httpUtil.ChecksumSigner
}

// NewTrackHandler creates a tracking handler with the provided dependencies.
func NewTrackHandler(deps TrackDeps) *TrackHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackHandler{
		logger:   logger,
		offers:   deps.Offers,
		clicks:   deps.Clicks,
		resolver: deps.Resolver,
		checksum: deps.Checksum,
	}
}

// Register wires tracking routes onto the provided router.
func (h *TrackHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
	router.Get("/blocked", h.Blocked)
	router.Get("/track/click", h.LegacyClick)
	router.Get("/track/click/:clickId", h.Click)
}

// Health is a simple root endpoint so we know the service is running.
func (h *TrackHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "TrackFlow",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Blocked renders the default geo non-access page.
func (h *TrackHandler) Blocked(c *fiber.Ctx) error {
	html, err := view.RenderBlockedPage(view.BlockedPageData{
		Country: requestGeo(c),
	})
	if err != nil {
		h.logger.Error("failed to render blocked page", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to render page",
		})
	}
	return c.Type("html", "utf-8").SendString(html)
}

// LegacyClick handles GET /track/click, the back-compat path with the simple
// checksum scheme. It resolves the redirect without minting a click record.
func (h *TrackHandler) LegacyClick(c *fiber.Ctx) error {
	offerID := c.Query("offer_id")
	campaignID := c.Query("campaign_id")
	target := c.Query("target")

	if offerID == "" {
		if target != "" {
			return c.Redirect(target, fiber.StatusFound)
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "offer_id is required",
		})
	}

	if !h.checksum.Verify(offerID, campaignID, c.Query("sig")) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "checksum mismatch",
		})
	}

	ctx := userContext(c)
	offer, err := h.offers.GetByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, repository.ErrOfferNotFound) && target != "" {
			return c.Redirect(target, fiber.StatusFound)
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "offer not found",
		})
	}

	destination := h.resolver.Resolve(offer, requestGeo(c), time.Now())
	return c.Redirect(destination, fiber.StatusFound)
}

// Click handles GET /track/click/:clickId, the signed tracking path. The
// click is recorded exactly once; replays return the original redirect.
func (h *TrackHandler) Click(c *fiber.Ctx) error {
	clickID := c.Params("clickId")

	input := service.RecordClickInput{
		OfferID:     c.Query("offer_id"),
		AffiliateID: c.Query("aff_id"),
		Signature:   c.Query("hash"),
		Sub1:        c.Query("sub1"),
		Sub2:        c.Query("sub2"),
		Sub3:        c.Query("sub3"),
		Sub4:        c.Query("sub4"),
		Sub5:        c.Query("sub5"),
		IP:          c.IP(),
		UserAgent:   c.Get("User-Agent"),
		Country:     requestGeo(c),
		Referrer:    c.Get("Referer"),
		PlacementID: uint(c.QueryInt("placement_id")),
	}

	click, err := h.clicks.RecordClick(userContext(c), clickID, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing required parameters",
			})
		case errors.Is(err, service.ErrSignature):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "signature mismatch",
			})
		case errors.Is(err, repository.ErrOfferNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "offer not found",
			})
		default:
			h.logger.Error("failed to record click",
				zap.String("click_id", clickID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
	}

	return c.Redirect(click.RedirectURL, fiber.StatusFound)
}

func requestGeo(c *fiber.Ctx) string {
	if geo := c.Get("CF-IPCountry"); geo != "" {
		return geo
	}
	return c.Query("geo")
}

func userContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}
