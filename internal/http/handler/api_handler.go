package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/trackflow/trackflow/internal/app/repository"
	"github.com/trackflow/trackflow/internal/app/service"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger *zap.Logger
	Issuer *service.LinkIssuer
	Offers *service.OfferService
}

// APIHandler implements the management API endpoints.
type APIHandler struct {
	logger *zap.Logger
	issuer *service.LinkIssuer
	offers *service.OfferService
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger: logger,
		issuer: deps.Issuer,
		offers: deps.Offers,
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		api.Post("/tracking-links", h.IssueLink)
		api.Post("/offers/:offerId/rules", h.AddSmartRule)
	}
}

// IssueLinkRequest represents the request body for minting a tracking link.
type IssueLinkRequest struct {
	OfferID     string   `json:"offer_id"`
	AffiliateID string   `json:"affiliate_id"`
	SubIDs      []string `json:"sub_ids,omitempty"`
}

// IssueLink handles POST /api/tracking-links.
func (h *APIHandler) IssueLink(c *fiber.Ctx) error {
	var req IssueLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	url, err := h.issuer.Issue(userContext(c), req.OfferID, req.AffiliateID, req.SubIDs)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, repository.ErrOfferNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "offer not found or not active",
			})
		default:
			h.logger.Error("failed to issue tracking link", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to issue tracking link",
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"url": url,
	})
}

// AddSmartRuleRequest represents the request body for adding a smart rule.
type AddSmartRuleRequest struct {
	Type     string   `json:"type"`
	Priority int      `json:"priority"`
	GeoList  []string `json:"geo_list,omitempty"`
	URL      string   `json:"url"`
}

// AddSmartRule handles POST /api/offers/:offerId/rules.
func (h *APIHandler) AddSmartRule(c *fiber.Ctx) error {
	var req AddSmartRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	rule, err := h.offers.AddSmartRule(userContext(c), service.AddSmartRuleInput{
		OfferID:  c.Params("offerId"),
		Type:     req.Type,
		Priority: req.Priority,
		GeoList:  req.GeoList,
		URL:      req.URL,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation),
			errors.Is(err, repository.ErrRulePriorityTaken):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, repository.ErrOfferNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "offer not found",
			})
		default:
			h.logger.Error("failed to add smart rule", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to add smart rule",
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":       rule.ID,
		"offer_id": rule.OfferID,
		"type":     rule.Type,
		"priority": rule.Priority,
		"geo_list": rule.GeoList,
		"url":      rule.URL,
	})
}
