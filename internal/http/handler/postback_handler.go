package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/trackflow/trackflow/internal/app/service"
	"go.uber.org/zap"
)

// PostbackDeps groups dependencies required by postback handlers.
type PostbackDeps struct {
	Logger      *zap.Logger
	Inbound     *service.InboundService
	Conversions *service.ConversionService
}

// PostbackHandler implements the inbound postback endpoints.
type PostbackHandler struct {
	logger      *zap.Logger
	inbound     *service.InboundService
	conversions *service.ConversionService
}

// NewPostbackHandler creates a postback handler with the provided dependencies.
func NewPostbackHandler(deps PostbackDeps) *PostbackHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostbackHandler{
		logger:      logger,
		inbound:     deps.Inbound,
		conversions: deps.Conversions,
	}
}

// Register wires postback routes onto the provided router.
func (h *PostbackHandler) Register(router fiber.Router) {
	router.Get("/postback/:partnerKey", h.Receive)
	router.Post("/postback/:partnerKey", h.Receive)
	router.Get("/api/postback/conversion", h.Conversion)
	router.Post("/api/postback/conversion", h.Conversion)
}

// Receive handles GET|POST /postback/:partnerKey. Upstream networks retry
// aggressively on non-200s, so errors are logged and swallowed; the raw
// event id is always acknowledged.
func (h *PostbackHandler) Receive(c *fiber.Ctx) error {
	params := collectParams(c)
	event := h.inbound.Receive(userContext(c), c.Params("partnerKey"), c.Method(), params, c.IP())
	return c.JSON(fiber.Map{
		"status": "success",
		"log_id": event.ID,
	})
}

// Conversion handles GET|POST /api/postback/conversion, the direct
// conversion-registration API.
func (h *PostbackHandler) Conversion(c *fiber.Ctx) error {
	params := collectParams(c)

	clickID := params["click_id"]
	if clickID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "click_id is required",
		})
	}

	input := service.RecordConversionInput{
		Status:        params["status"],
		TransactionID: params["transaction_id"],
		ExternalID:    params["external_id"],
		IP:            c.IP(),
	}
	for _, key := range []string{"payout", "revenue"} {
		if raw := params[key]; raw != "" {
			payout, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid " + key,
				})
			}
			input.Payout = &payout
			break
		}
	}

	conversion, err := h.conversions.RecordConversion(userContext(c), clickID, input)
	if err != nil {
		h.logger.Info("conversion rejected",
			zap.String("click_id", clickID), zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status":        "success",
		"conversion_id": conversion.ID,
	})
}

// collectParams merges query-string and form parameters so partners can use
// either method interchangeably.
func collectParams(c *fiber.Ctx) map[string]string {
	params := make(map[string]string)
	for key, values := range c.Queries() {
		params[key] = values
	}
	c.Request().PostArgs().VisitAll(func(key, value []byte) {
		params[string(key)] = string(value)
	})
	return params
}
