package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackflow/trackflow/internal/app/model"
	"github.com/trackflow/trackflow/internal/app/service"
	httpUtil "github.com/trackflow/trackflow/internal/http/util"
)

func activeOffer() *model.Offer {
	return &model.Offer{
		ID:                   "ML-00001",
		Status:               model.OfferStatusActive,
		TargetURL:            "https://shop.example.com/landing",
		Secret:               "s3cret",
		ConversionWindowDays: 7,
	}
}

func newTrackApp(offers *mockOfferRepository, clicks *mockClickRepository) *fiber.App {
	app := fiber.New()
	resolver := service.NewRuleResolver(nil, "/blocked")
	h := NewTrackHandler(TrackDeps{
		Offers: offers,
		Clicks: service.NewClickService(nil, offers, clicks,
			service.NewFraudScorer(nil, nil), resolver, nil),
		Resolver: resolver,
		Checksum: httpUtil.NewChecksumSigner([]byte("legacy")),
	})
	h.Register(app)
	return app
}

func TestTrackHandler_Health(t *testing.T) {
	app := newTrackApp(&mockOfferRepository{}, &mockClickRepository{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTrackHandler_ClickRedirects(t *testing.T) {
	offer := activeOffer()
	offers := &mockOfferRepository{
		getFn: func(ctx context.Context, id string) (*model.Offer, error) { return offer, nil },
	}
	var created *model.Click
	clicks := &mockClickRepository{
		createFn: func(ctx context.Context, click *model.Click) (bool, error) {
			created = click
			return true, nil
		},
	}
	app := newTrackApp(offers, clicks)

	sig := service.SignLink(offer.ID, "aff-1", "click-1", offer.Secret)
	url := "/track/click/click-1?offer_id=" + offer.ID + "&aff_id=aff-1&hash=" + sig + "&sub1=campaign-7"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
	req.Header.Set("CF-IPCountry", "US")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, offer.TargetURL, resp.Header.Get("Location"))
	require.NotNil(t, created)
	assert.Equal(t, "campaign-7", created.Sub1)
	assert.Equal(t, "US", created.Country)
}

func TestTrackHandler_ClickBadSignature(t *testing.T) {
	offer := activeOffer()
	offers := &mockOfferRepository{
		getFn: func(ctx context.Context, id string) (*model.Offer, error) { return offer, nil },
	}
	app := newTrackApp(offers, &mockClickRepository{})

	url := "/track/click/click-1?offer_id=" + offer.ID + "&aff_id=aff-1&hash=deadbeef"
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, url, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestTrackHandler_ClickMissingParams(t *testing.T) {
	app := newTrackApp(&mockOfferRepository{}, &mockClickRepository{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/track/click/click-1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTrackHandler_ClickUnknownOffer(t *testing.T) {
	app := newTrackApp(&mockOfferRepository{}, &mockClickRepository{})

	url := "/track/click/click-1?offer_id=nope&aff_id=aff-1&hash=" +
		service.SignLink("nope", "aff-1", "click-1", "")
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, url, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTrackHandler_ClickGeoBlockedRedirect(t *testing.T) {
	offer := activeOffer()
	offer.AllowedCountries = model.StringList{"US"}
	offer.NonAccessURL = "https://blocked.example.com"
	offers := &mockOfferRepository{
		getFn: func(ctx context.Context, id string) (*model.Offer, error) { return offer, nil },
	}
	app := newTrackApp(offers, &mockClickRepository{})

	sig := service.SignLink(offer.ID, "aff-1", "click-1", offer.Secret)
	url := "/track/click/click-1?offer_id=" + offer.ID + "&aff_id=aff-1&hash=" + sig + "&geo=DE"
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, url, nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://blocked.example.com", resp.Header.Get("Location"))
}

func TestTrackHandler_LegacyClick(t *testing.T) {
	offer := activeOffer()
	offers := &mockOfferRepository{
		getFn: func(ctx context.Context, id string) (*model.Offer, error) { return offer, nil },
	}
	app := newTrackApp(offers, &mockClickRepository{})
	signer := httpUtil.NewChecksumSigner([]byte("legacy"))

	t.Run("valid checksum redirects", func(t *testing.T) {
		url := "/track/click?offer_id=" + offer.ID + "&campaign_id=camp-9&sig=" +
			signer.Sign(offer.ID, "camp-9")
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, url, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, offer.TargetURL, resp.Header.Get("Location"))
	})

	t.Run("bad checksum rejected", func(t *testing.T) {
		url := "/track/click?offer_id=" + offer.ID + "&campaign_id=camp-9&sig=ffffffffffffffff"
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, url, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("no offer id falls through to target", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet,
			"/track/click?target=https%3A%2F%2Ffallback.example.com", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "https://fallback.example.com", resp.Header.Get("Location"))
	})
}

func TestTrackHandler_BlockedPage(t *testing.T) {
	app := newTrackApp(&mockOfferRepository{}, &mockClickRepository{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/blocked?geo=DE", nil), int(5*time.Second/time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}
