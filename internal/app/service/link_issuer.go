package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/trackflow/trackflow/internal/app/repository"
)

// MaxSubIDs bounds the optional sub-id parameters carried on a link.
const MaxSubIDs = 5

// LinkIssuer mints signed tracking links for an offer and affiliate pair.
// Nothing is persisted at issuance; a link only materializes into a click
// when it is first visited.
type LinkIssuer struct {
	offers  repository.OfferRepository
	baseURL string
}

// NewLinkIssuer creates an issuer that prefixes links with baseURL.
func NewLinkIssuer(offers repository.OfferRepository, baseURL string) *LinkIssuer {
	return &LinkIssuer{
		offers:  offers,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Issue generates a signed tracking URL carrying offer id, affiliate id,
// a fresh click id, the signature, and up to five sub ids. Fails with the
// repository not-found sentinel when the offer is missing or not active.
func (s *LinkIssuer) Issue(ctx context.Context, offerID, affiliateID string, subIDs []string) (string, error) {
	if offerID == "" || affiliateID == "" {
		return "", fmt.Errorf("%w: offer id and affiliate id are required", ErrValidation)
	}
	if len(subIDs) > MaxSubIDs {
		return "", fmt.Errorf("%w: at most %d sub ids", ErrValidation, MaxSubIDs)
	}

	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return "", fmt.Errorf("issue link: %w", err)
	}
	if !offer.IsActive() {
		return "", fmt.Errorf("issue link: %w", repository.ErrOfferNotFound)
	}

	clickID := uuid.New().String()
	signature := SignLink(offer.ID, affiliateID, clickID, offer.Secret)

	params := url.Values{}
	params.Set("offer_id", offer.ID)
	params.Set("aff_id", affiliateID)
	params.Set("hash", signature)
	for i, sub := range subIDs {
		if sub != "" {
			params.Set(fmt.Sprintf("sub%d", i+1), sub)
		}
	}

	return fmt.Sprintf("%s/track/click/%s?%s", s.baseURL, clickID, params.Encode()), nil
}
