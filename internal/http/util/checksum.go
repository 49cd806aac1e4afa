package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ChecksumSigner covers the legacy tracking path, which predates per-offer
// secrets and carries only a short HMAC checksum over offer and campaign ids.
type ChecksumSigner struct {
	secret []byte
}

// NewChecksumSigner returns a signer for legacy click checksums. An empty
// secret disables enforcement, matching links minted before signing existed.
func NewChecksumSigner(secret []byte) *ChecksumSigner {
	return &ChecksumSigner{secret: secret}
}

// Sign computes the short hex checksum for the given offer and campaign.
func (s *ChecksumSigner) Sign(offerID, campaignID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(offerID))
	mac.Write([]byte("|"))
	mac.Write([]byte(campaignID))
	return hex.EncodeToString(mac.Sum(nil)[:8])
}

// Verify checks a supplied checksum; with no secret configured every value
// passes.
func (s *ChecksumSigner) Verify(offerID, campaignID, supplied string) bool {
	if len(s.secret) == 0 {
		return true
	}
	expected := s.Sign(offerID, campaignID)
	return hmac.Equal([]byte(expected), []byte(supplied))
}
