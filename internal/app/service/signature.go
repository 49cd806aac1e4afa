package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// SignLink computes the one-way tracking-link signature over
// offerId:affiliateId:clickId, mixing in the offer secret when configured.
func SignLink(offerID, affiliateID, clickID, secret string) string {
	payload := offerID + ":" + affiliateID + ":" + clickID
	if secret != "" {
		payload += ":" + secret
	}
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// VerifyLink compares a supplied signature against the expected one in
// constant time.
func VerifyLink(offerID, affiliateID, clickID, secret, supplied string) bool {
	expected := SignLink(offerID, affiliateID, clickID, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) == 1
}
