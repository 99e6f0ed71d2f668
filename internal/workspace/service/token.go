package service

import (
	"crypto/rand"
	"encoding/base64"
)

const inviteTokenBytes = 32

// newInviteToken returns 43 characters of unpadded base64url.
func newInviteToken() (string, error) {
	buf := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
