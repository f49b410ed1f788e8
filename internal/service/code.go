package service

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const accessCodeLen = 8

// NewAccessCode returns an 8-character uppercase hex code.
func NewAccessCode() (string, error) {
	b := make([]byte, accessCodeLen/2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}
