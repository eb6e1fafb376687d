package usecase

import (
	"context"
	"crypto/subtle"
	"strings"
)

// DeveloperVerifier checks the single shared developer secret.
type DeveloperVerifier struct {
	secret string
}

func NewDeveloperVerifier(secret string) *DeveloperVerifier {
	return &DeveloperVerifier{secret: secret}
}

func (v *DeveloperVerifier) Verify(_ context.Context, password string) error {
	if password == "" {
		return newError(ErrorInvalidInput, "empty_password", nil)
	}
	if strings.TrimSpace(v.secret) == "" {
		return newError(ErrorConfig, "developer_secret_not_configured", nil)
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(v.secret)) != 1 {
		return newError(ErrorUnauthorized, "password_mismatch", nil)
	}
	return nil
}
