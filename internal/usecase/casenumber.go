package usecase

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
	"regexp"
	"time"
)

const (
	caseNumberPrefix   = "SA"
	caseSuffixLen      = 6
	caseSuffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var caseNumberPattern = regexp.MustCompile(`^SA-\d{8}-[A-Z0-9]{6}$`)

// ValidCaseNumber reports whether s has the SA-YYYYMMDD-XXXXXX shape.
func ValidCaseNumber(s string) bool {
	return caseNumberPattern.MatchString(s)
}

func formatCaseNumber(now time.Time, suffix string) string {
	return fmt.Sprintf("%s-%s-%s", caseNumberPrefix, now.UTC().Format("20060102"), suffix)
}

var randomSuffix = func() (string, error) {
	max := big.NewInt(int64(len(caseSuffixAlphabet)))
	buf := make([]byte, caseSuffixLen)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("usecase: random case suffix: %w", err)
		}
		buf[i] = caseSuffixAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// keyedSuffix maps an idempotency key onto the suffix alphabet so that the same
// key on the same UTC day always yields the same case number.
func keyedSuffix(key string) string {
	sum := sha256.Sum256([]byte(key))
	buf := make([]byte, caseSuffixLen)
	for i := range buf {
		buf[i] = caseSuffixAlphabet[int(sum[i])%len(caseSuffixAlphabet)]
	}
	return string(buf)
}
