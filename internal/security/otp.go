package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Reset codes are valid for 10 minutes from issuance.
const OTPValidity = 10 * time.Minute

var otpSpace = big.NewInt(1_000_000)

// GenerateOTP returns a 6-digit numeric code drawn uniformly from
// 000000-999999 using the crypto random source.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)

	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%06d", n.Int64()), nil
}

// OTPExpiry returns the expiry instant for a code issued now.
func OTPExpiry(now time.Time) time.Time {
	return now.UTC().Add(OTPValidity)
}
