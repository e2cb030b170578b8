package services

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"time"

	"dormsync-backend-go/internal/models"
)

const (
	OTPLength = 6
	OTPTTL    = 10 * time.Minute
)

const otpAlphabet = "0123456789"

// GenerateOTP draws every digit independently from crypto/rand.
func GenerateOTP() (string, error) {
	limit := big.NewInt(int64(len(otpAlphabet)))
	value := make([]byte, OTPLength)
	for index := range value {
		position, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		value[index] = otpAlphabet[position.Int64()]
	}
	return string(value), nil
}

// issueOTP stores a fresh code on the account, replacing any previous one.
func issueOTP(account *models.Account, generate func() (string, error), now time.Time) (string, error) {
	code, err := generate()
	if err != nil {
		return "", err
	}
	expires := now.Add(OTPTTL)
	account.OTP = &code
	account.OTPExpires = &expires
	return code, nil
}

// otpMatches requires a stored code equal to the candidate and an expiry
// strictly after now.
func otpMatches(account models.Account, candidate string, now time.Time) bool {
	if account.OTP == nil || account.OTPExpires == nil || candidate == "" {
		return false
	}
	if !account.OTPExpires.After(now) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*account.OTP), []byte(candidate)) == 1
}

func clearOTP(account *models.Account) {
	account.OTP = nil
	account.OTPExpires = nil
}
