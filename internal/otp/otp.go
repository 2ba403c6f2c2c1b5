// Package otp derives time-based one-time passwords (RFC 6238) from Base32
// shared secrets and parses otpauth:// provisioning URIs.
//
// The package holds no timers: every call is a pure function of its inputs
// and the supplied time. Callers re-invoke Generate on their own tick.
package otp

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// Period is the time step in seconds.
	Period = 30
	// Digits is the length of every generated code.
	Digits = 6
)

var (
	// ErrInvalidSecret means the secret is empty or not valid Base32.
	ErrInvalidSecret = errors.New("not a valid TOTP secret")
	// ErrNotTOTP means the URI is not an otpauth://totp URI.
	ErrNotTOTP = errors.New("not a TOTP URI")
	// ErrMissingSecret means a TOTP URI carried no secret parameter.
	ErrMissingSecret = errors.New("TOTP URI missing secret")
)

// Code is one derived one-time password and its validity window.
type Code struct {
	Code string
	// Remaining is the number of seconds until the code rotates, in [1, Period].
	Remaining int
	Period    int
}

// Params is the content of an otpauth URI relevant to an entry.
type Params struct {
	Secret  string
	Issuer  string
	Account string
}

var validateOpts = totp.ValidateOpts{
	Period:    Period,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// NormaliseSecret strips all whitespace and upper-cases s.
func NormaliseSecret(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// ValidateSecret reports whether secret decodes as Base32 key material.
func ValidateSecret(secret string) error {
	_, err := decodeSecret(NormaliseSecret(secret))
	return err
}

// Generate returns the code for secret at now. The issuer and account are
// display labels and do not influence the code.
func Generate(secret, issuer, account string, now time.Time) (Code, error) {
	key := NormaliseSecret(secret)
	if _, err := decodeSecret(key); err != nil {
		return Code{}, err
	}

	code, err := totp.GenerateCodeCustom(strings.TrimRight(key, "="), now, validateOpts)
	if err != nil {
		return Code{}, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}

	return Code{Code: code, Remaining: Remaining(now), Period: Period}, nil
}

// Remaining returns the seconds left in the time step containing now.
func Remaining(now time.Time) int {
	elapsed := now.Unix() % Period
	if elapsed < 0 {
		elapsed += Period
	}
	return Period - int(elapsed)
}

// ParseURI extracts the secret, issuer and account from an otpauth://totp
// URI. The returned secret is normalised and stripped of padding.
func ParseURI(uri string) (Params, error) {
	raw := strings.TrimSpace(uri)
	if !strings.HasPrefix(strings.ToLower(raw), "otpauth://") {
		return Params{}, ErrNotTOTP
	}

	key, err := otp.NewKeyFromURL(raw)
	if err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrNotTOTP, err)
	}
	if !strings.EqualFold(key.Type(), "totp") {
		return Params{}, ErrNotTOTP
	}

	secret := NormaliseSecret(key.Secret())
	if secret == "" {
		return Params{}, ErrMissingSecret
	}
	if _, err := decodeSecret(secret); err != nil {
		return Params{}, err
	}

	return Params{
		Secret:  strings.TrimRight(secret, "="),
		Issuer:  strings.TrimSpace(key.Issuer()),
		Account: strings.TrimSpace(key.AccountName()),
	}, nil
}

// decodeSecret accepts padded and unpadded Base32. It expects an already
// normalised secret.
func decodeSecret(secret string) ([]byte, error) {
	trimmed := strings.TrimRight(secret, "=")
	if trimmed == "" {
		return nil, ErrInvalidSecret
	}
	b, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return b, nil
}
