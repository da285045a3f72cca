package service

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const defaultMFAIssuer = "Describly"

// TOTPProvider generates and checks RFC 6238 codes. Zero fields fall back
// to the authenticator app defaults: 30s period, six SHA1 digits, skew 1.
type TOTPProvider struct {
	Issuer    string
	Period    uint
	Skew      uint
	Digits    otp.Digits
	Algorithm otp.Algorithm
}

func NewTOTPProvider(issuer string) *TOTPProvider {
	return &TOTPProvider{Issuer: issuer}
}

func (p *TOTPProvider) GenerateSecret(accountName string) (string, error) {
	if strings.TrimSpace(accountName) == "" {
		accountName = "pending"
	}
	opts := p.options()
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer(""),
		AccountName: accountName,
		Period:      opts.Period,
		Digits:      opts.Digits,
		Algorithm:   opts.Algorithm,
	})
	if err != nil {
		return "", err
	}
	return key.Secret(), nil
}

// QRCodeURL builds the otpauth:// URL authenticator apps scan.
func (p *TOTPProvider) QRCodeURL(email string, issuer string, secret string) (string, error) {
	issuer = p.issuer(issuer)
	opts := p.options()
	query := url.Values{}
	query.Set("secret", secret)
	query.Set("issuer", issuer)
	query.Set("algorithm", opts.Algorithm.String())
	query.Set("digits", opts.Digits.String())
	query.Set("period", strconv.FormatUint(uint64(opts.Period), 10))
	return "otpauth://totp/" + url.PathEscape(issuer+":"+email) + "?" + query.Encode(), nil
}

func (p *TOTPProvider) ValidateCode(secret string, code string, at time.Time) bool {
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, at.UTC(), p.options())
	return err == nil && ok
}

func (p *TOTPProvider) options() totp.ValidateOpts {
	opts := totp.ValidateOpts{
		Period:    p.Period,
		Skew:      p.Skew,
		Digits:    p.Digits,
		Algorithm: p.Algorithm,
	}
	if opts.Period == 0 {
		opts.Period = 30
	}
	if opts.Skew == 0 {
		opts.Skew = 1
	}
	if opts.Digits == 0 {
		opts.Digits = otp.DigitsSix
	}
	return opts
}

func (p *TOTPProvider) issuer(override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	if strings.TrimSpace(p.Issuer) != "" {
		return p.Issuer
	}
	return defaultMFAIssuer
}
