package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken         = errors.New("invalid token")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
)

const DefaultAlgorithm = "HS256"

// SigningMethod resolves an HMAC signing method by name. Asymmetric methods
// are rejected because tokens are signed with shared secrets.
func SigningMethod(algorithm string) (*jwt.SigningMethodHMAC, error) {
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
	return method, nil
}

// GenerateToken signs claims with secret. Callers set the expiry on claims.
func GenerateToken(claims jwt.Claims, secret []byte, algorithm string) (string, error) {
	method, err := SigningMethod(algorithm)
	if err != nil {
		return "", err
	}
	return jwt.NewWithClaims(method, claims).SignedString(secret)
}

// GetTokenPayload verifies tokenString and decodes it into claims. Every
// failure (bad signature, wrong algorithm, expired, malformed) is reported as
// ErrInvalidToken.
func GetTokenPayload(tokenString string, claims jwt.Claims, secret []byte, algorithm string, now func() time.Time) error {
	method, err := SigningMethod(algorithm)
	if err != nil {
		return ErrInvalidToken
	}
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if now != nil {
		options = append(options, jwt.WithTimeFunc(now))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	}, options...)
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}

type JWTManager struct {
	AccessSecret    []byte
	RefreshSecret   []byte
	Algorithm       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Now             func() time.Time
}

// AccessClaims serialises to exactly {sub, a, r, n, exp}.
type AccessClaims struct {
	AccessKey string `json:"a"`
	TokenRef  string `json:"r"`
	Name      string `json:"n"`
	jwt.RegisteredClaims
}

// RefreshClaims serialises to exactly {sub, t, m, exp}.
type RefreshClaims struct {
	RefreshKey string `json:"t"`
	AccessKey  string `json:"m"`
	jwt.RegisteredClaims
}

func (c AccessClaims) UserID() (uint, error) {
	return DecodeID(c.Subject)
}

func (c AccessClaims) TokenID() (uint, error) {
	return DecodeID(c.TokenRef)
}

func (c AccessClaims) FullName() string {
	name, err := StrDecode(c.Name)
	if err != nil {
		return ""
	}
	return name
}

func (c RefreshClaims) UserID() (uint, error) {
	return DecodeID(c.Subject)
}

func (m JWTManager) IssueAccessToken(userID uint, accessKey string, tokenID uint, fullName string) (string, time.Duration, error) {
	ttl := m.AccessTokenTTL
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	claims := AccessClaims{
		AccessKey: accessKey,
		TokenRef:  EncodeID(tokenID),
		Name:      StrEncode(fullName),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   EncodeID(userID),
			ExpiresAt: jwt.NewNumericDate(m.now().Add(ttl)),
		},
	}
	signed, err := GenerateToken(claims, m.AccessSecret, m.Algorithm)
	if err != nil {
		return "", 0, err
	}
	return signed, ttl, nil
}

func (m JWTManager) IssueRefreshToken(userID uint, refreshKey string, accessKey string) (string, time.Duration, error) {
	ttl := m.RefreshTokenTTL
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	claims := RefreshClaims{
		RefreshKey: refreshKey,
		AccessKey:  accessKey,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   EncodeID(userID),
			ExpiresAt: jwt.NewNumericDate(m.now().Add(ttl)),
		},
	}
	signed, err := GenerateToken(claims, m.RefreshSecret, m.Algorithm)
	if err != nil {
		return "", 0, err
	}
	return signed, ttl, nil
}

func (m JWTManager) ParseAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := GetTokenPayload(tokenString, claims, m.AccessSecret, m.Algorithm, m.Now); err != nil {
		return nil, err
	}
	if claims.AccessKey == "" || claims.Subject == "" || claims.TokenRef == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m JWTManager) ParseRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := GetTokenPayload(tokenString, claims, m.RefreshSecret, m.Algorithm, m.Now); err != nil {
		return nil, err
	}
	if claims.RefreshKey == "" || claims.AccessKey == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m JWTManager) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}
