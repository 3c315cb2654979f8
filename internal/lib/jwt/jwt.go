package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gymweb/internal/domain/models"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TypeAccess  = "ACCESS"
	TypeRefresh = "REFRESH"
)

var (
	ErrMalformed     = errors.New("malformed token")
	ErrMissingClaim  = errors.New("missing claim")
	ErrInvalidClaim  = errors.New("invalid claim")
	errEmptyToken    = errors.New("empty token")
	errUnknownRole   = errors.New("unknown role")
	errExpiryOrdered = errors.New("exp precedes iat")
)

// DecodeError is returned for any token whose payload cannot be turned into claims.
type DecodeError struct {
	Reason error
}

func (e *DecodeError) Error() string {
	return "decode token: " + e.Reason.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Reason
}

func decodeErr(format string, args ...any) error {
	return &DecodeError{Reason: fmt.Errorf(format, args...)}
}

// payload mirrors the claim set written by the auth service.
type payload struct {
	UserID           *int64 `json:"userId"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	Role             string `json:"role"`
	ProfileCompleted bool   `json:"profileCompleted"`
	Type             string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

var parser = jwt.NewParser(jwt.WithoutClaimsValidation())

func parseUnverified(token string) (*payload, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &DecodeError{Reason: errEmptyToken}
	}

	var p payload
	if _, _, err := parser.ParseUnverified(token, &p); err != nil {
		return nil, &DecodeError{Reason: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	return &p, nil
}

// DecodeAccess decodes the payload segment of an access token without
// verifying its signature and validates the claim schema.
func DecodeAccess(token string) (models.Claims, error) {
	p, err := parseUnverified(token)
	if err != nil {
		return models.Claims{}, err
	}

	if p.ExpiresAt == nil {
		return models.Claims{}, decodeErr("%w: exp", ErrMissingClaim)
	}
	if p.IssuedAt == nil {
		return models.Claims{}, decodeErr("%w: iat", ErrMissingClaim)
	}
	if p.ExpiresAt.Before(p.IssuedAt.Time) {
		return models.Claims{}, decodeErr("%w: %v", ErrInvalidClaim, errExpiryOrdered)
	}
	if p.UserID == nil {
		return models.Claims{}, decodeErr("%w: userId", ErrMissingClaim)
	}
	if *p.UserID <= 0 {
		return models.Claims{}, decodeErr("%w: userId=%d", ErrInvalidClaim, *p.UserID)
	}
	if strings.TrimSpace(p.Email) == "" {
		return models.Claims{}, decodeErr("%w: email", ErrMissingClaim)
	}
	if p.Type != "" && p.Type != TypeAccess {
		return models.Claims{}, decodeErr("%w: type=%s", ErrInvalidClaim, p.Type)
	}
	role, ok := models.ParseRole(p.Role)
	if !ok {
		return models.Claims{}, decodeErr("%w: %v %q", ErrInvalidClaim, errUnknownRole, p.Role)
	}

	return models.Claims{
		UserID:           *p.UserID,
		Email:            p.Email,
		Name:             p.Name,
		Role:             role,
		ProfileCompleted: p.ProfileCompleted,
		IssuedAt:         p.IssuedAt.Time,
		ExpiresAt:        p.ExpiresAt.Time,
	}, nil
}

// DecodeExpiry returns the exp claim of any token, including refresh tokens.
func DecodeExpiry(token string) (time.Time, error) {
	p, err := parseUnverified(token)
	if err != nil {
		return time.Time{}, err
	}
	if p.ExpiresAt == nil {
		return time.Time{}, decodeErr("%w: exp", ErrMissingClaim)
	}
	return p.ExpiresAt.Time, nil
}

// NewToken signs an access token for user. The gateway never verifies
// signatures; the key only matters to the auth service.
func NewToken(user models.User, issuedAt time.Time, duration time.Duration, key []byte) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)

	claims := token.Claims.(jwt.MapClaims)
	claims["sub"] = user.Email
	claims["userId"] = user.ID
	claims["email"] = user.Email
	claims["name"] = user.Name
	claims["role"] = string(user.Role)
	claims["profileCompleted"] = user.ProfileCompleted
	claims["type"] = TypeAccess
	claims["iat"] = issuedAt.Unix()
	claims["exp"] = issuedAt.Add(duration).Unix()

	tokenString, err := token.SignedString(key)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// NewRefreshToken signs a refresh token carrying only the subject and expiry.
func NewRefreshToken(user models.User, issuedAt time.Time, duration time.Duration, key []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    user.Email,
		"userId": user.ID,
		"type":   TypeRefresh,
		"iat":    issuedAt.Unix(),
		"exp":    issuedAt.Add(duration).Unix(),
	})

	return token.SignedString(key)
}
