package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/skillswap/chat-server/internal/errors"
	"github.com/skillswap/chat-server/internal/model"
)

// Claims is the payload carried by an access token.
type Claims struct {
	UserID string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens and yields the principal they name.
// It has no side effects and is safe for concurrent use.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// WithClock replaces the time source used for expiry checks.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Verify returns the token's principal, or an Unauthenticated AppError whose
// AuthReason tells the failure apart.
func (v *Verifier) Verify(credential string) (*model.Principal, error) {
	token := StripBearer(credential)
	if token == "" {
		return nil, apperrors.Unauthenticated(apperrors.AuthReasonMissing, nil)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, apperrors.Unauthenticated(classify(err), err)
	}
	if !parsed.Valid {
		return nil, apperrors.Unauthenticated(apperrors.AuthReasonSignatureInvalid, jwt.ErrSignatureInvalid)
	}

	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	if id == "" {
		return nil, apperrors.Unauthenticated(apperrors.AuthReasonMalformed, errors.New("token has no subject"))
	}

	return &model.Principal{
		ID:    id,
		Name:  claims.Name,
		Email: claims.Email,
	}, nil
}

func classify(err error) apperrors.AuthFailureReason {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return apperrors.AuthReasonMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.AuthReasonExpired
	default:
		// bad signature, wrong algorithm, wrong issuer, not yet valid
		return apperrors.AuthReasonSignatureInvalid
	}
}

// IssueToken signs an access token for principal valid for ttl.
func IssueToken(secret, issuer string, principal model.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: principal.ID,
		Name:   principal.Name,
		Email:  principal.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// StripBearer removes an optional "Bearer " prefix.
func StripBearer(credential string) string {
	credential = strings.TrimSpace(credential)
	if len(credential) >= 7 && strings.EqualFold(credential[:7], "bearer ") {
		return strings.TrimSpace(credential[7:])
	}
	return credential
}

// ExtractToken reads a credential from the Authorization header or, for
// browser websocket clients that cannot set headers, the token query parameter.
func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		return StripBearer(authHeader)
	}
	return r.URL.Query().Get("token")
}
