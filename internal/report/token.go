// Package report issues and verifies the signed tokens that let a client ask
// for a bug report about a link it recognized earlier, without the server
// keeping any state between the two requests.
package report

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/embedfixer/embedfixer/internal/embed"
)

const issuer = "embedfix"

// DefaultTTL is how long a report token stays valid when none is configured
const DefaultTTL = 24 * time.Hour

var (
	ErrInvalidToken = errors.New("invalid report token")
	ErrTokenExpired = errors.New("report token expired")
)

// Claims carries the parts of a recognition a report is rendered from
type Claims struct {
	Platform    embed.Platform `json:"platform"`
	OriginalURL string         `json:"original_url"`
	ContentID   string         `json:"content_id"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 report tokens
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner creates a signer. A zero ttl means DefaultTTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Signer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the lifetime of issued tokens
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for a recognized link
func (s *Signer) Issue(r *embed.Result) (string, error) {
	now := s.now()
	claims := &Claims{
		Platform:    r.Platform,
		OriginalURL: r.OriginalURL,
		ContentID:   r.ContentID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse verifies tokenString and returns the report input it carries.
// Expired tokens yield ErrTokenExpired, anything else wrong ErrInvalidToken.
func (s *Signer) Parse(tokenString string) (embed.ReportInput, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return embed.ReportInput{}, ErrTokenExpired
		}
		return embed.ReportInput{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Platform == "" || claims.ContentID == "" {
		return embed.ReportInput{}, ErrInvalidToken
	}

	return embed.ReportInput{
		Platform:    claims.Platform,
		OriginalURL: claims.OriginalURL,
		ContentID:   claims.ContentID,
	}, nil
}

// Render verifies tokenString and renders its report
func (s *Signer) Render(tokenString string) (embed.Report, error) {
	in, err := s.Parse(tokenString)
	if err != nil {
		return embed.Report{}, err
	}
	return embed.RenderReport(in), nil
}
