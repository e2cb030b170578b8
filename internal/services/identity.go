package services

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

const GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// Identity is what an identity provider asserts about the signed-in person.
type Identity struct {
	Name    string
	Email   string
	Picture string
}

type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (Identity, error)
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// GoogleVerifier checks Google id tokens against the published key set. The
// key set is fetched on first use and refreshed in the background.
type GoogleVerifier struct {
	ClientID string
	JWKSURL  string

	mu   sync.Mutex
	jwks *keyfunc.JWKS
}

func NewGoogleVerifier(clientID, jwksURL string) *GoogleVerifier {
	if jwksURL == "" {
		jwksURL = GoogleJWKSURL
	}
	return &GoogleVerifier{ClientID: clientID, JWKSURL: jwksURL}
}

func (v *GoogleVerifier) keys() (*keyfunc.JWKS, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.jwks != nil {
		return v.jwks, nil
	}
	jwks, err := keyfunc.Get(v.JWKSURL, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Printf("jwks refresh failed: %v", err)
		},
	})
	if err != nil {
		return nil, err
	}
	v.jwks = jwks
	return jwks, nil
}

func (v *GoogleVerifier) Verify(_ context.Context, idToken string) (Identity, error) {
	if strings.TrimSpace(v.ClientID) == "" {
		return Identity{}, ErrExternalService("Google sign-in is not configured")
	}
	jwks, err := v.keys()
	if err != nil {
		externalFailures.WithLabelValues("identity").Inc()
		log.Printf("jwks fetch failed: %v", err)
		return Identity{}, ErrExternalService("Identity provider unavailable")
	}
	claims := &googleClaims{}
	token, err := jwt.ParseWithClaims(idToken, claims, jwks.Keyfunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.ClientID),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidAssertion("Invalid Google token")
	}
	if !validGoogleIssuer(claims.Issuer) {
		return Identity{}, ErrInvalidAssertion("Invalid Google token issuer")
	}
	if claims.Email == "" || !claims.EmailVerified {
		return Identity{}, ErrInvalidAssertion("Google account email is not verified")
	}
	return Identity{Name: claims.Name, Email: claims.Email, Picture: claims.Picture}, nil
}

// Close stops the background key refresh.
func (v *GoogleVerifier) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func validGoogleIssuer(issuer string) bool {
	for _, candidate := range googleIssuers {
		if issuer == candidate {
			return true
		}
	}
	return false
}
