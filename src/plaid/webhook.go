package plaid

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/plaid/plaid-go/v41/plaid"
)

// Webhook verification follows
// https://plaid.com/docs/api/webhooks/webhook-verification/

var ErrInvalidWebhook = errors.New("invalid plaid webhook")

// KeyFetcher resolves a Plaid verification key id to its public key.
type KeyFetcher func(ctx context.Context, kid string) (*ecdsa.PublicKey, error)

type WebhookVerifier struct {
	fetch  KeyFetcher
	maxAge time.Duration
	now    func() time.Time

	mu   sync.Mutex
	keys map[string]*ecdsa.PublicKey
}

func NewWebhookVerifier(fetch KeyFetcher) *WebhookVerifier {
	return &WebhookVerifier{
		fetch:  fetch,
		maxAge: 5 * time.Minute,
		now:    time.Now,
		keys:   make(map[string]*ecdsa.PublicKey),
	}
}

// APIKeyFetcher fetches keys with /webhook_verification_key/get.
func APIKeyFetcher(client *plaid.APIClient) KeyFetcher {
	return func(ctx context.Context, kid string) (*ecdsa.PublicKey, error) {
		req := *plaid.NewWebhookVerificationKeyGetRequest(kid)
		resp, _, err := client.PlaidApi.WebhookVerificationKeyGet(ctx).
			WebhookVerificationKeyGetRequest(req).
			Execute()
		if err != nil {
			return nil, err
		}
		key := resp.GetKey()
		return jwkToECDSAPublicKey(&key)
	}
}

func jwkToECDSAPublicKey(jwk *plaid.JWKPublicKey) (*ecdsa.PublicKey, error) {
	if jwk == nil || jwk.X == "" || jwk.Y == "" || jwk.Kty != "EC" || jwk.Crv != "P-256" {
		return nil, errors.New("invalid/unsupported JWK")
	}
	xBytes, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		return nil, fmt.Errorf("decode x: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(jwk.Y)
	if err != nil {
		return nil, fmt.Errorf("decode y: %w", err)
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}

func (v *WebhookVerifier) key(ctx context.Context, kid string) (*ecdsa.PublicKey, error) {
	v.mu.Lock()
	key, ok := v.keys[kid]
	v.mu.Unlock()
	if ok {
		return key, nil
	}

	key, err := v.fetch(ctx, kid)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	v.keys[kid] = key
	v.mu.Unlock()
	return key, nil
}

// Verify checks the Plaid-Verification token against body: an ES256
// signature by a Plaid key, issued less than five minutes ago, over a body
// with the given SHA-256.
func (v *WebhookVerifier) Verify(ctx context.Context, body []byte, token string) error {
	if token == "" {
		return fmt.Errorf("%w: missing Plaid-Verification header", ErrInvalidWebhook)
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithLeeway(30*time.Second),
		jwt.WithTimeFunc(v.now),
	)

	unverified, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return fmt.Errorf("%w: missing kid", ErrInvalidWebhook)
	}
	pubKey, err := v.key(ctx, kid)
	if err != nil {
		return fmt.Errorf("verification key %s: %w", kid, err)
	}

	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return pubKey, nil
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return fmt.Errorf("%w: missing iat", ErrInvalidWebhook)
	}
	if v.now().Sub(iat.Time) > v.maxAge {
		return fmt.Errorf("%w: token too old", ErrInvalidWebhook)
	}

	wantHash, _ := claims["request_body_sha256"].(string)
	if wantHash == "" {
		return fmt.Errorf("%w: missing request_body_sha256", ErrInvalidWebhook)
	}
	sum := sha256.Sum256(body)
	gotHex := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(gotHex), []byte(strings.ToLower(wantHash))) != 1 {
		return fmt.Errorf("%w: body hash mismatch", ErrInvalidWebhook)
	}
	return nil
}
