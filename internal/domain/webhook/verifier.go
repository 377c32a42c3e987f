package webhook

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
	"time"

	"github.com/golang-jwt/jwt/v5"

	"soldo/internal/infrastructure/bankfeed"
)

// ErrVerificationFailed wraps every signature rejection. The transport
// layer maps it to a 401; the provider does not retry rejections.
var ErrVerificationFailed = errors.New("webhook verification failed")

// maxSignatureAge bounds how old a signed delivery may be before it is
// rejected as a possible replay.
const maxSignatureAge = 5 * time.Minute

// Verifier checks the authenticity of inbound webhook deliveries. The
// provider signs each delivery with a detached ES256 JWT carried in a
// request header; the signed claims embed a hash of the exact body.
type Verifier struct {
	keys bankfeed.ClientInterface
	now  func() time.Time
}

// NewVerifier creates a verifier fetching keys through the provider client.
func NewVerifier(keys bankfeed.ClientInterface) *Verifier {
	return &Verifier{keys: keys, now: time.Now}
}

// Verify validates the signature header against the raw request body.
// Any failure at any step is a rejection wrapping ErrVerificationFailed.
func (v *Verifier) Verify(ctx context.Context, signatureJWT string, body []byte) error {
	if signatureJWT == "" {
		return fmt.Errorf("%w: missing signature header", ErrVerificationFailed)
	}

	token, err := jwt.Parse(signatureJWT, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodES256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm %q", token.Method.Alg())
		}
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("missing kid header")
		}
		key, err := v.keys.GetWebhookVerificationKey(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch verification key: %w", err)
		}
		return publicKeyFromJWK(key)
	}, jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("%w: unexpected claims type", ErrVerificationFailed)
	}

	issuedAt, err := claims.GetIssuedAt()
	if err != nil || issuedAt == nil {
		return fmt.Errorf("%w: missing iat claim", ErrVerificationFailed)
	}
	if v.now().Sub(issuedAt.Time) > maxSignatureAge {
		return fmt.Errorf("%w: signature too old", ErrVerificationFailed)
	}

	claimed, ok := claims["request_body_sha256"].(string)
	if !ok || claimed == "" {
		return fmt.Errorf("%w: missing request_body_sha256 claim", ErrVerificationFailed)
	}
	sum := sha256.Sum256(body)
	computed := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(claimed), []byte(computed)) != 1 {
		return fmt.Errorf("%w: body hash mismatch", ErrVerificationFailed)
	}

	return nil
}

// publicKeyFromJWK builds an ECDSA public key from the provider's JWK.
func publicKeyFromJWK(key *bankfeed.VerificationKey) (*ecdsa.PublicKey, error) {
	if key.Kty != "EC" || key.Crv != "P-256" {
		return nil, fmt.Errorf("unsupported key type %s/%s", key.Kty, key.Crv)
	}
	xBytes, err := base64.RawURLEncoding.DecodeString(key.X)
	if err != nil {
		return nil, fmt.Errorf("invalid key coordinate x: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(key.Y)
	if err != nil {
		return nil, fmt.Errorf("invalid key coordinate y: %w", err)
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
