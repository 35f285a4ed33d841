package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/toka-os/toka-core/internal/types"
)

// tokenTyp is the header "typ" value the reference implementation
// stamps on issued tokens, distinguishing them from general-purpose
// JWTs at a glance.
const tokenTyp = "CAP"

// HS256Validator is the reference capability token implementation:
// symmetric HMAC-SHA256 over a compact header.claims.signature token,
// constant-time signature comparison (delegated to golang-jwt, which
// uses hmac.Equal internally), and the claims-shape invariants of
// spec.md §3 re-checked after the library's own exp/iat/nbf pass.
//
// A single secret serves both signing and verification; callers that
// only validate (the kernel) and callers that only issue (an operator
// CLI) can each hold just the half of the interface they use.
type HS256Validator struct {
	secret []byte
	log    *slog.Logger
	clock  func() time.Time
}

// NewHS256Validator builds a validator/issuer over secret. secret must
// not be empty; callers are expected to source it from a vault or
// environment, never a literal.
func NewHS256Validator(secret []byte, log *slog.Logger) (*HS256Validator, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: secret must not be empty")
	}
	if log == nil {
		log = slog.Default()
	}
	return &HS256Validator{secret: secret, log: log, clock: time.Now}, nil
}

var _ Validator = (*HS256Validator)(nil)
var _ Issuer = (*HS256Validator)(nil)

// Issue signs claims into a compact token. The caller supplies IAT/EXP
// already populated; Issue does not stamp IAT itself so that tests can
// construct tokens with arbitrary clocks.
func (v *HS256Validator) Issue(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["typ"] = tokenTyp
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies token, enforcing both the JWT-level
// checks (three segments, valid signature, exp/iat/nbf) and the
// capability-specific claim invariants of spec.md §3. Every failure
// path is logged once at Warn level with the classification and
// elapsed time before returning; no caller-visible detail beyond the
// fact of rejection is produced.
func (v *HS256Validator) Validate(token string) (Claims, error) {
	start := v.clock()
	claims, kind, reason := v.validate(token)
	if reason != "" {
		v.log.LogAttrs(context.Background(), slog.LevelWarn, "capability token rejected",
			slog.String("kind", string(kind)),
			slog.String("reason", reason),
			slog.Duration("elapsed", v.clock().Sub(start)),
		)
		return Claims{}, newError(kind, "%s", reason)
	}
	return claims, nil
}

func (v *HS256Validator) validate(token string) (Claims, ErrorKind, string) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, v.keyFunc, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, Expired, err.Error()
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return Claims{}, NotYetValid, err.Error()
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, SignatureInvalid, err.Error()
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Claims{}, Malformed, err.Error()
		default:
			return Claims{}, Malformed, err.Error()
		}
	}
	if !parsed.Valid {
		return Claims{}, Malformed, "token marked invalid by parser"
	}
	if kind, reason := validateClaimShape(claims); reason != "" {
		return Claims{}, kind, reason
	}
	return claims, "", ""
}

func (v *HS256Validator) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("auth: unexpected signing method %q", token.Header["alg"])
	}
	return v.secret, nil
}

// validateClaimShape re-checks the capability-specific bounds that the
// generic JWT library has no notion of: subject parseability, the
// permission set's cardinality and per-entry length, vault length, and
// the token lifetime ceiling of spec.md §3 (<= 86,400s between iat and
// exp).
func validateClaimShape(c Claims) (ErrorKind, string) {
	if c.Sub == "" {
		return ClaimsInvalid, "sub must not be empty"
	}
	if _, err := c.Subject(); err != nil {
		return ClaimsInvalid, "sub is not a valid entity id"
	}
	if len(c.Vault) > types.MaxVaultLen {
		return ClaimsInvalid, fmt.Sprintf("vault exceeds maximum length of %d bytes", types.MaxVaultLen)
	}
	if len(c.Permissions) > types.MaxPermissionsCount {
		return ClaimsInvalid, fmt.Sprintf("permissions exceeds maximum count of %d", types.MaxPermissionsCount)
	}
	for _, p := range c.Permissions {
		if p == "" || len(p) > types.MaxPermissionStringLen {
			return ClaimsInvalid, "permission entry out of bounds"
		}
	}
	if c.EXP <= c.IAT {
		return ClaimsInvalid, "exp must be after iat"
	}
	if c.EXP-c.IAT > types.MaxTokenLifetimeSecs {
		return ClaimsInvalid, fmt.Sprintf("token lifetime exceeds maximum of %d seconds", types.MaxTokenLifetimeSecs)
	}
	return "", ""
}
