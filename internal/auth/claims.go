// Package auth validates capability tokens: claims-bearing, bounded
// lifetime, bounded permission set, subject-bound to a message origin.
// Validation is pure computation plus a single clock read; nothing in
// this package performs network I/O.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/toka-os/toka-core/internal/types"
)

// Claims is the capability token payload (spec.md §3). Field names
// mirror the wire JSON exactly. The reference validator does not reject
// a token whose claims carry other fields: they are dropped on decode,
// so no field outside this set influences an authorization decision.
type Claims struct {
	Sub         string   `json:"sub"`
	Vault       string   `json:"vault"`
	Permissions []string `json:"permissions"`
	IAT         int64    `json:"iat"`
	EXP         int64    `json:"exp"`
	JTI         string   `json:"jti"`
}

// HasPermission reports whether perm is present in the claim set.
// Permission strings are case-sensitive ASCII (spec.md §9 open
// question, resolved).
func (c Claims) HasPermission(perm string) bool {
	for _, p := range c.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Subject parses Sub as an EntityID. Used by the kernel for subject
// binding (spec.md §4.4 step 3).
func (c Claims) Subject() (types.EntityID, error) {
	return types.ParseEntityID(c.Sub)
}

// --- jwt.Claims interface implementation (github.com/golang-jwt/jwt/v5) ---
//
// golang-jwt/jwt/v5 validates exp/iat/nbf itself when these accessors
// are implemented; the claims-level invariants beyond what the library
// checks (permission cardinality, vault shape, sub parseability, the
// iat<exp and 24h-lifetime bounds) are re-verified explicitly in
// hs256.go after the library's structural/signature checks pass.

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.EXP, 0)), nil
}

func (c Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.IAT, 0)), nil
}

func (c Claims) GetNotBefore() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.IAT, 0)), nil
}

func (c Claims) GetIssuer() (string, error) {
	return "", nil
}

func (c Claims) GetSubject() (string, error) {
	return c.Sub, nil
}

func (c Claims) GetAudience() (jwt.ClaimStrings, error) {
	return nil, nil
}
