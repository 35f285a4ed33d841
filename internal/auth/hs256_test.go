package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toka-os/toka-core/internal/types"
)

func newValidator(t *testing.T) *HS256Validator {
	t.Helper()
	v, err := NewHS256Validator([]byte("test-secret-key-do-not-use-in-prod"), nil)
	require.NoError(t, err)
	return v
}

func validClaims() Claims {
	now := time.Now()
	return Claims{
		Sub:         types.NewEntityID().String(),
		Vault:       "default",
		Permissions: []string{"task.schedule", "agent.spawn"},
		IAT:         now.Unix(),
		EXP:         now.Add(time.Hour).Unix(),
		JTI:         "test-jti-1",
	}
}

func TestHS256RoundTrip(t *testing.T) {
	v := newValidator(t)
	claims := validClaims()

	token, err := v.Issue(claims)
	require.NoError(t, err)

	got, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, claims.Sub, got.Sub)
	assert.Equal(t, claims.Permissions, got.Permissions)
	assert.True(t, got.HasPermission("task.schedule"))
	assert.False(t, got.HasPermission("agent.terminate"))
}

func TestHS256RejectsTamperedSignature(t *testing.T) {
	v := newValidator(t)
	token, err := v.Issue(validClaims())
	require.NoError(t, err)

	// Replace the first signature character: it carries six full bits
	// of the MAC, so the decoded signature always changes.
	sigStart := strings.LastIndex(token, ".") + 1
	replacement := "A"
	if token[sigStart] == 'A' {
		replacement = "B"
	}
	tampered := token[:sigStart] + replacement + token[sigStart+1:]
	_, err = v.Validate(tampered)
	require.Error(t, err)
	var authErr *Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, SignatureInvalid, authErr.Kind)
}

func TestHS256RejectsWrongSecret(t *testing.T) {
	v1 := newValidator(t)
	v2, err := NewHS256Validator([]byte("a-totally-different-secret"), nil)
	require.NoError(t, err)

	token, err := v1.Issue(validClaims())
	require.NoError(t, err)

	_, err = v2.Validate(token)
	require.Error(t, err)
}

func TestHS256RejectsExpired(t *testing.T) {
	v := newValidator(t)
	claims := validClaims()
	claims.IAT = time.Now().Add(-2 * time.Hour).Unix()
	claims.EXP = time.Now().Add(-time.Hour).Unix()

	token, err := v.Issue(claims)
	require.NoError(t, err)

	_, err = v.Validate(token)
	require.Error(t, err)
	var authErr *Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, Expired, authErr.Kind)
}

func TestHS256RejectsNotYetValid(t *testing.T) {
	v := newValidator(t)
	claims := validClaims()
	claims.IAT = time.Now().Add(time.Hour).Unix()
	claims.EXP = time.Now().Add(2 * time.Hour).Unix()

	token, err := v.Issue(claims)
	require.NoError(t, err)

	_, err = v.Validate(token)
	require.Error(t, err)
}

func TestHS256RejectsMalformed(t *testing.T) {
	v := newValidator(t)

	_, err := v.Validate("not-even-close-to-a-token")
	require.Error(t, err)
	var authErr *Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, Malformed, authErr.Kind)
}

func TestHS256RejectsOversizeLifetime(t *testing.T) {
	v := newValidator(t)
	claims := validClaims()
	claims.IAT = time.Now().Unix()
	claims.EXP = claims.IAT + types.MaxTokenLifetimeSecs + 1

	token, err := v.Issue(claims)
	require.NoError(t, err)

	_, err = v.Validate(token)
	require.Error(t, err)
	var authErr *Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, ClaimsInvalid, authErr.Kind)
}

func TestHS256RejectsTooManyPermissions(t *testing.T) {
	v := newValidator(t)
	claims := validClaims()
	claims.Permissions = make([]string, types.MaxPermissionsCount+1)
	for i := range claims.Permissions {
		claims.Permissions[i] = "p"
	}

	token, err := v.Issue(claims)
	require.NoError(t, err)

	_, err = v.Validate(token)
	require.Error(t, err)
}

func TestHS256RejectsUnparseableSubject(t *testing.T) {
	v := newValidator(t)
	claims := validClaims()
	claims.Sub = "not-a-uuid"

	token, err := v.Issue(claims)
	require.NoError(t, err)

	_, err = v.Validate(token)
	require.Error(t, err)
}

func TestHS256RejectsOversizeVault(t *testing.T) {
	v := newValidator(t)
	claims := validClaims()
	claims.Vault = strings.Repeat("v", types.MaxVaultLen+1)

	token, err := v.Issue(claims)
	require.NoError(t, err)

	_, err = v.Validate(token)
	require.Error(t, err)
}

func TestNewHS256ValidatorRejectsEmptySecret(t *testing.T) {
	_, err := NewHS256Validator(nil, nil)
	require.Error(t, err)
}
