package memory

import (
	// Standard Library Imports
	"context"
	"sync"
	"time"

	// External Imports
	"github.com/google/uuid"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

// TokenManager provides an in-memory implementation of oidc.TokenManager.
// One mutex guards the three token maps so cascade operations observe a
// consistent view.
type TokenManager struct {
	mu            sync.Mutex
	codes         map[string]oidc.AuthorizationCode
	accessTokens  map[string]oidc.Token
	refreshTokens map[string]oidc.Token
}

// Configure implements oidc.Configure.
func (t *TokenManager) Configure(_ context.Context) error {
	return nil
}

// CreateAuthorizationCode stores a new authorization code.
func (t *TokenManager) CreateAuthorizationCode(_ context.Context, code oidc.AuthorizationCode) (result oidc.AuthorizationCode, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	if code.CreateTime == 0 {
		code.CreateTime = time.Now().Unix()
	}
	if _, exists := t.codes[code.Signature]; exists {
		return result, oidc.ErrResourceExists
	}

	t.codes[code.Signature] = code
	return code, nil
}

// GetAuthorizationCode returns a stored authorization code.
func (t *TokenManager) GetAuthorizationCode(_ context.Context, signature string) (result oidc.AuthorizationCode, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	code, ok := t.codes[signature]
	if !ok {
		return result, oidc.ErrNotFound
	}
	return code, nil
}

// ConsumeAuthorizationCode atomically marks the code used. The second and
// later callers receive ErrCodeAlreadyUsed together with the stored record so
// the caller can run the containment cascade.
func (t *TokenManager) ConsumeAuthorizationCode(_ context.Context, signature string) (result oidc.AuthorizationCode, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	code, ok := t.codes[signature]
	if !ok {
		return result, oidc.ErrNotFound
	}
	if code.Used {
		return code, oidc.ErrCodeAlreadyUsed
	}

	code.Used = true
	t.codes[signature] = code
	return code, nil
}

// DeleteAuthorizationCode removes a stored authorization code.
func (t *TokenManager) DeleteAuthorizationCode(_ context.Context, signature string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.codes[signature]; !ok {
		return oidc.ErrNotFound
	}
	delete(t.codes, signature)
	return nil
}

// CreateAccessToken stores a new access token.
func (t *TokenManager) CreateAccessToken(_ context.Context, token oidc.Token) (result oidc.Token, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.create(t.accessTokens, token)
}

// GetAccessToken returns a stored access token.
func (t *TokenManager) GetAccessToken(_ context.Context, signature string) (result oidc.Token, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	token, ok := t.accessTokens[signature]
	if !ok {
		return result, oidc.ErrNotFound
	}
	return token, nil
}

// RevokeAccessToken deactivates a stored access token.
func (t *TokenManager) RevokeAccessToken(_ context.Context, signature string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.revoke(t.accessTokens, signature)
}

// DeleteAccessToken removes a stored access token.
func (t *TokenManager) DeleteAccessToken(_ context.Context, signature string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.accessTokens[signature]; !ok {
		return oidc.ErrNotFound
	}
	delete(t.accessTokens, signature)
	return nil
}

// CreateRefreshToken stores a new refresh token.
func (t *TokenManager) CreateRefreshToken(_ context.Context, token oidc.Token) (result oidc.Token, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.create(t.refreshTokens, token)
}

// GetRefreshToken returns a stored refresh token.
func (t *TokenManager) GetRefreshToken(_ context.Context, signature string) (result oidc.Token, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	token, ok := t.refreshTokens[signature]
	if !ok {
		return result, oidc.ErrNotFound
	}
	return token, nil
}

// RevokeRefreshToken deactivates a stored refresh token.
func (t *TokenManager) RevokeRefreshToken(_ context.Context, signature string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.revoke(t.refreshTokens, signature)
}

// DeleteRefreshToken removes a stored refresh token.
func (t *TokenManager) DeleteRefreshToken(_ context.Context, signature string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.refreshTokens[signature]; !ok {
		return oidc.ErrNotFound
	}
	delete(t.refreshTokens, signature)
	return nil
}

// RotateRefreshToken atomically retires the presented refresh token and
// stores its replacement.
func (t *TokenManager) RotateRefreshToken(_ context.Context, oldSignature string, replacement oidc.Token) (result oidc.Token, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old, ok := t.refreshTokens[oldSignature]
	if !ok {
		return result, oidc.ErrNotFound
	}
	if !old.Active {
		return result, oidc.ErrTokenInactive
	}

	old.Active = false
	t.refreshTokens[oldSignature] = old

	return t.create(t.refreshTokens, replacement)
}

// RevokeByGrantID deactivates every access and refresh token of the grant
// lineage.
func (t *TokenManager) RevokeByGrantID(_ context.Context, grantID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	revokeWhere(t.accessTokens, func(token oidc.Token) bool { return token.GrantID == grantID })
	revokeWhere(t.refreshTokens, func(token oidc.Token) bool { return token.GrantID == grantID })
	return nil
}

// RevokeByIssuanceID deactivates the sibling tokens minted together in a
// single issuance event.
func (t *TokenManager) RevokeByIssuanceID(_ context.Context, issuanceID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	revokeWhere(t.accessTokens, func(token oidc.Token) bool { return token.IssuanceID == issuanceID })
	revokeWhere(t.refreshTokens, func(token oidc.Token) bool { return token.IssuanceID == issuanceID })
	return nil
}

// RevokeByCodeSignature deactivates every token descended from the given
// authorization code.
func (t *TokenManager) RevokeByCodeSignature(_ context.Context, codeSignature string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	revokeWhere(t.accessTokens, func(token oidc.Token) bool { return token.CodeSignature == codeSignature })
	revokeWhere(t.refreshTokens, func(token oidc.Token) bool { return token.CodeSignature == codeSignature })
	return nil
}

func (t *TokenManager) create(tokens map[string]oidc.Token, token oidc.Token) (result oidc.Token, err error) {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreateTime == 0 {
		token.CreateTime = time.Now().Unix()
	}
	if _, exists := tokens[token.Signature]; exists {
		return result, oidc.ErrResourceExists
	}

	tokens[token.Signature] = token
	return token, nil
}

func (t *TokenManager) revoke(tokens map[string]oidc.Token, signature string) error {
	token, ok := tokens[signature]
	if !ok {
		return oidc.ErrNotFound
	}
	token.Active = false
	tokens[signature] = token
	return nil
}

func revokeWhere(tokens map[string]oidc.Token, match func(oidc.Token) bool) {
	for signature, token := range tokens {
		if match(token) {
			token.Active = false
			tokens[signature] = token
		}
	}
}
