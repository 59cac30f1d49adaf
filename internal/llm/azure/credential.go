package azure

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// CredentialProvider supplies bearer tokens for Azure resource scopes. It is
// an explicit dependency of the adapter so tests can substitute fakes.
type CredentialProvider interface {
	Token(ctx context.Context, scope string) (string, error)
}

// DefaultCredential resolves tokens through the ambient Azure identity chain
// (managed identity, workload identity, az CLI, environment). Construct it
// once per process; token refresh is delegated to the underlying credential.
type DefaultCredential struct {
	cred *azidentity.DefaultAzureCredential

	mu    sync.Mutex
	cache map[string]azcore.AccessToken
}

// NewDefaultCredential builds the ambient credential chain.
func NewDefaultCredential() (*DefaultCredential, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azure credential chain: %w", err)
	}
	return &DefaultCredential{
		cred:  cred,
		cache: make(map[string]azcore.AccessToken),
	}, nil
}

// Token returns a valid bearer token for the scope, refreshing when the
// cached one is within two minutes of expiry.
func (c *DefaultCredential) Token(ctx context.Context, scope string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tk, ok := c.cache[scope]; ok && time.Until(tk.ExpiresOn) > 2*time.Minute {
		return tk.Token, nil
	}

	tk, err := c.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{scope}})
	if err != nil {
		return "", fmt.Errorf("acquire token for %s: %w", scope, err)
	}
	c.cache[scope] = tk
	return tk.Token, nil
}

// BearerTransport returns an http.RoundTripper that injects bearer tokens
// for the given scope on every request.
func BearerTransport(cred CredentialProvider, scope string) http.RoundTripper {
	return &bearerTransport{base: http.DefaultTransport, cred: cred, scope: scope}
}

// bearerTransport injects a freshly resolved bearer token into each request.
type bearerTransport struct {
	base  http.RoundTripper
	cred  CredentialProvider
	scope string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.cred.Token(req.Context(), t.scope)
	if err != nil {
		return nil, fmt.Errorf("resolve credential: %w", err)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(clone)
}
