package crypto

import (
	// Standard Library Imports
	"context"
	"net/http"
	"time"

	// External Imports
	"github.com/go-jose/go-jose/v3"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/pkg/errors"
)

// KeyFetcher retrieves remote JWKS documents with a bounded timeout. A fetch
// failure is a hard validation failure for the caller, never a retry loop.
type KeyFetcher struct {
	// Client is the HTTP client used for outbound calls.
	Client *http.Client
	// Timeout caps each fetch, applied on top of the caller's context.
	Timeout time.Duration
}

// NewKeyFetcher returns a fetcher with the given timeout applied to a
// dedicated HTTP client.
func NewKeyFetcher(timeout time.Duration) *KeyFetcher {
	return &KeyFetcher{
		Client:  &http.Client{Timeout: timeout},
		Timeout: timeout,
	}
}

// FetchJWKS downloads and parses the JWKS document at the given URI,
// converting it into the go-jose key set the verifier consumes.
func (f *KeyFetcher) FetchJWKS(ctx context.Context, uri string) (*jose.JSONWebKeySet, error) {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	set, err := jwk.Fetch(ctx, uri, jwk.WithHTTPClient(f.Client))
	if err != nil {
		return nil, errors.Wrapf(err, "fetching jwks from %s", uri)
	}

	converted := &jose.JSONWebKeySet{}
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if !ok {
			continue
		}

		var raw interface{}
		if err = key.Raw(&raw); err != nil {
			return nil, errors.Wrap(err, "exporting jwk")
		}

		alg := ""
		if key.Algorithm() != nil {
			alg = key.Algorithm().String()
		}
		converted.Keys = append(converted.Keys, jose.JSONWebKey{
			Key:       raw,
			KeyID:     key.KeyID(),
			Algorithm: alg,
			Use:       key.KeyUsage(),
		})
	}

	if len(converted.Keys) == 0 {
		return nil, errors.Errorf("jwks at %s contains no usable keys", uri)
	}

	return converted, nil
}
