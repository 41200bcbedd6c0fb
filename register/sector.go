package register

import (
	// Standard Library Imports
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxSectorDocumentBytes bounds how much of a sector identifier document is
// read before giving up.
const maxSectorDocumentBytes = 1 << 20

// SectorVerifier fetches sector identifier documents and checks that a
// client's redirect URIs are all listed in them.
type SectorVerifier struct {
	// Client performs the outbound fetch.
	Client *http.Client
}

// NewSectorVerifier returns a verifier whose fetches give up after the
// provided timeout.
func NewSectorVerifier(timeout time.Duration) *SectorVerifier {
	return &SectorVerifier{
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Verify retrieves the JSON array of URIs at sectorURI and confirms it is a
// superset of the registered redirect URIs.
func (v *SectorVerifier) Verify(ctx context.Context, sectorURI string, redirectURIs []string) error {
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodGet, sectorURI, nil)
	if err != nil {
		return newError(ErrorInvalidClientMetadata, "sector_identifier_uri",
			fmt.Sprintf("cannot build request for %q", sectorURI))
	}

	httpResponse, err := v.Client.Do(httpRequest)
	if err != nil {
		return newError(ErrorInvalidClientMetadata, "sector_identifier_uri",
			fmt.Sprintf("fetching sector identifier document failed: %s", err))
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode != http.StatusOK {
		return newError(ErrorInvalidClientMetadata, "sector_identifier_uri",
			fmt.Sprintf("sector identifier document returned status %d", httpResponse.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(httpResponse.Body, maxSectorDocumentBytes))
	if err != nil {
		return newError(ErrorInvalidClientMetadata, "sector_identifier_uri",
			"reading sector identifier document failed")
	}

	var sectorURIs []string
	if err := json.Unmarshal(body, &sectorURIs); err != nil {
		return newError(ErrorInvalidClientMetadata, "sector_identifier_uri",
			"sector identifier document must be a JSON array of URIs")
	}

	listed := make(map[string]bool, len(sectorURIs))
	for _, uri := range sectorURIs {
		listed[uri] = true
	}
	for _, redirectURI := range redirectURIs {
		if !listed[redirectURI] {
			return newError(ErrorInvalidClientMetadata, "sector_identifier_uri",
				fmt.Sprintf("redirect URI %q is not listed in the sector identifier document", redirectURI))
		}
	}
	return nil
}
