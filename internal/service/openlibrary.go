package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OpenLibraryResolver resolves ISBNs against the Open Library catalog.
type OpenLibraryResolver struct {
	client  *http.Client
	baseURL string
}

// NewOpenLibraryResolver creates a resolver against the public Open
// Library API. An empty baseURL uses the production endpoint.
func NewOpenLibraryResolver(baseURL string) *OpenLibraryResolver {
	if baseURL == "" {
		baseURL = "https://openlibrary.org"
	}
	return &OpenLibraryResolver{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// WorkIDForISBN returns the Open Library work id for an ISBN, or "" when
// the catalog does not know the edition.
func (r *OpenLibraryResolver) WorkIDForISBN(ctx context.Context, isbn string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/isbn/"+isbn+".json", nil)
	if err != nil {
		return "", fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("catalog lookup for isbn %s: %w", isbn, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("catalog lookup for isbn %s: status %d", isbn, resp.StatusCode)
	}

	var edition struct {
		Works []struct {
			Key string `json:"key"`
		} `json:"works"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&edition); err != nil {
		return "", fmt.Errorf("decode catalog response for isbn %s: %w", isbn, err)
	}
	if len(edition.Works) == 0 {
		return "", nil
	}
	return strings.TrimPrefix(edition.Works[0].Key, "/works/"), nil
}
