package tagging

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds one round-trip to the semantic service.
const DefaultTimeout = 15 * time.Second

const responseLimit = 1 << 20

// Client implements Tagger and Expander against an HTTP JSON service:
// POST {base}/tag with the base64 thumbnail, POST {base}/expand with the
// query and candidate tags. Both return {"tags": [...]}.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client  // nil means http.DefaultClient
	Timeout    time.Duration // zero means DefaultTimeout
}

// NewClient returns a client for the service rooted at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/")}
}

type tagRequest struct {
	Image string `json:"image"` // base64-encoded thumbnail
}

type expandRequest struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
}

type tagResponse struct {
	Tags []string `json:"tags"`
}

// TagImage asks the service for keywords describing the thumbnail. The
// result is lowercased and capped at MaxTagsPerImage.
func (c *Client) TagImage(ctx context.Context, thumbnail []byte) ([]string, error) {
	req := tagRequest{Image: base64.StdEncoding.EncodeToString(thumbnail)}
	tags, err := c.post(ctx, "/tag", req)
	if err != nil {
		return nil, err
	}
	if len(tags) > MaxTagsPerImage {
		tags = tags[:MaxTagsPerImage]
	}
	return tags, nil
}

// Expand asks the service which candidate tags match the query's intent.
// Tags outside the candidate set are dropped so the result is always a
// subset of what the collection actually uses.
func (c *Client) Expand(ctx context.Context, query string, candidates []string) ([]string, error) {
	tags, err := c.post(ctx, "/expand", expandRequest{Query: query, Candidates: candidates})
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(candidates))
	for _, cand := range candidates {
		known[strings.ToLower(cand)] = struct{}{}
	}
	out := tags[:0]
	for _, tag := range tags {
		if _, ok := known[tag]; ok {
			out = append(out, tag)
		}
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]string, error) {
	if c.BaseURL == "" {
		return nil, fmt.Errorf("tagging service not configured")
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("cannot encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("service returned status %d", resp.StatusCode)
	}

	var decoded tagResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, responseLimit)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("cannot decode response: %v", err)
	}

	out := decoded.Tags[:0]
	for _, tag := range decoded.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out, nil
}
