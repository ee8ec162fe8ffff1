package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gustaf30/nexus/internal/plugin"
)

// Client is a thin HTTP client for the Bitbucket Server/DC REST API with
// Bearer token authentication. Auth and rate-limit responses surface as
// typed errors so the lifecycle state machine can react to them; the
// client itself never retries.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new Bitbucket HTTP client. The baseURL should be
// the root URL of the Bitbucket instance. The token is a Personal Access
// Token used for Bearer authentication.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(
	ctx context.Context,
	path string,
	result interface{},
) error {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request GET %s: %w", path, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("reading response body: %w", readErr)
	}

	if resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusForbidden {
		return &plugin.AuthError{
			Source: "bitbucket",
			Message: fmt.Sprintf(
				"authentication failed (%d): check your "+
					"Personal Access Token for %s",
				resp.StatusCode, c.baseURL,
			),
		}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &plugin.RateLimitedError{
			Source:     "bitbucket",
			RetryAfter: retryAfterHeader(resp),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var bbErr BBErrorResponse
		if json.Unmarshal(respBody, &bbErr) == nil && len(bbErr.Errors) > 0 {
			msgs := make([]string, 0, len(bbErr.Errors))
			for _, e := range bbErr.Errors {
				msgs = append(msgs, e.Message)
			}
			return fmt.Errorf(
				"bitbucket API error (%d) on GET %s: %s",
				resp.StatusCode, path, strings.Join(msgs, "; "),
			)
		}
		return fmt.Errorf(
			"unexpected status %d on GET %s: %s",
			resp.StatusCode, path, string(respBody),
		)
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response from GET %s: %w", path, err)
	}

	return nil
}

// GetAllPRPages fetches all pages of pull requests from a paginated
// endpoint. It loops through pages using isLastPage/nextPageStart.
func (c *Client) GetAllPRPages(
	ctx context.Context,
	path string,
	limit int,
) ([]PullRequest, error) {
	if limit <= 0 {
		limit = 25
	}

	var all []PullRequest
	start := 0

	for {
		separator := "?"
		if strings.Contains(path, "?") {
			separator = "&"
		}
		pagePath := fmt.Sprintf(
			"%s%sstart=%d&limit=%d", path, separator, start, limit,
		)

		var page PullRequestPage
		if err := c.Get(ctx, pagePath, &page); err != nil {
			return nil, err
		}

		all = append(all, page.Values...)

		if page.IsLastPage {
			break
		}
		start = page.NextPageStart
	}

	return all, nil
}

// retryAfterHeader parses the Retry-After header of a 429 response.
// Returns zero when the header is missing or malformed.
func retryAfterHeader(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
