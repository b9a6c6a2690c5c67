// Package github is a minimal client for the GitHub search API, covering
// only the two queries the poller needs: repository search and per-repo
// open-issue search.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	logx "issuecast/pkg/logx"
)

const defaultBaseURL = "https://api.github.com"

// Repository is the subset of the search result the poller consumes.
type Repository struct {
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
}

// Issue is the subset of the issue search result the poller consumes.
type Issue struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
}

// RepoQuery describes a repository search. Zero fields are omitted from
// the query string, so a topic-only search is just {Topic: "x"}.
type RepoQuery struct {
	Topic         string
	MinStars      int
	CreatedBefore string // YYYY-MM-DD
}

type Client struct {
	http    *http.Client
	baseURL string
	token   string
	log     logx.Logger
}

type Option func(*Client)

// WithBaseURL overrides the API endpoint (tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(token string, log logx.Logger, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: defaultBaseURL,
		token:   strings.TrimSpace(token),
		log:     log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SearchRepositories returns up to 100 repositories matching the query,
// most recently updated first.
func (c *Client) SearchRepositories(ctx context.Context, q RepoQuery) ([]Repository, error) {
	parts := []string{}
	if q.Topic != "" {
		parts = append(parts, "topic:"+q.Topic)
	}
	if q.MinStars > 0 {
		parts = append(parts, "stars:>="+strconv.Itoa(q.MinStars))
	}
	if q.CreatedBefore != "" {
		parts = append(parts, "created:<"+q.CreatedBefore)
	}

	v := url.Values{}
	v.Set("q", strings.Join(parts, " "))
	v.Set("sort", "updated")
	v.Set("per_page", "100")

	var out struct {
		Items []Repository `json:"items"`
	}
	if err := c.get(ctx, "/search/repositories", v, &out); err != nil {
		return nil, fmt.Errorf("search repositories: %w", err)
	}
	return out.Items, nil
}

// SearchIssues returns the repository's open issues, oldest created first,
// optionally restricted to issues created after the given date.
func (c *Client) SearchIssues(ctx context.Context, repoFullName, createdAfter string) ([]Issue, error) {
	parts := []string{"repo:" + repoFullName, "is:issue", "is:open"}
	if createdAfter != "" {
		parts = append(parts, "created:>"+createdAfter)
	}

	v := url.Values{}
	v.Set("q", strings.Join(parts, " "))
	v.Set("sort", "created")

	var out struct {
		Items []Issue `json:"items"`
	}
	if err := c.get(ctx, "/search/issues", v, &out); err != nil {
		return nil, fmt.Errorf("search issues (%s): %w", repoFullName, err)
	}
	return out.Items, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dst any) error {
	u := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Message != "" {
			return fmt.Errorf("github: %s (http=%d)", apiErr.Message, resp.StatusCode)
		}
		return fmt.Errorf("github: http=%d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(dst)
}
