// Package redmine provides read access to a Redmine issue tracker's REST API.
package redmine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	jira "github.com/andygrunwald/go-jira"
	"github.com/danielolaszy/rmsnarf/internal/config"
	"github.com/danielolaszy/rmsnarf/internal/logging"
	"github.com/danielolaszy/rmsnarf/pkg/models"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// APIKeyHeader carries the API key when redmine.auth_scheme is "header".
const APIKeyHeader = "X-Redmine-API-Key"

// maxBodySize bounds how much of a response is read.
const maxBodySize = 1 << 20

// ErrNotFound is returned when the tracker has no such issue: a 404, or a
// response without an "issue" object.
var ErrNotFound = errors.New("issue not found")

// RequestError reports a transport failure (connection refused, DNS, TLS,
// timeout). Its message is the underlying detail, unprefixed.
type RequestError struct {
	IssueID string
	Err     error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ParseError reports a response body that is not valid JSON.
type ParseError struct {
	IssueID string
	Status  int
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse response for issue %s (status %d): %v", e.IssueID, e.Status, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Client fetches issues from a Redmine instance.
type Client struct {
	api *jira.Client
}

// NewClient creates a tracker client from cfg. The API key, if any, is sent
// with every request according to cfg.AuthScheme.
func NewClient(cfg config.RedmineConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redmine url is required")
	}

	httpClient, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}

	// go-jira is only used for its request plumbing: base URL resolution and
	// the response wrapper. None of its JIRA services are called.
	api, err := jira.NewClient(httpClient, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracker client: %w", err)
	}

	logging.Info("tracker client configured",
		"url", cfg.URL,
		"auth_scheme", cfg.AuthScheme,
		"api_key", logging.MaskSensitive(cfg.APIKey),
		"request_timeout", cfg.RequestTimeout)

	return &Client{api: api}, nil
}

func newHTTPClient(cfg config.RedmineConfig) (*http.Client, error) {
	base := http.DefaultTransport

	var transport http.RoundTripper
	switch {
	case cfg.APIKey == "":
		transport = base
	case cfg.AuthScheme == config.AuthBasic || cfg.AuthScheme == "":
		// Redmine accepts the key as the basic auth username and ignores
		// the password
		transport = &jira.BasicAuthTransport{
			Username:  cfg.APIKey,
			Password:  uuid.NewString(),
			Transport: base,
		}
	case cfg.AuthScheme == config.AuthHeader:
		transport = &apiKeyTransport{key: cfg.APIKey, base: base}
	case cfg.AuthScheme == config.AuthBearer:
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey}),
			Base:   base,
		}
	default:
		return nil, fmt.Errorf("unsupported auth scheme %q", cfg.AuthScheme)
	}

	return &http.Client{Transport: transport, Timeout: cfg.RequestTimeout}, nil
}

// apiKeyTransport sets the Redmine API key header on every request.
type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.Header.Set(APIKeyHeader, t.key)
	return t.base.RoundTrip(req2)
}

// Fetch retrieves issue issueID. Statuses other than 200 and 404 are logged
// and the body is parsed anyway.
func (c *Client) Fetch(ctx context.Context, issueID string) (models.Issue, error) {
	req, err := c.api.NewRequestWithContext(ctx, http.MethodGet, "issues/"+url.PathEscape(issueID)+".json", nil)
	if err != nil {
		return nil, &RequestError{IssueID: issueID, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	logging.Debug("fetching issue", "issue_id", issueID, "url", req.URL.String())

	// go-jira returns an error for every non-2xx status but still hands back
	// the response; only a nil response means the request itself failed.
	resp, err := c.api.Do(req, nil)
	if resp == nil {
		if err == nil {
			err = errors.New("empty response")
		}
		logging.Warn("tracker request failed", "issue_id", issueID, "error", err)
		return nil, &RequestError{IssueID: issueID, Err: err}
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	if status != http.StatusOK && status != http.StatusNotFound {
		logging.Info("tracker responded with unexpected code", "issue_id", issueID, "status", status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		logging.Warn("failed to read tracker response", "issue_id", issueID, "error", err)
		return nil, &RequestError{IssueID: issueID, Err: err}
	}

	var result models.Response
	if err := json.Unmarshal(data, &result); err != nil {
		if status == http.StatusNotFound {
			return nil, ErrNotFound
		}
		logging.Error("unable to parse tracker data",
			"issue_id", issueID,
			"status", status,
			"error", err,
			"payload", string(data))
		return nil, &ParseError{IssueID: issueID, Status: status, Err: err}
	}

	if result.Issue == nil {
		logging.Debug("tracker response carries no issue", "issue_id", issueID, "status", status)
		return nil, ErrNotFound
	}

	return result.Issue, nil
}
