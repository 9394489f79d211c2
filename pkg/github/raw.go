package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"budstack-service/prometheus"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when the file does not exist at the ref
	ErrNotFound = errors.New("file not found in repository")
	// ErrUnavailable is returned for network failures and unexpected statuses
	ErrUnavailable = errors.New("github unavailable")
)

// RawClient downloads files from raw.githubusercontent.com style hosts
type RawClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewRawClient builds a client; token, when set, is sent as a bearer token
func NewRawClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *RawClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	if token != "" {
		client.SetAuthToken(token)
	}
	return &RawClient{httpClient: client, logger: logger}
}

// Fetch returns the contents of path in repo ("owner/name") at ref
func (c *RawClient) Fetch(ctx context.Context, repo, ref, path string) (body []byte, err error) {
	start := time.Now()
	defer func() { prometheus.TrackExternalCall("github_raw", start, err) }()

	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("invalid repository %q, expected owner/name", repo)
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"owner": owner, "name": name, "ref": ref}).
		Get("/{owner}/{name}/{ref}/" + strings.TrimLeft(path, "/"))
	if err != nil {
		c.logger.Error("GitHub fetch failed", zap.Error(err), zap.String("repo", repo))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		c.logger.Info("Fetched template manifest",
			zap.String("repo", repo),
			zap.String("ref", ref),
			zap.String("path", path),
			zap.Int("bytes", len(resp.Body())))
		return resp.Body(), nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s@%s:%s", ErrNotFound, repo, ref, path)
	default:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}
}
