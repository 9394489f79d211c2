package nftclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"budstack-service/prometheus"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrUnavailable is returned when the verification API cannot answer
var ErrUnavailable = errors.New("nft verification api unavailable")

// Verification is the API's verdict on a license token
type Verification struct {
	Valid bool   `json:"valid"`
	Owner string `json:"owner"`
}

// Client calls the NFT license verification API
type Client struct {
	httpClient *resty.Client
	contract   string
	logger     *zap.Logger
}

// NewClient builds a client. apiKey is sent as X-API-Key on every request.
func NewClient(baseURL, apiKey, contract string, timeout time.Duration, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(1 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Accept", "application/json").
		SetHeader("X-API-Key", apiKey)

	return &Client{
		httpClient: client,
		contract:   contract,
		logger:     logger,
	}
}

// Verify asks whether tokenID is a valid license token of the configured contract.
// Unknown tokens are reported as invalid, not as errors.
func (c *Client) Verify(ctx context.Context, tokenID string) (result *Verification, err error) {
	start := time.Now()
	defer func() { prometheus.TrackExternalCall("nft_api", start, err) }()

	var verification Verification
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", tokenID).
		SetQueryParam("contract", c.contract).
		SetResult(&verification).
		Get("/v1/tokens/{id}")
	if err != nil {
		c.logger.Error("NFT API call failed", zap.Error(err), zap.String("token_id", tokenID))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return &Verification{Valid: false}, nil
	case resp.IsError():
		c.logger.Error("NFT API returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("token_id", tokenID))
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}

	c.logger.Debug("NFT token verified",
		zap.String("token_id", tokenID),
		zap.Bool("valid", verification.Valid))
	return &verification, nil
}
