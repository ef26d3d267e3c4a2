package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"wallet_gateway/internal/domain/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EtherscanClient queries an Etherscan-compatible explorer API for the recent
// transactions of an address, newest first.
type EtherscanClient struct {
	client  *fasthttp.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	logger  *zap.Logger
}

// txListResponse is the explorer's account/txlist envelope. Status "1" means
// success; "0" covers both errors and the explicit "no transactions found".
type txListResponse struct {
	Status  string     `json:"status"`
	Message string     `json:"message"`
	Result  []txRecord `json:"result"`
}

type txRecord struct {
	Hash    string `json:"hash"`
	Value   string `json:"value"`
	IsError string `json:"isError"`
}

// NewEtherscanClient creates a new explorer API client. The API key is
// injected configuration, passed as a request parameter on every query.
func NewEtherscanClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *EtherscanClient {
	return &EtherscanClient{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		logger:  logger.Named("EtherscanClient"),
	}
}

// RecentTransactions implements port.HistoryClient. A non-"1" status or any
// transport failure is returned as an error; the caller decides how to degrade.
func (c *EtherscanClient) RecentTransactions(ctx context.Context, address string, limit int) ([]entity.HistoryEntry, error) {
	if address == "" {
		return nil, fmt.Errorf("address cannot be empty")
	}

	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "txlist")
	params.Set("address", address)
	params.Set("sort", "desc")
	params.Set("apikey", c.apiKey)
	requestURL := fmt.Sprintf("%s/api?%s", c.baseURL, params.Encode())

	c.logger.Debug("Requesting transaction history", zap.String("address", entity.TruncateAddress(address)))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetContentTypeBytes([]byte("application/json"))

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, fmt.Errorf("failed to execute history request: %w", err)
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
			return nil, fmt.Errorf("failed to execute history request with default timeout: %w", err)
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Warn("Explorer API request failed",
			zap.Int("statusCode", resp.StatusCode()))
		return nil, fmt.Errorf("explorer API request failed with status %d", resp.StatusCode())
	}

	var parsed txListResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal explorer response: %w", err)
	}
	if parsed.Status != "1" {
		return nil, fmt.Errorf("explorer returned status %q: %s", parsed.Status, parsed.Message)
	}

	records := parsed.Result
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	entries := make([]entity.HistoryEntry, 0, len(records))
	for _, r := range records {
		value := r.Value
		if value == "" {
			// Records the explorer returned without a value are kept as
			// explicit zero rather than dropped.
			value = "0"
		}
		entries = append(entries, entity.HistoryEntry{
			Hash:      r.Hash,
			ValueWei:  value,
			Succeeded: r.IsError == "0",
		})
	}

	c.logger.Debug("Fetched transaction history", zap.Int("entries", len(entries)))
	return entries, nil
}
