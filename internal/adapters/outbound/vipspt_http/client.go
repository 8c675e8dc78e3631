package vipspt_http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/charleschow/paysign/internal/adapters/outbound/journal"
	"github.com/charleschow/paysign/internal/config"
	"github.com/charleschow/paysign/internal/core/signing"
	"github.com/charleschow/paysign/internal/telemetry"
)

var ErrUnknownAPI = errors.New("vipspt: unknown api name")

type Options struct {
	BaseURL       string
	Appid         string
	MerchantID    string
	EnterpriseReg string
	NotifyURL     string
	Routes        config.Routes
	RateLimit     int // requests per second; <= 0 means unlimited
	Timeout       time.Duration
	Journal       *journal.Store
}

// Client posts signed parameter sets to the vipspt gateway.
type Client struct {
	opts       Options
	httpClient *http.Client
	signer     *signing.Signer
	limiter    *rate.Limiter
	queries    singleflight.Group
	now        func() time.Time
}

func NewClient(opts Options, signer *signing.Signer) *Client {
	if opts.Routes == nil {
		opts.Routes = config.DefaultRoutes()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateLimit)
	}
	return &Client{
		opts: opts,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		signer:  signer,
		limiter: limiter,
		now:     time.Now,
	}
}

// Do signs params for apiName and posts them as JSON. The appid is added
// unless params already carry one. It returns the raw body and status code.
func (c *Client) Do(ctx context.Context, apiName string, params map[string]any) ([]byte, int, error) {
	path, ok := c.opts.Routes.Path(apiName)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownAPI, apiName)
	}

	merged := make(map[string]any, len(params)+1)
	for k, v := range params {
		merged[k] = v
	}
	if _, ok := merged["appid"]; !ok && c.opts.Appid != "" {
		merged["appid"] = c.opts.Appid
	}

	signed, err := c.signer.Sign(merged)
	if err != nil {
		return nil, 0, fmt.Errorf("sign %s: %w", apiName, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limit wait: %w", err)
	}

	data, err := json.Marshal(signed)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	entry := journal.Entry{
		APIName:    apiName,
		Path:       path,
		OutTradeNo: outTradeNo(signed),
		Sign:       signing.FormatValue(signed[signing.SignKey]),
		Timestamp:  timestampMillis(signed[signing.TimestampKey]),
		SentAt:     c.now(),
	}

	start := time.Now()
	body, status, err := c.send(req)
	entry.Latency = time.Since(start)
	entry.StatusCode = status
	telemetry.Metrics.RequestLatency.Record(entry.Latency)
	if err != nil {
		telemetry.Metrics.RequestErrors.Inc()
		entry.Err = err.Error()
	} else {
		telemetry.Metrics.RequestsSent.Inc()
	}
	if jerr := c.opts.Journal.Record(entry); jerr != nil {
		telemetry.Warnf("vipspt_http: %v", jerr)
	}
	if err != nil {
		return nil, status, err
	}

	telemetry.Infof("vipspt_http: POST %s (%s) -> %d (%s)", path, apiName, status, entry.Latency)
	return body, status, nil
}

func (c *Client) send(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func outTradeNo(params signing.ParameterSet) string {
	for _, k := range []string{"out_trade_no", "out_order_id"} {
		if v, ok := params[k]; ok {
			return signing.FormatValue(v)
		}
	}
	return ""
}

func timestampMillis(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case json.Number:
		n, _ := t.Int64()
		return n
	case string:
		n, _ := json.Number(t).Int64()
		return n
	}
	return 0
}
