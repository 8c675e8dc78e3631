package vipspt_http

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/charleschow/paysign/internal/telemetry"
)

const (
	apiPay         = "pay.pay"
	apiQuery       = "pay.query"
	apiRefund      = "pay.refund"
	apiRefundQuery = "pay.refundQuery"
	apiOpenID      = "pay.openid"
)

const maxOutTradeNoLen = 18

var (
	ErrUnsupportedMethod = errors.New("vipspt: unsupported payment method")
	ErrOutTradeNoTooLong = fmt.Errorf("vipspt: out_trade_no longer than %d characters", maxOutTradeNoLen)
)

var payWays = map[string]string{
	"wechat": "WXZF",
	"alipay": "ZFBZF",
}

// PayRequest is a barcode (payment code) charge.
type PayRequest struct {
	Method     string // "wechat" or "alipay"
	OutTradeNo string
	AuthCode   string
	TotalFee   int64 // fen
	ClientIP   string
}

type QueryRequest struct {
	OutTradeNo string
	CreatedAt  time.Time // order creation; the gateway wants its date
}

type RefundRequest struct {
	OutTradeNo  string
	OutRefundNo string
	RefundFee   int64 // fen
	Reason      string
	CreatedAt   time.Time
}

type RefundQueryRequest struct {
	OutTradeNo  string
	OutRefundNo string
}

type OpenIDRequest struct {
	Method   string
	AuthCode string
	AppID    string
}

func (c *Client) Pay(ctx context.Context, req PayRequest) (*Result, error) {
	payWay, ok := payWays[req.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}
	if len(req.OutTradeNo) > maxOutTradeNoLen {
		return nil, ErrOutTradeNoTooLong
	}
	ip := req.ClientIP
	if ip == "" {
		ip = "127.0.0.1"
	}

	params := map[string]any{
		"merchant_id":   c.opts.MerchantID,
		"enterpriseReg": c.opts.EnterpriseReg,
		"pay_way":       payWay,
		"out_order_id":  req.OutTradeNo,
		"sMchtIp":       ip,
		"sAuthCode":     req.AuthCode,
		"amount":        yuan(req.TotalFee),
		"date_time":     c.now().Format("2006-01-02 15:04:05"),
		"notify_url":    c.opts.NotifyURL,
	}
	r, err := c.call(ctx, apiPay, params)
	if err != nil {
		return nil, err
	}
	telemetry.Infof("vipspt: pay out_trade_no=%s fee=%d -> %s/%s", req.OutTradeNo, req.TotalFee, r.ReturnCode, r.Status)
	return r, nil
}

// Query looks up an order. Concurrent queries for the same order share one
// gateway round trip. The shared call runs detached from any single caller's
// context, bounded by the client timeout; each caller stops waiting when its
// own ctx is done.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*Result, error) {
	shopdate := req.CreatedAt.Format("20060102")
	ch := c.queries.DoChan(apiQuery+":"+req.OutTradeNo+":"+shopdate, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.Timeout)
		defer cancel()
		return c.call(sctx, apiQuery, map[string]any{
			"out_trade_no": req.OutTradeNo,
			"shopdate":     shopdate,
		})
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		r := *res.Val.(*Result)
		return &r, nil
	}
}

func (c *Client) Refund(ctx context.Context, req RefundRequest) (*Result, error) {
	reason := req.Reason
	if reason == "" {
		reason = "退款"
	}
	return c.call(ctx, apiRefund, map[string]any{
		"out_trade_no":   req.OutTradeNo,
		"shopdate":       req.CreatedAt.Format("20060102"),
		"refund_amount":  yuan(req.RefundFee),
		"refund_reason":  reason,
		"out_request_no": req.OutRefundNo,
	})
}

func (c *Client) RefundQuery(ctx context.Context, req RefundQueryRequest) (*Result, error) {
	return c.call(ctx, apiRefundQuery, map[string]any{
		"out_trade_no":   req.OutTradeNo,
		"out_request_no": req.OutRefundNo,
	})
}

// OpenID resolves the payer's openid from a payment code. WeChat only.
func (c *Client) OpenID(ctx context.Context, req OpenIDRequest) (*Result, error) {
	if req.Method != "wechat" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}
	return c.call(ctx, apiOpenID, map[string]any{
		"usercode":  c.opts.MerchantID,
		"auth_code": req.AuthCode,
		"subAppId":  req.AppID,
	})
}

func (c *Client) call(ctx context.Context, apiName string, params map[string]any) (*Result, error) {
	body, status, err := c.Do(ctx, apiName, params)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%s rejected: status=%d body=%s", apiName, status, string(body))
	}
	return ParseResult(apiName, body)
}

func yuan(fen int64) decimal.Decimal {
	return decimal.New(fen, -2)
}
