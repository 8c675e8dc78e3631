package vipspt_http

import (
	"fmt"
	"strings"

	"github.com/clbanning/mxj"
	"github.com/shopspring/decimal"

	"github.com/charleschow/paysign/internal/core/signing"
)

// Normalised order states.
const (
	StatusClosed     = "CLOSED"
	StatusUserPaying = "USERPAYING"
	StatusSuccess    = "SUCCESS"
	StatusWaiting    = "WAITING"

	ReturnSuccess = "SUCCESS"
	ReturnFail    = "FAIL"
)

const codeOK = "10000"

// Result is a gateway response mapped onto channel-independent fields.
// Amounts are in fen.
type Result struct {
	ReturnCode   string
	ReturnMsg    string
	Status       string
	TotalFee     int64
	BuyerPayFee  int64
	RefundFee    int64
	BankTradeNo  string
	OutTradeNo   string
	OutRefundNo  string
	TimeEnd      string
	WechatOpenID string
	Content      mxj.Map
}

var tradeStatus = map[string]string{
	"WAIT_BUYER_PAY":    StatusUserPaying,
	"TRADE_CLOSED":      StatusClosed,
	"TRADE_SUCCESS":     StatusSuccess,
	"TRADE_PART_REFUND": StatusSuccess,
	"TRADE_ALL_REFUND":  StatusSuccess,
	"TRADE_PROCESS":     StatusWaiting,
	"TRADE_FAILD":       StatusClosed,
}

var refundState = map[string]string{
	"in_process":            StatusWaiting,
	"success":               StatusSuccess,
	"fail_due_manual_close": StatusWaiting,
	"fail_to_manual_deal":   StatusClosed,
	"fail":                  StatusClosed,
}

// sub_codes meaning the order is still being processed upstream.
var pendingSubCodes = map[string]bool{"3161": true, "3155": true, "3172": true}

// ParseResult decodes body and maps it according to apiName. A body wrapped
// in a "response" object is unwrapped first.
func ParseResult(apiName string, body []byte) (*Result, error) {
	m, err := mxj.NewMapJson(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s response: %w", apiName, err)
	}
	content := m
	if inner, ok := m["response"].(map[string]interface{}); ok {
		content = mxj.Map(inner)
	}

	r := &Result{Content: content}
	r.ReturnMsg = str(content, "msg")
	if v := str(content, "sub_msg"); v != "" {
		r.ReturnMsg = v
	}

	switch apiName {
	case apiPay, apiQuery:
		r.mapTrade(apiName, content)
	case apiRefund:
		r.mapRefund(content)
	case apiRefundQuery:
		r.mapRefundQuery(content)
	case apiOpenID:
		r.mapOpenID(content)
	default:
		r.ReturnCode = ReturnFail
		if str(content, "code") == codeOK {
			r.ReturnCode = ReturnSuccess
		}
	}
	return r, nil
}

func (r *Result) mapTrade(apiName string, c mxj.Map) {
	if str(c, "code") != codeOK {
		r.ReturnCode = ReturnFail
		sub := str(c, "sub_code")
		if pendingSubCodes[sub] {
			r.Status = StatusWaiting
		}
		if apiName == apiQuery && sub == "ACQ.QUERY_NO_RESULT" {
			r.Status = StatusClosed
		}
		return
	}

	r.ReturnCode = ReturnSuccess
	r.Status = tradeStatus[str(c, "trade_status")]
	if str(c, "trade_status_ext") == "TRADE_USERPAYING" {
		r.Status = StatusUserPaying
	}
	r.TotalFee, _ = fen(c, "total_amount")
	if v, ok := fen(c, "settlement_amount"); ok {
		r.BuyerPayFee = v
	} else {
		r.BuyerPayFee = r.TotalFee
	}
	r.BankTradeNo = str(c, "trade_no")
	r.OutTradeNo = str(c, "out_trade_no")
	r.TimeEnd = strings.ReplaceAll(str(c, "account_date"), "-", "")
	r.WechatOpenID = str(c, "openid")
}

func (r *Result) mapRefund(c mxj.Map) {
	r.Status = StatusWaiting
	if str(c, "code") != codeOK {
		r.ReturnCode = ReturnFail
		return
	}
	r.ReturnCode = ReturnSuccess
	r.RefundFee, _ = fen(c, "refund_amount")
	r.BankTradeNo = str(c, "refundsn")
	r.OutRefundNo = str(c, "out_request_no")
	r.OutTradeNo = str(c, "out_trade_no")
	r.TimeEnd = strings.ReplaceAll(str(c, "account_date"), "-", "")
}

func (r *Result) mapRefundQuery(c mxj.Map) {
	r.Status = StatusWaiting
	if str(c, "code") != codeOK {
		r.ReturnCode = ReturnFail
		return
	}
	r.ReturnCode = ReturnSuccess
	if s, ok := refundState[str(c, "refund_state")]; ok {
		r.Status = s
	}
	r.RefundFee, _ = fen(c, "refund_amount")
	r.OutRefundNo = str(c, "out_request_no")
	r.OutTradeNo = str(c, "out_trade_no")
	r.TimeEnd = strings.ReplaceAll(str(c, "account_date"), "-", "")
}

func (r *Result) mapOpenID(c mxj.Map) {
	if str(c, "retcode") != "SUCCESS" {
		r.ReturnCode = ReturnFail
		return
	}
	r.ReturnCode = ReturnSuccess
	r.WechatOpenID = str(c, "acct")
}

func str(c mxj.Map, key string) string {
	return signing.FormatValue(c[key])
}

// fen converts a yuan amount (string or number) to integer fen.
func fen(c mxj.Map, key string) (int64, bool) {
	var (
		d   decimal.Decimal
		err error
	)
	switch v := c[key].(type) {
	case string:
		d, err = decimal.NewFromString(v)
	case float64:
		d = decimal.NewFromFloat(v)
	default:
		return 0, false
	}
	if err != nil {
		return 0, false
	}
	return d.Shift(2).IntPart(), true
}
