package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charleschow/paysign/internal/adapters/outbound/journal"
	"github.com/charleschow/paysign/internal/adapters/outbound/vipspt_http"
	"github.com/charleschow/paysign/internal/config"
	"github.com/charleschow/paysign/internal/core/signing"
	"github.com/charleschow/paysign/internal/telemetry"
)

// Runs one trade operation against the vipspt gateway and prints the mapped result.
//
//	go run ./cmd/gateway -op pay -method wechat -out-trade-no 513457061273811890 -total-fee 1 -auth-code 1311...
func main() {
	op := flag.String("op", "query", "operation: pay, query, refund, refund-query, openid")
	method := flag.String("method", "wechat", "payment method: wechat or alipay")
	outTradeNo := flag.String("out-trade-no", "", "merchant order number")
	outRefundNo := flag.String("out-refund-no", "", "merchant refund number")
	totalFee := flag.Int64("total-fee", 0, "order amount in fen")
	refundFee := flag.Int64("refund-fee", 0, "refund amount in fen")
	authCode := flag.String("auth-code", "", "payment code scanned from the payer")
	reason := flag.String("reason", "", "refund reason")
	createdAt := flag.String("created-at", "", "order creation date YYYY-MM-DD (default today)")
	appID := flag.String("app-id", "", "sub app id for openid lookups")
	flag.Parse()

	cfg := config.Load()
	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))

	if cfg.SecretKey == "" {
		telemetry.Errorf("VIPSPT_SECRET_KEY missing, set it in .env")
		os.Exit(1)
	}

	created := time.Now()
	if *createdAt != "" {
		t, err := time.ParseInLocation("2006-01-02", *createdAt, time.Local)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad -created-at %q: %v\n", *createdAt, err)
			os.Exit(1)
		}
		created = t
	}

	routes, err := config.LoadRoutes(cfg.RoutesPath)
	if err != nil {
		telemetry.Errorf("Failed to load routes: %v", err)
		os.Exit(1)
	}

	var store *journal.Store
	if cfg.JournalPath != "" {
		store, err = journal.OpenStore(cfg.JournalPath)
		if err != nil {
			telemetry.Warnf("Request journal disabled: %v", err)
		}
		defer store.Close()
	}

	signer := signing.NewSigner(cfg.SecretKey, signing.WithDebug(cfg.SignDebug))
	client := vipspt_http.NewClient(vipspt_http.Options{
		BaseURL:       cfg.GatewayURL(),
		Appid:         cfg.Appid,
		MerchantID:    cfg.MerchantID,
		EnterpriseReg: cfg.EnterpriseReg,
		NotifyURL:     cfg.NotifyURL,
		Routes:        routes,
		RateLimit:     cfg.RateLimit,
		Timeout:       cfg.Timeout,
		Journal:       store,
	}, signer)
	telemetry.Infof("Gateway %s  sandbox=%v", cfg.GatewayURL(), cfg.Sandbox)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var res *vipspt_http.Result
	switch *op {
	case "pay":
		res, err = client.Pay(ctx, vipspt_http.PayRequest{
			Method: *method, OutTradeNo: *outTradeNo, AuthCode: *authCode, TotalFee: *totalFee,
		})
	case "query":
		res, err = client.Query(ctx, vipspt_http.QueryRequest{OutTradeNo: *outTradeNo, CreatedAt: created})
	case "refund":
		res, err = client.Refund(ctx, vipspt_http.RefundRequest{
			OutTradeNo: *outTradeNo, OutRefundNo: *outRefundNo, RefundFee: *refundFee,
			Reason: *reason, CreatedAt: created,
		})
	case "refund-query":
		res, err = client.RefundQuery(ctx, vipspt_http.RefundQueryRequest{OutTradeNo: *outTradeNo, OutRefundNo: *outRefundNo})
	case "openid":
		res, err = client.OpenID(ctx, vipspt_http.OpenIDRequest{Method: *method, AuthCode: *authCode, AppID: *appID})
	default:
		fmt.Fprintf(os.Stderr, "unknown op %q (use pay, query, refund, refund-query, or openid)\n", *op)
		os.Exit(1)
	}
	if err != nil {
		telemetry.Errorf("%s: %v", *op, err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(res); err != nil {
		telemetry.Errorf("write result: %v", err)
		os.Exit(1)
	}

	m := &telemetry.Metrics
	telemetry.Debugf("signatures=%d requests=%d errors=%d journal_writes=%d",
		m.SignaturesComputed.Value(), m.RequestsSent.Value(), m.RequestErrors.Value(), m.JournalWrites.Value())
}
