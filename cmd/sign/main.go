package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charleschow/paysign/internal/config"
	"github.com/charleschow/paysign/internal/core/signing"
	"github.com/charleschow/paysign/internal/telemetry"
)

// Reads a JSON object of request parameters and prints it signed.
//
//	echo '{"a":"1","b":"2"}' | go run ./cmd/sign -secret s
func main() {
	in := flag.String("in", "-", "JSON parameter file, - for stdin")
	secret := flag.String("secret", "", "shared secret (default $VIPSPT_SECRET_KEY)")
	debug := flag.Bool("debug", false, "log the canonical string (never the secret)")
	nfc := flag.Bool("nfc", false, "NFC-normalize keys and values before signing")
	flag.Parse()

	cfg := config.Load()
	level := telemetry.ParseLogLevel(cfg.LogLevel)
	if *debug {
		level = slog.LevelDebug
	}
	telemetry.Init(level)

	key := *secret
	if key == "" {
		key = cfg.SecretKey
	}
	if key == "" {
		telemetry.Warnf("sign: empty secret, signature will not authenticate anything")
	}

	params, err := readParams(*in)
	if err != nil {
		telemetry.Errorf("sign: %v", err)
		os.Exit(1)
	}

	signer := signing.NewSigner(key,
		signing.WithDebug(*debug || cfg.SignDebug),
		signing.WithUnicodeNormalization(*nfc),
	)
	out, err := signer.Sign(params)
	if err != nil {
		telemetry.Errorf("sign: %v", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		telemetry.Errorf("sign: write output: %v", err)
		os.Exit(1)
	}
}

func readParams(path string) (any, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	return v, nil
}
