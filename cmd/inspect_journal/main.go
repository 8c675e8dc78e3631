package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charleschow/paysign/internal/adapters/outbound/journal"
	"github.com/charleschow/paysign/internal/config"
	"github.com/charleschow/paysign/internal/telemetry"
)

func main() {
	n := flag.Int("n", 10, "number of recent requests to display")
	path := flag.String("db", "", "journal database (default $JOURNAL_PATH)")
	flag.Parse()

	cfg := config.Load()
	telemetry.Init(telemetry.ParseLogLevel("warn"))

	dbPath := *path
	if dbPath == "" {
		dbPath = cfg.JournalPath
	}
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "cannot open %s: %v\n", dbPath, err)
		os.Exit(1)
	}

	store, err := journal.OpenStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	entries, err := store.Recent(*n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	fmt.Printf("=== Request journal (%s) ===\n", dbPath)
	if len(entries) == 0 {
		fmt.Println("(no data)")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "sent_at\tapi\tpath\tout_trade_no\tstatus\tlatency\tsign\terror")
	fmt.Fprintln(w, "----\t----\t----\t----\t----\t----\t----\t----")
	// oldest first, like a log
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			e.SentAt.Local().Format(time.DateTime), e.APIName, e.Path, cell(e.OutTradeNo),
			e.StatusCode, e.Latency, shortSign(e.Sign), cell(e.Err))
	}
	w.Flush()
}

func cell(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortSign(s string) string {
	if len(s) > 12 {
		return s[:12] + "…"
	}
	return cell(s)
}
