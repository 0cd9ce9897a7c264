package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	ledgerapp "chirho-events/internal/ledger/application"
	ledgerpostgres "chirho-events/internal/ledger/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type config struct {
	dbURL   string
	events  string
	outDir  string
	timeout time.Duration
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "create out dir:", err)
		os.Exit(2)
	}

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	store := ledgerpostgres.NewStore(db)
	calculator, err := ledgerapp.NewBalanceCalculator(store, ledgerapp.SystemClock{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "balance calculator:", err)
		os.Exit(2)
	}
	reconciler, err := ledgerapp.NewReconciler(store, calculator, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "reconciler:", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	exitCode := 0
	for _, eventID := range splitEvents(cfg.events) {
		report, err := reconciler.ReconcileEvent(ctx, eventID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reconcile %s: %v\n", eventID, err)
			exitCode = 1
			continue
		}
		path := filepath.Join(cfg.outDir, "reconcile_"+eventID+".csv")
		if err := writeReportFile(path, report); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
			exitCode = 1
			continue
		}
		fmt.Printf("event=%s checked=%d changed=%d failed=%d report=%s\n",
			eventID, report.Checked, len(report.Changed), len(report.Failed), path)
		if len(report.Failed) > 0 {
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

func parseFlags() (config, error) {
	var cfg config
	flag.StringVar(&cfg.dbURL, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "Postgres DSN")
	flag.StringVar(&cfg.events, "events", getenvDefault("RECONCILE_EVENTS", ""), "comma separated event ids")
	flag.StringVar(&cfg.outDir, "out", "./out", "output directory")
	flag.DurationVar(&cfg.timeout, "timeout", 10*time.Minute, "overall timeout")
	flag.Parse()

	if cfg.dbURL == "" {
		return cfg, errors.New("missing --db or DATABASE_URL/PG_DSN")
	}
	if len(splitEvents(cfg.events)) == 0 {
		return cfg, errors.New("missing --events or RECONCILE_EVENTS")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("--timeout must be positive")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func splitEvents(raw string) []string {
	var events []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			events = append(events, part)
		}
	}
	return events
}

func writeReportFile(path string, report ledgerapp.ReconcileReport) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return writeReport(file, report)
}

// writeReport writes one row per changed balance plus one row per failure.
func writeReport(w io.Writer, report ledgerapp.ReconcileReport) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{
		"event_id",
		"registration_id",
		"registration_type",
		"amount_paid_before",
		"amount_paid_after",
		"amount_remaining_before",
		"amount_remaining_after",
		"status_before",
		"status_after",
		"result",
	}); err != nil {
		return err
	}

	for _, change := range report.Changed {
		if err := writer.Write([]string{
			report.EventID,
			change.RegistrationID,
			string(change.RegistrationType),
			change.Before.AmountPaid.StringFixed(2),
			change.After.AmountPaid.StringFixed(2),
			change.Before.AmountRemaining.StringFixed(2),
			change.After.AmountRemaining.StringFixed(2),
			string(change.Before.PaymentStatus),
			string(change.After.PaymentStatus),
			"changed",
		}); err != nil {
			return err
		}
	}
	for _, registrationID := range report.Failed {
		if err := writer.Write([]string{report.EventID, registrationID, "", "", "", "", "", "", "", "failed"}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
