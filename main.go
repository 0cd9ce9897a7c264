package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chirho-events/internal/audit"
	"chirho-events/internal/config"
	ledgerapp "chirho-events/internal/ledger/application"
	ledgerpostgres "chirho-events/internal/ledger/infrastructure/postgres"
	ledgerredis "chirho-events/internal/ledger/infrastructure/redis"
	ledgerinterfaces "chirho-events/internal/ledger/interfaces"
	ledgerhttp "chirho-events/internal/ledger/interfaces/http"
	"chirho-events/internal/notify"
	"chirho-events/internal/observability/metrics"
	seatingapp "chirho-events/internal/seating/application"
	seatingpostgres "chirho-events/internal/seating/infrastructure/postgres"
	seatinghttp "chirho-events/internal/seating/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)
	clock := ledgerapp.SystemClock{}

	// Ledger
	ledgerStore := ledgerpostgres.NewStore(db)
	calculator, err := ledgerapp.NewBalanceCalculator(ledgerStore, clock)
	if err != nil {
		logger.Fatalf("balance calculator error: %v", err)
	}

	var fingerprints ledgerapp.FingerprintCache
	if redisClient := ledgerredis.Connect(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); redisClient != nil {
		defer redisClient.Close()
		cache, err := ledgerredis.NewFingerprintCache(redisClient, "")
		if err != nil {
			logger.Fatalf("fingerprint cache error: %v", err)
		}
		fingerprints = cache
		logger.Printf("duplicate guard cache enabled: addr=%s", cfg.RedisAddr)
	} else if cfg.RedisAddr != "" {
		logger.Printf("redis unavailable, duplicate guard uses the database only: addr=%s", cfg.RedisAddr)
	}
	guard, err := ledgerapp.NewDuplicateGuard(ledgerStore, fingerprints, clock, cfg.DuplicateWindow, logger)
	if err != nil {
		logger.Fatalf("duplicate guard error: %v", err)
	}

	sender, closeSender := buildSender(cfg, logger)
	defer closeSender()
	dispatcher, err := notify.NewDispatcher(sender,
		notify.WithTimeout(cfg.NotifyTimeout),
		notify.WithRate(cfg.NotifyRatePerSecond, 1),
		notify.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("notify dispatcher error: %v", err)
	}
	defer dispatcher.Wait()
	emailTemplate, err := notify.NewTemplate("")
	if err != nil {
		logger.Fatalf("email template error: %v", err)
	}
	emailPublisher, err := ledgerinterfaces.NewEmailPublisher(ledgerpostgres.NewContactDirectory(db), emailTemplate, dispatcher, logger)
	if err != nil {
		logger.Fatalf("email publisher error: %v", err)
	}

	paymentService, err := ledgerapp.NewPaymentService(ledgerStore, guard, calculator, emailPublisher, auditRepo, clock, logger)
	if err != nil {
		logger.Fatalf("payment service error: %v", err)
	}
	reconciler, err := ledgerapp.NewReconciler(ledgerStore, calculator, logger)
	if err != nil {
		logger.Fatalf("reconciler error: %v", err)
	}
	ledgerHandler, err := ledgerhttp.NewHandler(paymentService, reconciler, auditRepo, logger)
	if err != nil {
		logger.Fatalf("ledger handler error: %v", err)
	}

	if cfg.ReconcileSchedule != "" {
		scheduler, err := ledgerapp.NewReconcileScheduler(reconciler, cfg.ReconcileSchedule, cfg.ReconcileEvents, logger)
		if err != nil {
			logger.Fatalf("reconcile scheduler error: %v", err)
		}
		if err := scheduler.Start(); err != nil {
			logger.Fatalf("reconcile scheduler start error: %v", err)
		}
		defer scheduler.Stop()
	}

	// Seating and housing imports
	layouts, err := seatingapp.LoadLayouts(cfg.ImportMappingFile)
	if err != nil {
		logger.Fatalf("import mapping error: %v", err)
	}
	importer, err := seatingapp.NewImporter(seatingpostgres.NewRepository(db),
		seatingapp.WithLayouts(layouts),
		seatingapp.WithDefaultCapacity(cfg.DefaultSectionCapacity),
		seatingapp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("importer error: %v", err)
	}
	seatingHandler, err := seatinghttp.NewHandler(importer, auditRepo, cfg.MaxImportBytes, logger)
	if err != nil {
		logger.Fatalf("seating handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/payments", ledgerHandler)
	mux.Handle("/api/v1/payments/", ledgerHandler)
	mux.Handle("/api/v1/balances/", ledgerHandler)
	mux.Handle("/api/v1/events/", eventsRouter(ledgerHandler, seatingHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, server, logger); err != nil {
		logger.Printf("http server error: %v", err)
	}
}

// serve runs server until ctx is done and then drains in-flight requests.
// It returns so main's deferred cleanup runs.
func serve(ctx context.Context, server *http.Server, logger *log.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Printf("http listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildSender publishes to the broker when AMQP_URL is set and logs otherwise.
func buildSender(cfg config.App, logger *log.Logger) (notify.Sender, func()) {
	if cfg.AMQPURL == "" {
		logger.Printf("AMQP_URL not set, emails are logged only")
		return notify.NewLogSender(logger), func() {}
	}
	sender, err := notify.NewAMQPSender(cfg.AMQPURL, cfg.EmailQueue, cfg.EmailFrom)
	if err != nil {
		logger.Fatalf("amqp sender error: %v", err)
	}
	return sender, func() {
		if err := sender.Close(); err != nil {
			logger.Printf("amqp close error: %v", err)
		}
	}
}

// eventsRouter sends imports and sections to the seating handler and
// everything else under /api/v1/events/ to the ledger handler.
func eventsRouter(ledgerHandler, seatingHandler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/events/"), "/")
		parts := strings.Split(rest, "/")
		if len(parts) >= 2 && (parts[1] == "imports" || parts[1] == "sections") {
			seatingHandler.ServeHTTP(w, r)
			return
		}
		ledgerHandler.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
