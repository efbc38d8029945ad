package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	apihttp "github.com/johnkamauwamunga/energy-erp-sub003/internal/api/http"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/audit"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/auth"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/application"
	closingrepo "github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/infrastructure/postgres"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/interfaces"
	closinghttp "github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/interfaces/http"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/debtors"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/observability/metrics"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/prefs"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/pricing"
	stationrepo "github.com/johnkamauwamunga/energy-erp-sub003/internal/station/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()

	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	closingCfg, err := application.LoadConfig()
	if err != nil {
		logger.Fatalf("closing config error: %v", err)
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
	stationChecker := auth.NewStationChecker(db)
	auditRepo := audit.NewRepository(db)

	shiftRepo := closingrepo.NewShiftRepository(db)
	assetsRepo := stationrepo.NewAssetsRepository(db)
	debtorsRepo := debtors.NewRepository(db)
	prefsStore := prefs.NewPostgresStore(db)

	priceSource := pricing.NewPostgresSource(db, pricing.WithCacheTTL(closingCfg.PriceTTL()))
	priceResolver, err := pricing.NewResolver(priceSource, pricing.Filter{FuelCodes: closingCfg.FuelCodes})
	if err != nil {
		logger.Fatalf("price resolver error: %v", err)
	}

	archiver, err := interfaces.NewExportArchiver(closingCfg.ExportRoot)
	if err != nil {
		logger.Fatalf("export archiver error: %v", err)
	}

	closingService, err := application.NewService(
		shiftRepo,
		shiftRepo,
		assetsRepo,
		debtorsRepo,
		debtorsRepo,
		priceResolver,
		application.WithPublisher(interfaces.NewMultiPublisher(interfaces.NewLoggingPublisher(logger), archiver)),
		application.WithPrefsStore(prefsStore),
		application.WithSessionTTL(closingCfg.SessionTTL()),
		application.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("closing service error: %v", err)
	}
	closingHandler, err := closinghttp.NewHandler(closingService, closingCfg.Currency, stationChecker, auditRepo)
	if err != nil {
		logger.Fatalf("closing handler error: %v", err)
	}

	go closingService.RunSessionSweeper(context.Background(), closingCfg.SweepInterval())

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/closings", closingHandler)
	mux.Handle("/api/v1/closings/", closingHandler)
	mux.Handle("/api/v1/shifts", apihttp.NewShiftsHandler(db, stationChecker))
	mux.Handle("/api/v1/debtors", apihttp.NewDebtorsHandler(debtorsRepo))
	mux.Handle("/api/v1/prices", apihttp.NewPricesHandler(priceResolver))
	mux.Handle("/api/v1/stations/", apihttp.NewStationAssetsHandler(assetsRepo, stationChecker))
	mux.Handle("/api/v1/exports/debts.csv", apihttp.NewExportDebtsCSVHandler(db, stationChecker))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL string
	HTTPAddr    string
	TenantID    string
	JWTSecret   string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		TenantID:    getenvDefault("TENANT_ID", "tenant-demo"),
		JWTSecret:   getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
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
