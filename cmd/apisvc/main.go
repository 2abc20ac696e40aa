package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	config "github.com/avvvet/pickup-services/configs"
	"github.com/avvvet/pickup-services/internal/apisvc/archive"
	"github.com/avvvet/pickup-services/internal/apisvc/db"
	handlers "github.com/avvvet/pickup-services/internal/apisvc/handlers"
	"github.com/avvvet/pickup-services/internal/apisvc/notify"
	"github.com/avvvet/pickup-services/internal/apisvc/payment"
	"github.com/avvvet/pickup-services/internal/apisvc/service"
	"github.com/avvvet/pickup-services/internal/apisvc/store"
	"github.com/avvvet/pickup-services/internal/apisvc/sweep"
	nats "github.com/avvvet/pickup-services/internal/nats"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "api"

const waitlistTokenTTL = 15 * time.Minute

var instanceId string

func init() {
	instanceId = "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	// persistence: pg when DATABASE_URL is set, in-memory otherwise
	var st store.Store
	if os.Getenv("DATABASE_URL") != "" {
		dbpool, err := db.Connect()
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		defer dbpool.Close()
		log.Printf("pg connection established successfully")
		st = store.NewPostgres(dbpool)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory store")
		st = store.NewMemory()
	}

	// notification transport: NATS when reachable, log fallback otherwise
	var gateway notify.Gateway
	n, err := nats.Connect()
	if err != nil {
		log.Warnf("unable to connect to NATS server, notifications go to the log: %v", err)
		gateway = notify.NewLogGateway()
	} else {
		defer n.Conn.Close()
		log.Printf("NATS connection established successfully %s", n.Url)
		gateway = notify.NewNatsGateway(n.Conn)
	}

	// payment adapters
	adapters := []payment.Adapter{payment.NewMock()}
	hmacSecret := os.Getenv("PAYMOB_HMAC_SECRET")
	if hmacSecret == "" {
		hmacSecret = os.Getenv("PROVIDER_WEBHOOK_SECRET")
	}
	if hmacSecret != "" {
		adapters = append(adapters, payment.NewPaymob(hmacSecret, os.Getenv("PAYMOB_REDIRECT_URL")))
	}
	registry := payment.NewRegistry(adapters...)

	defaultProvider := os.Getenv("PAYMENT_PROVIDER")
	if defaultProvider == "" {
		defaultProvider = payment.ProviderMock
	}
	if _, err := registry.Get(defaultProvider); err != nil {
		log.Fatalf("PAYMENT_PROVIDER misconfigured: %v", err)
	}

	tokens := service.NewTokenIssuer(os.Getenv("JWT_SECRET_KEY"), waitlistTokenTTL)
	gameService := service.NewGameService(st, registry, defaultProvider, gateway, tokens)

	sweepCfg := sweep.ConfigFromEnv()

	// optional raw-webhook archive
	arc, err := archive.Connect(sweepCfg.EventRetention)
	if err != nil {
		log.Warnf("webhook archive disabled: %v", err)
	} else if arc != nil {
		gameService.SetArchiver(arc)
		log.Info("webhook archive enabled")
	}

	// background housekeeping
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	runner := sweep.NewRunner(st, gameService, notify.NewOpsNotifierFromEnv(), sweepCfg)
	runner.Start(sweepCtx)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimitStr := os.Getenv("RATE_LIMIT")
	rateLimit, err := strconv.Atoi(rateLimitStr)
	if err != nil {
		log.Fatalf("Invalid RATE_LIMIT value: %v", err)
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(gameService, registry)
	h.InitAuth()
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + os.Getenv("API_SERVICE_PORT"),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
