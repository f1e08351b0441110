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
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	config "github.com/mithun9421/handcricket/configs"
	"github.com/mithun9421/handcricket/internal/cricketsvc/db"
	"github.com/mithun9421/handcricket/internal/cricketsvc/handlers"
	"github.com/mithun9421/handcricket/internal/cricketsvc/logger"
	"github.com/mithun9421/handcricket/internal/cricketsvc/match"
	"github.com/mithun9421/handcricket/internal/cricketsvc/store"
	"github.com/mithun9421/handcricket/internal/cricketsvc/ws"
	natscli "github.com/mithun9421/handcricket/internal/nats"
)

const SERVICE_NAME = "cricket"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	// optional NATS analytics mirror
	var nc *natscli.Nats
	if os.Getenv("NATS_URL") != "" {
		n, err := natscli.Connect()
		if err != nil {
			log.Fatalf("unable to connect to NATS: %v", err)
		}
		nc = n
		defer n.Conn.Close()
		log.Infof("NATS connected at %s", n.Url)
	} else {
		log.Info("NATS_URL not set, analytics mirror disabled")
	}

	// optional Postgres session archive
	var archive logger.Archiver
	if os.Getenv("POSTGRES_URL") != "" {
		dbpool, err := db.Connect()
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		defer db.ClosePool()
		log.Printf("pg connection established successfully")
		archive = store.NewSessionStore(dbpool)
	} else {
		log.Info("POSTGRES_URL not set, session archive disabled")
	}

	sink := logger.New(logger.DefaultConfig(), natsConn(nc), archive)

	queue := match.NewQueue()
	registry := match.NewRegistry(sink)
	hub := ws.NewHub(queue, registry, sink)
	go hub.Run()

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimit := 300
	if rateLimitStr := os.Getenv("RATE_LIMIT"); rateLimitStr != "" {
		v, err := strconv.Atoi(rateLimitStr)
		if err != nil {
			log.Fatalf("Invalid RATE_LIMIT value: %v", err)
		}
		rateLimit = v
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(hub, sink)
	handlers.InitAuth()
	handlers.SetRoutes(r, h)

	port := os.Getenv("CRICKET_SERVICE_PORT")
	if port == "" {
		port = "8080"
	}

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + port,
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

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}

	hub.Stop()
	sink.Close() // drain pending session writes
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}

func natsConn(n *natscli.Nats) *nats.Conn {
	if n == nil {
		return nil
	}
	return n.Conn
}
