package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/enchanted/marketplace/internal/config"
	"github.com/enchanted/marketplace/internal/events"
	"github.com/enchanted/marketplace/internal/handlers"
	"github.com/enchanted/marketplace/internal/httpserver"
	"github.com/enchanted/marketplace/internal/logging"
	"github.com/enchanted/marketplace/internal/middleware"
	"github.com/enchanted/marketplace/internal/search"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	jwtSecret := []byte(configuration.JWT_SECRET)
	if len(jwtSecret) == 0 {
		log.Fatal("JWT_SECRET is required")
	}

	var producer *events.Producer
	if configuration.KAFKA_ADDRESS != "" {
		producer = events.NewProducer([]string{configuration.KAFKA_ADDRESS})
	}

	var indexer *search.Indexer
	if configuration.ES_URL != "" {
		esClient, err := search.NewClient(configuration)
		if err != nil {
			log.Printf("elasticsearch unavailable, search disabled: %v", err)
		} else {
			indexer = &search.Indexer{ES: esClient, Index: "products"}
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover(), echomw.RequestID(), middleware.RequestLogger(logger))

	deps := httpserver.Deps{
		JWTSecret:  jwtSecret,
		UploadPath: configuration.UPLOAD_PATH,
		UserHandler: &handlers.UserHandler{
			DB: db, JWTSecret: jwtSecret, Producer: producer,
		},
		ProductHandler: &handlers.ProductHandler{
			DB: db, Producer: producer, Indexer: indexer, UploadPath: configuration.UPLOAD_PATH,
		},
		SearchHandler: &handlers.SearchHandler{Indexer: indexer},
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if err := producer.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
