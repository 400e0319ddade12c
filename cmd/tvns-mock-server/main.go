package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"tvnsr/pkg/mockserver"
	"tvnsr/pkg/tvns"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: tvns.Clock}).
		With().Timestamp().Logger()

	// A missing .env file is fine, flags and defaults still apply
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Msg("Failed to load .env file")
	}

	defaultPort, err := strconv.Atoi(getEnv("TVNS_MOCK_PORT", strconv.Itoa(tvns.DefaultPort)))
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid TVNS_MOCK_PORT")
	}
	defaultProbability, err := strconv.ParseFloat(getEnv("TVNS_MOCK_FAILURE_PROBABILITY", "0"), 64)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid TVNS_MOCK_FAILURE_PROBABILITY")
	}

	var port int
	var probability float64
	flag.IntVar(&port, "port", defaultPort, "Port for the HTTP server")
	flag.IntVar(&port, "p", defaultPort, "Shorthand for --port")
	flag.Float64Var(&probability, "failure-probability", defaultProbability, "Failure probability for tVNS-R commands (0.0 to 1.0)")
	flag.Float64Var(&probability, "f", defaultProbability, "Shorthand for --failure-probability")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "Simulate a tVNS-R HTTP server with specified failure probability.")
		flag.PrintDefaults()
	}
	flag.Parse()

	server, err := mockserver.New(mockserver.Config{FailureProbability: probability}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	gin.SetMode(gin.ReleaseMode)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: server.Handler(),
	}

	go func() {
		logger.Info().Msg("Initializing tVNS-R Mock Server...")
		logger.Info().
			Int("port", port).
			Float64("failure_percent", server.FailureProbability()*100).
			Msgf("Serving on port %d with %v%% failure probability...", port, server.FailureProbability()*100)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
