package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tvnsr/pkg/trigger"
	"tvnsr/pkg/tvns"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// protocol holds the parameters of the reference trigger run
type protocol struct {
	pulses        int
	pulseDuration time.Duration
	interpulse    time.Duration
	settle        time.Duration // between single commands
	hold          time.Duration // continuous stimulation and shutdown
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: tvns.Clock}).
		With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Msg("Failed to load .env file")
	}

	config := trigger.Config{}
	p := protocol{}
	verbose := false

	flag.StringVar(&config.BaseURL, "url", getEnv("TVNS_URL", tvns.DefaultBaseURL), "Base URL of the tVNS Manager")
	flag.StringVar(&config.LogFile, "log", getEnv("TVNS_LOG_FILE", ""), "Event log file (empty disables logging)")
	flag.StringVar(&config.Participant, "participant", getEnv("TVNS_PARTICIPANT", ""), "Participant name recorded in the event log")
	flag.DurationVar(&config.Timeout, "timeout", 10*time.Second, "Timeout for a single command")
	flag.IntVar(&p.pulses, "pulses", 5, "Number of pulses to emit")
	flag.DurationVar(&p.pulseDuration, "pulse-duration", 100*time.Millisecond, "Length of each pulse")
	flag.DurationVar(&p.interpulse, "interpulse", 100*time.Millisecond, "Pause between pulses")
	flag.DurationVar(&p.settle, "settle", time.Second, "Wait between single commands")
	flag.DurationVar(&p.hold, "hold", 2*time.Second, "Length of the continuous stimulation block")
	flag.BoolVar(&verbose, "v", false, "Log every request")
	flag.Parse()

	if verbose {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := trigger.New(config, logger)

	fmt.Println()
	fmt.Println(strings.Repeat("-", 40))
	fmt.Println("Test of tVNS-R remote triggering")
	fmt.Printf("URL: %s\n", config.BaseURL)
	fmt.Printf("log: %s\n", client.EventLogPath())
	fmt.Println(strings.Repeat("-", 40))
	fmt.Println()

	if !run(ctx, os.Stdout, client, p) {
		os.Exit(1)
	}
}

// run drives the reference protocol and reports whether every command
// succeeded. Depending on the Bluetooth link it may be necessary to add
// short pauses between commands.
func run(ctx context.Context, out io.Writer, client *trigger.Client, p protocol) bool {
	ok := true
	report := func(r trigger.Result) {
		fmt.Fprintln(out, r)
		ok = ok && r.Success
	}
	wait := func(d time.Duration) {
		select {
		case <-ctx.Done():
		case <-time.After(d):
		}
	}

	report(client.InitializeConnection(ctx))
	report(client.StartTreatment(ctx))
	report(client.StopStimulation(ctx))
	wait(p.settle)
	report(client.StartStimulation(ctx))
	wait(p.hold)
	report(client.StopStimulation(ctx))
	wait(p.settle)

	for i := 0; i < p.pulses && ctx.Err() == nil; i++ {
		report(client.Pulse(ctx, p.pulseDuration))
		wait(p.interpulse)
	}

	// Always leave the device stopped, even after an interrupt
	cleanup := context.WithoutCancel(ctx)
	report(client.StopStimulation(cleanup))
	wait(p.hold)
	report(client.StopTreatment(cleanup))

	return ok
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
