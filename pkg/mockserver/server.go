package mockserver

import (
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"tvnsr/pkg/tvns"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Config represents the configuration of the mock tVNS Manager
type Config struct {
	// FailureProbability is the chance in [0,1] that a command is refused.
	FailureProbability float64 `json:"failure_probability"`
}

// Server answers tVNS Manager commands without a device attached. Every
// command except initialise fails independently with the configured
// probability.
type Server struct {
	config Config
	logger zerolog.Logger

	draw func() float64
	now  func() time.Time
}

// New creates a mock server
func New(config Config, logger zerolog.Logger) (*Server, error) {
	p := config.FailureProbability
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("failure probability must be within [0, 1], got %v", p)
	}

	return &Server{
		config: config,
		logger: logger,
		draw:   rand.Float64,
		now:    time.Now,
	}, nil
}

// FailureProbability returns the configured failure probability
func (s *Server) FailureProbability() float64 {
	return s.config.FailureProbability
}

// Respond computes the status code and body for a raw request body.
func (s *Server) Respond(body string) (int, string) {
	timestamp := tvns.FormatClock(s.now())

	cmd, err := tvns.ParseCommand(body)
	if err != nil {
		s.logger.Warn().Str("body", body).Msg("Illegal command")
		return http.StatusBadRequest,
			fmt.Sprintf("illegal command: The command was not recognized::%s\n", timestamp)
	}

	desc := cmd.Describe()
	outcome, message := "success", desc.Success
	if cmd.CanFail() && s.draw() < s.config.FailureProbability {
		outcome, message = "failed", desc.Failure
	}

	s.logger.Info().
		Str("command", cmd.String()).
		Str("outcome", outcome).
		Msg("Command handled")

	return http.StatusOK, fmt.Sprintf("%s: %s::%s (mocked output) \n", outcome, message, timestamp)
}

// Handler returns the HTTP handler serving the command endpoint. Any path
// is accepted, the command is selected by the request body alone.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(requestLogger(s.logger), gin.Recovery())

	router.POST("/*endpoint", s.handleCommand)

	return router
}

func (s *Server) handleCommand(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "failed to read request body: %v", err)
		return
	}

	status, text := s.Respond(string(body))
	c.Data(status, "text/plain; charset=utf-8", []byte(text))
}

// requestLogger logs every request through zerolog
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request served")
	}
}
