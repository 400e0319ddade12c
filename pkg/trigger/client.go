package trigger

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tvnsr/pkg/eventlog"
	"tvnsr/pkg/tvns"

	"github.com/rs/zerolog"
)

const defaultTimeout = 10 * time.Second

// MinPulseDuration is the shortest pulse the client accepts.
const MinPulseDuration time.Duration = 0

// Config represents the configuration of a trigger client
type Config struct {
	BaseURL     string        `json:"base_url"`
	LogFile     string        `json:"log_file"`    // event log path, empty disables it
	Participant string        `json:"participant"` // recorded on every event log line
	Timeout     time.Duration `json:"timeout"`
}

// Result is the outcome of a command: whether it succeeded and the text
// describing it.
type Result struct {
	Success bool
	Text    string
}

func (r Result) String() string {
	return fmt.Sprintf("(%t, %q)", r.Success, r.Text)
}

// Client sends commands to a tVNS Manager and mirrors the stimulation state
// locally. A Client is not safe for concurrent use.
type Client struct {
	baseURL     string
	participant string
	httpClient  *http.Client
	events      *eventlog.Logger
	logger      zerolog.Logger

	stimulationActive bool

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

// New creates a new trigger client
func New(config Config, logger zerolog.Logger) *Client {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = tvns.DefaultBaseURL
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	// Commands are strictly sequential, a single kept-alive connection is enough
	transport := &http.Transport{
		MaxIdleConnsPerHost: 1,
		IdleConnTimeout:     90 * time.Second,
	}

	c := &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		participant: config.Participant,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		logger: logger,
		sleep:  sleepContext,
		now:    time.Now,
	}

	if config.LogFile != "" {
		c.events = eventlog.New(config.LogFile)
		logger.Info().Str("path", c.events.Path()).Msg("Event log configured")
	}

	return c
}

// StimulationActive reports the locally mirrored stimulation state. It
// follows the commands sent, not a confirmed device read-back.
func (c *Client) StimulationActive() bool {
	return c.stimulationActive
}

// EventLogPath returns the event log file, or "" when logging is disabled.
func (c *Client) EventLogPath() string {
	if c.events == nil {
		return ""
	}
	return c.events.Path()
}

// InitializeConnection initializes the connection with the tVNS device.
func (c *Client) InitializeConnection(ctx context.Context) Result {
	return c.validated(func() string {
		text := c.send(ctx, tvns.Initialise)
		c.record("Initialized connection")
		return text
	})
}

// StartTreatment starts the tVNS treatment.
func (c *Client) StartTreatment(ctx context.Context) Result {
	return c.validated(func() string {
		text := c.send(ctx, tvns.StartTreatment)
		c.record("Started treatment")
		c.stimulationActive = true
		return text
	})
}

// StopTreatment stops the tVNS treatment.
func (c *Client) StopTreatment(ctx context.Context) Result {
	return c.validated(func() string {
		text := c.send(ctx, tvns.StopTreatment)
		c.record("Stopped treatment")
		c.stimulationActive = false
		return text
	})
}

// StartStimulation starts the tVNS stimulation. The local state is set
// even when the device refuses the command.
func (c *Client) StartStimulation(ctx context.Context) Result {
	return c.validated(func() string {
		text := c.send(ctx, tvns.StartStimulation)
		c.record("Started stimulation")
		c.stimulationActive = true
		return text
	})
}

// StopStimulation stops the tVNS stimulation. The local state is cleared
// even when the device refuses the command.
func (c *Client) StopStimulation(ctx context.Context) Result {
	return c.validated(func() string {
		text := c.send(ctx, tvns.StopStimulation)
		c.record("Stopped stimulation")
		c.stimulationActive = false
		return text
	})
}

// PauseStimulation keeps the current stimulation state for d without
// contacting the device. It blocks the caller until d has elapsed or ctx is
// done.
func (c *Client) PauseStimulation(ctx context.Context, d time.Duration) string {
	msg := fmt.Sprintf("Paused stimulation for %s seconds / %s milliseconds.",
		tvns.FormatSeconds(d), strconv.FormatFloat(d.Seconds()*1000, 'f', -1, 64))
	c.record(msg)

	if err := c.sleep(ctx, d); err != nil {
		c.logger.Warn().Err(err).Dur("duration", d).Msg("Pause interrupted")
	}
	return msg
}

// Pulse emits a single stimulation pulse of length d. An already running
// stimulation is stopped first so the pulse has a clean start. The final
// stop is sent even if ctx is cancelled during the hold, in which case the
// pulse is reported as failed. Timing is only as precise as the device link.
func (c *Client) Pulse(ctx context.Context, d time.Duration) Result {
	if d < MinPulseDuration {
		return Result{
			Success: false,
			Text:    fmt.Sprintf("Requested Pulse too short. Min duration %ss", tvns.FormatSeconds(MinPulseDuration)),
		}
	}

	success := true
	if c.stimulationActive {
		success = c.StopStimulation(ctx).Success
	}
	success = c.StartStimulation(ctx).Success && success

	if err := c.sleep(ctx, d); err != nil {
		c.logger.Warn().Err(err).Dur("duration", d).Msg("Pulse hold interrupted")
		success = false
	}

	success = c.StopStimulation(context.WithoutCancel(ctx)).Success && success

	c.record("Started stimulation (pulsed)")

	outcome := "failed"
	if success {
		outcome = "success"
	}
	return Result{
		Success: success,
		Text: fmt.Sprintf("%s pulsedStimulation (%ss)::%s (custom return)",
			outcome, tvns.FormatSeconds(d), tvns.FormatClock(c.now())),
	}
}

// validated runs produce and checks its response for the success marker.
// Failed responses are recorded in the event log.
func (c *Client) validated(produce func() string) Result {
	text := produce()
	ok := strings.Contains(text, "success")
	if !ok {
		c.record("Command failed: " + text)
	}
	return Result{Success: ok, Text: text}
}

// send posts cmd to its endpoint and returns the response text. Transport
// errors and non-200 responses are turned into descriptive text.
func (c *Client) send(ctx context.Context, cmd tvns.Command) string {
	url := c.baseURL + "/" + cmd.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(cmd.String()))
	if err != nil {
		return fmt.Sprintf("HTTP request failed: %v", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("command", cmd.String()).Msg("Command request failed")
		return fmt.Sprintf("HTTP request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)

	c.logger.Debug().
		Str("command", cmd.String()).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Command sent")

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("HTTP request failed with status code: %d", resp.StatusCode)
	}
	if err != nil {
		return fmt.Sprintf("HTTP request failed: %v", err)
	}
	return string(body)
}

// record appends message to the event log, if one is configured.
func (c *Client) record(message string) {
	if c.events == nil {
		return
	}
	if err := c.events.LogParticipant(c.participant, message); err != nil {
		c.logger.Warn().Err(err).Str("path", c.events.Path()).Msg("Failed to write event log")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
