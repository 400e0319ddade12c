package tvns

import (
	"fmt"
	"strconv"
	"time"
)

// Command is a tVNS-R Manager command. The literal is sent verbatim as the
// request body and doubles as the endpoint name.
type Command string

const (
	Initialise       Command = "initialise"
	StartTreatment   Command = "startTreatment"
	StopTreatment    Command = "stopTreatment"
	StartStimulation Command = "startStimulation"
	StopStimulation  Command = "stopStimulation"
)

const (
	// DefaultPort is the port the tVNS Manager listens on.
	DefaultPort = 51523

	// DefaultBaseURL is where a locally running tVNS Manager accepts commands.
	DefaultBaseURL = "http://localhost:51523/tvnsmanager/"
)

// Timestamp layouts shared by the client, the mock server and the event log.
const (
	Clock      = "15:04:05.000"
	LogTime    = "2006-01-02 15:04:05.000"
	FileSuffix = "20060102150405"
)

// Description holds the human readable outcome texts of a command.
type Description struct {
	Success string
	Failure string
}

var descriptions = map[Command]Description{
	Initialise:       {Success: "The tVNS-R device has been initialized"},
	StartTreatment:   {Success: "Treatment started", Failure: "Treatment not started"},
	StopTreatment:    {Success: "Treatment stopped", Failure: "Treatment not stopped"},
	StartStimulation: {Success: "Stimulation started", Failure: "Stimulation not started"},
	StopStimulation:  {Success: "Stimulation stopped", Failure: "Stimulation not stopped"},
}

// Commands returns the full command vocabulary in protocol order.
func Commands() []Command {
	return []Command{Initialise, StartTreatment, StopTreatment, StartStimulation, StopStimulation}
}

// ParseCommand matches s exactly (case-sensitive) against the vocabulary.
func ParseCommand(s string) (Command, error) {
	c := Command(s)
	if _, ok := descriptions[c]; !ok {
		return "", fmt.Errorf("unknown command %q", s)
	}
	return c, nil
}

// Describe returns the outcome texts for c.
func (c Command) Describe() Description {
	return descriptions[c]
}

// CanFail reports whether the device may refuse c. Initialisation always
// succeeds.
func (c Command) CanFail() bool {
	return descriptions[c].Failure != ""
}

func (c Command) String() string {
	return string(c)
}

// FormatClock formats t as hours:minutes:seconds.milliseconds.
func FormatClock(t time.Time) string {
	return t.Format(Clock)
}

// FormatSeconds renders d in seconds using the shortest decimal form,
// e.g. 50ms becomes "0.05" and 2s becomes "2".
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
