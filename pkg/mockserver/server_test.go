package mockserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"tvnsr/pkg/tvns"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestServer(t *testing.T, p float64) *Server {
	t.Helper()
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	server, err := New(Config{FailureProbability: p}, logger)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return server
}

func post(t *testing.T, url, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(url, "text/plain", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	return resp.StatusCode, string(data)
}

func TestNew_RejectsInvalidProbability(t *testing.T) {
	for _, p := range []float64{-0.1, 1.01, 5} {
		if _, err := New(Config{FailureProbability: p}, zerolog.Nop()); err == nil {
			t.Errorf("Expected probability %v to be rejected", p)
		}
	}
	for _, p := range []float64{0, 0.2, 1} {
		server, err := New(Config{FailureProbability: p}, zerolog.Nop())
		if err != nil {
			t.Errorf("Expected probability %v to be accepted: %v", p, err)
			continue
		}
		if got := server.FailureProbability(); got != p {
			t.Errorf("FailureProbability() = %v, want %v", got, p)
		}
	}
}

func TestRespond_NeverFails(t *testing.T) {
	server := newTestServer(t, 0.0)

	for _, cmd := range tvns.Commands() {
		for i := 0; i < 20; i++ {
			status, body := server.Respond(string(cmd))
			if status != http.StatusOK {
				t.Fatalf("%s: expected status 200, got %d", cmd, status)
			}
			if !strings.HasPrefix(body, "success: "+cmd.Describe().Success+"::") {
				t.Fatalf("%s: unexpected body %q", cmd, body)
			}
			if !strings.HasSuffix(body, " (mocked output) \n") {
				t.Fatalf("%s: missing mocked output marker in %q", cmd, body)
			}
		}
	}
}

func TestRespond_AlwaysFails(t *testing.T) {
	server := newTestServer(t, 1.0)

	for _, cmd := range tvns.Commands() {
		for i := 0; i < 20; i++ {
			status, body := server.Respond(string(cmd))
			if status != http.StatusOK {
				t.Fatalf("%s: expected status 200, got %d", cmd, status)
			}

			if cmd == tvns.Initialise {
				if !strings.Contains(body, "success") {
					t.Fatalf("initialise must always succeed, got %q", body)
				}
				continue
			}

			want := "failed: " + cmd.Describe().Failure + "::"
			if !strings.HasPrefix(body, want) {
				t.Fatalf("%s: expected prefix %q, got %q", cmd, want, body)
			}
			if strings.Contains(body, "success") {
				t.Fatalf("%s: failure response mentions success: %q", cmd, body)
			}
		}
	}
}

func TestRespond_DrawAgainstProbability(t *testing.T) {
	server := newTestServer(t, 0.5)

	server.draw = func() float64 { return 0.49 }
	if _, body := server.Respond("startStimulation"); !strings.HasPrefix(body, "failed: Stimulation not started") {
		t.Errorf("Expected draw below probability to fail, got %q", body)
	}

	server.draw = func() float64 { return 0.5 }
	if _, body := server.Respond("startStimulation"); !strings.HasPrefix(body, "success: Stimulation started") {
		t.Errorf("Expected draw at probability to succeed, got %q", body)
	}

	draws := 0
	server.draw = func() float64 { draws++; return 0 }
	server.Respond("initialise")
	if draws != 0 {
		t.Errorf("initialise consumed %d random draws", draws)
	}
}

func TestRespond_Timestamp(t *testing.T) {
	server := newTestServer(t, 0.0)
	server.now = func() time.Time {
		return time.Date(2024, 1, 2, 13, 4, 5, 678_900_000, time.Local)
	}

	_, body := server.Respond("stopTreatment")
	if want := "success: Treatment stopped::13:04:05.678 (mocked output) \n"; body != want {
		t.Errorf("Body = %q, want %q", body, want)
	}

	status, body := server.Respond("reboot")
	if status != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", status)
	}
	if want := "illegal command: The command was not recognized::13:04:05.678\n"; body != want {
		t.Errorf("Body = %q, want %q", body, want)
	}
}

func TestHandler_Commands(t *testing.T) {
	server := newTestServer(t, 0.0)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	for _, cmd := range tvns.Commands() {
		status, body := post(t, ts.URL+"/tvnsmanager/"+string(cmd), string(cmd))
		if status != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", cmd, status)
		}
		if !strings.Contains(body, "success") {
			t.Errorf("%s: expected success, got %q", cmd, body)
		}
	}
}

func TestHandler_BodySelectsCommand(t *testing.T) {
	server := newTestServer(t, 0.0)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	// Path and body disagree, the body wins.
	_, body := post(t, ts.URL+"/tvnsmanager/initialise", "stopStimulation")
	if !strings.HasPrefix(body, "success: Stimulation stopped") {
		t.Errorf("Unexpected body %q", body)
	}

	_, body = post(t, ts.URL+"/", "startTreatment")
	if !strings.HasPrefix(body, "success: Treatment started") {
		t.Errorf("Unexpected body %q", body)
	}
}

func TestHandler_IllegalCommand(t *testing.T) {
	server := newTestServer(t, 0.0)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	for _, body := range []string{"", "Initialise", "startStimulation\n", "{}", "pulse"} {
		status, text := post(t, ts.URL+"/tvnsmanager/x", body)
		if status != http.StatusBadRequest {
			t.Errorf("%q: expected status 400, got %d", body, status)
		}
		if !strings.Contains(text, "illegal command") {
			t.Errorf("%q: expected illegal command text, got %q", body, text)
		}
	}
}

func TestHandler_ContentType(t *testing.T) {
	server := newTestServer(t, 0.0)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/tvnsmanager/initialise", "text/plain", strings.NewReader("initialise"))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Unexpected Content-Type %q", ct)
	}
}

func TestHandler_RejectsOtherMethods(t *testing.T) {
	server := newTestServer(t, 0.0)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/tvnsmanager/initialise")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", resp.StatusCode)
	}
}
