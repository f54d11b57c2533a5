package statushttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pchote/puoko-nui-go/camerabackend"
	"github.com/pchote/puoko-nui-go/config"
	"github.com/pchote/puoko-nui-go/logbuf"
	"goji.io"
)

type fakeSupervisor struct {
	cfg          *config.Config
	mode         camerabackend.Mode
	temperature  float64
	runNumber    int
	log          *logbuf.Buffer
	started      bool
	stopped      bool
	fatalErr     error
	saveHistory  []time.Time
	previewHist  []time.Time
}

func (f *fakeSupervisor) StartAcquisition()                         { f.started = true }
func (f *fakeSupervisor) StopAcquisition()                          { f.stopped = true }
func (f *fakeSupervisor) CameraMode() camerabackend.Mode             { return f.mode }
func (f *fakeSupervisor) Temperature() float64                      { return f.temperature }
func (f *fakeSupervisor) RunNumber() int                            { return f.runNumber }
func (f *fakeSupervisor) Config() *config.Config                    { return f.cfg }
func (f *fakeSupervisor) QueueDepths() (int, int)                   { return 2, 1 }
func (f *fakeSupervisor) SaveHistory() []time.Time                  { return f.saveHistory }
func (f *fakeSupervisor) PreviewHistory() []time.Time               { return f.previewHist }
func (f *fakeSupervisor) Log() *logbuf.Buffer                       { return f.log }
func (f *fakeSupervisor) FatalError() error                         { return f.fatalErr }

func newTestServer(t *testing.T) (*httptest.Server, *fakeSupervisor) {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if err := cfg.Set("output_dir", dir); err != nil {
		t.Fatalf("config.Set: %v", err)
	}
	log := logbuf.New()
	log.Logf("hello %d", 1)

	sup := &fakeSupervisor{cfg: cfg, mode: camerabackend.ModeIdle, temperature: -20.5, runNumber: 3, log: log}
	h := New(sup)

	mux := goji.NewMux()
	h.RT().Bind(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, sup
}

func TestGetConfigReturnsCurrentValue(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/config/exposure_time")
	if err != nil {
		t.Fatalf("GET /config/exposure_time: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body configValueT
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Value != "5" {
		t.Errorf("expected default exposure_time 5, got %q", body.Value)
	}
}

func TestSetConfigRejectsHardwareBindingKeyMidAcquisition(t *testing.T) {
	srv, sup := newTestServer(t)
	sup.cfg.BeginAcquisition()
	defer sup.cfg.EndAcquisition()

	body := strings.NewReader(`{"value":"MILLISECONDS"}`)
	resp, err := http.Post(srv.URL+"/config/trigger_mode", "application/json", body)
	if err != nil {
		t.Fatalf("POST /config/trigger_mode: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestAcquireStartAndStopDriveSupervisor(t *testing.T) {
	srv, sup := newTestServer(t)

	if _, err := http.Post(srv.URL+"/acquire/start", "application/json", nil); err != nil {
		t.Fatalf("POST /acquire/start: %v", err)
	}
	if !sup.started {
		t.Error("expected StartAcquisition to be called")
	}

	if _, err := http.Post(srv.URL+"/acquire/stop", "application/json", nil); err != nil {
		t.Fatalf("POST /acquire/stop: %v", err)
	}
	if !sup.stopped {
		t.Error("expected StopAcquisition to be called")
	}
}

func TestStatusReportsSupervisorState(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()
	var st statusT
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if st.CameraMode != camerabackend.ModeIdle.String() {
		t.Errorf("expected camera_mode %q, got %q", camerabackend.ModeIdle.String(), st.CameraMode)
	}
	if st.RunNumber != 3 {
		t.Errorf("expected run_number 3, got %d", st.RunNumber)
	}
	if st.FrameQueue != 2 || st.TriggerQueue != 1 {
		t.Errorf("expected queue depths 2/1, got %d/%d", st.FrameQueue, st.TriggerQueue)
	}
}

func TestLogReturnsRecentLines(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/log")
	if err != nil {
		t.Fatalf("GET /log: %v", err)
	}
	defer resp.Body.Close()
	var lines []logbuf.Line
	if err := json.NewDecoder(resp.Body).Decode(&lines); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(lines) != 1 || lines[0].Text != "hello 1" {
		t.Errorf("expected one line %q, got %+v", "hello 1", lines)
	}
}

func TestImageServesPreviewFile(t *testing.T) {
	srv, sup := newTestServer(t)

	path := filepath.Join(sup.cfg.Snapshot().OutputDir, "preview.fits.gz")
	if err := os.WriteFile(path, []byte("fake-fits-bytes"), 0644); err != nil {
		t.Fatalf("writing preview file: %v", err)
	}

	resp, err := http.Get(srv.URL + "/image")
	if err != nil {
		t.Fatalf("GET /image: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestImageReturns404WhenNoPreviewExists(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/image")
	if err != nil {
		t.Fatalf("GET /image: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
