// Package statushttp is the machine control surface: a goji-routed table of
// handlers, built with generichttp's typed get/set wrappers, that a caller
// mounts under a root router to drive and observe one Supervisor.
package statushttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/pchote/puoko-nui-go/camerabackend"
	"github.com/pchote/puoko-nui-go/config"
	"github.com/pchote/puoko-nui-go/generichttp"
	"github.com/pchote/puoko-nui-go/logbuf"
	"github.com/pchote/puoko-nui-go/server"
	"goji.io/pat"
)

// Supervisor is the capability set the control surface drives. supervisor.Supervisor
// implements it.
type Supervisor interface {
	StartAcquisition()
	StopAcquisition()
	CameraMode() camerabackend.Mode
	Temperature() float64
	RunNumber() int
	Config() *config.Config
	QueueDepths() (frames, triggers int)
	SaveHistory() []time.Time
	PreviewHistory() []time.Time
	Log() *logbuf.Buffer
	FatalError() error
}

// Handler wraps a Supervisor in an HTTP route table.
type Handler struct {
	sup Supervisor
}

// New constructs a Handler bound to sup.
func New(sup Supervisor) *Handler {
	return &Handler{sup: sup}
}

// RT returns the route table, satisfying generichttp.HTTPer.
func (h *Handler) RT() generichttp.RouteTable {
	return generichttp.RouteTable{
		pat.Get("/config/:key"):   h.getConfig(),
		pat.Post("/config/:key"):  h.setConfig(),
		pat.Post("/acquire/start"): h.acquireStart(),
		pat.Post("/acquire/stop"):  h.acquireStop(),
		pat.Get("/status"):        h.status(),
		pat.Get("/log"):           h.log(),
		pat.Get("/cadence"):       h.cadence(),
		pat.Get("/image"):         h.image(),
	}
}

// configValueT is the wire shape of a single config key's value: always
// transmitted as its string representation, since the key space spans
// strings, ints, bools, and floats.
type configValueT struct {
	Value string `json:"value"`
}

func (h *Handler) getConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := pat.Param(r, "key")
		raw, err := stringifyConfigValue(h.sup.Config().Snapshot(), key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, configValueT{Value: raw})
	}
}

func (h *Handler) setConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := pat.Param(r, "key")
		var body configValueT
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			r.Body.Close()
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		r.Body.Close()
		if err := h.sup.Config().Set(key, body.Value); err != nil {
			if errors.Is(err, config.ErrHardwareBindingLocked) {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (h *Handler) acquireStart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.sup.StartAcquisition()
		w.WriteHeader(http.StatusOK)
	}
}

func (h *Handler) acquireStop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.sup.StopAcquisition()
		w.WriteHeader(http.StatusOK)
	}
}

// statusT is the status snapshot served at /status.
type statusT struct {
	CameraMode     string  `json:"camera_mode"`
	Temperature    float64 `json:"temperature"`
	RunNumber      int     `json:"run_number"`
	FrameQueue     int     `json:"frame_queue_depth"`
	TriggerQueue   int     `json:"trigger_queue_depth"`
	FatalError     string  `json:"fatal_error,omitempty"`
}

func (h *Handler) status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frames, triggers := h.sup.QueueDepths()
		st := statusT{
			CameraMode:   h.sup.CameraMode().String(),
			Temperature:  h.sup.Temperature(),
			RunNumber:    h.sup.RunNumber(),
			FrameQueue:   frames,
			TriggerQueue: triggers,
		}
		if err := h.sup.FatalError(); err != nil {
			st.FatalError = err.Error()
		}
		writeJSON(w, st)
	}
}

func (h *Handler) log() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, h.sup.Log().Lines())
	}
}

// cadenceT is the cadence snapshot served at /cadence.
type cadenceT struct {
	Saves    []time.Time `json:"saves"`
	Previews []time.Time `json:"previews"`
}

func (h *Handler) cadence() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, cadenceT{
			Saves:    h.sup.SaveHistory(),
			Previews: h.sup.PreviewHistory(),
		})
	}
}

func (h *Handler) image() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dir := h.sup.Config().Snapshot().OutputDir
		server.ReplyWithFile(w, r, "preview.fits.gz", dir)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
