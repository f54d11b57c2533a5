package config

import (
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/pkg/errors"
)

// LogSink receives a line of text; statushttp/logbuf implements it.
type LogSink interface {
	Logf(format string, args ...interface{})
}

// Watch starts watching c's backing file for writes and reloads
// non-hardware-binding fields whenever it changes, logging the outcome to
// sink. Hardware-binding fields present in the file are silently ignored
// while an acquisition is running, mirroring the lock Set enforces.
// Watch runs until stop is closed.
func (c *Config) Watch(sink LogSink, stop <-chan struct{}) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "config: starting file watcher")
	}
	if err := w.Add(c.path); err != nil {
		w.Close()
		return errors.Wrapf(err, "config: watching %s", c.path)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				c.reload(sink)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				sink.Logf("config: watch error: %v", err)
			}
		}
	}()
	return nil
}

func (c *Config) reload(sink LogSink) {
	k := koanf.New(".")
	k.Load(structs.Provider(Default(), "koanf"), nil)
	if err := k.Load(file.Provider(c.path), yaml.Parser()); err != nil {
		if !strings.Contains(err.Error(), "no such file") {
			sink.Logf("config: reload of %s failed: %v", c.path, err)
			return
		}
	}
	var next Values
	if err := k.Unmarshal("", &next); err != nil {
		sink.Logf("config: reload of %s failed to unmarshal: %v", c.path, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.acquiring {
		// preserve every hardware-binding field from the live value, so an
		// edit made mid-run only ever takes effect on the fields it is
		// allowed to touch.
		prev := c.values
		next.TriggerMode = prev.TriggerMode
		next.CameraBinning = prev.CameraBinning
		next.CameraWindowX = prev.CameraWindowX
		next.CameraWindowY = prev.CameraWindowY
		next.CameraWindowWidth = prev.CameraWindowWidth
		next.CameraWindowHeight = prev.CameraWindowHeight
		next.CameraReadportMode = prev.CameraReadportMode
		next.CameraReadspeedMode = prev.CameraReadspeedMode
		next.CameraGainMode = prev.CameraGainMode
		next.CameraTemperature = prev.CameraTemperature
	}
	c.values = next
	c.k = k
	sink.Logf("config: reloaded %s", c.path)
}
