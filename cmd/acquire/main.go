package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/go-chi/chi"
	yml "github.com/go-yaml/yaml"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/mattn/go-runewidth"
	"github.com/theckman/yacspin"
	"goji.io"

	"github.com/pchote/puoko-nui-go/camerabackend"
	"github.com/pchote/puoko-nui-go/config"
	"github.com/pchote/puoko-nui-go/gpstimer"
	"github.com/pchote/puoko-nui-go/logbuf"
	"github.com/pchote/puoko-nui-go/statushttp"
	"github.com/pchote/puoko-nui-go/supervisor"
)

// Version is the version number, injected via ldflags with the git build.
var Version = "dev"

// ConfigFileName is the YAML file read at startup and written by mkconf.
const ConfigFileName = "acquire.yml"

var k = koanf.New(".")

func setupconfig() {
	if err := k.Load(structs.Provider(config.Default(), "koanf"), nil); err != nil {
		log.Fatalf("error loading defaults: %v", err)
	}
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		if !strings.Contains(err.Error(), "no such") {
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `acquire drives a GPS-timestamped CCD photometer: it pairs frames read off
the camera with GPS trigger timestamps, writes them to disk, and exposes a
machine control surface over HTTP.

Usage:
	acquire <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `acquire is configured via its .yaml file. Keys are not case-sensitive.
The command mkconf writes a file populated with the default values; conf
prints the configuration currently in effect.`
	fmt.Println(str)
}

func mkconf() {
	var v config.Values
	if err := k.Unmarshal("", &v); err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := yml.NewEncoder(f).Encode(v); err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	var v config.Values
	if err := k.Unmarshal("", &v); err != nil {
		log.Fatal(err)
	}
	if err := yml.NewEncoder(os.Stdout).Encode(v); err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("acquire version %v\n", Version)
}

// coloredSink adapts logbuf.Buffer's Logf to also print each line to the
// terminal, colorized by the level word found anywhere in the message.
type coloredSink struct {
	*logbuf.Buffer
}

func (c coloredSink) Logf(format string, args ...interface{}) {
	c.Buffer.Logf(format, args...)
	msg := fmt.Sprintf(format, args...)
	switch {
	case strings.Contains(msg, "fatal"):
		color.Red(msg)
	case strings.Contains(msg, "error") || strings.Contains(msg, "failed"):
		color.Red(msg)
	case strings.Contains(msg, "warn"):
		color.Yellow(msg)
	default:
		fmt.Println(msg)
	}
}

func statusLine(cam camerabackend.Mode, frames, triggers int) string {
	left := runewidth.FillRight(fmt.Sprintf("camera: %s", cam), 24)
	right := fmt.Sprintf("frames queued: %d  triggers queued: %d", frames, triggers)
	return left + right
}

func run() {
	var v config.Values
	if err := k.Unmarshal("", &v); err != nil {
		log.Fatal(err)
	}
	cfg, err := config.Load(ConfigFileName)
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	log := coloredSink{logbuf.New()}

	spinnerCfg := yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " initializing timer and camera",
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
	}
	spinner, err := yacspin.New(spinnerCfg)
	if err == nil {
		spinner.Start()
	}

	var backend camerabackend.Backend
	switch strings.ToUpper(v.CameraBackend) {
	case "PVCAM":
		backend = camerabackend.NewPVCAM()
	case "PICAM":
		backend = camerabackend.NewPICAM()
	default:
		backend = camerabackend.NewSimulated()
	}

	var timer gpstimer.Timer
	if v.TimerSerialPort == "" || strings.EqualFold(v.CameraBackend, "SIMULATED") {
		timer = gpstimer.NewSimulated(log)
	} else {
		timer = gpstimer.NewSerial(v.TimerSerialPort, v.TimerBaud, log)
	}

	watchStop := make(chan struct{})
	if err := cfg.Watch(log, watchStop); err != nil {
		log.Logf("config: live-reload disabled: %v", err)
	}
	defer close(watchStop)

	sup := supervisor.New(cfg, backend, timer, log.Buffer)
	sup.Start()
	defer sup.Shutdown()

	if spinner != nil {
		spinner.Stop()
	}

	control := goji.NewMux()
	statushttp.New(sup).RT().Bind(control)

	mux := chi.NewRouter()
	mux.Mount("/control", control)

	go func() {
		for {
			frames, triggers := sup.QueueDepths()
			fmt.Println(statusLine(sup.CameraMode(), frames, triggers))
			time.Sleep(5 * time.Second)
		}
	}()

	addr := v.HTTPAddr
	fmt.Printf("acquire listening at %s\n", addr)
	log.Logf("server started at %s", addr)
	log.Logf("fatal: %v", http.ListenAndServe(addr, mux))
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	switch strings.ToLower(args[1]) {
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "run":
		run()
	case "version":
		pversion()
	default:
		log.Fatal("unknown command")
	}
}
