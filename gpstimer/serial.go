package gpstimer

import (
	"encoding/hex"
	"io"
	"sync"
	"time"

	tarmserial "github.com/tarm/serial"

	"github.com/pchote/puoko-nui-go/comm"
	"github.com/pchote/puoko-nui-go/timerproto"
	"github.com/pchote/puoko-nui-go/trigger"
)

// readTimeout bounds a single raw read so the worker loop can always check
// its shutdown signal within about one tick.
const readTimeout = 1 * time.Millisecond

// Serial drives the timer board over a real serial port, framing and
// parsing the wire protocol via timerproto.Parser.
type Serial struct {
	dev    *comm.RemoteDevice
	parser *timerproto.Parser
	log    LogSink

	mu       sync.Mutex
	current  trigger.Timestamp
	mode     timerproto.TimerMode
	fatalErr error

	sendMu  sync.Mutex
	sendBuf [][]byte

	triggers   chan trigger.Timestamp
	safeToStop chan struct{}
}

// NewSerial opens a timer board on the named serial port at baud.
func NewSerial(port string, baud int, log LogSink) *Serial {
	cfg := &tarmserial.Config{Name: port, Baud: baud, ReadTimeout: readTimeout}
	dev := comm.NewRemoteDevice(port, true, nil, cfg)
	return &Serial{
		dev:        &dev,
		parser:     timerproto.NewParser(),
		log:        log,
		mode:       timerproto.ModeIdle,
		triggers:   make(chan trigger.Timestamp, 64),
		safeToStop: make(chan struct{}, 1),
	}
}

func (s *Serial) CurrentTimestamp() trigger.Timestamp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Serial) Mode() timerproto.TimerMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// FatalError reports the error that caused Run to return early, if any.
func (s *Serial) FatalError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatalErr
}

func (s *Serial) fail(err error) {
	s.mu.Lock()
	s.fatalErr = err
	s.mu.Unlock()
}

func (s *Serial) Triggers() <-chan trigger.Timestamp { return s.triggers }
func (s *Serial) SafeToStop() <-chan struct{}        { return s.safeToStop }

// enqueueSend appends wire to the send buffer; the next Run iteration
// drains it. Commands issued from other goroutines are coalesced here
// under a mutex separate from the one guarding mode/timestamp, so sending
// and receiving never contend on the same lock.
func (s *Serial) enqueueSend(wire []byte) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.sendBuf = append(s.sendBuf, wire)
}

func (s *Serial) StartExposure(exptimeUnits uint16, millisecondMode bool, useMonitor bool, alignFirst bool) {
	s.log.Logf("gpstimer: starting %d %s exposures", exptimeUnits, unitName(millisecondMode))
	if !useMonitor {
		s.log.Logf("gpstimer: WARNING: timer monitor is disabled")
	}

	send := func() {
		// SIMULATE_CAMERA must precede START_EXPOSURE so the timer knows
		// whether to expect a real camera download acknowledgement.
		s.enqueueSend(timerproto.EncodeSimulateCamera(!useMonitor))
		s.enqueueSend(timerproto.EncodeStartExposure(exptimeUnits))
	}

	if !alignFirst {
		send()
		return
	}

	next := time.Now().Truncate(time.Minute).Add(time.Minute)
	s.log.Logf("gpstimer: aligning first exposure to %s", next.Format(time.RFC3339))
	go func() {
		time.Sleep(time.Until(next))
		send()
	}()
}

func (s *Serial) StopExposure() {
	s.log.Logf("gpstimer: stopping exposures")
	s.enqueueSend(timerproto.EncodeStopExposure())
}

func (s *Serial) Reset() {
	s.enqueueSend(timerproto.EncodeReset())
}

// Run opens the serial port (retrying with backoff via comm.RemoteDevice),
// issues the bootloader escape and, when the connection exposes a file
// descriptor (Fd), a DTR-toggle hardware reset, then loops
// reading and dispatching packets until stop is closed.
func (s *Serial) Run(stop <-chan struct{}) {
	s.log.Logf("gpstimer: connecting to timer...")
	if err := s.dev.Open(); err != nil {
		s.log.Logf("gpstimer: fatal: could not open timer: %v", err)
		s.fail(err)
		return
	}
	defer s.dev.Close()

	s.dev.Send(timerproto.BootloaderEscape())
	if f, ok := s.dev.Conn.(interface{ Fd() uintptr }); ok {
		if err := toggleDTR(f); err != nil {
			s.log.Logf("gpstimer: DTR reset unavailable: %v", err)
		}
	}

	buf := make([]byte, 256)
	for {
		select {
		case <-stop:
			s.log.Logf("gpstimer: shutting down, sending reset")
			s.dev.Send(timerproto.EncodeReset())
			return
		default:
		}

		n, err := s.dev.Conn.Read(buf)
		if err != nil && n == 0 && err != io.EOF {
			// a read timeout is expected and simply means no data arrived
			// within readTimeout; anything else is logged and retried.
			if te, ok := err.(interface{ Timeout() bool }); !ok || !te.Timeout() {
				s.log.Logf("gpstimer: read failed: %v", err)
			}
		}
		if n > 0 {
			packets, errs := s.parser.Feed(buf[:n])
			for _, e := range errs {
				s.log.Logf("gpstimer: protocol error: %s\n%s", e.Reason, hex.Dump(e.Raw))
			}
			for _, p := range packets {
				s.dispatch(p)
			}
		}

		s.sendMu.Lock()
		pending := s.sendBuf
		s.sendBuf = nil
		s.sendMu.Unlock()
		for _, wire := range pending {
			if _, err := s.dev.Conn.Write(wire); err != nil {
				s.log.Logf("gpstimer: write failed: %v", err)
			}
		}
	}
}

func (s *Serial) dispatch(p timerproto.Packet) {
	switch p.Type {
	case timerproto.CurrentTime:
		ts, err := timerproto.ParseTimestamp(p)
		if err != nil {
			s.log.Logf("gpstimer: malformed CURRENT_TIME packet: %v", err)
			return
		}
		ts.Normalize()
		s.mu.Lock()
		s.current = ts
		s.mu.Unlock()
	case timerproto.DownloadTime:
		ts, err := timerproto.ParseTimestamp(p)
		if err != nil {
			s.log.Logf("gpstimer: malformed DOWNLOAD_TIME packet: %v", err)
			return
		}
		ts.Normalize()
		select {
		case s.triggers <- ts:
		default:
			s.log.Logf("gpstimer: trigger queue full, dropping trigger")
		}
	case timerproto.DebugString:
		s.log.Logf("gpstimer: timer debug: %s", string(p.Data))
	case timerproto.DebugRaw:
		s.log.Logf("gpstimer: timer debug raw:\n%s", hex.Dump(p.Data))
	case timerproto.StopExposure:
		select {
		case s.safeToStop <- struct{}{}:
		default:
		}
		s.mu.Lock()
		s.mode = timerproto.ModeIdle
		s.mu.Unlock()
	case timerproto.StatusMode:
		mode := timerproto.ModeExposing
		if len(p.Data) > 0 {
			mode = timerproto.TimerMode(p.Data[0])
		}
		s.mu.Lock()
		s.mode = mode
		s.mu.Unlock()
	default:
		s.log.Logf("gpstimer: unrecognized packet type %q", p.Type)
	}
}
