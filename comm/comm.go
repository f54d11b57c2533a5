/*Package comm provides an embeddable type for communicating with the GPS
timer board over a serial (or, for the simulator harness, TCP) connection.

A minimal example for a device that responds to a command with a
newline-terminated reply, assuming the default termination byte is fine:

	type Sensor struct {
		comm.RemoteDevice
	}

	func NewSensor(addr string, serCfg *serial.Config) Sensor {
		return Sensor{RemoteDevice: comm.NewRemoteDevice(addr, true, nil, serCfg)}
	}

	func (s *Sensor) ReadTemp() (float64, error) {
		resp, err := s.SendRecv([]byte("RD?"))
		if err != nil {
			return 0, err
		}
		return strconv.ParseFloat(string(resp), 64)
	}
*/
package comm

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

var (
	// ErrNoSerialConf is returned by Open when IsSerial is true but no
	// *serial.Config was supplied to NewRemoteDevice.
	ErrNoSerialConf = errors.New("comm: serial connection requested but no serial.Config given")

	// ErrNotConnected is returned by Send or Recv when Conn is nil.
	ErrNotConnected = errors.New("comm: not connected to remote")

	// ErrTerminatorNotFound is returned when the termination byte is not
	// found in a response.
	ErrTerminatorNotFound = errors.New("comm: termination byte not found in response")
)

// DefaultTerminator is the default transmission termination byte.
const DefaultTerminator = byte('\r')

// Terminators holds the Rx and Tx termination bytes for a RemoteDevice.
type Terminators struct {
	Rx, Tx byte
}

/*RemoteDevice has an address and implements open/send/recv/close with a
lock held across the whole exchange, making it concurrent-safe.

If IsSerial is true, serCfg must not be nil; Open otherwise returns
ErrNoSerialConf.
*/
type RemoteDevice struct {
	sync.Mutex

	// Addr is the remote address: a serial port name or "host:port".
	Addr string

	// IsSerial selects a serial.Config connection over the default TCP one.
	IsSerial bool

	// Timeout bounds TCP dial, read and write deadlines.
	Timeout time.Duration

	// Conn holds the open connection, serial or TCP.
	Conn io.ReadWriteCloser

	lastComm time.Time
	txTerm   byte
	rxTerm   byte
	serCfg   *serial.Config
}

// NewRemoteDevice builds a RemoteDevice. t may be nil to use
// DefaultTerminator for both directions; s is required when serial is true.
func NewRemoteDevice(addr string, isSerial bool, t *Terminators, s *serial.Config) RemoteDevice {
	var rx, tx byte
	if t == nil {
		rx = DefaultTerminator
		tx = DefaultTerminator
	} else {
		rx = t.Rx
		tx = t.Tx
	}
	return RemoteDevice{
		Addr:     addr,
		IsSerial: isSerial,
		Timeout:  3 * time.Second,
		txTerm:   tx,
		rxTerm:   rx,
		serCfg:   s,
	}
}

// Open establishes the connection, retrying with exponential backoff since
// the timer board does not like being connection-thrashed. A non-nil Conn
// makes this a no-op.
func (rd *RemoteDevice) Open() error {
	if rd.Conn != nil {
		return nil
	}
	if rd.IsSerial && rd.serCfg == nil {
		return ErrNoSerialConf
	}
	rd.Lock()
	defer rd.Unlock()

	wasTimeout := false
	op := func() error {
		err := rd.open()
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "refused") {
				return err
			}
			wasTimeout = true
			return nil
		}
		return nil
	}

	// backoff stops on a timeout so this does not wait forever; err == nil
	// with wasTimeout still means the connection never succeeded.
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock,
	})
	if err == nil && !wasTimeout {
		return nil
	}
	if wasTimeout {
		return fmt.Errorf("comm: connection timeout to %s", rd.Addr)
	}
	return err
}

func (rd *RemoteDevice) open() error {
	var (
		conn io.ReadWriteCloser
		err  error
	)
	if rd.IsSerial {
		if rd.serCfg == nil {
			return ErrNoSerialConf
		}
		conn, err = serial.OpenPort(rd.serCfg)
	} else {
		conn, err = TCPSetup(rd.Addr, rd.Timeout)
	}
	if err != nil {
		return err
	}
	rd.Conn = conn
	return nil
}

// Close closes the connection and nils Conn.
func (rd *RemoteDevice) Close() error {
	rd.Lock()
	defer rd.Unlock()
	if rd.Conn == nil {
		return nil
	}
	err := rd.Conn.Close()
	if err == nil {
		rd.Conn = nil
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "closed") {
		return nil
	}
	return err
}

// Send writes b to the remote with the Tx terminator appended.
func (rd *RemoteDevice) Send(b []byte) error {
	if rd.Conn == nil {
		return ErrNotConnected
	}
	if conn, ok := rd.Conn.(net.Conn); ok {
		conn.SetDeadline(time.Now().Add(rd.Timeout))
	}
	b = append(b, rd.txTerm)
	_, err := rd.Conn.Write(b)
	rd.lastComm = time.Now()
	return err
}

// Recv reads one message from the remote up to the Rx terminator, which is
// stripped from the returned bytes.
func (rd *RemoteDevice) Recv() ([]byte, error) {
	if rd.Conn == nil {
		return nil, ErrNotConnected
	}
	buf, err := bufio.NewReader(rd.Conn).ReadBytes(rd.rxTerm)
	rd.lastComm = time.Now()
	if err != nil {
		return []byte{}, err
	}
	if bytes.HasSuffix(buf, []byte{rd.rxTerm}) {
		return buf[:len(buf)-1], nil
	}
	return buf, ErrTerminatorNotFound
}

// SendRecv sends b then waits for one terminated reply, both under the same
// lock so the exchange cannot interleave with a concurrent caller.
func (rd *RemoteDevice) SendRecv(b []byte) ([]byte, error) {
	if rd.Conn == nil {
		return []byte{}, ErrNotConnected
	}
	rd.Lock()
	defer rd.Unlock()
	if err := rd.Send(b); err != nil {
		return []byte{}, err
	}
	return rd.Recv()
}

// TCPSetup dials addr over TCP with a connect and I/O deadline of timeout.
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	conn.SetDeadline(time.Now().Add(timeout))
	return conn, nil
}
