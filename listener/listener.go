// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package listener receives the PID controller telemetry datagrams and
// feeds them into a rolling history.
package listener // import "github.com/go-lpc/pidtel/listener"

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/go-lpc/pidtel/frame"
	"github.com/go-lpc/pidtel/history"
)

// DefaultPort is the UDP port the controller sends its debug stream to.
const DefaultPort = 3333

// maxDatagram is large enough to hold any UDP payload so that the length
// of oversized datagrams is reported accurately.
const maxDatagram = 64 * 1024

// State describes the lifecycle of a Listener.
type State int32

const (
	Idle State = iota
	Bound
	Listening
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Bound:
		return "bound"
	case Listening:
		return "listening"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// BindError reports a socket that could not be bound.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("listener: could not bind %q: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// ReceiveError reports a socket read failure that terminated the
// receive loop.
type ReceiveError struct {
	Err error
}

func (e *ReceiveError) Error() string {
	return fmt.Sprintf("listener: could not receive datagram: %v", e.Err)
}

func (e *ReceiveError) Unwrap() error { return e.Err }

// Stats holds the per-session datagram counters of a Listener.
type Stats struct {
	Datagrams uint64 // datagrams received
	Accepted  uint64 // datagrams decoded into a sample
	BadLength uint64 // datagrams rejected because of their size
	BadMagic  uint64 // datagrams rejected because of their magic word
}

// Listener owns a datagram socket and a receive loop decoding each
// datagram into the history buffer.
//
// Only the receive loop appends to the history. Observers (IsAlive,
// LostPackets, Snapshot, ...) and Clear may be called from any goroutine.
type Listener struct {
	cfg config
	msg *log.Logger

	mu    sync.RWMutex
	conn  *net.UDPConn
	buf   *history.Buffer
	done  chan struct{}
	err   error // fatal receive error of the last session
	state State

	alive atomic.Bool
	stats struct {
		dgrams    atomic.Uint64
		accepted  atomic.Uint64
		badLength atomic.Uint64
		badMagic  atomic.Uint64
	}
}

// New creates an idle listener.
func New(opts ...Option) *Listener {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	msg := cfg.msg
	if msg == nil {
		msg = log.New(os.Stdout, "listener: ", 0)
	}

	done := make(chan struct{})
	close(done)

	return &Listener{
		cfg:  cfg,
		msg:  msg,
		buf:  history.New(cfg.capacity, cfg.mode),
		done: done,
	}
}

// Start binds a datagram socket on the configured host and the provided
// port, and starts the receive loop in its own goroutine.
// Start starts a new session: the history and the counters are reset.
// On failure, Start returns a *BindError and does not retry.
func (l *Listener) Start(port uint16) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		return fmt.Errorf("listener: already listening on %v", l.conn.LocalAddr())
	}

	addr := net.JoinHostPort(l.cfg.host, strconv.Itoa(int(port)))
	lc := net.ListenConfig{Control: control(l.cfg.rcvbuf)}
	pc, err := lc.ListenPacket(context.Background(), "udp4", addr)
	if err != nil {
		l.state = Failed
		l.alive.Store(false)
		return &BindError{Addr: addr, Err: err}
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		l.state = Failed
		l.alive.Store(false)
		return &BindError{Addr: addr, Err: fmt.Errorf("unexpected packet conn type %T", pc)}
	}

	l.conn = conn
	l.state = Bound
	l.err = nil
	l.buf = history.New(l.cfg.capacity, l.cfg.mode)
	l.resetStats()

	l.done = make(chan struct{})
	l.state = Listening
	l.alive.Store(true)
	l.msg.Printf("listening on %v...", conn.LocalAddr())

	go l.loop(conn, l.buf, l.done)
	return nil
}

func (l *Listener) loop(conn *net.UDPConn, buf *history.Buffer, done chan struct{}) {
	defer close(done)

	p := make([]byte, maxDatagram)
	for {
		n, _, err := conn.ReadFromUDP(p)
		if err != nil {
			l.mu.Lock()
			if l.conn == conn {
				// not initiated by Stop.
				l.err = &ReceiveError{Err: err}
				l.conn = nil
				_ = conn.Close()
				l.msg.Printf("%+v", l.err)
			}
			if l.done == done {
				l.state = Stopped
				l.alive.Store(false)
			}
			l.mu.Unlock()
			return
		}
		_ = l.ingest(buf, p[:n])
	}
}

// Stop closes the socket, which terminates the receive loop, and waits
// for the loop to exit. Stop is idempotent.
func (l *Listener) Stop() error {
	l.mu.Lock()
	conn := l.conn
	done := l.done
	l.conn = nil
	if conn == nil {
		if l.state != Idle && l.state != Failed {
			l.state = Stopped
		}
		l.mu.Unlock()
		<-done
		return nil
	}
	l.mu.Unlock()

	err := conn.Close()
	<-done

	l.mu.Lock()
	if l.done == done {
		l.state = Stopped
		l.alive.Store(false)
	}
	l.mu.Unlock()

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("listener: could not close socket: %w", err)
	}
	l.msg.Printf("stopped.")
	return nil
}

// Done returns a channel closed when the current receive loop has exited.
func (l *Listener) Done() <-chan struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.done
}

// Ingest feeds one datagram through the decoding path, as the receive
// loop does. Decoding failures are counted and returned, the datagram
// is discarded.
// Ingest must not be called concurrently with a running receive loop:
// it is meant for offline replays and tests.
func (l *Listener) Ingest(p []byte) error {
	return l.ingest(l.current(), p)
}

func (l *Listener) ingest(buf *history.Buffer, p []byte) error {
	l.stats.dgrams.Add(1)

	f, err := frame.Decode(p)
	if err != nil {
		switch {
		case errors.Is(err, frame.ErrBadLength):
			l.stats.badLength.Add(1)
		case errors.Is(err, frame.ErrBadMagic):
			l.stats.badMagic.Add(1)
		}
		if l.cfg.verbose {
			l.msg.Printf("discarding datagram: %+v", err)
		}
		return err
	}

	var raw history.Raw
	copy(raw[:], p)

	lost := buf.Record(raw, f, l.cfg.now())
	l.stats.accepted.Add(1)
	if lost > 0 && l.cfg.verbose {
		l.msg.Printf("lost %d frame(s) before seq=%d", lost, f.Seq)
	}
	return nil
}

// IsAlive reports whether the receive loop is running.
func (l *Listener) IsAlive() bool { return l.alive.Load() }

// State returns the current lifecycle state.
func (l *Listener) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Err returns the error that terminated the last receive loop, if any.
func (l *Listener) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// Addr returns the local address of the socket, or nil when not listening.
func (l *Listener) Addr() net.Addr {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// ReadBufferSize returns the effective kernel receive buffer size.
func (l *Listener) ReadBufferSize() (int, error) {
	l.mu.RLock()
	conn := l.conn
	l.mu.RUnlock()
	if conn == nil {
		return 0, fmt.Errorf("listener: not listening")
	}
	return readBufferSize(conn)
}

// Buffer returns a read-only view of the history of the current session.
// Only the receive loop (or Ingest) appends to the history.
func (l *Listener) Buffer() history.View {
	return l.current().View()
}

func (l *Listener) current() *history.Buffer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.buf
}

// Snapshot returns a copy of the current history.
func (l *Listener) Snapshot() []history.Sample { return l.Buffer().Snapshot() }

// LostPackets returns the number of frames lost in the current session.
func (l *Listener) LostPackets() uint64 { return l.Buffer().LostPackets() }

// Clear drops the current history and resets the lost-frames accounting.
func (l *Listener) Clear() { l.Buffer().Clear() }

// Stats returns the datagram counters of the current session.
func (l *Listener) Stats() Stats {
	return Stats{
		Datagrams: l.stats.dgrams.Load(),
		Accepted:  l.stats.accepted.Load(),
		BadLength: l.stats.badLength.Load(),
		BadMagic:  l.stats.badMagic.Load(),
	}
}

func (l *Listener) resetStats() {
	l.stats.dgrams.Store(0)
	l.stats.accepted.Store(0)
	l.stats.badLength.Store(0)
	l.stats.badMagic.Store(0)
}
