// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command pidtel-tdaq starts a TDAQ server receiving PID telemetry.
//
// The /config command optionally carries the UDP port to listen on,
// encoded as a uint32. Frames received between /start and /stop are
// published on the /samples output as the 32-byte raw frame followed by
// the receive time (little-endian uint64, nanoseconds since the epoch).
// The /reset command clears the history.
package main // import "github.com/go-lpc/pidtel/cmd/pidtel-tdaq"

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/pidtel/frame"
	"github.com/go-lpc/pidtel/history"
	"github.com/go-lpc/pidtel/listener"
)

func main() {
	cmd := flags.New()

	dev := newNode(listener.DefaultPort,
		listener.WithLogger(log.New(os.Stdout, "pidtel-tdaq: ", 0)),
	)

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/samples", dev.samples)

	srv.RunHandle(dev.run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

// sampleSize is the size of a /samples payload.
const sampleSize = frame.Size + 8

// node publishes the frames of a telemetry listener on a TDAQ output.
type node struct {
	mu     sync.Mutex
	port   uint16
	opts   []listener.Option
	lst    *listener.Listener
	cancel func() // unsubscribes from the history of the current session

	data    chan []byte
	dropped atomic.Uint64
	freq    time.Duration // stats reporting interval
}

func newNode(port uint16, opts ...listener.Option) *node {
	return &node{
		port: port,
		opts: opts,
		freq: 10 * time.Second,
	}
}

func (dev *node) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	if len(req.Body) == 0 {
		return nil
	}

	dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
	port := dec.ReadU32()
	if err := dec.Err(); err != nil {
		ctx.Msg.Errorf("could not decode /config payload: %+v", err)
		return fmt.Errorf("could not decode /config payload: %w", err)
	}
	if port > 0xffff {
		ctx.Msg.Errorf("invalid port %d", port)
		return fmt.Errorf("invalid port %d", port)
	}

	dev.mu.Lock()
	dev.port = uint16(port)
	dev.mu.Unlock()
	ctx.Msg.Infof("configured port %d", port)
	return nil
}

func (dev *node) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.lst != nil && dev.lst.IsAlive() {
		return fmt.Errorf("listener is running")
	}
	dev.lst = listener.New(dev.opts...)
	dev.data = make(chan []byte, 1024)
	dev.dropped.Store(0)
	return nil
}

func (dev *node) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.lst == nil {
		return nil
	}
	dev.lst.Clear()
	for {
		select {
		case <-dev.data:
		default:
			return nil
		}
	}
}

func (dev *node) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.lst == nil {
		ctx.Msg.Errorf("could not start: missing /init")
		return fmt.Errorf("could not start: missing /init")
	}

	err := dev.lst.Start(dev.port)
	if err != nil {
		ctx.Msg.Errorf("could not start listener: %+v", err)
		return fmt.Errorf("could not start listener: %w", err)
	}
	dev.cancel = dev.lst.Buffer().Subscribe(dev.push)
	return nil
}

func (dev *node) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.lst == nil {
		ctx.Msg.Debugf("received /stop command...")
		return nil
	}

	st := dev.lst.Stats()
	ctx.Msg.Debugf("received /stop command... -> n=%d, lost=%d, dropped=%d",
		st.Accepted, dev.lst.LostPackets(), dev.dropped.Load(),
	)
	return dev.stop()
}

func (dev *node) stop() error {
	if dev.cancel != nil {
		dev.cancel()
		dev.cancel = nil
	}
	err := dev.lst.Stop()
	if err != nil {
		return fmt.Errorf("could not stop listener: %w", err)
	}
	return nil
}

func (dev *node) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.lst == nil {
		return nil
	}
	return dev.stop()
}

// push queues a sample for the /samples output.
// push runs on the receive loop and never blocks: samples are dropped
// when the output does not keep up.
func (dev *node) push(s history.Sample) {
	select {
	case dev.data <- encodeSample(s):
	default:
		dev.dropped.Add(1)
	}
}

func encodeSample(s history.Sample) []byte {
	raw := frame.Encode(frame.New(
		s.Seq, s.Setpoint, s.Error, s.P, s.I, s.D, s.Output,
	))
	out := make([]byte, 0, sampleSize)
	out = append(out, raw[:]...)
	out = binary.LittleEndian.AppendUint64(out, uint64(s.RecvAt.UnixNano()))
	return out
}

func (dev *node) samples(ctx tdaq.Context, dst *tdaq.Frame) error {
	dev.mu.Lock()
	data := dev.data
	dev.mu.Unlock()

	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case raw := <-data:
		dst.Body = raw
	}
	return nil
}

func (dev *node) run(ctx tdaq.Context) error {
	tick := time.NewTicker(dev.freq)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		case <-tick.C:
			dev.mu.Lock()
			lst := dev.lst
			dev.mu.Unlock()
			if lst == nil || !lst.IsAlive() {
				continue
			}
			st := lst.Stats()
			ctx.Msg.Infof("datagrams=%d accepted=%d bad-length=%d bad-magic=%d lost=%d dropped=%d",
				st.Datagrams, st.Accepted, st.BadLength, st.BadMagic,
				lst.LostPackets(), dev.dropped.Load(),
			)
		}
	}
}
