// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command pidtel-sim emits synthetic PID telemetry frames over UDP.
//
// pidtel-sim simulates a first-order plant driven by a PID controller
// tracking a square-wave setpoint, and sends one frame per iteration.
// Frames can be dropped on purpose to exercise loss accounting.
//
// Usage: pidtel-sim [OPTIONS]
//
// Example:
//
//	$> pidtel-sim -addr 127.0.0.1:3333 -n 1000 -freq 1ms -loss 0.01
//	pidtel-sim: sent 990 frames (dropped 10) to 127.0.0.1:3333
package main // import "github.com/go-lpc/pidtel/cmd/pidtel-sim"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/go-lpc/pidtel/frame"
)

func main() {
	log.SetPrefix("pidtel-sim: ")
	log.SetFlags(0)

	var (
		addr = flag.String("addr", "127.0.0.1:3333", "[ip]:port to send frames to")
		n    = flag.Int("n", 0, "number of frames to generate (0: until interrupted)")
		freq = flag.Duration("freq", 10*time.Millisecond, "interval between frames")
		seq  = flag.Uint("seq", 1, "first sequence number")
		loss = flag.Float64("loss", 0, "probability to drop a frame")
		seed = flag.Int64("seed", 1234, "seed of the random number generator")
	)

	flag.Parse()

	if *seq > 0xffffffff {
		log.Fatalf("invalid first sequence number %d", *seq)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	conn, err := net.Dial("udp", *addr)
	if err != nil {
		log.Fatalf("could not dial %q: %+v", *addr, err)
	}
	defer conn.Close()

	sim := newSimulator(uint32(*seq), *loss, *seed)
	sent, err := sim.run(ctx, conn, *n, *freq)
	if err != nil {
		log.Fatalf("could not run simulation: %+v", err)
	}
	log.Printf("sent %d frames (dropped %d) to %s", sent, sim.dropped, *addr)
}

// Controller gains and plant time constant.
const (
	kp  = 2.0
	ki  = 1.5
	kd  = 0.05
	tau = 0.5
	dt  = 0.01
)

type simulator struct {
	seq  uint32
	loss float64
	rnd  *rand.Rand

	t       float64
	pv      float64 // process variable
	integ   float64
	prevErr float64

	dropped int
}

func newSimulator(seq uint32, loss float64, seed int64) *simulator {
	return &simulator{
		seq:  seq,
		loss: loss,
		rnd:  rand.New(rand.NewSource(seed)),
	}
}

func (sim *simulator) setpoint() float64 {
	if int(sim.t)%10 < 5 {
		return 1
	}
	return -1
}

// next advances the simulation by one step and returns its frame.
func (sim *simulator) next() frame.RawFrame {
	sp := sim.setpoint()
	e := sp - sim.pv
	sim.integ += e * dt
	deriv := (e - sim.prevErr) / dt
	sim.prevErr = e

	p := kp * e
	i := ki * sim.integ
	d := kd * deriv
	out := p + i + d

	sim.pv += (out - sim.pv) * dt / tau
	sim.t += dt

	f := frame.New(
		sim.seq,
		float32(sp), float32(e),
		float32(p), float32(i), float32(d),
		float32(out),
	)
	sim.seq++
	return f
}

// run sends n frames to w, one every freq, or until ctx is done when n
// is zero. Dropped frames still consume a sequence number.
func (sim *simulator) run(ctx context.Context, w io.Writer, n int, freq time.Duration) (int, error) {
	var tick <-chan time.Time
	if freq > 0 {
		ticker := time.NewTicker(freq)
		defer ticker.Stop()
		tick = ticker.C
	}

	sent := 0
	for i := 0; n <= 0 || i < n; i++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return sent, nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return sent, nil
		}

		f := sim.next()
		if sim.loss > 0 && sim.rnd.Float64() < sim.loss {
			sim.dropped++
			continue
		}

		p := frame.Encode(f)
		_, err := w.Write(p[:])
		if err != nil {
			return sent, fmt.Errorf("could not send frame seq=%d: %w", f.Seq, err)
		}
		sent++
	}
	return sent, nil
}
