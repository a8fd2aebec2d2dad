// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report summarizes a telemetry session: per-channel histograms,
// summary statistics and mail delivery.
package report // import "github.com/go-lpc/pidtel/report"

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/go-lpc/pidtel/config"
	"github.com/go-lpc/pidtel/history"
	"go-hep.org/x/hep/hbook"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	mail "gopkg.in/gomail.v2"
)

// DefaultBins is the default number of bins of channel histograms.
const DefaultBins = 100

// Channels lists the names of the PID channels carried by a sample.
var Channels = []string{"setpoint", "error", "p", "i", "d", "output"}

func channel(s history.Sample, i int) float32 {
	switch i {
	case 0:
		return s.Setpoint
	case 1:
		return s.Error
	case 2:
		return s.P
	case 3:
		return s.I
	case 4:
		return s.D
	case 5:
		return s.Output
	}
	panic(fmt.Errorf("report: invalid channel index %d", i))
}

// Summary holds the statistics of one channel.
// Non-finite values are counted in Skipped and excluded from the rest.
type Summary struct {
	Name    string
	N       int
	Skipped int
	Mean    float64
	StdDev  float64
	Min     float64
	Max     float64
}

// Report describes a telemetry session.
type Report struct {
	Samples  int
	Lost     uint64
	Channels []Summary
	Hists    []*hbook.H1D
}

// New creates a report from a snapshot of the history and the number of
// packets lost during the session.
// A non-positive nbins selects DefaultBins.
func New(samples []history.Sample, lost uint64, nbins int) *Report {
	if nbins <= 0 {
		nbins = DefaultBins
	}

	rep := &Report{
		Samples:  len(samples),
		Lost:     lost,
		Channels: make([]Summary, len(Channels)),
		Hists:    make([]*hbook.H1D, len(Channels)),
	}

	xs := make([]float64, 0, len(samples))
	for i, name := range Channels {
		xs = xs[:0]
		sum := Summary{Name: name}
		for _, s := range samples {
			v := float64(channel(s, i))
			if math.IsNaN(v) || math.IsInf(v, 0) {
				sum.Skipped++
				continue
			}
			xs = append(xs, v)
		}
		sum.N = len(xs)

		lo, hi := 0.0, 1.0
		if len(xs) > 0 {
			sum.Mean, sum.StdDev = stat.MeanStdDev(xs, nil)
			if len(xs) == 1 {
				sum.StdDev = 0
			}
			sum.Min = floats.Min(xs)
			sum.Max = floats.Max(xs)
			lo, hi = sum.Min, sum.Max
		}
		if hi <= lo {
			lo, hi = lo-0.5, hi+0.5
		}
		// make sure the maximum lands in the last bin.
		hi = math.Nextafter(hi, math.Inf(+1))

		h := hbook.NewH1D(nbins, lo, hi)
		h.Annotation()["name"] = name
		h.Annotation()["title"] = "PID channel " + name
		for _, x := range xs {
			h.Fill(x, 1)
		}

		rep.Channels[i] = sum
		rep.Hists[i] = h
	}

	return rep
}

// Hist returns the histogram of the named channel, or nil.
func (rep *Report) Hist(name string) *hbook.H1D {
	for i, v := range Channels {
		if v == name {
			return rep.Hists[i]
		}
	}
	return nil
}

// WriteYODA writes all the channel histograms in the YODA format.
func (rep *Report) WriteYODA(w io.Writer) error {
	for i, h := range rep.Hists {
		raw, err := h.MarshalYODA()
		if err != nil {
			return fmt.Errorf("report: could not marshal histogram %q: %w", Channels[i], err)
		}
		_, err = w.Write(raw)
		if err != nil {
			return fmt.Errorf("report: could not write histogram %q: %w", Channels[i], err)
		}
	}
	return nil
}

// YODA returns all the channel histograms in the YODA format.
func (rep *Report) YODA() ([]byte, error) {
	var buf bytes.Buffer
	err := rep.WriteYODA(&buf)
	return buf.Bytes(), err
}

func (rep *Report) String() string {
	o := new(strings.Builder)
	fmt.Fprintf(o, "samples: %d\nlost:    %d\n", rep.Samples, rep.Lost)
	fmt.Fprintf(o, "%-8s %8s %8s %14s %14s %14s %14s\n",
		"channel", "n", "skipped", "mean", "stddev", "min", "max",
	)
	for _, s := range rep.Channels {
		fmt.Fprintf(o, "%-8s %8d %8d %14g %14g %14g %14g\n",
			s.Name, s.N, s.Skipped, s.Mean, s.StdDev, s.Min, s.Max,
		)
	}
	return o.String()
}

// Message creates the mail carrying the report.
// Files listed in attach are attached to the mail.
func (rep *Report) Message(cfg config.Mail, attach ...string) *mail.Message {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("Bcc", cfg.To...)
	msg.SetHeader("Subject", fmt.Sprintf(
		"[pidtel] session report: %d samples, %d lost", rep.Samples, rep.Lost,
	))
	msg.SetBody("text/plain", rep.String())
	for _, fname := range attach {
		msg.Attach(fname)
	}
	return msg
}

// Send sends the report through s.
func Send(s mail.Sender, cfg config.Mail, rep *Report, attach ...string) error {
	if !cfg.Enabled() {
		return fmt.Errorf("report: missing mail configuration")
	}
	err := mail.Send(s, rep.Message(cfg, attach...))
	if err != nil {
		return fmt.Errorf("report: could not send mail: %w", err)
	}
	return nil
}

// Mail sends the report to the mail server described by cfg,
// authenticating with the provided password.
func Mail(cfg config.Mail, pwd string, rep *Report, attach ...string) error {
	if !cfg.Enabled() {
		return fmt.Errorf("report: missing mail configuration")
	}

	dial := mail.NewDialer(cfg.Server, cfg.Port, cfg.User, pwd)
	dial.TLSConfig = &tls.Config{
		ServerName: cfg.Server,
	}
	err := dial.DialAndSend(rep.Message(cfg, attach...))
	if err != nil {
		return fmt.Errorf("report: could not send mail: %w", err)
	}
	return nil
}
