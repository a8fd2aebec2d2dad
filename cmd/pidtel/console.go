// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/go-lpc/pidtel/csvexport"
	"github.com/go-lpc/pidtel/frame"
	"github.com/go-lpc/pidtel/report"
	"github.com/peterh/liner"
	"github.com/pterm/pterm"
)

type command struct {
	help string
	run  func(srv *server, w io.Writer, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":   {"display this help message", (*server).cmdHelp},
		"stats":  {"display the datagram and history counters", (*server).cmdStats},
		"tail":   {"tail [n]: display the n most recent samples (default: 10)", (*server).cmdTail},
		"hex":    {"hex [n]: display the n most recent raw frames (default: 10)", (*server).cmdHex},
		"clear":  {"drop the history and reset the lost-frames counter", (*server).cmdClear},
		"export": {"export [dir]: export the history to CSV", (*server).cmdExport},
		"report": {"display the session report", (*server).cmdReport},
		"quit":   {"stop the daemon", nil},
	}
}

// exec runs the console command line on srv.
// exec reports whether the console should quit.
func (srv *server) exec(w io.Writer, line string) (bool, error) {
	toks := strings.Fields(line)
	if len(toks) == 0 {
		return false, nil
	}
	name := toks[0]
	if name == "quit" || name == "exit" {
		return true, nil
	}
	cmd, ok := commands[name]
	if !ok {
		return false, fmt.Errorf("unknown command %q", name)
	}
	return false, cmd.run(srv, w, toks[1:])
}

func (srv *server) cmdHelp(w io.Writer, args []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].help)
	}
	return nil
}

func (srv *server) cmdStats(w io.Writer, args []string) error {
	st := srv.stats()
	data := pterm.TableData{
		{"state", "datagrams", "accepted", "bad-length", "bad-magic", "lost", "reordered", "samples"},
		{
			st.State,
			strconv.FormatUint(st.Datagrams, 10),
			strconv.FormatUint(st.Accepted, 10),
			strconv.FormatUint(st.BadLength, 10),
			strconv.FormatUint(st.BadMagic, 10),
			strconv.FormatUint(st.Lost, 10),
			strconv.FormatUint(st.Reordered, 10),
			fmt.Sprintf("%d/%d", st.Samples, st.Capacity),
		},
	}
	return render(w, data)
}

func nargs(args []string, def int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number %q", args[0])
	}
	return n, nil
}

func (srv *server) cmdTail(w io.Writer, args []string) error {
	n, err := nargs(args, 10)
	if err != nil {
		return err
	}
	data := pterm.TableData{
		{"seq", "timestamp", "setpoint", "error", "p", "i", "d", "output"},
	}
	for _, s := range srv.lst.Buffer().Tail(n) {
		data = append(data, []string{
			strconv.FormatUint(uint64(s.Seq), 10),
			s.RecvAt.UTC().Format("15:04:05.000000"),
			f32(s.Setpoint), f32(s.Error),
			f32(s.P), f32(s.I), f32(s.D),
			f32(s.Output),
		})
	}
	return render(w, data)
}

func f32(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', 6, 32)
}

func (srv *server) cmdHex(w io.Writer, args []string) error {
	n, err := nargs(args, 10)
	if err != nil {
		return err
	}
	raws := srv.lst.Buffer().Raw()
	if n < len(raws) {
		raws = raws[len(raws)-n:]
	}
	for _, raw := range raws {
		fmt.Fprintf(w, "%s\n", frame.Hex(raw[:]))
	}
	return nil
}

func (srv *server) cmdClear(w io.Writer, args []string) error {
	srv.lst.Clear()
	fmt.Fprintf(w, "history cleared.\n")
	return nil
}

func (srv *server) cmdExport(w io.Writer, args []string) error {
	dir := srv.dir()
	if len(args) > 0 {
		dir = args[0]
	}
	samples := srv.lst.Snapshot()
	fname, err := csvexport.WriteFile(dir, samples)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "exported %d samples to %q\n", len(samples), fname)
	return nil
}

func (srv *server) cmdReport(w io.Writer, args []string) error {
	buf := srv.lst.Buffer()
	rep := report.New(buf.Snapshot(), buf.LostPackets(), 0)
	_, err := io.WriteString(w, rep.String())
	return err
}

func render(w io.Writer, data pterm.TableData) error {
	str, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("could not render table: %w", err)
	}
	_, err = fmt.Fprintln(w, str)
	return err
}

type console struct {
	srv  *server
	w    io.Writer
	term *liner.State
}

func newConsole(srv *server, w io.Writer) *console {
	term := liner.NewLiner()
	term.SetCtrlCAborts(true)
	term.SetCompleter(func(line string) []string {
		var out []string
		for name := range commands {
			if strings.HasPrefix(name, line) {
				out = append(out, name)
			}
		}
		sort.Strings(out)
		return out
	})
	return &console{srv: srv, w: w, term: term}
}

func (c *console) close() {
	_ = c.term.Close()
}

func (c *console) loop() error {
	for {
		line, err := c.term.Prompt("pidtel> ")
		switch {
		case err == nil:
		case errors.Is(err, liner.ErrPromptAborted), errors.Is(err, io.EOF):
			return nil
		default:
			return fmt.Errorf("could not read command: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		c.term.AppendHistory(line)

		quit, err := c.srv.exec(c.w, line)
		if err != nil {
			fmt.Fprintf(c.w, "error: %+v\n", err)
		}
		if quit {
			return nil
		}
	}
}
