// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command pidtel receives the telemetry stream of a PID controller.
//
// pidtel listens for 32-byte telemetry frames on a UDP port, keeps the
// last received samples in memory and tracks lost frames.
// At exit, the history is exported to CSV (and YODA histograms) and,
// optionally, dumped to a raw-frame file, stored into a MySQL database
// and mailed as a session report.
//
// Usage: pidtel [OPTIONS]
//
// Example:
//
//	$> pidtel -port 3333 -ws :8080 -o /tmp/pid
//	pidtel: listening on 0.0.0.0:3333...
//	pidtel: serving websocket feed on [::]:8080...
//	^C
//	pidtel: received interrupt...
//	pidtel: exported 10000 samples to "/tmp/pid/debug_data.csv"
package main // import "github.com/go-lpc/pidtel/cmd/pidtel"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-lpc/pidtel"
	"github.com/go-lpc/pidtel/config"
	"github.com/go-lpc/pidtel/csvexport"
	"github.com/go-lpc/pidtel/history"
	"github.com/go-lpc/pidtel/listener"
	"github.com/go-lpc/pidtel/replay"
	"github.com/go-lpc/pidtel/report"
	"github.com/go-lpc/pidtel/store"
	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.SetPrefix("pidtel: ")
	log.SetFlags(0)

	cfg, opts, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("could not parse command line: %+v", err)
	}

	if opts.version {
		version, sum := pidtel.Version()
		fmt.Printf("pidtel %s %s\n", version, sum)
		return
	}

	srv, err := newServer(cfg, log.Default())
	if err != nil {
		log.Fatalf("could not create server: %+v", err)
	}

	stop := make(chan os.Signal, 1)
	err = srv.run(context.Background(), opts, stop)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

type options struct {
	mon     bool
	freq    time.Duration
	console bool
	mail    bool
	version bool
}

// parseFlags parses the command line arguments.
// Flags explicitly set on the command line override the values of the
// configuration file.
func parseFlags(fset *flag.FlagSet, args []string) (config.Config, options, error) {
	var (
		cfgName = fset.String("cfg", "", "path to a YAML configuration file")
		port    = fset.Uint("port", listener.DefaultPort, "UDP port to listen on")
		host    = fset.String("host", "0.0.0.0", "address to bind")
		capa    = fset.Int("capacity", history.DefaultCapacity, "number of retained samples")
		mode    = fset.String("mode", "literal", "sequence tracking mode (literal|lenient)")
		rcvbuf  = fset.Int("rcvbuf", 0, "kernel receive buffer size in bytes (0: system default)")
		odir    = fset.String("o", "", "output directory for exports (default: temporary directory)")
		dump    = fset.String("dump", "", "path to a raw-frame dump written at exit (.zst: compressed)")
		ws      = fset.String("ws", "", "[ip]:port to serve the websocket feed on")
		verbose = fset.Bool("v", false, "enable verbose mode")

		opts options
	)
	fset.BoolVar(&opts.mon, "pmon", false, "enable pmon monitoring")
	fset.DurationVar(&opts.freq, "freq", 1*time.Second, "pmon frequency")
	fset.BoolVar(&opts.console, "i", false, "start an interactive console")
	fset.BoolVar(&opts.mail, "mail", false, "mail a session report at exit")
	fset.BoolVar(&opts.version, "version", false, "print version and exit")

	err := fset.Parse(args)
	if err != nil {
		return config.Config{}, opts, err
	}

	cfg := config.Default()
	if *cfgName != "" {
		cfg, err = config.Load(*cfgName)
		if err != nil {
			return cfg, opts, err
		}
	}

	var errs []error
	fset.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			if *port > 0xffff {
				errs = append(errs, fmt.Errorf("invalid port %d", *port))
				return
			}
			cfg.Port = uint16(*port)
		case "host":
			cfg.Host = *host
		case "capacity":
			cfg.Capacity = *capa
		case "mode":
			cfg.Mode = *mode
		case "rcvbuf":
			cfg.RcvBuf = *rcvbuf
		case "o":
			cfg.ExportDir = *odir
		case "dump":
			cfg.Dump = *dump
		case "ws":
			cfg.WS = *ws
		case "v":
			cfg.Verbose = *verbose
		}
	})
	if len(errs) > 0 {
		return cfg, opts, errors.Join(errs...)
	}

	err = cfg.Validate()
	if err != nil {
		return cfg, opts, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, opts, nil
}

type server struct {
	cfg  config.Config
	msg  *log.Logger
	lst  *listener.Listener
	beg  time.Time
	quit chan struct{} // closed when the server shuts down
}

func newServer(cfg config.Config, msg *log.Logger) (*server, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, fmt.Errorf("could not create listener options: %w", err)
	}
	opts = append(opts, listener.WithLogger(msg))

	return &server{
		cfg:  cfg,
		msg:  msg,
		lst:  listener.New(opts...),
		quit: make(chan struct{}),
	}, nil
}

func (srv *server) dir() string {
	if srv.cfg.ExportDir != "" {
		return srv.cfg.ExportDir
	}
	return os.TempDir()
}

func (srv *server) run(ctx context.Context, opts options, stop chan os.Signal) error {
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	err := srv.lst.Start(srv.cfg.Port)
	if err != nil {
		return fmt.Errorf("could not start listener: %w", err)
	}
	srv.beg = time.Now().UTC()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		select {
		case <-stop:
			srv.msg.Printf("received interrupt...")
			cancel()
		case <-ctx.Done():
		case <-srv.lst.Done():
			if err := srv.lst.Err(); err != nil {
				return fmt.Errorf("could not receive frames: %w", err)
			}
		}
		return nil
	})

	if srv.cfg.WS != "" {
		grp.Go(func() error {
			return srv.serveFeed(ctx, srv.cfg.WS)
		})
	}

	if opts.mon {
		err := srv.monitor(opts.freq)
		if err != nil {
			srv.msg.Printf("could not start monitoring: %+v", err)
		}
	}

	if opts.console {
		// the console is not part of the group: liner has no way to
		// interrupt a pending prompt.
		term := newConsole(srv, os.Stdout)
		defer term.close()
		go func() {
			defer cancel()
			err := term.loop()
			if err != nil {
				srv.msg.Printf("console error: %+v", err)
			}
		}()
	}

	err = grp.Wait()
	close(srv.quit)

	if e := srv.lst.Stop(); e != nil {
		srv.msg.Printf("could not stop listener: %+v", e)
	}

	if e := srv.finalize(context.Background(), opts.mail); e != nil {
		err = errors.Join(err, e)
	}

	return err
}

func (srv *server) monitor(freq time.Duration) error {
	pid := os.Getpid()
	p, err := pmon.Monitor(pid)
	if err != nil {
		return fmt.Errorf("could not monitor pid=%d: %w", pid, err)
	}
	f, err := os.Create(filepath.Join(srv.dir(), "pidtel-pmon.log"))
	if err != nil {
		return fmt.Errorf("could not create pmon log file: %w", err)
	}
	p.W = f
	p.Freq = freq

	// the monitor lives as long as the process.
	go func() {
		defer f.Close()
		srv.msg.Printf("run pmon (pid=%d)...", pid)
		err := p.Run()
		if err != nil {
			srv.msg.Printf("could not run pmon: %+v", err)
		}
	}()
	return nil
}

// finalize exports the session history and hands it over to the
// configured sinks.
func (srv *server) finalize(ctx context.Context, mail bool) error {
	var (
		errs    []error
		buf     = srv.lst.Buffer()
		samples = buf.Snapshot()
		lost    = buf.LostPackets()
		dir     = srv.dir()
	)

	fname, err := csvexport.WriteFile(dir, samples)
	if err != nil {
		return fmt.Errorf("could not export history: %w", err)
	}
	srv.msg.Printf("exported %d samples to %q", len(samples), fname)

	rep := report.New(samples, lost, 0)
	yoda := filepath.Join(dir, "debug_data.yoda")
	raw, err := rep.YODA()
	if err == nil {
		err = os.WriteFile(yoda, raw, 0644)
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("could not write histograms: %w", err))
		yoda = ""
	}

	if srv.cfg.Dump != "" {
		err := replay.Dump(srv.cfg.Dump, buf.Raw())
		if err != nil {
			errs = append(errs, fmt.Errorf("could not dump raw frames: %w", err))
		} else {
			srv.msg.Printf("dumped %d frames to %q", buf.RawLen(), srv.cfg.Dump)
		}
	}

	if srv.cfg.DB.DSN != "" {
		err := srv.save(ctx, samples, lost)
		if err != nil {
			errs = append(errs, err)
		}
	}

	if mail {
		attach := []string{fname}
		if yoda != "" {
			attach = append(attach, yoda)
		}
		err := report.Mail(srv.cfg.Mail, os.Getenv("PIDTEL_MAIL_PWD"), rep, attach...)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (srv *server) save(ctx context.Context, samples []history.Sample, lost uint64) error {
	db, err := store.Open(srv.cfg.DB.DSN)
	if err != nil {
		return fmt.Errorf("could not open store: %w", err)
	}
	defer db.Close()

	err = db.CreateTables(ctx)
	if err != nil {
		return fmt.Errorf("could not create store tables: %w", err)
	}

	sess := store.Session{
		Name:    store.SessionName(srv.beg),
		Created: srv.beg,
		Lost:    lost,
		Mode:    srv.cfg.Mode,
	}
	err = db.Insert(ctx, sess, samples)
	if err != nil {
		return fmt.Errorf("could not store session: %w", err)
	}
	srv.msg.Printf("stored session %q (%d samples) into %q", sess.Name, len(samples), db.Name())
	return nil
}
