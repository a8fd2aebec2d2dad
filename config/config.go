// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the configuration of a pidtel daemon.
package config // import "github.com/go-lpc/pidtel/config"

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-lpc/pidtel/history"
	"github.com/go-lpc/pidtel/listener"
	"github.com/go-lpc/pidtel/seqtrk"
	"gopkg.in/yaml.v3"
)

// Config describes a telemetry session.
type Config struct {
	Port      uint16 `yaml:"port"`
	Host      string `yaml:"host"`
	Capacity  int    `yaml:"capacity"`
	Mode      string `yaml:"mode"` // literal or lenient
	RcvBuf    int    `yaml:"rcvbuf"`
	ExportDir string `yaml:"export-dir"`
	Dump      string `yaml:"dump"` // raw-frame dump written at exit, if any
	WS        string `yaml:"ws"`   // address of the websocket feed, if any
	Verbose   bool   `yaml:"verbose"`

	Mail Mail `yaml:"mail"`
	DB   DB   `yaml:"db"`
}

// Mail describes where session reports are sent.
// The password is read from the PIDTEL_MAIL_PWD environment variable.
type Mail struct {
	Server string   `yaml:"server"`
	Port   int      `yaml:"port"`
	User   string   `yaml:"user"`
	From   string   `yaml:"from"`
	To     []string `yaml:"to"`
}

// Enabled reports whether mail reports are configured.
func (m Mail) Enabled() bool {
	return m.Server != "" && m.Port != 0 && len(m.To) != 0
}

// DB describes the database sessions are stored into.
type DB struct {
	DSN string `yaml:"dsn"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Port:     listener.DefaultPort,
		Host:     "0.0.0.0",
		Capacity: history.DefaultCapacity,
		Mode:     seqtrk.Literal.String(),
	}
}

// Load reads the YAML configuration file fname.
// Fields missing from the file keep their default value.
func Load(fname string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(fname)
	if err != nil {
		return cfg, fmt.Errorf("config: could not read %q: %w", fname, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	err = dec.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config: could not decode %q: %w", fname, err)
	}
	err = cfg.Validate()
	if err != nil {
		return cfg, fmt.Errorf("config: invalid configuration %q: %w", fname, err)
	}
	return cfg, nil
}

// Validate checks the consistency of the configuration.
func (cfg Config) Validate() error {
	if cfg.Capacity <= 0 {
		return fmt.Errorf("invalid capacity %d", cfg.Capacity)
	}
	if cfg.RcvBuf < 0 {
		return fmt.Errorf("invalid receive buffer size %d", cfg.RcvBuf)
	}
	_, err := seqtrk.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	return nil
}

// Options returns the listener options corresponding to cfg.
func (cfg Config) Options() ([]listener.Option, error) {
	mode, err := seqtrk.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	return []listener.Option{
		listener.WithHost(cfg.Host),
		listener.WithCapacity(cfg.Capacity),
		listener.WithMode(mode),
		listener.WithReadBuffer(cfg.RcvBuf),
		listener.WithVerbose(cfg.Verbose),
	}, nil
}
