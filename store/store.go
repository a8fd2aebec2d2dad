// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package store saves telemetry sessions into a MySQL database.
package store // import "github.com/go-lpc/pidtel/store"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-lpc/pidtel/history"
	"github.com/go-sql-driver/mysql"
)

var (
	drvName = "mysql"
	timeout = 5 * time.Second
)

// DB exposes convenience methods to store and retrieve telemetry sessions.
type DB struct {
	db   *sql.DB
	name string // name of the database
}

// Session describes a stored telemetry session.
type Session struct {
	Name    string
	Created time.Time
	Samples int64
	Lost    uint64
	Mode    string
}

// SessionName returns the canonical name of a session started at t.
func SessionName(t time.Time) string {
	return t.UTC().Format("20060102-150405.000")
}

// Open opens a connection to the database described by the MySQL
// data source name dsn.
func Open(dsn string) (*DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: could not parse dsn: %w", err)
	}
	if cfg.DBName == "" {
		return nil, fmt.Errorf("store: missing database name in dsn")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = timeout
	}

	db, err := sql.Open(drvName, cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("store: could not open %q db: %w", cfg.DBName, err)
	}

	err = ping(db, cfg.DBName)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{db: db, name: cfg.DBName}, nil
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("store: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Name() string { return db.name }

func (db *DB) Close() error {
	return db.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
	name    VARCHAR(32) NOT NULL PRIMARY KEY,
	created BIGINT NOT NULL,
	samples BIGINT NOT NULL,
	lost    BIGINT UNSIGNED NOT NULL,
	mode    VARCHAR(16) NOT NULL
)`,
	"CREATE TABLE IF NOT EXISTS samples (\n" +
		"	id       BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,\n" +
		"	session  VARCHAR(32) NOT NULL,\n" +
		"	seq      INT UNSIGNED NOT NULL,\n" +
		"	recv_at  BIGINT NOT NULL,\n" +
		"	setpoint FLOAT,\n" +
		"	`error`  FLOAT,\n" +
		"	p        FLOAT,\n" +
		"	i        FLOAT,\n" +
		"	d        FLOAT,\n" +
		"	output   FLOAT,\n" +
		"	INDEX (session)\n" +
		")",
}

// CreateTables creates the sessions and samples tables, if needed.
func (db *DB) CreateTables(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, q := range schema {
		_, err := db.db.ExecContext(ctx, q)
		if err != nil {
			return fmt.Errorf("store: could not create tables: %w", err)
		}
	}
	return nil
}

// Insert stores the samples of a session, in arrival order, in a
// single transaction.
func (db *DB) Insert(ctx context.Context, sess Session, samples []history.Sample) (err error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: could not start transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(
		ctx,
		"INSERT INTO sessions (name, created, samples, lost, mode) VALUES (?, ?, ?, ?, ?)",
		sess.Name, sess.Created.UnixNano(), int64(len(samples)), sess.Lost, sess.Mode,
	)
	if err != nil {
		return fmt.Errorf("store: could not insert session %q: %w", sess.Name, err)
	}

	stmt, err := tx.PrepareContext(
		ctx,
		"INSERT INTO samples (session, seq, recv_at, setpoint, `error`, p, i, d, output) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("store: could not prepare sample insertion: %w", err)
	}
	defer stmt.Close()

	for i, s := range samples {
		_, err = stmt.ExecContext(
			ctx,
			sess.Name, s.Seq, s.RecvAt.UnixNano(),
			s.Setpoint, s.Error, s.P, s.I, s.D, s.Output,
		)
		if err != nil {
			return fmt.Errorf("store: could not insert sample #%d of session %q: %w", i, sess.Name, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("store: could not commit session %q: %w", sess.Name, err)
	}
	return nil
}

// Sessions returns the stored sessions, most recent first.
func (db *DB) Sessions(ctx context.Context) ([]Session, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var sessions []Session
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT name, created, samples, lost, mode FROM sessions ORDER BY created DESC",
	)
	if err != nil {
		return sessions, fmt.Errorf("store: could not query sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sess    Session
			created int64
		)
		err = rows.Scan(&sess.Name, &created, &sess.Samples, &sess.Lost, &sess.Mode)
		if err != nil {
			return sessions, fmt.Errorf("store: could not scan session: %w", err)
		}
		sess.Created = time.Unix(0, created).UTC()
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return sessions, fmt.Errorf("store: could not scan db for sessions: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return sessions, fmt.Errorf("store: context error while retrieving sessions: %w", err)
	}

	return sessions, nil
}

// Samples returns the samples of the named session, in arrival order.
func (db *DB) Samples(ctx context.Context, session string) ([]history.Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var samples []history.Sample
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT seq, recv_at, setpoint, `error`, p, i, d, output FROM samples "+
			"WHERE session=? ORDER BY id",
		session,
	)
	if err != nil {
		return samples, fmt.Errorf("store: could not query samples of session %q: %w", session, err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		var (
			s      history.Sample
			recvAt int64
		)
		err = rows.Scan(
			&s.Seq, &recvAt,
			&s.Setpoint, &s.Error, &s.P, &s.I, &s.D, &s.Output,
		)
		if err != nil {
			return samples, fmt.Errorf("store: could not scan row %d of session %q: %w", i, session, err)
		}
		i++
		s.RecvAt = time.Unix(0, recvAt)
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return samples, fmt.Errorf("store: could not scan db for session %q: %w", session, err)
	}

	if err := ctx.Err(); err != nil {
		return samples, fmt.Errorf("store: context error while retrieving session %q: %w", session, err)
	}

	return samples, nil
}
