// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fakedb holds types to fake an in-memory DB.
//
// Queries return the rows handed to Run. Statements executed through
// Exec and transactions are recorded and can be inspected with Execs.
package fakedb // import "github.com/go-lpc/pidtel/internal/fakedb"

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sync"
)

var query struct {
	mu   sync.Mutex
	rows Rows
}

var journal struct {
	mu    sync.Mutex
	execs []Exec
	fail  int // index of the Exec call that fails, or -1.
}

// Exec describes an executed statement.
// Transactions are recorded as "BEGIN", "COMMIT" and "ROLLBACK".
type Exec struct {
	Query string
	Args  []driver.Value
}

// Run runs f with a fresh journal, serving rows to queries.
func Run(ctx context.Context, rows Rows, f func(ctx context.Context) error) error {
	query.mu.Lock()
	defer query.mu.Unlock()
	query.rows = rows

	journal.mu.Lock()
	journal.execs = nil
	journal.fail = -1
	journal.mu.Unlock()

	return f(ctx)
}

// Execs returns the statements executed since Run was called.
func Execs() []Exec {
	journal.mu.Lock()
	defer journal.mu.Unlock()
	return append([]Exec(nil), journal.execs...)
}

// FailExec makes the i-th Exec call (counting from 0) fail.
func FailExec(i int) {
	journal.mu.Lock()
	defer journal.mu.Unlock()
	journal.fail = i
}

func record(q string, args []driver.Value) error {
	journal.mu.Lock()
	defer journal.mu.Unlock()
	n := len(journal.execs)
	journal.execs = append(journal.execs, Exec{
		Query: q,
		Args:  append([]driver.Value(nil), args...),
	})
	if n == journal.fail {
		return fmt.Errorf("fakedb: exec #%d failed", n)
	}
	return nil
}

func init() {
	journal.fail = -1
	sql.Register("fakedb", &Driver{})
}

type Driver struct{}

// Open returns a new connection to the database.
func (drv *Driver) Open(name string) (driver.Conn, error) {
	return &Conn{}, nil
}

type Conn struct{}

// Prepare returns a prepared statement, bound to this connection.
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return &Stmt{query: query}, nil
}

func (c *Conn) Close() error {
	return nil
}

// Begin starts and returns a new transaction.
func (c *Conn) Begin() (driver.Tx, error) {
	journal.mu.Lock()
	defer journal.mu.Unlock()
	journal.execs = append(journal.execs, Exec{Query: "BEGIN"})
	return &Tx{}, nil
}

type Tx struct{}

func (tx *Tx) Commit() error {
	journal.mu.Lock()
	defer journal.mu.Unlock()
	journal.execs = append(journal.execs, Exec{Query: "COMMIT"})
	return nil
}

func (tx *Tx) Rollback() error {
	journal.mu.Lock()
	defer journal.mu.Unlock()
	journal.execs = append(journal.execs, Exec{Query: "ROLLBACK"})
	return nil
}

type Stmt struct {
	query string
}

func (stmt *Stmt) Close() error {
	return nil
}

// NumInput returns -1: the sql package does not sanity check
// the number of arguments.
func (stmt *Stmt) NumInput() int {
	return -1
}

// Exec executes a query that doesn't return rows, such
// as an INSERT or UPDATE.
func (stmt *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	err := record(stmt.query, args)
	if err != nil {
		return nil, err
	}
	return driver.RowsAffected(1), nil
}

// Query executes a query that may return rows, such as a
// SELECT.
func (stmt *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return &query.rows, nil
}

type Rows struct {
	Names  []string
	Values [][]driver.Value
}

// Columns returns the names of the columns.
func (rows *Rows) Columns() []string {
	return rows.Names
}

// Close closes the rows iterator.
func (rows *Rows) Close() error {
	return nil
}

// Next is called to populate the next row of data into
// the provided slice.
//
// Next returns io.EOF when there are no more rows.
func (rows *Rows) Next(dest []driver.Value) error {
	if len(rows.Values) == 0 {
		return io.EOF
	}
	copy(dest, rows.Values[0])
	rows.Values = rows.Values[1:]
	return nil
}

var (
	_ driver.Driver = (*Driver)(nil)
	_ driver.Conn   = (*Conn)(nil)
	_ driver.Tx     = (*Tx)(nil)
	_ driver.Stmt   = (*Stmt)(nil)
	_ driver.Rows   = (*Rows)(nil)
)
