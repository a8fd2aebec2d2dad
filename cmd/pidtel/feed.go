// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-lpc/pidtel/csvexport"
	"github.com/go-lpc/pidtel/history"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// feedQueue is the number of samples queued for a websocket client.
// Samples are dropped for clients that do not keep up.
const feedQueue = 1024

func (srv *server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/samples", srv.handleSamples)
	mux.HandleFunc("/snapshot.csv", srv.handleSnapshot)
	mux.HandleFunc("/clear", srv.handleClear)
	mux.HandleFunc("/stats", srv.handleStats)
	return mux
}

func (srv *server) serveFeed(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("could not listen on %q: %w", addr, err)
	}

	hsrv := &http.Server{
		Handler:           srv.mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = hsrv.Close()
	}()

	srv.msg.Printf("serving websocket feed on %v...", ln.Addr())
	err = hsrv.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not serve websocket feed: %w", err)
	}
	return nil
}

type jsonFloat float32

func (v jsonFloat) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 32), nil
}

type jsonSample struct {
	Seq      uint32    `json:"seq"`
	T        float64   `json:"t"` // receive time, in seconds since the epoch.
	Setpoint jsonFloat `json:"setpoint"`
	Error    jsonFloat `json:"error"`
	P        jsonFloat `json:"p"`
	I        jsonFloat `json:"i"`
	D        jsonFloat `json:"d"`
	Output   jsonFloat `json:"output"`
}

func newJSONSample(s history.Sample) jsonSample {
	return jsonSample{
		Seq:      s.Seq,
		T:        float64(s.RecvAt.UnixNano()) / 1e9,
		Setpoint: jsonFloat(s.Setpoint),
		Error:    jsonFloat(s.Error),
		P:        jsonFloat(s.P),
		I:        jsonFloat(s.I),
		D:        jsonFloat(s.D),
		Output:   jsonFloat(s.Output),
	}
}

// handleSamples streams samples to a websocket client as JSON messages.
// The optional "tail" query parameter requests the last samples of the
// history first.
// Under a concurrent producer, a sample may be sent both as part of the
// tail and as a live sample.
func (srv *server) handleSamples(w http.ResponseWriter, r *http.Request) {
	tail := 0
	if v := r.URL.Query().Get("tail"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, fmt.Sprintf("invalid tail value %q", v), http.StatusBadRequest)
			return
		}
		tail = n
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.msg.Printf("could not upgrade connection: %+v", err)
		return
	}
	defer conn.Close()

	buf := srv.lst.Buffer()
	queue := make(chan history.Sample, feedQueue)
	cancel := buf.Subscribe(func(s history.Sample) {
		select {
		case queue <- s:
		default:
		}
	})
	defer cancel()

	// drain client messages, to detect closed connections.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}()

	for _, s := range buf.Tail(tail) {
		err = conn.WriteJSON(newJSONSample(s))
		if err != nil {
			return
		}
	}

	for {
		select {
		case s := <-queue:
			err = conn.WriteJSON(newJSONSample(s))
			if err != nil {
				return
			}
		case <-closed:
			return
		case <-srv.quit:
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			)
			return
		}
	}
}

func (srv *server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+csvexport.DefaultName+`"`)
	err := csvexport.Write(w, srv.lst.Snapshot())
	if err != nil {
		srv.msg.Printf("could not write snapshot: %+v", err)
	}
}

func (srv *server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	srv.lst.Clear()
	w.WriteHeader(http.StatusNoContent)
}

type jsonStats struct {
	State     string `json:"state"`
	Datagrams uint64 `json:"datagrams"`
	Accepted  uint64 `json:"accepted"`
	BadLength uint64 `json:"bad_length"`
	BadMagic  uint64 `json:"bad_magic"`
	Lost      uint64 `json:"lost"`
	Reordered uint64 `json:"reordered"`
	Samples   int    `json:"samples"`
	Capacity  int    `json:"capacity"`
}

func (srv *server) stats() jsonStats {
	var (
		st  = srv.lst.Stats()
		buf = srv.lst.Buffer()
	)
	return jsonStats{
		State:     srv.lst.State().String(),
		Datagrams: st.Datagrams,
		Accepted:  st.Accepted,
		BadLength: st.BadLength,
		BadMagic:  st.BadMagic,
		Lost:      buf.LostPackets(),
		Reordered: buf.Reordered(),
		Samples:   buf.Len(),
		Capacity:  buf.Cap(),
	}
}

func (srv *server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(srv.stats())
	if err != nil {
		srv.msg.Printf("could not write stats: %+v", err)
	}
}
