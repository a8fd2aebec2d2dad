// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package replay

import (
	"io"

	"github.com/go-lpc/pidtel/internal/mmap"
)

type mmapFile struct {
	*io.SectionReader
	h *mmap.Handle
}

func (f *mmapFile) Close() error { return f.h.Close() }

// openRaw memory-maps the dump file fname.
func openRaw(fname string) (io.ReadCloser, error) {
	h, err := mmap.Open(fname)
	if err != nil {
		return nil, err
	}
	return &mmapFile{
		SectionReader: io.NewSectionReader(h, 0, int64(h.Len())),
		h:             h,
	}, nil
}
