// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package system

import (
	"bytes"
	"sync"

	"go.uber.org/zap"
)

// SinkWriter is an io.Writer that turns each written line into a log entry.
// It serves as the diagnostic sink of builds that have no log of their own.
type SinkWriter struct {
	log *zap.SugaredLogger

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewSinkWriter creates a SinkWriter logging at warn level through log.
func NewSinkWriter(log *zap.SugaredLogger) *SinkWriter {
	return &SinkWriter{log: log}
}

// Write logs every complete line in p; a trailing partial line is kept
// until the next Write or Flush.
func (w *SinkWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// incomplete line, put it back
			rest := append([]byte(nil), line...)
			w.buf.Reset()
			w.buf.Write(rest)
			break
		}
		w.emit(line[:len(line)-1])
	}
	return len(p), nil
}

// Flush logs any buffered partial line.
func (w *SinkWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.emit(w.buf.Bytes())
		w.buf.Reset()
	}
}

func (w *SinkWriter) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return
	}
	w.log.Warnw("Build diagnostic", "message", string(line))
}
