// Copyright (c) 2013 Kevin van Zonneveld <kevin@vanzonneveld.net>. All rights reserved.
// Source: https://github.com/kvz/logstreamer
// SPDX-License-Identifier: MIT

// Package logstreamer gives a task's live output a stable per-task prefix
// when its command is allowed to write straight to the terminal instead of
// being captured for caching.
package logstreamer

import "io"

// PrefixWriter prepends Prefix to every Write. It does not buffer or wait
// for line boundaries, so it is safe to hand directly to exec.Cmd.Stdout /
// exec.Cmd.Stderr for a live process.
type PrefixWriter struct {
	w      io.Writer
	Prefix string
}

var _ io.Writer = (*PrefixWriter)(nil)

// NewPrefixWriter wraps w so every write to it is preceded by prefix.
func NewPrefixWriter(w io.Writer, prefix string) *PrefixWriter {
	return &PrefixWriter{w: w, Prefix: prefix}
}

func (pw *PrefixWriter) Write(p []byte) (int, error) {
	str := pw.Prefix + string(p)
	if _, err := pw.w.Write([]byte(str)); err != nil {
		return 0, err
	}
	return len(p), nil
}
