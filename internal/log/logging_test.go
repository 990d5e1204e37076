/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package log

import (
	"bytes"
	"strings"
	"testing"
)

// nopWriteCloser adapts a bytes.Buffer to io.WriteCloser so tests can
// inspect rendered output without touching a file.
type nopWriteCloser struct {
	*bytes.Buffer
}

func (nopWriteCloser) Close() error { return nil }

func newTestLogger() (*Logger, *nopWriteCloser) {
	buf := &nopWriteCloser{new(bytes.Buffer)}
	return New(buf), buf
}

func TestLevelFiltering(t *testing.T) {
	lgr, buf := newTestLogger()
	if err := lgr.SetLevel(WARN); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	if err := lgr.Infof("info: %d", 1); err != nil {
		t.Fatalf("Infof: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected INFO to be filtered below WARN, got %q", buf.String())
	}
	if err := lgr.Errorf("error: %d", 2); err != nil {
		t.Fatalf("Errorf: %v", err)
	}
	if !strings.Contains(buf.String(), "error: 2") {
		t.Fatalf("expected ERROR to pass a WARN threshold, got %q", buf.String())
	}
}

func TestSetLevelRejectsInvalid(t *testing.T) {
	lgr, _ := newTestLogger()
	if err := lgr.SetLevel(Level(99)); err != ErrInvalidLevel {
		t.Fatalf("expected ErrInvalidLevel, got %v", err)
	}
}

func TestWithComponentTagsRecordsAndSharesLevel(t *testing.T) {
	root, buf := newTestLogger()
	store := root.WithComponent("store")
	rpc := root.WithComponent("rpc")

	if err := store.Infof("session created"); err != nil {
		t.Fatalf("Infof: %v", err)
	}
	if !strings.Contains(buf.String(), `component="store"`) {
		t.Fatalf("expected component=store in output, got %q", buf.String())
	}

	if err := root.SetLevel(ERROR); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	buf.Reset()
	if err := rpc.Infof("should be filtered"); err != nil {
		t.Fatalf("Infof: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected rpc child logger to observe the root's raised level, got %q", buf.String())
	}
}

func TestCloseClosesUnderlyingWriter(t *testing.T) {
	lgr, _ := newTestLogger()
	if err := lgr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestLevelStringAndValid(t *testing.T) {
	cases := []struct {
		lvl   Level
		valid bool
		str   string
	}{
		{OFF, true, "OFF"},
		{DEBUG, true, "DEBUG"},
		{FATAL, true, "FATAL"},
		{Level(-1), false, "UNKNOWN"},
		{Level(7), false, "UNKNOWN"},
	}
	for _, c := range cases {
		if got := c.lvl.Valid(); got != c.valid {
			t.Errorf("Level(%d).Valid() = %v, want %v", c.lvl, got, c.valid)
		}
		if got := c.lvl.String(); got != c.str {
			t.Errorf("Level(%d).String() = %q, want %q", c.lvl, got, c.str)
		}
	}
}
