/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package log is varbridge's structured logger, adapted from gravwell's
// ingest/log package: RFC5424 framing over a single writer, with the
// writer/relay-fanout and raw-mode machinery gravwell needs for its
// multi-destination ingest daemons trimmed away, since this server only
// ever logs to one stream (stderr, or a file override). In its place
// every record carries a "component" structured-data field (store,
// observer, rpc, wsintrospect, server) so a single process-wide log
// stream still lets an operator separate which subsystem emitted each
// line, per SPEC_FULL.md's ambient logging section.
package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

const (
	OFF      Level = 0
	DEBUG    Level = 1
	INFO     Level = 2
	WARN     Level = 3
	ERROR    Level = 4
	CRITICAL Level = 5
	FATAL    Level = 6
)

const (
	// callDepth is the runtime.Caller skip count from callLoc back up to
	// the exported Logger method (Errorf, Infof, ...) the caller invoked.
	callDepth = 2

	defaultMsgID = `vb@1`

	maxAppname  = 48
	maxHostname = 255
)

var ErrInvalidLevel = errors.New("log level is invalid")

// Level is the RFC5424-mapped severity of a log record.
type Level int

// state is the mutable core shared by a root Logger and every child
// produced by WithComponent, so changing the level or closing the
// underlying writer affects every component tag at once.
type state struct {
	mu       sync.Mutex
	wtr      io.WriteCloser
	lvl      Level
	hostname string
	appname  string
}

// Logger writes RFC5424-framed records tagged with a component name to a
// single underlying writer.
type Logger struct {
	*state
	component string
}

// New builds a root Logger writing to wtr at level INFO.
func New(wtr io.WriteCloser) *Logger {
	s := &state{wtr: wtr, lvl: INFO}
	s.guessHostnameAppname()
	return &Logger{state: s}
}

// WithComponent returns a child Logger tagging every record it emits with
// name (e.g. "store", "observer", "rpc"), sharing this Logger's writer,
// mutex, and level.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{state: l.state, component: name}
}

// Close closes the underlying writer.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.wtr == nil {
		return nil
	}
	return l.wtr.Close()
}

// SetLevel sets the minimum level that will be emitted; it affects every
// Logger sharing this one's state, including other components.
func (l *Logger) SetLevel(lvl Level) error {
	if !lvl.Valid() {
		return ErrInvalidLevel
	}
	l.mu.Lock()
	l.lvl = lvl
	l.mu.Unlock()
	return nil
}

// GetLevel returns the current minimum emitted level.
func (l *Logger) GetLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lvl
}

func (l *Logger) Debugf(f string, args ...interface{}) error { return l.outputf(DEBUG, f, args...) }
func (l *Logger) Infof(f string, args ...interface{}) error   { return l.outputf(INFO, f, args...) }
func (l *Logger) Warnf(f string, args ...interface{}) error   { return l.outputf(WARN, f, args...) }
func (l *Logger) Errorf(f string, args ...interface{}) error  { return l.outputf(ERROR, f, args...) }

func (l *Logger) Criticalf(f string, args ...interface{}) error {
	return l.outputf(CRITICAL, f, args...)
}

// Fatalf logs at FATAL and then exits the process with status 1.
func (l *Logger) Fatalf(f string, args ...interface{}) {
	l.outputf(FATAL, f, args...)
	os.Exit(1)
}

func (l *Logger) outputf(lvl Level, f string, args ...interface{}) error {
	l.mu.Lock()
	skip := l.lvl == OFF || lvl < l.lvl
	wtr := l.wtr
	hostname, appname := l.hostname, l.appname
	l.mu.Unlock()
	if skip || wtr == nil {
		return nil
	}

	ts := time.Now()
	b, err := genRFCMessage(ts, lvl.priority(), hostname, appname, callLoc(callDepth), l.component, fmt.Sprintf(f, args...))
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := wtr.Write(b); err != nil {
		return err
	}
	_, err = io.WriteString(wtr, "\n")
	return err
}

// genRFCMessage renders one RFC5424 record. component, when non-empty,
// is carried as a structured-data parameter so operators can filter a
// shared log stream by subsystem without needing per-component files.
//
// Per RFC5424 https://www.rfc-editor.org/rfc/rfc5424.html#section-6.2.7,
// AppName is capped at 48 bytes and Hostname at 255.
func genRFCMessage(ts time.Time, prio rfc5424.Priority, hostname, appname, callsite, component, msg string) ([]byte, error) {
	m := rfc5424.Message{
		Priority:  prio,
		Timestamp: ts,
		Hostname:  trimLength(maxHostname, hostname),
		AppName:   trimLength(maxAppname, appname),
		MessageID: defaultMsgID,
		Message:   []byte(msg),
	}
	params := []rfc5424.SDParam{{Name: "callsite", Value: callsite}}
	if component != "" {
		params = append(params, rfc5424.SDParam{Name: "component", Value: component})
	}
	m.StructuredData = []rfc5424.StructuredData{{ID: "vb@1", Parameters: params}}
	return m.MarshalBinary()
}

func (l Level) String() string {
	switch l {
	case OFF:
		return `OFF`
	case DEBUG:
		return `DEBUG`
	case INFO:
		return `INFO`
	case WARN:
		return `WARN`
	case ERROR:
		return `ERROR`
	case CRITICAL:
		return `CRITICAL`
	case FATAL:
		return `FATAL`
	}
	return `UNKNOWN`
}

func (l Level) Valid() bool {
	return l >= OFF && l <= FATAL
}

func (l Level) priority() rfc5424.Priority {
	switch l {
	case OFF:
		return 0
	case DEBUG:
		return rfc5424.User | rfc5424.Debug
	case INFO:
		return rfc5424.User | rfc5424.Info
	case WARN:
		return rfc5424.User | rfc5424.Warning
	case ERROR:
		return rfc5424.User | rfc5424.Error
	case CRITICAL:
		return rfc5424.User | rfc5424.Crit
	case FATAL:
		return rfc5424.User | rfc5424.Emergency
	}
	return rfc5424.User | rfc5424.Debug
}

func (s *state) guessHostnameAppname() {
	if host, err := os.Hostname(); err == nil {
		s.hostname = trimLength(maxHostname, host)
	}
	if args := os.Args; len(args) > 0 {
		exe := filepath.Base(args[0])
		if ext := filepath.Ext(exe); len(ext) > 0 && len(ext) < len(exe) {
			exe = strings.TrimSuffix(exe, ext)
		}
		s.appname = trimLength(maxAppname, exe)
	}
}

// callLoc returns "file:line" for the caller skip frames up the stack,
// used as the record's structured-data callsite field.
func callLoc(skip int) (s string) {
	if _, file, line, ok := runtime.Caller(skip); ok {
		dir, file := filepath.Split(file)
		file = filepath.Join(filepath.Base(dir), file)
		s = fmt.Sprintf("%s:%d", file, line)
	}
	return
}

func trimLength(n int, s string) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
