// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package log is the process-wide logging collaborator: a registry of byte
// sinks fed by a short-lock buffer and drained by a periodic background
// flush job. The core depends only on the write(priority, message) surface
// below; it neither creates nor destroys sinks.
package log

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/time/rate"
)

// Level is the logging severity floor, ordered low to high.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelNotice
	LevelWarn
	LevelErr
	LevelCrit
)

// ParseLevel parses the --loglevel flag value.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "notice":
		return LevelNotice, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "err", "error":
		return LevelErr, nil
	case "crit", "critical":
		return LevelCrit, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func (l Level) prefix() string {
	switch l {
	case LevelDebug:
		return "<7>[DEBUG]"
	case LevelInfo:
		return "<6>[INFO]"
	case LevelNotice:
		return "<5>[NOTICE]"
	case LevelWarn:
		return "<4>[WARNING]"
	case LevelErr:
		return "<3>[ERROR]"
	default:
		return "<2>[CRITICAL]"
	}
}

// Logger is a sink registry: writers append to an in-memory buffer under a
// short-held lock, and a scheduled job periodically drains that buffer to
// every registered sink. Flush throughput is rate-limited so a burst of
// writes (e.g. one ParsingError per malformed line in a huge trace) cannot
// hold the flusher goroutine for an unbounded time in one tick.
type Logger struct {
	mu       sync.Mutex
	buf      strings.Builder
	sinks    []io.Writer
	level    Level
	dateTime bool
	limiter  *rate.Limiter
	sched    gocron.Scheduler
}

// New returns a Logger with its background flush job already running at a
// one-second period. Call Close to stop the job and flush what remains.
func New() (*Logger, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("log: creating scheduler: %w", err)
	}
	l := &Logger{
		level:   LevelInfo,
		limiter: rate.NewLimiter(rate.Limit(10_000), 10_000),
		sched:   sched,
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(time.Second),
		gocron.NewTask(l.flush),
	); err != nil {
		return nil, fmt.Errorf("log: scheduling flush job: %w", err)
	}
	sched.Start()
	return l, nil
}

// AddSink registers w as a flush target. The core never calls this; only
// the CLI entry point wires sinks (typically os.Stderr).
func (l *Logger) AddSink(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, w)
}

// SetLevel sets the severity floor; messages below it are dropped at the
// write call, never buffered.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetLogDateTime toggles an RFC3339 timestamp prefix on every line.
func (l *Logger) SetLogDateTime(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dateTime = enabled
}

func (l *Logger) write(level Level, msg string) {
	l.mu.Lock()
	if level < l.level {
		l.mu.Unlock()
		return
	}
	line := level.prefix() + " "
	if l.dateTime {
		line = time.Now().Format(time.RFC3339) + " " + line
	}
	l.buf.WriteString(line)
	l.buf.WriteString(msg)
	l.buf.WriteByte('\n')
	l.mu.Unlock()
}

// flush drains the buffer to every sink, throttled by l.limiter: lines
// beyond the current token budget are put back for the next tick instead
// of being dropped.
func (l *Logger) flush() {
	l.mu.Lock()
	pending := l.buf.String()
	l.buf.Reset()
	sinks := append([]io.Writer(nil), l.sinks...)
	l.mu.Unlock()

	if pending == "" || len(sinks) == 0 {
		return
	}

	var deferred strings.Builder
	for _, ln := range strings.SplitAfter(pending, "\n") {
		if ln == "" {
			continue
		}
		if !l.limiter.Allow() {
			deferred.WriteString(ln)
			continue
		}
		for _, sink := range sinks {
			io.WriteString(sink, ln)
		}
	}

	if deferred.Len() > 0 {
		l.mu.Lock()
		l.buf.WriteString(deferred.String())
		l.mu.Unlock()
	}
}

// Close stops the background job and flushes whatever remains, without
// the flush rate limit.
func (l *Logger) Close() error {
	if err := l.sched.Shutdown(); err != nil {
		return err
	}
	l.mu.Lock()
	pending := l.buf.String()
	l.buf.Reset()
	sinks := append([]io.Writer(nil), l.sinks...)
	l.mu.Unlock()
	for _, sink := range sinks {
		io.WriteString(sink, pending)
	}
	return nil
}

func (l *Logger) Debug(args ...interface{})                 { l.write(LevelDebug, fmt.Sprint(args...)) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.write(LevelDebug, fmt.Sprintf(format, args...)) }
func (l *Logger) Info(args ...interface{})                  { l.write(LevelInfo, fmt.Sprint(args...)) }
func (l *Logger) Infof(format string, args ...interface{})  { l.write(LevelInfo, fmt.Sprintf(format, args...)) }
func (l *Logger) Notice(args ...interface{})                { l.write(LevelNotice, fmt.Sprint(args...)) }
func (l *Logger) Warn(args ...interface{})                  { l.write(LevelWarn, fmt.Sprint(args...)) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.write(LevelWarn, fmt.Sprintf(format, args...)) }
func (l *Logger) Error(args ...interface{})                 { l.write(LevelErr, fmt.Sprint(args...)) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.write(LevelErr, fmt.Sprintf(format, args...)) }
func (l *Logger) Crit(args ...interface{})                  { l.write(LevelCrit, fmt.Sprint(args...)) }

// Fatal logs at Crit, flushes synchronously, then calls exit(1).
func (l *Logger) Fatal(exit func(int), args ...interface{}) {
	l.write(LevelCrit, fmt.Sprint(args...))
	l.flush()
	exit(1)
}
