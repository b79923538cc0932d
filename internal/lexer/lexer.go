// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lexer turns a VCD byte stream into a typed, single-pass sequence
// of LineInfo events driven by a three-state machine
// (Declarations -> Initializations -> Changes). It performs no
// interpretation of signal values beyond byte-class categorization;
// classifying a byte into a logic level is the indexer's job.
package lexer

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ClusterCockpit/vcdcov/internal/vcdmodel"
)

// EventKind is the closed set of events the lexer can emit.
type EventKind int

const (
	EventSignal EventKind = iota
	EventTimestamp
	EventChange
	EventDateInfo
	EventVersionInfo
	EventTimeScaleInfo
	EventInScope
	EventUpScope
	EventEndDefinitions
	EventEndInitializations
	EventDumpports
	EventUseless
	EventParsingError
)

func (k EventKind) String() string {
	switch k {
	case EventSignal:
		return "signal"
	case EventTimestamp:
		return "timestamp"
	case EventChange:
		return "change"
	case EventDateInfo:
		return "date_info"
	case EventVersionInfo:
		return "version_info"
	case EventTimeScaleInfo:
		return "timescale_info"
	case EventInScope:
		return "in_scope"
	case EventUpScope:
		return "up_scope"
	case EventEndDefinitions:
		return "end_definitions"
	case EventEndInitializations:
		return "end_initializations"
	case EventDumpports:
		return "dumpports"
	case EventUseless:
		return "useless"
	case EventParsingError:
		return "parsing_error"
	default:
		return "unknown"
	}
}

// Change is a value-change line: the declared id together with one raw
// value byte per bit, in declaration order. Values are not yet classified
// into SignalValue - that happens in the indexer.
type Change struct {
	ID     string
	Values []byte
}

// LineInfo is one lexer event, tagged by Kind, always carrying the 1-based
// source line number it was produced from.
type LineInfo struct {
	Kind   EventKind
	Line   int
	Signal vcdmodel.VcdSignal
	Timestamp uint64
	Change Change
	// Text carries the DateInfo/VersionInfo/TimeScaleInfo body, the
	// InScope name, or the ParsingError message, depending on Kind.
	Text string
}

func parsingError(line int, format string, args ...interface{}) LineInfo {
	return LineInfo{Kind: EventParsingError, Line: line, Text: fmt.Sprintf(format, args...)}
}

type phase int

const (
	phaseDeclarations phase = iota
	phaseInitializations
	phaseChanges
)

// Lexer is a lazy, single-pass, non-restartable producer of LineInfo
// values over r.
type Lexer struct {
	r         *bufio.Reader
	lineno    int
	phase     phase
	separator byte
}

// New returns a Lexer reading from r, using separator as the configured
// separator character. Space (' ') is a valid separator and triggers the
// s0/s1-skip in the port change-line form.
func New(r io.Reader, separator byte) *Lexer {
	return &Lexer{r: bufio.NewReaderSize(r, 64*1024), separator: separator}
}

// readLine returns the next physical line with its trailing newline
// stripped, or io.EOF once the stream is exhausted.
func (l *Lexer) readLine() (string, error) {
	line, err := l.r.ReadString('\n')
	if line == "" && err != nil {
		return "", err
	}
	l.lineno++
	line = strings.TrimRight(line, "\r\n")
	return line, nil
}

// Next pulls the next event out of the stream. The second return value is
// false once the stream is exhausted with no further event to report.
func (l *Lexer) Next() (LineInfo, bool) {
	switch l.phase {
	case phaseDeclarations:
		return l.nextDeclarations()
	case phaseInitializations:
		return l.nextInitializations()
	default:
		return l.nextChanges()
	}
}

// nextNonEmptyLine skips blank lines and returns the next one with
// leading/trailing whitespace trimmed, or ok=false at EOF.
func (l *Lexer) nextNonEmptyLine() (string, bool) {
	for {
		line, err := l.readLine()
		if err != nil {
			return "", false
		}
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			return trimmed, true
		}
	}
}

func (l *Lexer) nextDeclarations() (LineInfo, bool) {
	line, ok := l.nextNonEmptyLine()
	if !ok {
		return LineInfo{}, false
	}
	lineno := l.lineno
	fields := strings.Fields(line)
	keyword := fields[0]

	switch keyword {
	case "$date":
		return l.captureHeaderBody(lineno, line, EventDateInfo), true
	case "$version":
		return l.captureHeaderBody(lineno, line, EventVersionInfo), true
	case "$timescale":
		return l.captureHeaderBody(lineno, line, EventTimeScaleInfo), true
	case "$scope":
		return l.manageInScope(lineno, fields), true
	case "$upscope":
		return LineInfo{Kind: EventUpScope, Line: lineno}, true
	case "$var":
		return l.manageVar(lineno, fields), true
	case "$enddefinitions":
		l.phase = phaseInitializations
		return LineInfo{Kind: EventEndDefinitions, Line: lineno}, true
	case "$end":
		return LineInfo{Kind: EventUseless, Line: lineno}, true
	default:
		return parsingError(lineno, "unrecognized symbol %q at line %d", keyword, lineno), true
	}
}

// captureHeaderBody accumulates physical lines (firstLine already read)
// until one of them contains "$end", then returns a single event carrying
// the joined, trimmed body.
func (l *Lexer) captureHeaderBody(lineno int, firstLine string, kind EventKind) LineInfo {
	var body strings.Builder
	body.WriteString(firstLine)
	for !strings.Contains(firstLine, "$end") {
		next, err := l.readLine()
		if err != nil {
			return parsingError(lineno, "unexpected end of file while reading header starting at line %d", lineno)
		}
		firstLine = next
		body.WriteByte('\n')
		body.WriteString(strings.TrimSpace(firstLine))
	}
	text := strings.TrimSpace(strings.ReplaceAll(body.String(), "$end", ""))
	return LineInfo{Kind: kind, Line: lineno, Text: text}
}

func (l *Lexer) manageInScope(lineno int, fields []string) LineInfo {
	if len(fields) < 2 {
		return parsingError(lineno, "unexpected end of file at line %d", lineno)
	}
	scopeType := fields[1]
	switch scopeType {
	case "module", "task":
		if len(fields) < 3 {
			return parsingError(lineno, "unexpected end of file at line %d", lineno)
		}
		return LineInfo{Kind: EventInScope, Line: lineno, Text: fields[2]}
	default:
		return parsingError(lineno, "unrecognized symbol %q at line %d", scopeType, lineno)
	}
}

func (l *Lexer) manageVar(lineno int, fields []string) LineInfo {
	if len(fields) < 2 {
		return parsingError(lineno, "unexpected end of file at line %d", lineno)
	}
	varType := fields[1]
	switch varType {
	case "wire":
		return l.manageVarWire(lineno, fields[2:])
	case "port":
		return l.manageVarPort(lineno, fields[2:])
	default:
		return parsingError(lineno, "unrecognized symbol %q at line %d", varType, lineno)
	}
}

func (l *Lexer) manageVarWire(lineno int, rest []string) LineInfo {
	if len(rest) < 3 {
		return parsingError(lineno, "unexpected end of file at line %d", lineno)
	}
	width, err := strconv.ParseUint(rest[0], 10, 32)
	if err != nil || width == 0 {
		return parsingError(lineno, "malformed wire width %q at line %d", rest[0], lineno)
	}
	id := l.stripSeparator(rest[1])
	name := rest[2]
	return LineInfo{
		Kind: EventSignal, Line: lineno,
		Signal: vcdmodel.VcdSignal{ID: id, Name: name, Width: uint(width), Kind: vcdmodel.KindWire},
	}
}

func (l *Lexer) manageVarPort(lineno int, rest []string) LineInfo {
	if len(rest) < 3 {
		return parsingError(lineno, "unexpected end of file at line %d", lineno)
	}
	quantity := rest[0]
	width := uint(1)
	if quantity != "1" {
		if len(quantity) < 2 || quantity[0] != '<' || quantity[len(quantity)-1] != '>' {
			return parsingError(lineno, "malformed port width %q at line %d", quantity, lineno)
		}
		bounds := quantity[1 : len(quantity)-1]
		parts := strings.SplitN(bounds, ":", 2)
		if len(parts) != 2 {
			return parsingError(lineno, "malformed port width %q at line %d", quantity, lineno)
		}
		lft, errL := strconv.Atoi(parts[0])
		rgt, errR := strconv.Atoi(parts[1])
		if errL != nil || errR != nil {
			return parsingError(lineno, "malformed port width %q at line %d", quantity, lineno)
		}
		diff := lft - rgt
		if diff < 0 {
			diff = -diff
		}
		width = uint(diff) + 1
	}
	id := l.stripSeparator(rest[1])
	name := rest[2]
	return LineInfo{
		Kind: EventSignal, Line: lineno,
		Signal: vcdmodel.VcdSignal{ID: id, Name: name, Width: width, Kind: vcdmodel.KindGate},
	}
}

// stripSeparator removes a leading separator byte from id, a compat shim
// for emitters that prefix ids with the separator character. A known
// emitter quirk, not a correctness requirement.
func (l *Lexer) stripSeparator(id string) string {
	if len(id) > 0 && id[0] == l.separator {
		return id[1:]
	}
	return id
}

func (l *Lexer) nextInitializations() (LineInfo, bool) {
	line, ok := l.nextNonEmptyLine()
	if !ok {
		return LineInfo{}, false
	}
	lineno := l.lineno
	keyword := firstField(line)

	switch keyword {
	case "$end":
		l.phase = phaseChanges
		return LineInfo{Kind: EventEndInitializations, Line: lineno}, true
	case "$dumpports":
		return LineInfo{Kind: EventDumpports, Line: lineno}, true
	case "$dumpvars", "$dumpall", "$dumpon", "$dumpoff":
		return LineInfo{Kind: EventUseless, Line: lineno}, true
	}

	if line[0] == '#' {
		return l.parseTimestamp(lineno, line)
	}
	if change, ok := l.parseChangeLine(lineno, line); ok {
		return change, true
	}
	return parsingError(lineno, "unrecognized symbol %q at line %d", keyword, lineno), true
}

func (l *Lexer) nextChanges() (LineInfo, bool) {
	line, ok := l.nextNonEmptyLine()
	if !ok {
		return LineInfo{}, false
	}
	lineno := l.lineno
	keyword := firstField(line)

	switch keyword {
	case "$dumpports", "$dumpvars", "$dumpall", "$dumpon", "$dumpoff", "$end":
		return parsingError(lineno, "unexpected token %q for the Changes phase at line %d", keyword, lineno), true
	}

	if line[0] == '#' {
		return l.parseTimestamp(lineno, line)
	}
	if change, ok := l.parseChangeLine(lineno, line); ok {
		return change, true
	}
	return parsingError(lineno, "unrecognized symbol %q at line %d", keyword, lineno), true
}

func (l *Lexer) parseTimestamp(lineno int, line string) (LineInfo, bool) {
	digits := line[1:]
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return parsingError(lineno, "malformed timestamp %q at line %d", line, lineno), true
	}
	return LineInfo{Kind: EventTimestamp, Line: lineno, Timestamp: n}, true
}

// parseChangeLine recognizes the three value-change forms: scalar, vector
// ("b..."), and port ("p..."). ok is false if line does not start with a
// recognized value-change leading byte.
func (l *Lexer) parseChangeLine(lineno int, line string) (LineInfo, bool) {
	switch line[0] {
	case '0', '1', 'x', 'z', 'X', 'Z':
		id := strings.TrimSpace(line[1:])
		return LineInfo{Kind: EventChange, Line: lineno, Change: Change{ID: id, Values: []byte{line[0]}}}, true
	case 'b':
		return l.parseVector(lineno, line), true
	case 'p':
		return l.parsePort(lineno, line), true
	default:
		return LineInfo{}, false
	}
}

func (l *Lexer) parseVector(lineno int, line string) LineInfo {
	payload := line[1:]
	var bits, id string
	if l.separator == ' ' {
		fields := strings.Fields(payload)
		if len(fields) != 2 {
			return parsingError(lineno, "malformed vector change %q at line %d", line, lineno)
		}
		bits, id = fields[0], fields[1]
	} else {
		parts := strings.SplitN(payload, string(l.separator), 2)
		if len(parts) != 2 {
			return parsingError(lineno, "malformed vector change %q at line %d", line, lineno)
		}
		bits, id = parts[0], parts[1]
	}
	return LineInfo{Kind: EventChange, Line: lineno, Change: Change{ID: id, Values: []byte(bits)}}
}

func (l *Lexer) parsePort(lineno int, line string) LineInfo {
	payload := line[1:]
	var bits, id string
	if l.separator == ' ' {
		fields := strings.Fields(payload)
		if len(fields) != 4 {
			return parsingError(lineno, "malformed port change %q at line %d", line, lineno)
		}
		bits, id = fields[0], fields[3]
	} else {
		parts := strings.SplitN(payload, string(l.separator), 4)
		if len(parts) != 4 {
			return parsingError(lineno, "malformed port change %q at line %d", line, lineno)
		}
		bits, id = parts[0], parts[3]
	}
	return LineInfo{Kind: EventChange, Line: lineno, Change: Change{ID: id, Values: []byte(bits)}}
}

func firstField(line string) string {
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		return line[:i]
	}
	return line
}
