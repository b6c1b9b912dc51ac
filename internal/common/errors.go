package common

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// MessageID represents the type of error message.
type MessageID int

// The messages IDs.
const (
	ErrorMsg MessageID = iota
	WarningMsg
)

func (id MessageID) String() string {
	switch id {
	case ErrorMsg:
		return "error"
	case WarningMsg:
		return "warning"
	}
	return ""
}

// Position of a diagnostic in an input file.
type Position struct {
	Filename string
	Line     int
	Column   int
}

// NoPosition means it wasn't part of a file.
var NoPosition = Position{}

// FilePosition is a position naming only a file.
func FilePosition(filename string) Position {
	return Position{Filename: filename}
}

func (p Position) String() string {
	var buf bytes.Buffer
	if len(p.Filename) > 0 {
		buf.WriteString(p.Filename)
	}

	if p.Line > 0 {
		if buf.Len() > 0 {
			buf.WriteString(":")
		}
		buf.WriteString(fmt.Sprintf("%d:%d", p.Line, p.Column))
	}

	if buf.Len() > 0 {
		return buf.String()
	}

	return "-"
}

// IsValid returns true if it's a valid file position.
func (p Position) IsValid() bool {
	return p.Line > 0
}

// Abs resolves filename against cwd.
func Abs(cwd string, filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(cwd, filename)
}

// LLVM diagnostics look like "file.ll:3:14: error: expected type".
var diagRegex = regexp.MustCompile(`^(.*?):(\d+):(\d+): (?:error|warning): (.*)$`)

// ParseDiagnostic splits the first line of an LLVM diagnostic into
// position and message. Messages in another format come back unchanged
// with NoPosition.
func ParseDiagnostic(msg string) (Position, string) {
	first, _, _ := strings.Cut(msg, "\n")
	m := diagRegex.FindStringSubmatch(first)
	if m == nil {
		return NoPosition, msg
	}
	line, _ := strconv.Atoi(m[2])
	col, _ := strconv.Atoi(m[3])
	return Position{Filename: m[1], Line: line, Column: col}, m[4]
}

type Error struct {
	Pos     Position
	ID      MessageID
	Msg     string
	Context []string
}

type ErrorList struct {
	Warnings []*Error
	Errors   []*Error
}

func NewError(pos Position, id MessageID, msg string) *Error {
	return &Error{Pos: pos, ID: id, Msg: msg}
}

func (e Error) Error() string {
	msg := ""

	id := ""
	if e.ID == ErrorMsg {
		id = BoldRed(e.ID.String())
	} else {
		id = BoldPurple(e.ID.String())
	}

	if e.Pos.IsValid() {
		msg = fmt.Sprintf("%s: %s: %s", e.Pos, id, e.Msg)
	} else if len(e.Pos.Filename) > 0 {
		msg = fmt.Sprintf("%s: %s: %s", e.Pos.Filename, id, e.Msg)
	} else {
		msg = fmt.Sprintf("%s: %s", id, e.Msg)
	}

	var buf bytes.Buffer
	buf.WriteString(msg)

	for _, l := range e.Context {
		buf.WriteString("\n")
		buf.WriteString(l)
	}

	return buf.String()
}

func (e *ErrorList) Add(pos Position, format string, args ...interface{}) {
	err := NewError(pos, ErrorMsg, fmt.Sprintf(format, args...))
	e.Errors = append(e.Errors, err)
}

func (e *ErrorList) AddContext(pos Position, context []string, format string, args ...interface{}) {
	err := NewError(pos, ErrorMsg, fmt.Sprintf(format, args...))
	err.Context = context
	e.Errors = append(e.Errors, err)
}

func (e *ErrorList) AddWarning(pos Position, format string, args ...interface{}) {
	err := NewError(pos, WarningMsg, fmt.Sprintf(format, args...))
	e.Warnings = append(e.Warnings, err)
}

// AddAt adds err, keeping lists and positioned errors as they are.
func (e *ErrorList) AddAt(pos Position, err error) {
	switch t := err.(type) {
	case *ErrorList:
		e.Append(t)
	case *Error:
		if t.ID == WarningMsg {
			e.Warnings = append(e.Warnings, t)
		} else {
			e.Errors = append(e.Errors, t)
		}
	default:
		e.Add(pos, "%s", err.Error())
	}
}

func (e *ErrorList) AddGeneric(err error) {
	e.AddAt(NoPosition, err)
}

func (e *ErrorList) Append(other *ErrorList) {
	e.Warnings = append(e.Warnings, other.Warnings...)
	e.Errors = append(e.Errors, other.Errors...)
}

func (e *ErrorList) IsError() bool {
	return len(e.Errors) > 0
}

// Sort errors by filename and line numbers.
func (e *ErrorList) Sort() {
	sort.Stable(byFileAndLineNumber(e.Warnings))
	sort.Stable(byFileAndLineNumber(e.Errors))
}

type byFileAndLineNumber []*Error

func (e byFileAndLineNumber) Len() int      { return len(e) }
func (e byFileAndLineNumber) Swap(i, j int) { e[i], e[j] = e[j], e[i] }
func (e byFileAndLineNumber) Less(i, j int) bool {
	if e[i].Pos.Filename < e[j].Pos.Filename {
		return true
	} else if e[i].Pos.Filename == e[j].Pos.Filename {
		if e[i].Pos.Line < e[j].Pos.Line {
			return true
		} else if e[i].Pos.Line == e[j].Pos.Line {
			return e[i].Pos.Column < e[j].Pos.Column
		}
	}
	return false
}

func (e ErrorList) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", e.Errors[0].Error(), len(e.Errors)-1)
}

type fileLinesCache map[string][]string

func (c fileLinesCache) lines(filename string) []string {
	if found, ok := c[filename]; ok {
		return found
	}
	var lines []string
	if src, err := os.ReadFile(filename); err == nil {
		scanner := bufio.NewScanner(bytes.NewReader(src))
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
	}
	c[filename] = lines
	return lines
}

var notWSRegex = regexp.MustCompile(`\S`)

// LoadContext attaches the source line and a column marker to every
// positioned message that has no context yet.
func (e *ErrorList) LoadContext() {
	cache := make(fileLinesCache)
	loadContext(cache, e.Warnings)
	loadContext(cache, e.Errors)
}

func loadContext(cache fileLinesCache, errors []*Error) {
	for _, e := range errors {
		if len(e.Context) > 0 || !e.Pos.IsValid() || len(e.Pos.Filename) == 0 {
			continue
		}
		lines := cache.lines(e.Pos.Filename)
		linePos := e.Pos.Line - 1
		if linePos < 0 || linePos >= len(lines) {
			continue
		}
		line := lines[linePos]
		lineLen := len(line)
		if lineLen > 200 {
			line = line[:200]
			lineLen = len(line)
			line += "..."
		}
		columnPos := e.Pos.Column - 1
		if columnPos < 0 || columnPos > lineLen {
			continue
		}
		mark := notWSRegex.ReplaceAllString(line[:columnPos], " ")
		mark += BoldGreen("^")
		e.Context = append(e.Context, line, mark)
	}
}
