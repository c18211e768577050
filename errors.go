package legocoder

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// FileError describes a problem in a user-supplied file (palette or config)
// with enough context to fix it.
type FileError struct {
	File    string // Source file path
	Line    int    // Line number (1-indexed, 0 if unknown)
	Message string
	Hint    string
}

// Error implements the error interface.
func (e *FileError) Error() string {
	return e.Format()
}

// Format renders the error with surrounding source lines when available.
func (e *FileError) Format() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("❌ Error in %s\n\n", e.File))
	if e.Line > 0 {
		b.WriteString(fmt.Sprintf("Line %d: %s\n", e.Line, e.Message))
		b.WriteString(e.sourceContext())
	} else {
		b.WriteString(e.Message + "\n")
	}

	if e.Hint != "" {
		b.WriteString(fmt.Sprintf("\n💡 Tip: %s\n", e.Hint))
	}

	return b.String()
}

// sourceContext shows up to two lines either side of the failing line.
func (e *FileError) sourceContext() string {
	f, err := os.Open(e.File)
	if err != nil {
		return ""
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if e.Line > len(lines) {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	for i := max(1, e.Line-2); i <= min(len(lines), e.Line+2); i++ {
		marker := "  "
		if i == e.Line {
			marker = "> "
		}
		b.WriteString(fmt.Sprintf("%s%2d | %s\n", marker, i, lines[i-1]))
	}
	return b.String()
}

// NewFileError creates a FileError.
func NewFileError(file string, line int, message string) *FileError {
	return &FileError{File: file, Line: line, Message: message}
}

// WithHint adds a suggestion to the error.
func (e *FileError) WithHint(hint string) *FileError {
	e.Hint = hint
	return e
}

var yamlLineRe = regexp.MustCompile(`line (\d+):\s*(.*)`)

// FromYAMLError converts a yaml.v3 decode error into a FileError, pulling the
// line number out of the message when there is one.
func FromYAMLError(file string, err error) *FileError {
	msg := strings.TrimPrefix(err.Error(), "yaml: ")
	if m := yamlLineRe.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return NewFileError(file, line, m[2])
	}
	return NewFileError(file, 0, msg)
}
