package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
)

// ANSI styles used by Format.
const (
	styleReset = "\033[0m"
	styleAlert = "\033[1;31m"
	styleName  = "\033[36m"
	styleMuted = "\033[90m"
)

var useColor = true

// SetColor turns ANSI styling of formatted errors on or off.
func SetColor(enabled bool) {
	useColor = enabled
}

func paint(style, text string) string {
	if !useColor || text == "" {
		return text
	}
	return style + text + styleReset
}

// Format renders e for a terminal: a header with code and message, then
// the key and field involved, the detail, the cause and a hint, each when
// present.
func (e *SyncError) Format() string {
	var b strings.Builder

	header := "ERROR"
	if e.Code != "" {
		header += " " + e.Code
	}
	fmt.Fprintf(&b, "\n%s %s\n\n", paint(styleAlert, header+":"), e.Message)

	var where []string
	if e.Key != "" {
		where = append(where, "key "+paint(styleName, e.Key))
	}
	if e.Field != "" {
		where = append(where, "field "+paint(styleName, e.Field))
	}
	if len(where) > 0 {
		fmt.Fprintf(&b, "  %s\n\n", strings.Join(where, "  "))
	}

	if lines := wrap(e.Detail, 70); len(lines) > 0 {
		for _, line := range lines {
			fmt.Fprintf(&b, "  %s\n", line)
		}
		b.WriteString("\n")
	}
	if e.Wrapped != nil {
		fmt.Fprintf(&b, "  %s %s\n\n", paint(styleMuted, "Cause:"), e.Wrapped)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "  %s %s\n\n", paint(styleName, "Hint:"), e.Suggestion)
	}
	return b.String()
}

// FormatCompact returns e on one line, for warnings.
func (e *SyncError) FormatCompact() string {
	s := e.Message
	if e.Code != "" {
		s = e.Code + ": " + s
	}
	if e.Key != "" {
		s += " [key=" + e.Key + "]"
	}
	if e.Field != "" {
		s += " [field=" + e.Field + "]"
	}
	return s
}

type jsonError struct {
	Code       string   `json:"code,omitempty"`
	Category   Category `json:"category"`
	Message    string   `json:"message"`
	Detail     string   `json:"detail,omitempty"`
	Key        string   `json:"key,omitempty"`
	Field      string   `json:"field,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
	Cause      string   `json:"cause,omitempty"`
}

// FormatJSON returns e as a single-line JSON object.
func (e *SyncError) FormatJSON() string {
	out := jsonError{
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Key:        e.Key,
		Field:      e.Field,
		Suggestion: e.Suggestion,
	}
	if e.Wrapped != nil {
		out.Cause = e.Wrapped.Error()
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf(`{"message":%q}`, e.Message)
	}
	return string(data)
}

// wrap breaks text into lines of at most width bytes, splitting on
// whitespace. A single word longer than width gets its own line.
func wrap(text string, width int) []string {
	var lines []string
	line := ""
	for _, word := range strings.Fields(text) {
		switch {
		case line == "":
			line = word
		case len(line)+1+len(word) > width:
			lines = append(lines, line)
			line = word
		default:
			line += " " + word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// PrintError writes err to w, formatted when it is a SyncError.
func PrintError(w io.Writer, err error) {
	var se *SyncError
	if stderrors.As(err, &se) {
		fmt.Fprint(w, se.Format())
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", paint(styleAlert, "ERROR:"), err)
}
