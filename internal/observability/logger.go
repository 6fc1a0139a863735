package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Log formats
const (
	FormatJSON = "json"
	FormatText = "text"
)

type Logger struct {
	base   *log.Logger
	format string
	now    func() time.Time
}

func NewLogger(format string) *Logger {
	return NewLoggerTo(os.Stdout, format)
}

func NewLoggerTo(w io.Writer, format string) *Logger {
	if format != FormatText {
		format = FormatJSON
	}
	return &Logger{base: log.New(w, "", 0), format: format, now: time.Now}
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return NewLoggerTo(io.Discard, FormatJSON)
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.write("info", message, fields)
}

func (l *Logger) Warn(message string, fields map[string]any) {
	l.write("warn", message, fields)
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.write("error", message, fields)
}

func (l *Logger) write(level, message string, fields map[string]any) {
	if l.format == FormatText {
		l.base.Println(l.text(level, message, fields))
		return
	}

	payload := map[string]any{
		"timestamp": l.now().UTC().Format(time.RFC3339Nano),
		"level":     level,
		"message":   message,
	}
	for k, v := range fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		payload[k] = v
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		l.base.Println(`{"level":"error","message":"failed to encode log"}`)
		return
	}

	l.base.Println(string(encoded))
}

var levelColors = map[string]*color.Color{
	"info":  color.New(color.FgBlue),
	"warn":  color.New(color.FgYellow),
	"error": color.New(color.FgRed),
}

func (l *Logger) text(level, message string, fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(color.HiBlackString("[%s]", l.now().Format("15:04:05")))
	b.WriteString(" ")
	b.WriteString(levelColors[level].Sprintf("%-5s %s", strings.ToUpper(level), message))
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", color.CyanString(k), fields[k])
	}
	return b.String()
}
