package logger

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
)

// Logger writes colored, category-tagged lines to stdout and mirrors them to
// an optional log file (plain text, no color codes).
type Logger struct {
	file *os.File

	info  *color.Color
	warn  *color.Color
	err   *color.Color
	debug *color.Color
	fatal *color.Color
}

func NewLogger() *Logger {
	l := &Logger{
		info:  color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		err:   color.New(color.FgRed),
		debug: color.New(color.FgCyan),
		fatal: color.New(color.FgRed, color.Bold),
	}

	if path := os.Getenv("LOG_FILE"); path != "" {
		f, ferr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if ferr == nil {
			l.file = f
		}
	}

	return l
}

func (l *Logger) Close() {
	if l.file != nil {
		l.file.Close()
	}
}

func (l *Logger) write(c *color.Color, level, category, msg string) {
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	line := fmt.Sprintf("[%s] %-5s [%s] %s", ts, level, category, msg)
	c.Fprintln(os.Stdout, line)
	if l.file != nil {
		fmt.Fprintln(l.file, line)
	}
}

func (l *Logger) Info(category, msg string)  { l.write(l.info, "INFO", category, msg) }
func (l *Logger) Warn(category, msg string)  { l.write(l.warn, "WARN", category, msg) }
func (l *Logger) Error(category, msg string) { l.write(l.err, "ERROR", category, msg) }

func (l *Logger) Debug(category, msg string) {
	if os.Getenv("LOG_LEVEL") == "debug" {
		l.write(l.debug, "DEBUG", category, msg)
	}
}

func (l *Logger) Fatal(category, msg string) {
	l.write(l.fatal, "FATAL", category, msg)
	l.Close()
	os.Exit(1)
}

// Category helpers keep call sites one-liners.

func (l *Logger) LogDatabase(operation, db, msg string) {
	l.Info("DATABASE", fmt.Sprintf("[%s:%s] %s", db, operation, msg))
}

func (l *Logger) LogKafka(action, topic, msg string) {
	l.Info("KAFKA", fmt.Sprintf("[%s:%s] %s", topic, action, msg))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.Info("API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogProcess(stage, msg string) {
	l.Info("PROCESS", fmt.Sprintf("[%s] %s", stage, msg))
}

func (l *Logger) LogSecurity(event, msg string) {
	l.Warn("SECURITY", fmt.Sprintf("[%s] %s", event, msg))
}

func (l *Logger) LogScheduler(action, key, msg string) {
	l.Info("SCHEDULER", fmt.Sprintf("[%s:%s] %s", action, key, msg))
}

func (l *Logger) LogOrder(action, orderID, msg string) {
	l.Info("ORDER", fmt.Sprintf("[%s:%s] %s", action, orderID, msg))
}

func (l *Logger) LogBooking(action, reservationID, msg string) {
	l.Info("BOOKING", fmt.Sprintf("[%s:%s] %s", action, reservationID, msg))
}
