package logging

import (
	"log"
	"os"
)

// Logger is a simple logger that writes to the console: each line is the
// level, the message, then the key-value args separated by spaces.
type Logger struct {
	*log.Logger
}

// NewLogger creates a new Logger.
func NewLogger() *Logger {
	return &Logger{
		Logger: log.New(os.Stdout, "", log.LstdFlags),
	}
}

// Info logs an informational message.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.Println(append([]interface{}{"INFO: " + msg}, args...)...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.Println(append([]interface{}{"ERROR: " + msg}, args...)...)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.Println(append([]interface{}{"DEBUG: " + msg}, args...)...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.Println(append([]interface{}{"WARN: " + msg}, args...)...)
}
