package logging

// Structured logging for the fieldsim servers

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelVerbose
	LogLevelDebug
)

// ParseLevel maps a config string to a LogLevel. Unknown values fall
// back to info.
func ParseLevel(s string) LogLevel {
	switch s {
	case "silent":
		return LogLevelSilent
	case "error":
		return LogLevelError
	case "verbose":
		return LogLevelVerbose
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelInfo
	}
}

// Logger provides structured logging
type Logger struct {
	mu      sync.Mutex
	level   LogLevel
	file    *os.File
	fileLog *log.Logger
	stdout  *log.Logger
	stderr  *log.Logger
}

// NewLogger creates a new logger
func NewLogger(level LogLevel, logFile string) (*Logger, error) {
	l := &Logger{
		level:  level,
		stdout: log.New(os.Stdout, "", log.LstdFlags),
		stderr: log.New(os.Stderr, "", log.LstdFlags),
	}

	// Open log file if specified
	if logFile != "" {
		file, err := os.Create(logFile)
		if err != nil {
			return nil, fmt.Errorf("create log file: %w", err)
		}
		l.file = file
		l.fileLog = log.New(file, "", log.LstdFlags)
	}

	return l, nil
}

// Close closes the logger and flushes all data
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	if l.level >= LogLevelError {
		l.write(fmt.Sprintf("ERROR: "+format, v...), true)
	}
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	if l.level >= LogLevelInfo {
		l.write(fmt.Sprintf("INFO: "+format, v...), false)
	}
}

// Verbose logs a verbose message
func (l *Logger) Verbose(format string, v ...interface{}) {
	if l.level >= LogLevelVerbose {
		l.write(fmt.Sprintf("VERBOSE: "+format, v...), false)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.level >= LogLevelDebug {
		l.write(fmt.Sprintf("DEBUG: "+format, v...), false)
	}
}

// write writes a message to the appropriate outputs
func (l *Logger) write(msg string, isError bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Always write to log file if available
	if l.fileLog != nil {
		l.fileLog.Println(msg)
	}

	if isError {
		l.stderr.Println(msg)
	} else {
		l.stdout.Println(msg)
	}
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// LogExchange logs one request/response exchange. Successful exchanges
// log at verbose so steady-state polling does not flood the output;
// protocol errors log at info.
func (l *Logger) LogExchange(proto, remote, operation string, endCode uint16, points int) {
	if endCode == 0 {
		l.Verbose("%s %s: %s OK (%d points)", proto, remote, operation, points)
	} else {
		l.Info("%s %s: %s end code 0x%04X", proto, remote, operation, endCode)
	}
}

// LogHex logs hex data (for debug level)
func (l *Logger) LogHex(label string, data []byte) {
	if l.level >= LogLevelDebug {
		hexStr := fmt.Sprintf("%x", data)
		formatted := ""
		for i := 0; i < len(hexStr); i += 2 {
			if i > 0 {
				formatted += " "
			}
			formatted += hexStr[i : i+2]
		}
		l.Debug("%s: %s", label, formatted)
	}
}
