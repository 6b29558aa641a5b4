package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/lumberjack.v2"
)

// LogLevel represents logging levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns string representation of log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string log level
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Options configures a Logger. The zero value logs to stdout at info level.
type Options struct {
	Level      string
	File       string
	MaxSize    int  // megabytes
	MaxBackups int  // number of rotated files kept
	MaxAge     int  // days
	Compress   bool // compress rotated files
	Console    bool
	Structured bool
}

// Logger provides leveled logging with optional file rotation. Subsystems
// take a Logger sink at construction; passing nil selects the process-wide
// default, so there is no global log destination to mutate at runtime.
type Logger struct {
	level         LogLevel
	fileLogger    *log.Logger
	consoleLogger *log.Logger
	structured    bool
	rotatingFile  *lumberjack.Logger
}

// NewLogger creates a new logger from options
func NewLogger(opts Options) (*Logger, error) {
	logger := &Logger{
		level:      ParseLogLevel(opts.Level),
		structured: opts.Structured,
	}

	if opts.File != "" {
		logDir := filepath.Dir(opts.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		logger.rotatingFile = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAge,
			Compress:   opts.Compress,
		}
		logger.fileLogger = log.New(logger.rotatingFile, "", 0)
	}

	if opts.Console || logger.fileLogger == nil {
		logger.consoleLogger = log.New(os.Stdout, "", 0)
	}

	return logger, nil
}

// Close closes the logger and any open files
func (l *Logger) Close() error {
	if l.rotatingFile != nil {
		return l.rotatingFile.Close()
	}
	return nil
}

func (l *Logger) shouldLog(level LogLevel) bool {
	return level >= l.level
}

// formatMessage formats a log message
func (l *Logger) formatMessage(level LogLevel, component, message string, fields map[string]interface{}) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")

	if l.structured {
		fieldsStr := ""
		if len(fields) > 0 {
			var parts []string
			for k, v := range fields {
				parts = append(parts, fmt.Sprintf(`"%s":"%v"`, k, v))
			}
			fieldsStr = fmt.Sprintf(" {%s}", strings.Join(parts, ","))
		}
		return fmt.Sprintf(`{"time":"%s","level":"%s","component":"%s","message":"%s"%s}`,
			timestamp, level.String(), component, message, fieldsStr)
	}

	fieldsStr := ""
	if len(fields) > 0 {
		var parts []string
		for k, v := range fields {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
		fieldsStr = fmt.Sprintf(" [%s]", strings.Join(parts, " "))
	}
	return fmt.Sprintf("%s [%s] %s: %s%s",
		timestamp, level.String(), component, message, fieldsStr)
}

func (l *Logger) log(level LogLevel, component, message string, fields map[string]interface{}) {
	if !l.shouldLog(level) {
		return
	}

	formatted := l.formatMessage(level, component, message, fields)

	if l.fileLogger != nil {
		l.fileLogger.Println(formatted)
	}
	if l.consoleLogger != nil {
		l.consoleLogger.Println(formatted)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(component, message string, fields ...map[string]interface{}) {
	var f map[string]interface{}
	if len(fields) > 0 {
		f = fields[0]
	}
	l.log(LevelDebug, component, message, f)
}

// Info logs an info message
func (l *Logger) Info(component, message string, fields ...map[string]interface{}) {
	var f map[string]interface{}
	if len(fields) > 0 {
		f = fields[0]
	}
	l.log(LevelInfo, component, message, f)
}

// Warn logs a warning message
func (l *Logger) Warn(component, message string, fields ...map[string]interface{}) {
	var f map[string]interface{}
	if len(fields) > 0 {
		f = fields[0]
	}
	l.log(LevelWarn, component, message, f)
}

// Error logs an error message
func (l *Logger) Error(component, message string, fields ...map[string]interface{}) {
	var f map[string]interface{}
	if len(fields) > 0 {
		f = fields[0]
	}
	l.log(LevelError, component, message, f)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(component, format string, args ...interface{}) {
	l.Debug(component, fmt.Sprintf(format, args...))
}

// Infof logs a formatted info message
func (l *Logger) Infof(component, format string, args ...interface{}) {
	l.Info(component, fmt.Sprintf(format, args...))
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(component, format string, args ...interface{}) {
	l.Warn(component, fmt.Sprintf(format, args...))
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(component, format string, args ...interface{}) {
	l.Error(component, fmt.Sprintf(format, args...))
}

// Global logger instance
var globalLogger *Logger

// InitGlobalLogger initializes the process-wide default logger. Call it once
// at startup, before any modem instances are running.
func InitGlobalLogger(opts Options) error {
	logger, err := NewLogger(opts)
	if err != nil {
		return err
	}
	globalLogger = logger
	return nil
}

// GetGlobalLogger returns the process-wide default logger
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		globalLogger = &Logger{
			level:         LevelInfo,
			consoleLogger: log.New(os.Stdout, "", 0),
		}
	}
	return globalLogger
}

// CloseGlobalLogger closes the process-wide default logger
func CloseGlobalLogger() error {
	if globalLogger != nil {
		return globalLogger.Close()
	}
	return nil
}

// Convenience functions for the default logger
func Debug(component, message string, fields ...map[string]interface{}) {
	GetGlobalLogger().Debug(component, message, fields...)
}

func Info(component, message string, fields ...map[string]interface{}) {
	GetGlobalLogger().Info(component, message, fields...)
}

func Warn(component, message string, fields ...map[string]interface{}) {
	GetGlobalLogger().Warn(component, message, fields...)
}

func Error(component, message string, fields ...map[string]interface{}) {
	GetGlobalLogger().Error(component, message, fields...)
}

func Debugf(component, format string, args ...interface{}) {
	GetGlobalLogger().Debugf(component, format, args...)
}

func Infof(component, format string, args ...interface{}) {
	GetGlobalLogger().Infof(component, format, args...)
}

func Warnf(component, format string, args ...interface{}) {
	GetGlobalLogger().Warnf(component, format, args...)
}

func Errorf(component, format string, args ...interface{}) {
	GetGlobalLogger().Errorf(component, format, args...)
}
