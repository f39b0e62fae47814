package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	// Logger is the general-purpose logger behind Debug and Warn.
	Logger *logrus.Logger
	// InfoLogger carries informational and notice-level output.
	InfoLogger *logrus.Logger
	// ErrorLogger carries errors and fatal conditions.
	ErrorLogger *logrus.Logger
)

// LogConfig controls where the loggers write and at what level.
type LogConfig struct {
	ErrorLogPath string
	InfoLogPath  string
	LogLevel     string
}

// CustomFormatter renders a single-line, caller-annotated record.
type CustomFormatter struct {
	TimestampFormat string
}

func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format("15:04:05 MST 2006/01/02")
	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}
	caller := getCaller()
	return []byte(fmt.Sprintf("[%s] [%s] (%s) %s\n", timestamp, level, caller, entry.Message)), nil
}

func getCaller() string {
	for i := 2; i < 20; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.Contains(file, "/logrus/") ||
			strings.Contains(file, "logger/logger.go") ||
			strings.Contains(file, "sirupsen") ||
			strings.Contains(file, "/entry.go") {
			continue
		}
		funcName := runtime.FuncForPC(pc).Name()
		return fmt.Sprintf("%s:%s:%d", filepath.Base(file), funcName, line)
	}
	return "unknown:unknown:0"
}

func parseLogLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// InitLogger configures the package-level loggers. Safe to call more than
// once; the last call wins.
func init() {
	_ = InitLogger(LogConfig{LogLevel: "info"})
}

func InitLogger(config LogConfig) error {
	formatter := &CustomFormatter{TimestampFormat: "15:04:05 MST 2006/01/02"}

	Logger = logrus.New()
	Logger.SetFormatter(formatter)
	Logger.SetLevel(parseLogLevel(config.LogLevel))

	InfoLogger = logrus.New()
	InfoLogger.SetFormatter(formatter)
	InfoLogger.SetLevel(parseLogLevel(config.LogLevel))

	ErrorLogger = logrus.New()
	ErrorLogger.SetFormatter(formatter)
	ErrorLogger.SetLevel(parseLogLevel(config.LogLevel))

	if config.InfoLogPath != "" {
		f, err := openLogFile(config.InfoLogPath)
		if err != nil {
			InfoLogger.SetOutput(os.Stdout)
			InfoLogger.Warnf("failed to open info log file %s, falling back to stdout: %v", config.InfoLogPath, err)
		} else {
			InfoLogger.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	} else {
		InfoLogger.SetOutput(os.Stdout)
	}

	if config.ErrorLogPath != "" {
		f, err := openLogFile(config.ErrorLogPath)
		if err != nil {
			ErrorLogger.SetOutput(os.Stderr)
			ErrorLogger.Warnf("failed to open error log file %s, falling back to stderr: %v", config.ErrorLogPath, err)
		} else {
			ErrorLogger.SetOutput(io.MultiWriter(os.Stderr, f))
		}
	} else {
		ErrorLogger.SetOutput(os.Stderr)
	}

	Logger.SetOutput(InfoLogger.Out)
	return nil
}

func openLogFile(logPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
}

func Info(args ...interface{}) {
	if InfoLogger != nil {
		InfoLogger.Info(args...)
	}
}

func Infof(format string, args ...interface{}) {
	if InfoLogger != nil {
		InfoLogger.Infof(format, args...)
	}
}

func Debug(args ...interface{}) {
	if Logger != nil {
		Logger.Debug(args...)
	}
}

func Debugf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Debugf(format, args...)
	}
}

func Warn(args ...interface{}) {
	if Logger != nil {
		Logger.Warn(args...)
	}
}

func Warnf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Warnf(format, args...)
	}
}

func Error(args ...interface{}) {
	if ErrorLogger != nil {
		ErrorLogger.Error(args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if ErrorLogger != nil {
		ErrorLogger.Errorf(format, args...)
	}
}

func Fatal(args ...interface{}) {
	if ErrorLogger != nil {
		ErrorLogger.Fatal(args...)
	}
}

func Fatalf(format string, args ...interface{}) {
	if ErrorLogger != nil {
		ErrorLogger.Fatalf(format, args...)
	}
}
