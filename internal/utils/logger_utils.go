package utils

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// syncWriter wraps an io.Writer with synchronization to ensure thread-safe writes.
type syncWriter struct {
	mu     sync.Mutex
	writer io.Writer
}

func (sw *syncWriter) Write(p []byte) (n int, err error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.writer.Write(p)
}

// flushWriter wraps a buffered writer and flushes after each write, so log
// entries reach the file immediately instead of sitting in the bufio
// buffer. Not safe for concurrent use by itself; always wrap in syncWriter.
type flushWriter struct {
	file   *os.File
	writer *bufio.Writer
}

func newFlushWriter(file *os.File) *flushWriter {
	return &flushWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}
}

func (fw *flushWriter) Write(p []byte) (n int, err error) {
	n, err = fw.writer.Write(p)
	if err != nil {
		return n, err
	}
	return n, fw.writer.Flush()
}

var (
	loggerFileMu sync.Mutex
	loggerFile   *os.File
)

// SetupLogger configures logrus's level, formatter, and (optionally) a file
// output alongside stdout. Calling it again closes the previously opened log
// file before opening the new one.
func SetupLogger(level, format string, enableFile bool, filePath string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warn("Invalid log level, using info")
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)

	if format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	CloseLogger()

	if !enableFile {
		logrus.SetOutput(os.Stdout)
		return
	}

	logDir := filepath.Dir(filePath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		logrus.Warnf("Failed to create log directory: %v", err)
		return
	}
	logFile, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		logrus.Warnf("Failed to open log file: %v", err)
		return
	}

	loggerFileMu.Lock()
	loggerFile = logFile
	loggerFileMu.Unlock()

	var fileWriter io.Writer
	if parsed == logrus.DebugLevel || parsed == logrus.TraceLevel {
		fileWriter = newFlushWriter(logFile)
	} else {
		fileWriter = logFile
	}
	logrus.SetOutput(&syncWriter{writer: io.MultiWriter(os.Stdout, fileWriter)})
}

// CloseLogger closes any file opened by a previous SetupLogger call and
// resets output to stdout. Safe to call when no file is open.
func CloseLogger() {
	loggerFileMu.Lock()
	defer loggerFileMu.Unlock()
	if loggerFile == nil {
		return
	}
	_ = loggerFile.Close()
	loggerFile = nil
	logrus.SetOutput(os.Stdout)
}
