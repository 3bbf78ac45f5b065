package logger_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/releasekit/releasekit/pkg/logger"
)

func TestCreateLogger(t *testing.T) {
	log := logger.CreateLogger("", "info")
	if log == nil {
		t.Fatal("expected logger to be created")
	}
}

func TestCreateLogger_Levels(t *testing.T) {
	tests := []struct {
		level   string
		message string
	}{
		{"debug", "debug message"},
		{"info", "info message"},
		{"warn", "warning message"},
		{"error", "error message"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.CreateLoggerWithOutput("", tt.level, &buf)

			// Log at different levels - just verify no panic
			log.Debug(tt.message)
			log.Info(tt.message)
			log.Warn(tt.message)
			log.Error(tt.message)

			output := buf.String()
			// At minimum, we should have some output for appropriate levels
			if tt.level != "error" && len(output) > 0 {
				// Output generated, that's good
				t.Logf("Level %s generated output: %d bytes", tt.level, len(output))
			}
		})
	}
}

func TestLogger_WithPackage(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "info", &buf)

	pkgLog := log.WithPackage("mcp-example")
	pkgLog.Info("syncing version")

	output := buf.String()
	if !strings.Contains(output, "mcp-example") {
		t.Error("expected package name in log output")
	}
}

func TestLogger_Success(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "info", &buf)

	log.Success("release completed")

	output := buf.String()
	if !strings.Contains(output, "release completed") {
		t.Error("expected success message in log output")
	}
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "info", &buf)

	log.Info("test message",
		logger.WithField("key1", "value1"),
		logger.WithField("key2", 42),
	)

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Error("expected message in log output")
	}
}

func TestLogger_MultiplePackages(t *testing.T) {
	var buf bytes.Buffer
	baseLog := logger.CreateLoggerWithOutput("", "info", &buf)

	server := baseLog.WithPackage("mcp-server")
	client := baseLog.WithPackage("mcp-client")

	server.Info("server message")
	client.Info("client message")

	output := buf.String()
	if !strings.Contains(output, "mcp-server") {
		t.Error("expected mcp-server package in output")
	}
	if !strings.Contains(output, "mcp-client") {
		t.Error("expected mcp-client package in output")
	}
}

func TestLogger_EmptyPackage(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "info", &buf)

	log.Info("no package message")

	output := buf.String()
	if !strings.Contains(output, "no package message") {
		t.Error("expected message in log output")
	}
}

func TestLogger_ErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "error", &buf)

	log.Debug("should not appear")
	log.Info("should not appear")
	log.Warn("should not appear")
	log.Error("should appear")

	output := buf.String()
	if strings.Contains(output, "should not appear") {
		t.Error("lower level logs should not appear with error level")
	}
	if !strings.Contains(output, "should appear") {
		t.Error("error level log should appear")
	}
}
