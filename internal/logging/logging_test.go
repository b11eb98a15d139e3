package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/config"
	log "github.com/sirupsen/logrus"
)

func TestSetupWritesToFile(t *testing.T) {
	prevLevel := log.GetLevel()
	prevOut := log.StandardLogger().Out
	t.Cleanup(func() {
		log.SetLevel(prevLevel)
		log.SetOutput(prevOut)
	})

	logPath := filepath.Join(t.TempDir(), "logs", "namebot.log")
	closer, err := Setup(config.LogConfig{Level: "debug", File: logPath})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}
	log.Debug("hello from test")
	if errClose := closer.Close(); errClose != nil {
		t.Fatalf("close: %v", errClose)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Fatalf("expected log line in file, got %q", string(data))
	}
}

func TestSetupUnknownLevelFallsBack(t *testing.T) {
	prevLevel := log.GetLevel()
	prevOut := log.StandardLogger().Out
	t.Cleanup(func() {
		log.SetLevel(prevLevel)
		log.SetOutput(prevOut)
	})

	reader, writer, errPipe := os.Pipe()
	if errPipe != nil {
		t.Fatalf("pipe: %v", errPipe)
	}
	prevStdout := os.Stdout
	os.Stdout = writer
	closer, err := Setup(config.LogConfig{Level: "chatty"})
	os.Stdout = prevStdout
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer func() { _ = closer.Close() }()
	if errClose := writer.Close(); errClose != nil {
		t.Fatalf("close pipe: %v", errClose)
	}
	out, errRead := io.ReadAll(reader)
	if errRead != nil {
		t.Fatalf("read pipe: %v", errRead)
	}

	if log.GetLevel() != log.InfoLevel {
		t.Fatalf("expected info level, got %s", log.GetLevel())
	}
	if !strings.Contains(string(out), `unknown level \"chatty\"`) {
		t.Fatalf("expected unknown level warning on stdout, got %q", string(out))
	}
}
