package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewAppliesLevelAndServiceField(t *testing.T) {
	log := New(Config{Service: "marketplace", Level: "debug", Format: "json"})

	var buf bytes.Buffer
	log.Logger.SetOutput(&buf)

	log.WithField("request_id", "r-1").Debug("escrow debited")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if line["service"] != "marketplace" {
		t.Errorf("service field = %v, want marketplace", line["service"])
	}
	if line["request_id"] != "r-1" {
		t.Errorf("request_id field = %v, want r-1", line["request_id"])
	}
	if line["msg"] != "escrow debited" {
		t.Errorf("msg = %v, want escrow debited", line["msg"])
	}
}

func TestNewFallsBackOnUnknownLevel(t *testing.T) {
	log := New(Config{Service: "web", Level: "chatty", Format: "json"})

	var buf bytes.Buffer
	log.Logger.SetOutput(&buf)

	log.Debug("should be suppressed at info level")
	if buf.Len() != 0 {
		t.Errorf("debug line emitted despite info fallback: %s", buf.String())
	}

	log.Info("visible")
	if buf.Len() == 0 {
		t.Error("info line not emitted")
	}
}

func TestNewDefaultNamesBlankService(t *testing.T) {
	log := NewDefault("")

	var buf bytes.Buffer
	log.Logger.SetOutput(&buf)

	log.Info("hello")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if line["service"] != "karmic" {
		t.Errorf("service field = %v, want karmic", line["service"])
	}
}

func TestWithComponentAddsField(t *testing.T) {
	log := NewDefault("runtime")

	var buf bytes.Buffer
	log.Logger.SetOutput(&buf)

	log.WithComponent("cron").Info("sweep finished")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if line["component"] != "cron" {
		t.Errorf("component field = %v, want cron", line["component"])
	}
}
