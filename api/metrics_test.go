package api

import (
	"errors"
	"net/http"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestRequestMetricsLogFields(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetFormatter(&log.JSONFormatter{})

	metrics := newRequestMetrics(logger, "/kanban/tasks/:taskId/move")
	metrics.start = metrics.start.Add(-50 * time.Millisecond)
	metrics.ObserveAuth(10 * time.Millisecond)
	metrics.ObserveStore(15 * time.Millisecond)

	metrics.Log(http.StatusOK, nil)

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("no log entry produced")
	}
	if entry.Message != "board.request.metrics" {
		t.Fatalf("message = %q", entry.Message)
	}
	if entry.Data["route"] != "/kanban/tasks/:taskId/move" {
		t.Fatalf("route = %v", entry.Data["route"])
	}
	if entry.Data["status"] != http.StatusOK {
		t.Fatalf("status = %v", entry.Data["status"])
	}
	total, ok := entry.Data["total_ms"].(float64)
	if !ok || total < 50 {
		t.Fatalf("total_ms = %v", entry.Data["total_ms"])
	}
	if entry.Data["auth_ms"].(float64) != 10 {
		t.Fatalf("auth_ms = %v", entry.Data["auth_ms"])
	}
	if entry.Data["store_ms"].(float64) != 15 {
		t.Fatalf("store_ms = %v", entry.Data["store_ms"])
	}
	if _, present := entry.Data["error_stage"]; present {
		t.Fatal("error_stage logged for a clean request")
	}
}

func TestRequestMetricsLogError(t *testing.T) {
	logger, hook := test.NewNullLogger()

	metrics := newRequestMetrics(logger, "/kanban/boards/:boardId")
	metrics.SetErrorStage("storage")
	metrics.Log(http.StatusConflict, errors.New("task was moved by someone else"))

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("no log entry produced")
	}
	if entry.Data["error_stage"] != "storage" {
		t.Fatalf("error_stage = %v", entry.Data["error_stage"])
	}
	if entry.Data["error"] != "task was moved by someone else" {
		t.Fatalf("error = %v", entry.Data["error"])
	}
}

func TestRequestMetricsIgnoresNonPositiveObservations(t *testing.T) {
	metrics := newRequestMetrics(nil, "/healthz")
	metrics.ObserveAuth(-time.Millisecond)
	metrics.ObserveStore(0)
	if metrics.authDuration != 0 || metrics.storeDuration != 0 {
		t.Fatal("non-positive durations recorded")
	}
	// Nil logger must not panic.
	metrics.Log(http.StatusOK, nil)
}
