package health

import (
	"errors"
	"testing"
)

func TestUpdateComponentStatusAggregatesHealthy(t *testing.T) {
	h := New(Config{})

	h.UpdateComponentStatus("websocket", true, "connected")
	if !h.Status().Healthy {
		t.Fatalf("expected healthy with one healthy component")
	}

	h.UpdateComponentStatus("mqtt", false, "dial timeout")
	if h.Status().Healthy {
		t.Fatalf("expected unhealthy once any component reports unhealthy")
	}

	h.UpdateComponentStatus("mqtt", true, "reconnected")
	if !h.Status().Healthy {
		t.Fatalf("expected healthy again once the failing component recovers")
	}
}

func TestRecordMessageAndError(t *testing.T) {
	h := New(Config{})

	h.RecordMessage()
	h.RecordMessage()
	h.RecordError(errors.New("publish failed"))

	status := h.Status()
	if status.MessagesProcessed != 2 {
		t.Fatalf("expected 2 messages processed, got %d", status.MessagesProcessed)
	}
	if status.ErrorCount != 1 {
		t.Fatalf("expected 1 error recorded, got %d", status.ErrorCount)
	}
	if status.LastError != "publish failed" {
		t.Fatalf("unexpected last error: %q", status.LastError)
	}
}

func TestStatusReturnsIndependentCopy(t *testing.T) {
	h := New(Config{})
	h.UpdateComponentStatus("websocket", true, "ok")

	snap := h.Status()
	snap.ComponentStatus["websocket"] = ComponentStatus{Name: "websocket", Healthy: false}

	if !h.Status().ComponentStatus["websocket"].Healthy {
		t.Fatalf("mutating a returned snapshot must not affect internal state")
	}
}
