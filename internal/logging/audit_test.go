package logging

import (
	"strings"
	"testing"
)

func TestAuditEventLifecycle(t *testing.T) {
	event := NewAuditEvent(ThresholdCrossing, "detect", StatusSuccess).
		WithUser("bob@example.org").
		WithDimension("size").
		WithSeverity(SeverityInfo).
		WithDetails(map[string]interface{}{"threshold": 0.5})

	if event.User != "bob@example.org" || event.Dimension != "size" {
		t.Fatalf("expected user and dimension to be set")
	}
	if event.Severity != SeverityInfo {
		t.Fatalf("expected severity to be set")
	}

	event.WithError("boom")
	if event.Status != StatusFailure {
		t.Fatalf("expected status to be failure")
	}
	if event.ErrorMessage != "boom" {
		t.Fatalf("expected error message")
	}

	jsonStr := event.ToJSON()
	if !strings.Contains(jsonStr, "detect") {
		t.Fatalf("expected action in JSON output")
	}

	parsed, err := ParseAuditEvent(jsonStr)
	if err != nil {
		t.Fatalf("failed to parse audit event: %v", err)
	}
	if parsed.EventType != ThresholdCrossing {
		t.Fatalf("expected event type to round-trip")
	}
	if parsed.User != "bob@example.org" {
		t.Fatalf("expected user to round-trip")
	}
}

func TestParseAuditEventInvalid(t *testing.T) {
	if _, err := ParseAuditEvent("{not json"); err == nil {
		t.Fatalf("expected parse error")
	}
}
