package event

import (
	"testing"
	"time"
)

func TestType_String(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      string
	}{
		{"issuance issued", TypeIssuanceIssued, "issuance.issued"},
		{"issuance voided", TypeIssuanceVoided, "issuance.voided"},
		{"preset updated", TypePresetUpdated, "preset.updated"},
		{"intent queued", TypeIntentQueued, "intent.queued"},
		{"intent synced", TypeIntentSynced, "intent.synced"},
		{"intent failed", TypeIntentFailed, "intent.failed"},
		{"outage toggled", TypeOutageToggled, "simulation.outage_toggled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.String(); got != tt.want {
				t.Errorf("Type.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestType_IsValid(t *testing.T) {
	for _, typ := range All() {
		if !typ.IsValid() {
			t.Errorf("Type(%q).IsValid() = false, want true", typ)
		}
	}

	invalid := []Type{"", "instance.created", "ISSUANCE.ISSUED"}
	for _, typ := range invalid {
		if typ.IsValid() {
			t.Errorf("Type(%q).IsValid() = true, want false", typ)
		}
	}
}

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{"voucher_type": "MEAL"}
	before := time.Now()

	evt := NewEvent(TypeIssuanceIssued, "42", "agent1", payload)

	if evt.ID == "" {
		t.Error("expected non-empty ID")
	}
	if evt.CorrelationID == "" {
		t.Error("expected non-empty CorrelationID")
	}
	if evt.Type != TypeIssuanceIssued {
		t.Errorf("Type = %v, want %v", evt.Type, TypeIssuanceIssued)
	}
	if evt.SubjectID != "42" || evt.Actor != "agent1" {
		t.Errorf("SubjectID/Actor = %q/%q", evt.SubjectID, evt.Actor)
	}
	if evt.Timestamp.Before(before) {
		t.Error("timestamp should not precede creation")
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	evt := NewEventWithCorrelation(TypeIntentSynced, "intent-1", "agent1", nil, "batch-9")
	if evt.CorrelationID != "batch-9" {
		t.Errorf("CorrelationID = %q, want %q", evt.CorrelationID, "batch-9")
	}
	if evt.ID == "batch-9" {
		t.Error("ID must not reuse the correlation id")
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeIssuanceVoided, "7", "super1", map[string]interface{}{"reason": "dup"})

	updated := original.WithPayload("voided_by", "super1")

	if _, ok := original.Payload["voided_by"]; ok {
		t.Error("original payload must not be modified")
	}
	if updated.GetPayloadString("voided_by") != "super1" {
		t.Error("updated payload missing new key")
	}
	if updated.GetPayloadString("reason") != "dup" {
		t.Error("updated payload lost existing key")
	}
	if updated.ID != original.ID {
		t.Error("WithPayload must keep the event id")
	}
}

func TestEvent_PayloadAccessors(t *testing.T) {
	evt := NewEvent(TypeIssuanceIssued, "1", "agent1", map[string]interface{}{
		"str":    "value",
		"int":    5,
		"int64":  int64(6),
		"float":  float64(7),
		"bool":   true,
		"wrong":  []string{"x"},
	})

	if got := evt.GetPayloadString("str"); got != "value" {
		t.Errorf("GetPayloadString = %q", got)
	}
	if got := evt.GetPayloadString("int"); got != "" {
		t.Errorf("GetPayloadString on int = %q, want empty", got)
	}
	if got := evt.GetPayloadInt("int"); got != 5 {
		t.Errorf("GetPayloadInt(int) = %d", got)
	}
	if got := evt.GetPayloadInt("int64"); got != 6 {
		t.Errorf("GetPayloadInt(int64) = %d", got)
	}
	if got := evt.GetPayloadInt("float"); got != 7 {
		t.Errorf("GetPayloadInt(float) = %d", got)
	}
	if got := evt.GetPayloadInt("missing"); got != 0 {
		t.Errorf("GetPayloadInt(missing) = %d", got)
	}
	if !evt.GetPayloadBool("bool") {
		t.Error("GetPayloadBool(bool) = false")
	}
	if evt.GetPayloadBool("wrong") {
		t.Error("GetPayloadBool(wrong) = true")
	}
}

func TestEvent_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		evt := NewEvent(TypeIntentQueued, "x", "agent1", nil)
		if seen[evt.ID] {
			t.Fatalf("duplicate event id %s", evt.ID)
		}
		seen[evt.ID] = true
	}
}
