package broker

import (
	"encoding/json"
	"testing"
)

func TestMarshalUnmarshal_RequestFrame(t *testing.T) {
	params, _ := json.Marshal(map[string]string{"path": "/data/adb/.mount_mode"})
	orig := Frame{
		Type:   FrameTypeRequest,
		ID:     "req-1",
		Method: MethodReadFile,
		Params: params,
	}

	data, err := MarshalFrame(orig)
	if err != nil {
		t.Fatalf("MarshalFrame: %v", err)
	}

	got, err := UnmarshalFrame(data)
	if err != nil {
		t.Fatalf("UnmarshalFrame: %v", err)
	}

	if got.Type != FrameTypeRequest {
		t.Fatalf("expected type %q, got %q", FrameTypeRequest, got.Type)
	}
	if got.ID != "req-1" {
		t.Fatalf("expected id %q, got %q", "req-1", got.ID)
	}
	if got.Method != MethodReadFile {
		t.Fatalf("expected method %q, got %q", MethodReadFile, got.Method)
	}

	var p map[string]string
	if err := json.Unmarshal(got.Params, &p); err != nil {
		t.Fatalf("unmarshal params: %v", err)
	}
	if p["path"] != "/data/adb/.mount_mode" {
		t.Fatalf("unexpected params.path %q", p["path"])
	}
}

func TestNewEventFrame(t *testing.T) {
	f, err := NewEventFrame("stage.completed", map[string]string{"stage": "service"})
	if err != nil {
		t.Fatalf("NewEventFrame: %v", err)
	}
	if f.Type != FrameTypeEvent {
		t.Fatalf("expected type %q, got %q", FrameTypeEvent, f.Type)
	}
	if f.Event != "stage.completed" {
		t.Fatalf("expected event %q, got %q", "stage.completed", f.Event)
	}

	var p map[string]string
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p["stage"] != "service" {
		t.Fatalf("expected payload.stage %q, got %q", "service", p["stage"])
	}
}

func TestNewResponseFrame_OK(t *testing.T) {
	f, err := NewResponseFrame("req-5", true, map[string]bool{"exists": true}, "")
	if err != nil {
		t.Fatalf("NewResponseFrame: %v", err)
	}
	if f.Type != FrameTypeResponse {
		t.Fatalf("expected type %q, got %q", FrameTypeResponse, f.Type)
	}
	if f.ID != "req-5" {
		t.Fatalf("expected id %q, got %q", "req-5", f.ID)
	}
	if f.OK == nil || !*f.OK {
		t.Fatal("expected ok=true")
	}
	if f.Error != "" {
		t.Fatalf("expected no error, got %q", f.Error)
	}
}

func TestNewResponseFrame_Error(t *testing.T) {
	f, err := NewResponseFrame("req-6", false, nil, "path escapes root")
	if err != nil {
		t.Fatalf("NewResponseFrame: %v", err)
	}
	if f.OK == nil || *f.OK {
		t.Fatal("expected ok=false")
	}
	if f.Error != "path escapes root" {
		t.Fatalf("expected error %q, got %q", "path escapes root", f.Error)
	}
	if f.Payload != nil {
		t.Fatalf("expected nil payload, got %s", string(f.Payload))
	}
}
