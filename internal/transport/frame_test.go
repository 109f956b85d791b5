package transport

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/avolkov/geochat/internal/domain"
)

func TestDecodeServerFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		raw          string
		wantData     string
		wantComplete bool
	}{
		{"fragment", `{"data":"Hel"}`, "Hel", false},
		{"final fragment", `{"data":"lo","turn_complete":true}`, "lo", true},
		{"bare marker", `{"turn_complete":true}`, "", true},
		{"empty object", `{}`, "", false},
		{"malformed json falls back to literal text", `not json at all`, "not json at all", false},
		{"json scalar falls back to literal text", `"hello"`, `"hello"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := DecodeServerFrame([]byte(tt.raw))
			if frame.Data != tt.wantData {
				t.Errorf("Data = %q, want %q", frame.Data, tt.wantData)
			}
			if frame.TurnComplete != tt.wantComplete {
				t.Errorf("TurnComplete = %v, want %v", frame.TurnComplete, tt.wantComplete)
			}
		})
	}
}

func TestPayloadOmitsUnknownCoordinate(t *testing.T) {
	t.Parallel()

	data, err := NewPayload("find me pizza", nil).Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	raw := string(data)
	if strings.Contains(raw, `"lat"`) || strings.Contains(raw, `"lon"`) {
		t.Errorf("expected lat/lon keys absent, got %s", raw)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if decoded["mime_type"] != PayloadMimeType {
		t.Errorf("mime_type = %v, want %q", decoded["mime_type"], PayloadMimeType)
	}
	if decoded["data"] != "find me pizza" {
		t.Errorf("data = %v", decoded["data"])
	}
}

func TestPayloadCarriesKnownCoordinate(t *testing.T) {
	t.Parallel()

	coord := &domain.Coordinate{Lat: 52.52, Lon: 13.405}
	data, err := NewPayload("coffee nearby", coord).Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var decoded struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if decoded.Lat == nil || *decoded.Lat != 52.52 {
		t.Errorf("lat = %v, want 52.52", decoded.Lat)
	}
	if decoded.Lon == nil || *decoded.Lon != 13.405 {
		t.Errorf("lon = %v, want 13.405", decoded.Lon)
	}
}
