package wifi

import (
	"strings"
	"testing"
)

func TestLoadBatches(t *testing.T) {
	input := `# fixture: two scans of the same network
[{"network":{"ssid":"HomeNet","bssid":"AA:BB:CC:DD:EE:FF"},"rssi":-55,"observed_at":"2025-06-01T12:00:00Z"}]

[{"network":{"ssid":"HomeNet","bssid":"AA:BB:CC:DD:EE:FF"},"rssi":-40,"observed_at":"2025-06-01T12:00:01Z"}]
`
	batches, err := LoadBatches(strings.NewReader(input))
	if err != nil {
		t.Fatalf("LoadBatches: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if batches[0][0].RSSI != -55 || batches[1][0].RSSI != -40 {
		t.Errorf("unexpected batch contents: %+v", batches)
	}
	if batches[0][0].Network.SSID != "HomeNet" {
		t.Errorf("unexpected network: %+v", batches[0][0].Network)
	}
}

func TestLoadBatchesRejectsBadJSON(t *testing.T) {
	_, err := LoadBatches(strings.NewReader("not json\n"))
	if err == nil {
		t.Fatal("expected parse error")
	}
}
