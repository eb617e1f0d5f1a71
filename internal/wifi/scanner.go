package wifi

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/wallsense-data/wallsense/internal/monitoring"
)

// Scanner yields one batch of raw samples per call. An empty batch is not an
// error; it means no networks are currently visible.
type Scanner interface {
	Scan(ctx context.Context) ([]RawSample, error)
}

// commandRunner abstracts subprocess execution so scanner parsing can be
// tested without a wireless adapter.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// NmcliScanner scans visible networks via the NetworkManager CLI.
type NmcliScanner struct {
	run     commandRunner
	timeout time.Duration
}

// NewNmcliScanner returns a scanner backed by `nmcli dev wifi list`.
func NewNmcliScanner() *NmcliScanner {
	return &NmcliScanner{run: execRunner, timeout: 10 * time.Second}
}

// Scan invokes nmcli with terse colon-separated output and rescan enabled.
func (s *NmcliScanner) Scan(ctx context.Context) ([]RawSample, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.run(ctx, "nmcli", "-t", "-f", "SSID,BSSID,SIGNAL,CHAN", "dev", "wifi", "list", "--rescan", "yes")
	if err != nil {
		return nil, fmt.Errorf("nmcli scan failed: %w", err)
	}
	return ParseNmcliOutput(string(out), time.Now()), nil
}

// ParseNmcliOutput parses `nmcli -t -f SSID,BSSID,SIGNAL,CHAN` output.
// nmcli terse mode backslash-escapes the colons inside BSSIDs, so fields are
// split on unescaped colons only. Lines that do not parse are counted and
// skipped rather than failing the batch.
func ParseNmcliOutput(out string, observedAt time.Time) []RawSample {
	invalid := monitoring.Counter("scanner_invalid_lines")

	var samples []RawSample
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		fields := splitTerseFields(line)
		if len(fields) < 3 {
			invalid.Add(1)
			continue
		}

		ssid := strings.TrimSpace(fields[0])
		bssid := strings.ToUpper(strings.TrimSpace(fields[1]))
		signal, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			invalid.Add(1)
			continue
		}
		channel := 0
		if len(fields) > 3 {
			channel, _ = strconv.Atoi(strings.TrimSpace(fields[3]))
		}

		// Some nmcli versions report percent quality, others dBm.
		rssi := signal
		if rssi > 0 {
			rssi = PercentToDBm(rssi)
		}

		if !ValidSSID(ssid) || !ValidBSSID(bssid) {
			invalid.Add(1)
			continue
		}

		samples = append(samples, RawSample{
			Network:    NetworkID{SSID: ssid, BSSID: bssid},
			RSSI:       rssi,
			Channel:    channel,
			ObservedAt: observedAt,
		})
	}
	return samples
}

// splitTerseFields splits an nmcli terse line on unescaped colons and
// unescapes the `\:` sequences inside each field.
func splitTerseFields(line string) []string {
	var fields []string
	var b strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':':
			fields = append(fields, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	fields = append(fields, b.String())
	return fields
}
