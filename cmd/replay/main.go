// Command replay runs recorded scan batches through a fresh detection
// pipeline and prints the motion events it produces. Useful for tuning the
// threshold and sensitivity against a captured walk-through.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/wallsense-data/wallsense/internal/config"
	"github.com/wallsense-data/wallsense/internal/engine"
	"github.com/wallsense-data/wallsense/internal/timeutil"
	"github.com/wallsense-data/wallsense/internal/wifi"
)

func main() {
	var batchFile string
	var configFile string
	var calibrateBatches int
	var sensitivity float64

	flag.StringVar(&batchFile, "batches", "", "JSONL file of scan batches (required)")
	flag.StringVar(&configFile, "config", "", "JSON config file (optional)")
	flag.IntVar(&calibrateBatches, "calibrate", 30, "number of leading batches to calibrate on")
	flag.Float64Var(&sensitivity, "sensitivity", 1.0, "detection sensitivity multiplier")
	flag.Parse()

	if batchFile == "" {
		log.Fatal("batches file must be provided")
	}

	batches, err := wifi.LoadBatchesFile(batchFile)
	if err != nil {
		log.Fatalf("load batches: %v", err)
	}
	if len(batches) <= calibrateBatches {
		log.Fatalf("need more than %d batches to replay, got %d", calibrateBatches, len(batches))
	}

	cfg := &config.Config{}
	if configFile != "" {
		cfg, err = config.Load(configFile)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	params := cfg.EngineParams()
	clock := timeutil.NewMockClock(time.Now().UTC())

	eng, err := engine.New(params, clock)
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}
	defer eng.Close()

	if err := eng.SetSensitivity(sensitivity); err != nil {
		log.Fatalf("invalid sensitivity: %v", err)
	}

	// replay is offline: the mock clock advances one sample interval per
	// batch, so zone decay behaves exactly as it would live
	if err := eng.Calibrate(time.Duration(calibrateBatches) * params.SampleInterval); err != nil {
		log.Fatalf("start calibration: %v", err)
	}
	for _, batch := range batches[:calibrateBatches] {
		eng.Tick(stamp(batch, clock.Now()))
		clock.Advance(params.SampleInterval)
	}
	eng.Tick(nil)

	baselines := eng.Baselines()
	if len(baselines) == 0 {
		log.Fatal("calibration produced no baselines")
	}
	fmt.Printf("calibrated %d networks over %d batches\n", len(baselines), calibrateBatches)
	for id, b := range baselines {
		fmt.Printf("  %-40s mean=%.1f dBm stddev=%.2f n=%d\n", id, b.Mean, b.StdDev, b.SampleCount)
	}

	if err := eng.Start(); err != nil {
		log.Fatalf("start monitoring: %v", err)
	}

	total := 0
	for i, batch := range batches[calibrateBatches:] {
		events := eng.Tick(stamp(batch, clock.Now()))
		for _, ev := range events {
			total++
			zone := ev.ZoneID
			if zone == "" {
				zone = "-"
			}
			fmt.Printf("batch %4d  %-40s rssi=%4d filtered=%7.1f deviation=%5.1f confidence=%3.0f%% zone=%s\n",
				i+calibrateBatches, ev.Network, ev.RSSI, ev.Filtered, ev.Deviation, ev.Confidence, zone)
		}
		clock.Advance(params.SampleInterval)
	}

	fmt.Printf("replay complete: %d events from %d batches\n", total, len(batches)-calibrateBatches)
}

// stamp pins unstamped samples to the replay clock so decay timing follows
// the batch cadence rather than the recording's wall time.
func stamp(batch []wifi.RawSample, now time.Time) []wifi.RawSample {
	out := make([]wifi.RawSample, len(batch))
	for i, s := range batch {
		out[i] = s
		out[i].ObservedAt = now
	}
	return out
}
