package main

import (
	"context"
	"embed"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wallsense-data/wallsense/internal/api"
	"github.com/wallsense-data/wallsense/internal/config"
	"github.com/wallsense-data/wallsense/internal/db"
	"github.com/wallsense-data/wallsense/internal/engine"
	"github.com/wallsense-data/wallsense/internal/mqttpub"
	"github.com/wallsense-data/wallsense/internal/notify"
	"github.com/wallsense-data/wallsense/internal/timeutil"
	"github.com/wallsense-data/wallsense/internal/version"
	"github.com/wallsense-data/wallsense/internal/wifi"
)

var (
	//go:embed static/*
	staticFiles embed.FS

	devMode    = flag.Bool("dev", false, "Replay fixture batches instead of scanning")
	fixtures   = flag.String("fixtures", "fixtures.jsonl", "JSONL batch file for -dev mode")
	listen     = flag.String("listen", ":8080", "Listen address")
	dbFile     = flag.String("db", "wallsense.db", "SQLite database path")
	configFile = flag.String("config", "", "JSON config file (optional)")
	calibrate  = flag.Duration("calibrate", 0, "Run a calibration of this duration at startup, then begin monitoring")
)

func loadConfig() *config.Config {
	if *configFile == "" {
		return &config.Config{}
	}
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func buildScanner() wifi.Scanner {
	if !*devMode {
		return wifi.NewNmcliScanner()
	}
	batches, err := wifi.LoadBatchesFile(*fixtures)
	if err != nil {
		log.Fatalf("failed to load fixtures: %v", err)
	}
	log.Printf("dev mode: replaying %d fixture batches from %s", len(batches), *fixtures)
	return wifi.NewScriptedScanner(batches...)
}

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	log.Printf("wallsense %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	// Telegram credentials come from the environment, not the config file.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to load .env: %v", err)
	}

	cfg := loadConfig()

	clock := timeutil.RealClock{}
	eng, err := engine.New(cfg.EngineParams(), clock)
	if err != nil {
		log.Fatalf("failed to build engine: %v", err)
	}
	defer eng.Close()

	if err := eng.SetSensitivity(cfg.GetSensitivity()); err != nil {
		log.Fatalf("invalid sensitivity: %v", err)
	}

	database, err := db.Open(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()
	eng.Broadcaster().Subscribe("sqlite", database.Recorder())

	var notifier *notify.Telegram
	if cfg.Notify != nil && cfg.Notify.Enabled {
		start, end, quietEnabled := cfg.QuietHours()
		notifier, err = notify.NewTelegram(notify.Options{
			Token:        os.Getenv("TELEGRAM_BOT_TOKEN"),
			ChatID:       os.Getenv("TELEGRAM_CHAT_ID"),
			MaxPerMinute: cfg.NotifyMaxPerMinute(),
			Cooldown:     cfg.NotifyCooldown(),
			QuietStart:   start,
			QuietEnd:     end,
			QuietEnabled: quietEnabled,
			Clock:        clock,
		})
		if err != nil {
			log.Fatalf("failed to build telegram notifier: %v", err)
		}
		eng.Broadcaster().Subscribe("telegram", notifier.Subscriber())
		log.Print("telegram notifications enabled")
	}

	if cfg.MQTT != nil && cfg.MQTT.Enabled {
		publisher, err := mqttpub.Connect(cfg.MQTT.BrokerURL, cfg.MQTTClientID(), cfg.MQTTTopicPrefix())
		if err != nil {
			log.Fatalf("failed to connect to MQTT broker: %v", err)
		}
		defer publisher.Close()
		eng.Broadcaster().Subscribe("mqtt", publisher.Subscriber())
		log.Printf("mqtt publishing enabled to %s", cfg.MQTT.BrokerURL)
	}

	// The hook runs inside the engine's tick path; push the slow parts onto
	// their own goroutine.
	eng.SetCalibrationHook(func(result engine.CalibrationResult) {
		go func() {
			if err := database.RecordCalibration(result); err != nil {
				log.Printf("failed to record calibration: %v", err)
			}
			if notifier != nil {
				notifier.NotifyCalibration(result)
			}
		}()
	})

	scanner := buildScanner()

	autoStart := false
	if *calibrate > 0 {
		if err := eng.Calibrate(*calibrate); err != nil {
			log.Fatalf("failed to start calibration: %v", err)
		}
		autoStart = true
		log.Printf("calibrating for %v; keep the monitored area still", *calibrate)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// scan loop: one batch per interval, fed straight into the engine
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := clock.NewTicker(cfg.GetSampleInterval())
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Print("scan loop terminated")
				return
			case <-ticker.C():
				samples, err := scanner.Scan(ctx)
				if err != nil {
					if ctx.Err() != nil {
						continue
					}
					log.Printf("scan failed: %v", err)
					continue
				}
				eng.Tick(samples)

				if autoStart && eng.State() == engine.StateStopped {
					autoStart = false
					if err := eng.Start(); err != nil {
						log.Printf("failed to start monitoring after calibration: %v", err)
					} else {
						log.Print("monitoring started")
					}
				}
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		apiMux := api.NewServer(eng, database).ServeMux()
		mux.Handle("/api/", apiMux)
		mux.Handle("/health", apiMux)
		mux.Handle("/ws", apiMux)

		// serve the dashboard from the embedded filesystem in production or
		// from ./static in dev for easier iteration
		var staticHandler http.Handler
		if *devMode {
			staticHandler = http.FileServer(http.Dir("./static"))
		} else {
			sub, err := fs.Sub(staticFiles, "static")
			if err != nil {
				log.Fatalf("failed to mount static files: %v", err)
			}
			staticHandler = http.FileServer(http.FS(sub))
		}
		mux.Handle("/", staticHandler)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
