// Package notify pushes motion alerts to a Telegram chat through the bot
// API. Alerts are rate limited and suppressed during configured quiet hours
// so a busy hallway does not flood the operator overnight.
package notify

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wallsense-data/wallsense/internal/engine"
	"github.com/wallsense-data/wallsense/internal/monitoring"
	"github.com/wallsense-data/wallsense/internal/timeutil"
)

const defaultAPIBase = "https://api.telegram.org"

// Options configure a Telegram notifier.
type Options struct {
	Token        string
	ChatID       string
	MaxPerMinute int
	Cooldown     time.Duration

	// QuietStart/QuietEnd bound the quiet window in local hours of day.
	// A window crossing midnight (start > end) is honoured.
	QuietStart   int
	QuietEnd     int
	QuietEnabled bool

	// APIBase overrides the Telegram endpoint, for tests.
	APIBase string

	Clock  timeutil.Clock
	Client *http.Client
}

// Telegram sends motion and calibration notifications to a single chat.
type Telegram struct {
	token   string
	chatID  string
	apiBase string

	limiter *RateLimiter
	clock   timeutil.Clock
	client  *http.Client

	quietStart   int
	quietEnd     int
	quietEnabled bool
}

func NewTelegram(opts Options) (*Telegram, error) {
	if opts.Token == "" || opts.ChatID == "" {
		return nil, fmt.Errorf("telegram token and chat id are required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	apiBase := opts.APIBase
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	maxPerMinute := opts.MaxPerMinute
	if maxPerMinute < 1 {
		maxPerMinute = 5
	}
	cooldown := opts.Cooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	return &Telegram{
		token:        opts.Token,
		chatID:       opts.ChatID,
		apiBase:      apiBase,
		limiter:      NewRateLimiter(maxPerMinute, cooldown, clock),
		clock:        clock,
		client:       client,
		quietStart:   opts.QuietStart,
		quietEnd:     opts.QuietEnd,
		quietEnabled: opts.QuietEnabled,
	}, nil
}

// Subscriber returns the broadcaster callback that forwards motion events.
// Sends run on the broadcaster's delivery goroutine, so a slow Telegram API
// only delays this subscriber's own queue.
func (t *Telegram) Subscriber() engine.Subscriber {
	return func(ev engine.MotionEvent) {
		t.NotifyMotion(ev)
	}
}

// NotifyMotion sends a motion alert unless quiet hours or the rate limiter
// suppress it.
func (t *Telegram) NotifyMotion(ev engine.MotionEvent) {
	if t.inQuietHours() {
		monitoring.Counter("notify_quiet_suppressed").Add(1)
		return
	}
	if !t.limiter.Allow() {
		monitoring.Counter("notify_rate_limited").Add(1)
		return
	}
	if err := t.SendMessage(formatMotion(ev)); err != nil {
		monitoring.Logf("telegram motion notification failed: %v", err)
		monitoring.Counter("notify_send_failures").Add(1)
		return
	}
	t.limiter.Record()
}

// NotifyCalibration reports a completed calibration run. Calibration is
// operator initiated, so it bypasses quiet hours and rate limiting.
func (t *Telegram) NotifyCalibration(result engine.CalibrationResult) {
	msg := fmt.Sprintf("*Calibration complete*\n\nNetworks calibrated: %d\nDuration: %.0fs",
		result.Networks, result.FinishedAt.Sub(result.StartedAt).Seconds())
	if err := t.SendMessage(msg); err != nil {
		monitoring.Logf("telegram calibration notification failed: %v", err)
		monitoring.Counter("notify_send_failures").Add(1)
	}
}

// SendMessage posts a Markdown message to the configured chat.
func (t *Telegram) SendMessage(text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)

	form := url.Values{
		"chat_id":    {t.chatID},
		"text":       {text},
		"parse_mode": {"Markdown"},
	}

	resp, err := t.client.PostForm(endpoint, form)
	if err != nil {
		return fmt.Errorf("post to telegram: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}

func (t *Telegram) inQuietHours() bool {
	if !t.quietEnabled {
		return false
	}
	hour := t.clock.Now().Hour()
	if t.quietStart <= t.quietEnd {
		return hour >= t.quietStart && hour < t.quietEnd
	}
	// Window crosses midnight, e.g. 22 to 7.
	return hour >= t.quietStart || hour < t.quietEnd
}

func formatMotion(ev engine.MotionEvent) string {
	var b strings.Builder
	b.WriteString("*Motion detected*\n\n")
	fmt.Fprintf(&b, "Network: `%s`\n", ev.Network.SSID)
	if ev.ZoneName != "" {
		fmt.Fprintf(&b, "Zone: %s\n", ev.ZoneName)
	}
	fmt.Fprintf(&b, "RSSI: %d dBm\n", ev.RSSI)
	fmt.Fprintf(&b, "Baseline: %.1f dBm\n", ev.BaselineMean)
	fmt.Fprintf(&b, "Deviation: %.1f dBm\n", ev.Deviation)
	fmt.Fprintf(&b, "Confidence: %.0f%%\n", ev.Confidence)
	fmt.Fprintf(&b, "\n%s", ev.Timestamp.Format(time.RFC3339))
	return b.String()
}
