// Package dispatch handles the record_dispatch tool: it acknowledges
// the call to the voice backend immediately and delivers the captured
// lead to the back-office webhook in the background.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gtahvac/dispatch-voice/internal/httpc"
	"github.com/gtahvac/dispatch-voice/internal/log"
	"github.com/gtahvac/dispatch-voice/pkg/voice"
)

// ToolName is the function the agent invokes to record a lead.
const ToolName = "record_dispatch"

// Record is the captured dispatch payload posted to the webhook.
type Record struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	UnitAge    string `json:"unitAge"`
	Summary    string `json:"summary"`
	Urgency    string `json:"urgency"`
	AgentLabel string `json:"agentLabel"`

	// RecordedAt is stamped at handling time.
	RecordedAt time.Time `json:"recordedAt"`
}

// Dispatcher answers record_dispatch tool calls. The acknowledgement is
// synchronous so the conversation never stalls; webhook delivery runs
// on a goroutine and is best effort. Delivery failures are logged and
// swallowed: losing a demo lead beats breaking the live call.
type Dispatcher struct {
	// WebhookURL receives the Record as a JSON POST. Empty disables
	// delivery (the call is still acknowledged).
	WebhookURL string

	// BookingURL is included in the acknowledgement so the agent can
	// offer it to the caller.
	BookingURL string

	// Client overrides the shared HTTP client when set.
	Client *http.Client

	// Timeout bounds a single webhook delivery attempt.
	Timeout time.Duration

	mu   sync.Mutex
	seen map[string]string
	wg   sync.WaitGroup
}

// New creates a Dispatcher posting to the given webhook.
func New(webhookURL, bookingURL string) *Dispatcher {
	return &Dispatcher{
		WebhookURL: webhookURL,
		BookingURL: bookingURL,
		Timeout:    10 * time.Second,
		seen:       make(map[string]string),
	}
}

// Handle answers a tool call. Repeated IDs (backend retries) get the
// original acknowledgement back without a second webhook POST. Unknown
// tool names are answered too, so the conversation flow never waits on
// a call we cannot serve.
func (d *Dispatcher) Handle(call voice.ToolCall) string {
	if call.Name != ToolName {
		log.Warn("dispatch: unknown tool", "name", call.Name, "id", call.ID)
		return fmt.Sprintf("unknown tool %q", call.Name)
	}

	d.mu.Lock()
	if ack, ok := d.seen[call.ID]; ok {
		d.mu.Unlock()
		log.Info("dispatch: duplicate tool call", "id", call.ID)
		return ack
	}

	rec := recordFromArgs(call.Arguments)
	ack := d.acknowledge(rec)
	d.seen[call.ID] = ack
	d.mu.Unlock()

	log.Info("dispatch: recorded",
		"id", call.ID,
		"name", rec.Name,
		"urgency", rec.Urgency,
		"agent", rec.AgentLabel,
	)

	if d.WebhookURL != "" {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliver(call.ID, rec)
		}()
	}

	return ack
}

// Wait blocks until in-flight webhook deliveries finish. Called on
// shutdown so a lead captured seconds before exit still goes out.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) acknowledge(rec Record) string {
	if d.BookingURL != "" {
		return fmt.Sprintf("Dispatch recorded for %s. Booking link: %s", rec.Name, d.BookingURL)
	}
	return fmt.Sprintf("Dispatch recorded for %s.", rec.Name)
}

func (d *Dispatcher) deliver(callID string, rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
	defer cancel()

	body, err := json.Marshal(rec)
	if err != nil {
		log.Error("dispatch: marshal failed", "id", callID, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.WebhookURL, bytes.NewReader(body))
	if err != nil {
		log.Error("dispatch: bad webhook request", "id", callID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	client := d.Client
	if client == nil {
		client = httpc.Client
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Error("dispatch: webhook delivery failed", "id", callID, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error("dispatch: webhook rejected", "id", callID, "status", resp.StatusCode)
		return
	}
	log.Debug("dispatch: webhook delivered", "id", callID)
}

// recordFromArgs maps the agent's loosely typed arguments onto a
// Record. Missing fields stay empty rather than failing the call.
func recordFromArgs(args map[string]any) Record {
	str := func(key string) string {
		v, _ := args[key].(string)
		return v
	}
	return Record{
		Name:       str("name"),
		Phone:      str("phone"),
		UnitAge:    str("unitAge"),
		Summary:    str("summary"),
		Urgency:    str("urgency"),
		AgentLabel: str("agentLabel"),
		RecordedAt: time.Now().UTC(),
	}
}
