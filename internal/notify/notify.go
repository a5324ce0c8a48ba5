// Package notify delivers textual reports to the outbound message gateway.
// Delivery is best-effort: a failed send is logged and dropped, never allowed
// to fail a tick or a rollover.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avolkov/todoplan/internal/models"
	"github.com/avolkov/todoplan/internal/planner"
)

const sendTimeout = 10 * time.Second

// Notifier posts messages to the gateway's send_message endpoint.
type Notifier struct {
	BaseURL string
	ChatID  string
	HTTP    *http.Client
	log     *slog.Logger
}

// New creates a notifier. An empty chat id disables delivery.
func New(baseURL, chatID string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		BaseURL: baseURL,
		ChatID:  chatID,
		HTTP:    &http.Client{Timeout: sendTimeout},
		log:     logger,
	}
}

// Options tweak one delivery.
type Options struct {
	// DeletePrevious asks the gateway to drop its previous message first,
	// keeping the chat to one live report per day.
	DeletePrevious bool
	// SaveToDB asks the gateway to archive the message.
	SaveToDB bool
}

// Send delivers one message. Failures are logged and swallowed.
func (n *Notifier) Send(ctx context.Context, text string, opts Options) {
	if n.ChatID == "" {
		n.log.Debug("notifier disabled, dropping message", "len", len(text))
		return
	}

	q := url.Values{}
	q.Set("chat_id", n.ChatID)
	q.Set("text", text)
	if opts.DeletePrevious {
		q.Set("delete_previous", "true")
	}
	if opts.SaveToDB {
		q.Set("save_msg_to_db", "true")
	}
	endpoint := strings.TrimRight(n.BaseURL, "/") + "/send_message/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		n.log.Error("notify: build request", "error", err)
		return
	}
	resp, err := n.HTTP.Do(req)
	if err != nil {
		n.log.Error("notify: send", "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		n.log.Error("notify: gateway rejected message", "status", resp.StatusCode, "body", string(body))
	}
}

// Section marks of a formatted report.
const (
	markCompleted      = "✅"
	markNotCompleted   = "❌"
	markPostponed      = "📆"
	markDeleted        = "🗑"
	markOverallPlanned = "📋"
	markComplRatio     = "📈"
)

// FormatReport renders one plan report for the chat: HTML-bold header, one
// marked line per counter.
func FormatReport(r planner.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Report for %s plan %s - %s</b>\n",
		r.Horizon, r.Start.Format(models.DateFormat), r.End.Format(models.DateFormat))
	fmt.Fprintf(&b, "%s completed: %d\n", markCompleted, r.Completed)
	fmt.Fprintf(&b, "%s not completed: %d\n", markNotCompleted, r.NotCompleted)
	fmt.Fprintf(&b, "%s postponed: %d\n", markPostponed, r.Postponed)
	fmt.Fprintf(&b, "%s deleted: %d\n", markDeleted, r.Deleted)
	fmt.Fprintf(&b, "%s overall planned: %d\n", markOverallPlanned, r.OverallPlanned)
	fmt.Fprintf(&b, "%s completion ratio: %s", markComplRatio, r.ComplRatio)
	return b.String()
}

// FormatWarnings renders analyzer warnings as one message.
func FormatWarnings(warnings []string) string {
	var b strings.Builder
	b.WriteString("<b>Goal consistency warnings</b>\n")
	for _, w := range warnings {
		b.WriteString(w)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
