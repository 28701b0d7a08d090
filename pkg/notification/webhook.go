package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"

	"github.com/reapertools/clonereaper/pkg/config"
)

const (
	maxFieldsPerMessage = 25

	// hardcoded limit of fields to avoid hammering the receiver
	maxTotalFields = 250

	// member paths shown per set before truncating
	maxMembersPerField = 10
)

type webhookMessage struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	RunTime     string         `json:"run_time"`
	Fields      []webhookField `json:"fields,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

type webhookField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type webhookSender struct {
	log    *logrus.Entry
	config config.NotificationsConfig

	httpClient *retryablehttp.Client
	limiter    ratelimit.Limiter
}

// NewWebhookSender returns a Sender posting JSON run summaries to the
// configured webhook URL. Sends retry on transient failures and batches are
// paced to one request per second.
func NewWebhookSender(log *logrus.Entry, cfg config.NotificationsConfig) Sender {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.HTTPClient.Timeout = 30 * time.Second
	client.Logger = nil

	return &webhookSender{
		log:        log.WithField("sender", "webhook"),
		config:     cfg,
		httpClient: client,
		limiter:    ratelimit.New(1),
	}
}

func (w *webhookSender) Name() string {
	return "webhook"
}

func (w *webhookSender) CanSend() bool {
	return w.config.WebhookURL != ""
}

func (w *webhookSender) Send(title string, description string, runTime time.Duration, fields []Field, dryRun bool) error {
	if dryRun {
		title = title + " (Dry Run)"
	}

	if len(fields) == 0 && w.config.SkipEmptyRun {
		return nil
	}

	if !w.config.Detailed || len(fields) > maxTotalFields {
		fields = nil
	}

	rt := runTime.Truncate(time.Millisecond).String()
	timestamp := time.Now()

	batches := batchFields(fields, maxFieldsPerMessage)
	if len(batches) == 0 {
		batches = [][]Field{nil}
	}

	for i, batch := range batches {
		msg := webhookMessage{
			Title:       title,
			Description: description,
			RunTime:     rt,
			Timestamp:   timestamp,
		}
		if len(batches) > 1 {
			msg.Title = fmt.Sprintf("%s (%d/%d)", title, i+1, len(batches))
		}
		for _, f := range batch {
			msg.Fields = append(msg.Fields, webhookField{Name: f.Name, Value: f.Value})
		}

		w.limiter.Take()
		if err := w.post(msg); err != nil {
			return err
		}
	}

	return nil
}

func (w *webhookSender) post(msg webhookMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal webhook message")
	}

	req, err := retryablehttp.NewRequest("POST", w.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "send webhook request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return errors.Errorf("webhook responded with status: %d", resp.StatusCode)
	}

	w.log.Tracef("Sent webhook message: %q", msg.Title)
	return nil
}

func (w *webhookSender) BuildField(action Action, opts BuildOptions) Field {
	switch action {
	case ActionDuplicates:
		return Field{
			Name: fmt.Sprintf("Duplicate set %s (%d files, %s each)",
				shortDigest(opts.Digest), len(opts.Members), humanize.IBytes(uint64(opts.Size))),
			Value: memberList(opts.Members),
		}
	case ActionHardlinks:
		return Field{
			Name: fmt.Sprintf("Hardlink set %s (%d links, %s)",
				opts.FileID, len(opts.Members), humanize.IBytes(uint64(opts.Size))),
			Value: memberList(opts.Members),
		}
	case ActionClean:
		return Field{
			Name: fmt.Sprintf("Kept %s", opts.Keep),
			Value: fmt.Sprintf("Removed %d copies, freed %s",
				opts.Removed, humanize.IBytes(uint64(opts.Freed))),
		}
	}

	return Field{}
}

func batchFields(fields []Field, size int) [][]Field {
	var batches [][]Field
	for len(fields) > 0 {
		n := min(size, len(fields))
		batches = append(batches, fields[:n])
		fields = fields[n:]
	}
	return batches
}

func memberList(members []string) string {
	shown := members
	truncated := 0
	if len(shown) > maxMembersPerField {
		truncated = len(shown) - maxMembersPerField
		shown = shown[:maxMembersPerField]
	}

	var sb strings.Builder
	for _, m := range shown {
		sb.WriteString("- ")
		sb.WriteString(m)
		sb.WriteString("\n")
	}
	if truncated > 0 {
		fmt.Fprintf(&sb, "… and %d more", truncated)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12] + "…"
	}
	return digest
}
