package notify

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ManuelReschke/OpsLedger/app/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

// ChatSink posts alerts to a chat-ops channel.
type ChatSink interface {
	Send(ctx context.Context, a Alert) error
}

// MailSender sends an HTML email.
type MailSender interface {
	Send(to, subject, htmlBody string) error
}

// Store persists in-app notices.
type Store interface {
	InsertNotification(ctx context.Context, n *models.NotificationEvent) error
}

// WebhookChatSink posts {"text": ...} to a Slack-compatible incoming webhook.
type WebhookChatSink struct {
	url     string
	timeout time.Duration
}

func NewWebhookChatSink(url string) *WebhookChatSink {
	return &WebhookChatSink{url: url, timeout: 10 * time.Second}
}

func (s *WebhookChatSink) Send(_ context.Context, a Alert) error {
	agent := fiber.Post(s.url)
	agent.Timeout(s.timeout)
	agent.JSON(fiber.Map{"text": a.Summary()})

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("chat webhook: %w", errors.Join(errs...))
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("chat webhook: status %d: %s", code, strings.TrimSpace(string(body)))
	}
	return nil
}

// AlertRenderer renders operator alert emails from the embedded templates.
type AlertRenderer struct {
	engine *html.Engine
}

func NewAlertRenderer() (*AlertRenderer, error) {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		return nil, err
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("load alert templates: %w", err)
	}
	return &AlertRenderer{engine: engine}, nil
}

type alertRow struct {
	Label string
	Value string
}

func (r *AlertRenderer) Render(a Alert) (string, error) {
	rows := []alertRow{
		{"Organization", firstNonEmpty(a.OrganizationName, a.OrganizationID)},
		{"Email", a.UserEmail},
		{"Plan", strings.TrimSpace(a.PlanType + " " + a.BillingCycle)},
		{"Amount", strings.TrimSpace(a.Amount.StringFixed(2) + " " + strings.ToUpper(a.Currency))},
		{"Status", a.Status},
		{"Previous status", a.PreviousStatus},
		{"Reason", a.Reason},
		{"Comment", a.Comment},
		{"Subscription", a.SubscriptionID},
		{"Event", a.EventID},
	}
	filled := rows[:0]
	for _, row := range rows {
		if row.Value != "" {
			filled = append(filled, row)
		}
	}

	var buf bytes.Buffer
	err := r.engine.Render(&buf, "alert", fiber.Map{
		"Title":      a.Title(),
		"Rows":       filled,
		"OccurredAt": a.OccurredAt.UTC().Format(time.RFC1123),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// GormStore writes notices into the notification_events table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) InsertNotification(ctx context.Context, n *models.NotificationEvent) error {
	return s.db.WithContext(ctx).Create(n).Error
}

// toModel converts a notice into its persisted form.
func (n UserNotice) toModel() (*models.NotificationEvent, error) {
	ev := &models.NotificationEvent{
		OrganizationID: n.OrganizationID,
		UserID:         n.UserID,
		Type:           n.Type,
		Title:          n.Title,
		Message:        n.Message,
		ExpiresAt:      n.ExpiresAt,
	}
	if n.ActionURL != "" {
		url := n.ActionURL
		ev.ActionURL = &url
	}
	if len(n.Metadata) > 0 {
		md, err := json.Marshal(n.Metadata)
		if err != nil {
			return nil, err
		}
		ev.Metadata = datatypes.JSON(md)
	}
	return ev, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
