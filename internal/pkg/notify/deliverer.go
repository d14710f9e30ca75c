package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/OpsLedger/internal/pkg/jobqueue"
)

// Deliverer runs on queue workers and pushes notifications to their sinks.
// Any nil sink is skipped.
type Deliverer struct {
	chat       ChatSink
	mail       MailSender
	renderer   *AlertRenderer
	alertEmail string
	store      Store
}

// DelivererOption configures a Deliverer
type DelivererOption func(*Deliverer)

func WithChatSink(s ChatSink) DelivererOption {
	return func(d *Deliverer) { d.chat = s }
}

func WithMail(m MailSender, renderer *AlertRenderer, to string) DelivererOption {
	return func(d *Deliverer) {
		d.mail = m
		d.renderer = renderer
		d.alertEmail = to
	}
}

func WithStore(s Store) DelivererOption {
	return func(d *Deliverer) { d.store = s }
}

func NewDeliverer(opts ...DelivererOption) *Deliverer {
	d := &Deliverer{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register binds the notification job handlers on the queue.
func (d *Deliverer) Register(q *jobqueue.Queue) {
	q.RegisterHandler(jobqueue.JobTypeBillingAlert, d.HandleAlertJob)
	q.RegisterHandler(jobqueue.JobTypeUserNotice, d.HandleUserNoticeJob)
}

// sentSinksKey lists the sinks that already accepted an alert job. The queue
// stores the payload with a failed job, so retries skip those sinks.
const sentSinksKey = "sent_sinks"

const (
	sinkChat  = "chat"
	sinkEmail = "email"
)

func (d *Deliverer) HandleAlertJob(ctx context.Context, job *jobqueue.Job) error {
	a, err := AlertFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("decode alert payload: %w", err)
	}
	sent := sentSinks(job.Payload)
	err = d.deliverAlert(ctx, *a, sent)
	if len(sent) > 0 {
		names := make([]string, 0, len(sent))
		for _, sink := range []string{sinkChat, sinkEmail} {
			if sent[sink] {
				names = append(names, sink)
			}
		}
		job.Payload[sentSinksKey] = names
	}
	return err
}

func sentSinks(payload map[string]interface{}) map[string]bool {
	sent := map[string]bool{}
	switch v := payload[sentSinksKey].(type) {
	case []string:
		for _, s := range v {
			sent[s] = true
		}
	case []interface{}:
		for _, s := range v {
			if name, ok := s.(string); ok {
				sent[name] = true
			}
		}
	}
	return sent
}

func (d *Deliverer) HandleUserNoticeJob(ctx context.Context, job *jobqueue.Job) error {
	n, err := UserNoticeFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("decode notice payload: %w", err)
	}
	return d.DeliverUserNotice(ctx, *n)
}

// DeliverAlert sends the alert to every configured sink and joins their errors.
func (d *Deliverer) DeliverAlert(ctx context.Context, a Alert) error {
	return d.deliverAlert(ctx, a, map[string]bool{})
}

// deliverAlert skips sinks marked in sent and marks the ones that succeed.
func (d *Deliverer) deliverAlert(ctx context.Context, a Alert, sent map[string]bool) error {
	var errs []error
	if d.chat != nil && !sent[sinkChat] {
		if err := d.chat.Send(ctx, a); err != nil {
			errs = append(errs, err)
		} else {
			sent[sinkChat] = true
		}
	}
	if d.mail != nil && d.renderer != nil && d.alertEmail != "" && !sent[sinkEmail] {
		body, err := d.renderer.Render(a)
		if err != nil {
			errs = append(errs, fmt.Errorf("render alert email: %w", err))
		} else if err := d.mail.Send(d.alertEmail, a.Title(), body); err != nil {
			errs = append(errs, fmt.Errorf("send alert email: %w", err))
		} else {
			sent[sinkEmail] = true
		}
	}
	if d.chat == nil && d.mail == nil {
		log.Infof("[Notify] %s", a.Summary())
	}
	return errors.Join(errs...)
}

// DeliverUserNotice validates and stores an in-app notice.
func (d *Deliverer) DeliverUserNotice(ctx context.Context, n UserNotice) error {
	if d.store == nil {
		log.Warnf("[Notify] no notification store; dropping notice type=%s org=%s", n.Type, n.OrganizationID)
		return nil
	}
	ev, err := n.toModel()
	if err != nil {
		return err
	}
	if err := ev.Validate(); err != nil {
		// Invalid notices never become valid on retry.
		log.Errorf("[Notify] invalid notice type=%s org=%s: %v", n.Type, n.OrganizationID, err)
		return nil
	}
	return d.store.InsertNotification(ctx, ev)
}
