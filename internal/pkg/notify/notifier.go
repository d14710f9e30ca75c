package notify

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/OpsLedger/internal/pkg/jobqueue"
)

// Enqueuer is the part of jobqueue.Queue the notifier needs.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error)
}

// QueueNotifier hands notifications to the job queue. Delivery and retries
// happen on queue workers.
type QueueNotifier struct {
	queue Enqueuer
}

func NewQueueNotifier(queue Enqueuer) *QueueNotifier {
	return &QueueNotifier{queue: queue}
}

func (n *QueueNotifier) Alert(ctx context.Context, a Alert) {
	if _, err := n.queue.EnqueueJob(ctx, jobqueue.JobTypeBillingAlert, a.ToMap()); err != nil {
		log.Errorf("[Notify] enqueue alert kind=%s event=%s org=%s failed: %v", a.Kind, a.EventID, a.OrganizationID, err)
	}
}

func (n *QueueNotifier) UserNotice(ctx context.Context, un UserNotice) {
	if _, err := n.queue.EnqueueJob(ctx, jobqueue.JobTypeUserNotice, un.ToMap()); err != nil {
		log.Errorf("[Notify] enqueue notice type=%s org=%s failed: %v", un.Type, un.OrganizationID, err)
	}
}

// LogNotifier only logs. Used when notifications are disabled.
type LogNotifier struct{}

func (LogNotifier) Alert(_ context.Context, a Alert) {
	log.Infof("[Notify] alert (not delivered) kind=%s org=%s subscription=%s status=%s", a.Kind, a.OrganizationID, a.SubscriptionID, a.Status)
}

func (LogNotifier) UserNotice(_ context.Context, n UserNotice) {
	log.Infof("[Notify] notice (not delivered) type=%s org=%s title=%q", n.Type, n.OrganizationID, n.Title)
}
