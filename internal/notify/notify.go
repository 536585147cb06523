package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/tckz/visitor-counter/internal/counter"
	"go.uber.org/zap"
)

// Event is published once per successful increment.
type Event struct {
	CounterID string    `json:"counter_id"`
	Count     int64     `json:"count"`
	At        time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

var _ Notifier = (*PubSubNotifier)(nil)

type PubSubNotifier struct {
	topic *pubsub.Topic
}

func NewPubSubNotifier(topic *pubsub.Topic) *PubSubNotifier {
	return &PubSubNotifier{topic: topic}
}

// Notify publishes ev and waits until the server acknowledged it.
func (n *PubSubNotifier) Notify(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}
	res := n.topic.Publish(ctx, &pubsub.Message{
		Data: b,
		Attributes: map[string]string{
			"counter_id": ev.CounterID,
		},
	})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("res.Get: %w", err)
	}
	return nil
}

func (n *PubSubNotifier) Stop() {
	n.topic.Stop()
}

// Wrap returns a counter that notifies n after every successful Up. The
// increment is already committed at that point, so a failed notification is
// only logged.
func Wrap(c counter.Counter, id string, n Notifier, logger *zap.SugaredLogger) counter.Counter {
	return &notifying{
		next:   c,
		id:     id,
		n:      n,
		logger: logger,
		now:    time.Now,
	}
}

var _ counter.Counter = (*notifying)(nil)

type notifying struct {
	next   counter.Counter
	id     string
	n      Notifier
	logger *zap.SugaredLogger
	now    func() time.Time
}

func (c *notifying) Up(ctx context.Context) (int64, error) {
	v, err := c.next.Up(ctx)
	if err != nil {
		return v, err
	}
	ev := Event{CounterID: c.id, Count: v, At: c.now().UTC()}
	if err := c.n.Notify(ctx, ev); err != nil {
		c.logger.With(zap.Error(err)).Warnf("Notify: count=%d", v)
	}
	return v, nil
}

func (c *notifying) Get(ctx context.Context) (int64, error) {
	return c.next.Get(ctx)
}
