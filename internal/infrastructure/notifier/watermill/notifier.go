package watermillnotifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/arkade-os/txeditor/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

const topicMetadataKey = "topic"

type subscriber struct {
	topic   ports.Topic
	handler func(payload []byte)
}

// Notifier publishes editor events as JSON messages on an in-process watermill pub/sub.
type Notifier struct {
	pubsub *gochannel.GoChannel

	subscribers    map[ports.Topic][]subscriber
	subscriberLock *sync.Mutex
	wg             sync.WaitGroup
	ctx            context.Context
	cancel         context.CancelFunc
}

func NewNotifier(bufferSize int64) *Notifier {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: bufferSize},
		watermill.NopLogger{},
	)
	ctx, cancel := context.WithCancel(context.Background())
	return &Notifier{
		pubsub:         pubsub,
		subscribers:    make(map[ports.Topic][]subscriber),
		subscriberLock: &sync.Mutex{},
		ctx:            ctx,
		cancel:         cancel,
	}
}

// RegisterHandler calls handler with the JSON payload of every message published on topic from
// now on.
func (n *Notifier) RegisterHandler(topic ports.Topic, handler func(payload []byte)) error {
	messages, err := n.pubsub.Subscribe(n.ctx, string(topic))
	if err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	n.subscriberLock.Lock()
	n.subscribers[topic] = append(n.subscribers[topic], subscriber{topic, handler})
	n.subscriberLock.Unlock()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for msg := range messages {
			handler(msg.Payload)
			msg.Ack()
		}
	}()
	return nil
}

func (n *Notifier) Publish(ctx context.Context, topic ports.Topic, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to serialize %s message: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(topicMetadataKey, string(topic))

	if err := n.pubsub.Publish(string(topic), msg); err != nil {
		return fmt.Errorf("failed to publish %s message: %w", topic, err)
	}

	n.subscriberLock.Lock()
	count := len(n.subscribers[topic])
	n.subscriberLock.Unlock()
	log.WithField("topic", topic).Tracef("published message to %d subscribers", count)
	return nil
}

// Close stops the subscriptions and waits for the handlers to drain.
func (n *Notifier) Close() error {
	n.cancel()
	err := n.pubsub.Close()
	n.wg.Wait()

	n.subscriberLock.Lock()
	defer n.subscriberLock.Unlock()
	n.subscribers = make(map[ports.Topic][]subscriber)
	return err
}
