package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/untilt/messenger/internal/store"
	"github.com/untilt/messenger/pkg/logger"
	"github.com/untilt/messenger/pkg/metrics"
)

const (
	// StreamName is the JetStream stream carrying mirrored mutations.
	StreamName = "DOCS"

	// SubjectPrefix is the prefix for all mutation subjects.
	SubjectPrefix = "docs"

	// originHeader identifies the publishing instance so replicas skip their
	// own mutations.
	originHeader = "Untilt-Origin"
)

// Applier applies a remote mutation to the local store without
// re-journaling it.
type Applier interface {
	Apply(ctx context.Context, mut store.Mutation) error
}

// Relay publishes local store mutations to JetStream and applies remote
// ones. Wire the store's journal to Publish and call Start with the store as
// the applier.
type Relay struct {
	client  *Client
	applier Applier
	origin  string
	log     *logger.Logger

	consume jetstream.ConsumeContext
}

// New creates a relay. origin must be unique per instance.
func New(client *Client, applier Applier, origin string, log *logger.Logger) *Relay {
	return &Relay{client: client, applier: applier, origin: origin, log: log}
}

// EnsureStream creates the mutations stream if it does not exist yet.
func (r *Relay) EnsureStream(ctx context.Context) error {
	js := r.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Mirrored document-store mutations",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// MutationSubject maps a document path to its subject.
func MutationSubject(path string) string {
	return SubjectPrefix + "." + strings.ReplaceAll(path, "/", ".")
}

// Publish mirrors one local mutation. Intended as the store's journal
// callback; publish failures are logged, not propagated, because the local
// write already succeeded.
func (r *Relay) Publish(mut store.Mutation) {
	data, err := json.Marshal(mut)
	if err != nil {
		r.log.Error("failed to marshal mutation", zap.String("path", mut.Path), zap.Error(err))
		return
	}

	msg := &nats.Msg{
		Subject: MutationSubject(mut.Path),
		Data:    data,
		Header:  nats.Header{originHeader: []string{r.origin}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := r.client.JetStream().PublishMsg(ctx, msg); err != nil {
		r.log.Error("failed to publish mutation", zap.String("path", mut.Path), zap.Error(err))
		return
	}
	metrics.RelayPublished.Inc()
}

// Start consumes remote mutations from now on and applies them locally.
func (r *Relay) Start(ctx context.Context) error {
	consumer, err := r.client.JetStream().CreateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		FilterSubject: SubjectPrefix + ".>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	consume, err := consumer.Consume(func(msg jetstream.Msg) {
		defer msg.Ack()

		if msg.Headers().Get(originHeader) == r.origin {
			return
		}

		var mut store.Mutation
		if err := json.Unmarshal(msg.Data(), &mut); err != nil {
			r.log.Warn("dropping undecodable mutation", zap.Error(err))
			return
		}

		if err := r.applier.Apply(ctx, mut); err != nil {
			r.log.Error("failed to apply remote mutation",
				zap.String("path", mut.Path), zap.Error(err))
			return
		}
		metrics.RelayApplied.Inc()
	})
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	r.consume = consume
	return nil
}

// Stop halts consumption. The underlying NATS connection is closed
// separately via Client.Close.
func (r *Relay) Stop() {
	if r.consume != nil {
		r.consume.Stop()
	}
}
