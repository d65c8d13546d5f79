//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"fleetdocs/internal/platform/kafka"
	audit "fleetdocs/pkg/platform/audit"
	auditpublisher "fleetdocs/pkg/platform/audit/publisher"
	auditmemory "fleetdocs/pkg/platform/audit/store/memory"
	"fleetdocs/pkg/platform/audit/worker"
	"fleetdocs/pkg/testutil/containers"
)

type ProducerSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
	topic    string
	producer *kafka.Producer
}

func TestProducerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerSuite))
}

func (s *ProducerSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redpanda = mgr.GetRedpanda(s.T())
}

func (s *ProducerSuite) SetupTest() {
	s.topic = "fleetdocs.test-" + uuid.NewString()[:8]
	p, err := kafka.NewProducer(s.redpanda.Brokers, s.topic, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Require().NoError(err)
	s.producer = p
	s.Require().NoError(s.producer.EnsureTopic(context.Background(), 3, 1))
}

func (s *ProducerSuite) TearDownTest() {
	s.producer.Close()
}

func (s *ProducerSuite) consume(n int) []*kgo.Record {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(s.topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var records []*kgo.Record
	for len(records) < n {
		fetches := client.PollFetches(ctx)
		s.Require().NoError(ctx.Err(), "timed out after %d of %d records", len(records), n)
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
	}
	return records
}

func (s *ProducerSuite) TestEnsureTopicIsIdempotent() {
	s.NoError(s.producer.EnsureTopic(context.Background(), 3, 1))
	s.NoError(s.producer.Health(context.Background()))
}

// TestRelayDeliversOutboxInOrder publishes events through the outbox and the
// relay, then checks every event of a document arrives in emission order on
// one partition.
func (s *ProducerSuite) TestRelayDeliversOutboxInOrder() {
	ctx := context.Background()
	store := auditmemory.NewInMemoryStore()
	publisher := auditpublisher.New(store)

	docID := uuid.NewString()
	actions := []audit.AuditEvent{
		audit.EventDocumentCreated,
		audit.EventRenewalStarted,
		audit.EventDocumentRenewed,
	}
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, action := range actions {
		s.Require().NoError(publisher.Emit(ctx, audit.Event{
			Action:        action,
			Timestamp:     base.Add(time.Duration(i) * time.Second),
			AggregateType: audit.AggregateDocument,
			AggregateID:   docID,
			ActorID:       "ops-lead",
		}))
	}

	relay := worker.NewWorker(store, s.producer)
	n, err := relay.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Equal(len(actions), n)

	pending, err := store.Pending(ctx, 10)
	s.Require().NoError(err)
	s.Empty(pending, "relayed entries are marked published")

	records := s.consume(len(actions))
	partition := records[0].Partition
	for i, rec := range records {
		s.Equal(docID, string(rec.Key))
		s.Equal(partition, rec.Partition)

		var payload audit.Payload
		s.Require().NoError(json.Unmarshal(rec.Value, &payload))
		s.Equal(string(actions[i]), payload.Action)
		s.Equal("ops-lead", payload.ActorID)
	}
}
