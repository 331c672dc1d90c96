//go:build integration

package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"mastercom/internal/platform/config"
	"mastercom/internal/platform/kafka"
	"mastercom/internal/platform/postgres"
	id "mastercom/pkg/domain"
	audit "mastercom/pkg/platform/audit"
	"mastercom/pkg/platform/audit/outbox"
	auditpostgres "mastercom/pkg/platform/audit/store/postgres"
	"mastercom/pkg/testutil/containers"
)

type RelaySuite struct {
	suite.Suite
	pg       *containers.PostgresContainer
	redpanda *containers.RedpandaContainer
	store    *auditpostgres.Store
	producer *kgo.Client
	topic    string
	ctx      context.Context
}

func TestRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	mgr := containers.GetManager()
	s.pg = mgr.GetPostgres(s.T())
	s.redpanda = mgr.GetRedpanda(s.T())
	s.store = auditpostgres.New(s.pg.DB)

	producer, err := kafka.NewProducer(context.Background(), config.KafkaConfig{Brokers: []string{s.redpanda.Broker}})
	s.Require().NoError(err)
	s.producer = producer
}

func (s *RelaySuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *RelaySuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.pg.TruncateTables(s.ctx, "outbox"))
	s.topic = "audit-" + uuid.NewString()[:8]
	s.Require().NoError(kafka.EnsureTopic(s.ctx, s.producer, s.topic, 1, 1))
}

func (s *RelaySuite) event(subject id.DeletionRequestID, action audit.AuditEvent) audit.Event {
	return audit.Event{
		Timestamp: time.Now(),
		ActorID:   id.UserID(uuid.New()),
		Subject:   subject,
		Action:    string(action),
		Table:     "clients",
		RecordID:  "C1",
	}
}

func (s *RelaySuite) TestDrainPublishesAndMarks() {
	subject := id.NewDeletionRequestID()
	s.Require().NoError(s.store.Append(s.ctx, s.event(subject, audit.EventDeletionRequested)))
	s.Require().NoError(s.store.Append(s.ctx, s.event(subject, audit.EventDeletionApproved)))

	relay := outbox.NewRelay(s.store, s.producer, s.topic, outbox.WithBatchSize(1))
	n, err := relay.Drain(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	backlog, err := s.store.CountUnpublished(s.ctx)
	s.Require().NoError(err)
	s.Zero(backlog)

	consumer := s.redpanda.NewConsumer(s.T(), s.topic)
	var got []*kgo.Record
	pollCtx, cancel := context.WithTimeout(s.ctx, 20*time.Second)
	defer cancel()
	for len(got) < 2 {
		fetches := consumer.PollFetches(pollCtx)
		s.Require().NoError(pollCtx.Err(), "timed out waiting for relayed records")
		fetches.EachRecord(func(r *kgo.Record) { got = append(got, r) })
	}

	s.Equal(subject.String(), string(got[0].Key))
	var payload auditpostgres.Payload
	s.Require().NoError(json.Unmarshal(got[0].Value, &payload))
	s.Equal(string(audit.EventDeletionRequested), payload.Action)
	s.Equal(string(audit.CategoryCompliance), payload.Category)
	s.Equal(subject.String(), payload.DeletionRequestID)
}

func (s *RelaySuite) TestRolledBackEventsAreNeverRelayed() {
	tx := postgres.NewTransactor(s.pg.DB)
	boom := errors.New("ledger update lost")

	err := tx.RunInTx(s.ctx, func(ctx context.Context) error {
		if err := s.store.Append(ctx, s.event(id.NewDeletionRequestID(), audit.EventDeletionApproved)); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	backlog, err := s.store.CountUnpublished(s.ctx)
	s.Require().NoError(err)
	s.Zero(backlog)
}

func (s *RelaySuite) TestRunStopsOnCancel() {
	s.Require().NoError(s.store.Append(s.ctx, s.event(id.NewDeletionRequestID(), audit.EventDeletionRejected)))

	ctx, cancel := context.WithCancel(s.ctx)
	relay := outbox.NewRelay(s.store, s.producer, s.topic, outbox.WithInterval(50*time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	s.Eventually(func() bool {
		n, err := s.store.CountUnpublished(s.ctx)
		return err == nil && n == 0
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(5 * time.Second):
		s.Fail("relay did not stop")
	}
}
