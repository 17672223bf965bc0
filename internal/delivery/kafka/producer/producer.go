package producer

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	kafka "github.com/vogiaan1904/trafficroom/internal/delivery/kafka"
	"github.com/vogiaan1904/trafficroom/internal/models"
	"github.com/vogiaan1904/trafficroom/internal/render"
	"github.com/vogiaan1904/trafficroom/internal/service"
	"github.com/vogiaan1904/trafficroom/pkg/logger"
)

// Producer publishes coordinator events and doubles as its Notifier.
type Producer interface {
	service.Notifier
	Close() error
}

type implProducer struct {
	l    logger.Logger
	prod sarama.SyncProducer
}

func NewProducer(prod sarama.SyncProducer, l logger.Logger) Producer {
	return &implProducer{
		l:    l,
		prod: prod,
	}
}

func (p *implProducer) SessionStarted(ctx context.Context, ss models.Session) error {
	event := kafka.SessionStartedEvent{
		EventID:         uuid.NewString(),
		SessionID:       ss.ID,
		OwnerID:         ss.OwnerID,
		ChatID:          ss.ChatID,
		DisplayName:     ss.DisplayName,
		TargetURL:       ss.TargetURL(),
		DurationSeconds: int64(ss.Duration / time.Second),
		StartTime:       ss.StartTime,
		Message:         render.SessionStarted(ss),
	}

	msg, err := newMessage(kafka.TopicSessionStarted, ss.ID, &event, &event.Timestamp)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.SessionStarted: %v", err)
		return err
	}

	return p.send(ctx, msg)
}

func (p *implProducer) SessionQueued(ctx context.Context, entry models.QueueEntry, position int) error {
	event := kafka.SessionQueuedEvent{
		EventID:     uuid.NewString(),
		RequesterID: entry.RequesterID,
		ChatID:      entry.ChatID,
		Position:    position,
		EnqueuedAt:  entry.EnqueuedAt,
		Message:     render.Queued(position),
	}

	msg, err := newMessage(kafka.TopicSessionQueued, strconv.FormatInt(entry.RequesterID, 10), &event, &event.Timestamp)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.SessionQueued: %v", err)
		return err
	}

	return p.send(ctx, msg)
}

func (p *implProducer) StatusUpdate(ctx context.Context, upd models.StatusUpdate) error {
	event := kafka.SessionStatusEvent{
		EventID:          uuid.NewString(),
		SessionID:        upd.SessionID,
		OwnerID:          upd.OwnerID,
		ChatID:           upd.ChatID,
		Sequence:         upd.Sequence,
		RequestCount:     upd.RequestCount,
		RemainingSeconds: int64(upd.Remaining.Round(time.Second) / time.Second),
		Message:          render.StatusUpdate(upd),
	}

	// keyed by session so every update of one session lands on one partition in order
	msg, err := newMessage(kafka.TopicSessionStatus, upd.SessionID, &event, &event.Timestamp)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.StatusUpdate: %v", err)
		return err
	}
	msg.Headers = append(msg.Headers, sarama.RecordHeader{
		Key:   []byte("sequence"),
		Value: []byte(strconv.FormatUint(upd.Sequence, 10)),
	})

	return p.send(ctx, msg)
}

func (p *implProducer) SessionEnded(ctx context.Context, rec models.HistoryRecord, chatID int64) error {
	event := kafka.SessionEndedEvent{
		EventID:       uuid.NewString(),
		SessionID:     rec.SessionID,
		OwnerID:       rec.OwnerID,
		ChatID:        chatID,
		TotalRequests: rec.TotalRequests,
		Reason:        string(rec.Reason),
		StartTime:     rec.StartTime,
		EndTime:       rec.EndTime,
		Message:       render.TrafficOverview(rec),
	}

	msg, err := newMessage(kafka.TopicSessionEnded, rec.SessionID, &event, &event.Timestamp)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.SessionEnded: %v", err)
		return err
	}

	return p.send(ctx, msg)
}

// RankingReset fans one message out per known user in a single batch.
func (p *implProducer) RankingReset(ctx context.Context, userIDs []int64, message string) error {
	if len(userIDs) == 0 {
		return nil
	}

	msgs := make([]*sarama.ProducerMessage, 0, len(userIDs))
	for _, id := range userIDs {
		event := kafka.RankingResetEvent{
			EventID: uuid.NewString(),
			UserID:  id,
			Message: message,
		}

		msg, err := newMessage(kafka.TopicRankingReset, strconv.FormatInt(id, 10), &event, &event.Timestamp)
		if err != nil {
			p.l.Errorf(ctx, "delivery.kafka.producer.RankingReset: %v", err)
			return err
		}
		msgs = append(msgs, msg)
	}

	if err := p.prod.SendMessages(msgs); err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.RankingReset: %v", err)
		return err
	}

	p.l.Infof(ctx, "Ranking reset published to %d users", len(msgs))

	return nil
}

func (p *implProducer) Close() error {
	if err := p.prod.Close(); err != nil {
		return err
	}

	return nil
}

func (p *implProducer) send(ctx context.Context, msg *sarama.ProducerMessage) error {
	partition, offset, err := p.prod.SendMessage(msg)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.send: topic=%s: %v", msg.Topic, err)
		return err
	}

	p.l.Debugf(ctx, "Published topic=%s partition=%d offset=%d", msg.Topic, partition, offset)

	return nil
}

// newMessage stamps the event, marshals it and wraps it for topic.
func newMessage(topic, key string, event any, stamp *time.Time) (*sarama.ProducerMessage, error) {
	now := time.Now()
	*stamp = now

	val, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("timestamp"),
				Value: []byte(now.Format(time.RFC3339)),
			},
		},
	}, nil
}
