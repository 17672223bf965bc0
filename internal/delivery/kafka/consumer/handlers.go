package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/vogiaan1904/trafficroom/internal/delivery/kafka"
	"github.com/vogiaan1904/trafficroom/internal/service"
)

func (c *Consumer) HandleHit(ctx context.Context, message *sarama.ConsumerMessage) error {
	var e kafka.HitEvent
	if err := json.Unmarshal(message.Value, &e); err != nil {
		return fmt.Errorf("failed to decode hit: %w", err)
	}

	if e.Path == "" {
		return fmt.Errorf("hit without path from source %q", e.Source)
	}

	verdict := c.coord.RecordHit(ctx, e.Path)
	if verdict != service.HitAccepted {
		c.l.Debugf(ctx, "Hit rejected source=%s verdict=%s", e.Source, verdict)
	}

	return nil
}
