package redpanda

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

// kafka error code 36 = TOPIC_ALREADY_EXISTS
const errTopicAlreadyExists = 36

// ensureTopic creates a topic when it does not exist yet. An already-existing
// topic is not an error.
func ensureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replicationFactor int16) error {
	if topic == "" {
		return fmt.Errorf("topic name cannot be empty")
	}
	if partitions <= 0 || replicationFactor <= 0 {
		return fmt.Errorf("partitions and replication factor must be greater than 0")
	}

	req := kmsg.NewCreateTopicsRequest()
	req.TimeoutMillis = 30000

	topicReq := kmsg.NewCreateTopicsRequestTopic()
	topicReq.Topic = topic
	topicReq.NumPartitions = partitions
	topicReq.ReplicationFactor = replicationFactor
	req.Topics = append(req.Topics, topicReq)

	resp, err := client.Request(ctx, &req)
	if err != nil {
		return fmt.Errorf("op=topic.create: %w", err)
	}
	createResp, ok := resp.(*kmsg.CreateTopicsResponse)
	if !ok {
		return fmt.Errorf("op=topic.create: unexpected response type %T", resp)
	}

	for _, tr := range createResp.Topics {
		if tr.ErrorCode == 0 {
			slog.Info("topic created",
				slog.String("topic", tr.Topic),
				slog.Int("partitions", int(partitions)))
			continue
		}
		if tr.ErrorCode == errTopicAlreadyExists {
			slog.Debug("topic already exists", slog.String("topic", tr.Topic))
			continue
		}
		msg := ""
		if tr.ErrorMessage != nil {
			msg = *tr.ErrorMessage
		}
		return fmt.Errorf("op=topic.create topic=%s: %s (code %d)", tr.Topic, msg, tr.ErrorCode)
	}
	return nil
}
