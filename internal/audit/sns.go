// internal/audit/sns.go
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	appaws "banking-assistant/internal/common/aws"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

const eventTurnCompleted = "assistant.turn.completed"

// SNSPublisher emits a turn-completed event per record.
type SNSPublisher struct {
	client   *appaws.SNSClient
	topicARN string
}

func NewSNSPublisher(client *appaws.SNSClient, topicARN string) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN}
}

func (p *SNSPublisher) Record(ctx context.Context, rec TurnRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: sns: marshal: %v", ErrAuditWriteFailed, err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {DataType: aws.String("String"), StringValue: aws.String(eventTurnCompleted)},
			"exit":      {DataType: aws.String("String"), StringValue: aws.String(rec.Exit)},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: sns: %v", ErrAuditWriteFailed, err)
	}
	return nil
}
