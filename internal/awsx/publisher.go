package awsx

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Publisher submits task payloads to a single SQS queue.
type Publisher struct {
	sqs      SQSAPI
	queueURL string
}

// NewPublisher returns a Publisher bound to queueURL.
func NewPublisher(sqsClient SQSAPI, queueURL string) *Publisher {
	return &Publisher{sqs: sqsClient, queueURL: queueURL}
}

// Send publishes body (a JSON document) to the queue. Every attribute is
// carried as a String message attribute.
func (p *Publisher) Send(ctx context.Context, body string, attrs map[string]string) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    &p.queueURL,
		MessageBody: &body,
	}
	if len(attrs) > 0 {
		input.MessageAttributes = make(map[string]sqstypes.MessageAttributeValue, len(attrs))
		for k, v := range attrs {
			input.MessageAttributes[k] = sqstypes.MessageAttributeValue{
				DataType:    awsString("String"),
				StringValue: awsString(v),
			}
		}
	}

	if _, err := p.sqs.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send message to %s: %w", p.queueURL, err)
	}
	return nil
}

func awsString(s string) *string { return &s }
