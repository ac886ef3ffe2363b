package dynamotest

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSRecorder captures sent message bodies for assertions.
type SQSRecorder struct {
	mu     sync.Mutex
	Bodies []string
}

// SendMessage implements awsx.SQSAPI.
func (r *SQSRecorder) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if params.MessageBody != nil {
		r.Bodies = append(r.Bodies, *params.MessageBody)
	}
	return &sqs.SendMessageOutput{}, nil
}

// Sent returns a snapshot of the captured bodies.
func (r *SQSRecorder) Sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Bodies))
	copy(out, r.Bodies)
	return out
}
