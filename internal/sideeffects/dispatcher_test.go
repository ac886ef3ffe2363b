package sideeffects

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/storefronthq/order-engine/internal/awsx"
	"github.com/storefronthq/order-engine/internal/dynamotest"
)

func TestDispatch_CarriesCorrelationID(t *testing.T) {
	recorder := &dynamotest.SQSRecorder{}
	d := NewDispatcher(awsx.NewPublisher(recorder, "http://queue.local/side-effects"))

	ctx := WithCorrelationID(context.Background(), "req-42")
	d.Dispatch(ctx, Task{Type: TaskNotification, OrderID: "o-1", Event: "SHIPPED"})

	sent := recorder.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	var got Task
	if err := json.Unmarshal([]byte(sent[0]), &got); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if got.CorrelationID != "req-42" {
		t.Fatalf("correlation_id = %q, want req-42", got.CorrelationID)
	}
}

func TestDispatch_WithoutCorrelationID(t *testing.T) {
	recorder := &dynamotest.SQSRecorder{}
	d := NewDispatcher(awsx.NewPublisher(recorder, "http://queue.local/side-effects"))

	d.Dispatch(context.Background(), Task{Type: TaskAttribution, OrderID: "o-1"})

	var got Task
	if err := json.Unmarshal([]byte(recorder.Sent()[0]), &got); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if got.CorrelationID != "" {
		t.Fatalf("correlation_id = %q, want empty", got.CorrelationID)
	}
}

func TestDispatch_NilDispatcherIsNoop(t *testing.T) {
	var d *Dispatcher
	d.Dispatch(context.Background(), Task{Type: TaskNotification})
	NewDispatcher(nil).Dispatch(context.Background(), Task{Type: TaskNotification})
}
