package awsx

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// MetricEmitter pushes operational counters to CloudWatch. Emission is
// best-effort: a failed PutMetricData is logged and swallowed so it can never
// affect the transaction that produced the metric.
type MetricEmitter struct {
	client    CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewMetricEmitter returns an emitter bound to a CloudWatch namespace.
func NewMetricEmitter(client CloudWatchAPI, namespace string) *MetricEmitter {
	return &MetricEmitter{
		client:    client,
		namespace: namespace,
		nowFunc:   time.Now,
	}
}

// Emit records a single count metric with optional dimensions.
func (e *MetricEmitter) Emit(ctx context.Context, name string, value float64, dims map[string]string) {
	if e == nil || e.client == nil {
		return
	}
	datum := cwtypes.MetricDatum{
		MetricName: awsString(name),
		Value:      &value,
		Unit:       cwtypes.StandardUnitCount,
	}
	ts := e.nowFunc()
	datum.Timestamp = &ts
	for k, v := range dims {
		k, v := k, v
		datum.Dimensions = append(datum.Dimensions, cwtypes.Dimension{Name: &k, Value: &v})
	}

	_, err := e.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &e.namespace,
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		log.Printf("cloudwatch emit %s failed: %v", name, err)
	}
}
