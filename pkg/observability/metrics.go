package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// MetricsAPI is the subset of the CloudWatch client used for metrics
type MetricsAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Metrics handles application metrics and monitoring
type Metrics struct {
	namespace string
	client    MetricsAPI
	logger    *zap.Logger
}

// NewMetrics creates a new metrics instance. A nil client disables publishing.
func NewMetrics(namespace string, client MetricsAPI, logger *zap.Logger) *Metrics {
	return &Metrics{
		namespace: namespace,
		client:    client,
		logger:    logger,
	}
}

// RecordRebuild records a successful index rebuild
func (m *Metrics) RecordRebuild(ctx context.Context, duration time.Duration, objects, edges, dangling int) {
	now := time.Now()
	m.put(ctx, []types.MetricDatum{
		{
			MetricName: aws.String("RebuildDuration"),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Timestamp:  aws.Time(now),
		},
		{
			MetricName: aws.String("IndexedObjects"),
			Value:      aws.Float64(float64(objects)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(now),
		},
		{
			MetricName: aws.String("ReferenceEdges"),
			Value:      aws.Float64(float64(edges)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(now),
		},
		{
			MetricName: aws.String("DanglingReferences"),
			Value:      aws.Float64(float64(dangling)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(now),
		},
	})
}

// RecordRebuildFailure records an aborted rebuild
func (m *Metrics) RecordRebuildFailure(ctx context.Context, reason string) {
	m.put(ctx, []types.MetricDatum{
		{
			MetricName: aws.String("RebuildFailures"),
			Dimensions: []types.Dimension{
				{
					Name:  aws.String("Reason"),
					Value: aws.String(reason),
				},
			},
			Value:     aws.Float64(1),
			Unit:      types.StandardUnitCount,
			Timestamp: aws.Time(time.Now()),
		},
	})
}

// RecordLookup records latency and outcome of a version lookup
func (m *Metrics) RecordLookup(ctx context.Context, found bool, duration time.Duration) {
	status := "found"
	if !found {
		status = "not_found"
	}

	m.put(ctx, []types.MetricDatum{
		{
			MetricName: aws.String("LookupLatency"),
			Dimensions: []types.Dimension{
				{
					Name:  aws.String("Status"),
					Value: aws.String(status),
				},
			},
			Value:     aws.Float64(float64(duration.Milliseconds())),
			Unit:      types.StandardUnitMilliseconds,
			Timestamp: aws.Time(time.Now()),
		},
	})
}

func (m *Metrics) put(ctx context.Context, data []types.MetricDatum) {
	if m.client == nil {
		return // Skip if no client configured
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		// Log error but don't fail the operation
		m.logger.Warn("Failed to send metrics", zap.Error(err))
	}
}
