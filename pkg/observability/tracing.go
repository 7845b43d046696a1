package observability

import (
	"context"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer provides distributed tracing capabilities.
// A disabled tracer runs traced functions without creating segments.
type Tracer struct {
	serviceName string
	enabled     bool
}

// NewTracer creates a new tracer instance
func NewTracer(serviceName string, enabled bool) *Tracer {
	return &Tracer{
		serviceName: serviceName,
		enabled:     enabled,
	}
}

// TraceFunction wraps a function with tracing. It opens a subsegment when
// the context already carries a segment and a root segment otherwise, as
// happens in background rebuilds.
func (t *Tracer) TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error {
	if t == nil || !t.enabled {
		return fn(ctx)
	}

	var seg *xray.Segment
	if xray.GetSegment(ctx) != nil {
		ctx, seg = xray.BeginSubsegment(ctx, name)
	} else {
		ctx, seg = xray.BeginSegment(ctx, fmt.Sprintf("%s.%s", t.serviceName, name))
	}

	err := fn(ctx)
	if err != nil {
		seg.AddError(err)
	}
	seg.Close(err)

	return err
}

// AddMetadata adds metadata to the current segment
func (t *Tracer) AddMetadata(ctx context.Context, key string, value interface{}) {
	if t == nil || !t.enabled {
		return
	}
	if seg := xray.GetSegment(ctx); seg != nil {
		seg.AddMetadata(key, value)
	}
}

// AddAnnotation adds an indexed annotation to the current segment
func (t *Tracer) AddAnnotation(ctx context.Context, key string, value string) {
	if t == nil || !t.enabled {
		return
	}
	if seg := xray.GetSegment(ctx); seg != nil {
		seg.AddAnnotation(key, value)
	}
}
