package bus

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Query represents a read-only query
type Query interface {
	Validate() error
}

// QueryHandler handles a specific query type
type QueryHandler interface {
	Handle(ctx context.Context, query Query) (interface{}, error)
}

// Middleware decorates a query handler
type Middleware interface {
	Wrap(next QueryHandler) QueryHandler
}

// QueryBus dispatches queries to their handlers
type QueryBus struct {
	handlers   map[reflect.Type]QueryHandler
	middleware []Middleware
	mu         sync.RWMutex
}

// NewQueryBus creates a new query bus
func NewQueryBus(middleware ...Middleware) *QueryBus {
	return &QueryBus{
		handlers:   make(map[reflect.Type]QueryHandler),
		middleware: middleware,
	}
}

// Register registers a handler for a query type
func (b *QueryBus) Register(queryType Query, handler QueryHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(queryType)
	if _, exists := b.handlers[t]; exists {
		return fmt.Errorf("handler already registered for query type %s", t.Name())
	}

	for i := len(b.middleware) - 1; i >= 0; i-- {
		handler = b.middleware[i].Wrap(handler)
	}
	b.handlers[t] = handler
	return nil
}

// Ask dispatches a query to its handler and returns the result
func (b *QueryBus) Ask(ctx context.Context, query Query) (interface{}, error) {
	// Validate query
	if err := query.Validate(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	handler, exists := b.handlers[reflect.TypeOf(query)]
	b.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("no handler registered for query type %T", query)
	}

	result, err := handler.Handle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query handler failed: %w", err)
	}

	return result, nil
}

// QueryHandlerFunc is an adapter to allow functions to be used as handlers
type QueryHandlerFunc func(ctx context.Context, query Query) (interface{}, error)

// Handle implements QueryHandler
func (f QueryHandlerFunc) Handle(ctx context.Context, query Query) (interface{}, error) {
	return f(ctx, query)
}

// LoggingMiddleware logs query execution
type LoggingMiddleware struct {
	logger *zap.Logger
}

// NewLoggingMiddleware creates a new logging middleware
func NewLoggingMiddleware(logger *zap.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger}
}

// Wrap wraps a query handler with logging
func (m *LoggingMiddleware) Wrap(next QueryHandler) QueryHandler {
	return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		queryType := reflect.TypeOf(query).Name()
		start := time.Now()

		result, err := next.Handle(ctx, query)
		if err != nil {
			m.logger.Warn("Query failed",
				zap.String("query", queryType),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
			return nil, err
		}

		m.logger.Debug("Query handled",
			zap.String("query", queryType),
			zap.Duration("duration", time.Since(start)),
		)
		return result, nil
	})
}
