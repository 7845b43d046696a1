package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pingCommand struct {
	Valid bool
}

func (c pingCommand) Validate() error {
	if !c.Valid {
		return errors.New("invalid ping")
	}
	return nil
}

func TestCommandBus_Send(t *testing.T) {
	// Arrange
	b := NewCommandBus(LoggingMiddleware(zap.NewNop()))
	var received Command
	require.NoError(t, b.Register(pingCommand{}, CommandHandlerFunc(func(ctx context.Context, cmd Command) error {
		received = cmd
		return nil
	})))

	// Act
	err := b.Send(context.Background(), pingCommand{Valid: true})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, pingCommand{Valid: true}, received)
}

func TestCommandBus_Send_ValidationFailsBeforeDispatch(t *testing.T) {
	b := NewCommandBus()
	called := false
	require.NoError(t, b.Register(pingCommand{}, CommandHandlerFunc(func(ctx context.Context, cmd Command) error {
		called = true
		return nil
	})))

	err := b.Send(context.Background(), pingCommand{})

	assert.EqualError(t, err, "invalid ping")
	assert.False(t, called)
}

func TestCommandBus_Send_UnregisteredCommand(t *testing.T) {
	b := NewCommandBus()

	err := b.Send(context.Background(), pingCommand{Valid: true})

	assert.ErrorIs(t, err, ErrHandlerNotFound)
}

func TestCommandBus_Send_WrapsHandlerError(t *testing.T) {
	b := NewCommandBus()
	boom := errors.New("boom")
	require.NoError(t, b.Register(pingCommand{}, CommandHandlerFunc(func(ctx context.Context, cmd Command) error {
		return boom
	})))

	err := b.Send(context.Background(), pingCommand{Valid: true})

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "command handler failed")
}

func TestCommandBus_Register_Duplicate(t *testing.T) {
	b := NewCommandBus()
	noop := CommandHandlerFunc(func(ctx context.Context, cmd Command) error { return nil })
	require.NoError(t, b.Register(pingCommand{}, noop))

	err := b.Register(pingCommand{}, noop)

	assert.Error(t, err)
}

func TestTimeoutMiddleware(t *testing.T) {
	// Arrange
	b := NewCommandBus(TimeoutMiddleware(10 * time.Millisecond))
	require.NoError(t, b.Register(pingCommand{}, CommandHandlerFunc(func(ctx context.Context, cmd Command) error {
		<-ctx.Done()
		return ctx.Err()
	})))

	// Act
	err := b.Send(context.Background(), pingCommand{Valid: true})

	// Assert
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPipeline_AppliesMiddlewareInOrder(t *testing.T) {
	// Arrange
	var order []string
	tag := func(name string) Middleware {
		return func(next CommandHandler) CommandHandler {
			return CommandHandlerFunc(func(ctx context.Context, cmd Command) error {
				order = append(order, name)
				return next.Handle(ctx, cmd)
			})
		}
	}
	handler := NewPipeline(tag("outer"), tag("inner")).Execute(CommandHandlerFunc(func(ctx context.Context, cmd Command) error {
		order = append(order, "handler")
		return nil
	}))

	// Act
	err := handler.Handle(context.Background(), pingCommand{Valid: true})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}
