package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"rndindex/application/commands"
	"rndindex/application/ports"
	"rndindex/application/services"
	"rndindex/domain/graph"
	apperrors "rndindex/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type mockRebuilder struct {
	mock.Mock
}

func (m *mockRebuilder) Rebuild(ctx context.Context, trigger string) (*graph.Generation, error) {
	args := m.Called(ctx, trigger)
	g, _ := args.Get(0).(*graph.Generation)
	return g, args.Error(1)
}

func TestRebuildIndexHandler_Handle_Success(t *testing.T) {
	// Arrange
	rebuilder := new(mockRebuilder)
	rebuilder.On("Rebuild", mock.Anything, services.TriggerManual).
		Return(graph.NewGenerationBuilder().Seal(1, "run-1", time.Now(), 0), nil)
	handler := NewRebuildIndexHandler(rebuilder, zap.NewNop())

	// Act
	err := handler.Handle(context.Background(), commands.RebuildIndexCommand{Trigger: services.TriggerManual})

	// Assert
	assert.NoError(t, err)
	rebuilder.AssertExpectations(t)
}

func TestRebuildIndexHandler_Handle_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"lock held", fmt.Errorf("acquire: %w", ports.ErrLockHeld), http.StatusConflict},
		{"superseded", services.ErrRebuildSuperseded, http.StatusConflict},
		{"deadline", context.DeadlineExceeded, http.StatusRequestTimeout},
		{"store failure", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			rebuilder := new(mockRebuilder)
			rebuilder.On("Rebuild", mock.Anything, services.TriggerManual).Return(nil, tt.err)
			handler := NewRebuildIndexHandler(rebuilder, zap.NewNop())

			// Act
			err := handler.Handle(context.Background(), commands.RebuildIndexCommand{Trigger: services.TriggerManual})

			// Assert
			appErr := apperrors.GetAppError(err)
			if assert.NotNil(t, appErr) {
				assert.Equal(t, tt.status, appErr.HTTPStatus)
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestRebuildIndexHandler_Handle_InvalidTrigger(t *testing.T) {
	// Arrange
	rebuilder := new(mockRebuilder)
	handler := NewRebuildIndexHandler(rebuilder, zap.NewNop())

	// Act
	err := handler.Handle(context.Background(), commands.RebuildIndexCommand{Trigger: "whenever"})

	// Assert
	assert.True(t, apperrors.IsValidation(err))
	rebuilder.AssertNotCalled(t, "Rebuild", mock.Anything, mock.Anything)
}
