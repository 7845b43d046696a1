package commands

import (
	apperrors "rndindex/pkg/errors"
	"rndindex/pkg/utils"
)

// RebuildIndexCommand asks for a fresh generation of the reference graph
type RebuildIndexCommand struct {
	Trigger string `validate:"required,oneof=startup scheduled manual stale"`
}

// Validate validates the command
func (c RebuildIndexCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	return nil
}
