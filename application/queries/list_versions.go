package queries

import (
	"rndindex/domain/core/entities"
	apperrors "rndindex/pkg/errors"
	"rndindex/pkg/utils"
)

// ListVersionsQuery asks for every version of the latest lifetime of an object
type ListVersionsQuery struct {
	Source     string `validate:"required"`
	ObjectType string `validate:"required"`
	Key        string `validate:"required"`
}

// Validate validates the ListVersionsQuery
func (q ListVersionsQuery) Validate() error {
	if err := utils.ValidateStruct(q); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	return nil
}

// ListVersionsResult lists an object's versions, oldest first
type ListVersionsResult struct {
	Type       string             `json:"type,omitempty"`
	PrimaryKey string             `json:"primaryKey,omitempty"`
	Source     string             `json:"source,omitempty"`
	Deleted    bool               `json:"deleted,omitempty"`
	Versions   []VersionInfo      `json:"versions,omitempty"`
	Messages   []entities.Message `json:"messages,omitempty"`

	NotFound bool `json:"-"`
}

// Err reports an unknown object as a NOT_FOUND AppError, or nil on success
func (r *ListVersionsResult) Err() error {
	if !r.NotFound {
		return nil
	}
	return apperrors.NewNotFoundError("object").WithCause(ErrVersionNotFound)
}
