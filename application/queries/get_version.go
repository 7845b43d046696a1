package queries

import (
	"errors"
	"fmt"
	"strings"

	"rndindex/domain/core/entities"
	"rndindex/domain/core/valueobjects"
	apperrors "rndindex/pkg/errors"
	"rndindex/pkg/utils"
)

// GetVersionQuery asks for one version of an object together with the
// objects it referenced and the objects referencing it at that time
type GetVersionQuery struct {
	Source     string `validate:"required"`
	ObjectType string `validate:"required"`
	Key        string `validate:"required"`
	Version    int
}

// Validate validates the GetVersionQuery
func (q GetVersionQuery) Validate() error {
	if err := utils.ValidateStruct(q); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	return nil
}

// GetVersionResult is the assembled lookup result. When NotFound is set only
// Messages is populated.
type GetVersionResult struct {
	Object   *ObjectData        `json:"object,omitempty"`
	Version  *VersionInfo       `json:"version,omitempty"`
	Outgoing []VersionReference `json:"outgoing,omitempty"`
	Incoming []VersionReference `json:"incoming,omitempty"`
	Messages []entities.Message `json:"messages,omitempty"`

	// Indexed reports whether the edges come from a generation covering this version
	Indexed    bool  `json:"-"`
	Generation int64 `json:"-"`
	NotFound   bool  `json:"-"`
}

// ObjectData is an object version's attributes as stored
type ObjectData struct {
	Type       string               `json:"type"`
	PrimaryKey string               `json:"primaryKey"`
	Source     string               `json:"source"`
	Attributes []entities.Attribute `json:"attributes"`
}

// VersionInfo describes one version and its validity interval
type VersionInfo struct {
	Revision       int    `json:"revision"`
	Operation      string `json:"operation,omitempty"`
	From           string `json:"from"`
	To             string `json:"to,omitempty"`
	CollisionCount int    `json:"collisionCount,omitempty"`
	Link           string `json:"link"`
}

// VersionReference points at a version of another object. Several attributes
// producing the same edge are merged into one reference.
type VersionReference struct {
	Type       string   `json:"type"`
	Key        string   `json:"key"`
	Lifetime   int      `json:"lifetime,omitempty"`
	Revision   int      `json:"revision"`
	From       string   `json:"from,omitempty"`
	To         string   `json:"to,omitempty"`
	Attributes []string `json:"attributes"`
	Link       string   `json:"link,omitempty"`
}

// ErrVersionNotFound marks a lookup that matched no object version
var ErrVersionNotFound = errors.New("version not found")

// Err reports a failed lookup as a NOT_FOUND AppError, or nil on success
func (r *GetVersionResult) Err() error {
	if !r.NotFound {
		return nil
	}
	return apperrors.NewNotFoundError("version").WithCause(ErrVersionNotFound)
}

// NotFoundResult builds the single-message result for unknown objects and
// out-of-range versions
func NotFoundResult(key string) *GetVersionResult {
	return &GetVersionResult{
		NotFound: true,
		Messages: []entities.Message{entities.NewNoEntryMessage(key)},
	}
}

// VersionLink returns the lookup path of a version
func VersionLink(source string, ref valueobjects.VersionRef) string {
	return fmt.Sprintf("/api/rnd/%s/%s/%s/versions/%d", strings.ToUpper(source), ref.Type, ref.Key, ref.Version)
}

// NewVersionInfo describes a version for API consumers
func NewVersionInfo(source string, v entities.ObjectVersion) VersionInfo {
	info := VersionInfo{
		Revision:  v.Ref.Version,
		Operation: string(v.Operation),
		From:      utils.FormatTimestamp(v.ValidFrom),
		Link:      VersionLink(source, v.Ref),
	}
	if v.ValidTo != nil {
		info.To = utils.FormatTimestamp(*v.ValidTo)
	}
	if v.CollisionCount > 1 {
		info.CollisionCount = v.CollisionCount
	}
	return info
}
