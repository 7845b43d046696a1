package entities

import "fmt"

// Severity of a diagnostic message attached to a lookup result
type Severity string

const (
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Message is a human-readable diagnostic
type Message struct {
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
}

// String returns the message text
func (m Message) String() string {
	return m.Text
}

// NewNoEntryMessage is the single message used for unknown objects and
// out-of-range versions alike
func NewNoEntryMessage(key string) Message {
	return Message{
		Severity: SeverityError,
		Text:     fmt.Sprintf("There is no entry for object %s for the supplied version.", key),
	}
}

// NewNoObjectMessage reports an unknown object when listing versions
func NewNoObjectMessage(key string) Message {
	return Message{
		Severity: SeverityError,
		Text:     fmt.Sprintf("There is no entry for object %s.", key),
	}
}

// NewCollisionMessage reports that several raw changes share one version boundary
func NewCollisionMessage(count int) Message {
	return Message{
		Severity: SeverityWarning,
		Text:     fmt.Sprintf("There are %d versions of the object for this interval. The last one is displayed.", count),
	}
}
