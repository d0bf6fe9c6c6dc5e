package transcript

import (
	"strings"
	"sync"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Utterance is the complete text of one role for one turn.
type Utterance struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Aggregator accumulates transcript fragments per role until the turn
// completes.
type Aggregator struct {
	mu      sync.Mutex
	buffers map[Role]*strings.Builder
}

func NewAggregator() *Aggregator {
	return &Aggregator{buffers: map[Role]*strings.Builder{
		RoleUser:  {},
		RoleModel: {},
	}}
}

// Append adds a fragment verbatim; fragments carry their own spacing.
func (a *Aggregator) Append(role Role, fragment string) {
	if fragment == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	buffer, ok := a.buffers[role]
	if !ok {
		buffer = &strings.Builder{}
		a.buffers[role] = buffer
	}
	buffer.WriteString(fragment)
}

// Pending returns the running, unflushed text of role.
func (a *Aggregator) Pending(role Role) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if buffer, ok := a.buffers[role]; ok {
		return buffer.String()
	}
	return ""
}

// Flush returns one utterance per non-empty buffer, user first, and resets
// all buffers.
func (a *Aggregator) Flush() []Utterance {
	a.mu.Lock()
	defer a.mu.Unlock()

	var utterances []Utterance
	for _, role := range []Role{RoleUser, RoleModel} {
		buffer := a.buffers[role]
		if text := strings.TrimSpace(buffer.String()); text != "" {
			utterances = append(utterances, Utterance{Role: role, Text: text})
		}
		buffer.Reset()
	}
	return utterances
}
