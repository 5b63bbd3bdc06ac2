// Package message holds the single user-facing outcome banner of a workflow.
package message

import (
	"fmt"
	"io"
	"sync"
)

type Intent string

const (
	Critical Intent = "critical"
	Positive Intent = "positive"
)

// Message is a human-readable outcome tagged with a severity.
type Message struct {
	Intent Intent `json:"intent"`
	Text   string `json:"text"`
}

func (m Message) String() string {
	return fmt.Sprintf("[%s] %s", m.Intent, m.Text)
}

// Sink receives workflow outcomes. Show replaces any active message and
// Clear removes it; clearing an empty sink is a no-op.
type Sink interface {
	Show(intent Intent, text string)
	Clear()
}

// Bar is a Sink that keeps exactly zero or one active message.
type Bar struct {
	mu       sync.RWMutex
	current  *Message
	onChange func(Message, bool)
}

var _ Sink = (*Bar)(nil)

func NewBar() *Bar {
	return &Bar{}
}

// OnChange registers a callback invoked after every Show and after every
// Clear that actually removed a message.
func (b *Bar) OnChange(fn func(msg Message, active bool)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

func (b *Bar) Show(intent Intent, text string) {
	b.mu.Lock()
	msg := Message{Intent: intent, Text: text}
	b.current = &msg
	fn := b.onChange
	b.mu.Unlock()

	if fn != nil {
		fn(msg, true)
	}
}

func (b *Bar) Clear() {
	b.mu.Lock()
	if b.current == nil {
		b.mu.Unlock()
		return
	}
	b.current = nil
	fn := b.onChange
	b.mu.Unlock()

	if fn != nil {
		fn(Message{}, false)
	}
}

// Current returns the active message, if any.
func (b *Bar) Current() (Message, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current == nil {
		return Message{}, false
	}
	return *b.current, true
}

// Printer returns a callback for OnChange that writes each shown message to w.
func Printer(w io.Writer) func(Message, bool) {
	return func(msg Message, active bool) {
		if active {
			fmt.Fprintln(w, msg.String())
		}
	}
}
