// Package notifytest provides a recording notify.Notifier for tests.
package notifytest

import (
	"context"
	"strings"
	"sync"

	"github.com/talkincode/autoaccept/internal/notify"
)

type Sent struct {
	OwnerID int64
	Message notify.Message
}

// Recorder stores every notification it receives.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

func (r *Recorder) Notify(_ context.Context, ownerID int64, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{OwnerID: ownerID, Message: msg})
	return r.Err
}

func (r *Recorder) All() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// Containing returns the notifications whose text contains substr.
func (r *Recorder) Containing(substr string) []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sent
	for _, s := range r.sent {
		if strings.Contains(s.Message.Text, substr) {
			out = append(out, s)
		}
	}
	return out
}

// WithPhoto returns the notifications that carry a photo.
func (r *Recorder) WithPhoto() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sent
	for _, s := range r.sent {
		if len(s.Message.Photo) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// Malformed returns the Markdown notifications Telegram would refuse to parse.
func (r *Recorder) Malformed() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sent
	for _, s := range r.sent {
		if s.Message.Markdown && !MarkdownValid(s.Message.Text) {
			out = append(out, s)
		}
	}
	return out
}

// MarkdownValid reports whether text parses as Telegram legacy Markdown:
// every unescaped entity marker is closed and no bare link bracket is left.
func MarkdownValid(text string) bool {
	var open rune
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '\\' && open == 0 && i+1 < len(runes) && strings.ContainsRune("_*`[", runes[i+1]):
			i++
		case open != 0:
			if c == open {
				open = 0
			}
		case c == '_' || c == '*' || c == '`':
			open = c
		case c == '[':
			return false
		}
	}
	return open == 0
}
