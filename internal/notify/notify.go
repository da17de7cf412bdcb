// Package notify carries best-effort owner notifications from the core to the
// chat front-end over an in-process event bus.
package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/asaskevich/EventBus"
	"go.uber.org/zap"
)

// TopicOwnerNotify is the bus topic every owner notification is published on.
const TopicOwnerNotify = "owner:notify"

// CallbackMainMenu is the button data that returns the owner to the main menu.
const CallbackMainMenu = "main_menu"

var ErrNoSubscriber = errors.New("notify: no subscriber on bus")

// Button is an inline action rendered under a message.
type Button struct {
	Label string
	Data  string
}

// Message is an outbound notification. When Photo is set, Text is used as
// the caption.
type Message struct {
	Text     string
	Markdown bool
	Photo    []byte
	Buttons  [][]Button
}

// Notifier sends a message to an owner. Delivery is not guaranteed.
type Notifier interface {
	Notify(ctx context.Context, ownerID int64, msg Message) error
}

// Handler receives published notifications.
type Handler func(ownerID int64, msg Message)

// BusNotifier publishes notifications on an EventBus topic.
type BusNotifier struct {
	bus EventBus.Bus
}

func NewBusNotifier(bus EventBus.Bus) *BusNotifier {
	if bus == nil {
		bus = EventBus.New()
	}
	return &BusNotifier{bus: bus}
}

func (n *BusNotifier) Notify(_ context.Context, ownerID int64, msg Message) error {
	if !n.bus.HasCallback(TopicOwnerNotify) {
		zap.L().Warn("notify: dropping message, no subscriber",
			zap.Int64("owner_id", ownerID), zap.String("namespace", "notify"))
		return ErrNoSubscriber
	}
	n.bus.Publish(TopicOwnerNotify, ownerID, msg)
	return nil
}

// Subscribe registers h. Handlers run on a bus goroutine, one message at a
// time, so owners see notifications in publish order.
func (n *BusNotifier) Subscribe(h Handler) error {
	return n.bus.SubscribeAsync(TopicOwnerNotify, func(ownerID int64, msg Message) {
		defer func() {
			if err := recover(); err != nil {
				zap.S().Errorf("notify: handler panic: %v", err)
			}
		}()
		h(ownerID, msg)
	}, true)
}

// Wait blocks until all published messages were handled.
func (n *BusNotifier) Wait() {
	n.bus.WaitAsync()
}

// Send is a convenience wrapper that logs delivery failures instead of
// returning them; the core never depends on a notification arriving.
func Send(ctx context.Context, n Notifier, ownerID int64, msg Message) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, ownerID, msg); err != nil {
		zap.L().Warn("notify: send failed", zap.Int64("owner_id", ownerID), zap.Error(err))
	}
}

// Text builds a markdown text message.
func Text(text string) Message {
	return Message{Text: text, Markdown: true}
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// Escape quotes dynamic text (error strings, group subjects, paths) for a
// Markdown message so it is shown verbatim.
func Escape(s string) string {
	return markdownEscaper.Replace(s)
}
