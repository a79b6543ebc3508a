package notify

import (
	"context"

	"github.com/tmorrell/jot/internal/errors"
	"github.com/tmorrell/jot/internal/webex"
)

// Webex posts every notification to one chat room.
type Webex struct {
	client *webex.Client
	roomID string
}

// NewWebex creates a Webex notifier. A missing room id is a configuration
// error.
func NewWebex(client *webex.Client, roomID string) (*Webex, error) {
	if roomID == "" {
		return nil, errors.NewConfig("webex notifier requires a room id")
	}
	return &Webex{client: client, roomID: roomID}, nil
}

// WithRoom returns a copy targeting a different room, used when a webhook
// reply should land in the room the message came from.
func (w *Webex) WithRoom(roomID string) *Webex {
	return &Webex{client: w.client, roomID: roomID}
}

func (w *Webex) NotifyFiled(ctx context.Context, message string) error {
	return w.client.PostMessage(ctx, w.roomID, message)
}

func (w *Webex) NotifyNeedsReview(ctx context.Context, message string) error {
	return w.client.PostMessage(ctx, w.roomID, message)
}

func (w *Webex) NotifyDigest(ctx context.Context, message string) error {
	return w.client.PostMessage(ctx, w.roomID, message)
}
