package mtproto

import (
	"context"

	"github.com/gotd/td/tg"
)

func (c *Client) onNewMessage(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
	return c.push(ctx, u.Message, e)
}

func (c *Client) onNewChannelMessage(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
	return c.push(ctx, u.Message, e)
}

// push hands the message to the live ingestor, waiting for queue space.
func (c *Client) push(ctx context.Context, m tg.MessageClass, e tg.Entities) error {
	ev, ok := toEvent(m, e)
	if !ok {
		return nil
	}
	select {
	case c.events <- ev:
		return nil
	case <-ctx.Done():
		c.log.WarnContext(ctx, "Dropping live message on shutdown", "chat_id", ev.Message.ConversationID, "message_id", ev.Message.ID)
		return ctx.Err()
	}
}
