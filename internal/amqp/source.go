package amqp

import (
	"context"
	"errors"
	"fmt"

	"gigledger/internal/entitlement"
)

// ErrNotRecipient marks a message addressed to another user. The per-user
// queue should never carry one; the client drops it without requeueing.
var ErrNotRecipient = errors.New("amqp: message addressed to another user")

type entitlementConsumer interface {
	ConsumeEntitlements(ctx context.Context, handler func(*EntitlementMessage) error) error
}

// EntitlementSource adapts the user's entitlement queue to
// entitlement.Source.
type EntitlementSource struct {
	consumer entitlementConsumer
	userID   string
}

var _ entitlement.Source = (*EntitlementSource)(nil)

func NewEntitlementSource(c *Client, userID string) *EntitlementSource {
	return &EntitlementSource{consumer: c, userID: userID}
}

func (s *EntitlementSource) Updates(ctx context.Context) (<-chan entitlement.Status, error) {
	out := make(chan entitlement.Status)
	go func() {
		defer close(out)
		_ = s.consumer.ConsumeEntitlements(ctx, func(msg *EntitlementMessage) error {
			if msg.UserID != s.userID {
				return fmt.Errorf("%w: %s", ErrNotRecipient, msg.UserID)
			}
			select {
			case out <- msg.Status():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return out, nil
}
