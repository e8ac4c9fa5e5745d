package service

import (
	"context"
	"log"

	"github.com/inngest/inngestgo"
)

type EventPublisher struct {
	client inngestgo.Client
}

func NewEventPublisher() (*EventPublisher, error) {
	client, err := inngestgo.NewClient(inngestgo.ClientOpts{
		AppID: "smartsubs-api",
	})
	if err != nil {
		return nil, err
	}
	return &EventPublisher{client: client}, nil
}

// SendWatchlistChanged nudges the background recompute after a watchlist
// mutation. Failures are logged, never surfaced to the mutating request.
func (p *EventPublisher) SendWatchlistChanged(ctx context.Context, userID string, externalID int64, action string) {
	if p == nil {
		return
	}
	if _, err := p.client.Send(ctx, inngestgo.Event{
		Name: "watchlist/record.changed",
		Data: map[string]any{
			"user_id":     userID,
			"external_id": externalID,
			"action":      action,
		},
	}); err != nil {
		log.Printf("send watchlist/record.changed user_id=%s: %v", userID, err)
	}
}
