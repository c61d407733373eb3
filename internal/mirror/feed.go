package mirror

import (
	"context"

	"sparkclean/internal/models"
	"sparkclean/internal/realtime"
)

// HubFeed subscribes straight to an in-process hub. Used when the store runs
// next to the server, and in tests. A nil authorize admits every subscription.
type HubFeed struct {
	hub       *realtime.Hub
	authorize func() realtime.Authorizer
}

// NewHubFeed builds a feed over hub. authorize is asked for the current
// authorizer on every Subscribe, so it can follow sign in and sign out.
func NewHubFeed(hub *realtime.Hub, authorize func() realtime.Authorizer) *HubFeed {
	return &HubFeed{hub: hub, authorize: authorize}
}

func (f *HubFeed) Subscribe(ctx context.Context, table string, filter realtime.Filter) (Subscription, error) {
	if f.authorize != nil {
		if check := f.authorize(); check != nil {
			narrowed, err := check(table, filter)
			if err != nil {
				return nil, err
			}
			filter = narrowed
		}
	}
	return &hubSubscription{hub: f.hub, sub: f.hub.Subscribe(table, filter)}, nil
}

type hubSubscription struct {
	hub *realtime.Hub
	sub *realtime.Subscription
}

func (s *hubSubscription) Changes() <-chan models.Change { return s.sub.Changes() }

func (s *hubSubscription) Close() error {
	s.hub.Unsubscribe(s.sub)
	return nil
}
