package monitor

import (
	"conclave/internal/natsbus"
)

// NATSSink publishes lifecycle events to the run's event topic so the web
// layer and any external observer can follow along.
type NATSSink struct {
	client *natsbus.Client
}

func NewNATSSink(client *natsbus.Client) *NATSSink {
	return &NATSSink{client: client}
}

func (s *NATSSink) OnEvent(ev Event) error {
	if s.client == nil {
		return nil
	}
	return s.client.PublishJSON(natsbus.TopicRunEvents(ev.RunID), ev)
}
