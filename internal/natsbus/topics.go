package natsbus

import "fmt"

// Topic patterns for NATS pub/sub communication.

// TopicAgentInvoke is the request/reply subject an analysis agent serves.
func TopicAgentInvoke(provider, role string) string {
	return fmt.Sprintf("agents.%s.%s.invoke", provider, role)
}

// TopicRunEvents carries lifecycle events for one analysis run.
func TopicRunEvents(runID string) string {
	return fmt.Sprintf("analysis.%s.events", runID)
}

// TopicScheduleEvents carries scheduler activity for one scheduled analysis.
func TopicScheduleEvents(scheduleID string) string {
	return fmt.Sprintf("schedules.%s.events", scheduleID)
}

const (
	TopicRunEventsAll = "analysis.*.events"
	TopicScheduleAll  = "schedules.*.events"
)
