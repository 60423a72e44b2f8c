package domain

import "time"

// EventType names a lifecycle notification published by the resilience helper.
type EventType string

const (
	EventOnline              EventType = "online"
	EventOffline             EventType = "offline"
	EventRetryQueued         EventType = "retryQueued"
	EventRetrySuccess        EventType = "retrySuccess"
	EventRetryFailed         EventType = "retryFailed"
	EventOfflineDataStored   EventType = "offlineDataStored"
	EventOfflineDataCleared  EventType = "offlineDataCleared"
	EventPerformanceMeasured EventType = "performanceMeasured"
	EventPerformanceError    EventType = "performanceError"
)

// AllEventTypes lists every event the helper can publish.
var AllEventTypes = []EventType{
	EventOnline,
	EventOffline,
	EventRetryQueued,
	EventRetrySuccess,
	EventRetryFailed,
	EventOfflineDataStored,
	EventOfflineDataCleared,
	EventPerformanceMeasured,
	EventPerformanceError,
}

// Event is a single published notification. Payload holds one of the
// typed payload structs of the resilience package.
type Event struct {
	Type      EventType
	EmittedAt time.Time
	Payload   any
}
