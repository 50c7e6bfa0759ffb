package power

import "fmt"

// EventKind identifies one performance-intent event.
type EventKind string

// Event surface accepted by HandleEvent.
const (
	EventInteraction          EventKind = "INTERACTION"
	EventSustainedPerformance EventKind = "SUSTAINED_PERFORMANCE"
	EventVRMode               EventKind = "VR_MODE"
	EventLaunch               EventKind = "LAUNCH"
	EventLowPower             EventKind = "LOW_POWER"
	EventAudioLowLatency      EventKind = "AUDIO_LOW_LATENCY"
	EventAudioStreaming       EventKind = "AUDIO_STREAMING"
	EventCameraLaunch         EventKind = "CAMERA_LAUNCH"
	EventCameraStreaming      EventKind = "CAMERA_STREAMING"
	EventCameraShot           EventKind = "CAMERA_SHOT"
	EventExpensiveRendering   EventKind = "EXPENSIVE_RENDERING"
)

// eventReplay labels journal entries written while restoring persisted
// state at startup. It is not part of the inbound event surface.
const eventReplay EventKind = "REPLAY"

// EventKinds returns the accepted kinds in a stable order.
func EventKinds() []EventKind {
	return []EventKind{
		EventInteraction,
		EventSustainedPerformance,
		EventVRMode,
		EventLaunch,
		EventLowPower,
		EventAudioLowLatency,
		EventAudioStreaming,
		EventCameraLaunch,
		EventCameraStreaming,
		EventCameraShot,
		EventExpensiveRendering,
	}
}

// ParseEventKind maps a wire or CLI string onto an EventKind.
func ParseEventKind(s string) (EventKind, error) {
	for _, k := range EventKinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown event kind %q", s)
}
