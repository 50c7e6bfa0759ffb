// Package power composes performance-intent events into hint directives.
//
// The service owns three mode flags. VR and sustained-performance combine
// into one of four compound hint identities (none, VR, SUSTAINED,
// VR_SUSTAINED); camera streaming is independent. Mode transitions end
// the outgoing compound hint before beginning the new one, so the engine
// never holds two compound hints at once. While either VR or sustained is
// active, lower-priority boost events are suppressed.
//
// A one-shot background sequence gates the whole surface: until the
// platform signals readiness and the engine config is loaded, every event
// resolves to a logged no-op.
package power

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"powerhintd/internal/governor"
	"powerhintd/internal/journal"
	"powerhintd/internal/sysprop"
)

// Hint names issued to the engine. The compound names cover the
// VR/sustained lattice; the rest are independent boosts.
const (
	hintVR                 = "VR"
	hintSustained          = "SUSTAINED"
	hintVRSustained        = "VR_SUSTAINED"
	hintLaunch             = "LAUNCH"
	hintAudioLowLatency    = "AUDIO_LOW_LATENCY"
	hintAudioStreaming     = "AUDIO_STREAMING"
	hintCameraLaunch       = "CAMERA_LAUNCH"
	hintCameraStreaming    = "CAMERA_STREAMING"
	hintCameraShot         = "CAMERA_SHOT"
	hintTPUBoost           = "TPU_BOOST"
	hintExpensiveRendering = "EXPENSIVE_RENDERING"
)

// AUDIO_STREAMING payload values. The TPU sub-commands are sentinels kept
// in sync with the TPU driver.
const (
	audioStreamingOff = 0
	audioStreamingOn  = 1
	tpuBoostOff       = 1000
	tpuBoostShort     = 1001
	tpuBoostLong      = 1002
)

const (
	tpuBoostShortDuration = 200 * time.Millisecond
	tpuBoostLongDuration  = 2 * time.Second

	// CAMERA_LAUNCH piggybacks a fixed launch boost; ending camera
	// streaming smooths teardown with a short one.
	launchBoostDuration    = 2500 * time.Millisecond
	cameraTeardownDuration = time.Second
)

// Property values replayed from the platform at startup.
const (
	stateCameraStreaming = "CAMERA_STREAMING"
	stateSustained       = "SUSTAINED"
	stateVR              = "VR"
	stateVRSustained     = "VR_SUSTAINED"

	audioPropOn     = "AUDIO_LOW_LATENCY"
	renderingPropOn = "EXPENSIVE_RENDERING"
)

// Engine is the hint-application engine the service drives. End of a hint
// that is not begun must be a no-op; BeginFor re-issue resets the timer.
type Engine interface {
	Begin(name string)
	BeginFor(name string, d time.Duration)
	End(name string)
	Running() bool
	Dump(w io.Writer)
}

// Interactions debounces interaction boosts before they reach the engine.
type Interactions interface {
	Acquire(strength int32)
}

// DisplayPower toggles the display's low-power mode.
type DisplayPower interface {
	SetLowPower(on bool) error
}

// Options bundles the service's collaborators and platform bindings.
type Options struct {
	// LoadEngine builds the hint engine once the platform signals
	// readiness. It runs on the initialization goroutine; a failure is
	// fatal to the process.
	LoadEngine func() (Engine, error)

	// NewInteractions builds the interaction handler over the loaded
	// engine.
	NewInteractions func(Engine) Interactions

	Gate    *governor.Gate
	Props   *sysprop.Store
	Display DisplayPower
	Journal *journal.Journal
	Log     *slog.Logger

	// InitKey reaching InitValue releases the initialization sequence.
	// The remaining keys hold mode state persisted across restarts.
	InitKey      string
	InitValue    string
	StateKey     string
	AudioKey     string
	RenderingKey string
}

// SleepStats is one low-power-state residency record. powerhintd does not
// account sleep states; the stats getters always return empty data.
type SleepStats struct {
	Name        string `json:"name"`
	ResidencyMS int64  `json:"residency_ms"`
	EntryCount  int64  `json:"entry_count"`
}

// Service is the hint-composition core.
type Service struct {
	opts Options
	log  *slog.Logger

	// ready flips exactly once, after the engine is configured and
	// persisted state replayed. Checked first by every entry point.
	ready atomic.Bool

	mu           sync.Mutex
	engine       Engine
	interactions Interactions
	vrOn         bool
	sustainedOn  bool
	cameraOn     bool

	// exit terminates the process when the engine config cannot load.
	exit func(int)
}

// New builds a Service from opts. Call Start to begin initialization.
func New(opts Options) *Service {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		opts: opts,
		log:  log,
		exit: os.Exit,
	}
}

// Start launches the one-shot initialization sequence and returns
// immediately. Cancelling ctx aborts a sequence still waiting on the
// readiness property; the service then never becomes ready.
func (s *Service) Start(ctx context.Context) {
	go s.initialize(ctx)
}

func (s *Service) initialize(ctx context.Context) {
	s.log.Info("waiting for platform readiness",
		"key", s.opts.InitKey, "value", s.opts.InitValue)
	if err := s.opts.Props.WaitFor(ctx, s.opts.InitKey, s.opts.InitValue); err != nil {
		s.log.Warn("initialization aborted", "error", err)
		return
	}

	engine, err := s.opts.LoadEngine()
	if err != nil {
		// No degraded mode: a service that cannot apply hints is worse
		// than no service.
		s.log.Error("hint engine initialization failed", "error", err)
		s.exit(1)
		return
	}

	s.mu.Lock()
	s.engine = engine
	s.interactions = s.opts.NewInteractions(engine)
	s.replayLocked()
	s.mu.Unlock()

	s.ready.Store(true)
	s.log.Info("power service ready")
}

// replayLocked restores mode state persisted across a service restart.
func (s *Service) replayLocked() {
	state := s.opts.Props.Get(s.opts.StateKey)
	switch state {
	case stateCameraStreaming:
		s.beginHint(eventReplay, hintCameraStreaming)
		s.cameraOn = true
	case stateSustained:
		s.beginHint(eventReplay, hintSustained)
		s.sustainedOn = true
	case stateVR:
		s.beginHint(eventReplay, hintVR)
		s.vrOn = true
	case stateVRSustained:
		s.beginHint(eventReplay, hintVRSustained)
		s.vrOn = true
		s.sustainedOn = true
	case "":
		s.log.Debug("starting with clean mode state")
	default:
		s.log.Warn("unrecognized persisted mode state", "value", state)
	}
	if state != "" {
		s.log.Info("restored mode state", "state", state)
	}

	if s.opts.Props.Get(s.opts.AudioKey) == audioPropOn {
		s.beginHint(eventReplay, hintAudioLowLatency)
	}
	if s.opts.Props.Get(s.opts.RenderingKey) == renderingPropOn {
		s.beginHint(eventReplay, hintExpensiveRendering)
	}
}

// Ready reports whether initialization has completed.
func (s *Service) Ready() bool {
	return s.ready.Load()
}

// Modes reports the current mode flags.
func (s *Service) Modes() (vr, sustained, camera bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vrOn, s.sustainedOn, s.cameraOn
}

// EngineRunning reports whether the hint engine is started. Always false
// before initialization completes.
func (s *Service) EngineRunning() bool {
	if !s.ready.Load() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Running()
}

// HandleEvent routes one performance-intent event. Events arriving while
// the CPU governor is unsupported, or before initialization completes,
// resolve to logged no-ops.
func (s *Service) HandleEvent(kind EventKind, data int32) {
	if !s.opts.Gate.Eligible() {
		s.log.Debug("governor not eligible, dropping event", "event", kind)
		return
	}
	if !s.ready.Load() {
		s.log.Debug("not ready, dropping event", "event", kind)
		return
	}

	// The display toggle is a synchronous bus round trip and never
	// touches the engine; it stays off the dispatch mutex.
	if kind == EventLowPower {
		if err := s.opts.Display.SetLowPower(data != 0); err != nil {
			s.log.Error("display low-power toggle failed", "error", err)
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	suppressed := s.vrOn || s.sustainedOn

	switch kind {
	case EventInteraction:
		if suppressed {
			s.log.Debug("interaction suppressed by active mode")
			return
		}
		s.interactions.Acquire(data)

	case EventSustainedPerformance:
		s.setSustainedLocked(kind, data != 0)

	case EventVRMode:
		s.setVRLocked(kind, data != 0)

	case EventLaunch:
		if suppressed {
			s.log.Debug("launch suppressed by active mode")
			return
		}
		if data != 0 {
			s.beginHint(kind, hintLaunch)
		} else {
			s.endHint(kind, hintLaunch)
		}

	case EventAudioLowLatency:
		if data != 0 {
			s.beginHint(kind, hintAudioLowLatency)
		} else {
			s.endHint(kind, hintAudioLowLatency)
		}

	case EventAudioStreaming:
		s.handleAudioStreamingLocked(data, suppressed)

	case EventCameraLaunch:
		switch {
		case data > 0:
			s.beginHintFor(kind, hintCameraLaunch, time.Duration(data)*time.Millisecond)
			s.beginHintFor(kind, hintLaunch, launchBoostDuration)
		case data == 0:
			s.endHint(kind, hintCameraLaunch)
		default:
			s.log.Error("invalid camera launch payload", "data", data)
		}

	case EventCameraStreaming:
		switch {
		case data > 0:
			s.setCameraStreamingLocked(kind, true)
		case data == 0:
			s.setCameraStreamingLocked(kind, false)
		default:
			s.log.Error("invalid camera streaming payload", "data", data)
		}

	case EventCameraShot:
		switch {
		case data > 0:
			s.beginHintFor(kind, hintCameraShot, time.Duration(data)*time.Millisecond)
		case data == 0:
			s.endHint(kind, hintCameraShot)
		default:
			s.log.Error("invalid camera shot payload", "data", data)
		}

	case EventExpensiveRendering:
		if suppressed {
			s.log.Debug("expensive rendering suppressed by active mode")
			return
		}
		if data > 0 {
			s.beginHint(kind, hintExpensiveRendering)
		} else {
			s.endHint(kind, hintExpensiveRendering)
		}

	default:
		s.log.Warn("unknown event kind", "event", kind)
	}
}

// handleAudioStreamingLocked decodes the overloaded AUDIO_STREAMING
// payload. An active VR or sustained mode suppresses the whole event,
// TPU sub-commands included.
func (s *Service) handleAudioStreamingLocked(data int32, suppressed bool) {
	if suppressed {
		s.log.Debug("audio streaming suppressed by active mode")
		return
	}

	switch data {
	case audioStreamingOn:
		s.beginHint(EventAudioStreaming, hintAudioStreaming)
	case audioStreamingOff:
		s.endHint(EventAudioStreaming, hintAudioStreaming)
	case tpuBoostShort:
		s.beginHintFor(EventAudioStreaming, hintTPUBoost, tpuBoostShortDuration)
	case tpuBoostLong:
		s.beginHintFor(EventAudioStreaming, hintTPUBoost, tpuBoostLongDuration)
	case tpuBoostOff:
		s.endHint(EventAudioStreaming, hintTPUBoost)
	default:
		s.log.Error("invalid audio streaming payload", "data", data)
	}
}

// setSustainedLocked drives the sustained axis of the compound lattice.
func (s *Service) setSustainedLocked(event EventKind, active bool) {
	if active == s.sustainedOn {
		return
	}
	if active {
		if s.vrOn {
			s.endHint(event, hintVR)
			s.beginHint(event, hintVRSustained)
		} else {
			s.beginHint(event, hintSustained)
		}
	} else {
		// Only one of the two was truly active; the engine treats
		// ending the other as a no-op.
		s.endHint(event, hintVRSustained)
		s.endHint(event, hintSustained)
		if s.vrOn {
			s.beginHint(event, hintVR)
		}
	}
	s.sustainedOn = active
}

// setVRLocked mirrors setSustainedLocked with the roles swapped.
func (s *Service) setVRLocked(event EventKind, active bool) {
	if active == s.vrOn {
		return
	}
	if active {
		if s.sustainedOn {
			s.endHint(event, hintSustained)
			s.beginHint(event, hintVRSustained)
		} else {
			s.beginHint(event, hintVR)
		}
	} else {
		s.endHint(event, hintVRSustained)
		s.endHint(event, hintVR)
		if s.sustainedOn {
			s.beginHint(event, hintSustained)
		}
	}
	s.vrOn = active
}

// setCameraStreamingLocked toggles the independent camera-streaming hint.
// Teardown gets a short launch boost so the viewfinder close stays smooth.
func (s *Service) setCameraStreamingLocked(event EventKind, active bool) {
	if active {
		s.beginHint(event, hintCameraStreaming)
	} else {
		s.endHint(event, hintCameraStreaming)
		s.beginHintFor(event, hintCameraLaunch, cameraTeardownDuration)
	}
	s.cameraOn = active
}

// SetInteractive is accepted for compatibility and has no effect.
func (s *Service) SetInteractive(interactive bool) {
	s.log.Debug("ignoring interactive request", "interactive", interactive)
}

// SetFeature is accepted for compatibility and has no effect.
func (s *Service) SetFeature(feature string, activate bool) {
	s.log.Debug("ignoring feature request", "feature", feature, "activate", activate)
}

// PlatformLowPowerStats always returns empty data; sleep-state accounting
// lives in the power-stats service.
func (s *Service) PlatformLowPowerStats() ([]SleepStats, error) {
	s.log.Error("platform low-power stats not supported, use the power-stats service")
	return nil, nil
}

// SubsystemLowPowerStats always returns empty data; sleep-state accounting
// lives in the power-stats service.
func (s *Service) SubsystemLowPowerStats() ([]SleepStats, error) {
	s.log.Error("subsystem low-power stats not supported, use the power-stats service")
	return nil, nil
}

// Dump writes the mode summary followed by the engine diagnostics to w.
// Before initialization completes nothing is written.
func (s *Service) Dump(w io.Writer) error {
	if !s.ready.Load() {
		return nil
	}

	s.mu.Lock()
	vr, sustained, camera := s.vrOn, s.sustainedOn, s.cameraOn
	engine := s.engine
	s.mu.Unlock()

	_, err := fmt.Fprintf(w,
		"HintManager Running: %t\nVRMode: %t\nCameraStreamingMode: %t\nSustainedPerformanceMode: %t\n",
		engine.Running(), vr, camera, sustained)
	if err != nil {
		return err
	}
	engine.Dump(w)
	return nil
}

// beginHint, beginHintFor and endHint wrap the engine calls with the
// journal side-channel. Journal failures never affect dispatch.

func (s *Service) beginHint(event EventKind, name string) {
	s.engine.Begin(name)
	s.record(event, name, "begin", 0)
}

func (s *Service) beginHintFor(event EventKind, name string, d time.Duration) {
	s.engine.BeginFor(name, d)
	s.record(event, name, "begin_for", d)
}

func (s *Service) endHint(event EventKind, name string) {
	s.engine.End(name)
	s.record(event, name, "end", 0)
}

func (s *Service) record(event EventKind, hint, action string, d time.Duration) {
	if err := s.opts.Journal.Record(string(event), hint, action, d); err != nil {
		s.log.Warn("journal record failed", "error", err)
	}
}
