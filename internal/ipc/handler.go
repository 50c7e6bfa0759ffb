package ipc

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"powerhintd/internal/governor"
	"powerhintd/internal/power"
)

// DaemonHandler implements Handler over the power service.
type DaemonHandler struct {
	version   string
	startedAt time.Time
	service   *power.Service
	gate      *governor.Gate
	log       *slog.Logger
}

// DaemonHandlerConfig configures the daemon handler
type DaemonHandlerConfig struct {
	Version string
	Service *power.Service
	Gate    *governor.Gate
	Log     *slog.Logger
}

// NewDaemonHandler creates a new daemon handler
func NewDaemonHandler(cfg DaemonHandlerConfig) *DaemonHandler {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &DaemonHandler{
		version:   cfg.Version,
		startedAt: time.Now(),
		service:   cfg.Service,
		gate:      cfg.Gate,
		log:       log,
	}
}

// HandleMessage processes an IPC message
func (h *DaemonHandler) HandleMessage(ctx context.Context, msg *Message) (*Message, error) {
	switch msg.Header.Type {
	case MsgHintEvent:
		return h.handleHintEvent(msg)

	case MsgStatusRequest:
		return h.handleStatus(msg)

	case MsgDumpRequest:
		return h.handleDump(msg)

	default:
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest,
			fmt.Sprintf("unsupported message type: 0x%04x", uint16(msg.Header.Type))), nil
	}
}

// handleHintEvent injects one event into the service. Events the service
// drops (not ready, governor, suppression) still acknowledge: the no-op
// outcome is success.
func (h *DaemonHandler) handleHintEvent(msg *Message) (*Message, error) {
	var req HintEventRequest
	if err := Decode(msg.Payload, &req); err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid hint event"), nil
	}

	kind, err := power.ParseEventKind(req.Kind)
	if err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, err.Error()), nil
	}

	h.log.Debug("ipc hint event", "kind", kind, "data", req.Data)
	h.service.HandleEvent(kind, req.Data)
	return NewMessage(MsgHintAck, msg.Header.RequestID, nil), nil
}

func (h *DaemonHandler) handleStatus(msg *Message) (*Message, error) {
	vr, sustained, camera := h.service.Modes()
	resp := &StatusResponse{
		Version:          h.version,
		StartedAt:        h.startedAt,
		Uptime:           time.Since(h.startedAt),
		Ready:            h.service.Ready(),
		Governor:         h.gate.Current(),
		GovernorEligible: h.gate.Eligible(),
		EngineRunning:    h.service.EngineRunning(),
		VRMode:           vr,
		SustainedMode:    sustained,
		CameraStreaming:  camera,
	}
	return NewResponse(MsgStatusResponse, msg.Header.RequestID, resp)
}

func (h *DaemonHandler) handleDump(msg *Message) (*Message, error) {
	var buf bytes.Buffer
	if err := h.service.Dump(&buf); err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInternal, err.Error()), nil
	}
	return NewResponse(MsgDumpResponse, msg.Header.RequestID, &DumpResponse{Text: buf.String()})
}
