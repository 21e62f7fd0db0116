package app

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"wcp-bridge/server/internal/metrics"
	"wcp-bridge/server/internal/model"
	"wcp-bridge/server/internal/platform/logging"
	"wcp-bridge/server/internal/protocol"
)

// Viewer is the waveform host the dispatcher drives.
type Viewer interface {
	ItemList() []model.ItemRef
	ItemInfo(ids []model.ItemRef) ([]model.ItemInfo, error)
	SetItemColor(id model.ItemRef, color string) error
	AddVariables(names []string) ([]model.ItemRef, error)
	AddScope(scope string, recursive bool) ([]model.ItemRef, error)
	AddItems(items []string, recursive bool) ([]model.ItemRef, error)
	AddMarkers(markers []model.Marker) ([]model.ItemRef, error)
	RemoveItems(ids []model.ItemRef) error
	FocusItem(id model.ItemRef) error
	Clear() error
	SetViewportTo(timestamp int64) error
	SetViewportRange(start, end int64) error
	ZoomToFit(viewportIdx int) error
	// Load and Reload return the source to announce in waveforms_loaded.
	Load(ctx context.Context, source string) (string, error)
	Reload(ctx context.Context) (string, error)
}

// MessageSender delivers an encoded message to the connected client.
type MessageSender interface {
	Send(msg []byte) error
}

// Service implements the application logic.
type Service struct {
	Viewer  Viewer
	Metrics *metrics.Metrics

	tracer trace.Tracer

	mu       sync.Mutex
	sender   MessageSender
	shutdown func()
}

// NewService creates a new application service. onShutdown runs after a shutdown command
// has been acknowledged; it may be nil.
func NewService(v Viewer, m *metrics.Metrics, onShutdown func()) *Service {
	return &Service{
		Viewer:   v,
		Metrics:  m,
		tracer:   otel.Tracer("wcp-bridge/server/internal/app"),
		shutdown: onShutdown,
	}
}

// Greeting is sent to every client as soon as it connects.
func (s *Service) Greeting() []byte {
	return protocol.Greeting()
}

// Attach makes sender the target of events, replacing any earlier client.
// The returned func detaches it again unless a newer client took over.
func (s *Service) Attach(sender MessageSender) (detach func()) {
	s.mu.Lock()
	s.sender = sender
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		if s.sender == sender {
			s.sender = nil
		}
		s.mu.Unlock()
	}
}

// Attached reports whether a client is receiving events.
func (s *Service) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sender != nil
}

func (s *Service) NotifyWaveformsLoaded(source string) error {
	return s.notify(protocol.EventWaveformsLoaded, protocol.WaveformsLoadedEvent(source))
}

func (s *Service) NotifyGotoDeclaration(variable string) error {
	return s.notify(protocol.EventGotoDeclaration, protocol.GotoDeclarationEvent(variable))
}

func (s *Service) notify(event string, msg []byte) error {
	s.mu.Lock()
	sender := s.sender
	s.mu.Unlock()
	if sender == nil {
		logging.Component("app").WithField("event", event).Debug("no client attached, event dropped")
		return nil
	}
	if err := sender.Send(msg); err != nil {
		logging.Component("app").WithField("event", event).WithError(err).Warn("event send failed")
		return err
	}
	s.Metrics.IncEvent(event)
	return nil
}
