package app

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"wcp-bridge/server/internal/model"
	"wcp-bridge/server/internal/platform/logging"
	"wcp-bridge/server/internal/protocol"
)

// HandleMessage parses one inbound message and returns the reply to write, if any.
// after, when non-nil, must run once the reply has been written.
func (s *Service) HandleMessage(ctx context.Context, data []byte) (reply []byte, after func()) {
	cmd, err := protocol.Parse(data)
	if err != nil {
		logging.Component("app").WithError(err).Debug("rejected message")
		s.Metrics.IncError(errorKind(err))
		return protocol.ErrorFrom(err, string(KindCommandFailed)), nil
	}
	defer cmd.Release()

	if cmd.IsGreeting() {
		return nil, nil
	}

	reply, after, err = s.Handle(ctx, cmd)
	if err != nil {
		s.Metrics.IncError(errorKind(err))
		return ErrorReply(err), nil
	}
	return reply, after
}

// Handle runs one command against the viewer and returns the encoded response, plus the
// follow-up to run once the response is on the wire (the waveforms_loaded event after a
// load, the daemon stop after shutdown). The greeting sentinel yields nothing.
func (s *Service) Handle(ctx context.Context, cmd protocol.Command) (reply []byte, after func(), err error) {
	if cmd.IsGreeting() {
		return nil, nil, nil
	}
	name := cmd.Name()

	ctx, span := s.tracer.Start(ctx, "wcp."+name)
	span.SetAttributes(attribute.String("wcp.command", name))
	defer span.End()

	start := time.Now()
	reply, after, err = s.dispatch(ctx, cmd)
	s.Metrics.ObserveCommand(name, time.Since(start))

	logger := logging.Component("app").WithField("command", name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WithError(err).Warn("command failed")
		return nil, nil, &CommandError{Command: name, Err: err}
	}
	logger.Debug("command handled")
	return reply, after, nil
}

func (s *Service) dispatch(ctx context.Context, cmd protocol.Command) ([]byte, func(), error) {
	v := s.Viewer
	switch p := cmd.Payload.(type) {
	case *protocol.GetItemList:
		return protocol.ItemListResponse(v.ItemList()), nil, nil

	case *protocol.GetItemInfo:
		items, err := v.ItemInfo(p.IDs)
		if err != nil {
			return nil, nil, err
		}
		return protocol.ItemInfoResponse(items), nil, nil

	case *protocol.SetItemColor:
		return ack(v.SetItemColor(p.ID, p.Color))

	case *protocol.AddVariables:
		return added(cmd)(v.AddVariables(p.Variables))

	case *protocol.AddScope:
		return added(cmd)(v.AddScope(p.Scope, p.Recursive))

	case *protocol.AddItems:
		return added(cmd)(v.AddItems(p.Items, p.Recursive))

	case *protocol.AddMarkers:
		return added(cmd)(v.AddMarkers(p.Markers))

	case *protocol.RemoveItems:
		return ack(v.RemoveItems(p.IDs))

	case *protocol.FocusItem:
		return ack(v.FocusItem(p.ID))

	case *protocol.Clear:
		return ack(v.Clear())

	case *protocol.SetViewportTo:
		return ack(v.SetViewportTo(p.Timestamp))

	case *protocol.SetViewportRange:
		return ack(v.SetViewportRange(p.Start, p.End))

	case *protocol.ZoomToFit:
		return ack(v.ZoomToFit(p.ViewportIdx))

	case *protocol.Load:
		return s.loaded(v.Load(ctx, p.Source))

	case *protocol.Reload:
		return s.loaded(v.Reload(ctx))

	case *protocol.Shutdown:
		logging.Component("app").Info("shutdown requested by client")
		return protocol.Ack(), s.shutdown, nil

	default:
		return nil, nil, fmt.Errorf("unhandled payload %T", cmd.Payload)
	}
}

// loaded acks a finished load and schedules the waveforms_loaded event behind the ack.
func (s *Service) loaded(source string, err error) ([]byte, func(), error) {
	if err != nil {
		return nil, nil, err
	}
	return protocol.Ack(), func() { _ = s.NotifyWaveformsLoaded(source) }, nil
}

func ack(err error) ([]byte, func(), error) {
	if err != nil {
		return nil, nil, err
	}
	return protocol.Ack(), nil, nil
}

func added(cmd protocol.Command) func([]model.ItemRef, error) ([]byte, func(), error) {
	return func(ids []model.ItemRef, err error) ([]byte, func(), error) {
		if err != nil {
			return nil, nil, err
		}
		return protocol.AddItemsResponse(cmd.Name(), ids), nil, nil
	}
}
