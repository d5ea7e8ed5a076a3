package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/r58io/core-service/internal/apperr"
	"github.com/r58io/core-service/internal/constants"
	"github.com/r58io/core-service/internal/eventbus"
	"github.com/r58io/core-service/internal/recorder"
)

const methodTimeout = 10 * time.Second

// protoError covers control-API-level failures (malformed params, bad
// tokens) that have no domain Kind in internal/apperr, which reserves its
// vocabulary for the eleven kinds raised by the capture/recording pipeline.
type protoError struct {
	kind    string
	message string
}

func (e *protoError) Error() string { return e.message }

func newProtoError(kind, message string) error {
	return &protoError{kind: kind, message: message}
}

// dispatch routes one decoded Request to its handler, gating everything but
// "authenticate" behind a valid JWT per spec.md §6.
func (s *Server) dispatch(c *connection, req Request) {
	if req.Method != constants.MethodAuthenticate && atomic.LoadInt32(&c.authenticated) == 0 {
		s.send(c, Response{ID: req.ID, Error: &ErrorDescriptor{
			Kind:    constants.KindUnauthorized,
			Code:    constants.CodeForProtoKind(constants.KindUnauthorized),
			Message: "connection not authenticated",
		}})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), methodTimeout)
	defer cancel()

	var result interface{}
	var err error

	switch req.Method {
	case constants.MethodAuthenticate:
		result, err = s.methodAuthenticate(c, req.Params)
	case constants.MethodStartSession:
		result, err = s.methodStartSession(ctx, req.Params)
	case constants.MethodStopSession:
		result, err = s.methodStopSession(ctx, req.Params)
	case constants.MethodStartCamera:
		result, err = s.methodStartCamera(ctx, req.Params)
	case constants.MethodStopCamera:
		result, err = s.methodStopCamera(ctx, req.Params)
	case constants.MethodGetStatus:
		result, err = s.methodStatus()
	case constants.MethodSubscribe:
		result, err = s.methodSubscribe(c, req.Params)
	default:
		s.send(c, Response{ID: req.ID, Error: &ErrorDescriptor{
			Kind:    constants.KindMethodNotFound,
			Code:    constants.CodeForProtoKind(constants.KindMethodNotFound),
			Message: "unknown method: " + req.Method,
		}})
		return
	}

	if err != nil {
		s.send(c, Response{ID: req.ID, Error: describeError(err)})
		return
	}

	data, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		s.send(c, Response{ID: req.ID, Error: &ErrorDescriptor{Kind: constants.KindInternal, Code: constants.CodeInternalError, Message: "failed to marshal result"}})
		return
	}
	s.send(c, Response{ID: req.ID, Result: data})
}

// describeError converts an apperr.Error into the structured descriptor
// spec.md §7 requires, mirroring event payload shape. Unrecognized errors
// fall back to a generic "internal" kind rather than leaking Go error text
// that might reveal implementation details.
func describeError(err error) *ErrorDescriptor {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return &ErrorDescriptor{Kind: string(ae.Kind), Code: constants.CodeForKind(ae.Kind), Message: err.Error(), Subject: ae.Subject}
	}
	var pe *protoError
	if errors.As(err, &pe) {
		return &ErrorDescriptor{Kind: pe.kind, Code: constants.CodeForProtoKind(pe.kind), Message: pe.message}
	}
	return &ErrorDescriptor{Kind: constants.KindInternal, Code: constants.CodeInternalError, Message: "internal error"}
}

func (s *Server) methodAuthenticate(c *connection, raw json.RawMessage) (interface{}, error) {
	var params AuthenticateParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, newProtoError(constants.KindInvalidArgument, "malformed authenticate params")
	}
	claims, err := s.jwtHandler.ValidateToken(params.Token)
	if err != nil {
		return nil, newProtoError(constants.KindUnauthorized, "invalid or expired token")
	}
	c.clientID = claims.ClientID
	c.role = claims.Role
	atomic.StoreInt32(&c.authenticated, 1)
	return map[string]string{"client_id": claims.ClientID, "role": claims.Role}, nil
}

func (s *Server) methodStartSession(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params StartSessionParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, newProtoError(constants.KindInvalidArgument, "malformed start_session params")
		}
	}
	return s.recorder.StartSession(ctx, recorder.StartSessionRequest{
		IdempotencyKey: params.IdempotencyKey,
		Cameras:        params.Cameras,
		Name:           params.Name,
	})
}

func (s *Server) methodStopSession(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params StopSessionParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, newProtoError(constants.KindInvalidArgument, "malformed stop_session params")
		}
	}
	return s.recorder.StopSession(ctx, params.SessionID)
}

func (s *Server) methodStartCamera(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params CameraParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, newProtoError(constants.KindInvalidArgument, "malformed start_camera params")
	}
	if err := s.supervisor.Start(ctx, params.CameraID); err != nil {
		return nil, err
	}
	status, _ := s.supervisor.StatusOne(params.CameraID)
	return status, nil
}

func (s *Server) methodStopCamera(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params CameraParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, newProtoError(constants.KindInvalidArgument, "malformed stop_camera params")
	}
	if err := s.supervisor.Stop(ctx, params.CameraID); err != nil {
		return nil, err
	}
	status, _ := s.supervisor.StatusOne(params.CameraID)
	return status, nil
}

func (s *Server) methodStatus() (interface{}, error) {
	return map[string]interface{}{
		"cameras": s.supervisor.Status(),
		"session": s.recorder.Status(),
	}, nil
}

// methodSubscribe registers the connection with the event bus and starts a
// dedicated writer goroutine forwarding events to the client, implementing
// the connected+snapshot-then-stream protocol of spec.md §4.5/§6.
func (s *Server) methodSubscribe(c *connection, raw json.RawMessage) (interface{}, error) {
	var params SubscribeParams
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &params)
	}

	sub := s.bus.SubscribeWithID(c.id)
	c.subscriberID = sub.ID

	events, snapshot, canReplay := s.bus.Resync(params.LastSeq)
	go s.pumpSubscriberEvents(c, sub)

	return map[string]interface{}{
		"can_replay": canReplay,
		"events":     events,
		"snapshot":   snapshot,
	}, nil
}

func (s *Server) pumpSubscriberEvents(c *connection, sub *eventbus.Subscriber) {
	for {
		select {
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			s.sendEvent(c, EventMessage{Type: "event", Event: e})
		case <-sub.Done():
			return
		}
	}
}
