package apiserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/r58io/core-service/internal/config"
	"github.com/r58io/core-service/internal/eventbus"
	"github.com/r58io/core-service/internal/ingest"
	"github.com/r58io/core-service/internal/recorder"
	"github.com/r58io/core-service/internal/security"
)

type fakeSupervisor struct{}

func (fakeSupervisor) Start(ctx context.Context, cameraID string) error { return nil }
func (fakeSupervisor) Stop(ctx context.Context, cameraID string) error  { return nil }
func (fakeSupervisor) StatusOne(cameraID string) (ingest.CameraStatus, bool) {
	return ingest.CameraStatus{CameraID: cameraID, State: ingest.StateStreaming}, true
}
func (fakeSupervisor) Status() map[string]ingest.CameraStatus {
	return map[string]ingest.CameraStatus{"cam1": {CameraID: "cam1", State: ingest.StateStreaming}}
}

type fakeRecorder struct{}

func (fakeRecorder) StartSession(ctx context.Context, req recorder.StartSessionRequest) (recorder.SessionDescriptor, error) {
	return recorder.SessionDescriptor{ID: "session_test", State: recorder.SessionRecording}, nil
}
func (fakeRecorder) StopSession(ctx context.Context, sessionID string) (recorder.SessionDescriptor, error) {
	return recorder.SessionDescriptor{ID: sessionID, State: recorder.SessionStopped}, nil
}
func (fakeRecorder) Status() recorder.SessionDescriptor {
	return recorder.SessionDescriptor{ID: "session_test", State: recorder.SessionRecording}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server, *security.JWTHandler) {
	t.Helper()
	jwtHandler, err := security.NewJWTHandler("test-secret-key", nil)
	require.NoError(t, err)

	bus := eventbus.New(config.EventBusConfig{ReplayBufferSize: 10, HeartbeatInterval: time.Hour, SubscriberQueue: 8}, func() map[string]interface{} {
		return map[string]interface{}{"mode": "idle"}
	}, nil)

	s := NewServer(config.ServerConfig{WebSocketPath: "/ws"}, jwtHandler, fakeSupervisor{}, fakeRecorder{}, bus, nil)
	ts := httptest.NewServer(s.Handler())
	return s, ts, jwtHandler
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func TestServer_RejectsUnauthenticatedMethod(t *testing.T) {
	_, ts, _ := newTestServer(t)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Request{ID: "1", Method: "status"}))
	var resp Response
	require.NoError(t, conn.ReadJSON(&resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, "unauthorized", resp.Error.Kind)
}

func TestServer_AuthenticateThenStatus(t *testing.T) {
	_, ts, jwtHandler := newTestServer(t)
	defer ts.Close()

	token, err := jwtHandler.GenerateToken("client1", "operator", 1)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	authParams, _ := json.Marshal(AuthenticateParams{Token: token})
	require.NoError(t, conn.WriteJSON(Request{ID: "1", Method: "authenticate", Params: authParams}))
	var authResp Response
	require.NoError(t, conn.ReadJSON(&authResp))
	require.Nil(t, authResp.Error)

	require.NoError(t, conn.WriteJSON(Request{ID: "2", Method: "status"}))
	var statusResp Response
	require.NoError(t, conn.ReadJSON(&statusResp))
	require.Nil(t, statusResp.Error)
}

func TestServer_StartSessionReturnsDescriptor(t *testing.T) {
	_, ts, jwtHandler := newTestServer(t)
	defer ts.Close()

	token, _ := jwtHandler.GenerateToken("client1", "operator", 1)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	authParams, _ := json.Marshal(AuthenticateParams{Token: token})
	require.NoError(t, conn.WriteJSON(Request{ID: "1", Method: "authenticate", Params: authParams}))
	var authResp Response
	require.NoError(t, conn.ReadJSON(&authResp))

	startParams, _ := json.Marshal(StartSessionParams{Cameras: []string{"cam1"}})
	require.NoError(t, conn.WriteJSON(Request{ID: "2", Method: "start_session", Params: startParams}))
	var resp Response
	require.NoError(t, conn.ReadJSON(&resp))
	require.Nil(t, resp.Error)

	var desc recorder.SessionDescriptor
	require.NoError(t, json.Unmarshal(resp.Result, &desc))
	require.Equal(t, "session_test", desc.ID)
}

func TestServer_SubscribeDeliversConnectedThenFollowingEvents(t *testing.T) {
	s, ts, jwtHandler := newTestServer(t)
	defer ts.Close()

	token, _ := jwtHandler.GenerateToken("client1", "operator", 1)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	authParams, _ := json.Marshal(AuthenticateParams{Token: token})
	require.NoError(t, conn.WriteJSON(Request{ID: "1", Method: "authenticate", Params: authParams}))
	var authResp Response
	require.NoError(t, conn.ReadJSON(&authResp))

	require.NoError(t, conn.WriteJSON(Request{ID: "2", Method: "subscribe", Params: json.RawMessage(`{"last_seq":0}`)}))
	var subResp Response
	require.NoError(t, conn.ReadJSON(&subResp))
	require.Nil(t, subResp.Error)

	s.bus.(*eventbus.Bus).Publish("recorder.progress", "cam1", nil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt EventMessage
	require.NoError(t, conn.ReadJSON(&evt))
	require.Equal(t, "event", evt.Type)
}
