package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/r58io/core-service/internal/apiserver"
)

const callTimeout = 10 * time.Second

// client is a short-lived connection used for at most one authenticate call
// (only when --token is set) followed by one method call. sessionctl never keeps a connection open
// across invocations.
type client struct {
	conn *websocket.Conn
}

func dial() (*client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	c := &client{conn: conn}
	if token != "" {
		if _, err := c.call("authenticate", apiserver.AuthenticateParams{Token: token}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("authenticate failed: %w", err)
		}
	}
	return c, nil
}

func (c *client) close() {
	c.conn.Close()
}

// call sends one request and waits for the response carrying the same ID,
// discarding any unsolicited event messages interleaved on the connection.
func (c *client) call(method string, params interface{}) (json.RawMessage, error) {
	id := uuid.NewString()
	paramsRaw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	req := apiserver.Request{ID: id, Method: method, Params: paramsRaw}
	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(callTimeout)); err != nil {
		return nil, err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	deadline := time.Now().Add(callTimeout)
	for {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		var resp apiserver.Response
		if err := json.Unmarshal(raw, &resp); err != nil {
			continue
		}
		if resp.ID != id {
			continue
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("%s: %s", resp.Error.Kind, resp.Error.Message)
		}
		return resp.Result, nil
	}
}

func printResult(result json.RawMessage) error {
	if output == "text" {
		fmt.Println(string(result))
		return nil
	}
	var pretty interface{}
	if err := json.Unmarshal(result, &pretty); err != nil {
		fmt.Println(string(result))
		return nil
	}
	data, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
