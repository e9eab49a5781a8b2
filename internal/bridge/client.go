// SPDX-License-Identifier: MPL-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/modkit/modkit/internal/engine"
)

// Client is a bridge connection from the front end's side.
type Client struct {
	ws     *websocket.Conn
	events chan Envelope

	writeMu sync.Mutex

	mu  sync.Mutex
	err error
}

// Dial connects to the bridge at url presenting token.
func Dial(ctx context.Context, url, token string) (*Client, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set(ProtocolHeader, strconv.Itoa(ProtocolVersion))

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }() // read-only
	}
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUpgradeRequired:
				return nil, &VersionError{Got: resp.Header.Get(ProtocolHeader)}
			case http.StatusUnauthorized:
				return nil, ErrUnauthorized
			}
		}
		return nil, fmt.Errorf("dialing bridge: %w", err)
	}

	c := &Client{ws: ws, events: make(chan Envelope, 64)}
	go c.readLoop()
	return c, nil
}

// Events delivers decoded server frames. It is closed when the connection
// ends; Err then reports why.
func (c *Client) Events() <-chan Envelope {
	return c.events
}

// Err returns the error that ended the connection, nil while it is open or
// after a normal close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Send writes cmd and returns its correlation id, generating one when
// cmd.Req is empty.
func (c *Client) Send(cmd engine.Command) (string, error) {
	if cmd.Req == "" {
		cmd.Req = uuid.NewString()
	}
	env, err := CommandEnvelope(cmd)
	if err != nil {
		return "", err
	}
	if err := c.SendEnvelope(env); err != nil {
		return "", err
	}
	return cmd.Req, nil
}

// SendEnvelope writes a raw envelope.
func (c *Client) SendEnvelope(env Envelope) error {
	data, err := Encode(env)
	if err != nil {
		return err
	}
	return c.sendFrame(websocket.BinaryMessage, data)
}

func (c *Client) sendFrame(kind int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(kind, data); err != nil {
		return fmt.Errorf("sending frame: %w", err)
	}
	return nil
}

// Close ends the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.ws.Close()
}

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if !errors.As(err, &ce) || ce.Code != websocket.CloseNormalClosure {
				c.setErr(err)
			}
			return
		}
		env, err := Decode(msg)
		if err != nil {
			c.setErr(err)
			_ = c.ws.Close()
			return
		}
		c.events <- env
	}
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}
