package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voxelnav.ai/internal/protocol"
)

// Client is the agent side of a session. Recv must be called from a single
// goroutine; Send may be called from any.
type Client struct {
	conn    *websocket.Conn
	Welcome protocol.WelcomeMsg

	// OnError receives ERRORs that leave the session usable, such as a
	// rejected ACT or a full inbox. Set it before the first Recv.
	OnError func(protocol.ErrorMsg)

	wmu sync.Mutex
}

// Dial connects, sends HELLO and waits for WELCOME. An ERROR reply is
// returned as a protocol.ErrorMsg.
func Dial(ctx context.Context, url string, hello protocol.HelloMsg) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	hello.Type = protocol.TypeHello
	if hello.ProtocolVersion == "" {
		hello.ProtocolVersion = protocol.Version
	}
	if err := writeJSON(conn, hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send HELLO: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read WELCOME: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	base, err := protocol.DecodeBase(msg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	switch base.Type {
	case protocol.TypeWelcome:
		c := &Client{conn: conn}
		if err := json.Unmarshal(msg, &c.Welcome); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return c, nil
	case protocol.TypeError:
		var e protocol.ErrorMsg
		_ = json.Unmarshal(msg, &e)
		_ = conn.Close()
		return nil, e
	default:
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected %s before WELCOME", base.Type)
	}
}

func (c *Client) Send(act protocol.ActMsg) error {
	act.Type = protocol.TypeAct
	act.ProtocolVersion = protocol.Version
	act.AgentID = c.Welcome.AgentID
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return writeJSON(c.conn, act)
}

// Recv blocks for the next OBS. An ERROR is returned only when it ends the
// session; others go to OnError and reading continues. Other message types are
// skipped.
func (c *Client) Recv() (protocol.ObsMsg, error) {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return protocol.ObsMsg{}, err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeObs:
			var obs protocol.ObsMsg
			if err := json.Unmarshal(msg, &obs); err != nil {
				return protocol.ObsMsg{}, err
			}
			return obs, nil
		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err != nil {
				return protocol.ObsMsg{}, err
			}
			if fatal(e) {
				return protocol.ObsMsg{}, e
			}
			if c.OnError != nil {
				c.OnError(e)
			}
		}
	}
}

// fatal reports whether the server will not accept further ACTs from this
// session as sent.
func fatal(e protocol.ErrorMsg) bool {
	return e.Code == protocol.ErrProtoVersion
}

func (c *Client) Close() error {
	c.wmu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.wmu.Unlock()
	return c.conn.Close()
}
