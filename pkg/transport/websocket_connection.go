package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sessamekesh/position-relay/pkg/errors"
	"github.com/sessamekesh/position-relay/pkg/inbox"
	"github.com/sessamekesh/position-relay/pkg/message/position"
	utils "github.com/sessamekesh/position-relay/pkg/util"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type ConnectionState int32

const (
	ConnectionState_NotOpen ConnectionState = iota
	ConnectionState_Open
	ConnectionState_Closed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionState_NotOpen:
		return "NOT_OPEN"
	case ConnectionState_Open:
		return "OPEN"
	case ConnectionState_Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

type WebsocketConnectionParams struct {
	Url    string
	Header http.Header

	// Handshake sends a random 8 character hex token as the first frame.
	Handshake bool

	// Inbox receives every inbound frame. Defaults to an unbounded buffered inbox.
	Inbox inbox.Inbox

	HandshakeTimeout   time.Duration
	WriteTimeout       time.Duration
	MaxReadMessageSize int64

	Logger    *zap.Logger
	StringGen *utils.RandomStringGenerator
}

// WebsocketConnection is the client side of a position channel. It is owned
// by whoever created it; there is no shared package-level handle.
type WebsocketConnection struct {
	params WebsocketConnectionParams
	inbox  inbox.Inbox
	dialer *websocket.Dialer

	mut     sync.Mutex
	state   ConnectionState
	conn    *websocket.Conn
	token   string
	closing bool

	wg   sync.WaitGroup
	done chan struct{}

	log       *zap.Logger
	stringGen *utils.RandomStringGenerator
}

func CreateWebsocketConnection(params WebsocketConnectionParams) (*WebsocketConnection, error) {
	if params.Url == "" {
		return nil, &errors.MissingFieldError{
			MessageName: "WebsocketConnectionParams",
			FieldName:   "Url",
		}
	}

	logger := params.Logger
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}

	stringGen := params.StringGen
	if stringGen == nil {
		stringGen = utils.CreateRandomstringGenerator(time.Now().UnixMicro())
	}

	msgInbox := params.Inbox
	if msgInbox == nil {
		msgInbox = inbox.NewBuffered(0)
	}

	if params.HandshakeTimeout == 0 {
		params.HandshakeTimeout = 10 * time.Second
	}
	if params.WriteTimeout == 0 {
		params.WriteTimeout = 10 * time.Second
	}

	return &WebsocketConnection{
		params: params,
		inbox:  msgInbox,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: params.HandshakeTimeout,
		},

		state: ConnectionState_NotOpen,
		done:  make(chan struct{}),

		log: logger.With(
			zap.String("handler", "WebSocketConnection"),
			zap.String("wsConnId", stringGen.GetRandomString(6)),
		),
		stringGen: stringGen,
	}, nil
}

func (w *WebsocketConnection) State() ConnectionState {
	w.mut.Lock()
	defer w.mut.Unlock()
	return w.state
}

func (w *WebsocketConnection) IsOpen() bool {
	return w.State() == ConnectionState_Open
}

// Token returns the handshake token sent on open, or "" if none was sent.
func (w *WebsocketConnection) Token() string {
	w.mut.Lock()
	defer w.mut.Unlock()
	return w.token
}

func (w *WebsocketConnection) Inbox() inbox.Inbox {
	return w.inbox
}

// Done is closed once the connection has stopped reading, whichever side
// closed it.
func (w *WebsocketConnection) Done() <-chan struct{} {
	return w.done
}

// Open dials the remote endpoint. When the handshake is enabled the token is
// written before the connection is marked open, so it is always the first
// frame on the wire.
func (w *WebsocketConnection) Open(ctx context.Context) error {
	w.mut.Lock()
	defer w.mut.Unlock()

	if w.state != ConnectionState_NotOpen {
		return &errors.AlreadyOpenedError{State: w.state.String()}
	}

	w.log.Info("Dialing WebSocket endpoint", zap.String("url", w.params.Url))
	c, _, err := w.dialer.DialContext(ctx, w.params.Url, w.params.Header)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", w.params.Url, err)
	}

	if w.params.MaxReadMessageSize > 0 {
		c.SetReadLimit(w.params.MaxReadMessageSize)
	}

	if w.params.Handshake {
		token := w.stringGen.GetHexToken()
		if err := w.writeText(c, token); err != nil {
			c.Close()
			return fmt.Errorf("failed to send handshake token: %w", err)
		}
		w.token = token
		w.log.Debug("Sent handshake token", zap.String("token", token))
	}

	w.conn = c
	w.state = ConnectionState_Open
	w.log.Info("WebSocket connection open")

	w.wg.Add(1)
	go w.readLoop(c)

	return nil
}

func (w *WebsocketConnection) SendPosition(x, y float32) error {
	payload, err := position.Serialize(position.Position{X: x, Y: y})
	if err != nil {
		return err
	}

	w.mut.Lock()
	defer w.mut.Unlock()

	if w.state != ConnectionState_Open {
		return &errors.NotOpenError{
			Operation: "send position",
			State:     w.state.String(),
		}
	}

	if err := w.writeText(w.conn, payload); err != nil {
		return fmt.Errorf("failed to send position: %w", err)
	}
	return nil
}

func (w *WebsocketConnection) writeText(c *websocket.Conn, payload string) error {
	c.SetWriteDeadline(time.Now().Add(w.params.WriteTimeout))
	return c.WriteMessage(websocket.TextMessage, []byte(payload))
}

// Close sends a normal closure frame and releases the socket. Closing a
// connection that never opened only moves it to the closed state.
func (w *WebsocketConnection) Close() error {
	w.mut.Lock()
	if w.state != ConnectionState_Open {
		if w.state == ConnectionState_NotOpen {
			close(w.done)
		}
		w.state = ConnectionState_Closed
		w.mut.Unlock()
		w.wg.Wait()
		return nil
	}

	w.closing = true
	w.state = ConnectionState_Closed
	c := w.conn

	closeFrame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := multierr.Combine(
		c.WriteControl(websocket.CloseMessage, closeFrame, time.Now().Add(w.params.WriteTimeout)),
		c.Close(),
	)
	w.mut.Unlock()

	w.wg.Wait()
	w.log.Info("WebSocket connection closed")
	return err
}

func (w *WebsocketConnection) readLoop(c *websocket.Conn) {
	defer w.wg.Done()
	defer close(w.done)
	defer w.markClosed()

	expectedCloseErrors := []int{websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived}
	for {
		msgType, payload, msgErr := c.ReadMessage()
		if msgErr != nil {
			w.logReadError(msgErr, expectedCloseErrors)
			return
		}

		switch msgType {
		case websocket.TextMessage, websocket.BinaryMessage:
			w.inbox.Push(string(payload))
		}
	}
}

func (w *WebsocketConnection) logReadError(msgErr error, expectedCloseErrors []int) {
	w.mut.Lock()
	closing := w.closing
	w.mut.Unlock()

	if closing {
		w.log.Debug("Read loop stopped after local close", zap.Error(msgErr))
		return
	}

	if websocket.IsCloseError(msgErr, expectedCloseErrors...) {
		closeError, ok := msgErr.(*websocket.CloseError)
		if ok {
			w.log.Info("Remote endpoint closed connection", zap.Int("closeCode", closeError.Code), zap.String("closeMsg", closeError.Text))
		} else {
			w.log.Info("Remote endpoint closed connection")
		}
		return
	}

	if websocket.IsUnexpectedCloseError(msgErr, expectedCloseErrors...) {
		w.log.Warn("Unexpected close from remote endpoint", zap.Error(msgErr))
		return
	}

	if strings.Contains(msgErr.Error(), "use of closed network connection") {
		w.log.Info("Closing connection, socket already released")
		return
	}

	w.log.Error("Unexpected WebSocket error on message read", zap.Error(msgErr))
}

func (w *WebsocketConnection) markClosed() {
	w.mut.Lock()
	defer w.mut.Unlock()

	if w.state == ConnectionState_Open {
		w.state = ConnectionState_Closed
		w.conn.Close()
	}
}
