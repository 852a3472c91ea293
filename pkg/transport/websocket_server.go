package transport

import (
	"context"
	"encoding/json"
	goerrs "errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sessamekesh/position-relay/internal"
	"github.com/sessamekesh/position-relay/pkg/errors"
	"github.com/sessamekesh/position-relay/pkg/message/position"
	"github.com/sessamekesh/position-relay/pkg/message/roster"
	utils "github.com/sessamekesh/position-relay/pkg/util"
	"go.uber.org/zap"
)

const AcknowledgementText = "Thank you, come again."
const HelloHttpText = "Hello HTTP!"

const serverWriteWait = 10 * time.Second

type ReplyMode int

const (
	// Every text frame is answered with AcknowledgementText.
	ReplyMode_Ack ReplyMode = iota
	// Every text frame is answered with the roster of the other clients.
	ReplyMode_Roster
)

func (m ReplyMode) String() string {
	switch m {
	case ReplyMode_Ack:
		return "ack"
	case ReplyMode_Roster:
		return "roster"
	default:
		return "unknown"
	}
}

func ParseReplyMode(s string) (ReplyMode, error) {
	switch strings.ToLower(s) {
	case "ack", "":
		return ReplyMode_Ack, nil
	case "roster":
		return ReplyMode_Roster, nil
	}
	return ReplyMode_Ack, &errors.InvalidEnumValue{EnumName: "ReplyMode", StringValue: s}
}

type WebsocketPositionServerParams struct {
	ListenAddress    string
	ListenEndpoint   string
	AllowAllHosts    bool
	AllowlistedHosts []string
	DenylistedHosts  []string

	MaxReadMessageSize int64
	MaxConnections     int
	ReplyMode          ReplyMode

	// Connections that send nothing for this long are closed. Zero disables.
	IdleTimeout time.Duration

	Logger *zap.Logger
}

type WebsocketPositionServer struct {
	upgrader *websocket.Upgrader

	params WebsocketPositionServerParams
	store  *internal.ClientStore

	startTime time.Time

	mut_connections sync.RWMutex
	connections     map[string]*websocket.Conn

	log       *zap.Logger
	stringGen *utils.RandomStringGenerator
}

func checkOrigin(r *http.Request, params WebsocketPositionServerParams) bool {
	origin := r.Header.Get("Origin")
	if utils.Contains(origin, params.DenylistedHosts) {
		return false
	}

	if params.AllowAllHosts {
		return true
	}

	return utils.Contains(origin, params.AllowlistedHosts)
}

func CreateWebsocketPositionServer(params WebsocketPositionServerParams) (*WebsocketPositionServer, error) {
	logger := params.Logger
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}

	if params.ListenEndpoint == "" {
		params.ListenEndpoint = "/ws"
	}
	if params.MaxReadMessageSize == 0 {
		params.MaxReadMessageSize = 4096
	}

	return &WebsocketPositionServer{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return checkOrigin(r, params)
			},
		},
		params: params,
		store:  internal.CreateClientStore(params.MaxConnections),

		startTime: time.Now(),

		mut_connections: sync.RWMutex{},
		connections:     make(map[string]*websocket.Conn),

		log:       logger.With(zap.String("handler", "WebSocketServer")),
		stringGen: utils.CreateRandomstringGenerator(time.Now().UnixMicro()),
	}, nil
}

func (ws *WebsocketPositionServer) getNowTime() int64 {
	return time.Since(ws.startTime).Microseconds()
}

func (ws *WebsocketPositionServer) Store() *internal.ClientStore {
	return ws.store
}

// Handler builds the HTTP routes. Connections accepted through it are closed
// when ctx is cancelled.
func (ws *WebsocketPositionServer) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(ws.params.ListenEndpoint, func(w http.ResponseWriter, r *http.Request) {
		ws.onWsRequest(ctx, w, r)
	})
	mux.HandleFunc("/clients", ws.onClientsRequest)
	mux.HandleFunc("/stats", ws.onStatsRequest)
	if ws.params.ListenEndpoint != "/" {
		mux.HandleFunc("/", onHelloRequest)
	}
	return mux
}

func onHelloRequest(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte(HelloHttpText))
}

func (ws *WebsocketPositionServer) onClientsRequest(w http.ResponseWriter, _ *http.Request) {
	payload, err := roster.Serialize(ws.rosterFor(""))
	if err != nil {
		ws.log.Error("Failed to serialize roster", zap.Error(err))
		http.Error(w, "roster unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(payload))
}

func (ws *WebsocketPositionServer) onStatsRequest(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]uint64{
		"textMessages": ws.store.TextMessageCount(),
		"clients":      uint64(ws.store.ClientCount()),
	})
}

func (ws *WebsocketPositionServer) rosterFor(excludeId string) []roster.Client {
	clients := []roster.Client{}
	for _, c := range ws.store.ListClients(excludeId) {
		if !c.HasPosition {
			continue
		}
		clients = append(clients, roster.Client{
			Uuid:     c.Id,
			Position: [2]float32{c.X, c.Y},
		})
	}
	return clients
}

func (ws *WebsocketPositionServer) onWsRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		onHelloRequest(w, r)
		return
	}

	name := ws.stringGen.GetRandomString(16)
	log := ws.log.With(zap.String("wsConnId", name))

	log.Info("New WebSocket request")
	c, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade HTTP request to WebSocket connection", zap.Error(err))
		return
	}

	defer c.Close()

	clientId := uuid.NewString()
	log = log.With(zap.String("clientId", clientId))

	if err := ws.store.CreateClient(clientId, name, ws.getNowTime()); err != nil {
		log.Warn("Refusing WebSocket connection", zap.Error(err))
		closeFrame := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
		c.WriteControl(websocket.CloseMessage, closeFrame, time.Now().Add(serverWriteWait))
		return
	}

	func() {
		ws.mut_connections.Lock()
		defer ws.mut_connections.Unlock()
		ws.connections[clientId] = c
		log.Debug("Added client to WebSocket server connections map")
	}()

	defer func() {
		ws.mut_connections.Lock()
		defer ws.mut_connections.Unlock()
		delete(ws.connections, clientId)
		ws.store.RemoveClient(clientId)
		log.Debug("Removed client from WebSocket server connections map")
	}()

	c.SetReadLimit(ws.params.MaxReadMessageSize)
	c.SetPingHandler(func(appData string) error {
		log.Debug("Received ping message", zap.Int("size", len(appData)))
		err := c.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(serverWriteWait))
		if goerrs.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	c.SetPongHandler(func(appData string) error {
		log.Debug("Received pong message", zap.Int("size", len(appData)))
		return nil
	})

	connDone := make(chan struct{})
	defer close(connDone)

	go func() {
		select {
		case <-connDone:
		case <-ctx.Done():
			log.Info("Server shutting down, closing WebSocket connection")
			closeFrame := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown")
			c.WriteControl(websocket.CloseMessage, closeFrame, time.Now().Add(serverWriteWait))
			c.Close()
		}
	}()

	ws.readLoop(log, c, clientId)
}

func (ws *WebsocketPositionServer) readLoop(log *zap.Logger, c *websocket.Conn, clientId string) {
	expectedCloseErrors := []int{websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived}
	for {
		msgType, payload, msgErr := c.ReadMessage()
		if msgErr != nil {
			if websocket.IsCloseError(msgErr, expectedCloseErrors...) {
				closeError, ok := msgErr.(*websocket.CloseError)
				if ok {
					log.Info("Received close message", zap.Int("closeCode", closeError.Code), zap.String("closeMsg", closeError.Text))
				} else {
					log.Info("Received close message")
				}
				return
			}

			if websocket.IsUnexpectedCloseError(msgErr, expectedCloseErrors...) {
				log.Warn("Received unexpected close from client", zap.Error(msgErr))
				return
			}

			if strings.Contains(msgErr.Error(), "use of closed network connection") {
				log.Info("Closing connection, probably from server-initiated close")
				return
			}

			log.Error("Received unexpected WebSocket error on message read", zap.Error(msgErr))
			return
		}

		var replyErr error
		switch msgType {
		case websocket.TextMessage:
			replyErr = ws.onTextMessage(log, c, clientId, payload)
		case websocket.BinaryMessage:
			log.Info("Received binary message", zap.Binary("payload", payload))
			ws.store.SetRecvTimestamp(clientId, ws.getNowTime())
			c.SetWriteDeadline(time.Now().Add(serverWriteWait))
			replyErr = c.WriteMessage(websocket.BinaryMessage, []byte(AcknowledgementText))
		}

		if replyErr != nil {
			log.Warn("Failed to write reply, closing connection", zap.Error(replyErr))
			return
		}
	}
}

func (ws *WebsocketPositionServer) onTextMessage(log *zap.Logger, c *websocket.Conn, clientId string, payload []byte) error {
	counter := ws.store.IncrementTextMessageCount()
	log.Info("Received text message", zap.ByteString("msg", payload), zap.Uint64("counter", counter))

	if pos, err := position.Parse(payload); err == nil {
		ws.store.SetPosition(clientId, pos.X, pos.Y, ws.getNowTime())
	} else {
		ws.store.SetRecvTimestamp(clientId, ws.getNowTime())
	}

	reply := AcknowledgementText
	if ws.params.ReplyMode == ReplyMode_Roster {
		rosterPayload, err := roster.Serialize(ws.rosterFor(clientId))
		if err != nil {
			return err
		}
		reply = rosterPayload
	}

	c.SetWriteDeadline(time.Now().Add(serverWriteWait))
	return c.WriteMessage(websocket.TextMessage, []byte(reply))
}

func (ws *WebsocketPositionServer) kickIdleClients() {
	deadline := ws.getNowTime() - ws.params.IdleTimeout.Microseconds()
	idle := ws.store.GetIdleClientList(deadline)
	if len(idle) == 0 {
		return
	}

	ws.mut_connections.RLock()
	defer ws.mut_connections.RUnlock()

	for _, clientId := range idle {
		c, has := ws.connections[clientId]
		if !has {
			continue
		}
		ws.log.Info("Closing idle WebSocket connection", zap.String("clientId", clientId))
		closeFrame := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "idle timeout")
		c.WriteControl(websocket.CloseMessage, closeFrame, time.Now().Add(serverWriteWait))
		c.Close()
	}
}

func (ws *WebsocketPositionServer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := &http.Server{
		Addr:    ws.params.ListenAddress,
		Handler: ws.Handler(ctx),
	}

	var serveErr error

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()

		ws.log.Sugar().Infof("Starting WebSocket server at %s", ws.params.ListenAddress)
		if err := server.ListenAndServe(); !goerrs.Is(err, http.ErrServerClosed) {
			ws.log.Error("Unexpected WebSocket server close!", zap.Error(err))
			serveErr = err
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		<-ctx.Done()

		shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownRelease()
		ws.log.Info("Attempting to trigger shutdown of WebSocket server")

		if err := server.Shutdown(shutdownCtx); err != nil {
			ws.log.Error("Failed to gracefully shut down WebSocket server", zap.Error(err))
			return
		}
		ws.log.Info("Successfully shutdown WebSocket server")
	}()

	if ws.params.IdleTimeout > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ticker := time.NewTicker(ws.params.IdleTimeout / 2)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					ws.kickIdleClients()
				}
			}
		}()
	}

	wg.Wait()

	ws.log.Info("All WebSocket server goroutines finished. Exiting gracefully!")
	return serveErr
}
