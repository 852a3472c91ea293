// Main package for a client that streams a simulated position to a relay server
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sessamekesh/position-relay/pkg/inbox"
	"github.com/sessamekesh/position-relay/pkg/message/roster"
	"github.com/sessamekesh/position-relay/pkg/stream"
	"github.com/sessamekesh/position-relay/pkg/transport"
	"go.uber.org/zap"
)

func main() {
	if dotenvErr := godotenv.Load(); dotenvErr != nil && !os.IsNotExist(dotenvErr) {
		fmt.Printf("Failed to load .env file! %s", dotenvErr.Error())
	}

	logger := zap.Must(zap.NewProduction())
	if os.Getenv("APP_ENV") != "production" {
		logger = zap.Must(zap.NewDevelopment())
	}
	defer logger.Sync()

	defaultUrl := os.Getenv("POSITION_SERVER_URL")
	if defaultUrl == "" {
		defaultUrl = "ws://localhost:3000/ws"
	}

	//
	// Flags
	url := flag.String("url", defaultUrl, "WebSocket URL of the position relay server")
	handshake := flag.Bool("handshake", true, "Send a random 8 character hex token as the first frame")
	inboxMode := flag.String("inbox", "latest", "Inbound message storage: buffered or latest")
	tick := flag.Duration("tick", stream.DefaultTickInterval, "Interval between position updates")
	radius := flag.Float64("radius", 300, "Radius of the simulated circular walk")
	speed := flag.Float64("speed", 500, "Speed of the simulated walk, in units per second")
	flag.Parse()

	var msgInbox inbox.Inbox
	var latestMessage func() (string, bool)
	switch *inboxMode {
	case "latest":
		latest := inbox.NewLatest()
		msgInbox = latest
		latestMessage = latest.Latest
	case "buffered":
		buffered := inbox.NewBuffered(1024)
		msgInbox = buffered
		latestMessage = func() (string, bool) {
			msgs := buffered.Drain()
			if len(msgs) == 0 {
				return "", false
			}
			return msgs[len(msgs)-1], true
		}
	default:
		logger.Error("Invalid -inbox flag, expected buffered or latest", zap.String("inbox", *inboxMode))
		return
	}

	conn, connErr := transport.CreateWebsocketConnection(transport.WebsocketConnectionParams{
		Url:       *url,
		Handshake: *handshake,
		Inbox:     msgInbox,
		Logger:    logger,
	})
	if connErr != nil {
		logger.Error("Failed to create WebSocket connection", zap.Error(connErr))
		return
	}

	shutdownCtx, shutdownRelease := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer shutdownRelease()

	lastRoster := ""
	streamer := stream.CreatePositionStreamer(stream.PositionStreamerParams{
		Sender:       conn,
		Source:       stream.NewCircleWalk(*radius, *speed),
		TickInterval: *tick,
		Logger:       logger,
		OnTick: func() {
			msg, ok := latestMessage()
			if !ok || msg == lastRoster {
				return
			}
			lastRoster = msg

			clients, err := roster.Parse(msg)
			if err != nil {
				logger.Debug("Inbound message is not a roster", zap.String("msg", msg))
				return
			}
			logger.Info("Roster update", zap.Int("otherClients", len(clients)))
		},
	})

	if err := conn.Open(shutdownCtx); err != nil {
		logger.Error("Failed to open WebSocket connection", zap.Error(err))
		return
	}
	if conn.Token() != "" {
		logger.Info("Connected with handshake token", zap.String("token", conn.Token()))
	}

	streamCtx, streamRelease := context.WithCancel(shutdownCtx)
	defer streamRelease()

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		streamer.Run(streamCtx)
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Info("Shutdown requested")
	case <-conn.Done():
		logger.Warn("Connection closed by remote endpoint")
	}
	streamRelease()
	wg.Wait()

	closeCtx, closeRelease := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeRelease()
	closed := make(chan error, 1)
	go func() { closed <- conn.Close() }()
	select {
	case err := <-closed:
		if err != nil {
			logger.Warn("Error while closing WebSocket connection", zap.Error(err))
		}
	case <-closeCtx.Done():
		logger.Warn("Timed out closing WebSocket connection")
	}
}
