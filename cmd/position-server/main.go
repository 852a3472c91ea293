// Main package for the position relay server
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sessamekesh/position-relay/pkg/transport"
	"go.uber.org/zap"
)

func main() {
	startTime := time.Now()

	if dotenvErr := godotenv.Load(); dotenvErr != nil && !os.IsNotExist(dotenvErr) {
		fmt.Printf("Failed to load .env file! %s", dotenvErr.Error())
	}

	logger := zap.Must(zap.NewProduction())
	if os.Getenv("APP_ENV") != "production" {
		logger = zap.Must(zap.NewDevelopment())
	}
	defer logger.Sync()

	defaultPort := 3000
	if envPort := os.Getenv("PORT"); envPort != "" {
		port, portErr := strconv.ParseUint(envPort, 0, 16)
		if portErr != nil {
			logger.Warn("Invalid value for PORT, falling back to 3000", zap.String("PORT", envPort))
		} else {
			defaultPort = int(port)
		}
	}

	//
	// Flags
	wsPort := flag.Int("ws-port", defaultPort, "Port on which the WebSocket server should run")
	wsEndpoint := flag.String("ws-endpoint", "/ws", "HTTP endpoint that listens for WebSocket connections")
	replyModeName := flag.String("reply", "ack", "Reply to text frames with an acknowledgement (ack) or the roster of other clients (roster)")
	maxConnections := flag.Int("max-connections", 256, "Maximum number of simultaneous WebSocket connections")
	idleTimeout := flag.Duration("idle-timeout", 0, "Close connections that send nothing for this long (0 disables)")
	flag.Parse()

	replyMode, replyModeErr := transport.ParseReplyMode(*replyModeName)
	if replyModeErr != nil {
		logger.Error("Invalid -reply flag", zap.Error(replyModeErr))
		return
	}

	wsServer, wsServerErr := transport.CreateWebsocketPositionServer(transport.WebsocketPositionServerParams{
		ListenAddress:  fmt.Sprintf(":%d", *wsPort),
		ListenEndpoint: *wsEndpoint,
		AllowAllHosts:  true,
		MaxConnections: *maxConnections,
		ReplyMode:      replyMode,
		IdleTimeout:    *idleTimeout,
		Logger:         logger,
	})
	if wsServerErr != nil {
		logger.Error("Failed to create WebSocket server", zap.Error(wsServerErr))
		return
	}

	shutdownCtx, shutdownRelease := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer shutdownRelease()

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := wsServer.Start(shutdownCtx); err != nil {
			logger.Error("WebSocket server stopped with error", zap.Error(err))
			shutdownRelease()
		}
	}()

	wg.Wait()

	logger.Info("Position relay server stopped", zap.Duration("uptime", time.Since(startTime)))
}
