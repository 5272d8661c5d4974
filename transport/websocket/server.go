package websocket

import (
	"bufio"
	"context"
	"crypto/sha1" //nolint:gosec // mandated by the websocket handshake
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rocketscienceinc/matchengine-backend/internal/entity"
)

const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

const outboundBufferSize = 64

type matchUseCase interface {
	Connect(ctx context.Context, playerID string) (entity.PlayerSession, error)
	Rejoin(ctx context.Context, playerID, matchID string) error

	QueueForMatch(ctx context.Context, playerID string) error
	CancelMatchmaking(ctx context.Context, playerID string) bool

	SubmitMove(ctx context.Context, playerID string, cell int) error
	Disconnect(ctx context.Context, playerID string)
}

// client is one upgraded connection. Outbound messages go through a
// buffered channel drained by a writer goroutine, so a slow consumer never
// blocks the engine. Send and close both take the mutex: a broadcast
// holding a replaced client must never hit a closed channel.
type client struct {
	playerID string
	conn     net.Conn
	bufrw    *bufio.ReadWriter

	mu     sync.Mutex
	out    chan []byte
	closed bool
}

func (that *client) close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return
	}

	that.closed = true
	close(that.out)
}

// trySend queues the payload without blocking. It reports false when the
// connection is already closed or its buffer is full.
func (that *client) trySend(payload []byte) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return false
	}

	select {
	case that.out <- payload:
		return true
	default:
		return false
	}
}

type Server struct {
	logger  *slog.Logger
	usecase matchUseCase

	handlers map[string]func(ctx context.Context, cl *client, msg *Message) error

	connectionsMutex sync.RWMutex
	connections      map[string]*client
}

func New(logger *slog.Logger) *Server {
	server := &Server{
		logger: logger.With("component", "websocket"),

		handlers:    make(map[string]func(context.Context, *client, *Message) error),
		connections: make(map[string]*client),
	}

	server.handlers["connect"] = server.handleConnect
	server.handlers["matchmaking:join"] = server.handleQueueJoin
	server.handlers["matchmaking:cancel"] = server.handleQueueCancel
	server.handlers["game:turn"] = server.handleGameTurn

	return server
}

// SetUseCase binds the engine facade. The server broadcasts for the engine
// and the engine consumes the server's inbound events, so the second half
// of the wiring happens after construction.
func (that *Server) SetUseCase(usecase matchUseCase) {
	that.usecase = usecase
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// upgradeToWebSocket - upgrades the connection to WebSocket.
func (that *Server) upgradeToWebSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeToWebSocket")

	if req.Header.Get("Upgrade") != "websocket" {
		http.Error(writer, "not a websocket upgrade", http.StatusBadRequest)
		return
	}

	key := req.Header.Get("Sec-WebSocket-Key")

	writer.Header().Set("Upgrade", "websocket")
	writer.Header().Set("Connection", "Upgrade")
	writer.Header().Set("Sec-WebSocket-Accept", acceptKey(key))
	writer.WriteHeader(http.StatusSwitchingProtocols)

	hijacker, ok := writer.(http.Hijacker)
	if !ok {
		log.Error("web server does not support hijacking")
		return
	}

	conn, bufrw, err := hijacker.Hijack()
	if err != nil {
		log.Error("failed to hijack connection", "error", err)
		return
	}

	defer conn.Close()

	log.Info("WebSocket connection established")

	cl := &client{
		conn:  conn,
		bufrw: bufrw,
		out:   make(chan []byte, outboundBufferSize),
	}

	go that.writePump(cl)
	defer cl.close()

	if err = that.readLoop(ctx, cl); err != nil {
		log.Info("connection closed", "error", err)
	}

	that.handleDisconnect(ctx, cl)
}

// readLoop - processes messages from the client until the connection drops.
func (that *Server) readLoop(ctx context.Context, cl *client) error {
	log := that.logger.With("method", "readLoop")

	for {
		reqBody, err := readRequest(cl.bufrw)
		if err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}

		var message Message
		if err = json.Unmarshal(reqBody, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Error("unknown action", "action", message.Action)
			continue
		}

		if err = handler(ctx, cl, &message); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

// writePump drains the client's outbound buffer onto the wire.
func (that *Server) writePump(cl *client) {
	log := that.logger.With("method", "writePump")

	for payload := range cl.out {
		if err := writeFrame(cl.bufrw, textFrame(payload)); err != nil {
			log.Error("failed to write frame", "error", err)
			return
		}
	}
}

func acceptKey(key string) string {
	hash := sha1.Sum([]byte(key + websocketGUID)) //nolint:gosec // mandated by the websocket handshake
	return base64.StdEncoding.EncodeToString(hash[:])
}
