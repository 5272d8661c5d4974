package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/matchengine-backend/internal/apperror"
	"github.com/rocketscienceinc/matchengine-backend/internal/entity"
)

const (
	actionGameState = "game:state"
	actionGameStart = "game:start"
	actionGameEnd   = "game:end"
)

func (that *Server) handleConnect(ctx context.Context, cl *client, msg *Message) error {
	log := that.logger.With("method", "handleConnect")

	var payloadReq Payload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
			return fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	playerID := ""
	if payloadReq.Player != nil {
		playerID = payloadReq.Player.ID
	}

	sess, err := that.usecase.Connect(ctx, playerID)
	if err != nil {
		log.Error("failed to connect player", "error", err)
		return that.sendErrorResponse(cl, msg.Action, "failed to connect player")
	}

	cl.playerID = sess.ID
	that.registerConnection(cl)

	if err = that.enqueueMessage(cl, msg.Action, Payload{Player: &sess}); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}

	// Resume after the connection is registered so the resync snapshot has
	// somewhere to go.
	if sess.InMatch() {
		if err = that.usecase.Rejoin(ctx, sess.ID, sess.MatchID); err != nil {
			log.Error("failed to rejoin match", "playerID", sess.ID, "matchID", sess.MatchID, "error", err)
			return that.sendErrorResponse(cl, msg.Action, fmt.Sprintf("match %s: %v", sess.MatchID, err))
		}
	}

	log.Info("player connected", "playerID", sess.ID)

	return nil
}

func (that *Server) handleQueueJoin(ctx context.Context, cl *client, msg *Message) error {
	log := that.logger.With("method", "handleQueueJoin")

	if cl.playerID == "" {
		return that.sendErrorResponse(cl, msg.Action, "connect first")
	}

	if err := that.usecase.QueueForMatch(ctx, cl.playerID); err != nil {
		log.Error("failed to queue player", "playerID", cl.playerID, "error", err)
		return that.sendErrorResponse(cl, msg.Action, err.Error())
	}

	log.Info("player queued for matchmaking", "playerID", cl.playerID)

	return that.enqueueMessage(cl, msg.Action, Payload{})
}

func (that *Server) handleQueueCancel(ctx context.Context, cl *client, msg *Message) error {
	log := that.logger.With("method", "handleQueueCancel")

	if cl.playerID == "" {
		return that.sendErrorResponse(cl, msg.Action, "connect first")
	}

	if !that.usecase.CancelMatchmaking(ctx, cl.playerID) {
		return that.sendErrorResponse(cl, msg.Action, "player is not queued")
	}

	log.Info("player left matchmaking", "playerID", cl.playerID)

	return that.enqueueMessage(cl, msg.Action, Payload{})
}

func (that *Server) handleGameTurn(ctx context.Context, cl *client, msg *Message) error {
	log := that.logger.With("method", "handleGameTurn")

	if cl.playerID == "" {
		return that.sendErrorResponse(cl, msg.Action, "connect first")
	}

	var payloadReq Payload
	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payloadReq.Cell == nil {
		log.Error("cell is missing in payload", "playerID", cl.playerID)
		return that.sendErrorResponse(cl, msg.Action, "cell is required")
	}

	err := that.usecase.SubmitMove(ctx, cl.playerID, *payloadReq.Cell)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperror.ErrNotYourTurn),
		errors.Is(err, apperror.ErrCellOccupied),
		errors.Is(err, apperror.ErrMatchOver),
		errors.Is(err, apperror.ErrMatchNotFound),
		errors.Is(err, entity.ErrInvalidCell):
		return that.sendErrorResponse(cl, msg.Action, err.Error())
	default:
		log.Error("failed to make move", "playerID", cl.playerID, "error", err)
		return that.sendErrorResponse(cl, msg.Action, "failed to make move")
	}
}

func (that *Server) handleDisconnect(ctx context.Context, cl *client) {
	log := that.logger.With("method", "handleDisconnect")

	if cl.playerID == "" {
		return
	}

	that.connectionsMutex.Lock()
	current, ok := that.connections[cl.playerID]
	isCurrent := ok && current == cl
	if isCurrent {
		delete(that.connections, cl.playerID)
	}
	that.connectionsMutex.Unlock()

	// A replaced connection tears down after the player already reconnected
	// elsewhere; only the current connection's loss means the player left.
	if !isCurrent {
		log.Info("stale connection closed", "playerID", cl.playerID)
		return
	}

	that.usecase.Disconnect(ctx, cl.playerID)

	log.Info("player disconnected", "playerID", cl.playerID)
}

func (that *Server) registerConnection(cl *client) {
	that.connectionsMutex.Lock()
	defer that.connectionsMutex.Unlock()

	if previous, ok := that.connections[cl.playerID]; ok && previous != cl {
		previous.close()
	}

	that.connections[cl.playerID] = cl
}

func (that *Server) lookupConnection(playerID string) (*client, bool) {
	that.connectionsMutex.RLock()
	defer that.connectionsMutex.RUnlock()

	cl, ok := that.connections[playerID]

	return cl, ok
}

// SendSnapshot delivers a personalized snapshot to one participant. It is
// fire-and-forget: an unknown or slow recipient is skipped.
func (that *Server) SendSnapshot(playerID string, snapshot entity.Snapshot) {
	cl, ok := that.lookupConnection(playerID)
	if !ok {
		return
	}

	if err := that.enqueueMessage(cl, actionGameState, Payload{Snapshot: &snapshot}); err != nil {
		that.logger.Error("failed to send snapshot", "playerID", playerID, "error", err)
	}
}

// MatchStarted announces the match and each recipient's own seat.
func (that *Server) MatchStarted(matchID string, seats [2]string) {
	for seat, playerID := range seats {
		cl, ok := that.lookupConnection(playerID)
		if !ok {
			that.logger.Warn("connection not found for player", "playerID", playerID)
			continue
		}

		info := MatchInfo{
			ID:     matchID,
			You:    entity.Seat(seat),
			Winner: entity.SeatNone,
		}

		if err := that.enqueueMessage(cl, actionGameStart, Payload{Match: &info}); err != nil {
			that.logger.Error("failed to send match started", "playerID", playerID, "error", err)
		}
	}
}

// MatchEnded announces the terminal result to every participant.
func (that *Server) MatchEnded(matchID string, seats [2]string, phase string, winner entity.Seat) {
	for seat, playerID := range seats {
		cl, ok := that.lookupConnection(playerID)
		if !ok {
			continue
		}

		info := MatchInfo{
			ID:     matchID,
			You:    entity.Seat(seat),
			Phase:  phase,
			Winner: winner,
		}

		if err := that.enqueueMessage(cl, actionGameEnd, Payload{Match: &info}); err != nil {
			that.logger.Error("failed to send match ended", "playerID", playerID, "error", err)
		}
	}
}
