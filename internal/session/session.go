package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nullspace-games/tablelink/internal/transport"
)

// ErrReadOnly is returned when a bet is refused because the connection
// cannot carry it right now.
var ErrReadOnly = errors.New("connection is read-only")

// Sender is the outbound half of the gateway link.
type Sender interface {
	Send(v any) error
}

// Gate answers whether user actions may be submitted right now.
type Gate interface {
	CanSubmit() bool
}

// Snapshot is the session read model.
type Snapshot struct {
	SessionID  string
	PlayerID   string
	Balance    int64
	GameActive bool
	LastGameID string
	LastError  string
	ReadyAt    time.Time
}

// Session is the client-side view of a live-table seat. It folds the
// gateway message stream into a snapshot and submits bets through the
// read-only gate.
type Session struct {
	playerID string
	sender   Sender
	gate     Gate
	logger   *slog.Logger

	mu   sync.Mutex
	snap Snapshot

	done chan struct{}
	wg   sync.WaitGroup

	closeOnce sync.Once
}

// New creates a session for playerID. Pass nil logger to use slog.Default().
func New(playerID string, sender Sender, gate Gate, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		playerID: playerID,
		sender:   sender,
		gate:     gate,
		logger:   logger.With("component", "session", "player_id", playerID),
		snap:     Snapshot{PlayerID: playerID},
		done:     make(chan struct{}),
	}
}

// Start consumes msgs until the channel closes or Close is called.
func (s *Session) Start(msgs <-chan transport.Message) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.done:
				// Fold messages already delivered before stopping, so a
				// shutdown racing the stream never drops state updates.
				for {
					select {
					case msg, ok := <-msgs:
						if !ok {
							return
						}
						s.handle(msg)
					default:
						return
					}
				}
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				s.handle(msg)
			}
		}
	}()
}

// Close stops the consumer goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

// Snapshot returns a copy of the current read model.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// PlaceBet submits a bet and returns the request id assigned to it.
// It refuses with ErrReadOnly while the gate is closed; a transport
// send failure is surfaced unchanged.
func (s *Session) PlaceBet(ctx context.Context, kind string, amount int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !s.gate.CanSubmit() {
		return "", ErrReadOnly
	}

	requestID := uuid.NewString()
	msg := betWire{
		Type:      "game_move",
		RequestID: requestID,
		PlayerID:  s.playerID,
		Kind:      kind,
		Amount:    amount,
	}
	if err := s.sender.Send(msg); err != nil {
		return "", err
	}

	s.logger.Debug("bet submitted", "request_id", requestID, "kind", kind, "amount", amount)
	return requestID, nil
}

func (s *Session) handle(msg transport.Message) {
	switch msg.Type {
	case "session_ready":
		var w sessionReadyWire
		if err := json.Unmarshal(msg.Data, &w); err != nil {
			s.logger.Warn("bad session_ready message", "error", err)
			return
		}
		s.mu.Lock()
		s.snap.SessionID = w.SessionID
		s.snap.Balance = w.Balance
		s.snap.ReadyAt = msg.ReceivedAt
		s.mu.Unlock()
		s.logger.Info("session ready", "session_id", w.SessionID, "balance", w.Balance)

	case "balance":
		var w balanceWire
		if err := json.Unmarshal(msg.Data, &w); err != nil {
			s.logger.Warn("bad balance message", "error", err)
			return
		}
		s.mu.Lock()
		s.snap.Balance = w.Balance
		s.mu.Unlock()

	case "game_started":
		var w gameStartedWire
		if err := json.Unmarshal(msg.Data, &w); err != nil {
			s.logger.Warn("bad game_started message", "error", err)
			return
		}
		s.mu.Lock()
		s.snap.GameActive = true
		s.snap.LastGameID = w.GameID
		s.mu.Unlock()
		s.logger.Debug("game started", "game_id", w.GameID, "game_type", w.GameType)

	case "game_result":
		var w gameResultWire
		if err := json.Unmarshal(msg.Data, &w); err != nil {
			s.logger.Warn("bad game_result message", "error", err)
			return
		}
		s.mu.Lock()
		s.snap.GameActive = false
		s.snap.LastGameID = w.GameID
		s.mu.Unlock()
		s.logger.Debug("game result", "game_id", w.GameID, "won", w.Won, "payout", w.Payout)

	case "error":
		var w errorWire
		if err := json.Unmarshal(msg.Data, &w); err != nil {
			s.logger.Warn("bad error message", "error", err)
			return
		}
		// Recorded verbatim; the connectivity layer does not classify
		// application errors.
		s.mu.Lock()
		s.snap.LastError = w.Code + ": " + w.Message
		s.mu.Unlock()
		s.logger.Warn("gateway error", "code", w.Code, "message", w.Message, "request_id", w.RequestID)

	default:
		s.logger.Debug("unhandled message type", "type", msg.Type)
	}
}
