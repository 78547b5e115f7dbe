package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullspace-games/tablelink/internal/transport"
)

type fakeSender struct {
	sent []any
	err  error
}

func (f *fakeSender) Send(v any) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, v)
	return nil
}

type fakeGate struct {
	open bool
}

func (f *fakeGate) CanSubmit() bool { return f.open }

func wireMsg(t *testing.T, typ string, body string) transport.Message {
	t.Helper()
	require.True(t, json.Valid([]byte(body)), "test fixture must be valid JSON")
	return transport.Message{Type: typ, Data: json.RawMessage(body), ReceivedAt: time.Now()}
}

func feedAndClose(t *testing.T, s *Session, msgs ...transport.Message) {
	t.Helper()
	ch := make(chan transport.Message, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)
	s.Start(ch)
	s.Close()
}

func TestSession_FoldsLifecycleMessages(t *testing.T) {
	s := New("player-7", &fakeSender{}, &fakeGate{open: true}, nil)

	feedAndClose(t, s,
		wireMsg(t, "session_ready", `{"type":"session_ready","sessionId":"sess-1","balance":5000}`),
		wireMsg(t, "game_started", `{"type":"game_started","gameId":"g-1","gameType":"roulette","bet":100}`),
		wireMsg(t, "balance", `{"type":"balance","balance":4900,"registered":true,"hasBalance":true}`),
		wireMsg(t, "game_result", `{"type":"game_result","gameId":"g-1","won":true,"payout":200,"result":"17"}`),
	)

	snap := s.Snapshot()
	assert.Equal(t, "sess-1", snap.SessionID)
	assert.Equal(t, "player-7", snap.PlayerID)
	assert.Equal(t, int64(4900), snap.Balance)
	assert.False(t, snap.GameActive)
	assert.Equal(t, "g-1", snap.LastGameID)
	assert.False(t, snap.ReadyAt.IsZero())
}

func TestSession_GameActiveBetweenStartAndResult(t *testing.T) {
	s := New("player-7", &fakeSender{}, &fakeGate{open: true}, nil)

	feedAndClose(t, s,
		wireMsg(t, "session_ready", `{"type":"session_ready","sessionId":"sess-1","balance":5000}`),
		wireMsg(t, "game_started", `{"type":"game_started","gameId":"g-2","gameType":"dice","bet":50}`),
	)

	snap := s.Snapshot()
	assert.True(t, snap.GameActive)
	assert.Equal(t, "g-2", snap.LastGameID)
}

func TestSession_RecordsGatewayErrorVerbatim(t *testing.T) {
	s := New("player-7", &fakeSender{}, &fakeGate{open: true}, nil)

	feedAndClose(t, s,
		wireMsg(t, "error", `{"type":"error","requestId":"r-1","code":"INSUFFICIENT_FUNDS","message":"balance too low"}`),
	)

	assert.Equal(t, "INSUFFICIENT_FUNDS: balance too low", s.Snapshot().LastError)
}

func TestSession_IgnoresMalformedAndUnknownMessages(t *testing.T) {
	s := New("player-7", &fakeSender{}, &fakeGate{open: true}, nil)

	feedAndClose(t, s,
		wireMsg(t, "session_ready", `{"type":"session_ready","sessionId":"sess-1","balance":5000}`),
		wireMsg(t, "balance", `{"type":"balance","balance":"not a number"}`),
		wireMsg(t, "table_chat", `{"type":"table_chat","text":"hi"}`),
	)

	// The malformed balance update must not clobber the known-good state.
	assert.Equal(t, int64(5000), s.Snapshot().Balance)
}

func TestSession_CloseDrainsBufferedMessages(t *testing.T) {
	// Close racing a full message buffer must not drop updates: every
	// message delivered before Close has to reach the snapshot.
	for i := 0; i < 20; i++ {
		s := New("player-7", &fakeSender{}, &fakeGate{open: true}, nil)

		ch := make(chan transport.Message, 4)
		ch <- wireMsg(t, "session_ready", `{"type":"session_ready","sessionId":"sess-1","balance":5000}`)
		ch <- wireMsg(t, "game_started", `{"type":"game_started","gameId":"g-9","gameType":"dice","bet":50}`)
		ch <- wireMsg(t, "balance", `{"type":"balance","balance":4950}`)
		close(ch)

		s.Start(ch)
		s.Close()

		snap := s.Snapshot()
		require.Equal(t, "sess-1", snap.SessionID)
		require.Equal(t, "g-9", snap.LastGameID)
		require.True(t, snap.GameActive)
		require.Equal(t, int64(4950), snap.Balance)
	}
}

func TestSession_PlaceBetSendsCommandWithRequestID(t *testing.T) {
	sender := &fakeSender{}
	s := New("player-7", sender, &fakeGate{open: true}, nil)

	id, err := s.PlaceBet(context.Background(), "straight", 25)
	require.NoError(t, err)

	_, parseErr := uuid.Parse(id)
	assert.NoError(t, parseErr, "request id must be a uuid")

	require.Len(t, sender.sent, 1)
	bet, ok := sender.sent[0].(betWire)
	require.True(t, ok)
	assert.Equal(t, "game_move", bet.Type)
	assert.Equal(t, id, bet.RequestID)
	assert.Equal(t, "player-7", bet.PlayerID)
	assert.Equal(t, "straight", bet.Kind)
	assert.Equal(t, int64(25), bet.Amount)
}

func TestSession_PlaceBetRefusedWhileReadOnly(t *testing.T) {
	sender := &fakeSender{}
	s := New("player-7", sender, &fakeGate{open: false}, nil)

	_, err := s.PlaceBet(context.Background(), "straight", 25)
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.Empty(t, sender.sent, "nothing may reach the wire while read-only")
}

func TestSession_PlaceBetSurfacesSendError(t *testing.T) {
	sender := &fakeSender{err: transport.ErrNotConnected}
	s := New("player-7", sender, &fakeGate{open: true}, nil)

	_, err := s.PlaceBet(context.Background(), "straight", 25)
	assert.ErrorIs(t, err, transport.ErrNotConnected)
}

func TestSession_PlaceBetHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New("player-7", &fakeSender{}, &fakeGate{open: true}, nil)
	_, err := s.PlaceBet(ctx, "straight", 25)
	assert.True(t, errors.Is(err, context.Canceled))
}
