package session

// Wire types for the live-table gateway protocol. Field names follow
// the gateway's camelCase JSON.

// sessionReadyWire is the first message after a successful join.
type sessionReadyWire struct {
	Type       string `json:"type"`
	SessionID  string `json:"sessionId"`
	PublicKey  string `json:"publicKey"`
	Registered bool   `json:"registered"`
	Balance    int64  `json:"balance"`
}

// balanceWire carries authoritative balance updates.
type balanceWire struct {
	Type       string `json:"type"`
	Balance    int64  `json:"balance"`
	Registered bool   `json:"registered"`
	HasBalance bool   `json:"hasBalance"`
}

// gameStartedWire announces a new round on the table.
type gameStartedWire struct {
	Type     string `json:"type"`
	GameID   string `json:"gameId"`
	GameType string `json:"gameType"`
	Bet      int64  `json:"bet"`
}

// gameResultWire closes a round with the outcome and payout.
type gameResultWire struct {
	Type   string `json:"type"`
	GameID string `json:"gameId"`
	Won    bool   `json:"won"`
	Payout int64  `json:"payout"`
	Result string `json:"result"`
}

// errorWire is a gateway-reported error, tied to a request when the
// gateway can attribute it.
type errorWire struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// betWire is the outbound bet command.
type betWire struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	PlayerID  string `json:"playerId"`
	Kind      string `json:"kind"`
	Amount    int64  `json:"amount"`
}
