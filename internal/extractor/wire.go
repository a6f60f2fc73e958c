package extractor

import "encoding/json"

// Wire structs for the Arena client's JSON payloads. Only the fields the
// decoder reads are declared; everything else is ignored by encoding/json.

type logEnvelope struct {
	GreToClientEvent               *greToClientEvent   `json:"greToClientEvent"`
	MatchGameRoomStateChangedEvent *matchGameRoomEvent `json:"matchGameRoomStateChangedEvent"`
	AuthenticateResponse           *authenticateResp   `json:"authenticateResponse"`

	// Deck-set request shape, either nested under "Deck" or at top level
	// depending on client generation.
	Deck        *deckBody          `json:"Deck"`
	MainDeck    []cardQuantityWire `json:"MainDeck"`
	Sideboard   []cardQuantityWire `json:"Sideboard"`
	CommandZone []cardQuantityWire `json:"CommandZone"`
}

type authenticateResp struct {
	ClientID   string `json:"clientId"`
	ScreenName string `json:"screenName"`
}

type deckBody struct {
	MainDeck    []cardQuantityWire `json:"MainDeck"`
	Sideboard   []cardQuantityWire `json:"Sideboard"`
	CommandZone []cardQuantityWire `json:"CommandZone"`
}

// cardQuantityWire tolerates the two key spellings seen across client
// releases.
type cardQuantityWire struct {
	CardID   int `json:"cardId"`
	ID       int `json:"Id"`
	Quantity int `json:"quantity"`
	Qty      int `json:"Quantity"`
}

func (c cardQuantityWire) grpID() int {
	if c.CardID != 0 {
		return c.CardID
	}
	return c.ID
}

func (c cardQuantityWire) quantity() int {
	if c.Quantity != 0 {
		return c.Quantity
	}
	if c.Qty != 0 {
		return c.Qty
	}
	return 1
}

type greToClientEvent struct {
	GreToClientMessages []greMessage `json:"greToClientMessages"`
}

type greMessage struct {
	Type             string            `json:"type"`
	SystemSeatIDs    []int             `json:"systemSeatIds"`
	GameStateMessage *gameStateMessage `json:"gameStateMessage"`
	ConnectResp      *connectResp      `json:"connectResp"`
	MulliganReq      *mulliganReq      `json:"mulliganReq"`
}

type connectResp struct {
	DeckMessage *deckMessage `json:"deckMessage"`
}

type deckMessage struct {
	DeckCards      []int `json:"deckCards"`
	SideboardCards []int `json:"sideboardCards"`
	CommanderCards []int `json:"commanderCards"`
}

type mulliganReq struct {
	MulliganCount int `json:"mulliganCount"`
}

type gameStateMessage struct {
	Type                   string           `json:"type"`
	GameStateID            int              `json:"gameStateId"`
	GameInfo               *gameInfo        `json:"gameInfo"`
	TurnInfo               *turnInfo        `json:"turnInfo"`
	Players                []playerState    `json:"players"`
	Zones                  []zoneWire       `json:"zones"`
	GameObjects            []gameObjectWire `json:"gameObjects"`
	Annotations            []annotationWire `json:"annotations"`
	DiffDeletedInstanceIDs []int            `json:"diffDeletedInstanceIds"`
}

type gameInfo struct {
	MatchID    string `json:"matchID"`
	GameNumber int    `json:"gameNumber"`
	Stage      string `json:"stage"`
}

type turnInfo struct {
	TurnNumber   int    `json:"turnNumber"`
	ActivePlayer int    `json:"activePlayer"`
	Phase        string `json:"phase"`
	Step         string `json:"step"`
}

type playerState struct {
	SystemSeatNumber int `json:"systemSeatNumber"`
	TeamID           int `json:"teamId"`
	LifeTotal        int `json:"lifeTotal"`
}

type zoneWire struct {
	ZoneID            int    `json:"zoneId"`
	Type              string `json:"type"`
	OwnerSeatID       int    `json:"ownerSeatId"`
	ObjectInstanceIDs []int  `json:"objectInstanceIds"`
}

type gameObjectWire struct {
	InstanceID  int `json:"instanceId"`
	GrpID       int `json:"grpId"`
	ZoneID      int `json:"zoneId"`
	OwnerSeatID int `json:"ownerSeatId"`
}

type annotationWire struct {
	ID          int                `json:"id"`
	AffectorID  int                `json:"affectorId"`
	AffectedIDs []int              `json:"affectedIds"`
	Types       []string           `json:"type"`
	Details     []annotationDetail `json:"details"`
}

type annotationDetail struct {
	Key         string   `json:"key"`
	ValueInt32  []int    `json:"valueInt32"`
	ValueString []string `json:"valueString"`
}

func (a annotationWire) hasType(t string) bool {
	for _, at := range a.Types {
		if at == t {
			return true
		}
	}
	return false
}

func (a annotationWire) detailInt(key string) (int, bool) {
	for _, d := range a.Details {
		if d.Key == key && len(d.ValueInt32) > 0 {
			return d.ValueInt32[0], true
		}
	}
	return 0, false
}

func (a annotationWire) detailInts(key string) []int {
	for _, d := range a.Details {
		if d.Key == key {
			return d.ValueInt32
		}
	}
	return nil
}

func (a annotationWire) detailString(key string) string {
	for _, d := range a.Details {
		if d.Key == key && len(d.ValueString) > 0 {
			return d.ValueString[0]
		}
	}
	return ""
}

type matchGameRoomEvent struct {
	GameRoomInfo *gameRoomInfo `json:"gameRoomInfo"`
}

type gameRoomInfo struct {
	GameRoomConfig   *gameRoomConfig   `json:"gameRoomConfig"`
	StateType        string            `json:"stateType"`
	FinalMatchResult *finalMatchResult `json:"finalMatchResult"`
}

type gameRoomConfig struct {
	MatchID         string           `json:"matchId"`
	EventID         string           `json:"eventId"`
	ReservedPlayers []reservedPlayer `json:"reservedPlayers"`
}

type reservedPlayer struct {
	UserID       string `json:"userId"`
	PlayerName   string `json:"playerName"`
	SystemSeatID int    `json:"systemSeatId"`
	TeamID       int    `json:"teamId"`
}

type finalMatchResult struct {
	MatchID    string        `json:"matchId"`
	ResultList []matchResult `json:"resultList"`
}

type matchResult struct {
	Scope         string `json:"scope"`
	Result        string `json:"result"`
	WinningTeamID int    `json:"winningTeamId"`
}

func decodeEnvelope(payload json.RawMessage) (*logEnvelope, error) {
	var env logEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
