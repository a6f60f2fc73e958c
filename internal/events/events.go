package events

// Type identifies a game event variant.
type Type string

const (
	TypeMatchStart      Type = "match_start"
	TypeMatchComplete   Type = "match_complete"
	TypeDeckSubmission  Type = "deck_submission"
	TypeGameStateUpdate Type = "game_state_update"
	TypeMulliganPrompt  Type = "mulligan_prompt"
	TypeCardDrawn       Type = "card_drawn"
	TypeCardPlayed      Type = "card_played"
	TypeZoneChange      Type = "zone_change"
	TypeLifeTotalChange Type = "life_total_change"
	TypeTurnChange      Type = "turn_change"
	TypePhaseChange     Type = "phase_change"
	TypeDamageDealt     Type = "damage_dealt"
	TypeIntermission    Type = "intermission"
)

// MatchResult values reported on match completion.
const (
	ResultWin  = "win"
	ResultLoss = "loss"
	ResultDraw = "draw"
)

// Zone type strings as they appear in the Arena game state wire format.
const (
	ZoneLibrary     = "ZoneType_Library"
	ZoneHand        = "ZoneType_Hand"
	ZoneBattlefield = "ZoneType_Battlefield"
	ZoneGraveyard   = "ZoneType_Graveyard"
	ZoneExile       = "ZoneType_Exile"
	ZoneStack       = "ZoneType_Stack"
	ZoneCommand     = "ZoneType_Command"
)

// GameEvent is the closed set of events decoded from the Arena log.
// Consumers switch exhaustively on EventType().
type GameEvent interface {
	EventType() Type
}

// CardQuantity is one deck entry: a grpId and how many copies.
type CardQuantity struct {
	GrpID    int `json:"grpId"`
	Quantity int `json:"quantity"`
}

// BoardObject is one tracked game object at the time of a state update.
type BoardObject struct {
	InstanceID int    `json:"instanceId"`
	GrpID      int    `json:"grpId"`
	OwnerSeat  int    `json:"ownerSeatId"`
	Zone       string `json:"zone"`
}

type MatchStart struct {
	MatchID      string `json:"matchId"`
	SeatID       int    `json:"seatId"`
	TeamID       int    `json:"teamId"`
	PlayerName   string `json:"playerName"`
	OpponentName string `json:"opponentName"`
	EventName    string `json:"eventName"`
}

func (MatchStart) EventType() Type { return TypeMatchStart }

type MatchComplete struct {
	MatchID     string `json:"matchId"`
	Result      string `json:"result"`
	WinningTeam int    `json:"winningTeam"`
}

func (MatchComplete) EventType() Type { return TypeMatchComplete }

type DeckSubmission struct {
	Deck      []CardQuantity `json:"deck"`
	Sideboard []CardQuantity `json:"sideboard"`
	Commander []CardQuantity `json:"commander"`
}

func (DeckSubmission) EventType() Type { return TypeDeckSubmission }

// GameStateUpdate carries the full rebuilt object table so consumers can
// reconstruct zone contents without tracking diffs themselves.
type GameStateUpdate struct {
	Objects []BoardObject `json:"objects"`
	Turn    int           `json:"turn"`
	Phase   string        `json:"phase"`
	Step    string        `json:"step"`
}

func (GameStateUpdate) EventType() Type { return TypeGameStateUpdate }

// MulliganPrompt is emitted with an empty Hand when the prompt is first seen,
// then again with Hand populated once the hand zone contents are revealed.
type MulliganPrompt struct {
	SeatID int   `json:"seatId"`
	Number int   `json:"number"` // 0 = opening hand, 1 = first mulligan, ...
	Hand   []int `json:"hand"`   // grpIds, nil until backfilled
}

func (MulliganPrompt) EventType() Type { return TypeMulliganPrompt }

type CardDrawn struct {
	SeatID     int `json:"seatId"`
	InstanceID int `json:"instanceId"`
	GrpID      int `json:"grpId"`
}

func (CardDrawn) EventType() Type { return TypeCardDrawn }

type CardPlayed struct {
	SeatID     int    `json:"seatId"`
	InstanceID int    `json:"instanceId"`
	GrpID      int    `json:"grpId"`
	FromZone   string `json:"fromZone"`
	ToZone     string `json:"toZone"`
}

func (CardPlayed) EventType() Type { return TypeCardPlayed }

type ZoneChange struct {
	SeatID     int    `json:"seatId"`
	InstanceID int    `json:"instanceId"`
	GrpID      int    `json:"grpId"`
	FromZone   string `json:"fromZone"`
	ToZone     string `json:"toZone"`
	Category   string `json:"category"`
}

func (ZoneChange) EventType() Type { return TypeZoneChange }

type LifeTotalChange struct {
	SeatID int `json:"seatId"`
	Life   int `json:"life"`
}

func (LifeTotalChange) EventType() Type { return TypeLifeTotalChange }

type TurnChange struct {
	Turn       int `json:"turn"`
	ActiveSeat int `json:"activeSeat"`
}

func (TurnChange) EventType() Type { return TypeTurnChange }

type PhaseChange struct {
	Phase string `json:"phase"`
	Step  string `json:"step"`
}

func (PhaseChange) EventType() Type { return TypePhaseChange }

// DamageDealt reports damage from a source object. When the target could not
// be resolved to a card it is treated as a player seat.
type DamageDealt struct {
	SourceGrpID int `json:"sourceGrpId"`
	TargetGrpID int `json:"targetGrpId"`
	TargetSeat  int `json:"targetSeat"`
	Amount      int `json:"amount"`
}

func (DamageDealt) EventType() Type { return TypeDamageDealt }

type Intermission struct {
	GameNumber int `json:"gameNumber"`
}

func (Intermission) EventType() Type { return TypeIntermission }
