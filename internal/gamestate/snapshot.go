package gamestate

// CardCount is one deck entry with its live remaining counter.
type CardCount struct {
	GrpID     int     `json:"grpId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Remaining int     `json:"remaining"`
	DrawOdds  float64 `json:"drawOdds"`
}

// ZoneCard is one visible object in a zone.
type ZoneCard struct {
	InstanceID int    `json:"instanceId"`
	GrpID      int    `json:"grpId"`
	Name       string `json:"name"`
}

// Snapshot is the full reconstructed view of the match at one point in time.
// Copies handed to subscribers share nothing with the engine's own state.
type Snapshot struct {
	Active       bool   `json:"active"`
	Sideboarding bool   `json:"sideboarding"`
	MatchID      string `json:"matchId"`
	GameNumber   int    `json:"gameNumber"`
	Result       string `json:"result"`

	PlayerSeat   int    `json:"playerSeat"`
	StartingLife int    `json:"startingLife"`
	PlayerLife   int    `json:"playerLife"`
	OpponentLife int    `json:"opponentLife"`
	Turn         int    `json:"turn"`
	Phase        string `json:"phase"`
	Step         string `json:"step"`

	Deck        []CardCount `json:"deck"`
	Sideboard   []CardCount `json:"sideboard"`
	LibrarySize int         `json:"librarySize"`

	Hand        []ZoneCard `json:"hand"`
	Battlefield []ZoneCard `json:"battlefield"`
	Graveyard   []ZoneCard `json:"graveyard"`
	Exile       []ZoneCard `json:"exile"`

	OppHandCount   int        `json:"oppHandCount"`
	OppBattlefield []ZoneCard `json:"oppBattlefield"`
	OppGraveyard   []ZoneCard `json:"oppGraveyard"`
	OppExile       []ZoneCard `json:"oppExile"`

	CardsDrawn        []int `json:"cardsDrawn"`
	OpponentCardsSeen []int `json:"opponentCardsSeen"`

	MulliganCount int   `json:"mulliganCount"`
	OpeningHand   []int `json:"openingHand"`

	// DrawProbabilities maps grpId to the chance the next draw is that card,
	// uniform over the remaining library. Empty when the library is empty.
	DrawProbabilities map[int]float64 `json:"drawProbabilities"`
}

// clone deep-copies the snapshot so subscribers can hold it freely.
func (s Snapshot) clone() Snapshot {
	out := s
	out.Deck = append([]CardCount(nil), s.Deck...)
	out.Sideboard = append([]CardCount(nil), s.Sideboard...)
	out.Hand = append([]ZoneCard(nil), s.Hand...)
	out.Battlefield = append([]ZoneCard(nil), s.Battlefield...)
	out.Graveyard = append([]ZoneCard(nil), s.Graveyard...)
	out.Exile = append([]ZoneCard(nil), s.Exile...)
	out.OppBattlefield = append([]ZoneCard(nil), s.OppBattlefield...)
	out.OppGraveyard = append([]ZoneCard(nil), s.OppGraveyard...)
	out.OppExile = append([]ZoneCard(nil), s.OppExile...)
	out.CardsDrawn = append([]int(nil), s.CardsDrawn...)
	out.OpponentCardsSeen = append([]int(nil), s.OpponentCardsSeen...)
	out.OpeningHand = append([]int(nil), s.OpeningHand...)
	out.DrawProbabilities = make(map[int]float64, len(s.DrawProbabilities))
	for k, v := range s.DrawProbabilities {
		out.DrawProbabilities[k] = v
	}
	return out
}
