package extractor

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/Karolis332/MTG-deck-builder-sub000/internal/arenalog"
	"github.com/Karolis332/MTG-deck-builder-sub000/internal/events"
)

func block(tag, payload string) arenalog.Block {
	return arenalog.Block{Tag: tag, Payload: json.RawMessage(payload)}
}

// gre wraps one game state message body into the full envelope.
func gre(body string) arenalog.Block {
	return block(arenalog.TagStandalone, fmt.Sprintf(
		`{"greToClientEvent":{"greToClientMessages":[{"type":"GREMessageType_GameStateMessage","gameStateMessage":%s}]}}`,
		body))
}

func eventsOf(t *testing.T, evs []events.GameEvent, typ events.Type) []events.GameEvent {
	t.Helper()
	var out []events.GameEvent
	for _, ev := range evs {
		if ev.EventType() == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestLifeDeltasAccumulate(t *testing.T) {
	ctx := NewContext()
	ctx.PlayerSeatID = 1

	deltas := []int{-2, -3, 1}
	want := []int{18, 15, 16}

	for i, d := range deltas {
		b := gre(fmt.Sprintf(
			`{"type":"GameStateType_Diff","annotations":[{"id":1,"affectedIds":[2],"type":["AnnotationType_ModifiedLife"],"details":[{"key":"life","valueInt32":[%d]}]}]}`, d))
		evs := eventsOf(t, Extract(b, ctx), events.TypeLifeTotalChange)
		if len(evs) != 1 {
			t.Fatalf("delta %d: got %d life events, want 1", d, len(evs))
		}
		lc := evs[0].(events.LifeTotalChange)
		if lc.Life != want[i] || lc.SeatID != 2 {
			t.Errorf("delta %d: got seat %d life %d, want seat 2 life %d", d, lc.SeatID, lc.Life, want[i])
		}
	}
}

func TestIdentityChainCycleTerminates(t *testing.T) {
	ctx := NewContext()
	ctx.IDChain[5] = 6
	ctx.IDChain[6] = 7
	ctx.IDChain[7] = 5 // cycle, no grpId anywhere

	grp, _ := ctx.resolveInstance(5)
	if grp != 0 {
		t.Errorf("grp = %d, want 0 for unresolvable cycle", grp)
	}

	// A chain that reaches a known identity resolves through it.
	ctx.InstanceGrp[7] = 4242
	ctx.InstanceOwner[7] = 2
	grp, owner := ctx.resolveInstance(5)
	if grp != 4242 || owner != 2 {
		t.Errorf("got grp %d owner %d, want 4242/2", grp, owner)
	}
}

func TestZoneTransferEmitsDrawAndPlay(t *testing.T) {
	ctx := NewContext()
	ctx.PlayerSeatID = 1

	setup := gre(`{"type":"GameStateType_Full",
		"zones":[
			{"zoneId":31,"type":"ZoneType_Library","ownerSeatId":1},
			{"zoneId":35,"type":"ZoneType_Hand","ownerSeatId":1},
			{"zoneId":28,"type":"ZoneType_Battlefield"}],
		"gameObjects":[{"instanceId":100,"grpId":111,"zoneId":31,"ownerSeatId":1}]}`)
	Extract(setup, ctx)

	draw := gre(`{"type":"GameStateType_Diff",
		"annotations":[{"id":1,"affectedIds":[100],"type":["AnnotationType_ZoneTransfer"],
			"details":[{"key":"zone_src","valueInt32":[31]},{"key":"zone_dest","valueInt32":[35]},{"key":"category","valueString":["Draw"]}]}]}`)
	evs := Extract(draw, ctx)

	drawn := eventsOf(t, evs, events.TypeCardDrawn)
	if len(drawn) != 1 {
		t.Fatalf("got %d card_drawn, want 1", len(drawn))
	}
	cd := drawn[0].(events.CardDrawn)
	if cd.GrpID != 111 || cd.SeatID != 1 {
		t.Errorf("card_drawn = %+v", cd)
	}
	if len(eventsOf(t, evs, events.TypeZoneChange)) != 1 {
		t.Error("zone_change missing for library->hand")
	}

	play := gre(`{"type":"GameStateType_Diff",
		"annotations":[{"id":2,"affectedIds":[100],"type":["AnnotationType_ZoneTransfer"],
			"details":[{"key":"zone_src","valueInt32":[35]},{"key":"zone_dest","valueInt32":[28]},{"key":"category","valueString":["CastSpell"]}]}]}`)
	played := eventsOf(t, Extract(play, ctx), events.TypeCardPlayed)
	if len(played) != 1 {
		t.Fatalf("got %d card_played, want 1", len(played))
	}
}

func TestRemapBeforeTransferInSameDiff(t *testing.T) {
	ctx := NewContext()
	ctx.PlayerSeatID = 1
	Extract(gre(`{"type":"GameStateType_Full",
		"zones":[
			{"zoneId":31,"type":"ZoneType_Library","ownerSeatId":1},
			{"zoneId":35,"type":"ZoneType_Hand","ownerSeatId":1}],
		"gameObjects":[{"instanceId":100,"grpId":111,"zoneId":31,"ownerSeatId":1}]}`), ctx)

	// The same diff renumbers instance 100 to 200 and moves 200 to hand.
	// Remaps must be applied first for the transfer to resolve.
	b := gre(`{"type":"GameStateType_Diff","annotations":[
		{"id":1,"affectedIds":[200],"type":["AnnotationType_ZoneTransfer"],
			"details":[{"key":"zone_src","valueInt32":[31]},{"key":"zone_dest","valueInt32":[35]}]},
		{"id":2,"affectedIds":[100],"type":["AnnotationType_ObjectIdChanged"],
			"details":[{"key":"orig_id","valueInt32":[100]},{"key":"new_id","valueInt32":[200]}]}]}`)
	drawn := eventsOf(t, Extract(b, ctx), events.TypeCardDrawn)
	if len(drawn) != 1 {
		t.Fatalf("got %d card_drawn, want 1 (remap should precede transfer)", len(drawn))
	}
	if drawn[0].(events.CardDrawn).GrpID != 111 {
		t.Errorf("grpId = %d, want 111 via remap chain", drawn[0].(events.CardDrawn).GrpID)
	}
}

func TestShuffleBulkRemap(t *testing.T) {
	ctx := NewContext()
	ctx.InstanceGrp[10] = 501
	ctx.InstanceGrp[11] = 502
	ctx.InstanceOwner[10] = 1
	ctx.InstanceOwner[11] = 1

	Extract(gre(`{"type":"GameStateType_Diff","annotations":[
		{"id":1,"affectedIds":[],"type":["AnnotationType_Shuffle"],
			"details":[{"key":"OldIds","valueInt32":[10,11]},{"key":"NewIds","valueInt32":[20,21]}]}]}`), ctx)

	if grp, _ := ctx.resolveInstance(20); grp != 501 {
		t.Errorf("instance 20 resolves to %d, want 501", grp)
	}
	if grp, _ := ctx.resolveInstance(21); grp != 502 {
		t.Errorf("instance 21 resolves to %d, want 502", grp)
	}
}

func TestTurnPhaseEdgeTriggered(t *testing.T) {
	ctx := NewContext()

	b := gre(`{"type":"GameStateType_Diff","turnInfo":{"turnNumber":3,"activePlayer":1,"phase":"Phase_Main1","step":""}}`)
	evs := Extract(b, ctx)
	if len(eventsOf(t, evs, events.TypeTurnChange)) != 1 || len(eventsOf(t, evs, events.TypePhaseChange)) != 1 {
		t.Fatalf("first diff should emit turn and phase changes, got %v", evs)
	}

	// Identical values: nothing emitted.
	evs = Extract(b, ctx)
	if len(eventsOf(t, evs, events.TypeTurnChange)) != 0 || len(eventsOf(t, evs, events.TypePhaseChange)) != 0 {
		t.Errorf("repeated values re-emitted: %v", evs)
	}
}

func TestPlayersArrayLifeDoesNotDoubleEmit(t *testing.T) {
	ctx := NewContext()
	ctx.PlayerSeatID = 1

	// Annotation applies the delta; the players array then reports the same
	// absolute total in the same message.
	b := gre(`{"type":"GameStateType_Diff",
		"annotations":[{"id":1,"affectedIds":[2],"type":["AnnotationType_ModifiedLife"],"details":[{"key":"life","valueInt32":[-2]}]}],
		"players":[{"systemSeatNumber":2,"teamId":2,"lifeTotal":18}]}`)
	evs := eventsOf(t, Extract(b, ctx), events.TypeLifeTotalChange)
	if len(evs) != 1 {
		t.Fatalf("got %d life events, want 1", len(evs))
	}
}

func TestRoomStateRosterAndResult(t *testing.T) {
	ctx := NewContext()
	ctx.PlayerName = "Karolis"

	start := block(arenalog.TagStandalone, `{"matchGameRoomStateChangedEvent":{"gameRoomInfo":{
		"stateType":"MatchGameRoomStateType_Playing",
		"gameRoomConfig":{"matchId":"m-1","eventId":"Ladder","reservedPlayers":[
			{"playerName":"Opponent","systemSeatId":1,"teamId":1},
			{"playerName":"Karolis","systemSeatId":2,"teamId":2}]}}}}`)
	evs := eventsOf(t, Extract(start, ctx), events.TypeMatchStart)
	if len(evs) != 1 {
		t.Fatalf("got %d match_start, want 1", len(evs))
	}
	ms := evs[0].(events.MatchStart)
	if ms.SeatID != 2 || ms.TeamID != 2 || ms.OpponentName != "Opponent" {
		t.Errorf("match_start = %+v, want seat 2 via name match", ms)
	}

	end := block(arenalog.TagStandalone, `{"matchGameRoomStateChangedEvent":{"gameRoomInfo":{
		"stateType":"MatchGameRoomStateType_MatchCompleted",
		"finalMatchResult":{"matchId":"m-1","resultList":[{"scope":"MatchScope_Match","winningTeamId":2}]}}}}`)
	done := eventsOf(t, Extract(end, ctx), events.TypeMatchComplete)
	if len(done) != 1 {
		t.Fatalf("got %d match_complete, want 1", len(done))
	}
	if got := done[0].(events.MatchComplete).Result; got != events.ResultWin {
		t.Errorf("result = %q, want win", got)
	}
}

func TestRosterFallbackSeatOne(t *testing.T) {
	ctx := NewContext() // no known display name

	start := block(arenalog.TagStandalone, `{"matchGameRoomStateChangedEvent":{"gameRoomInfo":{
		"stateType":"MatchGameRoomStateType_Playing",
		"gameRoomConfig":{"matchId":"m-2","eventId":"Ladder","reservedPlayers":[
			{"playerName":"A","systemSeatId":1,"teamId":1},
			{"playerName":"B","systemSeatId":2,"teamId":2}]}}}}`)
	evs := eventsOf(t, Extract(start, ctx), events.TypeMatchStart)
	if len(evs) != 1 {
		t.Fatalf("got %d match_start, want 1", len(evs))
	}
	if evs[0].(events.MatchStart).SeatID != 1 {
		t.Errorf("seat = %d, want fallback seat 1", evs[0].(events.MatchStart).SeatID)
	}
}

func TestDeckSubmissionShapes(t *testing.T) {
	t.Run("deck set request", func(t *testing.T) {
		ctx := NewContext()
		b := block("Event_SetDeckV2", `{"Deck":{
			"MainDeck":[{"cardId":111,"quantity":4},{"cardId":222,"quantity":2}],
			"Sideboard":[{"cardId":333,"quantity":1}]}}`)
		evs := eventsOf(t, Extract(b, ctx), events.TypeDeckSubmission)
		if len(evs) != 1 {
			t.Fatalf("got %d deck_submission, want 1", len(evs))
		}
		ds := evs[0].(events.DeckSubmission)
		if len(ds.Deck) != 2 || ds.Deck[0].GrpID != 111 || ds.Deck[0].Quantity != 4 {
			t.Errorf("deck = %+v", ds.Deck)
		}
		if len(ds.Sideboard) != 1 {
			t.Errorf("sideboard = %+v", ds.Sideboard)
		}
	})

	t.Run("connect resp merges and counts duplicates", func(t *testing.T) {
		ctx := NewContext()
		b := block(arenalog.TagStandalone, `{"greToClientEvent":{"greToClientMessages":[
			{"type":"GREMessageType_ConnectResp","connectResp":{"deckMessage":{
				"deckCards":[111,111,111,222],
				"sideboardCards":[333],
				"commanderCards":[999]}}}]}}`)
		evs := eventsOf(t, Extract(b, ctx), events.TypeDeckSubmission)
		if len(evs) != 1 {
			t.Fatalf("got %d deck_submission, want 1", len(evs))
		}
		ds := evs[0].(events.DeckSubmission)
		byID := make(map[int]int)
		for _, cq := range ds.Deck {
			byID[cq.GrpID] = cq.Quantity
		}
		if byID[111] != 3 || byID[222] != 1 || byID[999] != 1 {
			t.Errorf("deck quantities = %v, want 111x3 222x1 999x1 (commander merged)", byID)
		}
	})
}

func TestMulliganPromptBackfill(t *testing.T) {
	ctx := NewContext()
	ctx.PlayerSeatID = 1

	prompt := block(arenalog.TagStandalone, `{"greToClientEvent":{"greToClientMessages":[
		{"type":"GREMessageType_MulliganReq","mulliganReq":{}}]}}`)
	evs := eventsOf(t, Extract(prompt, ctx), events.TypeMulliganPrompt)
	if len(evs) != 1 {
		t.Fatalf("got %d prompts, want 1", len(evs))
	}
	if evs[0].(events.MulliganPrompt).Hand != nil {
		t.Fatal("initial prompt should have an empty hand")
	}

	reveal := gre(`{"type":"GameStateType_Diff",
		"turnInfo":{"turnNumber":1,"phase":"Phase_Beginning","step":"Step_Upkeep"},
		"zones":[{"zoneId":35,"type":"ZoneType_Hand","ownerSeatId":1,"objectInstanceIds":[100,101]}],
		"gameObjects":[
			{"instanceId":100,"grpId":111,"zoneId":35,"ownerSeatId":1},
			{"instanceId":101,"grpId":222,"zoneId":35,"ownerSeatId":1}]}`)
	filled := eventsOf(t, Extract(reveal, ctx), events.TypeMulliganPrompt)
	if len(filled) != 1 {
		t.Fatalf("got %d backfilled prompts, want 1", len(filled))
	}
	hand := filled[0].(events.MulliganPrompt).Hand
	if len(hand) != 2 || hand[0] != 111 || hand[1] != 222 {
		t.Errorf("hand = %v, want [111 222]", hand)
	}

	// Only the most recent unfilled prompt is backfilled; a second reveal
	// does nothing.
	again := eventsOf(t, Extract(reveal, ctx), events.TypeMulliganPrompt)
	if len(again) != 0 {
		t.Errorf("prompt backfilled twice: %v", again)
	}
}

func TestMulliganBackfillCarriesPromptNumber(t *testing.T) {
	ctx := NewContext()
	ctx.PlayerSeatID = 1

	// Joining mid-mulligan: the first prompt observed already carries a
	// count of 2. The backfill must echo that number, not re-derive it from
	// how many prompts this context has seen.
	prompt := block(arenalog.TagStandalone, `{"greToClientEvent":{"greToClientMessages":[
		{"type":"GREMessageType_MulliganReq","mulliganReq":{"mulliganCount":2}}]}}`)
	evs := eventsOf(t, Extract(prompt, ctx), events.TypeMulliganPrompt)
	if len(evs) != 1 || evs[0].(events.MulliganPrompt).Number != 2 {
		t.Fatalf("prompt = %v, want number 2", evs)
	}

	reveal := gre(`{"type":"GameStateType_Diff",
		"turnInfo":{"turnNumber":1,"phase":"Phase_Beginning","step":"Step_Upkeep"},
		"zones":[{"zoneId":35,"type":"ZoneType_Hand","ownerSeatId":1,"objectInstanceIds":[100]}],
		"gameObjects":[{"instanceId":100,"grpId":111,"zoneId":35,"ownerSeatId":1}]}`)
	filled := eventsOf(t, Extract(reveal, ctx), events.TypeMulliganPrompt)
	if len(filled) != 1 {
		t.Fatalf("got %d backfilled prompts, want 1", len(filled))
	}
	if got := filled[0].(events.MulliganPrompt).Number; got != 2 {
		t.Errorf("backfilled number = %d, want 2 matching the prompt it fills", got)
	}
}

func TestIntermissionIncrementsGame(t *testing.T) {
	ctx := NewContext()
	ctx.GameNumber = 1

	b := block(arenalog.TagStandalone, `{"greToClientEvent":{"greToClientMessages":[
		{"type":"GREMessageType_IntermissionReq"}]}}`)
	evs := eventsOf(t, Extract(b, ctx), events.TypeIntermission)
	if len(evs) != 1 {
		t.Fatalf("got %d intermissions, want 1", len(evs))
	}
	if evs[0].(events.Intermission).GameNumber != 2 {
		t.Errorf("game = %d, want 2", evs[0].(events.Intermission).GameNumber)
	}
}

func TestUnresolvableIdentityDropped(t *testing.T) {
	ctx := NewContext()
	ctx.PlayerSeatID = 1
	Extract(gre(`{"type":"GameStateType_Full","zones":[
		{"zoneId":31,"type":"ZoneType_Library","ownerSeatId":1},
		{"zoneId":35,"type":"ZoneType_Hand","ownerSeatId":1}]}`), ctx)

	// Instance 900 was never announced; its transfer must be dropped and
	// counted, without aborting the rest of the block.
	b := gre(`{"type":"GameStateType_Diff","annotations":[
		{"id":1,"affectedIds":[900],"type":["AnnotationType_ZoneTransfer"],
			"details":[{"key":"zone_src","valueInt32":[31]},{"key":"zone_dest","valueInt32":[35]}]}]}`)
	evs := Extract(b, ctx)
	if len(eventsOf(t, evs, events.TypeCardDrawn)) != 0 {
		t.Error("unresolvable identity still produced a card_drawn")
	}
	if ctx.Stats.IdentityMisses == 0 {
		t.Error("identity miss not counted")
	}
}

func TestDamageTargetFallsBackToSeat(t *testing.T) {
	ctx := NewContext()
	ctx.InstanceGrp[50] = 777
	ctx.InstanceOwner[50] = 1

	b := gre(`{"type":"GameStateType_Diff","annotations":[
		{"id":1,"affectorId":50,"affectedIds":[2],"type":["AnnotationType_DamageDealt"],
			"details":[{"key":"damage","valueInt32":[3]}]}]}`)
	evs := eventsOf(t, Extract(b, ctx), events.TypeDamageDealt)
	if len(evs) != 1 {
		t.Fatalf("got %d damage events, want 1", len(evs))
	}
	dd := evs[0].(events.DamageDealt)
	if dd.SourceGrpID != 777 || dd.TargetSeat != 2 || dd.Amount != 3 {
		t.Errorf("damage = %+v, want source 777 hitting seat 2 for 3", dd)
	}
}

func TestContextResetClearsTables(t *testing.T) {
	ctx := NewContext()
	ctx.PlayerName = "Karolis"
	ctx.InstanceGrp[1] = 2
	ctx.LifeTotals[1] = 12
	ctx.LastTurn = 9

	ctx.Reset()

	if len(ctx.InstanceGrp) != 0 || len(ctx.LifeTotals) != 0 || ctx.LastTurn != 0 {
		t.Error("reset left decode state behind")
	}
	if ctx.PlayerName != "Karolis" {
		t.Error("reset should keep the player display name")
	}
}
