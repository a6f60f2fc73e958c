// Package extractor decodes tagged JSON blocks from the Arena log into typed
// game events. Extraction is a pure function of (block, context): the only
// state it touches is the Context passed in, so a watcher restarts cleanly by
// resetting that context.
package extractor

import (
	"sort"
	"strings"

	"github.com/Karolis332/MTG-deck-builder-sub000/internal/arenalog"
	"github.com/Karolis332/MTG-deck-builder-sub000/internal/events"
)

// GRE message types the decoder dispatches on.
const (
	msgGameState    = "GREMessageType_GameStateMessage"
	msgConnectResp  = "GREMessageType_ConnectResp"
	msgMulliganReq  = "GREMessageType_MulliganReq"
	msgIntermission = "GREMessageType_IntermissionReq"
)

// Annotation types, processed in this exact order within one diff: remaps
// first so later annotations in the same diff see the copied-forward
// identities, life after zone moves so lifelink-style combos report in log
// order.
const (
	annObjectIDChanged = "AnnotationType_ObjectIdChanged"
	annShuffle         = "AnnotationType_Shuffle"
	annZoneTransfer    = "AnnotationType_ZoneTransfer"
	annModifiedLife    = "AnnotationType_ModifiedLife"
	annDamageDealt     = "AnnotationType_DamageDealt"
)

const defaultStartingLife = 20

// Extract decodes one block against the context, returning any events it
// yields. Malformed payloads are counted and skipped, never fatal.
func Extract(block arenalog.Block, ctx *Context) []events.GameEvent {
	ctx.Stats.Blocks++

	env, err := decodeEnvelope(block.Payload)
	if err != nil {
		ctx.Stats.ParseErrors++
		return nil
	}

	var evs []events.GameEvent

	if env.AuthenticateResponse != nil && env.AuthenticateResponse.ScreenName != "" {
		// Display names carry a "#12345" discriminator suffix; the match
		// roster uses the bare name.
		name := env.AuthenticateResponse.ScreenName
		if idx := strings.Index(name, "#"); idx > 0 {
			name = name[:idx]
		}
		ctx.PlayerName = name
	}

	if env.MatchGameRoomStateChangedEvent != nil {
		evs = append(evs, extractRoomState(env.MatchGameRoomStateChangedEvent, ctx)...)
	}

	if deck := extractDeckSet(env, block.Tag); deck != nil {
		evs = append(evs, *deck)
	}

	if env.GreToClientEvent != nil {
		for _, msg := range env.GreToClientEvent.GreToClientMessages {
			evs = append(evs, extractGreMessage(msg, ctx)...)
		}
	}

	ctx.Stats.Events += len(evs)
	return evs
}

// extractRoomState handles match lifecycle blocks: the player roster at match
// start and the final result at completion.
func extractRoomState(ev *matchGameRoomEvent, ctx *Context) []events.GameEvent {
	info := ev.GameRoomInfo
	if info == nil {
		return nil
	}

	var evs []events.GameEvent

	if cfg := info.GameRoomConfig; cfg != nil && len(cfg.ReservedPlayers) > 0 && cfg.MatchID != ctx.MatchID {
		self := findSelf(cfg.ReservedPlayers, ctx.PlayerName)
		ctx.MatchID = cfg.MatchID
		ctx.PlayerSeatID = self.SystemSeatID
		ctx.PlayerTeamID = self.TeamID
		ctx.GameNumber = 1
		ctx.mulliganPrompts = 0
		ctx.pendingMulligan = false
		ctx.pendingNumber = 0

		opponent := ""
		for _, p := range cfg.ReservedPlayers {
			if p.SystemSeatID != self.SystemSeatID {
				opponent = p.PlayerName
				break
			}
		}
		evs = append(evs, events.MatchStart{
			MatchID:      cfg.MatchID,
			SeatID:       self.SystemSeatID,
			TeamID:       self.TeamID,
			PlayerName:   self.PlayerName,
			OpponentName: opponent,
			EventName:    cfg.EventID,
		})
	}

	if strings.Contains(info.StateType, "MatchCompleted") && info.FinalMatchResult != nil {
		winning := 0
		for _, r := range info.FinalMatchResult.ResultList {
			if strings.Contains(r.Scope, "Match") {
				winning = r.WinningTeamID
			}
		}
		result := events.ResultDraw
		switch {
		case winning == 0:
		case winning == ctx.PlayerTeamID:
			result = events.ResultWin
		default:
			result = events.ResultLoss
		}
		evs = append(evs, events.MatchComplete{
			MatchID:     info.FinalMatchResult.MatchID,
			Result:      result,
			WinningTeam: winning,
		})
	}

	return evs
}

// findSelf matches the roster against the known display name, falling back
// to seat 1 when the name was never observed.
func findSelf(players []reservedPlayer, name string) reservedPlayer {
	if name != "" {
		for _, p := range players {
			if strings.EqualFold(p.PlayerName, name) {
				return p
			}
		}
	}
	for _, p := range players {
		if p.SystemSeatID == 1 {
			return p
		}
	}
	return players[0]
}

// extractDeckSet handles the deck-set request shape, with the card list
// either nested under "Deck" or at the top level.
func extractDeckSet(env *logEnvelope, tag string) *events.DeckSubmission {
	body := env.Deck
	if body == nil && len(env.MainDeck) > 0 {
		body = &deckBody{MainDeck: env.MainDeck, Sideboard: env.Sideboard, CommandZone: env.CommandZone}
	}
	if body == nil || len(body.MainDeck) == 0 {
		return nil
	}
	// Deck payloads also appear on unrelated course/summary traffic; only
	// trust deck-set methods and standalone submissions.
	if tag != arenalog.TagStandalone && !strings.Contains(tag, "SetDeck") && !strings.Contains(tag, "Deck") {
		return nil
	}
	return &events.DeckSubmission{
		Deck:      toQuantities(body.MainDeck),
		Sideboard: toQuantities(body.Sideboard),
		Commander: toQuantities(body.CommandZone),
	}
}

func toQuantities(wire []cardQuantityWire) []events.CardQuantity {
	if len(wire) == 0 {
		return nil
	}
	out := make([]events.CardQuantity, 0, len(wire))
	for _, w := range wire {
		if w.grpID() == 0 {
			continue
		}
		out = append(out, events.CardQuantity{GrpID: w.grpID(), Quantity: w.quantity()})
	}
	return out
}

func extractGreMessage(msg greMessage, ctx *Context) []events.GameEvent {
	switch {
	case msg.Type == msgConnectResp && msg.ConnectResp != nil && msg.ConnectResp.DeckMessage != nil:
		return []events.GameEvent{connectRespDeck(msg.ConnectResp.DeckMessage)}

	case msg.Type == msgMulliganReq:
		number := ctx.mulliganPrompts
		if msg.MulliganReq != nil && msg.MulliganReq.MulliganCount > 0 {
			number = msg.MulliganReq.MulliganCount
		}
		ctx.mulliganPrompts++
		ctx.pendingMulligan = true
		ctx.pendingNumber = number
		return []events.GameEvent{events.MulliganPrompt{SeatID: ctx.PlayerSeatID, Number: number}}

	case msg.Type == msgIntermission:
		ctx.GameNumber++
		ctx.resetGameTables()
		ctx.LifeTotals = make(map[int]int)
		ctx.LastTurn = 0
		ctx.LastPhase = ""
		ctx.LastStep = ""
		ctx.mulliganPrompts = 0
		ctx.pendingMulligan = false
		ctx.pendingNumber = 0
		return []events.GameEvent{events.Intermission{GameNumber: ctx.GameNumber}}

	case msg.GameStateMessage != nil:
		return extractGameState(msg.GameStateMessage, ctx)
	}
	return nil
}

// connectRespDeck merges the deck and commander id lists, counting duplicate
// ids into quantities.
func connectRespDeck(dm *deckMessage) events.DeckSubmission {
	count := func(ids []int) []events.CardQuantity {
		if len(ids) == 0 {
			return nil
		}
		counts := make(map[int]int)
		var order []int
		for _, id := range ids {
			if id == 0 {
				continue
			}
			if counts[id] == 0 {
				order = append(order, id)
			}
			counts[id]++
		}
		out := make([]events.CardQuantity, 0, len(order))
		for _, id := range order {
			out = append(out, events.CardQuantity{GrpID: id, Quantity: counts[id]})
		}
		return out
	}

	merged := append(append([]int(nil), dm.DeckCards...), dm.CommanderCards...)
	return events.DeckSubmission{
		Deck:      count(merged),
		Sideboard: count(dm.SideboardCards),
		Commander: count(dm.CommanderCards),
	}
}

// extractGameState applies one game state message to the context and emits
// the events it implies. Processing order is fixed: deletions, object/zone
// table updates, annotations (remaps before transfers before life/damage),
// turn/phase edge triggers, the secondary players-array life source, mulligan
// backfill, and finally the rebuilt-object update event.
func extractGameState(gs *gameStateMessage, ctx *Context) []events.GameEvent {
	if gs.GameInfo != nil {
		if gs.GameInfo.MatchID != "" {
			ctx.MatchID = gs.GameInfo.MatchID
		}
		if gs.GameInfo.GameNumber > ctx.GameNumber {
			ctx.GameNumber = gs.GameInfo.GameNumber
		}
	}

	// A full (non-diff) state supersedes everything tracked so far.
	if strings.Contains(gs.Type, "Full") {
		ctx.resetGameTables()
	}

	for _, id := range gs.DiffDeletedInstanceIDs {
		delete(ctx.InstanceGrp, id)
		delete(ctx.InstanceOwner, id)
		delete(ctx.InstanceZone, id)
		delete(ctx.IDChain, id)
	}

	for _, z := range gs.Zones {
		ctx.Zones[z.ZoneID] = ZoneInfo{Type: z.Type, OwnerSeat: z.OwnerSeatID}
	}

	for _, o := range gs.GameObjects {
		if o.GrpID != 0 {
			ctx.InstanceGrp[o.InstanceID] = o.GrpID
		}
		if o.OwnerSeatID != 0 {
			ctx.InstanceOwner[o.InstanceID] = o.OwnerSeatID
		}
		if o.ZoneID != 0 {
			ctx.InstanceZone[o.InstanceID] = o.ZoneID
		}
	}

	var evs []events.GameEvent

	for _, ann := range gs.Annotations {
		if ann.hasType(annObjectIDChanged) {
			origID, _ := ann.detailInt("orig_id")
			newID, _ := ann.detailInt("new_id")
			applyIDRemap(ctx, origID, newID)
		}
	}
	for _, ann := range gs.Annotations {
		if ann.hasType(annShuffle) {
			oldIDs := ann.detailInts("OldIds")
			newIDs := ann.detailInts("NewIds")
			if len(oldIDs) == len(newIDs) {
				for i := range oldIDs {
					applyIDRemap(ctx, oldIDs[i], newIDs[i])
				}
			}
		}
	}
	for _, ann := range gs.Annotations {
		if ann.hasType(annZoneTransfer) {
			evs = append(evs, extractZoneTransfer(ann, ctx)...)
		}
	}
	for _, ann := range gs.Annotations {
		if ann.hasType(annModifiedLife) {
			evs = append(evs, extractModifiedLife(ann, ctx)...)
		}
	}
	for _, ann := range gs.Annotations {
		if ann.hasType(annDamageDealt) {
			evs = append(evs, extractDamage(ann, ctx)...)
		}
	}

	if ti := gs.TurnInfo; ti != nil {
		if ti.TurnNumber > 0 && ti.TurnNumber != ctx.LastTurn {
			ctx.LastTurn = ti.TurnNumber
			evs = append(evs, events.TurnChange{Turn: ti.TurnNumber, ActiveSeat: ti.ActivePlayer})
		}
		if (ti.Phase != "" && ti.Phase != ctx.LastPhase) || (ti.Step != "" && ti.Step != ctx.LastStep) {
			if ti.Phase != "" {
				ctx.LastPhase = ti.Phase
			}
			if ti.Step != "" {
				ctx.LastStep = ti.Step
			}
			evs = append(evs, events.PhaseChange{Phase: ctx.LastPhase, Step: ctx.LastStep})
		}
	}

	// Secondary life source: the players array reports absolute totals. The
	// annotation path above already updated LifeTotals, so an unchanged
	// value here emits nothing.
	for _, p := range gs.Players {
		if p.SystemSeatNumber == 0 {
			continue
		}
		if p.SystemSeatNumber == ctx.PlayerSeatID && p.TeamID != 0 {
			ctx.PlayerTeamID = p.TeamID
		}
		if last, ok := ctx.LifeTotals[p.SystemSeatNumber]; !ok || last != p.LifeTotal {
			ctx.LifeTotals[p.SystemSeatNumber] = p.LifeTotal
			evs = append(evs, events.LifeTotalChange{SeatID: p.SystemSeatNumber, Life: p.LifeTotal})
		}
	}

	if ev := backfillMulligan(gs, ctx); ev != nil {
		evs = append(evs, *ev)
	}

	if len(gs.Zones) > 0 || len(gs.GameObjects) > 0 || len(gs.Annotations) > 0 || len(gs.DiffDeletedInstanceIDs) > 0 {
		evs = append(evs, buildStateUpdate(ctx))
	}

	return evs
}

// applyIDRemap records newId -> origId and eagerly copies known identity and
// ownership onto the new id so later annotations resolve it directly.
func applyIDRemap(ctx *Context, origID, newID int) {
	if origID == 0 || newID == 0 || origID == newID {
		return
	}
	ctx.IDChain[newID] = origID
	if grp, ok := ctx.InstanceGrp[origID]; ok && grp != 0 {
		if _, have := ctx.InstanceGrp[newID]; !have {
			ctx.InstanceGrp[newID] = grp
		}
	}
	if owner, ok := ctx.InstanceOwner[origID]; ok && owner != 0 {
		if _, have := ctx.InstanceOwner[newID]; !have {
			ctx.InstanceOwner[newID] = owner
		}
	}
	if zone, ok := ctx.InstanceZone[origID]; ok {
		if _, have := ctx.InstanceZone[newID]; !have {
			ctx.InstanceZone[newID] = zone
		}
	}
}

func extractZoneTransfer(ann annotationWire, ctx *Context) []events.GameEvent {
	if len(ann.AffectedIDs) == 0 {
		return nil
	}
	srcZone, _ := ann.detailInt("zone_src")
	dstZone, _ := ann.detailInt("zone_dest")
	category := ann.detailString("category")

	from := ctx.Zones[srcZone].Type
	to := ctx.Zones[dstZone].Type

	var evs []events.GameEvent
	for _, id := range ann.AffectedIDs {
		grp, owner := ctx.resolveInstance(id)
		if grp == 0 {
			ctx.Stats.IdentityMisses++
			continue
		}
		if dstZone != 0 {
			ctx.InstanceZone[id] = dstZone
		}

		evs = append(evs, events.ZoneChange{
			SeatID:     owner,
			InstanceID: id,
			GrpID:      grp,
			FromZone:   from,
			ToZone:     to,
			Category:   category,
		})

		switch {
		case from == events.ZoneLibrary && to == events.ZoneHand:
			evs = append(evs, events.CardDrawn{SeatID: owner, InstanceID: id, GrpID: grp})
		case (from == events.ZoneHand || from == events.ZoneLibrary) &&
			(to == events.ZoneBattlefield || to == events.ZoneStack):
			evs = append(evs, events.CardPlayed{SeatID: owner, InstanceID: id, GrpID: grp, FromZone: from, ToZone: to})
		case from == events.ZoneStack && to == events.ZoneBattlefield && strings.Contains(category, "Resolve"):
			evs = append(evs, events.CardPlayed{SeatID: owner, InstanceID: id, GrpID: grp, FromZone: from, ToZone: to})
		}
	}
	return evs
}

// extractModifiedLife accumulates a life delta onto the last known total for
// the affected seat, emitting only when the total actually moves.
func extractModifiedLife(ann annotationWire, ctx *Context) []events.GameEvent {
	delta, ok := ann.detailInt("life")
	if !ok || delta == 0 || len(ann.AffectedIDs) == 0 {
		return nil
	}

	var evs []events.GameEvent
	for _, id := range ann.AffectedIDs {
		seat := id
		if owner, ok := ctx.InstanceOwner[id]; ok && owner != 0 {
			seat = owner
		}
		last, ok := ctx.LifeTotals[seat]
		if !ok {
			last = defaultStartingLife
		}
		ctx.LifeTotals[seat] = last + delta
		evs = append(evs, events.LifeTotalChange{SeatID: seat, Life: last + delta})
	}
	return evs
}

func extractDamage(ann annotationWire, ctx *Context) []events.GameEvent {
	amount, ok := ann.detailInt("damage")
	if !ok || amount == 0 {
		return nil
	}
	sourceGrp, _ := ctx.resolveInstance(ann.AffectorID)

	var evs []events.GameEvent
	for _, id := range ann.AffectedIDs {
		ev := events.DamageDealt{SourceGrpID: sourceGrp, Amount: amount}
		grp, owner := ctx.resolveInstance(id)
		if grp != 0 {
			ev.TargetGrpID = grp
		} else if owner != 0 {
			// An unresolvable target is a player, not a card.
			ev.TargetSeat = owner
		} else {
			ev.TargetSeat = id
		}
		evs = append(evs, ev)
	}
	return evs
}

// backfillMulligan fills the most recent unfilled mulligan prompt once a
// diff at the start of the game reveals the player's hand zone contents.
func backfillMulligan(gs *gameStateMessage, ctx *Context) *events.MulliganPrompt {
	if !ctx.pendingMulligan {
		return nil
	}
	if gs.TurnInfo == nil || gs.TurnInfo.Phase != "Phase_Beginning" || ctx.LastTurn > 1 {
		return nil
	}

	for _, z := range gs.Zones {
		if z.Type != events.ZoneHand || z.OwnerSeatID != ctx.PlayerSeatID || len(z.ObjectInstanceIDs) == 0 {
			continue
		}
		var hand []int
		for _, id := range z.ObjectInstanceIDs {
			grp, _ := ctx.resolveInstance(id)
			if grp == 0 {
				ctx.Stats.IdentityMisses++
				continue
			}
			hand = append(hand, grp)
		}
		if len(hand) == 0 {
			return nil
		}
		ctx.pendingMulligan = false
		return &events.MulliganPrompt{
			SeatID: ctx.PlayerSeatID,
			Number: ctx.pendingNumber,
			Hand:   hand,
		}
	}
	return nil
}

// buildStateUpdate rebuilds the full object table from the context's maps so
// consumers can reconstruct zones without replaying diffs.
func buildStateUpdate(ctx *Context) events.GameStateUpdate {
	ids := make([]int, 0, len(ctx.InstanceZone))
	for id := range ctx.InstanceZone {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	objects := make([]events.BoardObject, 0, len(ids))
	for _, id := range ids {
		grp := ctx.InstanceGrp[id]
		if grp == 0 {
			continue
		}
		zone := ctx.Zones[ctx.InstanceZone[id]]
		if zone.Type == "" {
			continue
		}
		objects = append(objects, events.BoardObject{
			InstanceID: id,
			GrpID:      grp,
			OwnerSeat:  ctx.InstanceOwner[id],
			Zone:       zone.Type,
		})
	}
	return events.GameStateUpdate{
		Objects: objects,
		Turn:    ctx.LastTurn,
		Phase:   ctx.LastPhase,
		Step:    ctx.LastStep,
	}
}
