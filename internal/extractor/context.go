package extractor

// ZoneInfo describes one zone from the game state's zone table.
type ZoneInfo struct {
	Type      string
	OwnerSeat int
}

// Stats counts decode outcomes for one context lifetime.
type Stats struct {
	Blocks         int
	Events         int
	IdentityMisses int
	ParseErrors    int
}

// Context is the persistent decode state carried across polls for one
// watcher lifetime: seat identity, zone and instance tables, the id remap
// chain, and last-known turn/phase/life used for edge triggering. It is reset
// whole on rotation, truncation, or restart.
type Context struct {
	PlayerName   string
	PlayerSeatID int
	PlayerTeamID int
	MatchID      string
	GameNumber   int

	Zones         map[int]ZoneInfo // zoneId -> zone info
	InstanceGrp   map[int]int      // instanceId -> grpId
	InstanceOwner map[int]int      // instanceId -> owner seat
	InstanceZone  map[int]int      // instanceId -> zoneId
	IDChain       map[int]int      // remapped newId -> origId

	LifeTotals map[int]int // seat -> last known life
	LastTurn   int
	LastPhase  string
	LastStep   string

	mulliganPrompts int  // prompts seen this game
	pendingMulligan bool // a prompt is awaiting its hand reveal
	pendingNumber   int  // the number of that pending prompt

	Stats Stats
}

// NewContext returns an empty decode context.
func NewContext() *Context {
	c := &Context{}
	c.Reset()
	return c
}

// Reset restores the context to its zero state. The player display name is
// kept: it arrives from authentication, not from match blocks, and is how
// the next match's roster is matched back to the local player.
func (c *Context) Reset() {
	name := c.PlayerName
	*c = Context{
		PlayerName:    name,
		Zones:         make(map[int]ZoneInfo),
		InstanceGrp:   make(map[int]int),
		InstanceOwner: make(map[int]int),
		InstanceZone:  make(map[int]int),
		IDChain:       make(map[int]int),
		LifeTotals:    make(map[int]int),
	}
}

// resetGameTables clears per-game object state while keeping match identity.
// Used when a full (non-diff) game state arrives, so stale instances from a
// previous game cannot leak into zone rebuilds.
func (c *Context) resetGameTables() {
	c.Zones = make(map[int]ZoneInfo)
	c.InstanceGrp = make(map[int]int)
	c.InstanceOwner = make(map[int]int)
	c.InstanceZone = make(map[int]int)
	c.IDChain = make(map[int]int)
}

// resolveInstance walks the id remap chain until it finds an instance with a
// known grpId. A visited set guards against cycles in the chain. Returns
// grpId 0 when identity cannot be established.
func (c *Context) resolveInstance(id int) (grpID, ownerSeat int) {
	visited := make(map[int]bool)
	cur := id
	for {
		if g, ok := c.InstanceGrp[cur]; ok && g != 0 {
			return g, c.InstanceOwner[cur]
		}
		if visited[cur] {
			return 0, c.InstanceOwner[cur]
		}
		visited[cur] = true
		next, ok := c.IDChain[cur]
		if !ok {
			return 0, c.InstanceOwner[cur]
		}
		cur = next
	}
}
