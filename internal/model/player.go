package model

import "fmt"

// PlayerStatus tracks where a player's tucked-in Pokémon is in the dream
// cycle.
type PlayerStatus int

const (
	StatusAwake PlayerStatus = iota
	StatusSleeping
	StatusDreaming
	StatusWakeReady
)

func (s PlayerStatus) String() string {
	switch s {
	case StatusAwake:
		return "awake"
	case StatusSleeping:
		return "sleeping"
	case StatusDreaming:
		return "dreaming"
	case StatusWakeReady:
		return "wake-ready"
	default:
		return fmt.Sprintf("PlayerStatus(%d)", int(s))
	}
}

// Content limits imposed by the fixed save file layout.
const (
	MaxEncounters   = 10
	MaxItems        = 20
	MaxVisitors     = 12
	MaxDecor        = 5
	MaxLevelsGained = 99
)

// Player is the dream-world state attached to one Game Sync ID.
type Player struct {
	GameSyncID   string           `json:"gameSyncId"`
	Version      GameVersion      `json:"gameVersion,omitempty"`
	Status       PlayerStatus     `json:"status"`
	Dreamer      *PkmnRecord      `json:"dreamerInfo,omitempty"`
	LevelsGained int              `json:"levelsGained,omitempty"`
	Encounters   []DreamEncounter `json:"encounters,omitempty"`
	Items        []DreamItem      `json:"items,omitempty"`
	Decor        []DreamDecor     `json:"decor,omitempty"`
	Visitors     []AvenueVisitor  `json:"avenueVisitors,omitempty"`
	CGearSkin    string           `json:"cgearSkin,omitempty"`
	DexSkin      string           `json:"dexSkin,omitempty"`
	Musical      string           `json:"musical,omitempty"`
}

// NewPlayer returns an awake player with no dream content.
func NewPlayer(gameSyncID string, version GameVersion) *Player {
	return &Player{GameSyncID: gameSyncID, Version: version}
}

// SetEncounters replaces the encounter list, rejecting oversized input.
func (p *Player) SetEncounters(encounters []DreamEncounter) error {
	if len(encounters) > MaxEncounters {
		return fmt.Errorf("model: %d encounters exceeds limit of %d", len(encounters), MaxEncounters)
	}
	p.Encounters = encounters
	return nil
}

// SetItems replaces the item list, rejecting oversized input.
func (p *Player) SetItems(items []DreamItem) error {
	if len(items) > MaxItems {
		return fmt.Errorf("model: %d items exceeds limit of %d", len(items), MaxItems)
	}
	p.Items = items
	return nil
}

// SetDecor replaces the decor list, rejecting oversized input.
func (p *Player) SetDecor(decor []DreamDecor) error {
	if len(decor) > MaxDecor {
		return fmt.Errorf("model: %d decor exceeds limit of %d", len(decor), MaxDecor)
	}
	p.Decor = decor
	return nil
}

// SetVisitors replaces the visitor list, rejecting oversized input.
func (p *Player) SetVisitors(visitors []AvenueVisitor) error {
	if len(visitors) > MaxVisitors {
		return fmt.Errorf("model: %d visitors exceeds limit of %d", len(visitors), MaxVisitors)
	}
	p.Visitors = visitors
	return nil
}

// SetLevelsGained clamps into the encodable range.
func (p *Player) SetLevelsGained(levels int) error {
	if levels < 0 || levels > MaxLevelsGained {
		return fmt.Errorf("model: levels gained %d out of range", levels)
	}
	p.LevelsGained = levels
	return nil
}

// ResetDreamContent wakes the player and clears everything the last tuck-in
// produced.
func (p *Player) ResetDreamContent() {
	p.Status = StatusAwake
	p.Dreamer = nil
	p.LevelsGained = 0
	p.Encounters = nil
	p.Items = nil
	p.Decor = nil
	p.Visitors = nil
	p.CGearSkin = ""
	p.DexSkin = ""
	p.Musical = ""
}
