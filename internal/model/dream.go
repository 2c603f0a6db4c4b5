package model

// DreamAnimation is the idle animation ordinal of an encounter slot.
type DreamAnimation int

const (
	AnimationNone DreamAnimation = iota
	AnimationHappy
	AnimationAngry
	AnimationSad
	AnimationSleepy
	AnimationCurious
	AnimationExcited
	AnimationBored
)

// DreamEncounter is one befriended Pokémon sent back on wake-up.
type DreamEncounter struct {
	Species   int            `json:"species"`
	Move      int            `json:"move"`
	Form      int            `json:"form,omitempty"`
	Gender    PkmnGender     `json:"gender"`
	Animation DreamAnimation `json:"animation"`
}

// DreamItem is one item brought back from the dream world.
type DreamItem struct {
	ID       int `json:"id"`
	Quantity int `json:"quantity"`
}

// DreamDecor is a decoration slot for the dream home. The id 0x7E is the
// client's empty-slot marker and must not be used for real decor.
type DreamDecor struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// DecorEmptySlot resets a decor slot to its default state on the client.
const DecorEmptySlot = 0x7E
