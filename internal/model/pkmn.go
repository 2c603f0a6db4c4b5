package model

// PkmnGender mirrors the client's gender ordinal. Genderless doubles as
// "random" in encounter slots.
type PkmnGender int

const (
	GenderMale PkmnGender = iota
	GenderFemale
	GenderGenderless
)

func (g PkmnGender) String() string {
	switch g {
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	default:
		return "genderless"
	}
}

// PkmnNature is the nature ordinal stored in the save file.
type PkmnNature int

var natureNames = []string{
	"Hardy", "Lonely", "Brave", "Adamant", "Naughty",
	"Bold", "Docile", "Relaxed", "Impish", "Lax",
	"Timid", "Hasty", "Serious", "Jolly", "Naive",
	"Modest", "Mild", "Quiet", "Bashful", "Rash",
	"Calm", "Gentle", "Sassy", "Careful", "Quirky",
}

// Valid reports whether the ordinal names a real nature.
func (n PkmnNature) Valid() bool {
	return n >= 0 && int(n) < len(natureNames)
}

func (n PkmnNature) String() string {
	if !n.Valid() {
		return "unknown"
	}
	return natureNames[n]
}

// PkmnRecord is the decoded tucked-in Pokémon.
type PkmnRecord struct {
	Species         int        `json:"species"`
	Nickname        string     `json:"nickname"`
	TrainerName     string     `json:"trainerName"`
	Level           int        `json:"level"`
	Nature          PkmnNature `json:"nature"`
	Gender          PkmnGender `json:"gender"`
	Form            int        `json:"form,omitempty"`
	Ability         int        `json:"ability"`
	HeldItem        int        `json:"heldItem,omitempty"`
	Personality     uint32     `json:"personality"`
	TrainerID       int        `json:"trainerId"`
	TrainerSecretID int        `json:"trainerSecretId"`
}

// Shiny applies the generation-5 shiny check to the record's identity
// values.
func (r *PkmnRecord) Shiny() bool {
	pid := r.Personality
	return uint32(r.TrainerID)^uint32(r.TrainerSecretID)^(pid>>16)^(pid&0xFFFF) < 8
}
