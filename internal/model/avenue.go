package model

// AvenueVisitorType is a Join Avenue visitor archetype. Types come in
// male/female pairs sharing a client id.
type AvenueVisitorType int

const (
	VisitorYoungster AvenueVisitorType = iota
	VisitorLass
	VisitorAceTrainerMale
	VisitorAceTrainerFemale
	VisitorRangerMale
	VisitorRangerFemale
	VisitorBreederMale
	VisitorBreederFemale
	VisitorScientistMale
	VisitorScientistFemale
	VisitorHiker
	VisitorParasolLady
	VisitorRoughneck
	VisitorNurse
	VisitorPreschoolerMale
	VisitorPreschoolerFemale
)

// ClientID is the archetype id the client renders.
func (t AvenueVisitorType) ClientID() int {
	return int(t) / 2
}

// Female reports whether the archetype is the female half of its pair.
func (t AvenueVisitorType) Female() bool {
	return int(t)%2 == 1
}

// AvenueShopType is the shop a visitor wants to open.
type AvenueShopType int

const (
	ShopRaffle AvenueShopType = iota
	ShopFlorist
	ShopSalon
	ShopAntique
	ShopDojo
	ShopCafe
	ShopMarket
)

// AvenueVisitor is one Join Avenue visitor included in a sequel-version
// download.
type AvenueVisitor struct {
	Name              string            `json:"name"`
	Type              AvenueVisitorType `json:"type"`
	ShopType          AvenueShopType    `json:"shopType"`
	Version           GameVersion       `json:"gameVersion"`
	CountryCode       int               `json:"countryCode"`
	StateProvinceCode int               `json:"stateProvinceCode"`
	Personality       int               `json:"personality"`
	DreamerSpecies    int               `json:"dreamerSpecies"`
}
