package model

import (
	"encoding/json"
	"fmt"
)

// GameVersion identifies one localized cartridge release. The zero value
// means the version is unknown.
type GameVersion struct {
	RomCode      int
	LanguageCode int
	Serial       string
	Name         string
}

// Rom codes of the four releases.
const (
	RomWhite  = 20
	RomBlack  = 21
	RomWhite2 = 22
	RomBlack2 = 23
)

var gameVersions = []GameVersion{
	{RomBlack, 1, "IRBJ", "ブラック"},
	{RomBlack, 2, "IRBO", "Black Version"},
	{RomBlack, 3, "IRBF", "Version Noire"},
	{RomBlack, 4, "IRBI", "Versione Nera"},
	{RomBlack, 5, "IRBD", "Schwarze Edition"},
	{RomBlack, 7, "IRBS", "Edicion Negra"},
	{RomBlack, 8, "IRBK", "블랙"},

	{RomWhite, 1, "IRAJ", "ホワイト"},
	{RomWhite, 2, "IRAO", "White Version"},
	{RomWhite, 3, "IRAF", "Version Blanche"},
	{RomWhite, 4, "IRAI", "Versione Bianca"},
	{RomWhite, 5, "IRAD", "Weisse Edition"},
	{RomWhite, 7, "IRAS", "Edicion Blanca"},
	{RomWhite, 8, "IRAK", "화이트"},

	{RomBlack2, 1, "IREJ", "ブラック2"},
	{RomBlack2, 2, "IREO", "Black Version 2"},
	{RomBlack2, 3, "IREF", "Version Noire 2"},
	{RomBlack2, 4, "IREI", "Versione Nera 2"},
	{RomBlack2, 5, "IRED", "Schwarze Edition 2"},
	{RomBlack2, 7, "IRES", "Edicion Negra 2"},
	{RomBlack2, 8, "IREK", "블랙2"},

	{RomWhite2, 1, "IRDJ", "ホワイト2"},
	{RomWhite2, 2, "IRDO", "White Version 2"},
	{RomWhite2, 3, "IRDF", "Version Blanche 2"},
	{RomWhite2, 4, "IRDI", "Versione Bianca 2"},
	{RomWhite2, 5, "IRDD", "Weisse Edition 2"},
	{RomWhite2, 7, "IRDS", "Edicion Blanca 2"},
	{RomWhite2, 8, "IRDK", "화이트2"},
}

// LookupVersion resolves a rom/language code pair.
func LookupVersion(romCode, languageCode int) (GameVersion, bool) {
	for _, v := range gameVersions {
		if v.RomCode == romCode && v.LanguageCode == languageCode {
			return v, true
		}
	}
	return GameVersion{}, false
}

// LookupSerial resolves a cartridge serial like "IRAO".
func LookupSerial(serial string) (GameVersion, bool) {
	for _, v := range gameVersions {
		if v.Serial == serial {
			return v, true
		}
	}
	return GameVersion{}, false
}

// Known reports whether the version names a real release.
func (v GameVersion) Known() bool {
	return v.Serial != ""
}

// IsVersion2 reports whether the version is a sequel release.
func (v GameVersion) IsVersion2() bool {
	return v.RomCode == RomWhite2 || v.RomCode == RomBlack2
}

func (v GameVersion) String() string {
	if !v.Known() {
		return "unknown"
	}
	return v.Serial
}

// MarshalJSON stores the version as its serial.
func (v GameVersion) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Serial)
}

// UnmarshalJSON restores a version from its serial. Unknown serials decode
// to the zero value rather than failing, so stale data stays loadable.
func (v *GameVersion) UnmarshalJSON(data []byte) error {
	var serial string
	if err := json.Unmarshal(data, &serial); err != nil {
		return fmt.Errorf("model: game version: %w", err)
	}
	*v, _ = LookupSerial(serial)
	return nil
}
