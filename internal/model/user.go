// Package model holds the domain types shared by the auth, match and
// content services: users with their per-branch profiles, players with
// their dream content, and the fixed game version table.
package model

import (
	"fmt"
	"regexp"
)

var userIDPattern = regexp.MustCompile(`^[0-9]{13}$`)

// ValidUserID reports whether id is a well-formed 13-digit user id.
func ValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

// User is an account as seen by the auth service. The client transmits the
// secret in the clear, so it is stored as-is. Profiles are keyed by branch
// code, the per-cartridge value sent at login.
type User struct {
	ID                string                  `json:"id"`
	Secret            string                  `json:"secret"`
	Profiles          map[string]*GameProfile `json:"profiles,omitempty"`
	ProfileIDOverride int32                   `json:"profileIdOverride,omitempty"`
}

// Profile returns the profile bound to the given branch code, or nil.
func (u *User) Profile(branch string) *GameProfile {
	return u.Profiles[branch]
}

// SetProfile binds a profile to a branch code.
func (u *User) SetProfile(branch string, profile *GameProfile) {
	if u.Profiles == nil {
		u.Profiles = make(map[string]*GameProfile)
	}
	u.Profiles[branch] = profile
}

// FormattedID renders the id the way it appears on the client, grouped in
// fours with a trailing zero-padded group.
func (u *User) FormattedID() string {
	if len(u.ID) != 13 {
		return u.ID
	}
	return fmt.Sprintf("%s-%s-%s-%s000", u.ID[0:4], u.ID[4:8], u.ID[8:12], u.ID[12:13])
}

// RedactedID masks all but the last group of the id for log output.
func (u *User) RedactedID() string {
	if len(u.ID) != 13 {
		return u.ID
	}
	return "****-****-****-" + u.ID[12:13] + "000"
}

// GameProfile is the presence profile stored per branch. The id is a random
// 31-bit value picked at first match login.
type GameProfile struct {
	ID        int32  `json:"id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	AimName   string `json:"aimName,omitempty"`
	ZipCode   string `json:"zipCode,omitempty"`
}
