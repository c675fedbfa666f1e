// Package message defines the conversation data contract shared by the
// engine, the stores and the transports: turns, roles and session profiles.
package message

import (
	"slices"
	"time"
)

// Role identifies the author of a Turn.
type Role string

const (
	// RoleHuman is a message written by the user.
	RoleHuman Role = "human"
	// RoleAssistant is a reply produced by the model.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleHuman || r == RoleAssistant
}

// Turn is one message with a durable position in a session's history.
// Sequence is assigned by the store on append and is strictly increasing
// within a session.
type Turn struct {
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Sequence  int64     `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
}

// IsHuman reports whether the turn was written by the user.
func (t Turn) IsHuman() bool {
	return t.Role == RoleHuman
}

// Profile carries the per-session personalization data. A nil Age or an
// empty Interests slice means the field is unknown.
type Profile struct {
	SessionID string   `json:"session_id"`
	Age       *int     `json:"age,omitempty"`
	Interests []string `json:"interests,omitempty"`
}

// NewProfile builds a Profile, copying interests.
func NewProfile(sessionID string, age *int, interests []string) Profile {
	p := Profile{SessionID: sessionID, Interests: slices.Clone(interests)}
	if age != nil {
		v := *age
		p.Age = &v
	}
	return p
}

// HasAge reports whether the age is known.
func (p Profile) HasAge() bool {
	return p.Age != nil
}

// HasInterests reports whether at least one interest is known.
func (p Profile) HasInterests() bool {
	return len(p.Interests) > 0
}

// Clone returns a deep copy so callers cannot mutate cached values.
func (p Profile) Clone() Profile {
	return NewProfile(p.SessionID, p.Age, p.Interests)
}
