package model

import "strings"

// AccountMetadata is the optional profile attached to a Lens account
type AccountMetadata struct {
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// SessionIdentity is the authenticated caller as known by the Lens network
type SessionIdentity struct {
	Address  string           `json:"address"`
	Metadata *AccountMetadata `json:"metadata,omitempty"`
}

// Name returns the display name, or an empty string if the account has none
func (s *SessionIdentity) Name() string {
	if s == nil || s.Metadata == nil {
		return ""
	}
	return s.Metadata.Name
}

// Picture returns the avatar URI, or an empty string if the account has none
func (s *SessionIdentity) Picture() string {
	if s == nil || s.Metadata == nil {
		return ""
	}
	return s.Metadata.Picture
}

// Curator returns the label attributed to posts published by this identity:
// the display name when set, otherwise the address.
func (s *SessionIdentity) Curator() string {
	if name := s.Name(); name != "" {
		return name
	}
	return s.Address
}

// Initials returns the avatar fallback: first two characters of the address,
// upper-cased.
func (s *SessionIdentity) Initials() string {
	if s == nil {
		return ""
	}
	addr := s.Address
	if len(addr) > 2 {
		addr = addr[:2]
	}
	return strings.ToUpper(addr)
}

// AuthenticatedUser is what a session client knows about its owner without a
// network round trip
type AuthenticatedUser struct {
	Address string
	Signer  string
}
