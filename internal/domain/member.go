package domain

import "time"

// MemberRecord: canonical member snapshot as served by the lookup cache.
// Immutable once cached; a fresh authoritative read produces a new snapshot.
type MemberRecord struct {
	ID             string     `json:"id"`
	MemberNo       string     `json:"memberNo,omitempty"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	Phone          string     `json:"phone,omitempty"`
	Email          string     `json:"email,omitempty"`
	Province       string     `json:"province,omitempty"`
	Municipality   string     `json:"municipality,omitempty"`
	Ward           string     `json:"ward,omitempty"`
	MembershipType string     `json:"membershipType,omitempty"`
	JoinedAt       *time.Time `json:"joinedAt,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`

	// CacheHit is set by the lookup cache on the way out and is not part of
	// the cached value itself.
	CacheHit bool `json:"-"`
}

// FullName: display name assembled from the name parts.
func (m *MemberRecord) FullName() string {
	switch {
	case m.FirstName == "":
		return m.LastName
	case m.LastName == "":
		return m.FirstName
	default:
		return m.FirstName + " " + m.LastName
	}
}

// Location: single-line geographic descriptor for card rendering.
func (m *MemberRecord) Location() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{m.Ward, m.Municipality, m.Province} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}
