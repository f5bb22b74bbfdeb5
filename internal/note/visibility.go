package note

import "lorekeeper/api/internal/campaign"

// Visible is the single visibility rule for notes. Every read path — list,
// get, search, export, realtime snapshots — must go through it.
//
// Owners see everything. Players see shared notes (revealed notes are
// promoted to shared) and their own personal notes. Owner notes stay
// owner-only until promoted.
func Visible(n Note, userID string, role campaign.Role) bool {
	if role == campaign.RoleOwner {
		return true
	}
	switch n.Type {
	case TypeShared:
		return true
	case TypePersonal:
		return n.AuthorID == userID
	}
	return false
}

// FilterVisible returns the subset of notes visible to the viewer,
// preserving order. It always returns a non-nil slice.
func FilterVisible(notes []Note, userID string, role campaign.Role) []Note {
	visible := make([]Note, 0, len(notes))
	for _, n := range notes {
		if Visible(n, userID, role) {
			visible = append(visible, n)
		}
	}
	return visible
}
