package models

// LetterPatch is a partial update to a letter. Unset (nil) fields are left
// untouched; set fields replace the stored value wholesale. Text, CreatedAt
// and ExpiresAt are immutable and deliberately absent.
type LetterPatch struct {
	Views     *int           `json:"views,omitempty"`
	Reactions map[string]int `json:"reactions,omitempty"`
	Comments  []Comment      `json:"comments,omitempty"`
}

// Apply merges the patch into the letter, shallow: each present field
// overwrites the stored one. Last writer wins; there is no per-field
// version tracking.
func (l *Letter) Apply(p LetterPatch) {
	if p.Views != nil {
		l.Views = *p.Views
	}
	if p.Reactions != nil {
		l.Reactions = p.Reactions
	}
	if p.Comments != nil {
		l.Comments = p.Comments
	}
}

// IntPtr is a small helper for building patches.
func IntPtr(v int) *int { return &v }
