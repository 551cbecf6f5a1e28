package models

import (
	"math/rand/v2"
	"sort"
	"strconv"
	"time"
)

// TTL is the lifetime of a letter; past it the letter is purged from any
// loaded set and never resurrected.
const TTL = 72 * time.Hour

// CommentWindow is how long after creation a letter accepts comments. The
// UI collaborator enforces it; the core stores whatever arrives.
const CommentWindow = 24 * time.Hour

// ReactionKinds is the fixed set of reaction counters every letter carries.
var ReactionKinds = []string{"fire", "heartbreak", "understand", "sparkle"}

// Letter is a single user-submitted, self-expiring message record. Field
// names follow the spreadsheet wire contract.
type Letter struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	CreatedAt time.Time      `json:"createdAt"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Views     int            `json:"views"`
	Reactions map[string]int `json:"reactions"`
	Comments  []Comment      `json:"comments"`
	// Local is true while the letter exists only in the local cache and has
	// not been confirmed by the remote store.
	Local bool `json:"local"`
}

// Comment is an append-only entry on a letter.
type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewLetter builds a fresh letter with generated ID, zeroed reaction
// counters and the standard TTL. Text is assumed pre-validated by the UI.
func NewLetter(text string, now time.Time) Letter {
	reactions := make(map[string]int, len(ReactionKinds))
	for _, k := range ReactionKinds {
		reactions[k] = 0
	}
	return Letter{
		ID:        GenLetterID(now),
		Text:      text,
		CreatedAt: now,
		ExpiresAt: now.Add(TTL),
		Reactions: reactions,
		Comments:  []Comment{},
	}
}

// NewComment builds a comment with a generated ID.
func NewComment(text string, now time.Time) Comment {
	return Comment{ID: GenCommentID(now), Text: text, CreatedAt: now}
}

// Valid reports whether the letter has not expired at the given instant.
func (l Letter) Valid(now time.Time) bool {
	return l.ExpiresAt.After(now)
}

// FilterValid returns only the letters still alive at the given instant.
func FilterValid(letters []Letter, now time.Time) []Letter {
	out := make([]Letter, 0, len(letters))
	for _, l := range letters {
		if l.Valid(now) {
			out = append(out, l)
		}
	}
	return out
}

// SortNewestFirst orders letters descending by creation time.
func SortNewestFirst(letters []Letter) {
	sort.SliceStable(letters, func(i, j int) bool {
		return letters[i].CreatedAt.After(letters[j].CreatedAt)
	})
}

// GenLetterID returns an ID in the wire format letter_<unixms>_<rand>.
func GenLetterID(now time.Time) string {
	return "letter_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + randToken(9)
}

// GenCommentID returns an ID in the wire format comment_<unixms>.
func GenCommentID(now time.Time) string {
	return "comment_" + strconv.FormatInt(now.UnixMilli(), 10)
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func randToken(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base36[rand.IntN(len(base36))]
	}
	return string(b)
}
