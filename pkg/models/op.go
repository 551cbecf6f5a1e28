package models

// Action identifies what a pending operation should replay against the
// remote store once connectivity returns.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// PendingOp is one entry in the sync queue: a create or update that has not
// yet been delivered to the remote store. It carries the full letter as it
// looked when the operation was queued; a queued update replays the whole
// record (last-write-wins on the remote side).
type PendingOp struct {
	Action Action `json:"action"`
	Letter Letter `json:"letter"`
}

// LetterID returns the ID of the letter this operation belongs to.
func (op PendingOp) LetterID() string {
	return op.Letter.ID
}
