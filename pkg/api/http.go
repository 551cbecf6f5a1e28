// Package api exposes the letter store to the browser UI collaborator over
// a small JSON API. Input validation beyond basic shape checks (the 5-500
// char rule, the 24h comment window) is the UI's responsibility.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"

	"emberpost/pkg/letters"
	"emberpost/pkg/models"
	"emberpost/pkg/utils"
)

// Status is the sync-state view the API reports to the UI.
type Status interface {
	Online() bool
	QueueLen() int
}

// Handler returns the UI-facing router.
func Handler(store *letters.Store, status Status) http.Handler {
	h := &handlers{store: store, status: status, now: time.Now}
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.HandleFunc("/v1/letters", h.list).Methods(http.MethodGet)
	r.HandleFunc("/v1/letters", h.create).Methods(http.MethodPost)
	r.HandleFunc("/v1/letters/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/v1/letters/{id}/comments", h.comment).Methods(http.MethodPost)
	r.HandleFunc("/v1/letters/{id}/reactions", h.react).Methods(http.MethodPost)
	r.HandleFunc("/v1/letters/{id}/open", h.open).Methods(http.MethodPost)
	return r
}

type handlers struct {
	store  *letters.Store
	status Status
	now    func() time.Time
}

// letterView decorates a letter with UI-friendly derived fields.
type letterView struct {
	models.Letter
	ExpiresIn string `json:"expiresIn"`
	// CommentsOpen is true while the letter is inside the comment window.
	CommentsOpen bool `json:"commentsOpen"`
}

func (h *handlers) view(l models.Letter) letterView {
	return letterView{
		Letter:       l,
		ExpiresIn:    humanize.Time(l.ExpiresAt),
		CommentsOpen: h.now().Before(l.CreatedAt.Add(models.CommentWindow)),
	}
}

type listResponse struct {
	Letters []letterView `json:"letters"`
	Stats   stats        `json:"stats"`
}

type stats struct {
	Today   int  `json:"today"`
	Total   int  `json:"total"`
	Online  bool `json:"online"`
	Pending int  `json:"pending"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	all := h.store.GetAll()
	now := h.now()
	views := make([]letterView, 0, len(all))
	today := 0
	for _, l := range all {
		views = append(views, h.view(l))
		if sameDay(l.CreatedAt, now) {
			today++
		}
	}
	resp := listResponse{
		Letters: views,
		Stats: stats{
			Today:   today,
			Total:   len(all),
			Online:  h.status.Online(),
			Pending: h.status.QueueLen(),
		},
	}
	_ = utils.JSONWrite(w, http.StatusOK, resp)
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	l, ok := h.store.GetByID(id)
	if !ok {
		utils.JSONError(w, http.StatusNotFound, "letter not found")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, h.view(l))
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(in.Text) == "" {
		utils.JSONError(w, http.StatusBadRequest, "text required")
		return
	}
	res := h.store.Create(in.Text)
	_ = utils.JSONWrite(w, http.StatusCreated, res)
}

func (h *handlers) comment(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(in.Text) == "" {
		utils.JSONError(w, http.StatusBadRequest, "text required")
		return
	}
	writeResult(w, h.store.AddComment(mux.Vars(r)["id"], in.Text))
}

func (h *handlers) react(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Kind string `json:"kind"`
	}
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(in.Kind) == "" {
		utils.JSONError(w, http.StatusBadRequest, "kind required")
		return
	}
	writeResult(w, h.store.AddReaction(mux.Vars(r)["id"], in.Kind))
}

// open records one view of a letter: the UI calls it when a letter is
// opened, exactly mirroring a views+1 partial update.
func (h *handlers) open(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	l, ok := h.store.GetByID(id)
	if !ok {
		utils.JSONError(w, http.StatusNotFound, "letter not found")
		return
	}
	res := h.store.Update(id, models.LetterPatch{Views: models.IntPtr(l.Views + 1)})
	if !res.Success {
		utils.JSONError(w, http.StatusNotFound, res.Error)
		return
	}
	out, _ := h.store.GetByID(id)
	_ = utils.JSONWrite(w, http.StatusOK, h.view(out))
}

func writeResult(w http.ResponseWriter, res letters.Result) {
	status := http.StatusOK
	if !res.Success {
		status = http.StatusNotFound
	}
	_ = utils.JSONWrite(w, status, res)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
