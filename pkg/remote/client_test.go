package remote

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"emberpost/pkg/models"
)

// fakeBackend speaks the action-based wire contract of the sheet backend.
type fakeBackend struct {
	letters []models.Letter

	pingBody   string
	pingStatus int

	lastPost map[string]json.RawMessage
	reject   bool
}

func (b *fakeBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			switch r.URL.Query().Get("action") {
			case "ping":
				status := b.pingStatus
				if status == 0 {
					status = http.StatusOK
				}
				w.WriteHeader(status)
				io.WriteString(w, b.pingBody)
			case "getLetters":
				json.NewEncoder(w).Encode(b.letters)
			default:
				http.Error(w, "unknown action", http.StatusBadRequest)
			}
			return
		}
		body, _ := io.ReadAll(r.Body)
		b.lastPost = map[string]json.RawMessage{}
		if err := json.Unmarshal(body, &b.lastPost); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]bool{"success": !b.reject})
	})
}

func newTestClient(t *testing.T, b *fakeBackend) *Client {
	t.Helper()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)
	return New(srv.URL, time.Second)
}

func TestPing(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		want   bool
	}{
		{"bare pong", "pong", 0, true},
		{"quoted pong", `"pong"`, 0, true},
		{"padded pong", "  pong\n", 0, true},
		{"wrong body", "ok", 0, false},
		{"server error", "pong", http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, &fakeBackend{pingBody: tc.body, pingStatus: tc.status})
			require.Equal(t, tc.want, c.Ping())
		})
	}
}

func TestPingNeverErrorsOnDeadBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(srv.URL, 200*time.Millisecond)
	require.False(t, c.Ping())
}

func TestListLetters(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	b := &fakeBackend{letters: []models.Letter{
		models.NewLetter("one", now),
		models.NewLetter("two", now),
	}}
	c := newTestClient(t, b)

	got, err := c.ListLetters()
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "one", got[0].Text)
	require.Equal(t, b.letters[1].ID, got[1].ID)
}

func TestListLettersMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"not":"an array"}`)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.ListLetters()
	require.ErrorIs(t, err, ErrMalformedData)
}

func TestListLettersServerFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.ListLetters()
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestCreateLetterWire(t *testing.T) {
	b := &fakeBackend{}
	c := newTestClient(t, b)

	l := models.NewLetter("hello", time.Now())
	ok, err := c.CreateLetter(l)
	require.NoError(t, err)
	require.True(t, ok)

	var action string
	require.NoError(t, json.Unmarshal(b.lastPost["action"], &action))
	require.Equal(t, "addLetter", action)

	var sent models.Letter
	require.NoError(t, json.Unmarshal(b.lastPost["letter"], &sent))
	require.Equal(t, l.ID, sent.ID)
}

func TestCreateLetterRejected(t *testing.T) {
	c := newTestClient(t, &fakeBackend{reject: true})
	ok, err := c.CreateLetter(models.NewLetter("nope", time.Now()))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUpdateLetterWire(t *testing.T) {
	b := &fakeBackend{}
	c := newTestClient(t, b)

	patch := models.LetterPatch{Views: models.IntPtr(7)}
	ok, err := c.UpdateLetter("letter_1_abc", patch)
	require.NoError(t, err)
	require.True(t, ok)

	var action, id string
	require.NoError(t, json.Unmarshal(b.lastPost["action"], &action))
	require.NoError(t, json.Unmarshal(b.lastPost["letterId"], &id))
	require.Equal(t, "updateLetter", action)
	require.Equal(t, "letter_1_abc", id)

	var updates struct {
		Views *int `json:"views"`
	}
	require.NoError(t, json.Unmarshal(b.lastPost["updates"], &updates))
	require.NotNil(t, updates.Views)
	require.Equal(t, 7, *updates.Views)
}

func TestPostUnavailableWhenDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.CreateLetter(models.NewLetter("x", time.Now()))
	require.True(t, errors.Is(err, ErrUnavailable))
}
