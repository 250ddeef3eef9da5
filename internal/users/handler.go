package users

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/brattlof/usersdb/internal/app/render"
	"github.com/brattlof/usersdb/internal/app/router"
	"github.com/brattlof/usersdb/internal/events"
	"github.com/brattlof/usersdb/internal/store"
	"github.com/brattlof/usersdb/internal/templates"
)

var (
	ErrNotFound      = errors.New("user not found")
	errMalformedBody = errors.New("malformed JSON body")
	errBodyTooLarge  = errors.New("request body too large")
)

const (
	notFoundText       = "User not found"
	deletedText        = "User Deleted"
	maxBodyBytes int64 = 1 << 20
)

var internalErrorText = http.StatusText(http.StatusInternalServerError)

type Options struct {
	// Serialize runs every read-modify-write cycle under one mutex.
	Serialize bool
	// StrictUpdate makes PUT on a missing id respond 404. Off by default:
	// the update then reports success without changing the document.
	StrictUpdate bool
}

type Handler struct {
	store     store.Store
	publisher events.Publisher
	logger    *slog.Logger
	opts      Options
	mu        sync.Mutex
	now       func() time.Time
}

func NewHandler(s store.Store, pub events.Publisher, logger *slog.Logger, opts Options) *Handler {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Handler{
		store:     s,
		publisher: pub,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// Register adds the users routes to rt.
func (h *Handler) Register(rt *router.Router) error {
	return errors.Join(
		rt.Get("/users", "users.list", h.List),
		rt.Get("/users/{id}", "users.get", h.Get),
		rt.Post("/users", "users.create", h.Create),
		rt.Put("/users/{id}", "users.update", h.Update),
		rt.Delete("/users/{id}", "users.delete", h.Delete),
	)
}

func (h *Handler) lock() func() {
	if !h.opts.Serialize {
		return func() {}
	}
	h.mu.Lock()
	return h.mu.Unlock
}

// locked runs one read-modify-write cycle. Events are published by the
// caller after it returns so a slow publisher never holds the lock.
func (h *Handler) locked(fn func() error) error {
	defer h.lock()()
	return fn()
}

// nullIDUser is the update response for a path id that is not a number.
type nullIDUser struct {
	store.User
}

func (u nullIDUser) MarshalJSON() ([]byte, error) {
	return u.User.MarshalNullID()
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	defer h.lock()()

	doc, err := h.store.Read(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, doc)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	defer h.lock()()

	doc, err := h.store.Read(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	id, ok := router.IntParam(r, "id")
	if !ok {
		h.fail(w, r, ErrNotFound)
		return
	}
	u, ok := FindByID(doc, id)
	if !ok {
		h.fail(w, r, ErrNotFound)
		return
	}
	render.JSON(w, http.StatusOK, u)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	fields := make(map[string]json.RawMessage, 2)
	for _, k := range []string{"name", "email"} {
		if v, ok := body[k]; ok {
			fields[k] = v
		}
	}

	var (
		doc *store.Document
		u   store.User
	)
	err = h.locked(func() error {
		doc, err = h.store.Read(r.Context())
		if err != nil {
			return err
		}
		u = store.UserFromFields(NextID(doc), fields)
		Append(doc, u)
		return h.store.Write(r.Context(), doc)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.publish(r, events.Event{Type: events.UserCreated, ID: u.ID, User: &u})
	render.JSON(w, http.StatusOK, doc)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, idOK := router.IntParam(r, "id")

	body, err := decodeBody(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	u := store.UserFromFields(id, body)

	index := -1
	err = h.locked(func() error {
		doc, err := h.store.Read(r.Context())
		if err != nil {
			return err
		}
		if idOK {
			index = FindIndexByID(doc, id)
		}
		if index == -1 && h.opts.StrictUpdate {
			return ErrNotFound
		}
		ReplaceAt(doc, index, u)
		return h.store.Write(r.Context(), doc)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if index == -1 {
		h.logger.Warn("update of missing user reported as success", "id", router.Param(r, "id"))
		if !idOK {
			render.JSON(w, http.StatusOK, nullIDUser{u})
			return
		}
		render.JSON(w, http.StatusOK, u)
		return
	}

	h.publish(r, events.Event{Type: events.UserUpdated, ID: id, User: &u})
	render.JSON(w, http.StatusOK, u)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, idOK := router.IntParam(r, "id")

	err := h.locked(func() error {
		doc, err := h.store.Read(r.Context())
		if err != nil {
			return err
		}
		if !idOK {
			return ErrNotFound
		}

		before := len(doc.Users)
		RemoveByID(doc, id)
		if len(doc.Users) == before {
			return ErrNotFound
		}
		return h.store.Write(r.Context(), doc)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.publish(r, events.Event{Type: events.UserDeleted, ID: id})
	render.JSON(w, http.StatusOK, map[string]string{"message": deletedText})
}

// Page renders the current users as an HTML table.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	defer h.lock()()

	doc, err := h.store.Read(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.HTML(w, r, http.StatusOK, templates.UsersPage(doc))
}

func (h *Handler) publish(r *http.Request, ev events.Event) {
	ev.At = h.now().UTC()
	if err := h.publisher.Publish(r.Context(), ev); err != nil {
		h.logger.Error("Failed to publish user event", "type", ev.Type, "id", ev.ID, "error", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var se *store.StorageError
	switch {
	case errors.Is(err, ErrNotFound):
		render.Text(w, http.StatusNotFound, notFoundText)
	case errors.Is(err, errBodyTooLarge):
		h.logger.Debug("Rejected request body", "route", router.RouteName(r.Context()), "error", err)
		render.Text(w, http.StatusRequestEntityTooLarge, http.StatusText(http.StatusRequestEntityTooLarge))
	case errors.Is(err, errMalformedBody):
		h.logger.Debug("Rejected request body", "route", router.RouteName(r.Context()), "error", err)
		render.Text(w, http.StatusBadRequest, "Bad Request")
	case errors.As(err, &se):
		h.logger.Error("Storage failure",
			"route", router.RouteName(r.Context()),
			"op", se.Op,
			"backend", se.Backend,
			"error", se.Err,
		)
		render.Text(w, http.StatusInternalServerError, internalErrorText)
	default:
		h.logger.Error("Request failed", "route", router.RouteName(r.Context()), "error", err)
		render.Text(w, http.StatusInternalServerError, internalErrorText)
	}
}

// decodeBody returns the top-level fields of a JSON object body. Bodies
// that are empty or not declared as JSON decode to no fields.
func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, error) {
	fields := make(map[string]json.RawMessage)
	if r.Body == nil || !isJSON(r.Header.Get("Content-Type")) {
		return fields, nil
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, tooLarge.Limit)
		}
		return nil, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return fields, nil
	}

	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: body must be an object", errMalformedBody)
	}
	return fields, nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
