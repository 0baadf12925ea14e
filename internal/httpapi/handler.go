// Package httpapi exposes the demo user REST API.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/platformeng/demo-user-service/internal/database"
	"github.com/platformeng/demo-user-service/internal/domain/user"
	errs "github.com/platformeng/demo-user-service/internal/errors"
	"github.com/platformeng/demo-user-service/internal/services/users"
	"github.com/platformeng/demo-user-service/pkg/logger"
)

// Handler bundles the HTTP endpoints for the user service.
type Handler struct {
	users    *users.Service
	log      *logger.Logger
	validate *validator.Validate
}

// NewHandler creates the API handler.
func NewHandler(svc *users.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Handler{
		users:    svc,
		log:      log,
		validate: newValidator(),
	}
}

// Register mounts the user routes on the given router.
func (h *Handler) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/user/all", h.listUsers).Methods(http.MethodGet)
	api.HandleFunc("/user", h.createUser).Methods(http.MethodPost)
	api.HandleFunc("/user/{id}", h.getUser).Methods(http.MethodGet)
	api.HandleFunc("/user/{id}", h.updateUser).Methods(http.MethodPut)
	api.HandleFunc("/user/{id}", h.patchUser).Methods(http.MethodPatch)
	api.HandleFunc("/user/{id}", h.deleteUser).Methods(http.MethodDelete)
}

type createUserRequest struct {
	Name          string `json:"name" validate:"required,min=1,max=255"`
	Email         string `json:"email" validate:"required,email"`
	ContactNumber string `json:"contact_number" validate:"omitempty,bd_phone"`
	Age           int    `json:"age" validate:"required,gte=18"`
}

type updateUserRequest struct {
	Name          string `json:"name" validate:"required,min=1,max=255"`
	Email         string `json:"email" validate:"required,email"`
	ContactNumber string `json:"contact_number" validate:"omitempty,bd_phone"`
	Age           int    `json:"age" validate:"required,gte=18"`
	IsActive      bool   `json:"is_active"`
}

type patchUserRequest struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=255"`
	Email         *string `json:"email" validate:"omitempty,email"`
	ContactNumber *string `json:"contact_number" validate:"omitempty,bd_phone"`
	Age           *int    `json:"age" validate:"omitempty,gte=18"`
	IsActive      *bool   `json:"is_active"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.respondError(w, r, errs.BadRequest("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, r, err)
		return
	}

	created, err := h.users.Create(r.Context(), user.CreateParams{
		Name:          req.Name,
		Email:         req.Email,
		ContactNumber: req.ContactNumber,
		Age:           req.Age,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	all, err := h.users.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if all == nil {
		all = []user.User{}
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req updateUserRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.respondError(w, r, errs.BadRequest("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, r, err)
		return
	}

	updated, err := h.users.Update(r.Context(), id, user.UpdateParams{
		Name:          req.Name,
		Email:         req.Email,
		ContactNumber: req.ContactNumber,
		Age:           req.Age,
		IsActive:      req.IsActive,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) patchUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req patchUserRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.respondError(w, r, errs.BadRequest("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, r, err)
		return
	}

	patched, err := h.users.Patch(r.Context(), id, user.PatchParams{
		Name:          req.Name,
		Email:         req.Email,
		ContactNumber: req.ContactNumber,
		Age:           req.Age,
		IsActive:      req.IsActive,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, patched)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	deleted, err := h.users.Delete(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

// respondError translates the error, logs it by severity, and writes the
// wrapped error body.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := Translate(err)

	log := h.log.WithContext(r.Context()).
		WithField("path", r.URL.Path).
		WithField("method", r.Method)

	var svcErr *errs.ServiceError
	var dbErr *database.Error
	switch {
	case errors.As(err, &svcErr):
		// Domain outcome, nothing to report server-side.
	case errors.As(err, &dbErr):
		if dbErr.Kind == database.KindIntegrity {
			log.WithError(err).Warn("integrity violation")
		} else {
			log.WithError(err).Error("database error")
		}
	case status == http.StatusUnprocessableEntity:
		// Client sent invalid fields.
	default:
		log.WithError(err).Error("unhandled error")
	}

	writeJSON(w, status, body)
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.BadRequest("Invalid user id")
	}
	return id, nil
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
