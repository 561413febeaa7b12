package handlers

import (
	"net/http"

	apierrors "github.com/pribylovaa/go-session-client/internal/errors"
	"github.com/pribylovaa/go-session-client/internal/models"
)

// loginInput — тело POST /session/login.
type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	if _, err := h.Svc.Login(r.Context(), in.Email, in.Password); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.Sess.Status(r.Context()))
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in models.RegisterRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	if _, err := h.Svc.Register(r.Context(), in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.Sess.Status(r.Context()))
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Logout(r.Context()); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Sess.Status(r.Context()))
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Sess.Refresh(r.Context()); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.Sess.Status(r.Context()))
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	p, err := h.Svc.Me(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}
