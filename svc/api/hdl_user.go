package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"pinbin/pkg/domain"
	"pinbin/svc/util"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
)

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
type updateUserReq struct {
	Password  *string `json:"password,omitempty"`
	IsAdmin   *bool   `json:"isAdmin,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

func (h *Hdl) Register(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())
	var req credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid register request body")
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	user, err := h.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		log.Warn().Err(err).Msg("register failed")
		writeErr(w, err, requestID)
		return
	}
	if err := h.sessions.SignIn(w, r, user.ID); err != nil {
		log.Error().Err(err).Msg("sign-in after register failed")
		writeErr(w, domain.ErrInternalServer, requestID)
		return
	}
	log.Info().Str("username", user.Username).Int("user_id", user.ID).Msg("user registered")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user.Redacted())
}

func (h *Hdl) Login(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())
	var req credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid login request body")
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		log.Warn().Err(err).Str("username", req.Username).Msg("login failed")
		writeErr(w, err, requestID)
		return
	}
	if err := h.sessions.SignIn(w, r, user.ID); err != nil {
		log.Error().Err(err).Msg("sign-in failed")
		writeErr(w, domain.ErrInternalServer, requestID)
		return
	}
	log.Info().Str("username", user.Username).Int("user_id", user.ID).Msg("user logged in")
	json.NewEncoder(w).Encode(user.Redacted())
}

func (h *Hdl) Logout(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	if err := h.sessions.SignOut(w, r); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("logout failed")
		writeErr(w, domain.ErrInternalServer, requestID)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "logged_out"})
}

func (h *Hdl) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	if user == nil {
		writeErr(w, domain.ErrUnauthenticated, util.GetRequestID(r.Context()))
		return
	}
	json.NewEncoder(w).Encode(user.Redacted())
}

func (h *Hdl) ListUsers(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	users, err := h.users.List(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list users failed")
		writeErr(w, err, requestID)
		return
	}
	json.NewEncoder(w).Encode(users)
}

func (h *Hdl) UpdateUser(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	var req updateUserReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid update request body")
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	changes := domain.UserUpdate{
		Password:  req.Password,
		IsAdmin:   req.IsAdmin,
		AvatarURL: req.AvatarURL,
	}
	user, err := h.users.Update(r.Context(), UserFrom(r.Context()), id, changes)
	if err != nil {
		log.Warn().Err(err).Int("user_id", id).Msg("update user failed")
		writeErr(w, err, requestID)
		return
	}
	log.Info().Int("user_id", id).Msg("user updated")
	json.NewEncoder(w).Encode(user.Redacted())
}

func (h *Hdl) DeleteUser(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	if err := h.users.Delete(r.Context(), UserFrom(r.Context()), id); err != nil {
		log.Warn().Err(err).Int("user_id", id).Msg("delete user failed")
		writeErr(w, err, requestID)
		return
	}
	log.Info().Int("user_id", id).Msg("user deleted")
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
}

func (h *Hdl) UserPastes(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	pastes, err := h.paste.UserPastes(r.Context(), id, UserFrom(r.Context()))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Int("user_id", id).Msg("user pastes failed")
		writeErr(w, err, requestID)
		return
	}
	json.NewEncoder(w).Encode(pastes)
}
