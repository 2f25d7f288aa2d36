package api

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"pinbin/cfg"
	"pinbin/metrics"
	"pinbin/pkg/domain"
	"pinbin/svc/svc"
	"pinbin/svc/util"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/text/unicode/norm"
)

type Hdl struct {
	paste    *svc.Paste
	users    *svc.User
	sessions *Sessions
	cfg      *cfg.Cfg
}

type createPasteReq struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	IsPrivate bool   `json:"isPrivate"`
	Password  string `json:"password,omitempty"`
}
type pinReq struct {
	IsPinned bool `json:"isPinned"`
}

func (h *Hdl) CreatePaste(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())
	req, ok := h.decodeCreate(w, r)
	if !ok {
		return
	}
	params := domain.CreatePasteParams{
		Title:     sanitizeText(req.Title),
		Content:   sanitizeText(req.Content),
		IsPrivate: req.IsPrivate,
		Password:  req.Password,
	}
	paste, err := h.paste.Create(r.Context(), UserFrom(r.Context()), params)
	if err != nil {
		log.Warn().Err(err).Msg("create paste failed")
		writeErr(w, err, requestID)
		return
	}
	log.Info().
		Str("url_id", paste.URLID).
		Bool("private", paste.IsPrivate).
		Bool("password_protected", paste.HasPassword()).
		Msg("paste created")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(paste)
}

// decodeCreate enforces the content-type and size gates before the body is
// parsed. The Content-Length check rejects oversize uploads without reading
// them; MaxBytesReader backstops clients that lie about the length.
func (h *Hdl) decodeCreate(w http.ResponseWriter, r *http.Request) (createPasteReq, bool) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())
	var req createPasteReq
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		log.Warn().Str("content_type", r.Header.Get("Content-Type")).Msg("invalid Content-Type header")
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return req, false
	}
	limit := h.cfg.MaxPasteSize * 2
	if clHeader := r.Header.Get("Content-Length"); clHeader != "" {
		cl, err := strconv.ParseInt(clHeader, 10, 64)
		if err != nil || cl < 0 {
			log.Warn().Str("content_length", clHeader).Msg("invalid Content-Length")
			writeErr(w, domain.ErrInvalidRequest, requestID)
			return req, false
		}
		if cl > limit {
			log.Warn().Int64("content_length", cl).Msg("Content-Length exceeds maximum")
			writeErr(w, domain.ErrPasteTooLarge, requestID)
			return req, false
		}
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if err == io.EOF {
			log.Warn().Msg("empty request body")
		} else {
			log.Warn().Err(err).Msg("invalid request body")
		}
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return req, false
	}
	if int64(len(req.Content)) > h.cfg.MaxPasteSize {
		log.Warn().Int("content_length", len(req.Content)).Msg("content exceeds maximum size")
		writeErr(w, domain.ErrPasteTooLarge, requestID)
		return req, false
	}
	return req, true
}

func (h *Hdl) GetPaste(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())
	urlID := chi.URLParam(r, "id")
	password := r.URL.Query().Get("password")
	if password == "" {
		password = r.Header.Get("X-Paste-Password")
	}
	paste, err := h.paste.FetchForRead(r.Context(), urlID, UserFrom(r.Context()), password)
	if err != nil {
		log.Warn().Err(err).Str("url_id", urlID).Msg("get paste failed")
		writeErr(w, err, requestID)
		return
	}
	json.NewEncoder(w).Encode(paste)
}

func (h *Hdl) ListPastes(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	pastes, err := h.paste.Public(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list pastes failed")
		writeErr(w, err, requestID)
		return
	}
	json.NewEncoder(w).Encode(pastes)
}

func (h *Hdl) PinnedPastes(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	pastes, err := h.paste.Pinned(r.Context(), UserFrom(r.Context()))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("pinned pastes failed")
		writeErr(w, err, requestID)
		return
	}
	json.NewEncoder(w).Encode(pastes)
}
func (h *Hdl) RecentPastes(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	pastes, err := h.paste.Recent(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("recent pastes failed")
		writeErr(w, err, requestID)
		return
	}
	json.NewEncoder(w).Encode(pastes)
}

func (h *Hdl) PinPaste(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	var req pinReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid pin request body")
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	if err := h.paste.Pin(r.Context(), UserFrom(r.Context()), id, req.IsPinned); err != nil {
		log.Warn().Err(err).Int("paste_id", id).Msg("pin paste failed")
		writeErr(w, err, requestID)
		return
	}
	log.Info().Int("paste_id", id).Bool("pinned", req.IsPinned).Msg("paste pin updated")
	json.NewEncoder(w).Encode(map[string]bool{"isPinned": req.IsPinned})
}

func (h *Hdl) DeletePaste(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	if err := h.paste.Delete(r.Context(), UserFrom(r.Context()), id); err != nil {
		log.Warn().Err(err).Int("paste_id", id).Msg("delete paste failed")
		writeErr(w, err, requestID)
		return
	}
	log.Info().Int("paste_id", id).Msg("paste deleted")
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
}

func writeErr(w http.ResponseWriter, err error, requestID string) {
	statusCode := domain.Status(err)
	resp := domain.ToResp(err)
	if statusCode >= 500 {
		resp = domain.ToResp(domain.ErrInternalServer)
		util.Error().
			Err(err).
			Str("request_id", requestID).
			Msg("internal error with detailed info")
	}
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		metrics.AccessDenied.WithLabelValues(resp.Error.Code).Inc()
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// sanitizeText normalizes to NFC and strips control characters other than
// line breaks and tabs. Content is stored raw; escaping is the renderer's
// job.
func sanitizeText(s string) string {
	s = norm.NFC.String(s)
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r != utf8.RuneError {
				v = append(v, r)
			}
		}
		s = string(v)
	}
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}
