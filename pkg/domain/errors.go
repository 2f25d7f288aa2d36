package domain

import (
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrPasteNotFound     = NewErr("PASTE_NOT_FOUND", "paste not found", http.StatusNotFound)
	ErrUserNotFound      = NewErr("USER_NOT_FOUND", "user not found", http.StatusNotFound)
	ErrUsernameTaken     = NewErr("USERNAME_TAKEN", "username already taken", http.StatusConflict)
	ErrPasswordRequired  = NewErr("PASSWORD_REQUIRED", "password required", http.StatusForbidden)
	ErrInvalidPassword   = NewErr("INVALID_PASSWORD", "invalid password", http.StatusForbidden)
	ErrInvalidRequest    = NewErr("INVALID_REQUEST", "invalid request", http.StatusBadRequest)
	ErrTitleRequired     = NewErr("TITLE_REQUIRED", "title required", http.StatusBadRequest)
	ErrContentRequired   = NewErr("CONTENT_REQUIRED", "content required", http.StatusBadRequest)
	ErrPasteTooLarge     = NewErr("PASTE_TOO_LARGE", "paste exceeds maximum size", http.StatusRequestEntityTooLarge)
	ErrUnauthenticated   = NewErr("UNAUTHENTICATED", "authentication required", http.StatusUnauthorized)
	ErrInvalidCredential = NewErr("INVALID_CREDENTIALS", "invalid username or password", http.StatusUnauthorized)
	ErrForbidden         = NewErr("FORBIDDEN", "forbidden", http.StatusForbidden)
	ErrProtectedUser     = NewErr("PROTECTED_USER", "cannot modify protected users", http.StatusForbidden)
	ErrInternalServer    = NewErr("INTERNAL_ERROR", "internal error", http.StatusInternalServerError)
	ErrIDGeneration      = NewErr("ID_GENERATION_FAILED", "id generation failed", http.StatusInternalServerError)
)

type Err struct {
	Code   string `json:"code"`
	Msg    string `json:"message"`
	Status int    `json:"-"`
}

func (e *Err) Error() string { return e.Msg }
func NewErr(code, msg string, status int) *Err {
	return &Err{Code: code, Msg: msg, Status: status}
}

type ErrResp struct {
	Error ErrDetail `json:"error"`
}
type ErrDetail struct {
	Code string `json:"code"`
	Msg  string `json:"message"`
}

func ToResp(err error) ErrResp {
	if e, ok := err.(*Err); ok {
		return ErrResp{Error: ErrDetail{Code: e.Code, Msg: e.Msg}}
	}
	if e, ok := errors.Cause(err).(*Err); ok {
		return ErrResp{Error: ErrDetail{Code: e.Code, Msg: e.Msg}}
	}
	return ErrResp{Error: ErrDetail{Code: "INTERNAL_ERROR", Msg: "internal error"}}
}

func Status(err error) int {
	if e, ok := err.(*Err); ok {
		return e.Status
	}
	if e, ok := errors.Cause(err).(*Err); ok {
		return e.Status
	}
	return http.StatusInternalServerError
}
