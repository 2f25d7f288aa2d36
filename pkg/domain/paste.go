package domain

import (
	"time"
)

// Paste is a stored snippet. URLID is the public token; ID is internal and
// used only by the admin surface. Password gates access to private pastes and
// is never serialized.
type Paste struct {
	ID        int       `json:"id"`
	URLID     string    `json:"urlId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	OwnerID   int       `json:"userId"`
	IsPrivate bool      `json:"isPrivate"`
	Password  string    `json:"-"`
	IsPinned  bool      `json:"isPinned"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasPassword reports whether the paste is password-gated.
func (p *Paste) HasPassword() bool {
	return p.Password != ""
}

// Listing returns a copy with the content and password stripped, for
// per-paste listings where the requester has not passed the read policy.
func (p Paste) Listing() Paste {
	p.Content = ""
	p.Password = ""
	return p
}

type CreatePasteParams struct {
	Title     string
	Content   string
	IsPrivate bool
	Password  string
}
