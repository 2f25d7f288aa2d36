package domain

// User is an account record as held by the entity store. Password carries the
// argon2id credential, never the plaintext; Redacted must be applied before a
// record crosses the API boundary.
type User struct {
	ID        int     `json:"id"`
	Username  string  `json:"username"`
	Password  string  `json:"-"`
	IsAdmin   bool    `json:"isAdmin"`
	AvatarURL *string `json:"avatarUrl"`
}

// Redacted returns a copy safe for client-facing responses.
func (u User) Redacted() User {
	u.Password = ""
	return u
}

// UserUpdate is a partial update merged into an existing user record.
// A non-nil Password is plaintext and must be re-hashed by the store.
type UserUpdate struct {
	Password  *string `json:"password,omitempty"`
	IsAdmin   *bool   `json:"isAdmin,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}
