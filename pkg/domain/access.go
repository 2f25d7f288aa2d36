package domain

import (
	"crypto/subtle"
)

// Decision is the outcome of an access policy check.
type Decision int

const (
	Deny Decision = iota
	Allow
	NeedPassword
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case NeedPassword:
		return "need_password"
	default:
		return "deny"
	}
}

// protectedUsers may never be deleted and never have their role or
// credential changed, regardless of who is asking.
var protectedUsers = map[string]bool{
	"victim":    true,
	"convicted": true,
}

func IsProtectedUser(username string) bool {
	return protectedUsers[username]
}

// CanReadPaste decides whether requester may read paste. requester is nil for
// anonymous callers. A private password-gated paste yields NeedPassword until
// the correct password is supplied; a private owner-only paste is readable by
// its owner alone.
func CanReadPaste(paste *Paste, requester *User, suppliedPassword string) Decision {
	if !paste.IsPrivate {
		return Allow
	}
	if paste.HasPassword() {
		if suppliedPassword == "" {
			return NeedPassword
		}
		if subtle.ConstantTimeCompare([]byte(suppliedPassword), []byte(paste.Password)) == 1 {
			return Allow
		}
		return Deny
	}
	if requester != nil && requester.ID == paste.OwnerID {
		return Allow
	}
	return Deny
}

// CanMutateUser decides whether actor may apply changes to target. Users may
// edit themselves as long as they do not touch the admin flag; admins may edit
// anyone. Protected accounts are immutable for everyone.
func CanMutateUser(actor *User, target *User, changes UserUpdate) Decision {
	if IsProtectedUser(target.Username) {
		return Deny
	}
	if actor == nil {
		return Deny
	}
	if actor.ID == target.ID && changes.IsAdmin == nil {
		return Allow
	}
	if actor.IsAdmin {
		return Allow
	}
	return Deny
}

// CanDeleteUser allows only admins to delete, never a protected account and
// never themselves.
func CanDeleteUser(actor *User, target *User) Decision {
	if actor == nil || target == nil {
		return Deny
	}
	if IsProtectedUser(target.Username) {
		return Deny
	}
	if !actor.IsAdmin || actor.ID == target.ID {
		return Deny
	}
	return Allow
}

// CanPinOrDeletePaste: pin state and paste deletion are admin-only.
func CanPinOrDeletePaste(actor *User) Decision {
	if actor != nil && actor.IsAdmin {
		return Allow
	}
	return Deny
}

// CanCreatePaste: any authenticated user.
func CanCreatePaste(actor *User) Decision {
	if actor != nil {
		return Allow
	}
	return Deny
}
