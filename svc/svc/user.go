package svc

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"pinbin/metrics"
	"pinbin/pkg/domain"
	"pinbin/svc/auth"
	"pinbin/svc/db"
	"pinbin/svc/util"
)

// dummyHash keeps Authenticate doing real argon2 work when the username does
// not exist, so response timing does not reveal which usernames are taken.
const dummyHash = "$argon2id$v=19$m=65536,t=1,p=1$ZHVtbXlzYWx0$ZHVtbXloYXNoZHVtbXloYXNo"

// User orchestrates account lifecycle: signup, login, policy-gated mutation
// and deletion. Credentials are redacted before leaving this layer.
type User struct {
	store  db.Store
	hasher *auth.Hasher
}

func NewUser(store db.Store, hasher *auth.Hasher) *User {
	if store == nil || hasher == nil {
		panic("user service: nil dependency (store or hasher)")
	}
	return &User{store: store, hasher: hasher}
}

func (u *User) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.ErrInvalidRequest
	}
	user, err := u.store.CreateUser(ctx, username, password)
	if err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) {
			return nil, domain.ErrUsernameTaken
		}
		return nil, errors.Wrap(err, "create user")
	}
	metrics.UserRegistered.Inc()
	util.Info().Str("username", username).Int("user_id", user.ID).Msg("user registered")
	return user, nil
}

// Authenticate checks username/password and returns the account on success.
// Wrong username and wrong password are indistinguishable to the caller.
func (u *User) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := u.store.GetUserByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		u.hasher.Verify(password, dummyHash)
		return nil, domain.ErrInvalidCredential
	}
	if err != nil {
		return nil, errors.Wrap(err, "lookup user")
	}
	ok, err := u.hasher.Verify(password, user.Password)
	if err != nil {
		return nil, errors.Wrap(err, "verify credential")
	}
	if !ok {
		return nil, domain.ErrInvalidCredential
	}
	u.rehashIfNeeded(ctx, user, password)
	return user, nil
}

// rehashIfNeeded upgrades a credential stored with weaker parameters. Best
// effort: a failure only logs, the login still succeeds.
func (u *User) rehashIfNeeded(ctx context.Context, user *domain.User, password string) {
	needs, err := u.hasher.NeedsRehash(user.Password)
	if err != nil || !needs {
		return
	}
	if err := u.store.UpdateUser(ctx, user.ID, domain.UserUpdate{Password: &password}); err != nil {
		util.Warn().Err(err).Int("user_id", user.ID).Msg("credential rehash failed")
	}
}

func (u *User) Get(ctx context.Context, id int) (*domain.User, error) {
	return u.store.GetUser(ctx, id)
}

// List returns all accounts with credentials stripped.
func (u *User) List(ctx context.Context) ([]domain.User, error) {
	users, err := u.store.GetAllUsers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	out := make([]domain.User, 0, len(users))
	for _, user := range users {
		out = append(out, user.Redacted())
	}
	return out, nil
}

// Update applies a partial mutation to targetID on behalf of actor, per the
// access policy. Returns the updated record.
func (u *User) Update(ctx context.Context, actor *domain.User, targetID int, changes domain.UserUpdate) (*domain.User, error) {
	target, err := u.store.GetUser(ctx, targetID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get target user")
	}
	if domain.CanMutateUser(actor, target, changes) != domain.Allow {
		if domain.IsProtectedUser(target.Username) {
			return nil, domain.ErrProtectedUser
		}
		return nil, domain.ErrForbidden
	}
	if err := u.store.UpdateUser(ctx, targetID, changes); err != nil {
		return nil, errors.Wrap(err, "update user")
	}
	updated, err := u.store.GetUser(ctx, targetID)
	if err != nil {
		return nil, errors.Wrap(err, "reload user")
	}
	return updated, nil
}

// Delete removes targetID on behalf of actor. Deleting an id that does not
// exist is not an error; the target's pastes are deliberately left in place.
func (u *User) Delete(ctx context.Context, actor *domain.User, targetID int) error {
	target, err := u.store.GetUser(ctx, targetID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return u.store.DeleteUser(ctx, targetID)
	}
	if err != nil {
		return errors.Wrap(err, "get target user")
	}
	if domain.CanDeleteUser(actor, target) != domain.Allow {
		if domain.IsProtectedUser(target.Username) {
			return domain.ErrProtectedUser
		}
		return domain.ErrForbidden
	}
	if err := u.store.DeleteUser(ctx, targetID); err != nil {
		return errors.Wrap(err, "delete user")
	}
	util.Info().Int("user_id", targetID).Str("username", target.Username).Msg("user deleted")
	return nil
}
