package svc

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"pinbin/metrics"
	"pinbin/pkg/domain"
	"pinbin/svc/cache"
	"pinbin/svc/db"
	"pinbin/svc/util"
)

const pasteCacheTTL = 15 * time.Minute

// Paste orchestrates paste lifecycle: creation, policy-gated reads, home
// listings, and the admin pin/delete surface. Reads go LRU -> Redis -> store,
// with singleflight collapsing concurrent store lookups for the same token.
type Paste struct {
	store       db.Store
	lru         *cache.LRU
	rdb         *db.Redis
	recentLimit int
	group       singleflight.Group
}

func NewPaste(store db.Store, lru *cache.LRU, rdb *db.Redis, recentLimit int) *Paste {
	if store == nil || lru == nil {
		panic("paste service: nil dependency (store or lru)")
	}
	if recentLimit <= 0 {
		recentLimit = 10
	}
	return &Paste{
		store:       store,
		lru:         lru,
		rdb:         rdb,
		recentLimit: recentLimit,
	}
}

// Create mints a new paste for requester. Public pastes silently drop any
// supplied access password.
func (p *Paste) Create(ctx context.Context, requester *domain.User, params domain.CreatePasteParams) (*domain.Paste, error) {
	if domain.CanCreatePaste(requester) != domain.Allow {
		return nil, domain.ErrUnauthenticated
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, domain.ErrTitleRequired
	}
	if params.Content == "" {
		return nil, domain.ErrContentRequired
	}
	if !params.IsPrivate {
		params.Password = ""
	}
	paste, err := p.store.CreatePaste(ctx, params, requester.ID)
	if err != nil {
		return nil, errors.Wrap(err, "create paste")
	}
	p.lru.Set(paste)
	if p.rdb != nil {
		if err := p.rdb.CachePaste(ctx, paste, pasteCacheTTL); err != nil {
			util.Warn().Err(err).Str("url_id", paste.URLID).Msg("failed to cache in Redis")
		}
	}
	metrics.PasteCreated.Inc()
	return paste, nil
}

// FetchForRead resolves urlID and applies the read policy. The paste body is
// never returned on a policy failure.
func (p *Paste) FetchForRead(ctx context.Context, urlID string, requester *domain.User, suppliedPassword string) (*domain.Paste, error) {
	paste, err := p.lookup(ctx, urlID)
	if err != nil {
		return nil, err
	}
	switch domain.CanReadPaste(paste, requester, suppliedPassword) {
	case domain.Allow:
		metrics.PasteRetrieved.Inc()
		return paste, nil
	case domain.NeedPassword:
		return nil, domain.ErrPasswordRequired
	default:
		if paste.HasPassword() {
			return nil, domain.ErrInvalidPassword
		}
		return nil, domain.ErrForbidden
	}
}

func (p *Paste) lookup(ctx context.Context, urlID string) (*domain.Paste, error) {
	if paste := p.lru.Get(ctx, urlID); paste != nil {
		metrics.CacheHits.Inc()
		return paste, nil
	}
	metrics.CacheMisses.Inc()
	if p.rdb != nil {
		if paste, err := p.rdb.GetPaste(ctx, urlID); err == nil && paste != nil {
			p.lru.Set(paste)
			return paste, nil
		}
	}
	v, err, _ := p.group.Do(urlID, func() (interface{}, error) {
		paste, err := p.store.GetPaste(ctx, urlID)
		if err != nil {
			return nil, err
		}
		p.lru.Set(paste)
		if p.rdb != nil {
			if err := p.rdb.CachePaste(ctx, paste, pasteCacheTTL); err != nil {
				util.Warn().Err(err).Str("url_id", urlID).Msg("failed to cache in Redis")
			}
		}
		return paste, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrPasteNotFound) {
			return nil, domain.ErrPasteNotFound
		}
		return nil, errors.Wrap(err, "get paste")
	}
	return v.(*domain.Paste), nil
}

// Pinned returns the pinned listing, newest first. Private pastes stay in
// the listing but are reduced to metadata for requesters who may not read
// them.
func (p *Paste) Pinned(ctx context.Context, requester *domain.User) ([]domain.Paste, error) {
	pastes, err := p.store.GetPinnedPastes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "pinned pastes")
	}
	out := make([]domain.Paste, 0, len(pastes))
	for _, paste := range pastes {
		if domain.CanReadPaste(&paste, requester, "") == domain.Allow {
			out = append(out, paste)
		} else {
			out = append(out, paste.Listing())
		}
	}
	return out, nil
}

// Recent returns the most recent public unpinned pastes.
func (p *Paste) Recent(ctx context.Context) ([]domain.Paste, error) {
	recent, err := p.store.GetRecentPastes(ctx, p.recentLimit)
	if err != nil {
		return nil, errors.Wrap(err, "recent pastes")
	}
	return recent, nil
}

// Public returns every public paste, newest first. Private pastes are
// filtered out entirely rather than redacted: the public listing never
// acknowledges they exist.
func (p *Paste) Public(ctx context.Context) ([]domain.Paste, error) {
	pastes, err := p.store.GetAllPastes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "all pastes")
	}
	out := make([]domain.Paste, 0, len(pastes))
	for _, paste := range pastes {
		if !paste.IsPrivate {
			out = append(out, paste)
		}
	}
	return out, nil
}

// UserPastes lists everything owned by ownerID. Pastes the requester may not
// read are reduced to metadata so a private paste's body never leaks through
// the listing.
func (p *Paste) UserPastes(ctx context.Context, ownerID int, requester *domain.User) ([]domain.Paste, error) {
	pastes, err := p.store.GetUserPastes(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "user pastes")
	}
	out := make([]domain.Paste, 0, len(pastes))
	for _, paste := range pastes {
		if domain.CanReadPaste(&paste, requester, "") == domain.Allow {
			out = append(out, paste)
		} else {
			out = append(out, paste.Listing())
		}
	}
	return out, nil
}

// Pin sets the pin flag on a paste by internal id. Admin only; a missing id
// is a no-op, matching the store contract.
func (p *Paste) Pin(ctx context.Context, requester *domain.User, pasteID int, pinned bool) error {
	if domain.CanPinOrDeletePaste(requester) != domain.Allow {
		return domain.ErrForbidden
	}
	paste, err := p.store.GetPasteByID(ctx, pasteID)
	if errors.Is(err, domain.ErrPasteNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "get paste for pin")
	}
	if err := p.store.SetPastePinned(ctx, pasteID, pinned); err != nil {
		return errors.Wrap(err, "set pinned")
	}
	p.invalidate(ctx, paste.URLID)
	return nil
}

// Delete removes a paste by internal id. Admin only, idempotent.
func (p *Paste) Delete(ctx context.Context, requester *domain.User, pasteID int) error {
	if domain.CanPinOrDeletePaste(requester) != domain.Allow {
		return domain.ErrForbidden
	}
	paste, err := p.store.GetPasteByID(ctx, pasteID)
	if errors.Is(err, domain.ErrPasteNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "get paste for delete")
	}
	if err := p.store.DeletePaste(ctx, pasteID); err != nil {
		return errors.Wrap(err, "delete paste")
	}
	p.invalidate(ctx, paste.URLID)
	util.Info().Int("paste_id", pasteID).Msg("paste deleted")
	return nil
}

func (p *Paste) invalidate(ctx context.Context, urlID string) {
	p.lru.Delete(urlID)
	if p.rdb != nil {
		if err := p.rdb.Delete(ctx, urlID); err != nil {
			util.Warn().Err(err).Str("url_id", urlID).Msg("failed to invalidate redis entry")
		}
	}
}
