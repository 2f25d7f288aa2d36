package main

import (
	"context"
	"encoding/base64"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pinbin/cfg"
	"pinbin/metrics"
	"pinbin/pkg/domain"
	"pinbin/pkg/secrets"
	"pinbin/svc/api"
	"pinbin/svc/auth"
	"pinbin/svc/cache"
	"pinbin/svc/db"
	"pinbin/svc/svc"
	"pinbin/svc/util"

	"github.com/gorilla/securecookie"
	"github.com/pkg/errors"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		util.Fatal().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}
	if err := cfg.Validate(c); err != nil {
		util.Fatal().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}
	defer c.Wipe()
	util.InitLog(c.LogLevel, c.Environment == "development")
	util.Info().Msg("starting pinbin API")
	metrics.Init()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	secretsAdapter, err := secrets.NewAdapter(ctx)
	if err != nil {
		util.Fatal().Err(err).Msg("failed to initialize secrets adapter")
		os.Exit(1)
	}

	hasher, err := auth.NewHasher(c.Argon2Time, c.Argon2Memory, c.Argon2Parallelism)
	if err != nil {
		util.Fatal().Err(err).Msg("failed to initialize hasher")
		os.Exit(1)
	}

	sqlDB, err := db.NewSQLiteWithConfig(c.DatabasePath, hasher, c.DBMaxOpenConns, c.DBMaxIdleConns, c.DBQueryTimeout)
	if err != nil {
		util.Fatal().Err(err).Msg("failed to initialize database")
		os.Exit(1)
	}
	defer sqlDB.Close()
	util.Info().Str("path", c.DatabasePath).Msg("database initialized")

	var rdb *db.Redis
	if c.RedisURL != "" {
		rdb, err = db.NewRedis(c.RedisURL, c)
		if err != nil {
			if c.Environment == "production" {
				util.Fatal().Err(err).Msg("CRITICAL: Redis required in production")
				os.Exit(1)
			}
			util.Warn().Err(err).Msg("redis unavailable (dev mode)")
		} else {
			util.Info().Msg("redis connected")
		}
	}
	if rdb != nil {
		defer rdb.Close()
	}

	lruCache, err := cache.NewLRU(c.LRUCacheSize)
	if err != nil {
		util.Fatal().Err(err).Msg("failed to create LRU cache")
		os.Exit(1)
	}
	util.Info().Int("size", c.LRUCacheSize).Msg("LRU cache initialized")

	pasteSvc := svc.NewPaste(sqlDB, lruCache, rdb, c.RecentPastesLimit)
	userSvc := svc.NewUser(sqlDB, hasher)

	if err := seedAdmins(ctx, sqlDB, secretsAdapter, c.SeedAdminUsers); err != nil {
		util.Fatal().Err(err).Msg("failed to seed admin accounts")
		os.Exit(1)
	}

	sessionKey := loadSessionKey(ctx, secretsAdapter)
	sessions := api.NewSessions(sessionKey, c.SessionCookieName, c.SessionMaxAge, c.Environment == "production")

	server := api.NewServer(c, pasteSvc, userSvc, sessions, sqlDB, rdb)

	quitWAL := make(chan struct{})
	go db.StartWALMaintenance(sqlDB.DB(), c.WALCheckpointEvery, c.WALEscalatePages, quitWAL)
	util.Info().Msg("WAL maintenance worker started")

	util.Info().Str("port", c.Port).Str("environment", c.Environment).Msg("server starting")
	go func() {
		if err := server.Start(); err != nil {
			util.Fatal().Err(err).Msg("server failed")
			os.Exit(1)
		}
	}()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	util.Info().Msg("shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		util.Error().Err(err).Msg("server shutdown error")
	}
	close(quitWAL)
	cancel()
	util.Info().Msg("shutdown complete")
}

// loadSessionKey fetches the cookie signing key from the secrets provider.
// Without one, a fresh random key is generated and existing sessions are
// invalidated on restart.
func loadSessionKey(ctx context.Context, sec *secrets.Adapter) []byte {
	raw, err := sec.GetSecret(ctx, "SESSION_KEY")
	if err != nil || raw == "" {
		util.Warn().Msg("SESSION_KEY not configured, generating ephemeral key")
		return securecookie.GenerateRandomKey(32)
	}
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && len(decoded) >= 32 {
		return decoded
	}
	if len(raw) < 32 {
		util.Warn().Msg("SESSION_KEY too short, generating ephemeral key")
		return securecookie.GenerateRandomKey(32)
	}
	return []byte(raw)
}

// seedAdmins creates the configured admin accounts on first boot, so the
// seed list is safe to keep across restarts. Create and promote are two
// store calls; re-checking the admin flag on the existing-user path means a
// crash between them is repaired on the next boot. Each account's password
// comes from the secrets provider under SEED_PASSWORD_<USERNAME>.
func seedAdmins(ctx context.Context, store db.Store, sec *secrets.Adapter, usernames []string) error {
	isAdmin := true
	promote := domain.UserUpdate{IsAdmin: &isAdmin}
	for _, username := range usernames {
		username = strings.TrimSpace(username)
		if username == "" {
			continue
		}
		existing, err := store.GetUserByUsername(ctx, username)
		if err == nil {
			if !existing.IsAdmin {
				if err := store.UpdateUser(ctx, existing.ID, promote); err != nil {
					return errors.Wrapf(err, "promote seed user %q", username)
				}
				util.Info().Str("username", username).Msg("promoted existing seed account")
			}
			continue
		}
		if errors.Cause(err) != domain.ErrUserNotFound {
			return errors.Wrapf(err, "look up seed user %q", username)
		}
		password, err := sec.GetSecret(ctx, "SEED_PASSWORD_"+strings.ToUpper(username))
		if err != nil || password == "" {
			return errors.Errorf("no seed password configured for %q", username)
		}
		user, err := store.CreateUser(ctx, username, password)
		if err != nil {
			return errors.Wrapf(err, "create seed user %q", username)
		}
		if err := store.UpdateUser(ctx, user.ID, promote); err != nil {
			return errors.Wrapf(err, "promote seed user %q", username)
		}
		util.Info().Str("username", username).Msg("seeded admin account")
	}
	return nil
}
