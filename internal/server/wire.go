package server

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/onebills/onebills/internal/auth"
	"github.com/onebills/onebills/internal/bills"
	"github.com/onebills/onebills/internal/config"
	"github.com/onebills/onebills/internal/identity"
	"github.com/onebills/onebills/internal/notification"
	"github.com/onebills/onebills/internal/profile"
	"github.com/onebills/onebills/internal/transactions"
)

const (
	otpWindow        = 15 * time.Minute
	bridgeAuthPerMin = 30
	bridgeAuthWindow = time.Minute
)

// components holds the services built from Postgres and Redis, or from
// in-memory stand-ins when either is absent.
type components struct {
	auth         *auth.Service
	profiles     *profile.Service
	bills        *bills.Service
	transactions *transactions.Service
	authLimiter  auth.Limiter
}

func buildComponents(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (components, error) {
	var (
		identityRepo identity.Repository
		profileRepo  profile.Repository
		billRepo     bills.Repository
		txRepo       transactions.Repository
	)
	if db != nil {
		identityRepo = identity.NewPostgresRepository(db)
		profileRepo = profile.NewPostgresRepository(db)
		billRepo = bills.NewPostgresRepository(db)
		txRepo = transactions.NewPostgresRepository(db)
	} else {
		logger.Warn("server.memory_storage", slog.String("reason", "DATABASE_URL not set"))
		identityRepo = identity.NewMemoryRepository()
		profileRepo = profile.NewMemoryRepository()
		mem := bills.NewMemoryRepository()
		seedCatalog(mem)
		billRepo = mem
		txRepo = transactions.NewMemoryRepository()
	}

	var (
		authStore auth.Store
		storage   auth.SessionStorage
		signIn    auth.Limiter
		otp       auth.Limiter
		bridge    auth.Limiter
		catalog   *bills.Cache
	)
	if cache != nil {
		authStore = auth.NewRedisStore(cache)
		storage = auth.NewRedisSessionStorage(cache, cfg.DeviceID, cfg.RefreshTokenTTL)
		signIn = auth.NewRedisLimiter(cache, cfg.SignInPerMinute, time.Minute)
		otp = auth.NewRedisLimiter(cache, cfg.OTPMaxPerWindow, otpWindow)
		bridge = auth.NewRedisLimiter(cache, bridgeAuthPerMin, bridgeAuthWindow)
		catalog = bills.NewCache(cache, cfg.CatalogCacheTTL, logger)
	} else {
		logger.Warn("server.memory_sessions", slog.String("reason", "REDIS_URL not set"))
		authStore = auth.NewMemoryStore()
		storage = &auth.MemorySessionStorage{}
		signIn = auth.NewMemoryLimiter(cfg.SignInPerMinute, time.Minute)
		otp = auth.NewMemoryLimiter(cfg.OTPMaxPerWindow, otpWindow)
		bridge = auth.NewMemoryLimiter(bridgeAuthPerMin, bridgeAuthWindow)
	}

	notifier := notification.NewLoggerNotifier(logger)
	authSvc, err := auth.NewService(auth.Deps{
		Identities:    identity.NewService(identityRepo, cfg.BcryptCost),
		Store:         authStore,
		Storage:       storage,
		SignInLimiter: signIn,
		OTPLimiter:    otp,
		Notifier:      notifier,
		Tokens:        auth.NewTokens(cfg.JWTSecret, cfg.AppName, cfg.AccessTokenTTL),
		Logger:        logger,
	}, auth.Options{
		OTPTTL:     cfg.OTPTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		return components{}, err
	}

	return components{
		auth:         authSvc,
		profiles:     profile.NewService(profileRepo),
		bills:        bills.NewService(billRepo, catalog),
		transactions: transactions.NewService(txRepo, notifier, logger),
		authLimiter:  bridge,
	}, nil
}

// seedCatalog gives the in-memory catalog something to browse.
func seedCatalog(repo *bills.MemoryRepository) {
	now := time.Now().UTC()
	catalog := map[string][]string{
		"Electricity": {"City Power", "GridCo"},
		"Water":       {"Metro Water"},
		"Internet":    {"FiberNet", "SkyLink"},
	}
	for name, providers := range catalog {
		category := bills.Category{ID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now}
		repo.AddCategory(category)
		for _, provider := range providers {
			repo.AddProvider(bills.Provider{
				ID:         uuid.NewString(),
				Name:       provider,
				CategoryID: category.ID,
				IsActive:   true,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		}
	}
}
