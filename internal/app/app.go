// Package app wires the service graph and the HTTP router.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pustaka-labs/backend-pustaka/internal/assets"
	"github.com/pustaka-labs/backend-pustaka/internal/auth"
	"github.com/pustaka-labs/backend-pustaka/internal/authorgate"
	"github.com/pustaka-labs/backend-pustaka/internal/billing"
	"github.com/pustaka-labs/backend-pustaka/internal/catalog"
	"github.com/pustaka-labs/backend-pustaka/internal/common"
	"github.com/pustaka-labs/backend-pustaka/internal/config"
	"github.com/pustaka-labs/backend-pustaka/internal/coupon"
	"github.com/pustaka-labs/backend-pustaka/internal/events"
	"github.com/pustaka-labs/backend-pustaka/internal/health"
	"github.com/pustaka-labs/backend-pustaka/internal/lock"
	"github.com/pustaka-labs/backend-pustaka/internal/notify"
	"github.com/pustaka-labs/backend-pustaka/internal/obs"
	"github.com/pustaka-labs/backend-pustaka/internal/order"
	"github.com/pustaka-labs/backend-pustaka/internal/payment"
	"github.com/pustaka-labs/backend-pustaka/internal/ratelimit"
	"github.com/pustaka-labs/backend-pustaka/internal/resilience"
	"github.com/pustaka-labs/backend-pustaka/internal/security"
)

// App bundles the wired service graph.
type App struct {
	Cfg     *config.Config
	Logger  zerolog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Asynq   *asynq.Client
	Bus     *events.Bus
	Metrics *obs.MarketplaceMetrics

	AuthLimit func(http.Handler) http.Handler

	Auth       *auth.Service
	Catalog    *catalog.Service
	Coupons    *coupon.Service
	Orders     *order.Service
	Billing    *billing.Service
	AuthorGate *authorgate.Service
	Gateway    payment.Gateway
}

// billingAuthors adapts the user store to the billing author view.
type billingAuthors struct {
	users *auth.Store
}

func (a billingAuthors) GetAuthor(ctx context.Context, id string) (billing.Author, error) {
	u, err := a.users.GetByID(ctx, id)
	if err != nil {
		return billing.Author{}, err
	}
	return billing.Author{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		JoinedAt:    u.CreatedAt,
	}, nil
}

// billingEarnings adapts the order ledger to the billing earnings view.
type billingEarnings struct {
	orders *order.Store
}

func (e billingEarnings) EarningsForAuthor(ctx context.Context, authorID string, from, to time.Time) ([]billing.Earning, error) {
	rows, err := e.orders.EarningsForAuthor(ctx, authorID, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]billing.Earning, 0, len(rows))
	for _, r := range rows {
		out = append(out, billing.Earning{OrderID: r.OrderID, NetCents: r.NetCents, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

// New wires the full service graph.
func New(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, rdb *redis.Client, asynqClient *asynq.Client) (*App, error) {
	resilience.RegisterMetrics("pustaka", prometheus.DefaultRegisterer)
	metrics := obs.NewMarketplaceMetrics("pustaka", prometheus.DefaultRegisterer)
	bus := events.NewBus(&events.PGRecorder{Pool: pool}, logger)

	userStore := &auth.Store{Pool: pool}
	bookStore := &catalog.Store{Pool: pool}
	couponStore := &coupon.Store{Pool: pool}
	orderStore := &order.Store{Pool: pool}
	feeStore := &billing.Store{Pool: pool}

	authSvc := &auth.Service{
		Q:          userStore,
		Secret:     []byte(cfg.JWTSecret),
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		Bus:        bus,
		Logger:     logger,
	}

	catalogSvc := &catalog.Service{
		Q: bookStore,
		HasPayoutEmail: func(ctx context.Context, authorID string) (bool, error) {
			u, err := userStore.GetByID(ctx, authorID)
			if err != nil {
				return false, err
			}
			return u.PayoutPayPalEmail != "", nil
		},
	}

	couponSvc := &coupon.Service{Q: couponStore, Books: catalogSvc}

	gateway := payment.NewPayPal(cfg.PayPalBaseURL, cfg.PayPalClientID, cfg.PayPalSecret,
		cfg.CurrencyCode, cfg.PayPalTimeout, logger)

	orderSvc := &order.Service{
		Ledger:       orderStore,
		Pricer:       couponSvc,
		Gateway:      gateway,
		FeePercent:   cfg.PlatformFeePercentage,
		Currency:     cfg.CurrencyCode,
		DirectPayout: cfg.DirectPayout,
		VerifyWithin: cfg.PayPalTimeout,
		Bus:          bus,
		Metrics:      metrics,
		Logger:       logger,
	}

	strategy, err := billing.StrategyByName(cfg.BillingStrategy)
	if err != nil {
		return nil, err
	}
	billingSvc := &billing.Service{
		Engine: &billing.Engine{
			Earnings:   billingEarnings{orders: orderStore},
			FeePercent: cfg.PlatformFeePercentage,
			TrialDays:  cfg.TrialDays,
		},
		Strategy: strategy,
		Authors:  billingAuthors{users: userStore},
		Sellers:  orderStore,
		Fees:     feeStore,
		Bus:      bus,
		Metrics:  metrics,
		Logger:   logger,
	}

	gateSvc := &authorgate.Service{
		Accounts: userStore,
		Books:    bookStore,
		Locker:   lock.Locker{R: rdb},
		Bus:      bus,
		Metrics:  metrics,
		Logger:   logger,
	}

	authLimit, err := ratelimit.NewAuthLimiter(rdb, cfg.AuthRateLimitRequests, cfg.AuthRateLimitWindow)
	if err != nil {
		return nil, err
	}

	return &App{
		Cfg:        cfg,
		AuthLimit:  authLimit,
		Logger:     logger,
		Pool:       pool,
		Redis:      rdb,
		Asynq:      asynqClient,
		Bus:        bus,
		Metrics:    metrics,
		Auth:       authSvc,
		Catalog:    catalogSvc,
		Coupons:    couponSvc,
		Orders:     orderSvc,
		Billing:    billingSvc,
		AuthorGate: gateSvc,
		Gateway:    gateway,
	}, nil
}

// Router builds the chi router with the full middleware chain and all routes.
func (a *App) Router() http.Handler {
	validate := validator.New()
	httpMetrics := obs.NewHTTPMetrics("pustaka", nil, prometheus.DefaultRegisterer)

	mailer := &notify.Mailer{
		Client:  a.Asynq,
		From:    a.Cfg.EmailFrom,
		Enabled: a.Cfg.NotifyEmailEnabled,
		Logger:  a.Logger,
	}

	authHandlers := &auth.Handlers{Svc: a.Auth, Validate: validate, Welcome: mailer}
	bookHandlers := &catalog.Handlers{
		Svc: a.Catalog, Store: &catalog.Store{Pool: a.Pool},
		Validate: validate, PublicBaseURL: a.Cfg.PublicBaseURL,
	}
	couponHandlers := &coupon.Handlers{Svc: a.Coupons, Validate: validate}
	orderHandlers := &order.Handlers{Svc: a.Orders, Validate: validate}
	billingHandlers := &billing.Handlers{Svc: a.Billing, Mail: mailer, Validate: validate}
	gateHandlers := &authorgate.Handlers{
		Svc: a.AuthorGate, Billing: a.Billing, Validate: validate, TrialDays: a.Cfg.TrialDays,
	}
	assetHandlers := &assets.Handlers{
		Dir: a.Cfg.AssetsDir, Catalog: a.Catalog, Orders: a.Orders,
		Validate: validate, Logger: a.Logger,
	}
	healthHandlers := &health.Handlers{Pool: a.Pool, Redis: a.Redis}

	limiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: a.Redis, Prefix: "rl:"},
		Config: ratelimit.Config{
			Key:    func(r *http.Request) string { return r.RemoteAddr },
			Window: a.Cfg.RateLimitWindow,
			Max:    a.Cfg.RateLimitRequests,
		},
		OnError: func(err error) {
			a.Logger.Warn().Err(err).Msg("rate_limit_backend_error")
		},
	}
	idem := common.Idem{R: a.Redis, TTL: a.Cfg.IdempotencyTTL}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.TracingMiddleware)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger(a.Logger))
	r.Use(security.Headers{Enable: true, EnableHSTS: a.Cfg.IsProduction()}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.Cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(limiter.Middleware)

	r.Get("/health/live", healthHandlers.Live)
	r.Get("/health/ready", healthHandlers.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if a.AuthLimit != nil {
				r.Use(a.AuthLimit)
			}
			r.Post("/register", authHandlers.Register)
			r.Post("/login", authHandlers.Login)
			r.Post("/refresh", authHandlers.Refresh)
			r.Post("/logout", authHandlers.Logout)
			r.Post("/password/forgot", authHandlers.ForgotPassword)
			r.Post("/password/reset", authHandlers.ResetPassword)
			r.With(a.Auth.Middleware).Get("/me", authHandlers.Me)
		})

		r.Get("/books", bookHandlers.List)
		r.Get("/books/{bookID}", bookHandlers.Get)
		r.Get("/assets/covers/{bookID}", assetHandlers.Cover)

		r.Post("/coupons/apply", couponHandlers.Apply)

		r.Group(func(r chi.Router) {
			r.Use(a.Auth.Middleware)

			r.With(idem.Middleware).Post("/orders/paypal", orderHandlers.CreatePayPal)
			r.With(idem.Middleware).Post("/orders", orderHandlers.Create)
			r.Get("/orders", orderHandlers.ListMine)
			r.Get("/orders/{orderID}", orderHandlers.Get)
			r.Get("/assets/books/{bookID}", assetHandlers.BookPDF)
			r.Post("/assets/{kind}", assetHandlers.Upload)

			r.With(auth.RequireRole("author")).Post("/books", bookHandlers.Publish)
			r.With(auth.RequireRole("author")).Delete("/books/{bookID}", bookHandlers.Delete)

			r.Route("/authors/me", func(r chi.Router) {
				r.Use(auth.RequireRole("author"))
				r.Get("/books", bookHandlers.Mine)
				r.Get("/settings", gateHandlers.GetSettings)
				r.Put("/settings", gateHandlers.UpdateSettings)
				r.Get("/dashboard", gateHandlers.Dashboard)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireRole("admin"))
				r.Get("/orders", orderHandlers.ListAll)
				r.Get("/fees", billingHandlers.Status)
				r.Post("/fees/{authorID}/{periodKey}/mark-paid", billingHandlers.MarkPaid)
				r.Post("/fees/{authorID}/{periodKey}/mark-unpaid", billingHandlers.MarkUnpaid)
				r.Post("/fees/remind", billingHandlers.Remind)
				r.Get("/coupons", couponHandlers.List)
				r.Post("/coupons", couponHandlers.Create)
				r.Put("/coupons/{code}", couponHandlers.Update)
				r.Post("/authors/{authorID}/block", gateHandlers.Block)
				r.Post("/authors/{authorID}/unblock", gateHandlers.Unblock)
			})
		})
	})

	return r
}
