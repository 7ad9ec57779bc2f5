package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warrantyflow-sys/warrantyflow-sub001/api/controllers"
	"github.com/warrantyflow-sys/warrantyflow-sub001/api/middleware"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/analytics/query"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/auth"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/devices"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/ledger"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/notifications"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/payments"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/pricing"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/repairs"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/replacements"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/users"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/warranties"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/auth/session"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/changefeed"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/config"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// RouterParams collects everything the HTTP surface depends on. Settlements
// and the changefeed hub are optional; their routes degrade gracefully when
// left nil.
type RouterParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	Redis   *redis.Client
	Session sessionManager

	Readiness map[string]controllers.Pinger

	AuthService     auth.Service
	RegisterService auth.RegisterService
	AdminRegister   auth.AdminRegisterService
	Users           *users.Repository
	Devices         devices.Service
	Warranties      warranties.Service
	Repairs         repairs.Service
	Replacements    replacements.Service
	Payments        payments.Service
	Pricing         pricing.Service
	Ledger          ledger.Service
	Notifications   notifications.Service

	Settlements   query.SettlementService
	ChangefeedHub *changefeed.Hub
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Readiness))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).Post("/login", controllers.AuthLogin(p.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(p.Session, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.Session, cfg.JWT, logg))
	})

	if !cfg.App.IsProd() {
		r.Post("/api/admin/v1/auth/register", controllers.AdminBootstrapRegister(p.AdminRegister, logg))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Session, logg))
		r.Use(middleware.Idempotency(p.Redis, logg))

		r.Get("/ping", controllers.PrivatePing())
		r.Get("/users/me", controllers.CurrentUser(p.Users, logg))
		r.Get("/labs", controllers.ListLabs(p.Users, logg))

		r.Route("/devices", func(r chi.Router) {
			r.Post("/", controllers.RegisterDevice(p.Devices, logg))
			r.Get("/", controllers.ListDevices(p.Devices, logg))
			r.Get("/lookup", controllers.LookupDeviceByIMEI(p.Devices, logg))
			r.Get("/{deviceId}", controllers.GetDevice(p.Devices, logg))
			r.Get("/{deviceId}/coverage", controllers.DeviceCoverage(p.Warranties, logg))
		})

		r.Get("/device-models", controllers.ListDeviceModels(p.Devices, logg))

		r.Route("/warranties", func(r chi.Router) {
			r.Post("/", controllers.ActivateWarranty(p.Warranties, logg))
			r.Get("/", controllers.ListStoreWarranties(p.Warranties, logg))
			r.Post("/{warrantyId}/cancel", controllers.CancelWarranty(p.Warranties, logg))
		})

		r.Route("/repairs", func(r chi.Router) {
			r.Post("/", controllers.CreateRepair(p.Repairs, logg))
			r.Get("/", controllers.ListRepairs(p.Repairs, logg))
			r.Get("/{repairId}", controllers.GetRepair(p.Repairs, logg))
			r.Post("/{repairId}/claim", controllers.ClaimRepair(p.Repairs, logg))
			r.Post("/{repairId}/transition", controllers.TransitionRepair(p.Repairs, logg))
		})

		r.Route("/replacements", func(r chi.Router) {
			r.Post("/", controllers.CreateReplacement(p.Replacements, logg))
			r.Get("/", controllers.ListReplacements(p.Replacements, logg))
			r.Get("/{requestId}", controllers.GetReplacement(p.Replacements, logg))
		})

		r.Route("/labs/{labId}", func(r chi.Router) {
			r.Get("/payments", controllers.ListLabPayments(p.Payments, logg))
			r.Get("/balance", controllers.LabBalance(p.Ledger, logg))
			r.Get("/prices", controllers.ListLabPrices(p.Pricing, logg))
		})

		r.Get("/repair-types", controllers.ListRepairTypes(p.Pricing, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Get("/unread-count", controllers.UnreadNotificationCount(p.Notifications, logg))
			r.Post("/{notificationId}/open", controllers.MarkNotificationOpened(p.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(p.Notifications, logg))
			r.Delete("/{notificationId}", controllers.DeleteNotification(p.Notifications, logg))
		})

		r.Get("/changefeed", controllers.StreamChanges(p.ChangefeedHub, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Session, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
		r.Use(middleware.Idempotency(p.Redis, logg))

		r.Get("/ping", controllers.AdminPing())

		r.Post("/users", controllers.RegisterUser(p.RegisterService, logg))

		r.Route("/device-models", func(r chi.Router) {
			r.Post("/", controllers.CreateDeviceModel(p.Devices, logg))
			r.Patch("/{modelId}", controllers.UpdateDeviceModel(p.Devices, logg))
		})

		r.Route("/repair-types", func(r chi.Router) {
			r.Post("/", controllers.CreateRepairType(p.Pricing, logg))
			r.Get("/", controllers.ListRepairTypes(p.Pricing, logg))
			r.Patch("/{repairTypeId}", controllers.UpdateRepairType(p.Pricing, logg))
		})

		r.Put("/labs/{labId}/prices", controllers.SetLabPrice(p.Pricing, logg))

		r.Post("/payments", controllers.RecordPayment(p.Payments, logg))
		r.Get("/labs/balances", controllers.AllLabBalances(p.Ledger, logg))

		r.Post("/replacements/{requestId}/resolve", controllers.ResolveReplacement(p.Replacements, logg))

		r.Get("/analytics/settlements", controllers.SettlementAnalytics(p.Settlements, logg))
	})

	return r
}
