package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/velogear/velogear-backend/api/controllers"
	"github.com/velogear/velogear-backend/api/middleware"
	"github.com/velogear/velogear-backend/internal/audit"
	cartsvc "github.com/velogear/velogear-backend/internal/cart"
	categoriesvc "github.com/velogear/velogear-backend/internal/categories"
	checkoutsvc "github.com/velogear/velogear-backend/internal/checkout"
	ordersvc "github.com/velogear/velogear-backend/internal/orders"
	productsvc "github.com/velogear/velogear-backend/internal/products"
	vouchersvc "github.com/velogear/velogear-backend/internal/vouchers"
	"github.com/velogear/velogear-backend/pkg/config"
	"github.com/velogear/velogear-backend/pkg/db"
	"github.com/velogear/velogear-backend/pkg/enums"
	"github.com/velogear/velogear-backend/pkg/logger"
	"github.com/velogear/velogear-backend/pkg/redis"
)

// Services groups everything the router wires into handlers.
type Services struct {
	Products   productsvc.Service
	Categories categoriesvc.Service
	Vouchers   vouchersvc.Service
	Cart       cartsvc.Service
	Checkout   checkoutsvc.Service
	Orders     ordersvc.Service
	Audit      audit.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	registry *prometheus.Registry,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	// Public storefront surface.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", controllers.ProductList(svcs.Products, logg))
		r.Get("/products/{productId}", controllers.ProductDetail(svcs.Products, logg))
		r.Get("/categories", controllers.CategoryList(svcs.Categories, logg))

		// Everything below needs a signed-in customer or admin.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Get("/vouchers/{code}", controllers.VoucherResolve(svcs.Vouchers, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(svcs.Cart, logg))
				r.Put("/", controllers.CartReplace(svcs.Cart, logg))
				r.Delete("/", controllers.CartClear(svcs.Cart, logg))
			})

			r.Post("/checkout", controllers.Checkout(svcs.Checkout, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrderList(svcs.Orders, logg))
				r.Get("/{orderId}", controllers.OrderDetail(svcs.Orders, logg))
				r.Post("/{orderId}/cancel", controllers.OrderCancel(svcs.Orders, logg))
			})
		})
	})

	// Back office.
	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.AdminProductList(svcs.Products, logg))
			r.Post("/", controllers.AdminProductCreate(svcs.Products, svcs.Audit, logg))
			r.Patch("/{productId}", controllers.AdminProductUpdate(svcs.Products, svcs.Audit, logg))
			r.Delete("/{productId}", controllers.AdminProductDelete(svcs.Products, svcs.Audit, logg))
			r.Post("/{productId}/archive", controllers.AdminProductArchive(svcs.Products, svcs.Audit, logg))
			r.Post("/{productId}/unarchive", controllers.AdminProductUnarchive(svcs.Products, svcs.Audit, logg))
			r.Put("/{productId}/stock", controllers.AdminProductAdjustStock(svcs.Products, svcs.Audit, logg))
			r.Put("/{productId}/variants", controllers.AdminProductReplaceVariants(svcs.Products, svcs.Audit, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrderList(svcs.Orders, logg))
			r.Get("/{orderId}", controllers.AdminOrderDetail(svcs.Orders, logg))
			r.Put("/{orderId}/status", controllers.AdminOrderUpdateStatus(svcs.Orders, svcs.Audit, logg))
			r.Post("/{orderId}/cancel", controllers.AdminOrderCancel(svcs.Orders, svcs.Audit, logg))
		})

		r.Route("/vouchers", func(r chi.Router) {
			r.Get("/", controllers.AdminVoucherList(svcs.Vouchers, logg))
			r.Post("/", controllers.AdminVoucherCreate(svcs.Vouchers, svcs.Audit, logg))
			r.Delete("/{code}", controllers.AdminVoucherDelete(svcs.Vouchers, svcs.Audit, logg))
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.AdminCategoryList(svcs.Categories, logg))
			r.Post("/", controllers.AdminCategoryCreate(svcs.Categories, svcs.Audit, logg))
			r.Patch("/{code}", controllers.AdminCategoryUpdate(svcs.Categories, svcs.Audit, logg))
		})

		r.Route("/audit-logs", func(r chi.Router) {
			r.Get("/", controllers.AdminAuditList(svcs.Audit, logg))
			r.Post("/{logId}/restore", controllers.AdminAuditRestore(svcs.Audit, logg))
		})
	})

	return r
}
