package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stockline-hq/stockline-backend/api/controllers"
	webhookcontrollers "github.com/stockline-hq/stockline-backend/api/controllers/webhooks"
	"github.com/stockline-hq/stockline-backend/api/middleware"
	"github.com/stockline-hq/stockline-backend/internal/agentactions"
	"github.com/stockline-hq/stockline-backend/internal/channels"
	channelwebhook "github.com/stockline-hq/stockline-backend/internal/channels/webhook"
	"github.com/stockline-hq/stockline-backend/internal/inventory"
	"github.com/stockline-hq/stockline-backend/internal/invoices"
	"github.com/stockline-hq/stockline-backend/pkg/config"
	"github.com/stockline-hq/stockline-backend/pkg/db"
	"github.com/stockline-hq/stockline-backend/pkg/logger"
	"github.com/stockline-hq/stockline-backend/pkg/redis"
)

// NewRouter assembles the HTTP surface. Webhook and callback routes stay
// outside the authenticated group: they are called by external storefronts.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	promRegistry *prometheus.Registry,
	channelService channels.Service,
	webhookService channelwebhook.Service,
	inventoryService inventory.Service,
	invoiceService invoices.Service,
	agentActionService agentactions.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	r.Route(cfg.Channels.WebhookBasePath, func(r chi.Router) {
		r.Post("/{channelType}/{channelId}", webhookcontrollers.ChannelWebhook(webhookService, logg))
	})

	// Storefronts redirect the merchant's browser here after authorizing.
	r.Post("/api/v1/channels/{channelId}/callback", controllers.ChannelCallback(channelService, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/channels", func(r chi.Router) {
			r.Post("/", controllers.ChannelCreate(channelService, logg))
			r.Get("/", controllers.ChannelList(channelService, logg))
			r.Get("/{channelId}", controllers.ChannelDetail(channelService, logg))
			r.Post("/{channelId}/webhooks", controllers.ChannelRegisterWebhooks(channelService, logg))
			r.Post("/{channelId}/disconnect", controllers.ChannelDisconnect(channelService, logg))
			r.Get("/{channelId}/products", controllers.ChannelFetchProducts(channelService, logg))
			r.Route("/{channelId}/mappings", func(r chi.Router) {
				r.Post("/", controllers.ChannelCreateMapping(channelService, logg))
				r.Get("/", controllers.ChannelListMappings(channelService, logg))
				r.Delete("/{mappingId}", controllers.ChannelDeleteMapping(channelService, logg))
				r.Post("/{mappingId}/push", controllers.ChannelPushStock(channelService, logg))
			})
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Post("/adjustments", controllers.InventoryAdjust(inventoryService, logg))
			r.Get("/products/{productId}/transactions", controllers.InventoryTransactions(inventoryService, logg))
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", controllers.InvoiceCreate(invoiceService, logg))
			r.Get("/", controllers.InvoiceList(invoiceService, logg))
			r.Get("/{invoiceId}", controllers.InvoiceDetail(invoiceService, logg))
			r.Post("/{invoiceId}/receive", controllers.InvoiceReceive(invoiceService, logg))
			r.Post("/{invoiceId}/cancel", controllers.InvoiceCancel(invoiceService, logg))
			r.Route("/{invoiceId}/payments", func(r chi.Router) {
				r.Post("/", controllers.InvoiceAddPayment(invoiceService, logg))
				r.Get("/", controllers.InvoiceListPayments(invoiceService, logg))
				r.Delete("/{paymentId}", controllers.InvoiceDeletePayment(invoiceService, logg))
			})
		})

		r.Route("/agent-actions", func(r chi.Router) {
			r.Post("/", controllers.AgentActionCreate(agentActionService, logg))
			r.Get("/", controllers.AgentActionList(agentActionService, logg))
			r.Get("/{actionId}", controllers.AgentActionDetail(agentActionService, logg))
			r.Post("/{actionId}/approve", controllers.AgentActionApprove(agentActionService, logg))
			r.Post("/{actionId}/dismiss", controllers.AgentActionDismiss(agentActionService, logg))
		})
	})

	return r
}
