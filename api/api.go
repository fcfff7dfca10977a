// Package api provides the HTTP API of the community backend: the partner
// slot board and bookings, the shop, the payment callbacks and the delivery
// worker endpoints.
//
// Users are identified by JWT tokens issued by the web front and signed with
// the shared secret. Admin routes require the admin role claim and the
// delivery worker routes a shared bearer token.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"github.com/voxelhub/community-backend/metrics"
	"github.com/voxelhub/community-backend/partners"
	"github.com/voxelhub/community-backend/payments"
	"github.com/voxelhub/community-backend/paypal"
	"github.com/voxelhub/community-backend/shop"
	"github.com/voxelhub/community-backend/stripe"
	"github.com/voxelhub/community-backend/validator"
	"go.vocdoni.io/dvote/log"
)

// Config holds the API server settings and the services it exposes. The
// payment providers are optional, checkouts with a provider that is not
// configured are refused.
type Config struct {
	Host string
	Port int
	// Secret verifies the JWT tokens issued by the web front.
	Secret string
	// WorkerToken authenticates the in-game delivery workers.
	WorkerToken string
	Ledger      *partners.Ledger
	Shop        *shop.Service
	Payments    *payments.Reconciler
	Stripe      *stripe.Service
	PayPal      *paypal.Service
}

// API type represents the API HTTP server with JWT authentication capabilities.
type API struct {
	auth        *jwtauth.JWTAuth
	host        string
	port        int
	router      *chi.Mux
	workerToken string
	ledger      *partners.Ledger
	shop        *shop.Service
	payments    *payments.Reconciler
	stripe      *stripe.Service
	paypal      *paypal.Service
	validator   *validator.Validator
}

// New creates a new API HTTP server. It does not start the server. Use Start() for that.
func New(conf *Config) *API {
	if conf == nil {
		return nil
	}
	return &API{
		auth:        jwtauth.New("HS256", []byte(conf.Secret), nil),
		host:        conf.Host,
		port:        conf.Port,
		workerToken: conf.WorkerToken,
		ledger:      conf.Ledger,
		shop:        conf.Shop,
		payments:    conf.Payments,
		stripe:      conf.Stripe,
		paypal:      conf.PayPal,
		validator:   validator.New(),
	}
}

// Start starts the API HTTP server (non blocking).
func (a *API) Start() {
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", a.host, a.port), a.initRouter()); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
}

// router creates the router with all the routes and middleware.
func (a *API) initRouter() http.Handler {
	// Create the router with a basic middleware stack
	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Throttle(100))
	r.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	r.Use(middleware.Timeout(45 * time.Second))

	// user routes
	r.Group(func(r chi.Router) {
		// seek, verify and validate JWT tokens
		r.Use(jwtauth.Verifier(a.auth))
		// handle valid JWT tokens
		r.Use(a.authenticator)
		// partner ad of the user
		log.Infow("new route", "method", "GET", "path", partnerAdEndpoint)
		r.Get(partnerAdEndpoint, a.partnerAdHandler)
		log.Infow("new route", "method", "PUT", "path", partnerAdEndpoint)
		r.Put(partnerAdEndpoint, a.setPartnerAdHandler)
		// price of a booking
		log.Infow("new route", "method", "GET", "path", partnerQuoteEndpoint)
		r.Get(partnerQuoteEndpoint, a.partnerQuoteHandler)
		// book a slot
		log.Infow("new route", "method", "POST", "path", partnerBookingsEndpoint)
		r.Post(partnerBookingsEndpoint, a.createBookingHandler)
		log.Infow("new route", "method", "GET", "path", partnerBookingsEndpoint)
		r.Get(partnerBookingsEndpoint, a.bookingsHandler)
		log.Infow("new route", "method", "POST", "path", partnerBookingCheckoutEndpoint)
		r.Post(partnerBookingCheckoutEndpoint, a.bookingCheckoutHandler)
		log.Infow("new route", "method", "POST", "path", partnerBookingCancelEndpoint)
		r.Post(partnerBookingCancelEndpoint, a.cancelBookingHandler)
		// shop orders
		log.Infow("new route", "method", "POST", "path", shopOrdersEndpoint)
		r.Post(shopOrdersEndpoint, a.createOrderHandler)
		log.Infow("new route", "method", "GET", "path", shopOrdersEndpoint)
		r.Get(shopOrdersEndpoint, a.ordersHandler)
		log.Infow("new route", "method", "POST", "path", shopOrderCheckoutEndpoint)
		r.Post(shopOrderCheckoutEndpoint, a.orderCheckoutHandler)
		// payment confirmations
		log.Infow("new route", "method", "GET", "path", stripeConfirmEndpoint)
		r.Get(stripeConfirmEndpoint, a.stripeConfirmHandler)
		log.Infow("new route", "method", "POST", "path", paypalCaptureEndpoint)
		r.Post(paypalCaptureEndpoint, a.paypalCaptureHandler)
	})

	// admin routes
	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(a.auth))
		r.Use(a.authenticator)
		r.Use(a.adminOnly)
		log.Infow("new route", "method", "GET", "path", adminAdsEndpoint)
		r.Get(adminAdsEndpoint, a.adminAdsHandler)
		log.Infow("new route", "method", "POST", "path", adminAdReviewEndpoint)
		r.Post(adminAdReviewEndpoint, a.reviewAdHandler)
		log.Infow("new route", "method", "GET", "path", adminBookingsEndpoint)
		r.Get(adminBookingsEndpoint, a.adminBookingsHandler)
		log.Infow("new route", "method", "POST", "path", adminBookingsEndpoint)
		r.Post(adminBookingsEndpoint, a.grantBookingHandler)
		log.Infow("new route", "method", "POST", "path", adminBookingCancelEndpoint)
		r.Post(adminBookingCancelEndpoint, a.adminCancelBookingHandler)
		log.Infow("new route", "method", "GET", "path", adminProductsEndpoint)
		r.Get(adminProductsEndpoint, a.adminProductsHandler)
		log.Infow("new route", "method", "POST", "path", adminProductsEndpoint)
		r.Post(adminProductsEndpoint, a.createProductHandler)
		log.Infow("new route", "method", "PUT", "path", adminProductEndpoint)
		r.Put(adminProductEndpoint, a.updateProductHandler)
		log.Infow("new route", "method", "GET", "path", adminOrdersEndpoint)
		r.Get(adminOrdersEndpoint, a.adminOrdersHandler)
		log.Infow("new route", "method", "GET", "path", adminDeliveriesEndpoint)
		r.Get(adminDeliveriesEndpoint, a.adminDeliveriesHandler)
		log.Infow("new route", "method", "POST", "path", adminDeliveryRetryEndpoint)
		r.Post(adminDeliveryRetryEndpoint, a.retryDeliveryHandler)
	})

	// delivery worker routes
	r.Group(func(r chi.Router) {
		r.Use(a.workerOnly)
		log.Infow("new route", "method", "GET", "path", deliveriesNextEndpoint)
		r.Get(deliveriesNextEndpoint, a.nextDeliveryHandler)
		log.Infow("new route", "method", "POST", "path", deliveryCompleteEndpoint)
		r.Post(deliveryCompleteEndpoint, a.completeDeliveryHandler)
		log.Infow("new route", "method", "POST", "path", deliveryFailEndpoint)
		r.Post(deliveryFailEndpoint, a.failDeliveryHandler)
	})

	// Public routes
	r.Group(func(r chi.Router) {
		r.Get(pingEndpoint, func(w http.ResponseWriter, _ *http.Request) {
			if _, err := w.Write([]byte(".")); err != nil {
				log.Warnw("failed to write ping response", "error", err)
			}
		})
		log.Infow("new route", "method", "GET", "path", metricsEndpoint)
		r.Method(http.MethodGet, metricsEndpoint, metrics.Handler())
		// partner board
		log.Infow("new route", "method", "GET", "path", partnerSlotsEndpoint)
		r.Get(partnerSlotsEndpoint, a.partnerSlotsHandler)
		// shop catalog
		log.Infow("new route", "method", "GET", "path", shopProductsEndpoint)
		r.Get(shopProductsEndpoint, a.productsHandler)
		// handle stripe webhook
		log.Infow("new route", "method", "POST", "path", stripeWebhookEndpoint)
		r.Post(stripeWebhookEndpoint, a.stripeWebhookHandler)
	})
	a.router = r
	return r
}
