package api

const (
	// ping route
	pingEndpoint = "/ping"
	// GET /metrics to scrape the prometheus metrics
	metricsEndpoint = "/metrics"

	// partner routes

	// GET /partners/slots to get the partner board
	partnerSlotsEndpoint = "/partners/slots"
	// GET /partners/ad to get the ad of the user
	// PUT /partners/ad to submit or edit the ad of the user
	partnerAdEndpoint = "/partners/ad"
	// GET /partners/quote?days= to get the price of a booking
	partnerQuoteEndpoint = "/partners/quote"
	// POST /partners/bookings to book a slot
	// GET /partners/bookings to list the bookings of the user
	partnerBookingsEndpoint = "/partners/bookings"
	// POST /partners/bookings/{bookingID}/checkout to get the checkout of a pending booking
	partnerBookingCheckoutEndpoint = "/partners/bookings/{bookingID}/checkout"
	// POST /partners/bookings/{bookingID}/cancel to cancel a pending booking
	partnerBookingCancelEndpoint = "/partners/bookings/{bookingID}/cancel"

	// shop routes

	// GET /shop/products to list the active products
	shopProductsEndpoint = "/shop/products"
	// POST /shop/orders to place an order
	// GET /shop/orders to list the orders of the user
	shopOrdersEndpoint = "/shop/orders"
	// POST /shop/orders/{orderID}/checkout to get the checkout of a pending order
	shopOrderCheckoutEndpoint = "/shop/orders/{orderID}/checkout"

	// payment routes

	// POST /payments/stripe/webhook to receive the Stripe events
	stripeWebhookEndpoint = "/payments/stripe/webhook"
	// GET /payments/stripe/confirm/{sessionID} to confirm a paid checkout session
	stripeConfirmEndpoint = "/payments/stripe/confirm/{sessionID}"
	// POST /payments/paypal/capture to capture an approved PayPal order
	paypalCaptureEndpoint = "/payments/paypal/capture"

	// admin routes

	// GET /admin/partners/ads?status= to list the partner ads
	adminAdsEndpoint = "/admin/partners/ads"
	// POST /admin/partners/ads/{adID}/review to approve or reject an ad
	adminAdReviewEndpoint = "/admin/partners/ads/{adID}/review"
	// GET /admin/partners/bookings?status= to list every booking
	// POST /admin/partners/bookings to grant a slot for free
	adminBookingsEndpoint = "/admin/partners/bookings"
	// POST /admin/partners/bookings/{bookingID}/cancel to cancel any booking
	adminBookingCancelEndpoint = "/admin/partners/bookings/{bookingID}/cancel"
	// GET /admin/shop/products to list every product
	// POST /admin/shop/products to create a product
	adminProductsEndpoint = "/admin/shop/products"
	// PUT /admin/shop/products/{productID} to update a product
	adminProductEndpoint = "/admin/shop/products/{productID}"
	// GET /admin/shop/orders?status= to list every order
	adminOrdersEndpoint = "/admin/shop/orders"
	// GET /admin/shop/deliveries?status= to list the deliveries
	adminDeliveriesEndpoint = "/admin/shop/deliveries"
	// POST /admin/shop/deliveries/{deliveryID}/retry to requeue a failed delivery
	adminDeliveryRetryEndpoint = "/admin/shop/deliveries/{deliveryID}/retry"

	// worker routes

	// GET /deliveries/next?worker= to claim the next delivery
	deliveriesNextEndpoint = "/deliveries/next"
	// POST /deliveries/{deliveryID}/complete to mark a delivery as done
	deliveryCompleteEndpoint = "/deliveries/{deliveryID}/complete"
	// POST /deliveries/{deliveryID}/fail to report a failed delivery
	deliveryFailEndpoint = "/deliveries/{deliveryID}/fail"
)
