package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/voxelhub/community-backend/api"
	"github.com/voxelhub/community-backend/db"
	"github.com/voxelhub/community-backend/metrics"
	"github.com/voxelhub/community-backend/notifications"
	"github.com/voxelhub/community-backend/notifications/discord"
	"github.com/voxelhub/community-backend/partners"
	"github.com/voxelhub/community-backend/payments"
	"github.com/voxelhub/community-backend/paypal"
	"github.com/voxelhub/community-backend/shop"
	"github.com/voxelhub/community-backend/stripe"
	"go.vocdoni.io/dvote/log"
)

func main() {
	// a .env file is optional, flags and the environment take precedence
	_ = godotenv.Load()

	partnerDefaults := partners.DefaultConfig()
	shopDefaults := shop.DefaultConfig()
	// define flags
	flag.StringP("host", "h", "0.0.0.0", "listen address")
	flag.IntP("port", "p", 8080, "listen port")
	flag.StringP("secret", "s", "", "secret of the JWT tokens issued by the web front")
	flag.String("workerToken", "", "bearer token of the in-game delivery workers")
	flag.String("logLevel", "info", "log level (debug, info, warn, error)")
	flag.String("mongo-url", "", "The URL of the MongoDB server")
	flag.String("mongo-db", "community-backend", "The name of the MongoDB database")
	flag.String("redisURL", "", "Redis URL used to share the processed Stripe events between replicas")
	// partner slots
	flag.Int("partnerSlots", partnerDefaults.Slots, "number of partner slots")
	flag.Int64("partnerDayPrice", partnerDefaults.DayPrice, "price of a partner slot per day, in minor units")
	flag.String("partnerCurrency", partnerDefaults.Currency, "currency of the partner slots")
	flag.Int("partnerMinDays", partnerDefaults.MinDays, "shortest partner booking, in days")
	flag.Int("partnerMaxDays", partnerDefaults.MaxDays, "longest partner booking, in days")
	flag.Duration("partnerPendingTTL", partnerDefaults.PendingTTL, "how long an unpaid booking holds its slot")
	flag.Duration("sweepInterval", time.Minute, "interval of the partner booking sweeper")
	// shop deliveries
	flag.Int("deliveryMaxAttempts", shopDefaults.MaxAttempts, "claims of a delivery before it fails")
	flag.Duration("deliveryLease", shopDefaults.Lease, "how long a claimed delivery is locked by its worker")
	// stripe
	flag.String("stripeApiSecret", "", "Stripe API secret")
	flag.String("stripeWebhookSecret", "", "Stripe Webhook secret")
	flag.Duration("stripeSessionTTL", 40*time.Minute, "how long a Stripe checkout session can be paid")
	// paypal
	flag.String("paypalClientID", "", "PayPal REST client ID")
	flag.String("paypalSecret", "", "PayPal REST secret")
	flag.Bool("paypalSandbox", true, "use the PayPal sandbox")
	// return pages
	flag.String("checkoutSuccessURL", "", "page the buyer is sent to after paying")
	flag.String("checkoutCancelURL", "", "page the buyer is sent to after giving up")
	// notifications
	flag.String("discordWebhookURL", "", "Discord webhook URL for staff notifications")
	// parse flags
	flag.Parse()
	// initialize Viper
	viper.SetEnvPrefix("VOXEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := viper.BindPFlags(flag.CommandLine); err != nil {
		panic(err)
	}
	viper.AutomaticEnv()

	log.Init(viper.GetString("logLevel"), "stdout", nil)
	// read the configuration
	host := viper.GetString("host")
	port := viper.GetInt("port")
	secret := viper.GetString("secret")
	if secret == "" {
		log.Fatal("secret is required")
	}
	workerToken := viper.GetString("workerToken")
	if workerToken == "" {
		log.Warn("no worker token defined, the delivery endpoints are disabled")
	}
	mongoURL := viper.GetString("mongo-url")
	mongoDB := viper.GetString("mongo-db")
	successURL := viper.GetString("checkoutSuccessURL")
	cancelURL := viper.GetString("checkoutCancelURL")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// initialize the MongoDB database
	database, err := db.New(mongoURL, mongoDB)
	if err != nil {
		log.Fatalf("could not create the MongoDB database: %v", err)
	}
	defer database.Close()

	// staff notifications
	var notifier notifications.NotificationService
	if webhookURL := viper.GetString("discordWebhookURL"); webhookURL != "" {
		webhook := &discord.Webhook{}
		if err := webhook.New(&discord.Config{WebhookURL: webhookURL, Username: "Voxel backend"}); err != nil {
			log.Fatalf("could not create the Discord notifier: %v", err)
		}
		notifier = webhook
		log.Infow("discord notifications enabled")
	}

	ledger, err := partners.New(database, partners.Config{
		Slots:      viper.GetInt("partnerSlots"),
		DayPrice:   viper.GetInt64("partnerDayPrice"),
		Currency:   viper.GetString("partnerCurrency"),
		MinDays:    viper.GetInt("partnerMinDays"),
		MaxDays:    viper.GetInt("partnerMaxDays"),
		PendingTTL: viper.GetDuration("partnerPendingTTL"),
	}, notifier)
	if err != nil {
		log.Fatalf("could not create the partner ledger: %v", err)
	}
	ledger.StartSweeper(ctx, viper.GetDuration("sweepInterval"))

	shopService, err := shop.New(database, shop.Config{
		MaxAttempts: viper.GetInt("deliveryMaxAttempts"),
		Lease:       viper.GetDuration("deliveryLease"),
		MaxItems:    shopDefaults.MaxItems,
	}, notifier)
	if err != nil {
		log.Fatalf("could not create the shop: %v", err)
	}
	reconciler := payments.NewReconciler(ledger, shopService)

	// stripe is enabled when its secrets are provided
	var stripeService *stripe.Service
	if apiSecret := viper.GetString("stripeApiSecret"); apiSecret != "" {
		var events stripe.EventStore
		if redisURL := viper.GetString("redisURL"); redisURL != "" {
			opts, err := redis.ParseURL(redisURL)
			if err != nil {
				log.Fatalf("invalid redis URL: %v", err)
			}
			client := redis.NewClient(opts)
			if err := client.Ping(ctx).Err(); err != nil {
				log.Fatalf("could not connect to redis: %v", err)
			}
			defer func() {
				if err := client.Close(); err != nil {
					log.Warnw("could not close the redis client", "error", err)
				}
			}()
			events = stripe.NewRedisEventStore(client, "voxel:stripe:events:", 0)
		} else {
			events = stripe.NewMemoryEventStore(ctx, 0)
		}
		stripeService, err = stripe.NewService(&stripe.Config{
			APIKey:        apiSecret,
			WebhookSecret: viper.GetString("stripeWebhookSecret"),
			SuccessURL:    successURL,
			CancelURL:     cancelURL,
			SessionTTL:    viper.GetDuration("stripeSessionTTL"),
		}, stripe.NewClient(apiSecret), events, reconciler)
		if err != nil {
			log.Fatalf("could not create the stripe service: %v", err)
		}
		log.Infow("stripe payments enabled")
	}

	// paypal is enabled when its credentials are provided
	var paypalService *paypal.Service
	if clientID := viper.GetString("paypalClientID"); clientID != "" {
		conf := &paypal.Config{
			ClientID:  clientID,
			Secret:    viper.GetString("paypalSecret"),
			Sandbox:   viper.GetBool("paypalSandbox"),
			ReturnURL: successURL,
			CancelURL: cancelURL,
			BrandName: "Voxel",
		}
		client, err := paypal.NewClient(ctx, conf)
		if err != nil {
			log.Fatalf("could not create the paypal client: %v", err)
		}
		paypalService, err = paypal.NewService(conf, client, reconciler)
		if err != nil {
			log.Fatalf("could not create the paypal service: %v", err)
		}
		log.Infow("paypal payments enabled", "sandbox", conf.Sandbox)
	}

	metrics.MustRegister()
	// create the local API server
	api.New(&api.Config{
		Host:        host,
		Port:        port,
		Secret:      secret,
		WorkerToken: workerToken,
		Ledger:      ledger,
		Shop:        shopService,
		Payments:    reconciler,
		Stripe:      stripeService,
		PayPal:      paypalService,
	}).Start()
	// wait forever, as the server is running in a goroutine
	log.Infow("server started", "host", host, "port", port)
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
