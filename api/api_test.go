package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	stripeapi "github.com/stripe/stripe-go/v81"
	"github.com/voxelhub/community-backend/db"
	"github.com/voxelhub/community-backend/metrics"
	"github.com/voxelhub/community-backend/notifications"
	"github.com/voxelhub/community-backend/partners"
	"github.com/voxelhub/community-backend/payments"
	"github.com/voxelhub/community-backend/shop"
	"github.com/voxelhub/community-backend/stripe"
	"github.com/voxelhub/community-backend/test"
)

const (
	testSecret        = "super-secret"
	testWorkerToken   = "worker-token"
	testWebhookSecret = "whsec_api_test"

	testUserID   = "user-1"
	testOtherID  = "user-2"
	testAdminID  = "admin-1"
	testMCName   = "Alex_42"
	testWorkerID = "lobby-1"
)

var (
	testDB      *db.MongoStorage
	testAPI     *API
	testServer  *httptest.Server
	testGateway *fakeStripe
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	dbContainer, err := test.StartMongoContainer(ctx)
	if err != nil {
		panic(fmt.Sprintf("failed to start MongoDB container: %v", err))
	}
	mongoURI, err := dbContainer.Endpoint(ctx, "mongodb")
	if err != nil {
		panic(fmt.Sprintf("failed to get MongoDB endpoint: %v", err))
	}
	testDB, err = db.New(mongoURI, test.RandomDatabaseName())
	if err != nil {
		panic(fmt.Sprintf("failed to create new MongoDB connection: %v", err))
	}

	ledger, err := partners.New(testDB, partners.DefaultConfig(), silent{})
	if err != nil {
		panic(err)
	}
	shopService, err := shop.New(testDB, shop.DefaultConfig(), silent{})
	if err != nil {
		panic(err)
	}
	reconciler := payments.NewReconciler(ledger, shopService)
	testGateway = newFakeStripe()
	storeCtx, cancel := context.WithCancel(ctx)
	stripeService, err := stripe.NewService(&stripe.Config{
		APIKey:        "sk_test_key",
		WebhookSecret: testWebhookSecret,
		SuccessURL:    "https://voxel.test/checkout/success",
		CancelURL:     "https://voxel.test/checkout/cancel",
	}, testGateway, stripe.NewMemoryEventStore(storeCtx, time.Hour), reconciler)
	if err != nil {
		panic(err)
	}
	metrics.MustRegister()

	// PayPal is left unconfigured
	testAPI = New(&Config{
		Secret:      testSecret,
		WorkerToken: testWorkerToken,
		Ledger:      ledger,
		Shop:        shopService,
		Payments:    reconciler,
		Stripe:      stripeService,
	})
	testServer = httptest.NewServer(testAPI.initRouter())

	code := m.Run()

	testServer.Close()
	cancel()
	testDB.Close()
	if err := dbContainer.Terminate(ctx); err != nil {
		panic(fmt.Sprintf("failed to stop MongoDB container: %v", err))
	}
	os.Exit(code)
}

type silent struct{}

func (silent) New(any) error { return nil }

func (silent) SendNotification(context.Context, *notifications.Notification) error { return nil }

// fakeStripe creates checkout sessions that are paid on demand.
type fakeStripe struct {
	mu       sync.Mutex
	sessions map[string]*stripeapi.CheckoutSession
	byKey    map[string]*stripeapi.CheckoutSession
}

func newFakeStripe() *fakeStripe {
	return &fakeStripe{
		sessions: make(map[string]*stripeapi.CheckoutSession),
		byKey:    make(map[string]*stripeapi.CheckoutSession),
	}
}

func (f *fakeStripe) NewCheckoutSession(params *stripeapi.CheckoutSessionParams) (*stripeapi.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := stripeapi.StringValue(params.IdempotencyKey)
	if session, ok := f.byKey[key]; ok {
		return session, nil
	}
	id := fmt.Sprintf("cs_api_%d", len(f.sessions)+1)
	session := &stripeapi.CheckoutSession{
		ID:            id,
		URL:           "https://checkout.stripe.test/" + id,
		ExpiresAt:     stripeapi.Int64Value(params.ExpiresAt),
		PaymentStatus: stripeapi.CheckoutSessionPaymentStatusUnpaid,
	}
	f.sessions[id] = session
	f.byKey[key] = session
	return session, nil
}

func (f *fakeStripe) CheckoutSession(sessionID string) (*stripeapi.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, stripe.NewStripeError(stripe.ErrAPICallFailed.Code, "no such checkout session", nil)
	}
	return session, nil
}

func (f *fakeStripe) pay(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session := f.sessions[sessionID]
	session.PaymentStatus = stripeapi.CheckoutSessionPaymentStatusPaid
	session.PaymentIntent = &stripeapi.PaymentIntent{ID: "pi_" + sessionID}
}

// resetDB empties the database once the test is done.
func resetDB(c *qt.C) {
	c.Cleanup(func() { c.Assert(testDB.Reset(), qt.IsNil) })
}

// testToken returns a JWT token as issued by the web front.
func testToken(c *qt.C, userID, role, minecraftName string) string {
	claims := map[string]any{"userId": userID}
	if role != "" {
		claims["role"] = role
	}
	if minecraftName != "" {
		claims["minecraftName"] = minecraftName
	}
	_, token, err := testAPI.auth.Encode(claims)
	c.Assert(err, qt.IsNil)
	return token
}

// testRequest sends a request to the test server with the bearer token, if
// any, and returns the response body and status code.
func testRequest(c *qt.C, method, token string, body any, path string) ([]byte, int) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(body)
		c.Assert(err, qt.IsNil)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, testServer.URL+path, reader)
	c.Assert(err, qt.IsNil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	c.Assert(err, qt.IsNil)
	return data, resp.StatusCode
}

// decode unmarshals a response body into dst.
func decode(c *qt.C, data []byte, dst any) {
	c.Assert(json.Unmarshal(data, dst), qt.IsNil, qt.Commentf("response: %s", data))
}

func TestPing(t *testing.T) {
	c := qt.New(t)
	resp, code := testRequest(c, http.MethodGet, "", nil, pingEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)
	c.Assert(string(resp), qt.Equals, ".")
}

func TestMetricsEndpoint(t *testing.T) {
	c := qt.New(t)
	resp, code := testRequest(c, http.MethodGet, "", nil, metricsEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)
	c.Assert(string(resp), qt.Contains, "go_goroutines")
}

func TestAuthentication(t *testing.T) {
	c := qt.New(t)

	// no token
	resp, code := testRequest(c, http.MethodGet, "", nil, partnerAdEndpoint)
	c.Assert(code, qt.Equals, http.StatusUnauthorized)
	c.Assert(string(resp), qt.Contains, "40001")

	// token signed with another secret
	resp, code = testRequest(c, http.MethodGet, "eyJhbGciOiJIUzI1NiJ9.eyJ1c2VySWQiOiJ4In0.bad", nil, partnerAdEndpoint)
	c.Assert(code, qt.Equals, http.StatusUnauthorized)
	c.Assert(string(resp), qt.Contains, "40001")

	// token without user
	_, noUser, err := testAPI.auth.Encode(map[string]any{"role": "admin"})
	c.Assert(err, qt.IsNil)
	_, code = testRequest(c, http.MethodGet, noUser, nil, partnerAdEndpoint)
	c.Assert(code, qt.Equals, http.StatusUnauthorized)

	// admin routes
	resp, code = testRequest(c, http.MethodGet, testToken(c, testUserID, "", ""), nil, adminAdsEndpoint)
	c.Assert(code, qt.Equals, http.StatusForbidden)
	c.Assert(string(resp), qt.Contains, "40002")
	_, code = testRequest(c, http.MethodGet, testToken(c, testAdminID, "admin", ""), nil, adminAdsEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)

	// worker routes do not accept user tokens
	resp, code = testRequest(c, http.MethodGet, testToken(c, testAdminID, "admin", ""), nil,
		deliveriesNextEndpoint+"?worker="+testWorkerID)
	c.Assert(code, qt.Equals, http.StatusUnauthorized)
	c.Assert(string(resp), qt.Contains, "40003")
}
