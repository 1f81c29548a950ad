package server

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zignal/zignalapi/internal/config"
	"github.com/zignal/zignalapi/internal/db/models"
	"github.com/zignal/zignalapi/internal/services/usersync"
)

func TestAdminListPackages(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	member, memberCookie := ts.user(t, "alice@example.com", nil)
	_, admin := ts.user(t, "boss@example.com", nil)

	empty := ts.do(t, http.MethodGet, "/api/admin/packages", nil, withCookie(admin))
	require.Equal(t, http.StatusOK, empty.Status, empty.Body)
	assert.Empty(t, empty.Body["data"])

	starter := &models.Package{Name: "Starter", Price: 19, DurationDays: 30, Active: true}
	require.NoError(t, ts.packages.Create(ctx, starter))
	vip := &models.Package{Name: "VIP", Price: 99, Currency: "EUR", DurationDays: 90, Features: models.StringList{"vip chat"}, Active: true}
	require.NoError(t, ts.packages.Create(ctx, vip))
	require.NoError(t, ts.packages.CreateSubscription(ctx, &models.Subscription{ProfileID: member.ID, PackageID: vip.ID}))

	t.Run("members are forbidden", func(t *testing.T) {
		res := ts.do(t, http.MethodGet, "/api/admin/packages", nil, withCookie(memberCookie))
		assert.Equal(t, http.StatusForbidden, res.Status)
	})

	res := ts.do(t, http.MethodGet, "/api/admin/packages", nil, withCookie(admin))
	require.Equal(t, http.StatusOK, res.Status, res.Body)
	items, ok := res.Body["data"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)

	first := items[0].(map[string]any)
	assert.Equal(t, "VIP", first["name"])
	assert.Equal(t, "EUR", first["currency"])
	assert.Equal(t, float64(1), first["subscriberCount"])
	assert.Equal(t, []any{"vip chat"}, first["features"])

	second := items[1].(map[string]any)
	assert.Equal(t, "Starter", second["name"])
	assert.Equal(t, float64(0), second["subscriberCount"])
}

func TestRateLimitedLogin(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{
			Enabled: true,
			Store:   "memory",
			API:     config.RateLimitRule{Requests: 100, Window: time.Minute},
			Login:   config.RateLimitRule{Requests: 2, Window: 15 * time.Minute},
			Admin:   config.RateLimitRule{Requests: 100, Window: time.Minute},
		}
	})
	ts.user(t, "alice@example.com", nil)
	creds := map[string]any{"email": "alice@example.com", "password": "nope-nope"}

	for i := range 2 {
		res := ts.do(t, http.MethodPost, "/api/auth/login", creds)
		require.Equal(t, http.StatusUnauthorized, res.Status, "attempt %d", i+1)
		assert.Equal(t, strconv.Itoa(1-i), res.Header.Get("X-RateLimit-Remaining"))
	}

	res := ts.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": "alice@example.com", "password": "correct-horse"})
	assert.Equal(t, http.StatusTooManyRequests, res.Status)
	assert.Equal(t, "Too many requests. Please try again later.", res.Body["error"])
	retry, err := strconv.Atoi(res.Header.Get("Retry-After"))
	require.NoError(t, err)
	assert.Positive(t, retry)

	t.Run("other routes keep their own budget", func(t *testing.T) {
		news := ts.do(t, http.MethodGet, "/api/news", nil)
		assert.Equal(t, http.StatusOK, news.Status)
		assert.Equal(t, "100", news.Header.Get("X-RateLimit-Limit"))
	})
}

func TestRateLimitDisabledByDefault(t *testing.T) {
	ts := newTestServer(t)
	for range 10 {
		res := ts.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": "x@example.com", "password": "nope-nope"})
		require.Equal(t, http.StatusUnauthorized, res.Status)
		assert.Empty(t, res.Header.Get("X-RateLimit-Limit"))
	}
}

func signedDelivery(t *testing.T, secret, id, body string) func(*http.Request) {
	t.Helper()
	v, err := usersync.NewVerifier(secret)
	require.NoError(t, err)
	now := time.Now()
	sig := v.Sign(id, now, []byte(body))
	return func(r *http.Request) {
		r.Header.Set("svix-id", id)
		r.Header.Set("svix-timestamp", strconv.FormatInt(now.Unix(), 10))
		r.Header.Set("svix-signature", "v1,"+sig)
	}
}

func TestIdentityWebhook(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	created := `{"type":"user.created","data":{"id":"user_2abc","first_name":"Jane","last_name":"Doe",` +
		`"email_addresses":[{"email_address":"Jane@Example.com"}],"image_url":"https://img.example.com/jane.png"}}`
	res := ts.do(t, http.MethodPost, "/api/webhooks/identity", created, signedDelivery(t, testIdentitySecret, "msg_1", created))
	require.Equal(t, http.StatusOK, res.Status, res.Body)
	assert.Equal(t, map[string]any{"received": true, "event": "user.created", "handled": true}, res.data())

	profile, err := ts.profiles.GetBySubject(ctx, "user_2abc")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", profile.Email)
	assert.Equal(t, "Jane Doe", profile.Name)
	require.NotNil(t, profile.AvatarURL)
	assert.Equal(t, "https://img.example.com/jane.png", *profile.AvatarURL)

	updated := `{"type":"user.updated","data":{"id":"user_2abc","first_name":"Janet","last_name":"Doe",` +
		`"email_addresses":[{"email_address":"jane@example.com"}],"public_metadata":{"isAdmin":true}}}`
	res = ts.do(t, http.MethodPost, "/api/webhooks/identity", updated, signedDelivery(t, testIdentitySecret, "msg_2", updated))
	require.Equal(t, http.StatusOK, res.Status, res.Body)

	profile, err = ts.profiles.GetBySubject(ctx, "user_2abc")
	require.NoError(t, err)
	assert.Equal(t, "Janet Doe", profile.Name)
	assert.Equal(t, "admin", profile.Metadata["role"])
	assert.Nil(t, profile.AvatarURL)

	deleted := `{"type":"user.deleted","data":{"id":"user_2abc"}}`
	res = ts.do(t, http.MethodPost, "/api/webhooks/identity", deleted, signedDelivery(t, testIdentitySecret, "msg_3", deleted))
	require.Equal(t, http.StatusOK, res.Status, res.Body)
	profile, err = ts.profiles.GetBySubject(ctx, "user_2abc")
	require.NoError(t, err)
	assert.True(t, profile.Disabled())

	t.Run("unknown event is acknowledged", func(t *testing.T) {
		body := `{"type":"session.created","data":{"id":"user_2abc"}}`
		res := ts.do(t, http.MethodPost, "/api/webhooks/identity", body, signedDelivery(t, testIdentitySecret, "msg_4", body))
		require.Equal(t, http.StatusOK, res.Status)
		assert.Equal(t, false, res.data()["handled"])
	})

	t.Run("missing signature headers", func(t *testing.T) {
		res := ts.do(t, http.MethodPost, "/api/webhooks/identity", deleted)
		assert.Equal(t, http.StatusBadRequest, res.Status)
	})

	t.Run("signed with another secret", func(t *testing.T) {
		res := ts.do(t, http.MethodPost, "/api/webhooks/identity", deleted, signedDelivery(t, "some-other-secret", "msg_5", deleted))
		assert.Equal(t, http.StatusUnauthorized, res.Status)
	})

	t.Run("invalid json", func(t *testing.T) {
		body := `{"type":`
		res := ts.do(t, http.MethodPost, "/api/webhooks/identity", body, signedDelivery(t, testIdentitySecret, "msg_6", body))
		assert.Equal(t, http.StatusBadRequest, res.Status)
	})
}

func TestIdentityWebhook_NotConfigured(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.IdentityWebhookSecret = "" })
	body := `{"type":"user.created","data":{"id":"user_1"}}`
	res := ts.do(t, http.MethodPost, "/api/webhooks/identity", body, signedDelivery(t, testIdentitySecret, "msg_1", body))
	assert.Equal(t, http.StatusNotImplemented, res.Status)
}
