package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ManuelReschke/OpsLedger/app/controllers"
	"github.com/ManuelReschke/OpsLedger/app/models"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/billing"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/ratelimit"
)

const testToken = "internal-token"

var errNoOrg = errors.New("no such organization")

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testToken), bcrypt.MinCost)
	require.NoError(t, err)

	end := time.Now().Add(-time.Hour)
	orgs := map[string]*models.Organization{
		"org_active":    {ID: "org_active", Name: "Active", SubscriptionStatus: models.SubscriptionStatusActive, PlanType: models.PlanTypePro},
		"org_cancelled": {ID: "org_cancelled", Name: "Gone", SubscriptionStatus: models.SubscriptionStatusCancelled, SubscriptionEndDate: &end},
	}

	app := fiber.New()
	InstallRouter(app, Dependencies{
		Billing: controllers.NewBillingController(nil, &billing.Config{DefaultCurrency: "usd", WebhookTimeout: time.Second}, nil, nil),
		Organizations: func(_ context.Context, id string) (*models.Organization, error) {
			if org, ok := orgs[id]; ok {
				return org, nil
			}
			return nil, errNoOrg
		},
		OrgNotFound:       errNoOrg,
		InternalTokenHash: string(hash),
		APIRateLimit:      ratelimit.Config{Max: 100, Expiration: time.Minute},
	})
	return app
}

func TestRoutes(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"webhook without secret", http.MethodPost, "/webhooks/stripe", "", fiber.StatusServiceUnavailable},
		{"api root", http.MethodGet, "/api/", "", fiber.StatusOK},
		{"billing without token", http.MethodGet, "/api/v1/organizations/org_active/billing", "", fiber.StatusUnauthorized},
		{"billing wrong token", http.MethodGet, "/api/v1/organizations/org_active/billing", "nope", fiber.StatusUnauthorized},
		{"billing", http.MethodGet, "/api/v1/organizations/org_active/billing", testToken, fiber.StatusOK},
		{"billing unknown org", http.MethodGet, "/api/v1/organizations/org_x/billing", testToken, fiber.StatusNotFound},
		{"access active", http.MethodGet, "/api/v1/organizations/org_active/access", testToken, fiber.StatusOK},
		{"access cancelled", http.MethodGet, "/api/v1/organizations/org_cancelled/access", testToken, fiber.StatusPaymentRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("X-API-Key", tt.token)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestOpenAPIDocument(t *testing.T) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile("../../../public/docs/v1/openapi.yml")
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))

	for _, path := range []string{
		"/webhooks/stripe",
		"/api/v1/organizations/{orgID}/billing",
		"/api/v1/organizations/{orgID}/access",
	} {
		assert.NotNil(t, doc.Paths.Find(path), path)
	}
}
