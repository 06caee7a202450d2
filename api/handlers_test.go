/*
handlers_test.go - HTTP-level tests for the API

Tests for:
- Login and session enforcement
- Portfolio CRUD and lease lifecycle
- Billing run (cron endpoint) and idempotency
- Payment recording with oldest-first settlement
- Arrears and dashboard reporting
- Contract field extraction
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/proyectohouse/rent-engine/cache"
	"github.com/proyectohouse/rent-engine/extract"
	"github.com/proyectohouse/rent-engine/store/sqlite"
)

const (
	testOrgID    = "org-test"
	testUserID   = "user-test"
	testPassword = "secret123"
)

type testEnv struct {
	store  *sqlite.Store
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = store.SaveUser(context.Background(), sqlite.User{
		ID:           testUserID,
		OrgID:        testOrgID,
		Name:         "Ana Admin",
		Email:        "ana@example.com",
		PasswordHash: string(hash),
		Role:         "ADMIN",
	})
	require.NoError(t, err)

	handler := NewHandler(store, cache.NewMemory(), zerolog.Nop(), "cron-secret")
	return &testEnv{store: store, router: NewRouter(handler, nil)}
}

// do issues a request with the test session cookie attached.
func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := e.request(t, method, path, body)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: testOrgID + "|" + testUserID})
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) request(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

// setupLease creates a property, unit, tenant, and active lease, and
// returns the lease ID.
func (e *testEnv) setupLease(t *testing.T, rent float64, dueDay int) string {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/properties", CreatePropertyRequest{Name: "Edificio Centro", Address: "18 de Julio 1234"})
	require.Equal(t, http.StatusCreated, w.Code)
	property := decode[PropertyDTO](t, w)

	w = e.do(t, http.MethodPost, "/api/units", CreateUnitRequest{PropertyID: property.ID, UnitLabel: "Apto 101"})
	require.Equal(t, http.StatusCreated, w.Code)
	unit := decode[UnitDTO](t, w)

	w = e.do(t, http.MethodPost, "/api/tenants", CreateTenantRequest{FullName: "Juan Pérez"})
	require.Equal(t, http.StatusCreated, w.Code)
	tenant := decode[TenantDTO](t, w)

	w = e.do(t, http.MethodPost, "/api/leases", CreateLeaseRequest{
		UnitID:     unit.ID,
		TenantID:   tenant.ID,
		StartDate:  "2025-01-01",
		EndDate:    "2026-12-31",
		RentAmount: rent,
		DueDay:     dueDay,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	lease := decode[LeaseDTO](t, w)
	require.Equal(t, "DRAFT", lease.Status)

	w = e.do(t, http.MethodPost, "/api/leases/"+lease.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	activated := decode[LeaseDTO](t, w)
	require.Equal(t, "ACTIVE", activated.Status)

	return lease.ID
}

// runBilling triggers the cron endpoint for a period.
func (e *testEnv) runBilling(t *testing.T, period string) BillingRunResponse {
	t.Helper()
	req := e.request(t, http.MethodGet, "/api/cron/charges?period="+period, nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return decode[BillingRunResponse](t, w)
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	env := newTestEnv(t)

	// WHEN: Logging in with valid credentials
	req := env.request(t, http.MethodPost, "/api/login", LoginRequest{Email: "ana@example.com", Password: testPassword})
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	// THEN: Session cookie identifies the org and user
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[LoginResponse](t, w)
	assert.Equal(t, testOrgID, resp.OrgID)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.Equal(t, testOrgID+"|"+testUserID, cookies[0].Value)
}

func TestLogin_RejectsBadPassword(t *testing.T) {
	env := newTestEnv(t)

	req := env.request(t, http.MethodPost, "/api/login", LoginRequest{Email: "ana@example.com", Password: "wrong"})
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionRequired(t *testing.T) {
	env := newTestEnv(t)

	// WHEN: Hitting a data endpoint without the session cookie
	req := env.request(t, http.MethodGet, "/api/properties", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	// THEN: 401
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBillingRun_GeneratesAndIsIdempotent(t *testing.T) {
	// GIVEN: Two active leases and one draft
	env := newTestEnv(t)
	env.setupLease(t, 25000, 5)
	env.setupLease(t, 30000, 10)

	w := env.do(t, http.MethodPost, "/api/properties", CreatePropertyRequest{Name: "Anexo", Address: "Colonia 900"})
	require.Equal(t, http.StatusCreated, w.Code)
	property := decode[PropertyDTO](t, w)
	w = env.do(t, http.MethodPost, "/api/units", CreateUnitRequest{PropertyID: property.ID, UnitLabel: "Apto 201"})
	require.Equal(t, http.StatusCreated, w.Code)
	unit := decode[UnitDTO](t, w)
	w = env.do(t, http.MethodPost, "/api/tenants", CreateTenantRequest{FullName: "Pedro Díaz"})
	require.Equal(t, http.StatusCreated, w.Code)
	tenant := decode[TenantDTO](t, w)

	w = env.do(t, http.MethodPost, "/api/leases", CreateLeaseRequest{
		UnitID: unit.ID, TenantID: tenant.ID,
		StartDate: "2025-01-01", EndDate: "2025-12-31",
		RentAmount: 99999, DueDay: 1,
	})
	require.Equal(t, http.StatusCreated, w.Code) // stays DRAFT

	// WHEN: Running billing for a period, twice
	first := env.runBilling(t, "202502")
	second := env.runBilling(t, "202502")

	// THEN: Only the active leases are billed, and only once
	assert.Equal(t, 2, first.ChargesGenerated)
	assert.Equal(t, 0, second.ChargesGenerated)

	w = env.do(t, http.MethodGet, "/api/charges", nil)
	require.Equal(t, http.StatusOK, w.Code)
	charges := decode[[]ChargeDTO](t, w)
	require.Len(t, charges, 2)
	for _, c := range charges {
		assert.Equal(t, "202502", c.Period)
		assert.Equal(t, "RENT", c.Type)
	}
}

func TestBillingRun_RequiresBearerToken(t *testing.T) {
	env := newTestEnv(t)

	req := env.request(t, http.MethodGet, "/api/cron/charges", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = env.request(t, http.MethodGet, "/api/cron/charges", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreatePayment_SettlesOldestChargeFirst(t *testing.T) {
	// GIVEN: A lease with two months of unpaid rent
	env := newTestEnv(t)
	leaseID := env.setupLease(t, 25000, 5)
	env.runBilling(t, "202501")
	env.runBilling(t, "202502")

	// WHEN: Paying one month plus a little extra
	w := env.do(t, http.MethodPost, "/api/payments", CreatePaymentRequest{
		LeaseID: leaseID,
		PaidAt:  "2025-02-20",
		Amount:  30000,
		Method:  "TRANSFER",
	})

	// THEN: January is fully settled, the rest goes to February
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[PaymentResponse](t, w)
	require.Len(t, resp.Allocations, 2)
	assert.Equal(t, 25000.0, resp.Allocations[0].Amount)
	assert.Equal(t, 5000.0, resp.Allocations[1].Amount)
	assert.Equal(t, 0.0, resp.Unapplied)
}

func TestCreatePayment_ReportsOverpaymentAsUnapplied(t *testing.T) {
	env := newTestEnv(t)
	leaseID := env.setupLease(t, 25000, 5)
	env.runBilling(t, "202501")

	w := env.do(t, http.MethodPost, "/api/payments", CreatePaymentRequest{
		LeaseID: leaseID,
		PaidAt:  "2025-01-10",
		Amount:  40000,
		Method:  "CASH",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[PaymentResponse](t, w)
	require.Len(t, resp.Allocations, 1)
	assert.Equal(t, 25000.0, resp.Allocations[0].Amount)
	assert.Equal(t, 15000.0, resp.Unapplied)
}

func TestCreatePayment_RejectsNonPositiveAmount(t *testing.T) {
	env := newTestEnv(t)
	leaseID := env.setupLease(t, 25000, 5)

	w := env.do(t, http.MethodPost, "/api/payments", CreatePaymentRequest{
		LeaseID: leaseID,
		PaidAt:  "2025-01-10",
		Amount:  -100,
		Method:  "CASH",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLeaseArrears_StrictDueDateBoundary(t *testing.T) {
	// GIVEN: One charge due Feb 5, unpaid
	env := newTestEnv(t)
	leaseID := env.setupLease(t, 25000, 5)
	env.runBilling(t, "202502")

	// WHEN/THEN: On the due date itself the lease is not in arrears
	w := env.do(t, http.MethodGet, "/api/leases/"+leaseID+"/arrears?asOf=2025-02-05", nil)
	require.Equal(t, http.StatusOK, w.Code)
	onDueDate := decode[ArrearsDTO](t, w)
	assert.False(t, onDueDate.IsArrears)
	assert.Equal(t, 0.0, onDueDate.TotalOverdue)

	// WHEN/THEN: The day after, it is
	w = env.do(t, http.MethodGet, "/api/leases/"+leaseID+"/arrears?asOf=2025-02-06", nil)
	require.Equal(t, http.StatusOK, w.Code)
	dayAfter := decode[ArrearsDTO](t, w)
	assert.True(t, dayAfter.IsArrears)
	assert.Equal(t, 25000.0, dayAfter.TotalOverdue)
}

func TestLeaseArrears_ClearedByPayment(t *testing.T) {
	env := newTestEnv(t)
	leaseID := env.setupLease(t, 25000, 5)
	env.runBilling(t, "202501")

	w := env.do(t, http.MethodPost, "/api/payments", CreatePaymentRequest{
		LeaseID: leaseID, PaidAt: "2025-01-20", Amount: 25000, Method: "TRANSFER",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/leases/"+leaseID+"/arrears?asOf=2025-03-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[ArrearsDTO](t, w)
	assert.False(t, report.IsArrears)
}

func TestDashboardStats_NetProfitAndCounts(t *testing.T) {
	// GIVEN: A paid month of rent and one expense
	env := newTestEnv(t)
	leaseID := env.setupLease(t, 25000, 5)
	env.runBilling(t, "202501")

	w := env.do(t, http.MethodPost, "/api/payments", CreatePaymentRequest{
		LeaseID: leaseID, PaidAt: "2025-01-10", Amount: 25000, Method: "TRANSFER",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/properties", nil)
	properties := decode[[]PropertyDTO](t, w)
	require.Len(t, properties, 1)

	w = env.do(t, http.MethodPost, "/api/expenses", CreateExpenseRequest{
		PropertyID: properties[0].ID,
		IncurredAt: "2025-01-15",
		Amount:     4000,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// WHEN: Fetching dashboard stats
	w = env.do(t, http.MethodGet, "/api/dashboard/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[DashboardStatsDTO](t, w)

	// THEN: Net profit is allocated rent minus expenses
	assert.Equal(t, 21000.0, stats.NetProfit)
	assert.Equal(t, 1, stats.PropertiesCount)
	assert.Equal(t, 1, stats.TenantsCount)
	assert.Equal(t, 1, stats.ActiveLeasesCount)
	assert.Equal(t, 25000.0, stats.TotalRent)
}

func TestDashboardStats_CacheInvalidatedOnPayment(t *testing.T) {
	env := newTestEnv(t)
	leaseID := env.setupLease(t, 25000, 5)
	env.runBilling(t, "202501")

	// Prime the cache
	w := env.do(t, http.MethodGet, "/api/dashboard/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	before := decode[DashboardStatsDTO](t, w)
	assert.Equal(t, 0.0, before.NetProfit)

	w = env.do(t, http.MethodPost, "/api/payments", CreatePaymentRequest{
		LeaseID: leaseID, PaidAt: "2025-01-10", Amount: 25000, Method: "TRANSFER",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/dashboard/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	after := decode[DashboardStatsDTO](t, w)
	assert.Equal(t, 25000.0, after.NetProfit)
}

func TestLeaseLifecycle_EndStopsBilling(t *testing.T) {
	env := newTestEnv(t)
	leaseID := env.setupLease(t, 25000, 5)

	w := env.do(t, http.MethodPost, "/api/leases/"+leaseID+"/end", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ended := decode[LeaseDTO](t, w)
	assert.Equal(t, "ENDED", ended.Status)

	run := env.runBilling(t, "202503")
	assert.Equal(t, 0, run.ChargesGenerated)
}

func TestCreateCharge_ManualOtherCharge(t *testing.T) {
	env := newTestEnv(t)
	leaseID := env.setupLease(t, 25000, 5)

	w := env.do(t, http.MethodPost, "/api/charges", CreateChargeRequest{
		LeaseID: leaseID,
		Period:  "202501",
		Amount:  3500,
		DueDate: "2025-01-20",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	charge := decode[ChargeDTO](t, w)
	assert.Equal(t, "OTHER", charge.Type)

	// OTHER charges participate in settlement but not in arrears
	w = env.do(t, http.MethodGet, "/api/leases/"+leaseID+"/arrears?asOf=2025-06-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[ArrearsDTO](t, w)
	assert.False(t, report.IsArrears)
}

func TestOrgIsolation(t *testing.T) {
	// GIVEN: Data in the test org and a session for another org
	env := newTestEnv(t)
	env.setupLease(t, 25000, 5)

	req := env.request(t, http.MethodGet, "/api/properties", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "org-other|user-other"})
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	// THEN: The other org sees nothing
	require.Equal(t, http.StatusOK, w.Code)
	properties := decode[[]PropertyDTO](t, w)
	assert.Empty(t, properties)
}

func TestExtractContract_ProposesFields(t *testing.T) {
	env := newTestEnv(t)

	text := fmt.Sprintf("Contrato de arrendamiento. Inquilino: María González, C.I. 4.123.456-7. "+
		"El precio del arrendamiento se fija en $ 32.000 (pesos uruguayos). "+
		"Pagadero del 1 al 10 de cada mes. Garantía: %s.", "Anda")

	w := env.do(t, http.MethodPost, "/api/extract", ExtractRequest{Text: text})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[ExtractResponse](t, w)

	require.NotNil(t, resp.ProposedFields.RentAmount)
	assert.Equal(t, int64(32000), *resp.ProposedFields.RentAmount)
	assert.Equal(t, extract.GuaranteeANDA, resp.ProposedFields.GuaranteeType)
}

// Guard against clock skew in CI: billing for the current period via the
// scheduler path must be idempotent with the cron endpoint.
func TestSchedulerRunNow_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	env.setupLease(t, 25000, 5)

	handler := NewHandler(env.store, cache.NewMemory(), zerolog.Nop(), "cron-secret")
	scheduler := NewBillingScheduler(handler, zerolog.Nop())
	scheduler.RunNow()
	scheduler.RunNow()

	period := time.Now().UTC().Format("200601")
	w := env.do(t, http.MethodGet, "/api/charges", nil)
	require.Equal(t, http.StatusOK, w.Code)
	charges := decode[[]ChargeDTO](t, w)
	require.Len(t, charges, 1)
	assert.Equal(t, period, charges[0].Period)
}
