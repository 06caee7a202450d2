/*
handlers.go - HTTP API handlers for the rental management system

PURPOSE:
  Exposes the rental portfolio and the accounting engine via REST.
  Handles HTTP request/response, JSON serialization, and delegates the
  actual accounting to the pure engine.

ENDPOINTS:
  Auth:
    POST   /api/login                Issue session cookie
    POST   /api/logout               Clear session cookie

  Portfolio:
    GET/POST /api/properties         List / create properties
    GET      /api/properties/{id}    Get property
    GET/POST /api/units              List / create units
    GET/POST /api/tenants            List / create tenants

  Leases:
    GET/POST /api/leases             List / create (created as DRAFT)
    GET      /api/leases/{id}        Get lease
    POST     /api/leases/{id}/activate  DRAFT -> ACTIVE
    POST     /api/leases/{id}/end       ACTIVE -> ENDED
    GET      /api/leases/{id}/arrears   Morosidad for one lease

  Accounting:
    GET/POST /api/charges            List charges / manual OTHER charge
    GET/POST /api/payments           List payments / record + allocate
    GET/POST /api/expenses           List / create expenses
    GET      /api/cron/charges       Billing run (bearer-token guarded)
    GET      /api/dashboard/stats    Portfolio + arrears + net profit

  Extraction:
    POST   /api/extract              Propose lease fields from contract text

REQUEST FLOW:
  1. Parse HTTP request
  2. Resolve session org (middleware)
  3. Fetch snapshot from store
  4. Run pure accounting where needed
  5. Persist results, serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing/invalid session or cron token
  - 404: Record not found
  - 409: Duplicate RENT charge (uniqueness backstop)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: The automated billing run
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/proyectohouse/rent-engine/accounting"
	"github.com/proyectohouse/rent-engine/cache"
	"github.com/proyectohouse/rent-engine/extract"
	"github.com/proyectohouse/rent-engine/store/sqlite"
)

const (
	dashboardCacheTTL = 30 * time.Second
	dateFmt           = "2006-01-02"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Cache      cache.Cache
	Log        zerolog.Logger
	CronSecret string
}

// NewHandler creates a handler with the given dependencies.
func NewHandler(store *sqlite.Store, c cache.Cache, log zerolog.Logger, cronSecret string) *Handler {
	return &Handler{Store: store, Cache: c, Log: log, CronSecret: cronSecret}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Code = errorCode(err)
	}
	writeJSON(w, status, resp)
}

func errorCode(err error) string {
	switch {
	case accounting.IsConflict(err):
		return "duplicate_charge"
	case accounting.IsNotFound(err):
		return "not_found"
	case accounting.IsClientError(err):
		return "invalid_input"
	default:
		return ""
	}
}

func mustSession(r *http.Request) Session {
	s, _ := SessionFrom(r.Context())
	return s
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Login verifies credentials and issues the session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up user", err)
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Credenciales inválidas", nil)
		return
	}

	setSessionCookie(w, Session{OrgID: user.OrgID, UserID: user.ID})
	writeJSON(w, http.StatusOK, LoginResponse{UserID: user.ID, OrgID: user.OrgID, Name: user.Name})
}

// Logout clears the session cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PROPERTY HANDLERS
// =============================================================================

func (h *Handler) ListProperties(w http.ResponseWriter, r *http.Request) {
	session := mustSession(r)

	properties, err := h.Store.ListProperties(r.Context(), session.OrgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list properties", err)
		return
	}

	dtos := make([]PropertyDTO, len(properties))
	for i, p := range properties {
		dtos[i] = toPropertyDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetProperty(w http.ResponseWriter, r *http.Request) {
	session := mustSession(r)

	p, err := h.Store.GetProperty(r.Context(), session.OrgID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get property", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Property not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toPropertyDTO(*p))
}

func (h *Handler) CreateProperty(w http.ResponseWriter, r *http.Request) {
	session := mustSession(r)

	var req CreatePropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" || req.Address == "" {
		writeError(w, http.StatusBadRequest, "Nombre y dirección son requeridos", nil)
		return
	}

	p, err := h.Store.SaveProperty(r.Context(), sqlite.Property{
		OrgID:   session.OrgID,
		Name:    req.Name,
		Address: req.Address,
		City:    req.City,
		Notes:   req.Notes,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create property", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPropertyDTO(p))
}

// =============================================================================
// UNIT HANDLERS
// =============================================================================

func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	session := mustSession(r)

	var propertyID *string
	if v := r.URL.Query().Get("propertyId"); v != "" {
		propertyID = &v
	}

	units, err := h.Store.ListUnits(r.Context(), session.OrgID, propertyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list units", err)
		return
	}

	dtos := make([]UnitDTO, len(units))
	for i, u := range units {
		dtos[i] = toUnitDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	session := mustSession(r)

	var req CreateUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PropertyID == "" || req.UnitLabel == "" {
		writeError(w, http.StatusBadRequest, "Propiedad y unidad son requeridas", nil)
		return
	}

	u, err := h.Store.SaveUnit(r.Context(), sqlite.Unit{
		OrgID:      session.OrgID,
		PropertyID: req.PropertyID,
		UnitLabel:  req.UnitLabel,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create unit", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUnitDTO(u))
}

// =============================================================================
// TENANT HANDLERS
// =============================================================================

func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	session := mustSession(r)

	tenants, err := h.Store.ListTenants(r.Context(), session.OrgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tenants", err)
		return
	}

	dtos := make([]TenantDTO, len(tenants))
	for i, t := range tenants {
		dtos[i] = toTenantDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	session := mustSession(r)

	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.FullName == "" {
		writeError(w, http.StatusBadRequest, "Nombre completo es requerido", nil)
		return
	}

	t, err := h.Store.SaveTenant(r.Context(), sqlite.Tenant{
		OrgID:      session.OrgID,
		FullName:   req.FullName,
		DocumentID: req.DocumentID,
		Email:      req.Email,
		Phone:      req.Phone,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create tenant", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTenantDTO(t))
}

// =============================================================================
// LEASE HANDLERS
// =============================================================================

func (h *Handler) ListLeases(w http.ResponseWriter, r *http.Request) {
	session := mustSession(r)

	var status *accounting.LeaseStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s := accounting.LeaseStatus(v)
		status = &s
	}

	leases, err := h.Store.ListLeases(r.Context(), session.OrgID, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list leases", err)
		return
	}

	dtos := make([]LeaseDTO, len(leases))
	for i, l := range leases {
		dtos[i] = toLeaseDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetLease(w http.ResponseWriter, r *http.Request) {
	session := mustSession(r)

	l, err := h.Store.GetLease(r.Context(), session.OrgID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get lease", err)
		return
	}
	if l == nil {
		writeError(w, http.StatusNotFound, "Lease not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toLeaseDTO(*l))
}

func (h *Handler) CreateLease(w http.ResponseWriter, r *http.Request) {
	session := mustSession(r)

	var req CreateLeaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UnitID == "" || req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "Unidad e inquilino son requeridos", nil)
		return
	}
	if req.RentAmount <= 0 {
		writeError(w, http.StatusBadRequest, "El alquiler debe ser positivo", accounting.ErrInvalidAmount)
		return
	}
	if req.DueDay < 1 || req.DueDay > 31 {
		writeError(w, http.StatusBadRequest, "Día de vencimiento inválido (1-31)", nil)
		return
	}

	startDate, err := time.Parse(dateFmt, req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	endDate, err := time.Parse(dateFmt, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
		return
	}

	l, err := h.Store.SaveLease(r.Context(), sqlite.Lease{
		OrgID:      session.OrgID,
		UnitID:     req.UnitID,
		TenantID:   req.TenantID,
		StartDate:  startDate,
		EndDate:    endDate,
		RentAmount: accounting.NewMoneyFromFloat(req.RentAmount),
		DueDay:     req.DueDay,
		Status:     accounting.LeaseDraft,
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create lease", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaseDTO(l))
}

func (h *Handler) ActivateLease(w http.ResponseWriter, r *http.Request) {
	h.setLeaseStatus(w, r, accounting.LeaseActive)
}

func (h *Handler) EndLease(w http.ResponseWriter, r *http.Request) {
	h.setLeaseStatus(w, r, accounting.LeaseEnded)
}

func (h *Handler) setLeaseStatus(w http.ResponseWriter, r *http.Request, status accounting.LeaseStatus) {
	session := mustSession(r)
	id := chi.URLParam(r, "id")

	if err := h.Store.UpdateLeaseStatus(r.Context(), session.OrgID, id, status); err != nil {
		if accounting.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Lease not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update lease", err)
		return
	}

	l, err := h.Store.GetLease(r.Context(), session.OrgID, id)
	if err != nil || l == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload lease", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaseDTO(*l))
}

// GetLeaseArrears reports morosidad for a single lease as of today (or
// an explicit ?asOf=YYYY-MM-DD for reporting).
func (h *Handler) GetLeaseArrears(w http.ResponseWriter, r *http.Request) {
	session := mustSession(r)
	leaseID := chi.URLParam(r, "id")

	asOf := accounting.Today()
	if v := r.URL.Query().Get("asOf"); v != "" {
		t, err := time.Parse(dateFmt, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid asOf (use YYYY-MM-DD)", err)
			return
		}
		asOf = accounting.DateFromTime(t)
	}

	chargeRecords, err := h.Store.ListCharges(r.Context(), session.OrgID, &leaseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list charges", err)
		return
	}
	allocations, err := h.Store.ListAllocations(r.Context(), session.OrgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list allocations", err)
		return
	}

	charges := make([]accounting.Charge, len(chargeRecords))
	for i, c := range chargeRecords {
		charges[i] = c.Accounting()
	}

	report := accounting.ArrearsStatus(charges, allocations, asOf)
	writeJSON(w, http.StatusOK, ArrearsDTO{
		IsArrears:    report.IsArrears,
		TotalOverdue: report.TotalOverdue.Float64(),
		AsOf:         asOf.String(),
	})
}

// =============================================================================
// CHARGE HANDLERS
// =============================================================================

func (h *Handler) ListCharges(w http.ResponseWriter, r *http.Request) {
	session := mustSession(r)

	var leaseID *string
	if v := r.URL.Query().Get("leaseId"); v != "" {
		leaseID = &v
	}

	charges, err := h.Store.ListCharges(r.Context(), session.OrgID, leaseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list charges", err)
		return
	}

	dtos := make([]ChargeDTO, len(charges))
	for i, c := range charges {
		dtos[i] = toChargeDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCharge records a manual OTHER charge against a lease.
func (h *Handler) CreateCharge(w http.ResponseWriter, r *http.Request) {
	session := mustSession(r)

	var req CreateChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.LeaseID == "" {
		writeError(w, http.StatusBadRequest, "Contrato es requerido", nil)
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "El monto debe ser positivo", accounting.ErrInvalidAmount)
		return
	}
	if _, err := accounting.ParsePeriodToken(req.Period); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period (use YYYYMM)", err)
		return
	}
	dueDate, err := time.Parse(dateFmt, req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid due_date (use YYYY-MM-DD)", err)
		return
	}

	c, err := h.Store.SaveCharge(r.Context(), sqlite.Charge{
		OrgID:       session.OrgID,
		LeaseID:     req.LeaseID,
		Period:      req.Period,
		Amount:      accounting.NewMoneyFromFloat(req.Amount),
		DueDate:     dueDate,
		Type:        accounting.ChargeOther,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create charge", err)
		return
	}
	writeJSON(w, http.StatusCreated, toChargeDTO(c))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	session := mustSession(r)

	var leaseID *string
	if v := r.URL.Query().Get("leaseId"); v != "" {
		leaseID = &v
	}

	payments, err := h.Store.ListPayments(r.Context(), session.OrgID, leaseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePayment records a payment and immediately settles it against
// the lease's open charges, oldest first. Payment and allocations are
// persisted in one transaction; the response reports any overpayment
// remainder as unapplied.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	session := mustSession(r)

	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.LeaseID == "" || req.Method == "" {
		writeError(w, http.StatusBadRequest, "Contrato, fecha, monto y método son requeridos", nil)
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "El monto debe ser positivo", accounting.ErrInvalidAmount)
		return
	}
	paidAt, err := time.Parse(dateFmt, req.PaidAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paid_at (use YYYY-MM-DD)", err)
		return
	}

	lease, err := h.Store.GetLease(r.Context(), session.OrgID, req.LeaseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get lease", err)
		return
	}
	if lease == nil {
		writeError(w, http.StatusNotFound, "Lease not found", accounting.ErrLeaseNotFound)
		return
	}

	unpaid, err := h.Store.UnpaidCharges(r.Context(), session.OrgID, req.LeaseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load open charges", err)
		return
	}

	amount := accounting.NewMoneyFromFloat(req.Amount)
	allocations := accounting.AllocatePayment(amount, unpaid)

	payment, _, err := h.Store.SavePaymentWithAllocations(r.Context(), sqlite.Payment{
		OrgID:     session.OrgID,
		LeaseID:   req.LeaseID,
		PaidAt:    paidAt,
		Amount:    amount,
		Method:    req.Method,
		Reference: req.Reference,
		Notes:     req.Notes,
	}, allocations)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save payment", err)
		return
	}

	h.invalidateDashboard(r, session.OrgID)

	unapplied := amount.Sub(accounting.SumAllocations(allocations))
	writeJSON(w, http.StatusCreated, PaymentResponse{
		Payment:     toPaymentDTO(payment),
		Allocations: toAllocationDTOs(allocations),
		Unapplied:   unapplied.Float64(),
	})
}

// =============================================================================
// EXPENSE HANDLERS
// =============================================================================

func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	session := mustSession(r)

	var propertyID *string
	if v := r.URL.Query().Get("propertyId"); v != "" {
		propertyID = &v
	}

	expenses, err := h.Store.ListExpenses(r.Context(), session.OrgID, propertyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list expenses", err)
		return
	}

	dtos := make([]ExpenseDTO, len(expenses))
	for i, e := range expenses {
		dtos[i] = toExpenseDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	session := mustSession(r)

	var req CreateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PropertyID == "" {
		writeError(w, http.StatusBadRequest, "Propiedad es requerida", nil)
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "El monto debe ser positivo", accounting.ErrInvalidAmount)
		return
	}
	incurredAt, err := time.Parse(dateFmt, req.IncurredAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid incurred_at (use YYYY-MM-DD)", err)
		return
	}

	e, err := h.Store.SaveExpense(r.Context(), sqlite.Expense{
		OrgID:       session.OrgID,
		PropertyID:  req.PropertyID,
		IncurredAt:  incurredAt,
		Amount:      accounting.NewMoneyFromFloat(req.Amount),
		Description: req.Description,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create expense", err)
		return
	}

	h.invalidateDashboard(r, session.OrgID)
	writeJSON(w, http.StatusCreated, toExpenseDTO(e))
}

// =============================================================================
// BILLING RUN
// =============================================================================

// RunBilling generates and persists the RENT charges for a period.
// Shared by the cron endpoint and the scheduler. The unique index on
// (lease, period, RENT) absorbs any race with a concurrent run.
func (h *Handler) RunBilling(ctx context.Context, period accounting.BillingPeriod) (int, error) {
	token := period.Token()

	leaseRecords, err := h.Store.ListActiveLeasesAllOrgs(ctx)
	if err != nil {
		return 0, err
	}
	chargeRecords, err := h.Store.ListRentChargesForPeriod(ctx, token)
	if err != nil {
		return 0, err
	}

	leases := make([]accounting.Lease, len(leaseRecords))
	orgIDByLease := make(map[string]string, len(leaseRecords))
	for i, l := range leaseRecords {
		leases[i] = l.Accounting()
		orgIDByLease[l.ID] = l.OrgID
	}
	existing := make([]accounting.Charge, len(chargeRecords))
	for i, c := range chargeRecords {
		existing[i] = c.Accounting()
	}

	newCharges := accounting.GenerateMonthlyCharges(leases, existing, token, period)
	if len(newCharges) == 0 {
		return 0, nil
	}
	return h.Store.SaveGeneratedCharges(ctx, orgIDByLease, newCharges)
}

// TriggerBillingRun is the cron endpoint. Guarded by a bearer token
// rather than a session so external schedulers can call it.
func (h *Handler) TriggerBillingRun(w http.ResponseWriter, r *http.Request) {
	if h.CronSecret != "" && r.Header.Get("Authorization") != "Bearer "+h.CronSecret {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	period := accounting.PeriodFor(accounting.Today())
	if v := r.URL.Query().Get("period"); v != "" {
		p, err := accounting.ParsePeriodToken(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid period (use YYYYMM)", err)
			return
		}
		period = p
	}

	generated, err := h.RunBilling(r.Context(), period)
	if err != nil {
		h.Log.Error().Err(err).Str("period", period.Token()).Msg("billing run failed")
		writeError(w, http.StatusInternalServerError, "Failed to generate charges", err)
		return
	}

	h.Log.Info().Str("period", period.Token()).Int("charges", generated).Msg("billing run completed")
	writeJSON(w, http.StatusOK, BillingRunResponse{Period: period.Token(), ChargesGenerated: generated})
}

// =============================================================================
// DASHBOARD
// =============================================================================

func dashboardCacheKey(orgID string) string { return "dashboard:" + orgID }

func (h *Handler) invalidateDashboard(r *http.Request, orgID string) {
	if h.Cache != nil {
		h.Cache.Invalidate(r.Context(), dashboardCacheKey(orgID))
	}
}

// GetDashboardStats returns portfolio counts, lease expiry buckets,
// org-wide arrears, and net profit. Cached briefly per org.
func (h *Handler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	session := mustSession(r)
	ctx := r.Context()

	if h.Cache != nil {
		if cached, ok := h.Cache.Get(ctx, dashboardCacheKey(session.OrgID)); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(cached))
			return
		}
	}

	counts, err := h.Store.GetDashboardCounts(ctx, session.OrgID, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute dashboard counts", err)
		return
	}

	chargeRecords, err := h.Store.ListCharges(ctx, session.OrgID, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list charges", err)
		return
	}
	allocations, err := h.Store.ListAllocations(ctx, session.OrgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list allocations", err)
		return
	}

	charges := make([]accounting.Charge, len(chargeRecords))
	for i, c := range chargeRecords {
		charges[i] = c.Accounting()
	}
	arrears := accounting.ArrearsStatus(charges, allocations, accounting.Today())

	rentAllocations, err := h.Store.ListRentAllocations(ctx, session.OrgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rent allocations", err)
		return
	}
	expenses, err := h.Store.AccountingExpenses(ctx, session.OrgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list expenses", err)
		return
	}
	netProfit := accounting.NetProfit(rentAllocations, expenses)

	stats := DashboardStatsDTO{
		PropertiesCount:   counts.PropertiesCount,
		TenantsCount:      counts.TenantsCount,
		ActiveLeasesCount: counts.ActiveLeasesCount,
		TotalRent:         counts.TotalRent.Float64(),
		Expiring30:        counts.Expiring30,
		Expiring60:        counts.Expiring60,
		Expiring90:        counts.Expiring90,
		IsArrears:         arrears.IsArrears,
		TotalOverdue:      arrears.TotalOverdue.Float64(),
		NetProfit:         netProfit.Float64(),
	}

	if h.Cache != nil {
		if body, err := json.Marshal(stats); err == nil {
			h.Cache.Set(ctx, dashboardCacheKey(session.OrgID), string(body), dashboardCacheTTL)
		}
	}
	writeJSON(w, http.StatusOK, stats)
}

// =============================================================================
// EXTRACTION
// =============================================================================

// ExtractContract proposes lease fields from contract text.
func (h *Handler) ExtractContract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "No contract text provided", nil)
		return
	}

	writeJSON(w, http.StatusOK, ExtractResponse{ProposedFields: extract.Propose(req.Text)})
}
