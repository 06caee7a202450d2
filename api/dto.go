/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types
  decouple the internal records from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/proyectohouse/rent-engine/accounting"
	"github.com/proyectohouse/rent-engine/extract"
	"github.com/proyectohouse/rent-engine/store/sqlite"
)

// =============================================================================
// AUTH
// =============================================================================

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
	Name   string `json:"name"`
}

// =============================================================================
// PORTFOLIO
// =============================================================================

type PropertyDTO struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	City      *string `json:"city,omitempty"`
	Notes     *string `json:"notes,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
}

type CreatePropertyRequest struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	City    *string `json:"city,omitempty"`
	Notes   *string `json:"notes,omitempty"`
}

type UnitDTO struct {
	ID         string `json:"id"`
	PropertyID string `json:"property_id"`
	UnitLabel  string `json:"unit_label"`
	CreatedAt  string `json:"created_at,omitempty"`
}

type CreateUnitRequest struct {
	PropertyID string `json:"property_id"`
	UnitLabel  string `json:"unit_label"`
}

type TenantDTO struct {
	ID         string  `json:"id"`
	FullName   string  `json:"full_name"`
	DocumentID *string `json:"document_id,omitempty"`
	Email      *string `json:"email,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	CreatedAt  string  `json:"created_at,omitempty"`
}

type CreateTenantRequest struct {
	FullName   string  `json:"full_name"`
	DocumentID *string `json:"document_id,omitempty"`
	Email      *string `json:"email,omitempty"`
	Phone      *string `json:"phone,omitempty"`
}

// =============================================================================
// LEASES
// =============================================================================

type LeaseDTO struct {
	ID         string  `json:"id"`
	UnitID     string  `json:"unit_id"`
	TenantID   string  `json:"tenant_id"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	Currency   string  `json:"currency"`
	RentAmount float64 `json:"rent_amount"`
	DueDay     int     `json:"due_day"`
	Status     string  `json:"status"`
	Notes      *string `json:"notes,omitempty"`
	CreatedAt  string  `json:"created_at,omitempty"`
}

type CreateLeaseRequest struct {
	UnitID     string  `json:"unit_id"`
	TenantID   string  `json:"tenant_id"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	RentAmount float64 `json:"rent_amount"`
	DueDay     int     `json:"due_day"`
	Notes      *string `json:"notes,omitempty"`
}

// =============================================================================
// CHARGES / PAYMENTS / EXPENSES
// =============================================================================

type ChargeDTO struct {
	ID          string  `json:"id"`
	LeaseID     string  `json:"lease_id"`
	Period      string  `json:"period"`
	Amount      float64 `json:"amount"`
	DueDate     string  `json:"due_date"`
	Type        string  `json:"type"`
	Description *string `json:"description,omitempty"`
}

// CreateChargeRequest covers manual OTHER charges (repairs billed to
// the tenant, late fees entered by hand). RENT charges only come from
// the billing run.
type CreateChargeRequest struct {
	LeaseID     string  `json:"lease_id"`
	Period      string  `json:"period"`
	Amount      float64 `json:"amount"`
	DueDate     string  `json:"due_date"`
	Description *string `json:"description,omitempty"`
}

type PaymentDTO struct {
	ID        string  `json:"id"`
	LeaseID   string  `json:"lease_id"`
	PaidAt    string  `json:"paid_at"`
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
	Reference *string `json:"reference,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

type CreatePaymentRequest struct {
	LeaseID   string  `json:"lease_id"`
	PaidAt    string  `json:"paid_at"`
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
	Reference *string `json:"reference,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

type AllocationDTO struct {
	ChargeID string  `json:"charge_id"`
	Amount   float64 `json:"amount"`
}

// PaymentResponse reports how the payment was applied. Unapplied is the
// overpayment remainder the allocator leaves unassigned.
type PaymentResponse struct {
	Payment     PaymentDTO      `json:"payment"`
	Allocations []AllocationDTO `json:"allocations"`
	Unapplied   float64         `json:"unapplied"`
}

type ExpenseDTO struct {
	ID          string  `json:"id"`
	PropertyID  string  `json:"property_id"`
	IncurredAt  string  `json:"incurred_at"`
	Amount      float64 `json:"amount"`
	Description *string `json:"description,omitempty"`
}

type CreateExpenseRequest struct {
	PropertyID  string  `json:"property_id"`
	IncurredAt  string  `json:"incurred_at"`
	Amount      float64 `json:"amount"`
	Description *string `json:"description,omitempty"`
}

// =============================================================================
// ACCOUNTING VIEWS
// =============================================================================

type ArrearsDTO struct {
	IsArrears    bool    `json:"is_arrears"`
	TotalOverdue float64 `json:"total_overdue"`
	AsOf         string  `json:"as_of"`
}

type BillingRunResponse struct {
	Period           string `json:"period"`
	ChargesGenerated int    `json:"charges_generated"`
}

type DashboardStatsDTO struct {
	PropertiesCount   int     `json:"properties_count"`
	TenantsCount      int     `json:"tenants_count"`
	ActiveLeasesCount int     `json:"active_leases_count"`
	TotalRent         float64 `json:"total_rent"`
	Expiring30        int     `json:"expiring_30"`
	Expiring60        int     `json:"expiring_60"`
	Expiring90        int     `json:"expiring_90"`
	IsArrears         bool    `json:"is_arrears"`
	TotalOverdue      float64 `json:"total_overdue"`
	NetProfit         float64 `json:"net_profit"`
}

type ExtractRequest struct {
	Text string `json:"text"`
}

type ExtractResponse struct {
	ProposedFields extract.ProposedFields `json:"proposed_fields"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toPropertyDTO(p sqlite.Property) PropertyDTO {
	return PropertyDTO{
		ID:        p.ID,
		Name:      p.Name,
		Address:   p.Address,
		City:      p.City,
		Notes:     p.Notes,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

func toUnitDTO(u sqlite.Unit) UnitDTO {
	return UnitDTO{
		ID:         u.ID,
		PropertyID: u.PropertyID,
		UnitLabel:  u.UnitLabel,
		CreatedAt:  u.CreatedAt.Format(time.RFC3339),
	}
}

func toTenantDTO(t sqlite.Tenant) TenantDTO {
	return TenantDTO{
		ID:         t.ID,
		FullName:   t.FullName,
		DocumentID: t.DocumentID,
		Email:      t.Email,
		Phone:      t.Phone,
		CreatedAt:  t.CreatedAt.Format(time.RFC3339),
	}
}

func toLeaseDTO(l sqlite.Lease) LeaseDTO {
	return LeaseDTO{
		ID:         l.ID,
		UnitID:     l.UnitID,
		TenantID:   l.TenantID,
		StartDate:  l.StartDate.Format("2006-01-02"),
		EndDate:    l.EndDate.Format("2006-01-02"),
		Currency:   l.Currency,
		RentAmount: l.RentAmount.Float64(),
		DueDay:     l.DueDay,
		Status:     string(l.Status),
		Notes:      l.Notes,
		CreatedAt:  l.CreatedAt.Format(time.RFC3339),
	}
}

func toChargeDTO(c sqlite.Charge) ChargeDTO {
	return ChargeDTO{
		ID:          c.ID,
		LeaseID:     c.LeaseID,
		Period:      c.Period,
		Amount:      c.Amount.Float64(),
		DueDate:     c.DueDate.Format("2006-01-02"),
		Type:        string(c.Type),
		Description: c.Description,
	}
}

func toPaymentDTO(p sqlite.Payment) PaymentDTO {
	return PaymentDTO{
		ID:        p.ID,
		LeaseID:   p.LeaseID,
		PaidAt:    p.PaidAt.Format("2006-01-02"),
		Amount:    p.Amount.Float64(),
		Method:    p.Method,
		Reference: p.Reference,
		Notes:     p.Notes,
	}
}

func toExpenseDTO(e sqlite.Expense) ExpenseDTO {
	return ExpenseDTO{
		ID:          e.ID,
		PropertyID:  e.PropertyID,
		IncurredAt:  e.IncurredAt.Format("2006-01-02"),
		Amount:      e.Amount.Float64(),
		Description: e.Description,
	}
}

func toAllocationDTOs(allocations []accounting.Allocation) []AllocationDTO {
	dtos := make([]AllocationDTO, len(allocations))
	for i, a := range allocations {
		dtos[i] = AllocationDTO{ChargeID: string(a.ChargeID), Amount: a.Amount.Float64()}
	}
	return dtos
}
