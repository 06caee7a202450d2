/*
Package sqlite provides the SQLite-backed persistence layer.

PURPOSE:
  Stores the rental portfolio (properties, units, tenants, leases) and
  the accounting records (charges, payments, allocations, expenses).
  The accounting engine itself is pure; this package supplies its input
  snapshots and persists its output. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

IDEMPOTENCY BACKSTOP:
  The charge generator's duplicate check is only correct against a
  stable snapshot; two concurrent billing runs can both read "no charge
  yet". The partial unique index

    idx_unique_rent_charge ON charges(lease_id, period) WHERE charge_type='RENT'

  is the actual correctness backstop: the second writer fails with a
  constraint violation, surfaced as accounting.ErrDuplicateCharge and
  treated as an expected skip by the billing job.

KEY TABLES:
  properties, units, tenants: Portfolio records, scoped by org_id
  leases:       Contracts; only ACTIVE ones generate charges
  charges:      Immutable amounts owed per billing period
  payments:     Money received; settled into allocations
  allocations:  Join records applying payment money to charges
  expenses:     Property costs for profitability
  users:        Login accounts for the cookie session

MONEY:
  Monetary columns are TEXT holding decimal strings; parsed with
  shopspring/decimal. Never REAL.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened in WAL mode so
  readers don't block.

USAGE:
  store, err := sqlite.New("./data/rent.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - accounting: The pure engine consuming and producing these records
  - api: HTTP handlers driving this store
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/proyectohouse/rent-engine/accounting"
)

// Store implements persistence using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'ADMIN',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		city TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_properties_org ON properties(org_id);

	CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		property_id TEXT NOT NULL REFERENCES properties(id),
		unit_label TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_units_property ON units(property_id);

	CREATE TABLE IF NOT EXISTS tenants (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		full_name TEXT NOT NULL,
		document_id TEXT,
		email TEXT,
		phone TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tenants_org ON tenants(org_id);

	CREATE TABLE IF NOT EXISTS leases (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		unit_id TEXT NOT NULL REFERENCES units(id),
		tenant_id TEXT NOT NULL REFERENCES tenants(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'UYU',
		rent_amount TEXT NOT NULL,
		due_day INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'DRAFT',
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leases_org_status ON leases(org_id, status);
	CREATE INDEX IF NOT EXISTS idx_leases_status ON leases(status);

	CREATE TABLE IF NOT EXISTS charges (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		lease_id TEXT NOT NULL REFERENCES leases(id),
		period TEXT NOT NULL,
		amount TEXT NOT NULL,
		due_date TEXT NOT NULL,
		charge_type TEXT NOT NULL,
		description TEXT,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: at most one RENT charge per (lease, period).
	-- This is the persistence-layer backstop for the generator's
	-- idempotency under concurrent billing runs.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_rent_charge
		ON charges(lease_id, period)
		WHERE charge_type = 'RENT';

	CREATE INDEX IF NOT EXISTS idx_charges_lease ON charges(lease_id);
	CREATE INDEX IF NOT EXISTS idx_charges_org_period ON charges(org_id, period);
	CREATE INDEX IF NOT EXISTS idx_charges_period_type ON charges(period, charge_type);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		lease_id TEXT NOT NULL REFERENCES leases(id),
		paid_at TEXT NOT NULL,
		amount TEXT NOT NULL,
		method TEXT NOT NULL,
		reference TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_org_lease ON payments(org_id, lease_id);

	CREATE TABLE IF NOT EXISTS allocations (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		payment_id TEXT NOT NULL REFERENCES payments(id),
		charge_id TEXT NOT NULL REFERENCES charges(id),
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_charge ON allocations(charge_id);
	CREATE INDEX IF NOT EXISTS idx_allocations_payment ON allocations(payment_id);
	CREATE INDEX IF NOT EXISTS idx_allocations_org ON allocations(org_id);

	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		property_id TEXT NOT NULL REFERENCES properties(id),
		incurred_at TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_expenses_org_property ON expenses(org_id, property_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD TYPES
// =============================================================================

type User struct {
	ID           string
	OrgID        string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type Property struct {
	ID        string
	OrgID     string
	Name      string
	Address   string
	City      *string
	Notes     *string
	CreatedAt time.Time
}

type Unit struct {
	ID         string
	OrgID      string
	PropertyID string
	UnitLabel  string
	CreatedAt  time.Time
}

type Tenant struct {
	ID         string
	OrgID      string
	FullName   string
	DocumentID *string
	Email      *string
	Phone      *string
	CreatedAt  time.Time
}

type Lease struct {
	ID         string
	OrgID      string
	UnitID     string
	TenantID   string
	StartDate  time.Time
	EndDate    time.Time
	Currency   string
	RentAmount accounting.Money
	DueDay     int
	Status     accounting.LeaseStatus
	Notes      *string
	CreatedAt  time.Time
}

// Accounting converts the record to the engine's lease view.
func (l Lease) Accounting() accounting.Lease {
	return accounting.Lease{
		ID:            accounting.LeaseID(l.ID),
		OrgID:         accounting.OrgID(l.OrgID),
		RentAmount:    l.RentAmount,
		DueDayOfMonth: l.DueDay,
		Status:        l.Status,
	}
}

type Charge struct {
	ID          string
	OrgID       string
	LeaseID     string
	Period      string
	Amount      accounting.Money
	DueDate     time.Time
	Type        accounting.ChargeType
	Description *string
	CreatedAt   time.Time
}

// Accounting converts the record to the engine's charge view.
func (c Charge) Accounting() accounting.Charge {
	return accounting.Charge{
		ID:           accounting.ChargeID(c.ID),
		LeaseID:      accounting.LeaseID(c.LeaseID),
		PeriodYYYYMM: c.Period,
		Amount:       c.Amount,
		DueDate:      accounting.DateFromTime(c.DueDate),
		Type:         c.Type,
	}
}

type Payment struct {
	ID        string
	OrgID     string
	LeaseID   string
	PaidAt    time.Time
	Amount    accounting.Money
	Method    string
	Reference *string
	Notes     *string
	CreatedAt time.Time
}

type AllocationRecord struct {
	ID        string
	OrgID     string
	PaymentID string
	ChargeID  string
	Amount    accounting.Money
	CreatedAt time.Time
}

type Expense struct {
	ID          string
	OrgID       string
	PropertyID  string
	IncurredAt  time.Time
	Amount      accounting.Money
	Description *string
	CreatedAt   time.Time
}

const dateFmt = "2006-01-02"

func newID() string { return uuid.NewString() }

// isUniqueViolation reports whether the error is a SQLite unique
// constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) SaveUser(ctx context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = newID()
	}
	u.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, org_id, name, email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.OrgID, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt.Format(time.RFC3339))
	return u, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u User
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, name, email, password_hash, role, created_at
		FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.OrgID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

// =============================================================================
// PROPERTIES
// =============================================================================

func (s *Store) SaveProperty(ctx context.Context, p Property) (Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = newID()
	}
	p.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO properties (id, org_id, name, address, city, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrgID, p.Name, p.Address, p.City, p.Notes, p.CreatedAt.Format(time.RFC3339))
	return p, err
}

func (s *Store) ListProperties(ctx context.Context, orgID string) ([]Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, name, address, city, notes, created_at
		FROM properties WHERE org_id = ? ORDER BY created_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Property
	for rows.Next() {
		var p Property
		var createdAt string
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Name, &p.Address, &p.City, &p.Notes, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProperty(ctx context.Context, orgID, id string) (*Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p Property
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, name, address, city, notes, created_at
		FROM properties WHERE org_id = ? AND id = ?`, orgID, id).
		Scan(&p.ID, &p.OrgID, &p.Name, &p.Address, &p.City, &p.Notes, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

// =============================================================================
// UNITS
// =============================================================================

func (s *Store) SaveUnit(ctx context.Context, u Unit) (Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = newID()
	}
	u.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO units (id, org_id, property_id, unit_label, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.OrgID, u.PropertyID, u.UnitLabel, u.CreatedAt.Format(time.RFC3339))
	return u, err
}

func (s *Store) ListUnits(ctx context.Context, orgID string, propertyID *string) ([]Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, org_id, property_id, unit_label, created_at FROM units WHERE org_id = ?`
	args := []any{orgID}
	if propertyID != nil {
		query += ` AND property_id = ?`
		args = append(args, *propertyID)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Unit
	for rows.Next() {
		var u Unit
		var createdAt string
		if err := rows.Scan(&u.ID, &u.OrgID, &u.PropertyID, &u.UnitLabel, &createdAt); err != nil {
			return nil, err
		}
		u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, u)
	}
	return out, rows.Err()
}

// =============================================================================
// TENANTS
// =============================================================================

func (s *Store) SaveTenant(ctx context.Context, t Tenant) (Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = newID()
	}
	t.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, org_id, full_name, document_id, email, phone, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OrgID, t.FullName, t.DocumentID, t.Email, t.Phone, t.CreatedAt.Format(time.RFC3339))
	return t, err
}

func (s *Store) ListTenants(ctx context.Context, orgID string) ([]Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, full_name, document_id, email, phone, created_at
		FROM tenants WHERE org_id = ? ORDER BY created_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		var t Tenant
		var createdAt string
		if err := rows.Scan(&t.ID, &t.OrgID, &t.FullName, &t.DocumentID, &t.Email, &t.Phone, &createdAt); err != nil {
			return nil, err
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

// =============================================================================
// LEASES
// =============================================================================

func (s *Store) SaveLease(ctx context.Context, l Lease) (Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == "" {
		l.ID = newID()
	}
	if l.Currency == "" {
		l.Currency = "UYU"
	}
	if l.Status == "" {
		l.Status = accounting.LeaseDraft
	}
	l.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leases (id, org_id, unit_id, tenant_id, start_date, end_date,
			currency, rent_amount, due_day, status, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.OrgID, l.UnitID, l.TenantID,
		l.StartDate.Format(dateFmt), l.EndDate.Format(dateFmt),
		l.Currency, l.RentAmount.String(), l.DueDay, string(l.Status), l.Notes,
		l.CreatedAt.Format(time.RFC3339))
	return l, err
}

// UpdateLeaseStatus moves a lease through its lifecycle
// (DRAFT -> ACTIVE -> ENDED).
func (s *Store) UpdateLeaseStatus(ctx context.Context, orgID, id string, status accounting.LeaseStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE leases SET status = ? WHERE org_id = ? AND id = ?`,
		string(status), orgID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return accounting.ErrLeaseNotFound
	}
	return nil
}

func scanLease(scan func(dest ...any) error) (Lease, error) {
	var l Lease
	var startDate, endDate, rentAmount, status, createdAt string
	err := scan(&l.ID, &l.OrgID, &l.UnitID, &l.TenantID, &startDate, &endDate,
		&l.Currency, &rentAmount, &l.DueDay, &status, &l.Notes, &createdAt)
	if err != nil {
		return Lease{}, err
	}
	l.StartDate, _ = time.Parse(dateFmt, startDate)
	l.EndDate, _ = time.Parse(dateFmt, endDate)
	l.RentAmount = accounting.MustParseMoney(rentAmount)
	l.Status = accounting.LeaseStatus(status)
	l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return l, nil
}

const leaseColumns = `id, org_id, unit_id, tenant_id, start_date, end_date,
	currency, rent_amount, due_day, status, notes, created_at`

func (s *Store) GetLease(ctx context.Context, orgID, id string) (*Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+leaseColumns+` FROM leases WHERE org_id = ? AND id = ?`, orgID, id)
	l, err := scanLease(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) ListLeases(ctx context.Context, orgID string, status *accounting.LeaseStatus) ([]Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + leaseColumns + ` FROM leases WHERE org_id = ?`
	args := []any{orgID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at`

	return s.queryLeases(ctx, query, args...)
}

// ListActiveLeasesAllOrgs returns every ACTIVE lease across all
// organizations. Used by the billing run, which bills the whole system
// in one pass (org scoping is preserved on each record).
func (s *Store) ListActiveLeasesAllOrgs(ctx context.Context) ([]Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLeases(ctx,
		`SELECT `+leaseColumns+` FROM leases WHERE status = 'ACTIVE' ORDER BY created_at`)
}

func (s *Store) queryLeases(ctx context.Context, query string, args ...any) ([]Lease, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Lease
	for rows.Next() {
		l, err := scanLease(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// =============================================================================
// CHARGES
// =============================================================================

// SaveCharge inserts a charge. A RENT charge colliding with an existing
// one for the same (lease, period) fails with a DuplicateChargeError
// wrapping accounting.ErrDuplicateCharge - the idempotency backstop.
func (s *Store) SaveCharge(ctx context.Context, c Charge) (Charge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertCharge(ctx, s.db, c)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insertCharge(ctx context.Context, db execer, c Charge) (Charge, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	c.CreatedAt = time.Now().UTC()

	_, err := db.ExecContext(ctx, `
		INSERT INTO charges (id, org_id, lease_id, period, amount, due_date,
			charge_type, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OrgID, c.LeaseID, c.Period, c.Amount.String(),
		c.DueDate.Format(dateFmt), string(c.Type), c.Description,
		c.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return Charge{}, &accounting.DuplicateChargeError{
				LeaseID:      accounting.LeaseID(c.LeaseID),
				PeriodYYYYMM: c.Period,
			}
		}
		return Charge{}, err
	}
	return c, nil
}

// SaveGeneratedCharges persists a billing run's output in one
// transaction. Charges rejected by the uniqueness index (a concurrent
// run won the race) are skipped, not failed; the count of inserted
// charges is returned.
func (s *Store) SaveGeneratedCharges(ctx context.Context, orgIDByLease map[string]string, newCharges []accounting.NewCharge) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	inserted := 0
	for _, nc := range newCharges {
		c := Charge{
			OrgID:   orgIDByLease[string(nc.LeaseID)],
			LeaseID: string(nc.LeaseID),
			Period:  nc.PeriodYYYYMM,
			Amount:  nc.Amount,
			DueDate: nc.DueDate.Time,
			Type:    nc.Type,
		}
		if _, err := s.insertCharge(ctx, tx, c); err != nil {
			if accounting.IsConflict(err) {
				continue
			}
			return 0, err
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func scanCharge(scan func(dest ...any) error) (Charge, error) {
	var c Charge
	var amount, dueDate, chargeType, createdAt string
	err := scan(&c.ID, &c.OrgID, &c.LeaseID, &c.Period, &amount, &dueDate,
		&chargeType, &c.Description, &createdAt)
	if err != nil {
		return Charge{}, err
	}
	c.Amount = accounting.MustParseMoney(amount)
	c.DueDate, _ = time.Parse(dateFmt, dueDate)
	c.Type = accounting.ChargeType(chargeType)
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return c, nil
}

const chargeColumns = `id, org_id, lease_id, period, amount, due_date,
	charge_type, description, created_at`

func (s *Store) queryCharges(ctx context.Context, query string, args ...any) ([]Charge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Charge
	for rows.Next() {
		c, err := scanCharge(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ListCharges(ctx context.Context, orgID string, leaseID *string) ([]Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + chargeColumns + ` FROM charges WHERE org_id = ?`
	args := []any{orgID}
	if leaseID != nil {
		query += ` AND lease_id = ?`
		args = append(args, *leaseID)
	}
	query += ` ORDER BY due_date`

	return s.queryCharges(ctx, query, args...)
}

// ListRentChargesForPeriod returns all RENT charges for a billing
// period across orgs - the generator's existing-charges snapshot.
func (s *Store) ListRentChargesForPeriod(ctx context.Context, period string) ([]Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryCharges(ctx,
		`SELECT `+chargeColumns+` FROM charges WHERE period = ? AND charge_type = 'RENT'`,
		period)
}

// =============================================================================
// PAYMENTS + ALLOCATIONS
// =============================================================================

// UnpaidCharges returns a lease's charges annotated with the sum of
// allocations already applied - the allocator's input, pre-aggregated
// here so the engine stays a pure function over complete data.
func (s *Store) UnpaidCharges(ctx context.Context, orgID, leaseID string) ([]accounting.UnpaidCharge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.amount, c.due_date,
			COALESCE((SELECT SUM(CAST(a.amount AS NUMERIC)) FROM allocations a WHERE a.charge_id = c.id), 0)
		FROM charges c
		WHERE c.org_id = ? AND c.lease_id = ?
		ORDER BY c.due_date`, orgID, leaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []accounting.UnpaidCharge
	for rows.Next() {
		var id, amount, dueDate, allocated string
		if err := rows.Scan(&id, &amount, &dueDate, &allocated); err != nil {
			return nil, err
		}
		due, _ := time.Parse(dateFmt, dueDate)
		out = append(out, accounting.UnpaidCharge{
			ID:               accounting.ChargeID(id),
			Amount:           accounting.MustParseMoney(amount),
			AlreadyAllocated: accounting.MustParseMoney(allocated),
			DueDate:          accounting.DateFromTime(due),
		})
	}
	return out, rows.Err()
}

// SavePaymentWithAllocations persists a payment and the allocator's
// output for it in a single transaction, keeping the write atomic
// relative to the snapshot the allocation was computed from.
func (s *Store) SavePaymentWithAllocations(ctx context.Context, p Payment, allocations []accounting.Allocation) (Payment, []AllocationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = newID()
	}
	p.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Payment{}, nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (id, org_id, lease_id, paid_at, amount, method, reference, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrgID, p.LeaseID, p.PaidAt.Format(dateFmt), p.Amount.String(),
		p.Method, p.Reference, p.Notes, p.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return Payment{}, nil, err
	}

	records := make([]AllocationRecord, 0, len(allocations))
	for _, a := range allocations {
		rec := AllocationRecord{
			ID:        newID(),
			OrgID:     p.OrgID,
			PaymentID: p.ID,
			ChargeID:  string(a.ChargeID),
			Amount:    a.Amount,
			CreatedAt: p.CreatedAt,
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO allocations (id, org_id, payment_id, charge_id, amount, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.OrgID, rec.PaymentID, rec.ChargeID, rec.Amount.String(),
			rec.CreatedAt.Format(time.RFC3339))
		if err != nil {
			return Payment{}, nil, err
		}
		records = append(records, rec)
	}

	if err := tx.Commit(); err != nil {
		return Payment{}, nil, err
	}
	return p, records, nil
}

func (s *Store) ListPayments(ctx context.Context, orgID string, leaseID *string) ([]Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, org_id, lease_id, paid_at, amount, method, reference, notes, created_at
		FROM payments WHERE org_id = ?`
	args := []any{orgID}
	if leaseID != nil {
		query += ` AND lease_id = ?`
		args = append(args, *leaseID)
	}
	query += ` ORDER BY paid_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		var paidAt, amount, createdAt string
		if err := rows.Scan(&p.ID, &p.OrgID, &p.LeaseID, &paidAt, &amount, &p.Method, &p.Reference, &p.Notes, &createdAt); err != nil {
			return nil, err
		}
		p.PaidAt, _ = time.Parse(dateFmt, paidAt)
		p.Amount = accounting.MustParseMoney(amount)
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListAllocations returns all allocations for an org as engine records.
func (s *Store) ListAllocations(ctx context.Context, orgID string) ([]accounting.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryAllocations(ctx,
		`SELECT charge_id, amount FROM allocations WHERE org_id = ?`, orgID)
}

// ListRentAllocations returns allocations applied to RENT charges for
// an org - the profitability calculator's income input.
func (s *Store) ListRentAllocations(ctx context.Context, orgID string) ([]accounting.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryAllocations(ctx, `
		SELECT a.charge_id, a.amount
		FROM allocations a
		JOIN charges c ON c.id = a.charge_id
		WHERE a.org_id = ? AND c.charge_type = 'RENT'`, orgID)
}

func (s *Store) queryAllocations(ctx context.Context, query string, args ...any) ([]accounting.Allocation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []accounting.Allocation
	for rows.Next() {
		var chargeID, amount string
		if err := rows.Scan(&chargeID, &amount); err != nil {
			return nil, err
		}
		out = append(out, accounting.Allocation{
			ChargeID: accounting.ChargeID(chargeID),
			Amount:   accounting.MustParseMoney(amount),
		})
	}
	return out, rows.Err()
}

// =============================================================================
// EXPENSES
// =============================================================================

func (s *Store) SaveExpense(ctx context.Context, e Expense) (Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = newID()
	}
	e.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, org_id, property_id, incurred_at, amount, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OrgID, e.PropertyID, e.IncurredAt.Format(dateFmt),
		e.Amount.String(), e.Description, e.CreatedAt.Format(time.RFC3339))
	return e, err
}

func (s *Store) ListExpenses(ctx context.Context, orgID string, propertyID *string) ([]Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, org_id, property_id, incurred_at, amount, description, created_at
		FROM expenses WHERE org_id = ?`
	args := []any{orgID}
	if propertyID != nil {
		query += ` AND property_id = ?`
		args = append(args, *propertyID)
	}
	query += ` ORDER BY incurred_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		var e Expense
		var incurredAt, amount, createdAt string
		if err := rows.Scan(&e.ID, &e.OrgID, &e.PropertyID, &incurredAt, &amount, &e.Description, &createdAt); err != nil {
			return nil, err
		}
		e.IncurredAt, _ = time.Parse(dateFmt, incurredAt)
		e.Amount = accounting.MustParseMoney(amount)
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// AccountingExpenses converts org expenses to the engine's view.
func (s *Store) AccountingExpenses(ctx context.Context, orgID string) ([]accounting.Expense, error) {
	records, err := s.ListExpenses(ctx, orgID, nil)
	if err != nil {
		return nil, err
	}
	out := make([]accounting.Expense, len(records))
	for i, e := range records {
		out[i] = accounting.Expense{Amount: e.Amount}
	}
	return out, nil
}

// =============================================================================
// DASHBOARD AGGREGATES
// =============================================================================

// DashboardCounts holds the portfolio-level numbers for the dashboard.
type DashboardCounts struct {
	PropertiesCount   int
	TenantsCount      int
	ActiveLeasesCount int
	TotalRent         accounting.Money
	Expiring30        int
	Expiring60        int
	Expiring90        int
}

// GetDashboardCounts computes portfolio counts and lease expiry buckets
// (leases ending within 30/60/90 days of now).
func (s *Store) GetDashboardCounts(ctx context.Context, orgID string, now time.Time) (DashboardCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var counts DashboardCounts
	counts.TotalRent = accounting.ZeroMoney()

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM properties WHERE org_id = ?`, orgID).Scan(&counts.PropertiesCount)
	if err != nil {
		return counts, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tenants WHERE org_id = ?`, orgID).Scan(&counts.TenantsCount)
	if err != nil {
		return counts, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT rent_amount, end_date FROM leases WHERE org_id = ? AND status = 'ACTIVE'`, orgID)
	if err != nil {
		return counts, err
	}
	defer rows.Close()

	in30 := now.AddDate(0, 0, 30)
	in60 := now.AddDate(0, 0, 60)
	in90 := now.AddDate(0, 0, 90)

	for rows.Next() {
		var rentAmount, endDateStr string
		if err := rows.Scan(&rentAmount, &endDateStr); err != nil {
			return counts, err
		}
		counts.ActiveLeasesCount++
		counts.TotalRent = counts.TotalRent.Add(accounting.MustParseMoney(rentAmount))

		endDate, _ := time.Parse(dateFmt, endDateStr)
		switch {
		case endDate.Before(now):
			// Lease already past its end but not yet marked ENDED
		case !endDate.After(in30):
			counts.Expiring30++
		case !endDate.After(in60):
			counts.Expiring60++
		case !endDate.After(in90):
			counts.Expiring90++
		}
	}
	return counts, rows.Err()
}
