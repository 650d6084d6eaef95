/*
Package sqlite provides a SQLite-backed implementation of the engine
storage interfaces.

PURPOSE:
  Implements engine.TxStore (settings, contracts, payments, refunds)
  using SQLite. The same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

LEDGER ENFORCEMENT:
  payments has PRIMARY KEY (contract_id, due_index) and the store issues
  no UPDATE or DELETE against it. A duplicate installment write surfaces
  as engine.DuplicateInstallmentError, never an overwrite.

SETTINGS INVARIANT:
  A partial unique index keeps at most one active settings row per
  caisse type; ActivateSettings flips the target and its siblings inside
  one SQL transaction, so partial failure cannot leave zero or multiple
  active versions.

MONEY:
  Decimal amounts are stored as TEXT and parsed with shopspring/decimal.
  REAL columns would reintroduce the float errors the engine avoids.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  st, err := sqlite.New("./data/caisse.db")
  if err != nil { log.Fatal(err) }
  defer st.Close()
  svc := contracts.NewService(st, engine.SystemClock{})

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/mutuelle/caisse-engine/engine"
)

// Store implements engine.TxStore using SQLite.
type Store struct {
	db *sql.DB
	queries
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, queries: queries{q: db}}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// WithTx executes fn against a transactional view of the store.
func (s *Store) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(queries{q: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Versioned bonus settings (immutable once superseded)
	CREATE TABLE IF NOT EXISTS bonus_settings (
		id TEXT PRIMARY KEY,
		caisse_type TEXT NOT NULL,
		bonus_table_json TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT FALSE,
		version INTEGER NOT NULL DEFAULT 1,
		effective_at TEXT,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: at most one active settings row per caisse type
	CREATE UNIQUE INDEX IF NOT EXISTS idx_settings_one_active
		ON bonus_settings(caisse_type) WHERE active;

	CREATE INDEX IF NOT EXISTS idx_settings_type
		ON bonus_settings(caisse_type, version DESC);

	-- Contracts (status is a cached projection of the ledger)
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		caisse_type TEXT NOT NULL,
		member_id TEXT NOT NULL,
		installment_amount TEXT NOT NULL,
		installments INTEGER NOT NULL,
		start_date TEXT NOT NULL,
		status TEXT NOT NULL,
		settings_id TEXT,
		withdrawal_requested_at TEXT,
		withdrawal_type TEXT,
		refund_recorded_at TEXT,
		refund_settled_at TEXT,
		rescinded_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contracts_member
		ON contracts(member_id);
	CREATE INDEX IF NOT EXISTS idx_contracts_status
		ON contracts(status);

	-- Payments (append-only installment ledger)
	-- The composite key enforces one record per installment.
	CREATE TABLE IF NOT EXISTS payments (
		contract_id TEXT NOT NULL,
		due_index INTEGER NOT NULL,
		due_at TEXT NOT NULL,
		paid_at TEXT,
		amount TEXT NOT NULL,
		penalty_applied TEXT NOT NULL,
		mode TEXT,
		created_at TEXT NOT NULL,
		PRIMARY KEY (contract_id, due_index)
	);

	-- Refunds (immutable after creation except the settled flip)
	CREATE TABLE IF NOT EXISTS refunds (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL,
		type TEXT NOT NULL,
		amount_nominal TEXT NOT NULL,
		amount_bonus TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_refunds_contract
		ON refunds(contract_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// QUERIES - Shared between the root store and transactional views
// =============================================================================

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	q dbtx
}

var _ engine.Store = queries{}

// -----------------------------------------------------------------------------
// Settings
// -----------------------------------------------------------------------------

const settingsColumns = `id, caisse_type, bonus_table_json, active, version, effective_at, created_at`

func (s queries) ActiveSettings(ctx context.Context, t engine.CaisseType) (*engine.BonusSettings, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+settingsColumns+` FROM bonus_settings WHERE caisse_type = ? AND active`, string(t))
	out, err := scanSettings(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return out, err
}

func (s queries) GetSettings(ctx context.Context, id engine.SettingsID) (*engine.BonusSettings, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+settingsColumns+` FROM bonus_settings WHERE id = ?`, string(id))
	out, err := scanSettings(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrSettingsNotFound
	}
	return out, err
}

func (s queries) ListSettings(ctx context.Context, t engine.CaisseType) ([]engine.BonusSettings, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+settingsColumns+` FROM bonus_settings WHERE caisse_type = ? ORDER BY version DESC`, string(t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.BonusSettings
	for rows.Next() {
		rec, err := scanSettings(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s queries) SaveSettings(ctx context.Context, rec engine.BonusSettings) error {
	table, err := json.Marshal(tableToJSON(rec.BonusTable))
	if err != nil {
		return fmt.Errorf("marshal bonus table: %w", err)
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO bonus_settings (`+settingsColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(rec.ID), string(rec.CaisseType), string(table), rec.Active,
		rec.Version, nullTime(timePtr(rec.EffectiveAt)), formatTime(rec.CreatedAt))
	return err
}

func (s queries) ActivateSettings(ctx context.Context, id engine.SettingsID) error {
	var caisse string
	err := s.q.QueryRowContext(ctx,
		`SELECT caisse_type FROM bonus_settings WHERE id = ?`, string(id)).Scan(&caisse)
	if err == sql.ErrNoRows {
		return engine.ErrSettingsNotFound
	}
	if err != nil {
		return err
	}

	// Deactivate siblings first so the partial unique index never sees
	// two active rows for the type.
	if _, err := s.q.ExecContext(ctx,
		`UPDATE bonus_settings SET active = FALSE WHERE caisse_type = ? AND active`, caisse); err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx,
		`UPDATE bonus_settings SET active = TRUE WHERE id = ?`, string(id))
	return err
}

// -----------------------------------------------------------------------------
// Contracts
// -----------------------------------------------------------------------------

const contractColumns = `id, caisse_type, member_id, installment_amount, installments, start_date,
	status, settings_id, withdrawal_requested_at, withdrawal_type, refund_recorded_at,
	refund_settled_at, rescinded_at, created_at`

func (s queries) SaveContract(ctx context.Context, c engine.Contract) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO contracts (`+contractColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(c.ID), string(c.CaisseType), string(c.MemberID),
		c.InstallmentAmount.String(), c.Installments, formatTime(c.StartDate),
		string(c.Status), string(c.SettingsID),
		nullTime(c.WithdrawalRequestedAt), string(c.WithdrawalType),
		nullTime(c.RefundRecordedAt), nullTime(c.RefundSettledAt),
		nullTime(c.RescindedAt), formatTime(c.CreatedAt))
	return err
}

func (s queries) GetContract(ctx context.Context, id engine.ContractID) (*engine.Contract, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE id = ?`, string(id))
	out, err := scanContract(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrContractNotFound
	}
	return out, err
}

func (s queries) ListContracts(ctx context.Context, member engine.MemberID) ([]engine.Contract, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE member_id = ? ORDER BY created_at`, string(member))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s queries) UpdateContract(ctx context.Context, c engine.Contract) error {
	// Only the projection fields mutate; amounts and start date are
	// immutable after creation.
	res, err := s.q.ExecContext(ctx,
		`UPDATE contracts SET status = ?, withdrawal_requested_at = ?, withdrawal_type = ?,
			refund_recorded_at = ?, refund_settled_at = ?, rescinded_at = ?
		 WHERE id = ?`,
		string(c.Status), nullTime(c.WithdrawalRequestedAt), string(c.WithdrawalType),
		nullTime(c.RefundRecordedAt), nullTime(c.RefundSettledAt), nullTime(c.RescindedAt),
		string(c.ID))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return engine.ErrContractNotFound
	}
	return err
}

// -----------------------------------------------------------------------------
// Payments (append-only)
// -----------------------------------------------------------------------------

func (s queries) Payments(ctx context.Context, id engine.ContractID) ([]engine.Payment, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT contract_id, due_index, due_at, paid_at, amount, penalty_applied, mode, created_at
		 FROM payments WHERE contract_id = ? ORDER BY due_index`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Payment
	for rows.Next() {
		var (
			p         engine.Payment
			cid       string
			dueAt     string
			paidAt    sql.NullString
			amount    string
			penalty   string
			mode      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&cid, &p.DueIndex, &dueAt, &paidAt, &amount, &penalty, &mode, &createdAt); err != nil {
			return nil, err
		}
		p.ContractID = engine.ContractID(cid)
		if p.DueAt, err = parseTime(dueAt); err != nil {
			return nil, err
		}
		if p.PaidAt, err = parseNullTime(paidAt); err != nil {
			return nil, err
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		if p.PenaltyApplied, err = decimal.NewFromString(penalty); err != nil {
			return nil, fmt.Errorf("parse penalty: %w", err)
		}
		p.Mode = engine.PaymentMode(mode.String)
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s queries) RecordPayment(ctx context.Context, p engine.Payment) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO payments (contract_id, due_index, due_at, paid_at, amount, penalty_applied, mode, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.ContractID), p.DueIndex, formatTime(p.DueAt), nullTime(p.PaidAt),
		p.Amount.String(), p.PenaltyApplied.String(), string(p.Mode), formatTime(p.CreatedAt))
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return &engine.DuplicateInstallmentError{
			ContractID: p.ContractID,
			DueIndex:   p.DueIndex,
		}
	}
	return err
}

// -----------------------------------------------------------------------------
// Refunds
// -----------------------------------------------------------------------------

func (s queries) SaveRefund(ctx context.Context, r engine.Refund) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO refunds (id, contract_id, type, amount_nominal, amount_bonus, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(r.ID), string(r.ContractID), string(r.Type),
		r.AmountNominal.String(), r.AmountBonus.String(), string(r.Status), formatTime(r.CreatedAt))
	return err
}

func (s queries) GetRefund(ctx context.Context, id engine.RefundID) (*engine.Refund, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, contract_id, type, amount_nominal, amount_bonus, status, created_at
		 FROM refunds WHERE id = ?`, string(id))
	out, err := scanRefund(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrRefundNotFound
	}
	return out, err
}

func (s queries) RefundsByContract(ctx context.Context, id engine.ContractID) ([]engine.Refund, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, contract_id, type, amount_nominal, amount_bonus, status, created_at
		 FROM refunds WHERE contract_id = ? ORDER BY created_at`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Refund
	for rows.Next() {
		r, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s queries) MarkRefundSettled(ctx context.Context, id engine.RefundID) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE refunds SET status = ? WHERE id = ?`, string(engine.RefundSettled), string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return engine.ErrRefundNotFound
	}
	return err
}

// =============================================================================
// SCAN + FORMAT HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSettings(row rowScanner) (*engine.BonusSettings, error) {
	var (
		rec         engine.BonusSettings
		id          string
		caisse      string
		tableJSON   string
		effectiveAt sql.NullString
		createdAt   string
	)
	err := row.Scan(&id, &caisse, &tableJSON, &rec.Active, &rec.Version, &effectiveAt, &createdAt)
	if err != nil {
		return nil, err
	}
	rec.ID = engine.SettingsID(id)
	rec.CaisseType = engine.CaisseType(caisse)

	var raw map[string]string
	if err := json.Unmarshal([]byte(tableJSON), &raw); err != nil {
		return nil, fmt.Errorf("parse bonus table: %w", err)
	}
	if rec.BonusTable, err = tableFromJSON(raw); err != nil {
		return nil, err
	}

	effective, err := parseNullTime(effectiveAt)
	if err != nil {
		return nil, err
	}
	if effective != nil {
		rec.EffectiveAt = *effective
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanContract(row rowScanner) (*engine.Contract, error) {
	var (
		c          engine.Contract
		id         string
		caisse     string
		member     string
		amount     string
		startDate  string
		status     string
		settingsID sql.NullString
		wReq       sql.NullString
		wType      sql.NullString
		rRec       sql.NullString
		rSet       sql.NullString
		resc       sql.NullString
		createdAt  string
	)
	err := row.Scan(&id, &caisse, &member, &amount, &c.Installments, &startDate,
		&status, &settingsID, &wReq, &wType, &rRec, &rSet, &resc, &createdAt)
	if err != nil {
		return nil, err
	}
	c.ID = engine.ContractID(id)
	c.CaisseType = engine.CaisseType(caisse)
	c.MemberID = engine.MemberID(member)
	if c.InstallmentAmount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse installment amount: %w", err)
	}
	if c.StartDate, err = parseTime(startDate); err != nil {
		return nil, err
	}
	c.Status = engine.State(status)
	c.SettingsID = engine.SettingsID(settingsID.String)
	if c.WithdrawalRequestedAt, err = parseNullTime(wReq); err != nil {
		return nil, err
	}
	c.WithdrawalType = engine.RefundType(wType.String)
	if c.RefundRecordedAt, err = parseNullTime(rRec); err != nil {
		return nil, err
	}
	if c.RefundSettledAt, err = parseNullTime(rSet); err != nil {
		return nil, err
	}
	if c.RescindedAt, err = parseNullTime(resc); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanRefund(row rowScanner) (*engine.Refund, error) {
	var (
		r         engine.Refund
		id        string
		cid       string
		typ       string
		nominal   string
		bonus     string
		status    string
		createdAt string
	)
	if err := row.Scan(&id, &cid, &typ, &nominal, &bonus, &status, &createdAt); err != nil {
		return nil, err
	}
	r.ID = engine.RefundID(id)
	r.ContractID = engine.ContractID(cid)
	r.Type = engine.RefundType(typ)
	var err error
	if r.AmountNominal, err = decimal.NewFromString(nominal); err != nil {
		return nil, fmt.Errorf("parse nominal: %w", err)
	}
	if r.AmountBonus, err = decimal.NewFromString(bonus); err != nil {
		return nil, fmt.Errorf("parse bonus: %w", err)
	}
	r.Status = engine.RefundStatus(status)
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func tableToJSON(table map[int]decimal.Decimal) map[string]string {
	out := make(map[string]string, len(table))
	for idx, rate := range table {
		out[fmt.Sprintf("%d", idx)] = rate.String()
	}
	return out
}

func tableFromJSON(raw map[string]string) (map[int]decimal.Decimal, error) {
	out := make(map[int]decimal.Decimal, len(raw))
	for k, v := range raw {
		var idx int
		if _, err := fmt.Sscanf(k, "%d", &idx); err != nil {
			return nil, fmt.Errorf("invalid month index %q", k)
		}
		rate, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid rate %q: %w", v, err)
		}
		out[idx] = rate
	}
	return out, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return formatTime(*t)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
