package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/domain"
	odomain "github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

//go:embed migrations_postgres.sql
var postgresMigrations string

// SQL implements port.CustomerStore over database/sql. Queries are written
// with ? placeholders and rebound to $n for PostgreSQL.
type SQL struct {
	db       *sql.DB
	postgres bool
	now      func() time.Time
}

// NewSQLite opens (and creates) the database file at path.
func NewSQLite(path string) (*SQL, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path not set")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// modernc.org/sqlite applies _pragma on every new connection.
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite has a single writer; one connection serializes checkpoints
	// instead of failing them with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return initSQL(db, sqliteMigrations, false)
}

// NewPostgres connects to the database at dsn.
func NewPostgres(dsn string) (*SQL, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	return initSQL(db, postgresMigrations, true)
}

func initSQL(db *sql.DB, migrations string, postgres bool) (*SQL, error) {
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQL{db: db, postgres: postgres, now: time.Now}, nil
}

// rebind rewrites ? placeholders as $1, $2... for PostgreSQL.
func (s *SQL) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Upsert inserts c or overwrites every column but id. c.LastVisit is stamped.
func (s *SQL) Upsert(ctx context.Context, c *odomain.StoredCustomer) error {
	email := normalizeEmail(c.Email)
	if email == "" {
		return &domain.ErrValidation{Field: "email", Message: "required"}
	}
	id := c.ID
	if id == "" {
		id = newID()
	}

	rep, err := marshalNullable(c.AssignedRepresentative, c.AssignedRepresentative == nil)
	if err != nil {
		return fmt.Errorf("marshal representative: %w", err)
	}
	kyc, err := marshalNullable(c.KYC, c.KYC == nil)
	if err != nil {
		return fmt.Errorf("marshal kyc: %w", err)
	}

	now := s.now()
	query := `
	INSERT INTO customers (
		email, id, name, business_name, mobile_number, service_type,
		selected_pos_model, selected_pg_plan, selected_pricing_plan,
		business_category, annual_turnover, onboarding_step, last_visit,
		is_onboarding_complete, representative_json, kyc_json, case_number)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(email) DO UPDATE SET
		name = excluded.name,
		business_name = excluded.business_name,
		mobile_number = excluded.mobile_number,
		service_type = excluded.service_type,
		selected_pos_model = excluded.selected_pos_model,
		selected_pg_plan = excluded.selected_pg_plan,
		selected_pricing_plan = excluded.selected_pricing_plan,
		business_category = excluded.business_category,
		annual_turnover = excluded.annual_turnover,
		onboarding_step = excluded.onboarding_step,
		last_visit = excluded.last_visit,
		is_onboarding_complete = excluded.is_onboarding_complete,
		representative_json = excluded.representative_json,
		kyc_json = excluded.kyc_json,
		case_number = excluded.case_number`

	_, err = s.db.ExecContext(ctx, s.rebind(query),
		email, id, c.Name, c.BusinessName, c.MobileNumber, string(c.ServiceType),
		c.SelectedPOSModel, c.SelectedPGPlan, c.SelectedPricingPlan,
		c.BusinessCategory, c.AnnualTurnover, string(c.OnboardingStep), now.UnixMilli(),
		c.IsOnboardingComplete, rep, kyc, c.CaseNumber,
	)
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	c.LastVisit = time.UnixMilli(now.UnixMilli())
	return nil
}

const customerColumns = `
	email, id, name, business_name, mobile_number, service_type,
	selected_pos_model, selected_pg_plan, selected_pricing_plan,
	business_category, annual_turnover, onboarding_step, last_visit,
	is_onboarding_complete, representative_json, kyc_json, case_number`

// FindByEmail returns the customer with its history, or (nil, nil).
func (s *SQL) FindByEmail(ctx context.Context, email string) (*odomain.StoredCustomer, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+customerColumns+` FROM customers WHERE email = ?`),
		normalizeEmail(email))
	return s.loadCustomer(ctx, row)
}

// FindByMobile returns the most recently visited customer with mobile.
func (s *SQL) FindByMobile(ctx context.Context, mobile string) (*odomain.StoredCustomer, error) {
	if mobile == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+customerColumns+` FROM customers WHERE mobile_number = ? ORDER BY last_visit DESC LIMIT 1`),
		mobile)
	return s.loadCustomer(ctx, row)
}

func (s *SQL) loadCustomer(ctx context.Context, row *sql.Row) (*odomain.StoredCustomer, error) {
	var c odomain.StoredCustomer
	var serviceType, step string
	var lastVisit int64
	var rep, kyc sql.NullString

	err := row.Scan(
		&c.Email, &c.ID, &c.Name, &c.BusinessName, &c.MobileNumber, &serviceType,
		&c.SelectedPOSModel, &c.SelectedPGPlan, &c.SelectedPricingPlan,
		&c.BusinessCategory, &c.AnnualTurnover, &step, &lastVisit,
		&c.IsOnboardingComplete, &rep, &kyc, &c.CaseNumber,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan customer row: %w", err)
	}

	c.ServiceType = odomain.ServiceType(serviceType)
	c.OnboardingStep = odomain.Step(step)
	c.LastVisit = time.UnixMilli(lastVisit)
	if rep.Valid {
		c.AssignedRepresentative = &odomain.Representative{}
		if err := json.Unmarshal([]byte(rep.String), c.AssignedRepresentative); err != nil {
			return nil, fmt.Errorf("decode representative: %w", err)
		}
	}
	if kyc.Valid {
		c.KYC = &odomain.KYCRecord{}
		if err := json.Unmarshal([]byte(kyc.String), c.KYC); err != nil {
			return nil, fmt.Errorf("decode kyc: %w", err)
		}
	}

	history, err := s.history(ctx, c.Email)
	if err != nil {
		return nil, err
	}
	c.ConversationHistory = history
	return &c, nil
}

func (s *SQL) history(ctx context.Context, email string) ([]odomain.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT step, created_at, data_json FROM customer_history WHERE email = ? ORDER BY id`),
		email)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	history := []odomain.HistoryEntry{}
	for rows.Next() {
		var h odomain.HistoryEntry
		var step string
		var ts int64
		var data sql.NullString
		if err := rows.Scan(&step, &ts, &data); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		h.Step = odomain.Step(step)
		h.Timestamp = time.UnixMilli(ts)
		if data.Valid {
			if err := json.Unmarshal([]byte(data.String), &h.Data); err != nil {
				return nil, fmt.Errorf("decode history data: %w", err)
			}
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// AppendHistory adds entry to the customer's history. The customer must exist.
func (s *SQL) AppendHistory(ctx context.Context, email string, entry odomain.HistoryEntry) error {
	email = normalizeEmail(email)

	var exists int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM customers WHERE email = ?`), email).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.ErrNotFound{Resource: "customer", ID: email}
	}
	if err != nil {
		return fmt.Errorf("check customer: %w", err)
	}

	data, err := marshalNullable(entry.Data, len(entry.Data) == 0)
	if err != nil {
		return fmt.Errorf("marshal history data: %w", err)
	}
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	_, err = s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO customer_history (email, step, created_at, data_json) VALUES (?, ?, ?, ?)`),
		email, string(entry.Step), ts.UnixMilli(), data)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (s *SQL) NewID() string { return newID() }

// Ping verifies database connectivity.
func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQL) Close() error {
	return s.db.Close()
}

func marshalNullable(v any, isNil bool) (any, error) {
	if isNil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
