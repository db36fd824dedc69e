package crm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/eprofos/backoffice/internal/db"
)

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool // nil on transactional views
	q    pgxQuerier
}

// pgxQuerier is the query surface shared by db.Pool and pgx.Tx.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, q: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Tests pass a pgxmock pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: pool}
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS prospects (
	id                  TEXT PRIMARY KEY,
	email               TEXT NOT NULL,
	first_name          TEXT NOT NULL DEFAULT '',
	last_name           TEXT NOT NULL DEFAULT '',
	phone               TEXT NOT NULL DEFAULT '',
	company             TEXT NOT NULL DEFAULT '',
	position            TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL DEFAULT 'lead',
	priority            TEXT NOT NULL DEFAULT 'medium',
	source              TEXT NOT NULL DEFAULT 'website',
	last_contact_date   TIMESTAMPTZ,
	next_follow_up_date TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- Deliberately non-unique: two concurrent first touchpoints for the same
-- new email may both insert, and consolidation corrects it afterwards.
CREATE INDEX IF NOT EXISTS idx_prospects_email ON prospects(email);

CREATE TABLE IF NOT EXISTS prospect_events (
	seq         BIGSERIAL PRIMARY KEY,
	prospect_id TEXT NOT NULL REFERENCES prospects(id),
	event_type  TEXT NOT NULL,
	body        TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_prospect_events_prospect ON prospect_events(prospect_id);

CREATE TABLE IF NOT EXISTS formations (
	id    TEXT PRIMARY KEY,
	title TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS services (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS prospect_formations (
	prospect_id  TEXT NOT NULL REFERENCES prospects(id),
	formation_id TEXT NOT NULL REFERENCES formations(id),
	PRIMARY KEY (prospect_id, formation_id)
);

CREATE TABLE IF NOT EXISTS prospect_services (
	prospect_id TEXT NOT NULL REFERENCES prospects(id),
	service_id  TEXT NOT NULL REFERENCES services(id),
	PRIMARY KEY (prospect_id, service_id)
);

CREATE TABLE IF NOT EXISTS contact_requests (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	first_name  TEXT NOT NULL DEFAULT '',
	last_name   TEXT NOT NULL DEFAULT '',
	email       TEXT NOT NULL,
	phone       TEXT NOT NULL DEFAULT '',
	company     TEXT NOT NULL DEFAULT '',
	subject     TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL DEFAULT '',
	service_id  TEXT,
	prospect_id TEXT REFERENCES prospects(id),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS session_registrations (
	id                   TEXT PRIMARY KEY,
	first_name           TEXT NOT NULL DEFAULT '',
	last_name            TEXT NOT NULL DEFAULT '',
	email                TEXT NOT NULL,
	phone                TEXT NOT NULL DEFAULT '',
	company              TEXT NOT NULL DEFAULT '',
	position             TEXT NOT NULL DEFAULT '',
	special_requirements TEXT NOT NULL DEFAULT '',
	formation_id         TEXT NOT NULL,
	prospect_id          TEXT REFERENCES prospects(id),
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS needs_analysis_requests (
	id              TEXT PRIMARY KEY,
	recipient_name  TEXT NOT NULL DEFAULT '',
	recipient_email TEXT NOT NULL,
	company_name    TEXT NOT NULL DEFAULT '',
	admin_notes     TEXT NOT NULL DEFAULT '',
	formation_id    TEXT,
	prospect_id     TEXT REFERENCES prospects(id),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_contact_requests_prospect ON contact_requests(prospect_id);
CREATE INDEX IF NOT EXISTS idx_session_registrations_prospect ON session_registrations(prospect_id);
CREATE INDEX IF NOT EXISTS idx_needs_analysis_requests_prospect ON needs_analysis_requests(prospect_id);
`

// migrationLockKey serializes schema migration across overlapping deploys.
const migrationLockKey = 7262051

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if s.pool == nil {
		return eris.New("postgres: migrate inside transaction")
	}
	if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return eris.Wrap(err, "postgres: acquire migration advisory lock")
	}
	defer func() {
		if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockKey); err != nil {
			zap.L().Warn("postgres: failed to release migration advisory lock", zap.Error(err))
		}
	}()

	_, err := s.pool.Exec(ctx, postgresSchema)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// InTx runs fn inside a transaction. A transactional view joins the
// already-open transaction instead of nesting.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(&PostgresStore{q: tx}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

// --- Prospects ---

func (s *PostgresStore) CreateProspect(ctx context.Context, p *Prospect) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := s.q.Exec(ctx,
		`INSERT INTO prospects (`+prospectColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.Email, p.FirstName, p.LastName, p.Phone, p.Company, p.Position,
		string(p.Status), string(p.Priority), p.Source,
		p.LastContactDate, p.NextFollowUpDate, p.CreatedAt, p.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert prospect")
}

func (s *PostgresStore) UpdateProspect(ctx context.Context, p *Prospect) error {
	p.UpdatedAt = time.Now().UTC()
	tag, err := s.q.Exec(ctx,
		`UPDATE prospects SET email = $2, first_name = $3, last_name = $4, phone = $5,
			company = $6, position = $7, status = $8, priority = $9, source = $10,
			last_contact_date = $11, next_follow_up_date = $12, updated_at = $13
		 WHERE id = $1`,
		p.ID, p.Email, p.FirstName, p.LastName, p.Phone,
		p.Company, p.Position, string(p.Status), string(p.Priority), p.Source,
		p.LastContactDate, p.NextFollowUpDate, p.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update prospect %s", p.ID)
	}
	return checkTagRows(tag, "prospect", p.ID)
}

func (s *PostgresStore) GetProspect(ctx context.Context, id string) (*Prospect, error) {
	return scanProspectPgx(s.q.QueryRow(ctx,
		`SELECT `+prospectColumns+` FROM prospects WHERE id = $1`, id))
}

func (s *PostgresStore) FindProspectByEmail(ctx context.Context, email string) (*Prospect, error) {
	return scanProspectPgx(s.q.QueryRow(ctx,
		`SELECT `+prospectColumns+` FROM prospects WHERE email = $1
		 ORDER BY created_at ASC, id ASC LIMIT 1`, email))
}

func (s *PostgresStore) DeleteProspect(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM prospects WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete prospect %s", id)
	}
	return checkTagRows(tag, "prospect", id)
}

func (s *PostgresStore) ListProspects(ctx context.Context, limit, offset int) ([]Prospect, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q.Query(ctx,
		`SELECT `+prospectColumns+` FROM prospects
		 ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list prospects")
	}
	defer rows.Close()
	return collectProspectsPgx(rows)
}

func (s *PostgresStore) CountProspectsByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.q.Query(ctx, `SELECT status, COUNT(*) FROM prospects GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count prospects by status")
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		counts[Status(st)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count prospects iterate")
}

// --- Duplicates ---

func (s *PostgresStore) DuplicateEmails(ctx context.Context) ([]EmailCount, error) {
	rows, err := s.q.Query(ctx,
		`SELECT email, COUNT(*) FROM prospects GROUP BY email HAVING COUNT(*) > 1 ORDER BY email`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: duplicate emails")
	}
	defer rows.Close()

	var out []EmailCount
	for rows.Next() {
		var ec EmailCount
		if err := rows.Scan(&ec.Email, &ec.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan duplicate email")
		}
		out = append(out, ec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: duplicate emails iterate")
}

func (s *PostgresStore) ListProspectsByEmail(ctx context.Context, email string) ([]Prospect, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+prospectColumns+` FROM prospects WHERE email = $1 ORDER BY created_at ASC, id ASC`,
		email)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list prospects for %s", email)
	}
	defer rows.Close()
	return collectProspectsPgx(rows)
}

// --- Events ---

func (s *PostgresStore) AppendEvent(ctx context.Context, ev *ProspectEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	err := s.q.QueryRow(ctx,
		`INSERT INTO prospect_events (prospect_id, event_type, body, occurred_at)
		 VALUES ($1, $2, $3, $4) RETURNING seq`,
		ev.ProspectID, ev.Type, ev.Body, ev.OccurredAt,
	).Scan(&ev.Seq)
	return eris.Wrapf(err, "postgres: append event for %s", ev.ProspectID)
}

func (s *PostgresStore) ListEvents(ctx context.Context, prospectID string) ([]ProspectEvent, error) {
	rows, err := s.q.Query(ctx,
		`SELECT seq, prospect_id, event_type, body, occurred_at FROM prospect_events
		 WHERE prospect_id = $1 ORDER BY occurred_at ASC, seq ASC`, prospectID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list events for %s", prospectID)
	}
	defer rows.Close()

	var events []ProspectEvent
	for rows.Next() {
		var ev ProspectEvent
		if err := rows.Scan(&ev.Seq, &ev.ProspectID, &ev.Type, &ev.Body, &ev.OccurredAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list events iterate")
}

func (s *PostgresStore) RepointEvents(ctx context.Context, sourceID, targetID string) error {
	_, err := s.q.Exec(ctx,
		`UPDATE prospect_events SET prospect_id = $1 WHERE prospect_id = $2`, targetID, sourceID)
	return eris.Wrapf(err, "postgres: repoint events %s -> %s", sourceID, targetID)
}

// --- Interests ---

func (s *PostgresStore) AddFormationInterest(ctx context.Context, prospectID, formationID string) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO prospect_formations (prospect_id, formation_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, prospectID, formationID)
	return eris.Wrap(err, "postgres: add formation interest")
}

func (s *PostgresStore) AddServiceInterest(ctx context.Context, prospectID, serviceID string) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO prospect_services (prospect_id, service_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, prospectID, serviceID)
	return eris.Wrap(err, "postgres: add service interest")
}

func (s *PostgresStore) ListFormationInterests(ctx context.Context, prospectID string) ([]Formation, error) {
	rows, err := s.q.Query(ctx,
		`SELECT f.id, f.title FROM formations f
		 JOIN prospect_formations pf ON pf.formation_id = f.id
		 WHERE pf.prospect_id = $1 ORDER BY f.title`, prospectID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list formation interests")
	}
	defer rows.Close()

	var out []Formation
	for rows.Next() {
		var f Formation
		if err := rows.Scan(&f.ID, &f.Title); err != nil {
			return nil, eris.Wrap(err, "postgres: scan formation interest")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: formation interests iterate")
}

func (s *PostgresStore) ListServiceInterests(ctx context.Context, prospectID string) ([]Service, error) {
	rows, err := s.q.Query(ctx,
		`SELECT sv.id, sv.name FROM services sv
		 JOIN prospect_services ps ON ps.service_id = sv.id
		 WHERE ps.prospect_id = $1 ORDER BY sv.name`, prospectID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list service interests")
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var sv Service
		if err := rows.Scan(&sv.ID, &sv.Name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan service interest")
		}
		out = append(out, sv)
	}
	return out, eris.Wrap(rows.Err(), "postgres: service interests iterate")
}

func (s *PostgresStore) RepointInterests(ctx context.Context, sourceID, targetID string) error {
	steps := []struct {
		desc string
		sql  string
		args []any
	}{
		{"union formations", `INSERT INTO prospect_formations (prospect_id, formation_id)
			SELECT $1, formation_id FROM prospect_formations WHERE prospect_id = $2
			ON CONFLICT DO NOTHING`, []any{targetID, sourceID}},
		{"drop source formations", `DELETE FROM prospect_formations WHERE prospect_id = $1`, []any{sourceID}},
		{"union services", `INSERT INTO prospect_services (prospect_id, service_id)
			SELECT $1, service_id FROM prospect_services WHERE prospect_id = $2
			ON CONFLICT DO NOTHING`, []any{targetID, sourceID}},
		{"drop source services", `DELETE FROM prospect_services WHERE prospect_id = $1`, []any{sourceID}},
	}
	for _, st := range steps {
		if _, err := s.q.Exec(ctx, st.sql, st.args...); err != nil {
			return eris.Wrapf(err, "postgres: repoint interests: %s", st.desc)
		}
	}
	return nil
}

// --- Catalog ---

func (s *PostgresStore) CreateFormation(ctx context.Context, f *Formation) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	_, err := s.q.Exec(ctx, `INSERT INTO formations (id, title) VALUES ($1, $2)`, f.ID, f.Title)
	return eris.Wrap(err, "postgres: insert formation")
}

func (s *PostgresStore) GetFormation(ctx context.Context, id string) (*Formation, error) {
	var f Formation
	err := s.q.QueryRow(ctx, `SELECT id, title FROM formations WHERE id = $1`, id).
		Scan(&f.ID, &f.Title)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get formation %s", id)
	}
	return &f, nil
}

func (s *PostgresStore) CreateService(ctx context.Context, sv *Service) error {
	if sv.ID == "" {
		sv.ID = uuid.New().String()
	}
	_, err := s.q.Exec(ctx, `INSERT INTO services (id, name) VALUES ($1, $2)`, sv.ID, sv.Name)
	return eris.Wrap(err, "postgres: insert service")
}

func (s *PostgresStore) GetService(ctx context.Context, id string) (*Service, error) {
	var sv Service
	err := s.q.QueryRow(ctx, `SELECT id, name FROM services WHERE id = $1`, id).
		Scan(&sv.ID, &sv.Name)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get service %s", id)
	}
	return &sv, nil
}

// --- Touchpoints ---

const contactRequestColumns = `id, type, first_name, last_name, email, phone, company,
	subject, message, service_id, prospect_id, created_at`

func (s *PostgresStore) CreateContactRequest(ctx context.Context, cr *ContactRequest) error {
	if cr.ID == "" {
		cr.ID = uuid.New().String()
	}
	if cr.CreatedAt.IsZero() {
		cr.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.Exec(ctx,
		`INSERT INTO contact_requests (`+contactRequestColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		cr.ID, cr.Type, cr.FirstName, cr.LastName, cr.Email, cr.Phone, cr.Company,
		cr.Subject, cr.Message, nullIfEmpty(cr.ServiceID), nullIfEmpty(cr.ProspectID), cr.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert contact request")
}

func (s *PostgresStore) GetContactRequest(ctx context.Context, id string) (*ContactRequest, error) {
	return scanContactRequestPgx(s.q.QueryRow(ctx,
		`SELECT `+contactRequestColumns+` FROM contact_requests WHERE id = $1`, id))
}

func (s *PostgresStore) LinkContactRequest(ctx context.Context, id, prospectID string) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE contact_requests SET prospect_id = $1 WHERE id = $2`, prospectID, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: link contact request %s", id)
	}
	return checkTagRows(tag, "contact request", id)
}

func (s *PostgresStore) ListContactRequestsByProspect(ctx context.Context, prospectID string) ([]ContactRequest, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+contactRequestColumns+` FROM contact_requests
		 WHERE prospect_id = $1 ORDER BY created_at ASC`, prospectID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contact requests")
	}
	defer rows.Close()

	var out []ContactRequest
	for rows.Next() {
		cr, err := scanContactRequestPgx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cr)
	}
	return out, eris.Wrap(rows.Err(), "postgres: contact requests iterate")
}

const sessionRegistrationColumns = `id, first_name, last_name, email, phone, company,
	position, special_requirements, formation_id, prospect_id, created_at`

func (s *PostgresStore) CreateSessionRegistration(ctx context.Context, sr *SessionRegistration) error {
	if sr.ID == "" {
		sr.ID = uuid.New().String()
	}
	if sr.CreatedAt.IsZero() {
		sr.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.Exec(ctx,
		`INSERT INTO session_registrations (`+sessionRegistrationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sr.ID, sr.FirstName, sr.LastName, sr.Email, sr.Phone, sr.Company,
		sr.Position, sr.SpecialRequirements, sr.FormationID, nullIfEmpty(sr.ProspectID), sr.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert session registration")
}

func (s *PostgresStore) GetSessionRegistration(ctx context.Context, id string) (*SessionRegistration, error) {
	return scanSessionRegistrationPgx(s.q.QueryRow(ctx,
		`SELECT `+sessionRegistrationColumns+` FROM session_registrations WHERE id = $1`, id))
}

func (s *PostgresStore) LinkSessionRegistration(ctx context.Context, id, prospectID string) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE session_registrations SET prospect_id = $1 WHERE id = $2`, prospectID, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: link session registration %s", id)
	}
	return checkTagRows(tag, "session registration", id)
}

func (s *PostgresStore) ListSessionRegistrationsByProspect(ctx context.Context, prospectID string) ([]SessionRegistration, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+sessionRegistrationColumns+` FROM session_registrations
		 WHERE prospect_id = $1 ORDER BY created_at ASC`, prospectID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list session registrations")
	}
	defer rows.Close()

	var out []SessionRegistration
	for rows.Next() {
		sr, err := scanSessionRegistrationPgx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sr)
	}
	return out, eris.Wrap(rows.Err(), "postgres: session registrations iterate")
}

const needsAnalysisColumns = `id, recipient_name, recipient_email, company_name,
	admin_notes, formation_id, prospect_id, created_at`

func (s *PostgresStore) CreateNeedsAnalysisRequest(ctx context.Context, na *NeedsAnalysisRequest) error {
	if na.ID == "" {
		na.ID = uuid.New().String()
	}
	if na.CreatedAt.IsZero() {
		na.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.Exec(ctx,
		`INSERT INTO needs_analysis_requests (`+needsAnalysisColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		na.ID, na.RecipientName, na.RecipientEmail, na.CompanyName,
		na.AdminNotes, nullIfEmpty(na.FormationID), nullIfEmpty(na.ProspectID), na.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert needs-analysis request")
}

func (s *PostgresStore) GetNeedsAnalysisRequest(ctx context.Context, id string) (*NeedsAnalysisRequest, error) {
	return scanNeedsAnalysisRequestPgx(s.q.QueryRow(ctx,
		`SELECT `+needsAnalysisColumns+` FROM needs_analysis_requests WHERE id = $1`, id))
}

func (s *PostgresStore) LinkNeedsAnalysisRequest(ctx context.Context, id, prospectID string) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE needs_analysis_requests SET prospect_id = $1 WHERE id = $2`, prospectID, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: link needs-analysis request %s", id)
	}
	return checkTagRows(tag, "needs-analysis request", id)
}

func (s *PostgresStore) ListNeedsAnalysisRequestsByProspect(ctx context.Context, prospectID string) ([]NeedsAnalysisRequest, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+needsAnalysisColumns+` FROM needs_analysis_requests
		 WHERE prospect_id = $1 ORDER BY created_at ASC`, prospectID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list needs-analysis requests")
	}
	defer rows.Close()

	var out []NeedsAnalysisRequest
	for rows.Next() {
		na, err := scanNeedsAnalysisRequestPgx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *na)
	}
	return out, eris.Wrap(rows.Err(), "postgres: needs-analysis requests iterate")
}

func (s *PostgresStore) RepointTouchpoints(ctx context.Context, sourceID, targetID string) error {
	for _, table := range []string{"contact_requests", "session_registrations", "needs_analysis_requests"} {
		_, err := s.q.Exec(ctx,
			`UPDATE `+table+` SET prospect_id = $1 WHERE prospect_id = $2`, targetID, sourceID)
		if err != nil {
			return eris.Wrapf(err, "postgres: repoint %s %s -> %s", table, sourceID, targetID)
		}
	}
	return nil
}

// --- helpers ---

func checkTagRows(tag pgconn.CommandTag, entity, id string) error {
	if tag.RowsAffected() == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func scanProspectPgx(row pgx.Row) (*Prospect, error) {
	var p Prospect
	err := row.Scan(&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.Phone, &p.Company, &p.Position,
		&p.Status, &p.Priority, &p.Source, &p.LastContactDate, &p.NextFollowUpDate,
		&p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan prospect")
	}
	return &p, nil
}

func collectProspectsPgx(rows pgx.Rows) ([]Prospect, error) {
	var out []Prospect
	for rows.Next() {
		p, err := scanProspectPgx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: prospects iterate")
}

func scanContactRequestPgx(row pgx.Row) (*ContactRequest, error) {
	var cr ContactRequest
	var serviceID, prospectID *string

	err := row.Scan(&cr.ID, &cr.Type, &cr.FirstName, &cr.LastName, &cr.Email, &cr.Phone, &cr.Company,
		&cr.Subject, &cr.Message, &serviceID, &prospectID, &cr.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan contact request")
	}
	cr.ServiceID = deref(serviceID)
	cr.ProspectID = deref(prospectID)
	return &cr, nil
}

func scanSessionRegistrationPgx(row pgx.Row) (*SessionRegistration, error) {
	var sr SessionRegistration
	var prospectID *string

	err := row.Scan(&sr.ID, &sr.FirstName, &sr.LastName, &sr.Email, &sr.Phone, &sr.Company,
		&sr.Position, &sr.SpecialRequirements, &sr.FormationID, &prospectID, &sr.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan session registration")
	}
	sr.ProspectID = deref(prospectID)
	return &sr, nil
}

func scanNeedsAnalysisRequestPgx(row pgx.Row) (*NeedsAnalysisRequest, error) {
	var na NeedsAnalysisRequest
	var formationID, prospectID *string

	err := row.Scan(&na.ID, &na.RecipientName, &na.RecipientEmail, &na.CompanyName,
		&na.AdminNotes, &formationID, &prospectID, &na.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan needs-analysis request")
	}
	na.FormationID = deref(formationID)
	na.ProspectID = deref(prospectID)
	return &na, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
