package crm

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB // nil on transactional views
	q  sqliteQuerier
}

type sqliteQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, q: db}, nil
}

const sqliteMigration = `
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
	last_contact_date   DATETIME,
	next_follow_up_date DATETIME,
	created_at          DATETIME NOT NULL,
	updated_at          DATETIME NOT NULL
);

-- Deliberately non-unique: two concurrent first touchpoints for the same
-- new email may both insert, and consolidation corrects it afterwards.
CREATE INDEX IF NOT EXISTS idx_prospects_email ON prospects(email);

CREATE TABLE IF NOT EXISTS prospect_events (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	prospect_id TEXT NOT NULL REFERENCES prospects(id),
	event_type  TEXT NOT NULL,
	body        TEXT NOT NULL DEFAULT '',
	occurred_at DATETIME NOT NULL
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
	created_at  DATETIME NOT NULL
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
	created_at           DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS needs_analysis_requests (
	id              TEXT PRIMARY KEY,
	recipient_name  TEXT NOT NULL DEFAULT '',
	recipient_email TEXT NOT NULL,
	company_name    TEXT NOT NULL DEFAULT '',
	admin_notes     TEXT NOT NULL DEFAULT '',
	formation_id    TEXT,
	prospect_id     TEXT REFERENCES prospects(id),
	created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contact_requests_prospect ON contact_requests(prospect_id);
CREATE INDEX IF NOT EXISTS idx_session_registrations_prospect ON session_registrations(prospect_id);
CREATE INDEX IF NOT EXISTS idx_needs_analysis_requests_prospect ON needs_analysis_requests(prospect_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if s.db == nil {
		return eris.New("sqlite: migrate inside transaction")
	}
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InTx runs fn inside a transaction. A transactional view joins the
// already-open transaction instead of nesting.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(&SQLiteStore{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return eris.Wrapf(err, "sqlite: rollback also failed: %v", rbErr)
		}
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

// --- Prospects ---

const prospectColumns = `id, email, first_name, last_name, phone, company, position,
	status, priority, source, last_contact_date, next_follow_up_date, created_at, updated_at`

func (s *SQLiteStore) CreateProspect(ctx context.Context, p *Prospect) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO prospects (`+prospectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.FirstName, p.LastName, p.Phone, p.Company, p.Position,
		string(p.Status), string(p.Priority), p.Source,
		p.LastContactDate, p.NextFollowUpDate, p.CreatedAt, p.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert prospect")
}

func (s *SQLiteStore) UpdateProspect(ctx context.Context, p *Prospect) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := s.q.ExecContext(ctx,
		`UPDATE prospects SET email = ?, first_name = ?, last_name = ?, phone = ?, company = ?,
			position = ?, status = ?, priority = ?, source = ?, last_contact_date = ?,
			next_follow_up_date = ?, updated_at = ? WHERE id = ?`,
		p.Email, p.FirstName, p.LastName, p.Phone, p.Company,
		p.Position, string(p.Status), string(p.Priority), p.Source, p.LastContactDate,
		p.NextFollowUpDate, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update prospect %s", p.ID)
	}
	return checkRowsAffected(res, "prospect", p.ID)
}

func (s *SQLiteStore) GetProspect(ctx context.Context, id string) (*Prospect, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+prospectColumns+` FROM prospects WHERE id = ?`, id)
	return scanProspect(row)
}

// FindProspectByEmail returns the earliest-created prospect for an email.
// While duplicates exist that is also the record consolidation will keep.
func (s *SQLiteStore) FindProspectByEmail(ctx context.Context, email string) (*Prospect, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+prospectColumns+` FROM prospects WHERE email = ?
		 ORDER BY created_at ASC, id ASC LIMIT 1`, email)
	return scanProspect(row)
}

func (s *SQLiteStore) DeleteProspect(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM prospects WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete prospect %s", id)
	}
	return checkRowsAffected(res, "prospect", id)
}

func (s *SQLiteStore) ListProspects(ctx context.Context, limit, offset int) ([]Prospect, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+prospectColumns+` FROM prospects ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list prospects")
	}
	defer rows.Close()
	return collectProspects(rows)
}

func (s *SQLiteStore) CountProspectsByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM prospects GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count prospects by status")
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		counts[Status(st)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count prospects iterate")
}

// --- Duplicates ---

func (s *SQLiteStore) DuplicateEmails(ctx context.Context) ([]EmailCount, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT email, COUNT(*) FROM prospects GROUP BY email HAVING COUNT(*) > 1 ORDER BY email`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: duplicate emails")
	}
	defer rows.Close()

	var out []EmailCount
	for rows.Next() {
		var ec EmailCount
		if err := rows.Scan(&ec.Email, &ec.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan duplicate email")
		}
		out = append(out, ec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: duplicate emails iterate")
}

func (s *SQLiteStore) ListProspectsByEmail(ctx context.Context, email string) ([]Prospect, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+prospectColumns+` FROM prospects WHERE email = ? ORDER BY created_at ASC, id ASC`,
		email)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list prospects for %s", email)
	}
	defer rows.Close()
	return collectProspects(rows)
}

// --- Events ---

func (s *SQLiteStore) AppendEvent(ctx context.Context, ev *ProspectEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO prospect_events (prospect_id, event_type, body, occurred_at) VALUES (?, ?, ?, ?)`,
		ev.ProspectID, ev.Type, ev.Body, ev.OccurredAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: append event for %s", ev.ProspectID)
	}
	seq, err := res.LastInsertId()
	if err == nil {
		ev.Seq = seq
	}
	return nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, prospectID string) ([]ProspectEvent, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT seq, prospect_id, event_type, body, occurred_at FROM prospect_events
		 WHERE prospect_id = ? ORDER BY occurred_at ASC, seq ASC`, prospectID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list events for %s", prospectID)
	}
	defer rows.Close()

	var events []ProspectEvent
	for rows.Next() {
		var ev ProspectEvent
		if err := rows.Scan(&ev.Seq, &ev.ProspectID, &ev.Type, &ev.Body, &ev.OccurredAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list events iterate")
}

func (s *SQLiteStore) RepointEvents(ctx context.Context, sourceID, targetID string) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE prospect_events SET prospect_id = ? WHERE prospect_id = ?`, targetID, sourceID)
	return eris.Wrapf(err, "sqlite: repoint events %s -> %s", sourceID, targetID)
}

// --- Interests ---

func (s *SQLiteStore) AddFormationInterest(ctx context.Context, prospectID, formationID string) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO prospect_formations (prospect_id, formation_id) VALUES (?, ?)`,
		prospectID, formationID)
	return eris.Wrap(err, "sqlite: add formation interest")
}

func (s *SQLiteStore) AddServiceInterest(ctx context.Context, prospectID, serviceID string) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO prospect_services (prospect_id, service_id) VALUES (?, ?)`,
		prospectID, serviceID)
	return eris.Wrap(err, "sqlite: add service interest")
}

func (s *SQLiteStore) ListFormationInterests(ctx context.Context, prospectID string) ([]Formation, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT f.id, f.title FROM formations f
		 JOIN prospect_formations pf ON pf.formation_id = f.id
		 WHERE pf.prospect_id = ? ORDER BY f.title`, prospectID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list formation interests")
	}
	defer rows.Close()

	var out []Formation
	for rows.Next() {
		var f Formation
		if err := rows.Scan(&f.ID, &f.Title); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan formation interest")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: formation interests iterate")
}

func (s *SQLiteStore) ListServiceInterests(ctx context.Context, prospectID string) ([]Service, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT sv.id, sv.name FROM services sv
		 JOIN prospect_services ps ON ps.service_id = sv.id
		 WHERE ps.prospect_id = ? ORDER BY sv.name`, prospectID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list service interests")
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var sv Service
		if err := rows.Scan(&sv.ID, &sv.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan service interest")
		}
		out = append(out, sv)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: service interests iterate")
}

// RepointInterests unions the source prospect's interest sets into the
// target's, then drops the source rows.
func (s *SQLiteStore) RepointInterests(ctx context.Context, sourceID, targetID string) error {
	steps := []struct {
		desc string
		sql  string
		args []any
	}{
		{"union formations", `INSERT OR IGNORE INTO prospect_formations (prospect_id, formation_id)
			SELECT ?, formation_id FROM prospect_formations WHERE prospect_id = ?`, []any{targetID, sourceID}},
		{"drop source formations", `DELETE FROM prospect_formations WHERE prospect_id = ?`, []any{sourceID}},
		{"union services", `INSERT OR IGNORE INTO prospect_services (prospect_id, service_id)
			SELECT ?, service_id FROM prospect_services WHERE prospect_id = ?`, []any{targetID, sourceID}},
		{"drop source services", `DELETE FROM prospect_services WHERE prospect_id = ?`, []any{sourceID}},
	}
	for _, st := range steps {
		if _, err := s.q.ExecContext(ctx, st.sql, st.args...); err != nil {
			return eris.Wrapf(err, "sqlite: repoint interests: %s", st.desc)
		}
	}
	return nil
}

// --- Catalog ---

func (s *SQLiteStore) CreateFormation(ctx context.Context, f *Formation) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO formations (id, title) VALUES (?, ?)`, f.ID, f.Title)
	return eris.Wrap(err, "sqlite: insert formation")
}

func (s *SQLiteStore) GetFormation(ctx context.Context, id string) (*Formation, error) {
	var f Formation
	err := s.q.QueryRowContext(ctx,
		`SELECT id, title FROM formations WHERE id = ?`, id).Scan(&f.ID, &f.Title)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get formation %s", id)
	}
	return &f, nil
}

func (s *SQLiteStore) CreateService(ctx context.Context, sv *Service) error {
	if sv.ID == "" {
		sv.ID = uuid.New().String()
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO services (id, name) VALUES (?, ?)`, sv.ID, sv.Name)
	return eris.Wrap(err, "sqlite: insert service")
}

func (s *SQLiteStore) GetService(ctx context.Context, id string) (*Service, error) {
	var sv Service
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name FROM services WHERE id = ?`, id).Scan(&sv.ID, &sv.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get service %s", id)
	}
	return &sv, nil
}

// --- Touchpoints ---

func (s *SQLiteStore) CreateContactRequest(ctx context.Context, cr *ContactRequest) error {
	if cr.ID == "" {
		cr.ID = uuid.New().String()
	}
	if cr.CreatedAt.IsZero() {
		cr.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO contact_requests (id, type, first_name, last_name, email, phone, company,
			subject, message, service_id, prospect_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cr.ID, cr.Type, cr.FirstName, cr.LastName, cr.Email, cr.Phone, cr.Company,
		cr.Subject, cr.Message, nullIfEmpty(cr.ServiceID), nullIfEmpty(cr.ProspectID), cr.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert contact request")
}

func (s *SQLiteStore) GetContactRequest(ctx context.Context, id string) (*ContactRequest, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, type, first_name, last_name, email, phone, company, subject, message,
			service_id, prospect_id, created_at
		 FROM contact_requests WHERE id = ?`, id)
	return scanContactRequest(row)
}

func (s *SQLiteStore) LinkContactRequest(ctx context.Context, id, prospectID string) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE contact_requests SET prospect_id = ? WHERE id = ?`, prospectID, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: link contact request %s", id)
	}
	return checkRowsAffected(res, "contact request", id)
}

func (s *SQLiteStore) ListContactRequestsByProspect(ctx context.Context, prospectID string) ([]ContactRequest, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, type, first_name, last_name, email, phone, company, subject, message,
			service_id, prospect_id, created_at
		 FROM contact_requests WHERE prospect_id = ? ORDER BY created_at ASC`, prospectID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contact requests")
	}
	defer rows.Close()

	var out []ContactRequest
	for rows.Next() {
		cr, err := scanContactRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cr)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: contact requests iterate")
}

func (s *SQLiteStore) CreateSessionRegistration(ctx context.Context, sr *SessionRegistration) error {
	if sr.ID == "" {
		sr.ID = uuid.New().String()
	}
	if sr.CreatedAt.IsZero() {
		sr.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO session_registrations (id, first_name, last_name, email, phone, company,
			position, special_requirements, formation_id, prospect_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sr.ID, sr.FirstName, sr.LastName, sr.Email, sr.Phone, sr.Company,
		sr.Position, sr.SpecialRequirements, sr.FormationID, nullIfEmpty(sr.ProspectID), sr.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert session registration")
}

func (s *SQLiteStore) GetSessionRegistration(ctx context.Context, id string) (*SessionRegistration, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, email, phone, company, position,
			special_requirements, formation_id, prospect_id, created_at
		 FROM session_registrations WHERE id = ?`, id)
	return scanSessionRegistration(row)
}

func (s *SQLiteStore) LinkSessionRegistration(ctx context.Context, id, prospectID string) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE session_registrations SET prospect_id = ? WHERE id = ?`, prospectID, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: link session registration %s", id)
	}
	return checkRowsAffected(res, "session registration", id)
}

func (s *SQLiteStore) ListSessionRegistrationsByProspect(ctx context.Context, prospectID string) ([]SessionRegistration, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, first_name, last_name, email, phone, company, position,
			special_requirements, formation_id, prospect_id, created_at
		 FROM session_registrations WHERE prospect_id = ? ORDER BY created_at ASC`, prospectID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list session registrations")
	}
	defer rows.Close()

	var out []SessionRegistration
	for rows.Next() {
		sr, err := scanSessionRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sr)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: session registrations iterate")
}

func (s *SQLiteStore) CreateNeedsAnalysisRequest(ctx context.Context, na *NeedsAnalysisRequest) error {
	if na.ID == "" {
		na.ID = uuid.New().String()
	}
	if na.CreatedAt.IsZero() {
		na.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO needs_analysis_requests (id, recipient_name, recipient_email, company_name,
			admin_notes, formation_id, prospect_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		na.ID, na.RecipientName, na.RecipientEmail, na.CompanyName,
		na.AdminNotes, nullIfEmpty(na.FormationID), nullIfEmpty(na.ProspectID), na.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert needs-analysis request")
}

func (s *SQLiteStore) GetNeedsAnalysisRequest(ctx context.Context, id string) (*NeedsAnalysisRequest, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, recipient_name, recipient_email, company_name, admin_notes,
			formation_id, prospect_id, created_at
		 FROM needs_analysis_requests WHERE id = ?`, id)
	return scanNeedsAnalysisRequest(row)
}

func (s *SQLiteStore) LinkNeedsAnalysisRequest(ctx context.Context, id, prospectID string) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE needs_analysis_requests SET prospect_id = ? WHERE id = ?`, prospectID, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: link needs-analysis request %s", id)
	}
	return checkRowsAffected(res, "needs-analysis request", id)
}

func (s *SQLiteStore) ListNeedsAnalysisRequestsByProspect(ctx context.Context, prospectID string) ([]NeedsAnalysisRequest, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, recipient_name, recipient_email, company_name, admin_notes,
			formation_id, prospect_id, created_at
		 FROM needs_analysis_requests WHERE prospect_id = ? ORDER BY created_at ASC`, prospectID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list needs-analysis requests")
	}
	defer rows.Close()

	var out []NeedsAnalysisRequest
	for rows.Next() {
		na, err := scanNeedsAnalysisRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *na)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: needs-analysis requests iterate")
}

func (s *SQLiteStore) RepointTouchpoints(ctx context.Context, sourceID, targetID string) error {
	for _, table := range []string{"contact_requests", "session_registrations", "needs_analysis_requests"} {
		_, err := s.q.ExecContext(ctx,
			`UPDATE `+table+` SET prospect_id = ? WHERE prospect_id = ?`, targetID, sourceID)
		if err != nil {
			return eris.Wrapf(err, "sqlite: repoint %s %s -> %s", table, sourceID, targetID)
		}
	}
	return nil
}

// --- helpers ---

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProspect(row scannable) (*Prospect, error) {
	var p Prospect
	var lastContact, nextFollowUp sql.NullTime

	err := row.Scan(&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.Phone, &p.Company, &p.Position,
		&p.Status, &p.Priority, &p.Source, &lastContact, &nextFollowUp, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan prospect")
	}
	if lastContact.Valid {
		t := lastContact.Time
		p.LastContactDate = &t
	}
	if nextFollowUp.Valid {
		t := nextFollowUp.Time
		p.NextFollowUpDate = &t
	}
	return &p, nil
}

func collectProspects(rows *sql.Rows) ([]Prospect, error) {
	var out []Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: prospects iterate")
}

func scanContactRequest(row scannable) (*ContactRequest, error) {
	var cr ContactRequest
	var serviceID, prospectID sql.NullString

	err := row.Scan(&cr.ID, &cr.Type, &cr.FirstName, &cr.LastName, &cr.Email, &cr.Phone, &cr.Company,
		&cr.Subject, &cr.Message, &serviceID, &prospectID, &cr.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan contact request")
	}
	cr.ServiceID = serviceID.String
	cr.ProspectID = prospectID.String
	return &cr, nil
}

func scanSessionRegistration(row scannable) (*SessionRegistration, error) {
	var sr SessionRegistration
	var prospectID sql.NullString

	err := row.Scan(&sr.ID, &sr.FirstName, &sr.LastName, &sr.Email, &sr.Phone, &sr.Company,
		&sr.Position, &sr.SpecialRequirements, &sr.FormationID, &prospectID, &sr.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan session registration")
	}
	sr.ProspectID = prospectID.String
	return &sr, nil
}

func scanNeedsAnalysisRequest(row scannable) (*NeedsAnalysisRequest, error) {
	var na NeedsAnalysisRequest
	var formationID, prospectID sql.NullString

	err := row.Scan(&na.ID, &na.RecipientName, &na.RecipientEmail, &na.CompanyName,
		&na.AdminNotes, &formationID, &prospectID, &na.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan needs-analysis request")
	}
	na.FormationID = formationID.String
	na.ProspectID = prospectID.String
	return &na, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
