package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/soaringjerry/FormPulse/internal/api"
	"github.com/soaringjerry/FormPulse/internal/models"
)

// timeLayout is fixed-width so stored timestamps sort chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

var _ api.Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database file at path and brings
// its schema up to date.
func OpenSQLite(ctx context.Context, path, migrationsDir string, log *zap.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store, err := NewSQLiteStore(conn, log)
	if err != nil {
		conn.Close()
		return nil, err
	}
	applied, err := RunMigrations(ctx, conn, migrationsDir)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if len(applied) > 0 {
		store.log.Info("sqlite migrations applied", zap.Strings("files", applied))
	}
	return store, nil
}

func NewSQLiteStore(db *sql.DB, log *zap.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	if log == nil {
		log = zap.NewNop()
	}
	// one writer at a time keeps SQLite out of SQLITE_BUSY under load
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func toNullString(v string) sql.NullString {
	if strings.TrimSpace(v) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func toNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		// rows written by other tools may use plain RFC 3339
		t, err = time.Parse(time.RFC3339Nano, v)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", v, err)
	}
	return t.UTC(), nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeOptions(o *models.QuestionOptions) (sql.NullString, error) {
	if o == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(o)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func (s *SQLiteStore) decodeOptions(questionID string, ns sql.NullString) *models.QuestionOptions {
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return nil
	}
	var o models.QuestionOptions
	if err := json.Unmarshal([]byte(ns.String), &o); err != nil {
		s.log.Warn("sqlite store: decode question options", zap.String("question_id", questionID), zap.Error(err))
		return nil
	}
	return &o
}

// forms

const formColumns = `id, owner_id, title, description, status, shareable_url, password_hash,
	expires_at, response_limit, allow_multiple, collect_email, created_at, updated_at, published_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanForm(row rowScanner) (*models.Form, error) {
	var (
		f                                     models.Form
		desc, shareURL, pwHash                sql.NullString
		expires, published                    sql.NullString
		created, updated                      string
		status                                string
		limit, allowMultiple, collectEmailInt int64
	)
	if err := row.Scan(&f.ID, &f.OwnerID, &f.Title, &desc, &status, &shareURL, &pwHash,
		&expires, &limit, &allowMultiple, &collectEmailInt, &created, &updated, &published); err != nil {
		return nil, err
	}
	f.Description = desc.String
	f.Status = models.FormStatus(status)
	f.ShareableURL = shareURL.String
	f.PasswordHash = pwHash.String
	f.ResponseLimit = int(limit)
	f.AllowMultiple = allowMultiple != 0
	f.CollectEmail = collectEmailInt != 0
	var err error
	if f.ExpiresAt, err = parseNullTime(expires); err != nil {
		return nil, err
	}
	if f.PublishedAt, err = parseNullTime(published); err != nil {
		return nil, err
	}
	if f.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if f.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *SQLiteStore) getFormWhere(ctx context.Context, where string, arg any) (*models.Form, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+formColumns+` FROM forms WHERE `+where, arg)
	f, err := scanForm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get form: %w", err)
	}
	return f, nil
}

func (s *SQLiteStore) GetForm(ctx context.Context, id string) (*models.Form, error) {
	return s.getFormWhere(ctx, "id = ?", id)
}

func (s *SQLiteStore) GetFormByShareableURL(ctx context.Context, shareableURL string) (*models.Form, error) {
	return s.getFormWhere(ctx, "shareable_url = ?", shareableURL)
}

func (s *SQLiteStore) CountForms(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM forms`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count forms: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) SaveForm(ctx context.Context, f *models.Form) error {
	now := time.Now().UTC()
	created, updated := f.CreatedAt, f.UpdatedAt
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = created
	}
	status := f.Status
	if status == "" {
		status = models.FormDraft
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO forms (`+formColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id, title = excluded.title, description = excluded.description,
			status = excluded.status, shareable_url = excluded.shareable_url,
			password_hash = excluded.password_hash, expires_at = excluded.expires_at,
			response_limit = excluded.response_limit, allow_multiple = excluded.allow_multiple,
			collect_email = excluded.collect_email, updated_at = excluded.updated_at,
			published_at = excluded.published_at`,
		f.ID, f.OwnerID, f.Title, toNullString(f.Description), string(status), toNullString(f.ShareableURL),
		toNullString(f.PasswordHash), toNullTime(f.ExpiresAt), f.ResponseLimit, boolToInt64(f.AllowMultiple),
		boolToInt64(f.CollectEmail), formatTime(created), formatTime(updated), toNullTime(f.PublishedAt))
	if err != nil {
		return fmt.Errorf("save form: %w", err)
	}
	return nil
}

// questions

func (s *SQLiteStore) SaveQuestion(ctx context.Context, q *models.Question) error {
	opts, err := encodeOptions(q.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO questions (id, form_id, type, title, description, required, sort_order, options)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			form_id = excluded.form_id, type = excluded.type, title = excluded.title,
			description = excluded.description, required = excluded.required,
			sort_order = excluded.sort_order, options = excluded.options`,
		q.ID, q.FormID, string(q.Type), q.Title, toNullString(q.Description), boolToInt64(q.Required), q.Order, opts)
	if err != nil {
		return fmt.Errorf("save question: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListQuestions(ctx context.Context, formID string) ([]*models.Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, form_id, type, title, description, required, sort_order, options
		FROM questions WHERE form_id = ? ORDER BY sort_order, id`, formID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()
	out := []*models.Question{}
	for rows.Next() {
		var (
			q         models.Question
			qType     string
			desc, opt sql.NullString
			required  int64
		)
		if err := rows.Scan(&q.ID, &q.FormID, &qType, &q.Title, &desc, &required, &q.Order, &opt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Type = models.QuestionType(qType)
		q.Description = desc.String
		q.Required = required != 0
		q.Options = s.decodeOptions(q.ID, opt)
		out = append(out, &q)
	}
	return out, rows.Err()
}

// responses

const responseColumns = `id, form_id, email, started_at, completed_at, ip_address, user_agent`

// exportOrder matches services.SortResponsesForExport.
const exportOrder = `ORDER BY completed_at IS NULL, completed_at DESC, id`

func scanResponse(row rowScanner) (*models.Response, error) {
	var (
		r                     models.Response
		email, ip, ua, doneAt sql.NullString
		started               string
	)
	if err := row.Scan(&r.ID, &r.FormID, &email, &started, &doneAt, &ip, &ua); err != nil {
		return nil, err
	}
	r.Email = email.String
	r.IPAddress = ip.String
	r.UserAgent = ua.String
	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if r.CompletedAt, err = parseNullTime(doneAt); err != nil {
		return nil, err
	}
	r.Answers = []*models.Answer{}
	return &r, nil
}

func (s *SQLiteStore) AddResponse(ctx context.Context, r *models.Response) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if _, err := tx.ExecContext(ctx, `INSERT INTO responses (`+responseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FormID, toNullString(r.Email), formatTime(r.StartedAt), toNullTime(r.CompletedAt),
		toNullString(r.IPAddress), toNullString(r.UserAgent)); err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	for i, a := range r.Answers {
		if a == nil {
			continue
		}
		var value sql.NullString
		if !a.Value.IsNull() {
			value = sql.NullString{String: string(a.Value), Valid: true}
		}
		created := a.CreatedAt
		if created.IsZero() {
			created = r.StartedAt
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO answers (id, response_id, question_id, value, file_url, created_at, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.ID, r.ID, a.QuestionID, value, toNullString(a.FileURL), formatTime(created), i); err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit response: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetResponse(ctx context.Context, id string) (*models.Response, error) {
	r, err := scanResponse(s.db.QueryRowContext(ctx, `SELECT `+responseColumns+` FROM responses WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get response: %w", err)
	}
	if err := s.attachAnswers(ctx, []*models.Response{r}, `response_id = ?`, id); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLiteStore) queryResponses(ctx context.Context, query string, args ...any) ([]*models.Response, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()
	out := []*models.Response{}
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListResponsesByForm(ctx context.Context, formID string) ([]*models.Response, error) {
	out, err := s.queryResponses(ctx, `SELECT `+responseColumns+` FROM responses WHERE form_id = ? `+exportOrder, formID)
	if err != nil {
		return nil, err
	}
	if err := s.attachAnswers(ctx, out,
		`response_id IN (SELECT id FROM responses WHERE form_id = ?)`, formID); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) ListResponsesPage(ctx context.Context, formID string, offset, limit int) ([]*models.Response, int, error) {
	total, err := s.CountResponses(ctx, formID, false)
	if err != nil {
		return nil, 0, err
	}
	out, err := s.queryResponses(ctx, `SELECT `+responseColumns+` FROM responses WHERE form_id = ? `+exportOrder+` LIMIT ? OFFSET ?`,
		formID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if len(out) == 0 {
		return out, total, nil
	}
	ids := make([]any, 0, len(out))
	for _, r := range out {
		ids = append(ids, r.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	if err := s.attachAnswers(ctx, out, `response_id IN (`+placeholders+`)`, ids...); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// attachAnswers loads the answers matching where and appends them to their
// responses in submission order.
func (s *SQLiteStore) attachAnswers(ctx context.Context, responses []*models.Response, where string, args ...any) error {
	byID := make(map[string]*models.Response, len(responses))
	for _, r := range responses {
		byID[r.ID] = r
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, response_id, question_id, value, file_url, created_at
		FROM answers WHERE `+where+` ORDER BY response_id, position`, args...)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			a              models.Answer
			value, fileURL sql.NullString
			created        string
		)
		if err := rows.Scan(&a.ID, &a.ResponseID, &a.QuestionID, &value, &fileURL, &created); err != nil {
			return fmt.Errorf("scan answer: %w", err)
		}
		if value.Valid {
			a.Value = models.AnswerValue(value.String)
		}
		a.FileURL = fileURL.String
		if a.CreatedAt, err = parseTime(created); err != nil {
			return err
		}
		if r := byID[a.ResponseID]; r != nil {
			r.Answers = append(r.Answers, &a)
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) CountResponses(ctx context.Context, formID string, completedOnly bool) (int, error) {
	q := `SELECT COUNT(*) FROM responses WHERE form_id = ?`
	if completedOnly {
		q += ` AND completed_at IS NOT NULL`
	}
	var n int
	if err := s.db.QueryRowContext(ctx, q, formID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count responses: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) HasResponseFromIP(ctx context.Context, formID, ip string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM responses WHERE form_id = ? AND ip_address = ? LIMIT 1`, formID, ip).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check ip: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) DeleteResponse(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM responses WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete response: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
