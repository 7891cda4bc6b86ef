package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/soaringjerry/FormPulse/internal/api"
	"github.com/soaringjerry/FormPulse/internal/config"
	"github.com/soaringjerry/FormPulse/internal/models"
)

type formRow struct {
	ID            string  `gorm:"primaryKey;size:64"`
	OwnerID       string  `gorm:"size:64;not null;index"`
	Title         string  `gorm:"not null"`
	Description   string
	Status        string  `gorm:"size:16;not null;default:DRAFT"`
	ShareableURL  *string `gorm:"size:128;uniqueIndex"`
	PasswordHash  string
	ExpiresAt     *time.Time
	ResponseLimit int
	AllowMultiple bool
	CollectEmail  bool
	CreatedAt     time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false"`
	PublishedAt   *time.Time
}

func (formRow) TableName() string { return "forms" }

type questionRow struct {
	ID          string `gorm:"primaryKey;size:64"`
	FormID      string `gorm:"size:64;not null;index:idx_questions_form,priority:1"`
	Type        string `gorm:"size:32;not null"`
	Title       string `gorm:"not null"`
	Description string
	Required    bool
	SortOrder   int `gorm:"index:idx_questions_form,priority:2"`
	Options     datatypes.JSON
}

func (questionRow) TableName() string { return "questions" }

type responseRow struct {
	ID          string     `gorm:"primaryKey;size:64"`
	FormID      string     `gorm:"size:64;not null;index:idx_responses_form,priority:1;index:idx_responses_ip,priority:1"`
	Email       string
	StartedAt   time.Time
	CompletedAt *time.Time `gorm:"index:idx_responses_form,priority:2"`
	IPAddress   string     `gorm:"size:64;index:idx_responses_ip,priority:2"`
	UserAgent   string
	Answers     []answerRow `gorm:"foreignKey:ResponseID;constraint:OnDelete:CASCADE"`
}

func (responseRow) TableName() string { return "responses" }

type answerRow struct {
	ID         string `gorm:"primaryKey;size:64"`
	ResponseID string `gorm:"size:64;not null;index:idx_answers_response,priority:1"`
	QuestionID string `gorm:"size:64;not null"`
	Value      datatypes.JSON
	FileURL    string
	CreatedAt  time.Time `gorm:"autoCreateTime:false"`
	Position   int       `gorm:"index:idx_answers_response,priority:2"`
}

func (answerRow) TableName() string { return "answers" }

// PostgresStore keeps forms and responses in PostgreSQL through gorm.
type PostgresStore struct {
	db  *gorm.DB
	log *zap.Logger
}

var _ api.Store = (*PostgresStore)(nil)

func OpenPostgres(cfg config.DatabaseConfig, log *zap.Logger) (*PostgresStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := gdb.AutoMigrate(&formRow{}, &questionRow{}, &responseRow{}, &answerRow{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	log.Info("postgres store ready", zap.String("host", cfg.Host), zap.String("dbname", cfg.DBName))
	return &PostgresStore{db: gdb, log: log}, nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func formToRow(f *models.Form) formRow {
	row := formRow{
		ID: f.ID, OwnerID: f.OwnerID, Title: f.Title, Description: f.Description,
		Status: string(f.Status), PasswordHash: f.PasswordHash, ExpiresAt: f.ExpiresAt,
		ResponseLimit: f.ResponseLimit, AllowMultiple: f.AllowMultiple, CollectEmail: f.CollectEmail,
		CreatedAt: f.CreatedAt, UpdatedAt: f.UpdatedAt, PublishedAt: f.PublishedAt,
	}
	if row.Status == "" {
		row.Status = string(models.FormDraft)
	}
	if f.ShareableURL != "" {
		u := f.ShareableURL
		row.ShareableURL = &u
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func rowToForm(row formRow) *models.Form {
	f := &models.Form{
		ID: row.ID, OwnerID: row.OwnerID, Title: row.Title, Description: row.Description,
		Status: models.FormStatus(row.Status), PasswordHash: row.PasswordHash, ExpiresAt: utcPtr(row.ExpiresAt),
		ResponseLimit: row.ResponseLimit, AllowMultiple: row.AllowMultiple, CollectEmail: row.CollectEmail,
		CreatedAt: row.CreatedAt.UTC(), UpdatedAt: row.UpdatedAt.UTC(), PublishedAt: utcPtr(row.PublishedAt),
	}
	if row.ShareableURL != nil {
		f.ShareableURL = *row.ShareableURL
	}
	return f
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func questionToRow(q *models.Question) (questionRow, error) {
	row := questionRow{
		ID: q.ID, FormID: q.FormID, Type: string(q.Type), Title: q.Title,
		Description: q.Description, Required: q.Required, SortOrder: q.Order,
	}
	if q.Options != nil {
		b, err := json.Marshal(q.Options)
		if err != nil {
			return row, err
		}
		row.Options = datatypes.JSON(b)
	}
	return row, nil
}

func (s *PostgresStore) rowToQuestion(row questionRow) *models.Question {
	q := &models.Question{
		ID: row.ID, FormID: row.FormID, Type: models.QuestionType(row.Type), Title: row.Title,
		Description: row.Description, Required: row.Required, Order: row.SortOrder,
	}
	if len(row.Options) > 0 {
		var o models.QuestionOptions
		if err := json.Unmarshal(row.Options, &o); err != nil {
			s.log.Warn("postgres store: decode question options", zap.String("question_id", row.ID), zap.Error(err))
		} else {
			q.Options = &o
		}
	}
	return q
}

func responseToRow(r *models.Response) responseRow {
	row := responseRow{
		ID: r.ID, FormID: r.FormID, Email: r.Email, StartedAt: r.StartedAt,
		CompletedAt: r.CompletedAt, IPAddress: r.IPAddress, UserAgent: r.UserAgent,
	}
	for i, a := range r.Answers {
		if a == nil {
			continue
		}
		created := a.CreatedAt
		if created.IsZero() {
			created = r.StartedAt
		}
		ar := answerRow{
			ID: a.ID, ResponseID: r.ID, QuestionID: a.QuestionID,
			FileURL: a.FileURL, CreatedAt: created, Position: i,
		}
		if !a.Value.IsNull() {
			ar.Value = datatypes.JSON(a.Value)
		}
		row.Answers = append(row.Answers, ar)
	}
	return row
}

func rowToResponse(row responseRow) *models.Response {
	r := &models.Response{
		ID: row.ID, FormID: row.FormID, Email: row.Email, StartedAt: row.StartedAt.UTC(),
		CompletedAt: utcPtr(row.CompletedAt), IPAddress: row.IPAddress, UserAgent: row.UserAgent,
		Answers: make([]*models.Answer, 0, len(row.Answers)),
	}
	for _, ar := range row.Answers {
		a := &models.Answer{
			ID: ar.ID, ResponseID: ar.ResponseID, QuestionID: ar.QuestionID,
			FileURL: ar.FileURL, CreatedAt: ar.CreatedAt.UTC(),
		}
		if len(ar.Value) > 0 {
			a.Value = models.AnswerValue(ar.Value)
		}
		r.Answers = append(r.Answers, a)
	}
	return r
}

func (s *PostgresStore) firstForm(ctx context.Context, query string, arg any) (*models.Form, error) {
	var row formRow
	err := s.db.WithContext(ctx).Where(query, arg).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get form: %w", err)
	}
	return rowToForm(row), nil
}

func (s *PostgresStore) GetForm(ctx context.Context, id string) (*models.Form, error) {
	return s.firstForm(ctx, "id = ?", id)
}

func (s *PostgresStore) GetFormByShareableURL(ctx context.Context, shareableURL string) (*models.Form, error) {
	return s.firstForm(ctx, "shareable_url = ?", shareableURL)
}

func (s *PostgresStore) CountForms(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&formRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count forms: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) SaveForm(ctx context.Context, f *models.Form) error {
	row := formToRow(f)
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("save form: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveQuestion(ctx context.Context, q *models.Question) error {
	row, err := questionToRow(q)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("save question: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListQuestions(ctx context.Context, formID string) ([]*models.Question, error) {
	var rows []questionRow
	if err := s.db.WithContext(ctx).Where("form_id = ?", formID).Order("sort_order").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	out := make([]*models.Question, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.rowToQuestion(row))
	}
	return out, nil
}

func (s *PostgresStore) responses(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("completed_at IS NULL").Order("completed_at DESC").Order("id")
}

func rowsToResponses(rows []responseRow) []*models.Response {
	out := make([]*models.Response, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToResponse(row))
	}
	return out
}

func (s *PostgresStore) ListResponsesByForm(ctx context.Context, formID string) ([]*models.Response, error) {
	var rows []responseRow
	if err := s.responses(ctx).Where("form_id = ?", formID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return rowsToResponses(rows), nil
}

func (s *PostgresStore) ListResponsesPage(ctx context.Context, formID string, offset, limit int) ([]*models.Response, int, error) {
	total, err := s.CountResponses(ctx, formID, false)
	if err != nil {
		return nil, 0, err
	}
	var rows []responseRow
	if err := s.responses(ctx).Where("form_id = ?", formID).Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list responses: %w", err)
	}
	return rowsToResponses(rows), total, nil
}

func (s *PostgresStore) GetResponse(ctx context.Context, id string) (*models.Response, error) {
	var row responseRow
	err := s.db.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get response: %w", err)
	}
	return rowToResponse(row), nil
}

// AddResponse inserts the response and its answers in one transaction.
func (s *PostgresStore) AddResponse(ctx context.Context, r *models.Response) error {
	row := responseToRow(r)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountResponses(ctx context.Context, formID string, completedOnly bool) (int, error) {
	q := s.db.WithContext(ctx).Model(&responseRow{}).Where("form_id = ?", formID)
	if completedOnly {
		q = q.Where("completed_at IS NOT NULL")
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count responses: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) HasResponseFromIP(ctx context.Context, formID, ip string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&responseRow{}).
		Where("form_id = ? AND ip_address = ?", formID, ip).Limit(1).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check ip: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) DeleteResponse(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("response_id = ?", id).Delete(&answerRow{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&responseRow{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete response: %w", err)
	}
	return deleted, nil
}
