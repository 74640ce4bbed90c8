// Package sqlstore provides a TaskRepository backed by GORM and SQLite.
//
// Tags and dependencies are stored as JSON columns. Updates are optimistic:
// a write only lands when the stored version matches the caller's expectation.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/ports"
)

const slowQueryThreshold = 200 * time.Millisecond

// taskRecord is the persisted shape of a task.
type taskRecord struct {
	ID           string `gorm:"primaryKey;size:64"`
	Title        string `gorm:"size:200;not null"`
	Description  string
	Status       string `gorm:"size:16;index"`
	Priority     string `gorm:"size:16;index"`
	StartDate    *time.Time
	DueDate      *time.Time `gorm:"index"`
	CompletedAt  *time.Time
	Assignee     string `gorm:"size:128;index"`
	Project      string `gorm:"size:128;index"`
	Tags         datatypes.JSONSlice[string]
	Dependencies datatypes.JSONSlice[string]
	Version      int       `gorm:"not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false"`
}

// TableName pins the table name.
func (taskRecord) TableName() string { return "tasks" }

func toRecord(t *domain.Task) *taskRecord {
	return &taskRecord{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       string(t.Status),
		Priority:     string(t.Priority),
		StartDate:    t.StartDate,
		DueDate:      t.DueDate,
		CompletedAt:  t.CompletedAt,
		Assignee:     t.Assignee,
		Project:      t.Project,
		Tags:         datatypes.NewJSONSlice(nonNil(t.Tags)),
		Dependencies: datatypes.NewJSONSlice(nonNil(t.Dependencies)),
		Version:      t.Version,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func (r *taskRecord) toDomain() *domain.Task {
	return &domain.Task{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Status:       domain.Status(r.Status),
		Priority:     domain.Priority(r.Priority),
		StartDate:    utc(r.StartDate),
		DueDate:      utc(r.DueDate),
		CompletedAt:  utc(r.CompletedAt),
		Assignee:     r.Assignee,
		Project:      r.Project,
		Tags:         nonNil([]string(r.Tags)),
		Dependencies: nonNil([]string(r.Dependencies)),
		Version:      r.Version,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

// Store is a GORM-backed task repository.
type Store struct {
	db *gorm.DB
}

// Compile-time interface checks.
var (
	_ ports.TaskRepository = (*Store)(nil)
	_ ports.HealthChecker  = (*Store)(nil)
)

// Open connects to the SQLite database at dsn and migrates the schema.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(slogWriter{logger: logger}, gormlogger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %q: %w", dsn, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %q: %w", dsn, err)
	}

	// SQLite allows one writer; a single connection queues writers instead
	// of failing them with SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	if err := db.WithContext(ctx).AutoMigrate(&taskRecord{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "sqlite" }

// Check implements ports.HealthChecker.
func (s *Store) Check(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}

// Create implements ports.TaskRepository.
func (s *Store) Create(ctx context.Context, task *domain.Task) error {
	rec := toRecord(task)
	rec.Version = 1

	err := s.db.WithContext(ctx).Create(rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.NewConflictErrorWithDetails("task", "already exists", task.ID)
	}

	if err != nil {
		return wrapErr("creating task", err)
	}

	return nil
}

// Get implements ports.TaskRepository.
func (s *Store) Get(ctx context.Context, id string) (*domain.Task, error) {
	var rec taskRecord

	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("task", id)
	}

	if err != nil {
		return nil, wrapErr("loading task", err)
	}

	return rec.toDomain(), nil
}

// List implements ports.TaskRepository.
func (s *Store) List(ctx context.Context) ([]*domain.Task, error) {
	var recs []taskRecord

	if err := s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&recs).Error; err != nil {
		return nil, wrapErr("listing tasks", err)
	}

	out := make([]*domain.Task, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toDomain())
	}

	return out, nil
}

// Update implements ports.TaskRepository.
func (s *Store) Update(ctx context.Context, task *domain.Task, expectedVersion int) (*domain.Task, error) {
	rec := toRecord(task)
	rec.Version = expectedVersion + 1

	res := s.db.WithContext(ctx).
		Model(&taskRecord{}).
		Where("id = ? AND version = ?", task.ID, expectedVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(rec)
	if res.Error != nil {
		return nil, wrapErr("updating task", res.Error)
	}

	current, err := s.Get(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	if res.RowsAffected == 0 {
		return nil, domain.NewVersionConflictError("task", task.ID, expectedVersion, current.Version)
	}

	return current, nil
}

// Delete implements ports.TaskRepository.
func (s *Store) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&taskRecord{})
	if res.Error != nil {
		return wrapErr("deleting task", res.Error)
	}

	if res.RowsAffected == 0 {
		return domain.NewNotFoundError("task", id)
	}

	return nil
}

// wrapErr keeps context errors intact and reports everything else as unavailable storage.
func wrapErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%s: %w", op, domain.NewUnavailableError("sqlite", err.Error()))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	u := t.UTC()

	return &u
}

// slogWriter routes GORM's printf-style logger into slog.
type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Printf(format string, args ...any) {
	w.logger.Warn(fmt.Sprintf(format, args...), slog.String("component", "gorm"))
}
