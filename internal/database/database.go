package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/franckalain/leafmetric/internal/models"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// ErrDuplicateEmail is returned when an account with the same email exists
var ErrDuplicateEmail = errors.New("email already registered")

// DB interface defines the methods our database should implement.
// Lookups return nil and no error when the row does not exist.
type DB interface {
	CreateUser(ctx context.Context, account *models.Account) error
	GetUserByEmail(ctx context.Context, email string) (*models.Account, error)
	GetUser(ctx context.Context, id int64) (*models.Account, error)
	SaveImage(ctx context.Context, image *models.StoredImage) error
	GetImage(ctx context.Context, id int64) (*models.StoredImage, error)
	SavePrediction(ctx context.Context, userID int64, p *models.SavedPrediction) error
	GetPrediction(ctx context.Context, id int64) (*models.SavedPrediction, int64, error)
	SaveFeedback(ctx context.Context, userID int64, fb *models.SavedFeedback) error
	RecentPredictions(ctx context.Context, userID int64, limit int) ([]*models.SavedPrediction, error)
	Close() error
}

// SQLiteDB implements the DB interface
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB creates a new SQLite database connection
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// PRAGMAs are per connection, so keep a single one
	db.SetMaxOpenConns(1)

	// Enable foreign keys and WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling WAL mode: %w", err)
	}
	// Initialize database schema
	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

func initializeSchema(db *sql.DB) error {
	// Read schema file
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}

	// Execute schema
	if _, err := db.Exec(string(schemaBytes)); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}

	log.Println("Database schema initialized successfully")
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}

// timeLayout is fixed width so stored timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

// CreateUser inserts a new account and fills in its ID
func (s *SQLiteDB) CreateUser(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO users (name, email, experience, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	if account.CreatedAt.IsZero() {
		account.CreatedAt = now()
	}

	res, err := s.db.ExecContext(ctx, query,
		account.Name, account.Email, account.Experience,
		account.PasswordHash, formatTime(account.CreatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateEmail
		}
		return err
	}
	account.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteDB) getUser(ctx context.Context, where string, arg any) (*models.Account, error) {
	query := `
		SELECT id, name, email, experience, password_hash, created_at
		FROM users WHERE ` + where

	account := &models.Account{}
	var createdAt string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&account.ID, &account.Name, &account.Email, &account.Experience,
		&account.PasswordHash, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	account.CreatedAt = parseTime(createdAt)
	return account, nil
}

// GetUserByEmail retrieves an account by its email
func (s *SQLiteDB) GetUserByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.getUser(ctx, "email = ?", email)
}

// GetUser retrieves an account by ID
func (s *SQLiteDB) GetUser(ctx context.Context, id int64) (*models.Account, error) {
	return s.getUser(ctx, "id = ?", id)
}

// SaveImage records an uploaded image
func (s *SQLiteDB) SaveImage(ctx context.Context, image *models.StoredImage) error {
	if image.CreatedAt.IsZero() {
		image.CreatedAt = now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO images (user_id, path, created_at) VALUES (?, ?, ?)`,
		image.UserID, image.Path, formatTime(image.CreatedAt),
	)
	if err != nil {
		return err
	}
	image.ID, err = res.LastInsertId()
	return err
}

// GetImage retrieves an image record
func (s *SQLiteDB) GetImage(ctx context.Context, id int64) (*models.StoredImage, error) {
	image := &models.StoredImage{}
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, path, created_at FROM images WHERE id = ?`, id,
	).Scan(&image.ID, &image.UserID, &image.Path, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	image.CreatedAt = parseTime(createdAt)
	return image, nil
}

// SavePrediction stores a prediction the user confirmed
func (s *SQLiteDB) SavePrediction(ctx context.Context, userID int64, p *models.SavedPrediction) error {
	query := `
		INSERT INTO predictions (
			user_id, image_id, grade, grade_confidence,
			category, category_confidence, model, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}

	res, err := s.db.ExecContext(ctx, query,
		userID, p.ImageID, string(p.Grade), p.GradeConfidence,
		p.Category, p.CategoryConfidence, p.Model, formatTime(p.CreatedAt),
	)
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	return err
}

const predictionColumns = `
	p.id, p.image_id, p.grade, p.grade_confidence, p.category,
	p.category_confidence, p.model, i.path, p.created_at, p.user_id`

func scanPrediction(row interface{ Scan(...any) error }) (*models.SavedPrediction, int64, error) {
	var (
		p         models.SavedPrediction
		grade     string
		createdAt string
		userID    int64
	)
	err := row.Scan(
		&p.ID, &p.ImageID, &grade, &p.GradeConfidence, &p.Category,
		&p.CategoryConfidence, &p.Model, &p.Image, &createdAt, &userID,
	)
	if err != nil {
		return nil, 0, err
	}
	p.Grade = models.Grade(grade)
	p.CreatedAt = parseTime(createdAt)
	return &p, userID, nil
}

// GetPrediction retrieves a saved prediction together with its owner
func (s *SQLiteDB) GetPrediction(ctx context.Context, id int64) (*models.SavedPrediction, int64, error) {
	query := `SELECT` + predictionColumns + `
		FROM predictions p JOIN images i ON i.id = p.image_id
		WHERE p.id = ?`

	p, userID, err := scanPrediction(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	return p, userID, err
}

// SaveFeedback stores feedback on a saved prediction
func (s *SQLiteDB) SaveFeedback(ctx context.Context, userID int64, fb *models.SavedFeedback) error {
	query := `
		INSERT INTO feedback (
			user_id, prediction_id, is_agreed, grade, comment,
			aroma, color, taste, after_taste, acceptability, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = now()
	}

	res, err := s.db.ExecContext(ctx, query,
		userID, fb.PredictionID, fb.IsAgreed, string(fb.Grade), fb.Comment,
		fb.Aroma, fb.Color, fb.Taste, fb.AfterTaste, fb.Acceptability,
		formatTime(fb.CreatedAt),
	)
	if err != nil {
		return err
	}
	fb.ID, err = res.LastInsertId()
	return err
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// RecentPredictions retrieves the most recent saved predictions of a user
func (s *SQLiteDB) RecentPredictions(ctx context.Context, userID int64, limit int) ([]*models.SavedPrediction, error) {
	query := `SELECT` + predictionColumns + `
		FROM predictions p JOIN images i ON i.id = p.image_id
		WHERE p.user_id = ?
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*models.SavedPrediction
	for rows.Next() {
		p, _, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}

	return results, rows.Err()
}
