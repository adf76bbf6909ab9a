// Package app wires the client dependencies into one explicitly passed context.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/franckalain/leafmetric/internal/api"
	"github.com/franckalain/leafmetric/internal/config"
	"github.com/franckalain/leafmetric/internal/models"
	"github.com/franckalain/leafmetric/internal/securestore"
	"github.com/franckalain/leafmetric/internal/session"
)

// Sessions is the part of the session store that screens and the workflow need
type Sessions interface {
	Token() string
	User() (models.User, bool)
	Login(ctx context.Context, token string, user models.User) error
	Logout(ctx context.Context) error
}

// Gateway is the remote API as used by screens and the workflow
type Gateway interface {
	Login(ctx context.Context, email, password string) (*api.LoginResult, error)
	Register(ctx context.Context, req api.RegisterRequest) (*models.User, error)
	CurrentUser(ctx context.Context, token string) (*models.User, error)
	UploadImageFile(ctx context.Context, token, path string) (*models.UploadedImage, error)
	Analyze(ctx context.Context, token string, imageID int64, scores models.SensoryScores) (*models.Prediction, error)
	SaveAnalysis(ctx context.Context, token string, p models.Prediction) (*models.SavedPrediction, error)
	SaveFeedback(ctx context.Context, token string, fb models.Feedback) (*models.SavedFeedback, error)
	ImageURL(path string) string
}

var (
	_ Sessions = (*session.Store)(nil)
	_ Gateway  = (*api.Client)(nil)
)

// App is the client's dependency container, built once in main and passed down
type App struct {
	Config  *config.Config
	Session *session.Store
	API     *api.Client
	Logger  *log.Logger

	store securestore.Store
}

// New builds the app from configuration. With debug false, log output is discarded.
func New(cfg *config.Config, debug bool) (*App, error) {
	logger := log.New(io.Discard, "", 0)
	if debug {
		logger = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
	}
	if cfg.Source == "" {
		logger.Printf("[CONFIG] no config file found, using defaults")
	} else {
		logger.Printf("[CONFIG] loaded %s", cfg.Source)
	}

	store, err := securestore.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open secure storage: %w", err)
	}

	return &App{
		Config:  cfg,
		Session: session.New(store, logger),
		API:     api.New(cfg.API.BaseURL, api.WithTimeout(cfg.API.Timeout.Std()), api.WithLogger(logger)),
		Logger:  logger,
		store:   store,
	}, nil
}

// Close releases the secure storage backend
func (a *App) Close() error {
	if c, ok := a.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
