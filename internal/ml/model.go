package ml

import (
	"context"
	"fmt"

	"github.com/franckalain/leafmetric/internal/models"
)

// Grading is a model's verdict on a tea sample
type Grading struct {
	Grade              models.Grade
	GradeConfidence    float64 // 0..1
	Category           int     // 1 (best) .. 3
	CategoryConfidence float64 // 0..1
	Model              string
}

// Model grades tea leaf images together with the taster's sensory scores
type Model interface {
	// Load initializes the model with its configuration
	Load(ctx context.Context) error
	// Grade returns the grade and quality category of a sample
	Grade(ctx context.Context, image []byte, scores models.SensoryScores) (*Grading, error)
}

// ModelFactory creates a new model instance based on configuration
type ModelFactory interface {
	// CreateModel creates a new model instance
	CreateModel() (Model, error)
}

// NewModel creates a new model instance based on the model type.
// configPath is optional; each model falls back to config/<type>.json and the environment.
func NewModel(modelType, configPath string) (Model, error) {
	var factory ModelFactory

	switch modelType {
	case "google":
		config := GoogleConfig{
			BaseConfig: BaseConfig{
				ConfigPath: configPath,
			},
		}
		if err := config.Load(); err != nil {
			return nil, fmt.Errorf("failed to load Google config: %w", err)
		}
		factory = NewGoogleModelFactory(config)
	case "local":
		config := LocalConfig{
			BaseConfig: BaseConfig{
				ConfigPath: configPath,
			},
		}
		if err := config.Load(); err != nil {
			return nil, fmt.Errorf("failed to load local config: %w", err)
		}
		factory = NewLocalModelFactory(config)
	default:
		return nil, fmt.Errorf("unsupported model type: %s", modelType)
	}
	return factory.CreateModel()
}

// category maps a 0..1 quality to a category and how far inside its band it sits
func category(quality float64) (int, float64) {
	switch {
	case quality >= 2.0/3:
		return 1, bandConfidence(quality, 2.0/3, 1)
	case quality >= 1.0/3:
		return 2, bandConfidence(quality, 1.0/3, 2.0/3)
	default:
		return 3, bandConfidence(quality, 0, 1.0/3)
	}
}

// bandConfidence is 1 at the middle of [lo, hi] and 0.5 at its edges
func bandConfidence(v, lo, hi float64) float64 {
	mid := (lo + hi) / 2
	half := (hi - lo) / 2
	d := v - mid
	if d < 0 {
		d = -d
	}
	return clamp01(1 - 0.5*d/half)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
