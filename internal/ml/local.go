package ml

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"strconv"

	"github.com/franckalain/leafmetric/internal/models"
)

// LocalModelName is reported with every local grading
const LocalModelName = "leafmetric-local-v1"

// LocalConfig holds configuration for the local model
type LocalConfig struct {
	BaseConfig
	// Luminance thresholds (0..1) between bold, regular and fine leaf
	BoldBelow float64 `json:"bold_below"`
	FineAbove float64 `json:"fine_above"`
}

// Load loads the local configuration
func (c *LocalConfig) Load() error {
	if err := c.LoadConfig(c.ConfigPath, "local", c); err != nil {
		return err
	}

	// Fall back to environment variables if not set
	if c.BoldBelow == 0 {
		c.BoldBelow = envFloat("LOCAL_BOLD_BELOW", 0.25)
	}
	if c.FineAbove == 0 {
		c.FineAbove = envFloat("LOCAL_FINE_ABOVE", 0.45)
	}
	if c.BoldBelow >= c.FineAbove {
		return fmt.Errorf("bold_below (%.2f) must be lower than fine_above (%.2f)", c.BoldBelow, c.FineAbove)
	}
	return nil
}

func envFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

// LocalModel grades with a deterministic heuristic: the leaf grade comes from
// image luminance and the quality category from the weighted sensory scores.
type LocalModel struct {
	config LocalConfig
}

// LocalModelFactory implements ModelFactory for local models
type LocalModelFactory struct {
	config LocalConfig
}

// NewLocalModelFactory creates a new local model factory
func NewLocalModelFactory(config LocalConfig) *LocalModelFactory {
	return &LocalModelFactory{config: config}
}

// CreateModel creates a new local model instance
func (f *LocalModelFactory) CreateModel() (Model, error) {
	return &LocalModel{
		config: f.config,
	}, nil
}

// Load initializes the local model
func (m *LocalModel) Load(ctx context.Context) error {
	return nil
}

var sensoryWeights = models.SensoryScores{Aroma: 25, Color: 15, Taste: 30, AfterTaste: 15, Acceptability: 15}

// Quality maps sensory scores to 0..1
func Quality(s models.SensoryScores) float64 {
	w := sensoryWeights
	total := w.Aroma + w.Color + w.Taste + w.AfterTaste + w.Acceptability
	sum := w.Aroma*s.Aroma + w.Color*s.Color + w.Taste*s.Taste + w.AfterTaste*s.AfterTaste + w.Acceptability*s.Acceptability
	mean := float64(sum) / float64(total)
	return clamp01((mean - models.MinScore) / (models.MaxScore - models.MinScore))
}

// Grade grades an image using the local heuristic
func (m *LocalModel) Grade(ctx context.Context, imageData []byte, scores models.SensoryScores) (*Grading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lum, err := meanLuminance(imageData)
	if err != nil {
		return nil, err
	}

	g := &Grading{Model: LocalModelName}
	switch {
	case lum < m.config.BoldBelow:
		g.Grade = models.GradeOPA
		g.GradeConfidence = bandConfidence(lum, 0, m.config.BoldBelow)
	case lum > m.config.FineAbove:
		g.Grade = models.GradeOP1
		g.GradeConfidence = bandConfidence(lum, m.config.FineAbove, 1)
	default:
		g.Grade = models.GradeOP
		g.GradeConfidence = bandConfidence(lum, m.config.BoldBelow, m.config.FineAbove)
	}
	g.Category, g.CategoryConfidence = category(Quality(scores))
	return g, nil
}

// meanLuminance decodes a JPEG or PNG and returns its average luma in 0..1
func meanLuminance(data []byte) (float64, error) {
	if _, err := CheckImage(data); err != nil {
		return 0, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to decode image: %w", err)
	}
	b := img.Bounds()
	if b.Empty() {
		return 0, fmt.Errorf("empty image")
	}

	// Sample at most ~64x64 points
	stepX := max(1, b.Dx()/64)
	stepY := max(1, b.Dy()/64)
	var sum float64
	var n int
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			r, g, bl, _ := img.At(x, y).RGBA()
			sum += (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 0xffff
			n++
		}
	}
	return sum / float64(n), nil
}
