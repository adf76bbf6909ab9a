package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/franckalain/leafmetric/internal/models"
	"google.golang.org/api/option"
)

// GoogleConfig holds configuration for the Google model
type GoogleConfig struct {
	BaseConfig
	ProjectID       string `json:"project_id"`
	Location        string `json:"location"`
	CredentialsFile string `json:"credentials_file"`
	ModelName       string `json:"model_name"`
}

// Load loads the Google configuration
func (c *GoogleConfig) Load() error {
	if err := c.LoadConfig(c.ConfigPath, "google", c); err != nil {
		return err
	}

	// Fall back to environment variables if not set
	if c.ProjectID == "" {
		c.ProjectID = os.Getenv("GOOGLE_PROJECT_ID")
	}
	if c.Location == "" {
		c.Location = os.Getenv("GOOGLE_LOCATION")
	}
	if c.CredentialsFile == "" {
		c.CredentialsFile = os.Getenv("GOOGLE_CREDENTIALS_FILE")
	}
	if c.ModelName == "" {
		c.ModelName = "gemini-1.5-flash"
	}
	if c.ProjectID == "" || c.Location == "" {
		return fmt.Errorf("google project_id and location are required")
	}

	return nil
}

// GoogleModel implements the Model interface for Google's Vertex AI
type GoogleModel struct {
	config GoogleConfig
	client *genai.Client
	model  *genai.GenerativeModel
}

// GoogleModelFactory implements ModelFactory for Google models
type GoogleModelFactory struct {
	config GoogleConfig
}

// NewGoogleModelFactory creates a new Google model factory
func NewGoogleModelFactory(config GoogleConfig) *GoogleModelFactory {
	return &GoogleModelFactory{config: config}
}

// CreateModel creates a new Google model instance
func (f *GoogleModelFactory) CreateModel() (Model, error) {
	return &GoogleModel{
		config: f.config,
	}, nil
}

// Load initializes the Google model
func (m *GoogleModel) Load(ctx context.Context) error {
	opts := []option.ClientOption{}

	if m.config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(m.config.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, m.config.ProjectID, m.config.Location, opts...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	m.client = client
	m.model = client.GenerativeModel(m.config.ModelName)
	m.model.ResponseMIMEType = "application/json"
	return nil
}

const gradingPrompt = `You are a tea leaf grading expert. Look at this photo of processed black tea leaves
and grade the leaf as one of:
- OP (Orange Pekoe): long, wiry, tightly rolled leaf
- OP1 (Orange Pekoe 1): finer, more delicate and tightly twisted than OP
- OPA (Orange Pekoe A): bold, long, loosely rolled leaf

The taster scored the liquor from 1 (poor) to 7 (excellent):
aroma %d, color %d, taste %d, aftertaste %d, acceptability %d.
Combine them with what you see into a quality category: 1 (premium), 2 (standard) or 3 (low).

Answer with exactly one JSON object and nothing else. Populate exactly one of "error" or "success".
{
	"error": {
		"error_reason": "string",
		"suggestion_for_better_results": "string"
	},
	"success": {
		"grade": "OP" | "OP1" | "OPA",
		"grade_confidence": number between 0 and 1,
		"category": 1 | 2 | 3,
		"category_confidence": number between 0 and 1
	}
}`

// Grade grades an image using Google's Vertex AI
func (m *GoogleModel) Grade(ctx context.Context, imageData []byte, scores models.SensoryScores) (*Grading, error) {
	if m.model == nil {
		return nil, fmt.Errorf("model not loaded")
	}

	prompt := fmt.Sprintf(gradingPrompt,
		scores.Aroma, scores.Color, scores.Taste, scores.AfterTaste, scores.Acceptability)
	img, err := imagePart(imageData)
	if err != nil {
		return nil, err
	}

	log.Printf("Calling %s", m.config.ModelName)
	resp, err := m.model.GenerateContent(ctx, genai.Text(prompt), img)
	if err != nil {
		return nil, fmt.Errorf("failed to call ai: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no response generated")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("no content in response")
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	g, err := parseGradingAnswer(text.String())
	if err != nil {
		return nil, err
	}
	g.Model = m.config.ModelName
	return g, nil
}

// imagePart wraps the image with the MIME type of its actual format
func imagePart(data []byte) (genai.Blob, error) {
	format, err := CheckImage(data)
	if err != nil {
		return genai.Blob{}, err
	}
	return genai.ImageData(format, data), nil
}

// parseGradingAnswer reads the model's JSON answer, with or without a code fence
func parseGradingAnswer(text string) (*Grading, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var output struct {
		Error *struct {
			ErrorReason string `json:"error_reason"`
			Suggestion  string `json:"suggestion_for_better_results"`
		} `json:"error"`
		Success *struct {
			Grade              string   `json:"grade"`
			GradeConfidence    *float64 `json:"grade_confidence"`
			Category           int      `json:"category"`
			CategoryConfidence *float64 `json:"category_confidence"`
		} `json:"success"`
	}
	if err := json.Unmarshal([]byte(text), &output); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w while parsing %s", err, text)
	}

	if output.Error != nil && output.Error.ErrorReason != "" {
		return nil, fmt.Errorf("error: %s; suggestion: %s", output.Error.ErrorReason, output.Error.Suggestion)
	}
	s := output.Success
	if s == nil {
		return nil, fmt.Errorf("missing or invalid success object in response")
	}

	grade := models.Grade(strings.ToUpper(strings.TrimSpace(s.Grade)))
	if !grade.Valid() {
		return nil, fmt.Errorf("unknown grade %q in response", s.Grade)
	}
	if s.Category < 1 || s.Category > 3 {
		return nil, fmt.Errorf("category %d out of range in response", s.Category)
	}
	if s.GradeConfidence == nil || s.CategoryConfidence == nil {
		return nil, fmt.Errorf("missing confidence in response")
	}

	return &Grading{
		Grade:              grade,
		GradeConfidence:    clamp01(*s.GradeConfidence),
		Category:           s.Category,
		CategoryConfidence: clamp01(*s.CategoryConfidence),
	}, nil
}

// Close releases the Vertex AI client
func (m *GoogleModel) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}
