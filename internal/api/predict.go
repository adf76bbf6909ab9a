package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/franckalain/leafmetric/internal/models"
)

type analyzeRequest struct {
	ImageID int64 `json:"imageId"`
	models.SensoryScores
}

type saveAnalysisRequest struct {
	ImageID            int64        `json:"imageId"`
	Grade              models.Grade `json:"grade"`
	GradeConfidence    float64      `json:"gradeConfidence"`
	Category           int          `json:"category"`
	CategoryConfidence float64      `json:"categoryConfidence"`
	Model              string       `json:"model"`
}

// Analyze asks the service to grade an uploaded image with the given sensory scores
func (c *Client) Analyze(ctx context.Context, token string, imageID int64, scores models.SensoryScores) (*models.Prediction, error) {
	const op = "analyze"
	if err := requireToken(op, token); err != nil {
		return nil, err
	}
	body, err := jsonBody(analyzeRequest{ImageID: imageID, SensoryScores: scores})
	if err != nil {
		return nil, err
	}
	data, _, err := c.send(ctx, call{
		op:       op,
		fallback: "Analyze failed",
		method:   http.MethodPost,
		path:     "/api/predict",
		auth:     true,
		token:    token,
		body:     body,
	})
	if err != nil {
		return nil, err
	}

	var prediction models.Prediction
	if err := json.Unmarshal(data, &prediction); err != nil {
		return nil, invalidResponse(op, http.StatusOK, err)
	}
	return &prediction, nil
}

// SaveAnalysis stores a prediction so it can be confirmed or given feedback
func (c *Client) SaveAnalysis(ctx context.Context, token string, p models.Prediction) (*models.SavedPrediction, error) {
	const op = "save_analysis"
	if err := requireToken(op, token); err != nil {
		return nil, err
	}
	body, err := jsonBody(saveAnalysisRequest{
		ImageID:            p.ImageID,
		Grade:              p.Grade,
		GradeConfidence:    p.GradeConfidence,
		Category:           p.Category,
		CategoryConfidence: p.CategoryConfidence,
		Model:              p.Model,
	})
	if err != nil {
		return nil, err
	}
	data, _, err := c.send(ctx, call{
		op:       op,
		fallback: "Saving analyze failed",
		method:   http.MethodPost,
		path:     "/api/predict/save",
		auth:     true,
		token:    token,
		body:     body,
	})
	if err != nil {
		return nil, err
	}

	var saved models.SavedPrediction
	if err := decodeField(op, data, "prediction", &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}
