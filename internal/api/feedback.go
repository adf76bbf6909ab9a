package api

import (
	"context"
	"net/http"

	"github.com/franckalain/leafmetric/internal/models"
)

// SaveFeedback records the user's opinion on a saved prediction
func (c *Client) SaveFeedback(ctx context.Context, token string, fb models.Feedback) (*models.SavedFeedback, error) {
	const op = "save_feedback"
	if err := requireToken(op, token); err != nil {
		return nil, err
	}
	body, err := jsonBody(fb)
	if err != nil {
		return nil, err
	}
	data, _, err := c.send(ctx, call{
		op:       op,
		fallback: "Saving feedback failed",
		method:   http.MethodPost,
		path:     "/api/feedback",
		auth:     true,
		token:    token,
		body:     body,
	})
	if err != nil {
		return nil, err
	}

	var saved models.SavedFeedback
	if err := decodeField(op, data, "feedback", &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}
