package models

import (
	"time"
)

// Grade is a processed tea leaf grade label
type Grade string

const (
	GradeOP  Grade = "OP"
	GradeOP1 Grade = "OP1"
	GradeOPA Grade = "OPA"
)

// Grades lists the grades a user can pick when giving feedback
var Grades = []Grade{GradeOP, GradeOP1, GradeOPA}

// Valid reports whether g is one of the selectable grades
func (g Grade) Valid() bool {
	for _, known := range Grades {
		if g == known {
			return true
		}
	}
	return false
}

// CapturedImage is a local image picked for grading
type CapturedImage struct {
	Path string `json:"path"`
}

// UploadedImage is the server identity of an uploaded image
type UploadedImage struct {
	ID   int64  `json:"id"`
	Path string `json:"path"`
}

// Prediction is the grading result returned by the analysis call
type Prediction struct {
	ImageID            int64   `json:"imageId"`
	Grade              Grade   `json:"grade"`
	GradeConfidence    float64 `json:"gradeConfidence"` // 0..1
	Category           int     `json:"category"`
	CategoryConfidence float64 `json:"categoryConfidence"` // 0..1
	Model              string  `json:"model"`
	Image              string  `json:"image,omitempty"` // server storage path
}

// SavedPrediction is a prediction the user confirmed or sent to feedback
type SavedPrediction struct {
	ID int64 `json:"id"`
	Prediction
	CreatedAt time.Time `json:"createdAt"`
}

// Feedback is the user's opinion on a saved prediction
type Feedback struct {
	PredictionID int64  `json:"predictionId"`
	IsAgreed     bool   `json:"isAgreed"`
	Grade        Grade  `json:"grade"`
	Comment      string `json:"comment"`
	SensoryScores
}

// SavedFeedback is feedback stored by the server
type SavedFeedback struct {
	ID int64 `json:"id"`
	Feedback
	CreatedAt time.Time `json:"createdAt"`
}
