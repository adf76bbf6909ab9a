package workflow

import (
	"errors"
	"fmt"

	"github.com/franckalain/leafmetric/internal/models"
)

// Step is a screen of the grading workflow
type Step int

const (
	StepHome Step = iota
	StepCapture
	StepPreview
	StepSensory
	StepResult
	StepFeedback
	StepLogin
)

func (s Step) String() string {
	switch s {
	case StepHome:
		return "home"
	case StepCapture:
		return "capture"
	case StepPreview:
		return "preview"
	case StepSensory:
		return "sensory"
	case StepResult:
		return "result"
	case StepFeedback:
		return "feedback"
	case StepLogin:
		return "login"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Notices shown on the home screen after a finished run
const (
	NoticeResultSaved   = "Result saved successfully"
	NoticeFeedbackSaved = "Feedback saved successfully"
)

var (
	ErrBusy             = errors.New("a request is already in progress")
	ErrWrongStep        = errors.New("action not available at this step")
	ErrNeedsRetry       = errors.New("the last step failed; retry from capture")
	ErrNoImage          = errors.New("no image to preview")
	ErrInvalidScore     = fmt.Errorf("score must be between %d and %d", models.MinScore, models.MaxScore)
	ErrIncompleteScores = errors.New("all five sensory scores are required")
	ErrNothingToReset   = errors.New("no sensory scores to reset")
	ErrUnknownGrade     = errors.New("unknown grade")
	ErrClosed           = errors.New("workflow closed")
)

// FeedbackDraft is the feedback form being filled in
type FeedbackDraft struct {
	Agree   bool
	Grade   models.Grade
	Comment string
}

// State is everything the workflow carries from one step to the next
type State struct {
	Step    Step
	Loading bool
	Err     error  // failure of the last remote step
	Notice  string // success or session notice for the current screen

	Image      *models.CapturedImage
	Upload     *models.UploadedImage
	Scores     models.SensoryInput
	Prediction *models.Prediction
	Saved      *models.SavedPrediction
	Draft      FeedbackDraft
}

// CanAnalyze reports whether the Analyze action is enabled
func (s State) CanAnalyze() bool {
	return s.Step == StepSensory && !s.Loading && s.Err == nil && s.Scores.Complete()
}

// CanReset reports whether the Reset action is enabled
func (s State) CanReset() bool {
	return s.Step == StepSensory && !s.Loading && s.Err == nil && !s.Scores.Empty()
}

// defaultGrade picks the grade the feedback form starts with
func defaultGrade(predicted models.Grade) models.Grade {
	if predicted.Valid() {
		return predicted
	}
	return models.Grades[0]
}
