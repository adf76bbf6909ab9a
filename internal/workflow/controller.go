// Package workflow drives the capture, upload, analysis and feedback steps of a grading run.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/franckalain/leafmetric/internal/app"
	"github.com/franckalain/leafmetric/internal/models"
)

// Gateway is the subset of the API the workflow calls
type Gateway interface {
	UploadImageFile(ctx context.Context, token, path string) (*models.UploadedImage, error)
	Analyze(ctx context.Context, token string, imageID int64, scores models.SensoryScores) (*models.Prediction, error)
	SaveAnalysis(ctx context.Context, token string, p models.Prediction) (*models.SavedPrediction, error)
	SaveFeedback(ctx context.Context, token string, fb models.Feedback) (*models.SavedFeedback, error)
}

// Option configures a Controller
type Option func(*Controller)

// WithMinAnalyzeDuration keeps the analysis step loading for at least d
func WithMinAnalyzeDuration(d time.Duration) Option {
	return func(c *Controller) {
		c.minAnalyze = d
	}
}

// WithLogger sets the logger for step transitions
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// Controller owns the workflow state. At most one remote call runs at a time.
type Controller struct {
	gateway    Gateway
	sessions   app.Sessions
	minAnalyze time.Duration
	logger     *log.Logger

	life context.Context
	stop context.CancelFunc

	mu       sync.Mutex
	state    State
	gen      uint64
	inflight context.CancelFunc
}

// New creates a controller on the home step
func New(gateway Gateway, sessions app.Sessions, opts ...Option) *Controller {
	life, stop := context.WithCancel(context.Background())
	c := &Controller{
		gateway:  gateway,
		sessions: sessions,
		logger:   log.New(io.Discard, "", 0),
		life:     life,
		stop:     stop,
		state:    State{Step: StepHome},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close cancels any call in flight; later results are dropped
func (c *Controller) Close() {
	c.mu.Lock()
	c.gen++
	c.state.Loading = false
	c.mu.Unlock()
	c.stop()
}

// Cancel abandons the call in flight and stays on the current step
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Loading {
		return
	}
	c.gen++
	c.state.Loading = false
	if c.inflight != nil {
		c.inflight()
		c.inflight = nil
	}
}

// local applies a synchronous action under the usual step checks
func (c *Controller) local(want Step, action func(s *State) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.life.Err() != nil {
		return ErrClosed
	}
	if c.state.Loading {
		return ErrBusy
	}
	if c.state.Step != want {
		return fmt.Errorf("%w: at %s, need %s", ErrWrongStep, c.state.Step, want)
	}
	if c.state.Err != nil {
		return ErrNeedsRetry
	}
	return action(&c.state)
}

// remote runs a network step: loading on, call with the current token,
// then either advance with apply or record the failure.
func (c *Controller) remote(ctx context.Context, want Step, check func(s *State) error,
	call func(ctx context.Context, token string, s State) (func(s *State), error)) error {

	c.mu.Lock()
	if c.life.Err() != nil {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state.Loading {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.state.Step != want {
		step := c.state.Step
		c.mu.Unlock()
		return fmt.Errorf("%w: at %s, need %s", ErrWrongStep, step, want)
	}
	if c.state.Err != nil {
		c.mu.Unlock()
		return ErrNeedsRetry
	}
	if err := check(&c.state); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state.Loading = true
	c.state.Err = nil
	c.state.Notice = ""
	c.gen++
	gen := c.gen
	snapshot := c.state
	callCtx, cancel := context.WithCancel(ctx)
	stopAfter := context.AfterFunc(c.life, cancel)
	c.inflight = cancel
	c.mu.Unlock()

	defer stopAfter()
	defer cancel()

	// The token is read when the call is made, never cached by the workflow
	apply, err := call(callCtx, c.sessions.Token(), snapshot)

	var decision app.Decision
	if err != nil && callCtx.Err() == nil {
		decision = app.Guard(ctx, c.logger, c.sessions, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.logger.Printf("[WORKFLOW] dropped stale %s result", want)
		if err == nil {
			err = context.Canceled
		}
		return err
	}
	c.inflight = nil
	c.state.Loading = false

	if err != nil {
		if callCtx.Err() != nil {
			// The caller went away; stay on the step without an error screen
			return err
		}
		if decision.Relogin {
			c.logger.Printf("[WORKFLOW] session expired during %s", want)
			c.state = State{Step: StepLogin, Notice: decision.Notice}
			return err
		}
		c.logger.Printf("[WORKFLOW] %s failed: %v", want, err)
		c.state.Err = err
		return err
	}

	apply(&c.state)
	c.logger.Printf("[WORKFLOW] %s -> %s", want, c.state.Step)
	return nil
}

// Begin starts a new grading run from the home screen
func (c *Controller) Begin() error {
	return c.local(StepHome, func(s *State) error {
		*s = State{Step: StepCapture}
		return nil
	})
}

// Home abandons the run and returns to the home screen
func (c *Controller) Home() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Loading {
		return ErrBusy
	}
	c.state = State{Step: StepHome}
	return nil
}

// Retry discards a failed run and starts again at capture
func (c *Controller) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Loading {
		return ErrBusy
	}
	if c.state.Err == nil {
		return fmt.Errorf("%w: nothing to retry", ErrWrongStep)
	}
	c.state = State{Step: StepCapture}
	return nil
}

// Capture picks the image to grade
func (c *Controller) Capture(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoImage, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a file", ErrNoImage, path)
	}
	return c.local(StepCapture, func(s *State) error {
		s.Image = &models.CapturedImage{Path: path}
		s.Step = StepPreview
		return nil
	})
}

// Retake discards the previewed image
func (c *Controller) Retake() error {
	return c.local(StepPreview, func(s *State) error {
		s.Image = nil
		s.Step = StepCapture
		return nil
	})
}

// Upload sends the previewed image and moves on to sensory input
func (c *Controller) Upload(ctx context.Context) error {
	return c.remote(ctx, StepPreview,
		func(s *State) error {
			if s.Image == nil {
				return ErrNoImage
			}
			return nil
		},
		func(ctx context.Context, token string, s State) (func(*State), error) {
			up, err := c.gateway.UploadImageFile(ctx, token, s.Image.Path)
			if err != nil {
				return nil, err
			}
			return func(s *State) {
				s.Upload = up
				s.Scores = models.SensoryInput{}
				s.Step = StepSensory
			}, nil
		})
}

// SetScore sets one sensory score
func (c *Controller) SetScore(attr models.Attribute, v int) error {
	if !models.ValidScore(v) {
		return fmt.Errorf("%w: %s = %d", ErrInvalidScore, attr, v)
	}
	return c.local(StepSensory, func(s *State) error {
		s.Scores.Set(attr, &v)
		return nil
	})
}

// ResetScores clears every sensory score
func (c *Controller) ResetScores() error {
	return c.local(StepSensory, func(s *State) error {
		if s.Scores.Empty() {
			return ErrNothingToReset
		}
		s.Scores = models.SensoryInput{}
		return nil
	})
}

// Analyze requests a prediction for the uploaded image and scores
func (c *Controller) Analyze(ctx context.Context) error {
	return c.remote(ctx, StepSensory,
		func(s *State) error {
			if s.Upload == nil {
				return ErrNoImage
			}
			if !s.Scores.Complete() {
				return ErrIncompleteScores
			}
			return nil
		},
		func(ctx context.Context, token string, s State) (func(*State), error) {
			start := time.Now()
			scores, _ := s.Scores.Scores()
			p, err := c.gateway.Analyze(ctx, token, s.Upload.ID, scores)
			c.holdLoading(ctx, start)
			if err != nil {
				return nil, err
			}
			if p.ImageID == 0 {
				p.ImageID = s.Upload.ID
			}
			return func(s *State) {
				s.Prediction = p
				s.Step = StepResult
			}, nil
		})
}

// holdLoading waits out the rest of the minimum analysis duration
func (c *Controller) holdLoading(ctx context.Context, start time.Time) {
	remaining := c.minAnalyze - time.Since(start)
	if remaining <= 0 {
		return
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func requirePrediction(s *State) error {
	if s.Prediction == nil {
		return errors.New("no prediction to save")
	}
	return nil
}

func (c *Controller) saveAnalysis(ctx context.Context, token string, s State) (*models.SavedPrediction, error) {
	return c.gateway.SaveAnalysis(ctx, token, *s.Prediction)
}

// Confirm saves the prediction and returns home
func (c *Controller) Confirm(ctx context.Context) error {
	return c.remote(ctx, StepResult, requirePrediction,
		func(ctx context.Context, token string, s State) (func(*State), error) {
			if _, err := c.saveAnalysis(ctx, token, s); err != nil {
				return nil, err
			}
			return func(s *State) {
				*s = State{Step: StepHome, Notice: NoticeResultSaved}
			}, nil
		})
}

// ProvideFeedback saves the prediction and opens the feedback form
func (c *Controller) ProvideFeedback(ctx context.Context) error {
	return c.remote(ctx, StepResult, requirePrediction,
		func(ctx context.Context, token string, s State) (func(*State), error) {
			saved, err := c.saveAnalysis(ctx, token, s)
			if err != nil {
				return nil, err
			}
			return func(s *State) {
				s.Saved = saved
				s.Draft = FeedbackDraft{Agree: true, Grade: defaultGrade(s.Prediction.Grade)}
				s.Step = StepFeedback
			}, nil
		})
}

// SetAgreement records whether the user agrees with the prediction
func (c *Controller) SetAgreement(agree bool) error {
	return c.local(StepFeedback, func(s *State) error {
		s.Draft.Agree = agree
		return nil
	})
}

// SelectGrade sets the grade the user would have given
func (c *Controller) SelectGrade(g models.Grade) error {
	if !g.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownGrade, g)
	}
	return c.local(StepFeedback, func(s *State) error {
		s.Draft.Grade = g
		return nil
	})
}

// SetComment sets the optional free text comment
func (c *Controller) SetComment(comment string) error {
	return c.local(StepFeedback, func(s *State) error {
		s.Draft.Comment = comment
		return nil
	})
}

// SaveFeedback submits the feedback form and returns home
func (c *Controller) SaveFeedback(ctx context.Context) error {
	return c.remote(ctx, StepFeedback,
		func(s *State) error {
			if s.Saved == nil {
				return errors.New("no saved prediction for feedback")
			}
			if !s.Scores.Complete() {
				return ErrIncompleteScores
			}
			return nil
		},
		func(ctx context.Context, token string, s State) (func(*State), error) {
			scores, _ := s.Scores.Scores()
			fb := models.Feedback{
				PredictionID:  s.Saved.ID,
				IsAgreed:      s.Draft.Agree,
				Grade:         s.Draft.Grade,
				Comment:       s.Draft.Comment,
				SensoryScores: scores,
			}
			if _, err := c.gateway.SaveFeedback(ctx, token, fb); err != nil {
				return nil, err
			}
			return func(s *State) {
				*s = State{Step: StepHome, Notice: NoticeFeedbackSaved}
			}, nil
		})
}

// CancelFeedback leaves the feedback form without saving
func (c *Controller) CancelFeedback() error {
	return c.local(StepFeedback, func(s *State) error {
		*s = State{Step: StepHome}
		return nil
	})
}
