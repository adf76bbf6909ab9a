package console

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/franckalain/leafmetric/internal/models"
	"github.com/franckalain/leafmetric/internal/workflow"
)

// Grade runs one grading wizard. imagePath, when set, is used for the first capture.
func (c *Console) Grade(ctx context.Context, imagePath string) error {
	ctl := workflow.New(c.gateway, c.sessions,
		workflow.WithMinAnalyzeDuration(c.minAnalyze),
		workflow.WithLogger(c.logger),
	)
	defer ctl.Close()

	if err := ctl.Begin(); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s := ctl.Snapshot()
		if s.Err != nil {
			c.printf("Error: %s\n", s.Err)
			choice, err := c.choose("[t]ry again, [q]uit", "try", "quit")
			if err != nil {
				return err
			}
			if choice == "quit" {
				return ctl.Home()
			}
			if err := ctl.Retry(); err != nil {
				return err
			}
			continue
		}

		var err error
		switch s.Step {
		case workflow.StepHome:
			if s.Notice != "" {
				c.println(s.Notice)
			}
			return nil
		case workflow.StepLogin:
			c.println(s.Notice)
			return ErrSessionExpired
		case workflow.StepCapture:
			err = c.captureStep(ctl, imagePath)
			imagePath = ""
		case workflow.StepPreview:
			err = c.previewStep(ctx, ctl, s)
		case workflow.StepSensory:
			err = c.sensoryStep(ctx, ctl, s)
		case workflow.StepResult:
			err = c.resultStep(ctx, ctl, s)
		case workflow.StepFeedback:
			err = c.feedbackStep(ctx, ctl, s)
		}
		if err != nil && !settled(ctl) {
			return err
		}
	}
}

// settled reports whether a failed action already left its mark on the state
func settled(ctl *workflow.Controller) bool {
	s := ctl.Snapshot()
	return s.Err != nil || s.Step == workflow.StepLogin
}

func (c *Console) captureStep(ctl *workflow.Controller, path string) error {
	c.println("STEP 01  Take a photo of the tea leaves")
	for {
		if path == "" {
			answer, err := c.prompt("Image file (or q to quit): ")
			if err != nil {
				return err
			}
			if strings.EqualFold(answer, "q") {
				return ctl.Home()
			}
			path = answer
		}
		err := ctl.Capture(path)
		if !errors.Is(err, workflow.ErrNoImage) {
			return err
		}
		c.printf("Cannot use %s: %v\n", path, err)
		path = ""
	}
}

func (c *Console) previewStep(ctx context.Context, ctl *workflow.Controller, s workflow.State) error {
	c.println("STEP 02  Preview")
	c.println(s.Image.Path)
	choice, err := c.choose("[u]pload, [r]etake, [q]uit", "upload", "retake", "quit")
	if err != nil {
		return err
	}
	switch choice {
	case "upload":
		c.println("Uploading image...")
		return ctl.Upload(ctx)
	case "retake":
		return ctl.Retake()
	}
	return ctl.Home()
}

func (c *Console) sensoryStep(ctx context.Context, ctl *workflow.Controller, s workflow.State) error {
	c.println("STEP 03  Please fill in according to your taste and perception")
	for _, attr := range models.Attributes {
		if v := s.Scores.Get(attr); v != nil {
			c.printf("%s: %d\n", attr.Label(), *v)
			continue
		}
		if err := c.askScore(ctl, attr); err != nil {
			return err
		}
	}

	s = ctl.Snapshot()
	options := []string{"quit"}
	label := "[q]uit"
	if s.CanReset() {
		options = append([]string{"reset"}, options...)
		label = "[r]eset, " + label
	}
	if s.CanAnalyze() {
		options = append([]string{"analyze"}, options...)
		label = "[a]nalyze, " + label
	}
	choice, err := c.choose(label, options...)
	if err != nil {
		return err
	}
	switch choice {
	case "analyze":
		c.println("Evaluating your tea sample...")
		return ctl.Analyze(ctx)
	case "reset":
		return ctl.ResetScores()
	}
	return ctl.Home()
}

func (c *Console) askScore(ctl *workflow.Controller, attr models.Attribute) error {
	for {
		answer, err := c.prompt(attr.Label() + " (1-7): ")
		if err != nil {
			return err
		}
		v, convErr := strconv.Atoi(answer)
		if convErr == nil {
			err := ctl.SetScore(attr, v)
			if err == nil {
				return nil
			}
			if !errors.Is(err, workflow.ErrInvalidScore) {
				return err
			}
		}
		c.printf("Enter a whole number from %d to %d\n", models.MinScore, models.MaxScore)
	}
}

func (c *Console) resultStep(ctx context.Context, ctl *workflow.Controller, s workflow.State) error {
	c.println("STEP 04  Tea Grading Result")
	c.println(FormatGrade(*s.Prediction))
	c.println(FormatCategory(*s.Prediction))
	if s.Upload != nil {
		c.println("Image: " + c.gateway.ImageURL(s.Upload.Path))
	}
	choice, err := c.choose("[c]onfirm, [f]eedback", "confirm", "feedback")
	if err != nil {
		return err
	}
	if choice == "confirm" {
		c.println("Saving result...")
		return ctl.Confirm(ctx)
	}
	c.println("Saving result...")
	return ctl.ProvideFeedback(ctx)
}

func (c *Console) feedbackStep(ctx context.Context, ctl *workflow.Controller, s workflow.State) error {
	c.println("STEP 05  Feedback")
	c.printf("Predicted grade %s, category %d\n", s.Prediction.Grade, s.Prediction.Category)

	answer, err := c.prompt("Do you agree with the result? [Y/n]: ")
	if err != nil {
		return err
	}
	agree := !strings.HasPrefix(strings.ToLower(answer), "n")
	if err := ctl.SetAgreement(agree); err != nil {
		return err
	}

	names := make([]string, len(models.Grades))
	for i, g := range models.Grades {
		names[i] = string(g)
	}
	for {
		answer, err := c.prompt("Give a grade based on your taste (" + strings.Join(names, ", ") + ") [" + string(s.Draft.Grade) + "]: ")
		if err != nil {
			return err
		}
		if answer == "" {
			break
		}
		err = ctl.SelectGrade(models.Grade(strings.ToUpper(answer)))
		if err == nil {
			break
		}
		if !errors.Is(err, workflow.ErrUnknownGrade) {
			return err
		}
		c.printf("Unknown grade %q\n", answer)
	}

	comment, err := c.prompt("Share your thoughts (optional): ")
	if err != nil {
		return err
	}
	if err := ctl.SetComment(comment); err != nil {
		return err
	}

	choice, err := c.choose("[s]ave feedback, [c]ancel", "save", "cancel")
	if err != nil {
		return err
	}
	if choice == "cancel" {
		return ctl.CancelFeedback()
	}
	c.println("Saving feedback...")
	return ctl.SaveFeedback(ctx)
}
