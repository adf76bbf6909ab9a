package console

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/franckalain/leafmetric/internal/api"
	"github.com/franckalain/leafmetric/internal/models"
	"github.com/franckalain/leafmetric/internal/securestore"
	"github.com/franckalain/leafmetric/internal/session"
)

type fakeGateway struct {
	mu sync.Mutex

	loginToken string
	loginErr   error
	loginCalls int
	user       models.User
	userErr    error
	registered []api.RegisterRequest
	uploadErrs []error
	uploads    int
	prediction models.Prediction
	analyzeErr error
	saveErr    error
	feedback   []models.Feedback
}

func (f *fakeGateway) Login(ctx context.Context, email, password string) (*api.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	u := f.user
	u.Email = email
	return &api.LoginResult{Token: f.loginToken, User: u}, nil
}

func (f *fakeGateway) Register(ctx context.Context, req api.RegisterRequest) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, req)
	return &models.User{ID: 7, Name: req.Name, Email: req.Email, Experience: req.Experience}, nil
}

func (f *fakeGateway) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if token == "" {
		return nil, &api.Error{Kind: api.KindMissingSession, Op: "current user", Message: api.MissingSessionMessage}
	}
	if f.userErr != nil {
		return nil, f.userErr
	}
	u := f.user
	return &u, nil
}

func (f *fakeGateway) UploadImageFile(ctx context.Context, token, path string) (*models.UploadedImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if len(f.uploadErrs) > 0 {
		err := f.uploadErrs[0]
		f.uploadErrs = f.uploadErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &models.UploadedImage{ID: 11, Path: "uploads/leaf.jpg"}, nil
}

func (f *fakeGateway) Analyze(ctx context.Context, token string, imageID int64, scores models.SensoryScores) (*models.Prediction, error) {
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	p := f.prediction
	p.ImageID = imageID
	return &p, nil
}

func (f *fakeGateway) SaveAnalysis(ctx context.Context, token string, p models.Prediction) (*models.SavedPrediction, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return &models.SavedPrediction{ID: 21, Prediction: p}, nil
}

func (f *fakeGateway) SaveFeedback(ctx context.Context, token string, fb models.Feedback) (*models.SavedFeedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback = append(f.feedback, fb)
	return &models.SavedFeedback{ID: 31, Feedback: fb}, nil
}

func (f *fakeGateway) ImageURL(path string) string {
	return "http://tea.test/" + path
}

func newSessions(t *testing.T, token string) *session.Store {
	t.Helper()
	s := session.New(securestore.NewMemoryStore(), nil)
	if token != "" {
		if err := s.Login(context.Background(), token, models.User{ID: 1, Name: "Jane Doe"}); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func newConsole(gw *fakeGateway, s *session.Store, input string) (*Console, *bytes.Buffer) {
	var out bytes.Buffer
	return New(gw, s, strings.NewReader(input), &out, WithMinAnalyzeDuration(0)), &out
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leaf.jpg")
	if err := os.WriteFile(path, []byte{0xff, 0xd8, 0xff}, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFormatResultLines(t *testing.T) {
	p := models.Prediction{Grade: models.GradeOP1, GradeConfidence: 0.87, Category: 2, CategoryConfidence: 0.75}
	if got := FormatGrade(p); got != "Grade: OP1 (87.0%)" {
		t.Errorf("FormatGrade = %q", got)
	}
	if got := FormatCategory(p); got != "Category: 2 (75.0%)" {
		t.Errorf("FormatCategory = %q", got)
	}
}

func TestInitials(t *testing.T) {
	tests := map[string]string{
		"":                "?",
		"   ":             "?",
		"jane":            "J",
		"Jane Doe":        "JD",
		"jane mary doe":   "JM",
		"  élodie  brun ": "ÉB",
	}
	for in, want := range tests {
		if got := Initials(in); got != want {
			t.Errorf("Initials(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormEnablement(t *testing.T) {
	if CanLogin("a@b.c", "12345") {
		t.Error("short password accepted")
	}
	if CanLogin(" ", "123456") {
		t.Error("blank email accepted")
	}
	if !CanLogin("a@b.c", "123456") {
		t.Error("valid login rejected")
	}

	form := RegisterForm{Name: "Jane", Email: "a@b.c", Password: "secret1", Confirm: "secret1"}
	if !form.CanSubmit() {
		t.Error("registration without experience rejected")
	}
	mismatch := form
	mismatch.Confirm = "secret2"
	if mismatch.CanSubmit() {
		t.Error("mismatched passwords accepted")
	}
	noName := form
	noName.Name = ""
	if noName.CanSubmit() {
		t.Error("missing name accepted")
	}
}

func TestLoginStoresSession(t *testing.T) {
	gw := &fakeGateway{loginToken: "tok", user: models.User{ID: 1, Name: "Jane"}}
	s := newSessions(t, "")
	c, out := newConsole(gw, s, "jane@tea.test\nsecret1\n")

	if err := c.Login(context.Background(), "", ""); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if s.Token() != "tok" {
		t.Errorf("token = %q", s.Token())
	}
	if !strings.Contains(out.String(), "Welcome, Jane!") {
		t.Errorf("output = %q", out.String())
	}
}

func TestLoginShortPasswordSkipsNetwork(t *testing.T) {
	gw := &fakeGateway{loginToken: "tok"}
	c, _ := newConsole(gw, newSessions(t, ""), "jane@tea.test\nabc\n")

	if err := c.Login(context.Background(), "", ""); !errors.Is(err, ErrInvalidForm) {
		t.Fatalf("err = %v", err)
	}
	if gw.loginCalls != 0 {
		t.Errorf("login calls = %d", gw.loginCalls)
	}
}

func TestLoginWithoutTokenIsNoSession(t *testing.T) {
	gw := &fakeGateway{user: models.User{ID: 1}}
	s := newSessions(t, "")
	c, out := newConsole(gw, s, "jane@tea.test\nsecret1\n")

	if err := c.Login(context.Background(), "", ""); !errors.Is(err, session.ErrEmptyToken) {
		t.Fatalf("err = %v", err)
	}
	if s.Authenticated() {
		t.Error("session stored without token")
	}
	if !strings.Contains(out.String(), "Error:") {
		t.Errorf("output = %q", out.String())
	}
}

func TestWelcomeRegisterThenLogin(t *testing.T) {
	gw := &fakeGateway{loginToken: "tok", user: models.User{ID: 7, Name: "Jane"}}
	s := newSessions(t, "")
	input := "r\nJane Doe\njane@tea.test\n4\nsecret1\nsecret1\n\nsecret1\n"
	c, out := newConsole(gw, s, input)

	if err := c.Welcome(context.Background()); err != nil {
		t.Fatalf("Welcome: %v", err)
	}
	if len(gw.registered) != 1 || gw.registered[0].Experience != 4 {
		t.Fatalf("registered = %+v", gw.registered)
	}
	if !strings.Contains(out.String(), "Registration Successful") {
		t.Errorf("output = %q", out.String())
	}
	if u, _ := s.User(); u.Email != "jane@tea.test" {
		t.Errorf("prefilled email not used, user = %+v", u)
	}
}

func TestSettingsShowsProfile(t *testing.T) {
	gw := &fakeGateway{user: models.User{ID: 1, Name: "Jane Doe", Email: "jane@tea.test", Experience: 3}}
	c, out := newConsole(gw, newSessions(t, "tok"), "")

	outcome, err := c.Settings(context.Background())
	if err != nil || outcome != OutcomeDone {
		t.Fatalf("Settings = %v, %v", outcome, err)
	}
	for _, want := range []string{"[JD] Jane Doe", "jane@tea.test", "3 years of experience"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q: %q", want, out.String())
		}
	}
}

func TestSettingsAuthExpiredRedirectsToLogin(t *testing.T) {
	gw := &fakeGateway{userErr: &api.Error{Kind: api.KindAuthExpired, Op: "current user", Status: 400, Message: api.AuthFailedMessage}}
	s := newSessions(t, "tok")
	c, out := newConsole(gw, s, "")

	outcome, err := c.Settings(context.Background())
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if outcome != OutcomeRelogin {
		t.Errorf("outcome = %v", outcome)
	}
	if s.Authenticated() {
		t.Error("expired session not cleared")
	}
	if !strings.Contains(out.String(), "Session expired. Please log in again.") {
		t.Errorf("output = %q", out.String())
	}
}

func TestSettingsOtherErrorsInline(t *testing.T) {
	gw := &fakeGateway{userErr: &api.Error{Kind: api.KindRejected, Message: "Get details failed"}}
	s := newSessions(t, "tok")
	c, out := newConsole(gw, s, "")

	outcome, err := c.Settings(context.Background())
	if err == nil || outcome != OutcomeDone {
		t.Fatalf("Settings = %v, %v", outcome, err)
	}
	if !strings.Contains(out.String(), "Error: Get details failed") {
		t.Errorf("output = %q", out.String())
	}
	if !s.Authenticated() {
		t.Error("session dropped on a non-auth error")
	}
}

func TestSettingsWithoutSession(t *testing.T) {
	gw := &fakeGateway{}
	c, out := newConsole(gw, newSessions(t, ""), "")

	if _, err := c.Settings(context.Background()); !api.IsMissingSession(err) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(out.String(), "Error: "+api.MissingSessionMessage) {
		t.Errorf("output = %q", out.String())
	}
}

func TestGradeWizardWithFeedback(t *testing.T) {
	gw := &fakeGateway{prediction: models.Prediction{
		Grade: models.GradeOP1, GradeConfidence: 0.87, Category: 2, CategoryConfidence: 0.75, Model: "test",
	}}
	input := strings.Join([]string{
		"u",
		"5", "9", "6", "4", "3", "7", // 9 is out of range
		"a",
		"f",
		"n", "opa", "too bitter",
		"s",
	}, "\n") + "\n"
	c, out := newConsole(gw, newSessions(t, "tok"), input)

	if err := c.Grade(context.Background(), writeImage(t)); err != nil {
		t.Fatalf("Grade: %v\n%s", err, out.String())
	}
	for _, want := range []string{
		"Grade: OP1 (87.0%)",
		"Category: 2 (75.0%)",
		"Image: http://tea.test/uploads/leaf.jpg",
		"Enter a whole number from 1 to 7",
		"Feedback saved successfully",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q", want)
		}
	}
	if len(gw.feedback) != 1 {
		t.Fatalf("feedback = %+v", gw.feedback)
	}
	fb := gw.feedback[0]
	want := models.SensoryScores{Aroma: 5, Color: 6, Taste: 4, AfterTaste: 3, Acceptability: 7}
	if fb.PredictionID != 21 || fb.IsAgreed || fb.Grade != models.GradeOPA || fb.Comment != "too bitter" || fb.SensoryScores != want {
		t.Errorf("feedback = %+v", fb)
	}
}

func TestGradeWizardConfirm(t *testing.T) {
	gw := &fakeGateway{prediction: models.Prediction{Grade: models.GradeOP, GradeConfidence: 0.5}}
	input := "u\n1\n2\n3\n4\n5\na\nc\n"
	c, out := newConsole(gw, newSessions(t, "tok"), input)

	if err := c.Grade(context.Background(), writeImage(t)); err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if !strings.Contains(out.String(), "Result saved successfully") {
		t.Errorf("output = %q", out.String())
	}
}

func TestGradeWizardRetryAfterUploadFailure(t *testing.T) {
	gw := &fakeGateway{uploadErrs: []error{&api.Error{Kind: api.KindRejected, Message: "Image upload failed"}}}
	img := writeImage(t)
	input := "u\nt\n" + img + "\nu\n"
	c, out := newConsole(gw, newSessions(t, "tok"), input)

	err := c.Grade(context.Background(), img)
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("err = %v", err)
	}
	if gw.uploads != 2 {
		t.Errorf("uploads = %d", gw.uploads)
	}
	if !strings.Contains(out.String(), "Error: Image upload failed") {
		t.Errorf("output = %q", out.String())
	}
	if !strings.Contains(out.String(), "STEP 03") {
		t.Error("second upload did not reach sensory input")
	}
}

func TestGradeWizardSessionExpired(t *testing.T) {
	gw := &fakeGateway{analyzeErr: &api.Error{Kind: api.KindAuthExpired, Message: api.AuthFailedMessage}}
	s := newSessions(t, "tok")
	c, out := newConsole(gw, s, "u\n1\n1\n1\n1\n1\na\n")

	if err := c.Grade(context.Background(), writeImage(t)); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v", err)
	}
	if s.Authenticated() {
		t.Error("session not cleared")
	}
	if !strings.Contains(out.String(), "Session expired. Please log in again.") {
		t.Errorf("output = %q", out.String())
	}
}

func TestGradeWizardQuitFromPreview(t *testing.T) {
	gw := &fakeGateway{}
	c, _ := newConsole(gw, newSessions(t, "tok"), "q\n")

	if err := c.Grade(context.Background(), writeImage(t)); err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if gw.uploads != 0 {
		t.Errorf("uploads = %d", gw.uploads)
	}
}
