package app

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/franckalain/leafmetric/internal/api"
	"github.com/franckalain/leafmetric/internal/models"
	"github.com/franckalain/leafmetric/internal/securestore"
	"github.com/franckalain/leafmetric/internal/session"
)

func TestGuardAuthExpiredLogsOut(t *testing.T) {
	ctx := context.Background()
	s := session.New(securestore.NewMemoryStore(), nil)
	if err := s.Login(ctx, "tok", models.User{ID: 1}); err != nil {
		t.Fatal(err)
	}

	d := Guard(ctx, nil, s, &api.Error{Kind: api.KindAuthExpired, Message: api.AuthFailedMessage})
	if !d.Relogin {
		t.Fatal("expected relogin")
	}
	if d.Notice != SessionExpiredNotice {
		t.Errorf("notice = %q", d.Notice)
	}
	if s.Authenticated() {
		t.Error("session still active")
	}
}

func TestGuardOtherErrorsInline(t *testing.T) {
	ctx := context.Background()
	s := session.New(securestore.NewMemoryStore(), nil)
	if err := s.Login(ctx, "tok", models.User{ID: 1}); err != nil {
		t.Fatal(err)
	}

	for _, err := range []error{
		&api.Error{Kind: api.KindRejected, Message: "Analyze failed"},
		&api.Error{Kind: api.KindMissingSession, Message: api.MissingSessionMessage},
		errors.New("disk on fire"),
	} {
		d := Guard(ctx, nil, s, err)
		if d.Relogin {
			t.Errorf("%v: unexpected relogin", err)
		}
		if d.Message != err.Error() {
			t.Errorf("message = %q, want %q", d.Message, err.Error())
		}
	}
	if !s.Authenticated() {
		t.Error("inline errors must not drop the session")
	}
}

// stuckSessions cannot clear its stored credentials
type stuckSessions struct {
	loggedOut bool
}

func (s *stuckSessions) Token() string { return "tok" }

func (s *stuckSessions) User() (models.User, bool) { return models.User{ID: 1}, true }

func (s *stuckSessions) Login(context.Context, string, models.User) error { return nil }

func (s *stuckSessions) Logout(context.Context) error {
	s.loggedOut = true
	return errors.New("keyring unavailable")
}

func TestGuardLogsThroughGivenLogger(t *testing.T) {
	var buf bytes.Buffer
	s := &stuckSessions{}
	d := Guard(context.Background(), log.New(&buf, "", 0), s, &api.Error{Kind: api.KindAuthExpired, Message: api.AuthFailedMessage})
	if !d.Relogin || !s.loggedOut {
		t.Fatalf("decision = %+v, logged out %v", d, s.loggedOut)
	}
	if !strings.Contains(buf.String(), "keyring unavailable") {
		t.Errorf("log = %q", buf.String())
	}
}

func TestNewBuildsMemoryApp(t *testing.T) {
	a, err := New(testConfig(), false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.API.BaseURL() != "http://tea.test" {
		t.Errorf("base url = %q", a.API.BaseURL())
	}
	if _, ok := a.Session.Restore(context.Background()); ok {
		t.Error("fresh memory storage has a session")
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
