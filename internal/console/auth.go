package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/franckalain/leafmetric/internal/api"
	"github.com/franckalain/leafmetric/internal/app"
	"github.com/franckalain/leafmetric/internal/session"
)

// ErrInvalidForm is returned when a form does not pass its submit rule
var ErrInvalidForm = errors.New("form incomplete")

// Outcome says where a screen wants to go next
type Outcome int

const (
	OutcomeDone Outcome = iota
	OutcomeRelogin
)

// Welcome is the first screen for a signed out user
func (c *Console) Welcome(ctx context.Context) error {
	c.println("LeafMetric")
	c.println("Your smart tea assistant. Assess leaves with images and sensory inputs for top quality.")
	c.println()
	c.println("Are you already registered with us, or a new user?")

	choice, err := c.choose("[l]og in, [r]egister, [q]uit", "login", "register", "quit")
	if err != nil {
		return err
	}
	switch choice {
	case "login":
		return c.Login(ctx, "", "")
	case "register":
		email, err := c.Register(ctx)
		if err != nil {
			return err
		}
		return c.Login(ctx, email, "")
	}
	return nil
}

// Login signs the user in and stores the session. notice is shown first when set.
func (c *Console) Login(ctx context.Context, email, notice string) error {
	if notice != "" {
		c.println(notice)
	}
	c.println("Log In")

	label := "Email: "
	if email != "" {
		label = fmt.Sprintf("Email [%s]: ", email)
	}
	answer, err := c.prompt(label)
	if err != nil {
		return err
	}
	if answer != "" {
		email = answer
	}
	password, err := c.prompt("Password: ")
	if err != nil {
		return err
	}
	if !CanLogin(email, password) {
		c.printf("Enter your email and a password of at least %d characters\n", MinPasswordLength)
		return ErrInvalidForm
	}

	res, err := c.gateway.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		c.printf("Error: %s\n", err)
		return err
	}
	if err := c.sessions.Login(ctx, res.Token, res.User); err != nil {
		if errors.Is(err, session.ErrEmptyToken) {
			c.println("Error: the server did not issue an access token")
		} else {
			c.printf("Error: %s\n", err)
		}
		return err
	}
	c.printf("Welcome, %s!\n", res.User.Name)
	return nil
}

// Register creates an account and returns its email for the login screen
func (c *Console) Register(ctx context.Context) (string, error) {
	c.println("Register")

	var form RegisterForm
	fields := []struct {
		label string
		dst   *string
	}{
		{"Full Name: ", &form.Name},
		{"Email: ", &form.Email},
		{"Years of Experience: ", &form.Experience},
		{"Password: ", &form.Password},
		{"Confirm Password: ", &form.Confirm},
	}
	for _, f := range fields {
		v, err := c.prompt(f.label)
		if err != nil {
			return "", err
		}
		*f.dst = v
	}

	if !form.CanSubmit() {
		c.printf("All fields are required, passwords must match and be at least %d characters\n", MinPasswordLength)
		return "", ErrInvalidForm
	}
	experience := 0
	if form.Experience != "" {
		n, err := strconv.Atoi(form.Experience)
		if err != nil || n < 0 {
			c.println("Years of experience must be a whole number")
			return "", ErrInvalidForm
		}
		experience = n
	}

	_, err := c.gateway.Register(ctx, api.RegisterRequest{
		Name:       strings.TrimSpace(form.Name),
		Email:      strings.TrimSpace(form.Email),
		Experience: experience,
		Password:   form.Password,
	})
	if err != nil {
		c.printf("Error: %s\n", err)
		return "", err
	}
	c.println("Registration Successful")
	c.println("Your account has been created successfully. Please log in.")
	return strings.TrimSpace(form.Email), nil
}

// Settings shows the signed in user's profile
func (c *Console) Settings(ctx context.Context) (Outcome, error) {
	c.println("Loading profile...")
	user, err := c.gateway.CurrentUser(ctx, c.sessions.Token())
	if err != nil {
		d := app.Guard(ctx, c.logger, c.sessions, err)
		if d.Relogin {
			c.println(d.Notice)
			return OutcomeRelogin, nil
		}
		c.printf("Error: %s\n", d.Message)
		return OutcomeDone, err
	}

	c.printf("[%s] %s\n", Initials(user.Name), user.Name)
	c.println(user.Email)
	c.printf("%d years of experience\n", user.Experience)
	return OutcomeDone, nil
}

// Logout clears the session
func (c *Console) Logout(ctx context.Context) error {
	if err := c.sessions.Logout(ctx); err != nil {
		c.printf("Error: %s\n", err)
		return err
	}
	c.println("Logged out")
	return nil
}
