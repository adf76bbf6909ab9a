// Package console renders the client screens on a terminal.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/franckalain/leafmetric/internal/app"
)

// ErrAborted is returned when input ends before a screen is finished
var ErrAborted = errors.New("input closed")

// ErrSessionExpired is returned when a screen had to send the user back to login
var ErrSessionExpired = errors.New(app.SessionExpiredNotice)

// Console reads answers line by line from in and writes screens to out
type Console struct {
	gateway  app.Gateway
	sessions app.Sessions
	in       *bufio.Scanner
	out      io.Writer
	logger   *log.Logger

	minAnalyze time.Duration
}

// Option configures a Console
type Option func(*Console)

// WithMinAnalyzeDuration forwards the analysis loading floor to the workflow
func WithMinAnalyzeDuration(d time.Duration) Option {
	return func(c *Console) {
		c.minAnalyze = d
	}
}

// WithLogger sets the logger handed to the workflow
func WithLogger(l *log.Logger) Option {
	return func(c *Console) {
		c.logger = l
	}
}

// New creates a console over the given dependencies
func New(gateway app.Gateway, sessions app.Sessions, in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		gateway:  gateway,
		sessions: sessions,
		in:       bufio.NewScanner(in),
		out:      out,
		logger:   log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromApp creates a console wired to the application context
func FromApp(a *app.App, in io.Reader, out io.Writer) *Console {
	return New(a.API, a.Session, in, out,
		WithMinAnalyzeDuration(a.Config.MinAnalyzeDuration()),
		WithLogger(a.Logger),
	)
}

func (c *Console) println(a ...any) {
	fmt.Fprintln(c.out, a...)
}

func (c *Console) printf(format string, a ...any) {
	fmt.Fprintf(c.out, format, a...)
}

// prompt shows label and returns the next input line without surrounding spaces
func (c *Console) prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", ErrAborted
	}
	return strings.TrimSpace(c.in.Text()), nil
}

// choose asks until the answer starts with one of the option letters
func (c *Console) choose(label string, options ...string) (string, error) {
	for {
		answer, err := c.prompt(label + ": ")
		if err != nil {
			return "", err
		}
		answer = strings.ToLower(answer)
		for _, opt := range options {
			if answer != "" && strings.HasPrefix(opt, answer[:1]) {
				return opt, nil
			}
		}
		c.printf("Please choose one of: %s\n", strings.Join(options, ", "))
	}
}
