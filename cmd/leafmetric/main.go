package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/franckalain/leafmetric/internal/app"
	"github.com/franckalain/leafmetric/internal/config"
	"github.com/franckalain/leafmetric/internal/console"
)

const usage = `usage: leafmetric [flags] <command>

commands:
  login              sign in
  register           create an account
  logout             sign out
  profile            show the signed in user
  grade [image.jpg]  grade a tea sample (default when signed in)
`

func main() {
	configPath := flag.String("config", config.GetConfigPath(), "path to configuration file")
	debug := flag.Bool("debug", false, "log requests and workflow steps to stderr")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	a, err := app.New(cfg, *debug)
	if err != nil {
		log.Fatal("Failed to initialize:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	_, signedIn := a.Session.Restore(ctx)
	c := console.FromApp(a, os.Stdin, os.Stdout)

	err = run(ctx, c, signedIn, flag.Args())
	stop()
	if cerr := a.Close(); cerr != nil {
		log.Printf("Failed to close storage: %v", cerr)
	}

	switch {
	case err == nil:
	case errors.Is(err, console.ErrAborted), errors.Is(err, context.Canceled):
		os.Exit(130)
	default:
		os.Exit(1)
	}
}

func run(ctx context.Context, c *console.Console, signedIn bool, args []string) error {
	cmd := "grade"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	} else if !signedIn {
		return c.Welcome(ctx)
	}

	switch cmd {
	case "login":
		return c.Login(ctx, "", "")
	case "register":
		email, err := c.Register(ctx)
		if err != nil {
			return err
		}
		return c.Login(ctx, email, "")
	case "logout":
		return c.Logout(ctx)
	case "profile":
		outcome, err := c.Settings(ctx)
		if err != nil {
			return err
		}
		if outcome == console.OutcomeRelogin {
			return c.Login(ctx, "", "")
		}
		return nil
	case "grade":
		if !signedIn {
			if err := c.Login(ctx, "", "Please log in to grade a sample."); err != nil {
				return err
			}
		}
		image := ""
		if len(args) > 0 {
			image = args[0]
		}
		err := c.Grade(ctx, image)
		if errors.Is(err, console.ErrSessionExpired) {
			return c.Login(ctx, "", "")
		}
		return err
	}
	flag.Usage()
	return fmt.Errorf("unknown command %q", cmd)
}
