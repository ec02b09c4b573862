package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jwalitptl/hospital-api/internal/client"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

const envPassword = "HOSPITAL_PASSWORD"

type options struct {
	apiURL   string
	email    string
	password string
	verbose  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "hospitalctl",
		Short:         "Work with the hospital API from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := os.Getenv(client.EnvAPIURL)
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	cmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", defaultURL, "API base URL (env "+client.EnvAPIURL+")")
	cmd.PersistentFlags().StringVarP(&opts.email, "email", "e", "", "account email")
	cmd.PersistentFlags().StringVarP(&opts.password, "password", "p", "", "account password (env "+envPassword+")")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log requests")
	_ = cmd.MarkPersistentFlagRequired("email")

	cmd.AddCommand(
		dashboardCmd(opts),
		departmentsCmd(opts),
		watchCmd(opts),
		bookCmd(opts),
		cancelCmd(opts),
		completeCmd(opts),
		dispenseCmd(opts),
	)
	return cmd
}

// withSession logs in, runs fn and always signs out again.
func withSession(ctx context.Context, opts *options, fn func(ctx context.Context, s *client.Session) error) (err error) {
	logger := zap.NewNop()
	if opts.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
	}

	c, err := client.New(opts.apiURL, client.WithLogger(logger))
	if err != nil {
		return err
	}

	password := opts.password
	if password == "" {
		password = os.Getenv(envPassword)
	}
	if password == "" {
		return errors.New("a password is required (--password or " + envPassword + ")")
	}

	s, err := c.Login(ctx, opts.email, password)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := s.Close(context.WithoutCancel(ctx))
		if err == nil {
			err = closeErr
		}
	}()

	return fn(ctx, s)
}

// describe adds field errors to the message of validation failures.
func describe(err error) string {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return err.Error()
	}

	msg := appErr.Message
	if appErr.Code == apperrors.ErrPendingApproval {
		msg += " (an administrator has to approve the account first)"
	}
	for _, f := range appErr.Fields {
		msg += fmt.Sprintf("\n  %s: %s", f.Field, f.Message)
	}
	return msg
}
