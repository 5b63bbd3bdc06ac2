// Package cli implements the keycheck command: it runs a verification
// workflow against a trusted boundary and prints the outcome.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"git.sr.ht/~jakintosh/keycheck/internal/config"
	"git.sr.ht/~jakintosh/keycheck/internal/logging"
	"git.sr.ht/~jakintosh/keycheck/pkg/client"
	"git.sr.ht/~jakintosh/keycheck/pkg/identity"
	"git.sr.ht/~jakintosh/keycheck/pkg/message"
	"git.sr.ht/~jakintosh/keycheck/pkg/profile"
	"git.sr.ht/~jakintosh/keycheck/pkg/secretref"
	"git.sr.ht/~jakintosh/keycheck/pkg/session"
	"git.sr.ht/~jakintosh/keycheck/pkg/workflow"
)

// Exit codes
const (
	ExitOK      = 0
	ExitInvalid = 1
	ExitError   = 2
)

// proxyPath is where the boundary forwards requests to the data server.
const proxyPath = "/proxy"

// exitCodeError carries a non-zero exit code for an outcome that was already
// reported to the user.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

type options struct {
	configPath string
	boundary   string
	profile    string
	logLevel   string
	jsonOutput bool

	stderr io.Writer
}

// NewRootCommand builds the command tree writing to out and errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	opts := &options{stderr: errOut}

	root := &cobra.Command{
		Use:   "keycheck",
		Short: "Verify access and license keys held by a trusted boundary",
		Long: `keycheck asks the data server, through a trusted boundary, whether the
secret stored for a profile is valid. The secret itself never leaves the
boundary; keycheck only sends a placeholder for it.

Exit codes:
  0 - Key (and token, if probed) valid
  1 - Key or token not valid
  2 - Error (configuration, connectivity)

Environment Variables:
  KEYCHECK_BOUNDARY   Boundary URL (default: http://localhost:8081)
  KEYCHECK_PROFILE    Profile to check (default: access_key)
  KEYCHECK_TIMEOUT    Request timeout (default: 10s)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file")
	flags.StringVar(&opts.boundary, "boundary", "", "boundary URL (overrides KEYCHECK_BOUNDARY)")
	flags.StringVarP(&opts.profile, "profile", "p", "", "profile to check (overrides KEYCHECK_PROFILE)")
	flags.StringVar(&opts.logLevel, "log-level", "", "diagnostics level: debug, info, warn, error")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print JSON instead of messages")

	root.AddCommand(
		newCheckCommand(opts),
		newUpdateSecretCommand(opts),
		newProfilesCommand(opts),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(args []string, out, errOut io.Writer) int {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return ExitError
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := NewRootCommand(out, errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)

	var exitErr *exitCodeError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &exitErr):
		return exitErr.code
	default:
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return ExitError
	}
}

// loadConfig applies flags over the config file and environment.
func (o *options) loadConfig(cmd *cobra.Command) (config.Client, error) {
	cfg, err := config.LoadClient(o.configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("boundary") {
		cfg.Boundary = o.boundary
	}
	if flags.Changed("profile") {
		cfg.Profile = o.profile
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	return cfg, cfg.Validate()
}

// invocation is everything one command run needs to build workflows.
type invocation struct {
	cfg        config.Client
	log        *logrus.Logger
	httpClient *http.Client
	client     *client.Client
	bar        *message.Bar
	contexts   *session.Store
}

func (o *options) open(cmd *cobra.Command) (*invocation, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log := logging.NewWithOutput(cfg.Log, o.stderr)
	httpClient := &http.Client{Timeout: cfg.Timeout}

	return &invocation{
		cfg:        cfg,
		log:        log,
		httpClient: httpClient,
		client: client.New(cfg.Boundary+proxyPath,
			client.WithHTTPClient(httpClient),
			client.WithLogger(log),
		),
		bar:      message.NewBar(),
		contexts: session.NewStore(),
	}, nil
}

func (s *invocation) profile(ctx context.Context) (profile.Profile, error) {
	p, err := s.client.Lookup(ctx, s.cfg.Profile)
	if err != nil {
		return p, fmt.Errorf("failed to resolve profile %q: %w", s.cfg.Profile, err)
	}
	return p, nil
}

// workflow builds a workflow for p in a fresh navigation context.
func (s *invocation) workflow(p profile.Profile) (*workflow.Workflow, error) {
	id, holder := s.contexts.Open()
	s.log.WithField("context", id).Debug("opened navigation context")

	return workflow.New(workflow.Config{
		Profile:  p,
		Identity: identity.NewHTTPLookup(s.cfg.Boundary, s.httpClient),
		Resolver: secretref.TagResolver{},
		Verifier: s.client,
		Prober:   s.client,
		Sink:     s.bar,
		Holder:   holder,
		Writer:   secretref.NewHTTPWriter(s.cfg.Boundary, s.httpClient),
		Log:      s.log,
	})
}
