package cli

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"git.sr.ht/~jakintosh/keycheck/pkg/message"
	"git.sr.ht/~jakintosh/keycheck/pkg/profile"
	"git.sr.ht/~jakintosh/keycheck/pkg/workflow"
)

type checkOutput struct {
	Profile    string            `json:"profile"`
	State      string            `json:"state"`
	TokenState string            `json:"token_state"`
	Messages   []message.Message `json:"messages"`
}

func newCheckCommand(opts *options) *cobra.Command {
	var verifyToken bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the stored key for a profile",
		Long: `Verify the key stored in the boundary for the selected profile.

With --verify-token, the session token issued for a valid key is presented
to the data server's protected ping route as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runCheck(cmd, verifyToken)
		},
	}
	cmd.Flags().BoolVar(&verifyToken, "verify-token", false, "probe the issued session token")
	return cmd
}

func (o *options) runCheck(cmd *cobra.Command, verifyToken bool) error {
	ctx := cmd.Context()
	inv, err := o.open(cmd)
	if err != nil {
		return err
	}
	p, err := inv.profile(ctx)
	if err != nil {
		return err
	}
	w, err := inv.workflow(p)
	if err != nil {
		return err
	}
	rec := o.record(inv.bar, cmd.OutOrStdout())

	view := w.Start(ctx)
	if verifyToken && view.CanVerifyToken {
		if view, err = w.VerifyToken(ctx); err != nil {
			return err
		}
	}
	return o.finish(cmd.OutOrStdout(), p, view, w.LastFailure(), rec, verifyToken)
}

// recorder keeps every message shown during a run.
type recorder struct {
	mu       sync.Mutex
	messages []message.Message
}

func (r *recorder) all() []message.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]message.Message{}, r.messages...)
}

// record prints each message as it is shown, unless output is JSON.
func (o *options) record(bar *message.Bar, out io.Writer) *recorder {
	rec := &recorder{}
	printMessage := message.Printer(out)
	bar.OnChange(func(msg message.Message, active bool) {
		if !active {
			return
		}
		rec.mu.Lock()
		rec.messages = append(rec.messages, msg)
		rec.mu.Unlock()
		if !o.jsonOutput {
			printMessage(msg, active)
		}
	})
	return rec
}

func (o *options) finish(
	out io.Writer,
	p profile.Profile,
	view workflow.View,
	failure *workflow.Failure,
	rec *recorder,
	wantToken bool,
) error {
	if o.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(checkOutput{
			Profile:    p.Name,
			State:      view.State.String(),
			TokenState: view.TokenState.String(),
			Messages:   rec.all(),
		}); err != nil {
			return err
		}
	}

	if code := exitCode(view, failure, wantToken); code != ExitOK {
		return &exitCodeError{code: code}
	}
	return nil
}

func exitCode(view workflow.View, failure *workflow.Failure, wantToken bool) int {
	switch {
	case view.State == workflow.Verified && (!wantToken || view.TokenState == workflow.TokenValid):
		return ExitOK
	case failure != nil:
		return ExitError
	default:
		return ExitInvalid
	}
}
