package workflow

// State is the main verification state.
type State int

const (
	Idle State = iota
	Checking
	Verified
	Unverified
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Checking:
		return "checking"
	case Verified:
		return "verified"
	case Unverified:
		return "unverified"
	default:
		return "unknown"
	}
}

// TokenState is the outcome of the last token probe.
type TokenState int

const (
	TokenUnchecked TokenState = iota
	TokenValid
	TokenInvalid
)

func (s TokenState) String() string {
	switch s {
	case TokenUnchecked:
		return "unchecked"
	case TokenValid:
		return "valid"
	case TokenInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Stage names the step a failure happened in.
type Stage string

const (
	StageIdentity Stage = "identity"
	StageVerify   Stage = "verify"
	StageProbe    Stage = "probe"
)

// Failure is the diagnostic record of an error the user only saw as
// "Unexpected error occurred".
type Failure struct {
	Stage Stage
	Err   error
}

func (f *Failure) Error() string { return string(f.Stage) + ": " + f.Err.Error() }
func (f *Failure) Unwrap() error { return f.Err }

// View is the externally visible state of a workflow. The affordance flags
// are derived, never stored.
type View struct {
	State           State
	TokenState      TokenState
	Complete        bool
	HasToken        bool
	CanUpdateSecret bool
	CanVerifyToken  bool
}
