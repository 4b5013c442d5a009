package domain

// Phase is the coarse lifecycle state of an auth context.
type Phase string

const (
	PhaseBootstrapping   Phase = "bootstrapping"
	PhaseAuthenticated   Phase = "authenticated"
	PhaseUnauthenticated Phase = "unauthenticated"
)

// Descriptor is the tagged value an auth context holds. Exactly one of
// Unresolved, Pending, Confirmed or Rejected.
//
// A persisted user is never carried by Pending: the role only becomes
// visible once the backend confirms it (Confirmed) or a fresh login
// produced it.
type Descriptor interface {
	Phase() Phase
	descriptor()
}

// Unresolved is the value before the token store has been read.
type Unresolved struct{}

// Pending holds a persisted token awaiting revalidation.
type Pending struct {
	Token string
}

// Confirmed holds a token together with its server-confirmed user.
type Confirmed struct {
	Token string
	User  User
}

// Rejected means there is no usable session. Reason is nil when nothing was
// persisted or the user logged out.
type Rejected struct {
	Reason error
}

func (Unresolved) Phase() Phase { return PhaseBootstrapping }
func (Pending) Phase() Phase    { return PhaseBootstrapping }
func (Confirmed) Phase() Phase  { return PhaseAuthenticated }
func (Rejected) Phase() Phase   { return PhaseUnauthenticated }

func (Unresolved) descriptor() {}
func (Pending) descriptor()    {}
func (Confirmed) descriptor()  {}
func (Rejected) descriptor()   {}

// State is the read-only snapshot views consult. Token and User are either
// both set or both empty.
type State struct {
	Phase     Phase  `json:"phase"`
	Token     string `json:"-"`
	User      *User  `json:"user,omitempty"`
	IsLoading bool   `json:"is_loading"`
	Reason    error  `json:"-"`
}

// Authenticated reports whether the snapshot carries a confirmed session.
func (s State) Authenticated() bool {
	return s.Phase == PhaseAuthenticated
}

// StateOf derives the exposed snapshot from a descriptor.
func StateOf(d Descriptor) State {
	switch v := d.(type) {
	case Confirmed:
		u := v.User
		return State{Phase: PhaseAuthenticated, Token: v.Token, User: &u}
	case Rejected:
		return State{Phase: PhaseUnauthenticated, Reason: v.Reason}
	case Pending, Unresolved:
		return State{Phase: PhaseBootstrapping, IsLoading: true}
	default:
		return State{Phase: PhaseBootstrapping, IsLoading: true}
	}
}
