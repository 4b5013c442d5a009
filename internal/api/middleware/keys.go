package middleware

// Echo context keys set by this package.
const (
	SessionKey = "session"
	UserKey    = "user"
)

// Well-known portal paths the gate redirects to.
const (
	LoginPath = "/login"
	HomePath  = "/"
)
