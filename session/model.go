package session

// Level is how far a session has progressed through authentication.
// Levels only ever increase for a given session.
type Level uint8

const (
	LevelNone Level = iota
	LevelPasswordVerified
	LevelMFAVerified
)

func (l Level) String() string {
	switch l {
	case LevelPasswordVerified:
		return "password_verified"
	case LevelMFAVerified:
		return "mfa_verified"
	default:
		return "none"
	}
}

// Valid reports whether l is one of the declared levels.
func (l Level) Valid() bool {
	return l <= LevelMFAVerified
}

// Session is a server-side authentication context bound to one user.
// CreatedAt and ExpiresAt are unix seconds; ExpiresAt is the absolute cap,
// the idle timeout lives in the Redis key TTL.
type Session struct {
	ID       string
	Username string
	Level    Level

	CreatedAt int64
	ExpiresAt int64
}
