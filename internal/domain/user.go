package domain

// User is the identity shape resolved from the external user directory.
type User struct {
	ID      int64
	IsAdmin bool
}
