package session

import "errors"

var (
	// ErrUnknownStudent is returned in RequireSession mode when a student
	// calls Next or Submit without beginning a session in this process.
	ErrUnknownStudent = errors.New("session: unknown student")

	// ErrInvalidStudentID rejects empty or oversized student ids.
	ErrInvalidStudentID = errors.New("session: invalid student id")
)
