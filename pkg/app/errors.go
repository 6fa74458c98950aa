package app

import "fmt"

// NavigationError is shown inline in the pane whose listing failed.
type NavigationError struct {
	Path string
	Err  error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("cannot open %s: %v", e.Path, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// SessionError means the remote session is gone and the program must exit.
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("connection to the remote host was lost: %v", e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }
