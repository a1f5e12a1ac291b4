package routes

import "fmt"

// ValidationError is returned when a route table cannot be built.
type ValidationError struct {
	Route   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Route == "" {
		return "invalid route table: " + e.Message
	}
	return fmt.Sprintf("invalid route %q: %s", e.Route, e.Message)
}

// LoadError is returned when a lazy view could not be fetched.
type LoadError struct {
	Route string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading view for route %q: %v", e.Route, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
