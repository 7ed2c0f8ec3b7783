package app

import "fmt"

// DomainError is a failure that already knows how to surface over HTTP.
// mapError passes it through untouched, so the service layer can pick the
// status and code for cases the sentinel errors don't distinguish.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
