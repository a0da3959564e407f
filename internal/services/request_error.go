package services

import (
	"fmt"
	"strings"
)

// SingleError is one entry of RequestError.Errors
type SingleError struct {
	Domain       string `json:"domain,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Message      string `json:"message,omitempty"`
	LocationType string `json:"locationType,omitempty"`
	Location     string `json:"location,omitempty"`
}

func (e SingleError) String() string {
	return fmt.Sprintf("Message[%s] Location[%s - %s] Reason[%s] Domain[%s]",
		e.Message, e.Location, e.LocationType, e.Reason, e.Domain)
}

// RequestError is the error object an API returns for a failed call
type RequestError struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Errors  []SingleError `json:"errors,omitempty"`
}

func (e *RequestError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%d]", e.Message, e.Code)
	if len(e.Errors) > 0 {
		b.WriteString(" Errors [")
		for i, single := range e.Errors {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(single.String())
		}
		b.WriteString("]")
	}
	return b.String()
}

// Reason returns the reason of the first detailed error, if any
func (e *RequestError) Reason() string {
	if len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Reason
}
