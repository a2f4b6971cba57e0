package server

import (
	"fmt"
	"net/http"

	"github.com/SmitUplenchwar2687/Fuelgate/internal/admission"
)

// Outcome is how a request ended. Every outcome maps to exactly one HTTP
// status and a short client-facing message.
type Outcome int

const (
	Served Outcome = iota
	Preflight
	OriginRejected
	CredentialMissing
	CredentialInvalid
	LockedOut
	PathRejected
	ResourceBusy
	ResourceMissing
	ResourceUnreadable
	MethodUnsupported
	// TransportError means the 200 headers went out but the body write
	// failed. It is only logged and audited.
	TransportError
)

var outcomeNames = [...]string{
	Served:             "Served",
	Preflight:          "Preflight",
	OriginRejected:     "OriginRejected",
	CredentialMissing:  "CredentialMissing",
	CredentialInvalid:  "CredentialInvalid",
	LockedOut:          "LockedOut",
	PathRejected:       "PathRejected",
	ResourceBusy:       "ResourceBusy",
	ResourceMissing:    "ResourceMissing",
	ResourceUnreadable: "ResourceUnreadable",
	MethodUnsupported:  "MethodUnsupported",
	TransportError:     "TransportError",
}

func (o Outcome) String() string {
	if o >= 0 && int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Status returns the HTTP status sent for o.
func (o Outcome) Status() int {
	switch o {
	case Served, Preflight, TransportError:
		return http.StatusOK
	case OriginRejected:
		return http.StatusForbidden
	case CredentialMissing, CredentialInvalid, LockedOut:
		return http.StatusUnauthorized
	case PathRejected, ResourceMissing:
		return http.StatusNotFound
	case ResourceBusy:
		return http.StatusServiceUnavailable
	case MethodUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// Message is the response body for a rejection. It never names a path.
func (o Outcome) Message() string {
	switch o {
	case OriginRejected:
		return "Forbidden"
	case PathRejected:
		return "File not found or access denied"
	case ResourceBusy:
		return "Service Unavailable - File locked by writer"
	case ResourceMissing:
		return "CSV file not found"
	default:
		return http.StatusText(o.Status())
	}
}

// Rejected reports whether o denied the client its data.
func (o Outcome) Rejected() bool {
	return o != Served && o != Preflight && o != TransportError
}

func outcomeForDecision(d admission.Decision) Outcome {
	switch d {
	case admission.DenyOrigin:
		return OriginRejected
	case admission.DenyNoCredential:
		return CredentialMissing
	case admission.DenyLockedOut:
		return LockedOut
	default:
		return CredentialInvalid
	}
}
