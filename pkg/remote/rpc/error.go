package rpc

import (
	"errors"

	"github.com/cuemby/dialog/pkg/dialogerr"
)

// wireErr names a business-level error a Backend call can return as
// ordinary, expected control flow (Get/Resolve on a missing key, Replace
// racing another writer) rather than a transport failure. These travel
// inside the RPC's response message, alongside any other return values
// (Replace's mismatch carries the backend's actual current edition in
// the same response) — a genuine transport or storage failure instead
// becomes the unary call's gRPC error, which the client surfaces
// unwrapped.
type wireErr string

const (
	wireErrNone            wireErr = ""
	wireErrNotFound        wireErr = "not_found"
	wireErrEditionMismatch wireErr = "edition_mismatch"
)

func encodeErr(err error) wireErr {
	switch {
	case err == nil:
		return wireErrNone
	case errors.Is(err, dialogerr.ErrNotFound):
		return wireErrNotFound
	case errors.Is(err, dialogerr.ErrEditionMismatch):
		return wireErrEditionMismatch
	default:
		return wireErrNone
	}
}

func (w wireErr) decode() error {
	switch w {
	case wireErrNone:
		return nil
	case wireErrNotFound:
		return dialogerr.ErrNotFound
	case wireErrEditionMismatch:
		return dialogerr.ErrEditionMismatch
	default:
		return nil
	}
}
