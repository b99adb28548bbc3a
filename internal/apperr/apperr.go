// Package apperr holds the error taxonomy shared by the session and transaction layers.
// Every error produced by the core carries exactly one of the markers below so callers can
// branch with errors.Is regardless of how many times it was wrapped.
package apperr

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrNoWallet       = errors.New("no wallet transport available")
	ErrUserRejected   = errors.New("request rejected by user")
	ErrInvalidAddress = errors.New("invalid address")
	ErrValidation     = errors.New("validation failed")
	ErrNetwork        = errors.New("network error")
	ErrContractRevert = errors.New("contract execution reverted")
)

// ContractRevertError is returned when the network accepted a call but execution reverted.
type ContractRevertError struct {
	// Reason is the decoded revert string, empty when the node did not return one.
	Reason string
	// Message is the user-facing text. It equals Reason when no mapping applies.
	Message string
	cause   error
}

func (e *ContractRevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

func (e *ContractRevertError) Unwrap() error { return e.cause }

func (e *ContractRevertError) Is(target error) bool { return target == ErrContractRevert }

func NewContractRevert(reason, message string, cause error) *ContractRevertError {
	if message == "" {
		message = reason
	}
	return &ContractRevertError{Reason: reason, Message: message, cause: cause}
}

// classified attaches one of the markers above to a cause. Both the standard library and
// cockroachdb errors.Is see the marker through Is, and the cause through Unwrap.
type classified struct {
	class error
	cause error
}

func (e *classified) Error() string { return e.cause.Error() }

func (e *classified) Unwrap() error { return e.cause }

func (e *classified) Is(target error) bool { return target == e.class }

func classify(class, cause error) error {
	return &classified{class: class, cause: cause}
}

func NoWallet(cause error) error {
	if cause == nil {
		return ErrNoWallet
	}
	return classify(ErrNoWallet, errors.Wrap(cause, "wallet transport"))
}

func UserRejected(cause error) error {
	if cause == nil {
		return ErrUserRejected
	}
	return classify(ErrUserRejected, errors.Wrap(cause, "wallet prompt"))
}

func InvalidAddress(raw string) error {
	return classify(ErrInvalidAddress, errors.Newf("invalid address %q", raw))
}

func Validation(format string, args ...any) error {
	return classify(ErrValidation, errors.Newf(format, args...))
}

func Required(field string) error {
	return Validation("%s is required", field)
}

func Network(cause error, op string) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, ErrNetwork) {
		return cause
	}
	return classify(ErrNetwork, errors.Wrap(cause, op))
}

// UserMessage converts any core error into the single string shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var revert *ContractRevertError
	switch {
	case errors.As(err, &revert):
		if revert.Message != "" {
			return revert.Message
		}
		return revert.Error()
	case errors.Is(err, ErrNoWallet):
		return "No wallet found. Install or configure a wallet and try again"
	case errors.Is(err, ErrUserRejected):
		return "Request was rejected in the wallet"
	case errors.Is(err, ErrInvalidAddress), errors.Is(err, ErrValidation):
		return flatten(err)
	case errors.Is(err, ErrNetwork):
		return fmt.Sprintf("Network error: %s", errors.UnwrapAll(err).Error())
	default:
		return flatten(err)
	}
}

func flatten(err error) string {
	return errors.UnwrapAll(err).Error()
}
