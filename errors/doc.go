// Package errors provides structured error types for the guest-bridge library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes rich context: a path into the decoded
// stream, the offending value, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
//		Path("op[2]", "arg[0]").
//		Detail("text region exceeds buffer").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Framing(errors.PhaseDispatch, 17, 0xFE, 0x00)
//	err := errors.StaleHandle(errors.PhaseRegistry, handle)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
