// Package fault: error kinds for one forwarded connection.
package fault

import (
	"io"
	"net"
	"syscall"

	"github.com/pkg/errors"
)

// Kind classifies a connection failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindIO: socket closed or transport failure; logged as warning.
	KindIO
	// KindProtocol: malformed header, bad version, unexpected message type.
	KindProtocol
	// KindDecode: malformed JSON in args.
	KindDecode
	// KindEncoding: args are not UTF-8.
	KindEncoding
	// KindCrypto: cipher failure.
	KindCrypto
	// KindChain: empty hop list, dial failure, downstream rejection.
	KindChain
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindProtocol:
		return "protocol"
	case KindDecode:
		return "decode"
	case KindEncoding:
		return "encoding"
	case KindCrypto:
		return "crypto"
	case KindChain:
		return "chain"
	}
	return "unknown"
}

// Error carries a Kind and, for chain failures, the status code sent upstream.
type Error struct {
	Kind Kind
	Code int
	err  error
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.err.Error() }

func (e *Error) Unwrap() error { return e.err }

// Cause for github.com/pkg/errors.Cause.
func (e *Error) Cause() error { return e.err }

// IO wraps a transport error.
func IO(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindIO, err: errors.Wrap(err, msg)}
}

// Protocolf protocol violation.
func Protocolf(format string, args ...interface{}) error {
	return &Error{Kind: KindProtocol, err: errors.Errorf(format, args...)}
}

// Decode wraps a JSON error.
func Decode(err error, msg string) error {
	return &Error{Kind: KindDecode, err: errors.Wrap(err, msg)}
}

// Encodingf invalid text encoding.
func Encodingf(format string, args ...interface{}) error {
	return &Error{Kind: KindEncoding, err: errors.Errorf(format, args...)}
}

// Crypto wraps a cipher error.
func Crypto(err error, msg string) error {
	return &Error{Kind: KindCrypto, err: errors.Wrap(err, msg)}
}

// Chainf chain failure reported upstream with code.
func Chainf(code int, format string, args ...interface{}) error {
	return &Error{Kind: KindChain, Code: code, err: errors.Errorf(format, args...)}
}

// KindOf returns the Kind of err. Bare EOF / closed-conn errors count as KindIO.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if isClosed(err) {
		return KindIO
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindIO
	}
	return KindUnknown
}

// CodeOf returns the chain status code carried by err, 0 if none.
func CodeOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return 0
}

// Message is err's text without the leading kind prefix.
func Message(err error) string {
	if fe, ok := err.(*Error); ok {
		return fe.err.Error()
	}
	return err.Error()
}

// Is reports whether err has kind k.
func Is(err error, k Kind) bool { return KindOf(err) == k }

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
