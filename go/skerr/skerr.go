// Package skerr provides error wrapping that retains the call stack of the
// point where the error was first wrapped, along with any context messages
// added as the error propagates up the stack.
package skerr

import (
	"fmt"
	"runtime"
	"strings"
)

// StackTrace identifies a filename (base filename only) and line number.
type StackTrace struct {
	File string
	Line int
}

func (st StackTrace) String() string {
	return fmt.Sprintf("%s:%d", st.File, st.Line)
}

// ErrorWithContext is an error that remembers where it was wrapped and any
// additional context messages supplied via Wrapf.
type ErrorWithContext struct {
	// Wrapped is the original error.
	Wrapped error
	// CallStack is the stack at the point Wrap/Fmt was first called.
	// CallStack[0] is the direct caller.
	CallStack []StackTrace
	// Context messages, innermost first.
	Context []string
}

// Error implements the error interface.
func (err *ErrorWithContext) Error() string {
	var sb strings.Builder
	for i := len(err.Context) - 1; i >= 0; i-- {
		sb.WriteString(err.Context[i])
		sb.WriteString(": ")
	}
	if err.Wrapped != nil {
		sb.WriteString(err.Wrapped.Error())
	}
	if len(err.CallStack) > 0 {
		stack := make([]string, 0, len(err.CallStack))
		for _, st := range err.CallStack {
			stack = append(stack, st.String())
		}
		sb.WriteString(" At ")
		sb.WriteString(strings.Join(stack, " "))
	}
	return sb.String()
}

// Unwrap supports errors.Is and errors.As.
func (err *ErrorWithContext) Unwrap() error {
	return err.Wrapped
}

// CallStack returns a slice of StackTrace representing the current stack
// trace. The lowest index is the caller's immediate context, adjusted by
// startAt: a startAt of 0 means the direct caller of CallStack.
func CallStack(height int, startAt int) []StackTrace {
	stack := make([]StackTrace, 0, height)
	for i := 0; i < height; i++ {
		_, file, line, ok := runtime.Caller(startAt + 1 + i)
		if !ok {
			break
		}
		split := strings.Split(file, "/")
		stack = append(stack, StackTrace{
			File: split[len(split)-1],
			Line: line,
		})
	}
	return stack
}

// Wrap adds stack information to err if it is not already wrapped, i.e. the
// call stack recorded is that of the first Wrap call.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*ErrorWithContext); ok {
		return err
	}
	return &ErrorWithContext{
		Wrapped:   err,
		CallStack: CallStack(4, 1),
	}
}

// Wrapf adds context and stack information to err. The format and args are
// formatted with fmt.Sprintf.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	context := fmt.Sprintf(format, args...)
	if wrapped, ok := err.(*ErrorWithContext); ok {
		return &ErrorWithContext{
			Wrapped:   wrapped.Wrapped,
			CallStack: wrapped.CallStack,
			Context:   append(wrapped.Context[:len(wrapped.Context):len(wrapped.Context)], context),
		}
	}
	return &ErrorWithContext{
		Wrapped:   err,
		CallStack: CallStack(4, 1),
		Context:   []string{context},
	}
}

// Fmt creates a new error with stack information; the message is formatted
// with fmt.Sprintf.
func Fmt(format string, args ...interface{}) error {
	return &ErrorWithContext{
		Wrapped:   fmt.Errorf(format, args...),
		CallStack: CallStack(4, 1),
	}
}

// Unwrap returns the original error if err was created by this package,
// otherwise err itself.
func Unwrap(err error) error {
	if wrapped, ok := err.(*ErrorWithContext); ok {
		return wrapped.Wrapped
	}
	return err
}
