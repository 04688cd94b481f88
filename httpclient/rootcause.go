package httpclient

import "reflect"

// causer is implemented by errors created with github.com/pkg/errors.
type causer interface {
	Cause() error
}

// nextCause returns the error directly wrapped by err, preferring the
// standard Unwrap method over pkg/errors' Cause.
func nextCause(err error) error {
	switch e := err.(type) {
	case interface{ Unwrap() error }:
		return e.Unwrap()
	case causer:
		return e.Cause()
	}
	return nil
}

// visitedSet records errors already walked. Errors that cannot be hashed
// are never recorded. That covers non-comparable dynamic types and
// comparable ones holding an interface field with unhashable contents.
type visitedSet map[error]struct{}

// add records err and reports whether it was not seen before.
func (s visitedSet) add(err error) (added bool) {
	if !reflect.TypeOf(err).Comparable() {
		return true
	}
	defer func() {
		if recover() != nil {
			added = true
		}
	}()
	if _, seen := s[err]; seen {
		return false
	}
	s[err] = struct{}{}
	return true
}

// RootCause walks the chain of wrapped errors starting at err and returns
// the deepest one. A chain that loops back on itself stops at the last
// distinct error before the loop. RootCause(nil) is nil.
//
// Both Unwrap() error and Cause() error links are followed.
//
// Example:
//
//	_, err := svc.Invoke(ctx, "GetUser", 42)
//	logger.Error().Err(httpclient.RootCause(err)).Msg("call failed")
func RootCause(err error) error {
	if err == nil {
		return nil
	}
	seen := visitedSet{}
	seen.add(err)

	root := err
	for {
		cause := nextCause(root)
		if cause == nil || !seen.add(cause) {
			return root
		}
		root = cause
	}
}

// RootCauseRecursive is the recursive form of RootCause and returns the same
// result for the same chain.
func RootCauseRecursive(err error) error {
	if err == nil {
		return nil
	}
	seen := visitedSet{}
	seen.add(err)
	return rootCauseRecursive(err, seen)
}

func rootCauseRecursive(err error, seen visitedSet) error {
	cause := nextCause(err)
	if cause == nil || !seen.add(cause) {
		return err
	}
	return rootCauseRecursive(cause, seen)
}
