// Package errors provides the coded error taxonomy of the state
// synchronization layer.
//
// Sync errors are never returned to consumers of a Synchronizer. They are
// built where a medium fails, logged with their code, counted, and then
// absorbed so the affected field keeps its default. Config and CLI errors
// use the same type but are returned normally.
//
// # Error Codes
//
// Each error has a code that maps to a category, a short message and a
// detail text:
//
//	S001  medium    storage or location medium unavailable
//	S002  storage   malformed persisted text
//	S003  coercion  unreconstructible field
//	S004  url       unknown URL key under the namespace
//	S005  storage   storage write failed
//	S006  url       location replace failed
//	S101+ config    configuration problems
//
// # Usage
//
//	err := errors.New("S002").
//	    WithKey("thread-calc").
//	    Wrap(parseErr)
//
//	logger.Warn("discarding stored state", errors.Attrs(err)...)
package errors
