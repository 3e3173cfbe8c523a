// Package metricvalue validates and serializes metric values.
//
// Validation never panics and never returns a plain error to the
// application. Functions hand back a *ValidationError (nil when the value is
// fine) carrying the error type that the caller counts through the error
// manager. Some validations still produce a usable value alongside the error,
// e.g. String truncates and reports InvalidOverflow.
//
// Validate is the read-side counterpart: it checks a value loaded from
// storage and converts it to its payload form. Anything with an unexpected
// shape is an error, and the databases delete such entries.
package metricvalue
