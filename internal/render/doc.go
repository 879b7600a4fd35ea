// Package render turns a stream of completion fragments into a single chat
// message that grows as the model writes.
//
// The first non-blank fragment creates the message; later fragments edit
// it through a Throttle so the platform sees at most one edit per interval.
// When the stream ends the full text is flushed with a final edit.
package render
