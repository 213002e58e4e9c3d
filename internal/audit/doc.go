// Package audit defines the security event model and the asynchronous
// dispatcher that forwards events to a configured sink.
package audit
