// Package internaldefs holds the shared metric name table used by the
// exporter packages. Not part of the public API.
package internaldefs
