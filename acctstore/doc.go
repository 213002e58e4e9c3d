// Package acctstore provides AccountRepository implementations: an
// in-memory store for tests and single-process setups, and a MongoDB
// store for production. Both enforce optimistic concurrency through
// the account Version field.
package acctstore
