// Package password implements argon2id password hashing in PHC string
// format with constant-time verification and rehash detection.
package password
