// Package password implements salted, work-factor password hashing.
//
// Two algorithms are available behind the [Hasher] interface:
//
//   - [Bcrypt] (default), cost factor >= 10, modular crypt output ($2a$...).
//   - [Argon2] (argon2id), PHC string output.
//
// Argon2 hashes use the PHC layout:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length
// limits) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other goMFA package.
//   - Log plaintext passwords.
package password
