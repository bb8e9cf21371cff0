// Package password hashes and verifies account passwords.
//
// # Output format
//
// New hashes are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher] also verifies bcrypt hashes ($2a$, $2b$, $2y$) carried over from
// earlier systems when enabled. [Hasher.NeedsUpgrade] reports true for those
// and for Argon2id hashes made with weaker parameters, so the caller can
// re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing, verification and the length policy of new
// passwords. Lockout and credential storage belong to the engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other marketauth package.
//   - Log plaintext passwords or hashes.
package password
