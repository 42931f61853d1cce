// Package password hashes and verifies login secrets.
//
// # Formats
//
// Two one-way formats are understood:
//
//	$2b$<cost>$<salt+hash>                                     bcrypt (default)
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>  argon2id PHC
//
// [Multi] hashes with one primary algorithm and verifies either format, so a
// deployment can switch algorithms without invalidating stored hashes.
// [Multi.NeedsRehash] reports hashes the caller should replace on the next
// successful login.
//
// # Verification contract
//
// Verify never returns an error. A malformed or unknown hash verifies as false.
//
// # Architecture boundaries
//
// This package owns hashing, verification and the secret complexity policy.
// It never stores secrets and never imports other sessionguard packages.
package password
