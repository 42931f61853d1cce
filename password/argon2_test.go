package password

import (
	"strings"
	"testing"
)

func testArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestArgon2HashAndVerify(t *testing.T) {
	hasher, err := NewArgon2(testArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}
	if !hasher.Verify("P@ssw0rd-Ascii", hash) {
		t.Fatal("expected verification to succeed")
	}
	if hasher.Verify("P@ssw0rd-ascii", hash) {
		t.Fatal("expected wrong secret to fail")
	}
}

func TestArgon2EmptySecretRejected(t *testing.T) {
	hasher, err := NewArgon2(testArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	if _, err := hasher.Hash(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestArgon2NeedsUpgrade(t *testing.T) {
	old, err := NewArgon2(testArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2(old) error: %v", err)
	}
	hash, err := old.Hash("test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	stronger := testArgon2Config()
	stronger.Memory = 16 * 1024
	current, err := NewArgon2(stronger)
	if err != nil {
		t.Fatalf("NewArgon2(current) error: %v", err)
	}

	if !current.NeedsUpgrade(hash) {
		t.Fatal("expected hash with lower memory to need upgrade")
	}
	if old.NeedsUpgrade(hash) {
		t.Fatal("expected hash with same params not to need upgrade")
	}
}

func TestArgon2MalformedHashesVerifyFalse(t *testing.T) {
	hasher, err := NewArgon2(testArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	cases := []string{
		"",
		"plain",
		"$argon2id$v=19$m=8192,t=1,p=1$onlysalt",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
	}
	for _, tc := range cases {
		if hasher.Verify("whatever", tc) {
			t.Fatalf("expected malformed hash %q to verify false", tc)
		}
	}
}

func TestArgon2ConfigValidation(t *testing.T) {
	bad := testArgon2Config()
	bad.SaltLength = 8
	if _, err := NewArgon2(bad); err == nil {
		t.Fatal("expected short salt to be rejected")
	}
}
