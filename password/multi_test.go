package password

import (
	"errors"
	"strings"
	"testing"
)

func TestMultiVerifiesBothFormats(t *testing.T) {
	bcryptFirst, err := New(Config{BcryptCost: MinBcryptCost, Argon2: testArgon2Config()})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	argonFirst, err := New(Config{Algorithm: AlgorithmArgon2id, BcryptCost: MinBcryptCost, Argon2: testArgon2Config()})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	bh, err := bcryptFirst.Hash("Secret123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	ah, err := argonFirst.Hash("Secret123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(bh, "$2a$") && !strings.HasPrefix(bh, "$2b$") {
		t.Fatalf("expected bcrypt hash, got %s", bh)
	}
	if Format(ah) != AlgorithmArgon2id {
		t.Fatalf("expected argon2id hash, got %s", ah)
	}

	for _, m := range []*Multi{bcryptFirst, argonFirst} {
		if !m.Verify("Secret123", bh) || !m.Verify("Secret123", ah) {
			t.Fatalf("%s hasher failed to verify a known format", m.Algorithm())
		}
		if m.Verify("Secret124", bh) || m.Verify("Secret124", ah) {
			t.Fatalf("%s hasher accepted a wrong secret", m.Algorithm())
		}
		if m.Verify("Secret123", "$unknown$abc") {
			t.Fatal("unknown format must verify false")
		}
	}

	if !bcryptFirst.NeedsRehash(ah) {
		t.Fatal("argon2 hash should need rehash under bcrypt primary")
	}
	if bcryptFirst.NeedsRehash(bh) {
		t.Fatal("bcrypt hash at current cost should not need rehash")
	}
}

func TestMultiUnknownAlgorithm(t *testing.T) {
	if _, err := New(Config{Algorithm: "md5"}); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Fatalf("expected ErrUnknownAlgorithm, got %v", err)
	}
}
