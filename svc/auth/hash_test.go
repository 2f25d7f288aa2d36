package auth

import (
	"strings"
	"testing"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(1, 8*1024, 1)
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func TestHashVerifyRoundTrip(t *testing.T) {
	h := newTestHasher(t)
	encoded, err := h.Hash("s3cret")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if encoded == "s3cret" || strings.Contains(encoded, "s3cret") {
		t.Fatal("encoded credential leaks the plaintext")
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Errorf("unexpected encoding prefix: %s", encoded)
	}
	ok, err := h.Verify("s3cret", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Error("correct password did not verify")
	}
	ok, err = h.Verify("wrong", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Error("wrong password verified")
	}
}

func TestHashNonDeterministic(t *testing.T) {
	h := newTestHasher(t)
	a, err := h.Hash("same")
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.Hash("same")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two hashes of the same password are identical, salt is not fresh")
	}
	for _, enc := range []string{a, b} {
		ok, err := h.Verify("same", enc)
		if err != nil || !ok {
			t.Errorf("hash %s did not verify: %v", enc, err)
		}
	}
}

func TestVerifyMalformed(t *testing.T) {
	h := newTestHasher(t)
	cases := []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=8192,t=1,p=1$missingkey",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=bogus$c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$a2V5",
	}
	for _, enc := range cases {
		ok, err := h.Verify("whatever", enc)
		if err == nil {
			t.Errorf("Verify(%q) returned no error, ok=%v; want ErrMalformedHash", enc, ok)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	weak, err := NewHasher(1, 8*1024, 1)
	if err != nil {
		t.Fatal(err)
	}
	strong, err := NewHasher(4, 64*1024, 2)
	if err != nil {
		t.Fatal(err)
	}
	encoded, err := weak.Hash("pw")
	if err != nil {
		t.Fatal(err)
	}
	needs, err := strong.NeedsRehash(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if !needs {
		t.Error("weaker hash not flagged for rehash")
	}
	needs, err = weak.NeedsRehash(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if needs {
		t.Error("hash at current parameters flagged for rehash")
	}
}
