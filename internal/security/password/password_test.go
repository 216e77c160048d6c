package password

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHashVerify(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost)
	hash, err := h.Hash("jnfdkvn389F")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "jnfdkvn389F" {
		t.Fatalf("hash must not equal the plain password")
	}
	if err := h.Verify(hash, "jnfdkvn389F"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := h.Verify(hash, "wrong"); !errors.Is(err, ErrMismatch) {
		t.Fatalf("want ErrMismatch, got %v", err)
	}
}
