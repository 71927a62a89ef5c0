package crypto_test

import (
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/AlibekovAA/lingo-cms/backend/internal/common/crypto"
)

func TestBcryptHasher_HashAndCompare(t *testing.T) {
	hasher := &crypto.BcryptHasher{Cost: bcrypt.MinCost}

	hash, err := hasher.Hash("test")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if hash == "test" {
		t.Fatal("expected password to be hashed")
	}

	if err := hasher.Compare(hash, "test"); err != nil {
		t.Errorf("expected matching password, got %v", err)
	}
	if err := hasher.Compare(hash, "wrong"); err == nil {
		t.Error("expected mismatch for wrong password")
	}
}

func TestUUIDGenerator_NewID(t *testing.T) {
	gen := crypto.NewUUIDGenerator()

	first, err := gen.NewID()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, _ := gen.NewID()

	if _, err := uuid.Parse(first); err != nil {
		t.Errorf("expected valid uuid, got %q", first)
	}
	if first == second {
		t.Error("expected unique ids")
	}
}
