package crypto

import (
	"errors"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestGenerateNumericCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateNumericCode(6)
		if err != nil {
			t.Fatalf("code error: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 characters, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("expected digits only, got %q", code)
			}
		}
	}
}

func TestGenerateNumericCodeCoversAllDigits(t *testing.T) {
	seen := make(map[rune]bool)
	for i := 0; i < 500 && len(seen) < 10; i++ {
		code, err := GenerateNumericCode(6)
		if err != nil {
			t.Fatalf("code error: %v", err)
		}
		for _, r := range code {
			seen[r] = true
		}
	}
	if len(seen) != 10 {
		t.Fatalf("expected every digit to appear, saw %d", len(seen))
	}
}

func TestGenerateNumericCodeConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := GenerateNumericCode(6); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent generation failed: %v", err)
	}
}

func TestGenerateNumericCodeRejectsInvalidLength(t *testing.T) {
	if _, err := GenerateNumericCode(0); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
}

func TestCodeHashing(t *testing.T) {
	hash, err := HashCode("012345")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	if !VerifyCode(hash, "012345") {
		t.Fatal("expected code verification to succeed")
	}
	if VerifyCode(hash, "12345") {
		t.Fatal("expected numerically equal code to fail")
	}
	if VerifyCode(hash, "") {
		t.Fatal("expected empty code to fail")
	}
	if VerifyCode("", "012345") {
		t.Fatal("expected empty hash to fail")
	}
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	if len(token) == 0 {
		t.Fatal("expected token to be non-empty")
	}

	other, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if token == other {
		t.Fatal("expected tokens to differ")
	}
}

func TestHashCodeWithCost(t *testing.T) {
	hash, err := HashCodeWithCost("654321", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashCodeWithCost returned error: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("bcrypt.Cost returned error: %v", err)
	}
	if cost != bcrypt.MinCost {
		t.Fatalf("expected cost %d, got %d", bcrypt.MinCost, cost)
	}
	if !VerifyCode(hash, "654321") {
		t.Fatal("expected code to verify against low-cost hash")
	}
}
