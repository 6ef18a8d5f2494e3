package crypt

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestSealOpen(t *testing.T) {
	s, err := NewSealer("a very long secret used only by the tests")
	if err != nil {
		t.Fatal(err)
	}

	sealed, err := s.Seal([]byte(`{"password":"pronotevs"}`))
	if err != nil {
		t.Fatal(err)
	}
	again, _ := s.Seal([]byte(`{"password":"pronotevs"}`))
	if sealed == again {
		t.Error("two seals of the same plaintext should differ")
	}

	plain, err := s.Open(sealed)
	if err != nil {
		t.Fatal(err)
	}
	if string(plain) != `{"password":"pronotevs"}` {
		t.Fatalf("plain = %s", plain)
	}
}

func TestOpenRejects(t *testing.T) {
	s, _ := NewSealer("secret one, long enough for the test")
	other, _ := NewSealer("secret two, long enough for the test")
	sealed, _ := s.Seal([]byte("payload"))

	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0xff
	flipped := base64.StdEncoding.EncodeToString(raw)

	for name, value := range map[string]string{
		"not base64":  "%%%",
		"too short":   base64.StdEncoding.EncodeToString([]byte("abc")),
		"bit flipped": flipped,
	} {
		if _, err := s.Open(value); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
	if _, err := other.Open(sealed); !errors.Is(err, ErrCorrupt) {
		t.Errorf("foreign key: err = %v", err)
	}
}

func TestNewSealerEmptySecret(t *testing.T) {
	if _, err := NewSealer(""); err == nil {
		t.Fatal("expected an error")
	}
}

func TestRandomToken(t *testing.T) {
	a, err := RandomToken(32)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := RandomToken(32)
	if len(a) != 43 || a == b {
		t.Fatalf("tokens %q %q", a, b)
	}
}
