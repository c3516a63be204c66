package crypto

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"spending/internal/core"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func mustCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipherFromHex(testKeyHex)
	if err != nil {
		t.Fatalf("NewCipherFromHex: %v", err)
	}
	return c
}

func TestNewCipherRejectsBadKeys(t *testing.T) {
	for _, k := range []string{"", "zz", "0001"} {
		if _, err := NewCipherFromHex(k); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("key %q: expected ErrInvalidKey, got %v", k, err)
		}
	}
}

func TestEncryptDecrypt(t *testing.T) {
	c := mustCipher(t)
	enc, err := c.Encrypt("-42.10")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !IsEncrypted(enc) || strings.Contains(enc, "42.10") {
		t.Fatalf("unexpected envelope %q", enc)
	}
	got, err := c.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "-42.10" {
		t.Errorf("Decrypt() = %q, want -42.10", got)
	}
}

func TestDecryptPlaintextPassthrough(t *testing.T) {
	c := mustCipher(t)
	got, err := c.Decrypt("FOOD_AND_DRINK")
	if err != nil || got != "FOOD_AND_DRINK" {
		t.Errorf("Decrypt(plain) = %q, %v", got, err)
	}
}

func TestDecryptFailures(t *testing.T) {
	c := mustCipher(t)
	if _, err := c.Decrypt(Prefix + "!!!"); !errors.Is(err, ErrMalformedCipher) {
		t.Errorf("bad base64: expected ErrMalformedCipher, got %v", err)
	}
	if _, err := c.Decrypt(Prefix + "AAAA"); !errors.Is(err, ErrMalformedCipher) {
		t.Errorf("short payload: expected ErrMalformedCipher, got %v", err)
	}

	enc, _ := c.Encrypt("secret")
	other, _ := NewCipher(make([]byte, 32))
	if _, err := other.Decrypt(enc); err == nil {
		t.Errorf("expected authentication failure with wrong key")
	}
}

func TestFieldDecrypterTransactions(t *testing.T) {
	c := mustCipher(t)
	d := NewFieldDecrypter(c, 3)

	var txs []core.Transaction
	for i := 0; i < 10; i++ {
		amount, _ := c.Encrypt(fmt.Sprintf("%d.00", i))
		cat, _ := c.Encrypt("FOOD_AND_DRINK")
		txs = append(txs, core.Transaction{
			ID:       fmt.Sprintf("t%d", i),
			Amount:   core.Str(amount),
			Category: core.Str(cat),
			Date:     core.Str("2024-01-01"),
			Name:     "plain name",
		})
	}
	txs = append(txs, core.Transaction{ID: "nil-fields"})

	out, err := d.DecryptTransactions(context.Background(), txs)
	if err != nil {
		t.Fatalf("DecryptTransactions: %v", err)
	}
	if len(out) != len(txs) {
		t.Fatalf("len = %d, want %d", len(out), len(txs))
	}
	for i := 0; i < 10; i++ {
		if *out[i].Amount != fmt.Sprintf("%d.00", i) {
			t.Errorf("out[%d].Amount = %q", i, *out[i].Amount)
		}
		if *out[i].Category != "FOOD_AND_DRINK" || out[i].Name != "plain name" {
			t.Errorf("out[%d] = %+v", i, out[i])
		}
		if !IsEncrypted(*txs[i].Amount) {
			t.Errorf("input %d was modified", i)
		}
	}
	if out[10].Amount != nil || out[10].Category != nil {
		t.Errorf("nil fields should stay nil")
	}
}

func TestFieldDecrypterFailsWholeListing(t *testing.T) {
	d := NewFieldDecrypter(mustCipher(t), 2)
	accounts := []core.Account{
		{ID: "a1", InstitutionName: "Bank"},
		{ID: "a2", InstitutionName: Prefix + "garbage"},
	}
	if _, err := d.DecryptAccounts(context.Background(), accounts); err == nil {
		t.Fatal("expected error")
	}
}

func TestFieldDecrypterUsers(t *testing.T) {
	c := mustCipher(t)
	name, _ := c.Encrypt("ada")
	out, err := NewFieldDecrypter(c, 100).DecryptUsers(context.Background(), []core.User{{Key: "u1", Username: name}})
	if err != nil {
		t.Fatalf("DecryptUsers: %v", err)
	}
	if out[0].Username != "ada" {
		t.Errorf("Username = %q", out[0].Username)
	}
}
