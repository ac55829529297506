package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

func TestKeyring_SetGetDelete(t *testing.T) {
	k := New(keyring.NewArrayKeyring(nil))

	if err := k.Set("ado_pat", "secret-token"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := k.Get("ado_pat")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "secret-token" {
		t.Errorf("Get = %q, want secret-token", got)
	}

	if err := k.Delete("ado_pat"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := k.Get("ado_pat"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestKeyring_GetMissing(t *testing.T) {
	k := New(keyring.NewArrayKeyring(nil))
	_, err := k.Get("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestKeyring_DeleteMissing(t *testing.T) {
	k := New(keyring.NewArrayKeyring(nil))
	if err := k.Delete("nope"); err != nil {
		t.Errorf("Delete missing = %v, want nil", err)
	}
}

func TestKeyring_ImplementsStore(t *testing.T) {
	var _ Store = New(keyring.NewArrayKeyring(nil))
}
