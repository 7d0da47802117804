package signing

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	msg := []byte("signable bytes || digest")
	sig := Sign(kp.Private, msg)
	if !Verify(kp.Public, msg, sig) {
		t.Errorf("Verify failed on freshly signed message")
	}
}

func TestVerifyFailsOnTamperedMessage(t *testing.T) {
	kp, _ := GenerateKeyPair()
	msg := []byte("original")
	sig := Sign(kp.Private, msg)
	if Verify(kp.Public, []byte("tampered"), sig) {
		t.Errorf("Verify should fail on tampered message")
	}
}

func TestVerifyFailsOnMalformedInput(t *testing.T) {
	kp, _ := GenerateKeyPair()
	if Verify(kp.Public, []byte("x"), []byte("too-short-signature")) {
		t.Errorf("Verify should fail on malformed signature, not panic or error")
	}
}

func TestEncodeDecodePublicKeyRoundTrip(t *testing.T) {
	kp, _ := GenerateKeyPair()
	encoded := EncodePublicKey(kp.Public)
	decoded, ok := DecodePublicKey(encoded)
	if !ok {
		t.Fatalf("DecodePublicKey failed")
	}
	if string(decoded) != string(kp.Public) {
		t.Errorf("round-trip mismatch")
	}
}

func TestDecodePublicKeyRejectsBadLength(t *testing.T) {
	if _, ok := DecodePublicKey("dG9vc2hvcnQ="); ok {
		t.Errorf("expected ok=false for wrong-length key")
	}
}

func TestKeyFileRoundTripAndRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lxe.key")

	kp, _ := GenerateKeyPair()
	if err := WriteKeyFile(path, kp.Private); err != nil {
		t.Fatalf("WriteKeyFile: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("key file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := ReadKeyFile(path)
	if err != nil {
		t.Fatalf("ReadKeyFile: %v", err)
	}
	if string(loaded) != string(kp.Private) {
		t.Errorf("loaded key does not match written key")
	}

	if err := WriteKeyFile(path, kp.Private); err == nil {
		t.Errorf("expected error overwriting existing key file")
	}
}
