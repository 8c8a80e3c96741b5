package okx

import (
	"strings"
	"testing"
)

func TestSigner_GenerateHeaders(t *testing.T) {
	signer := NewSigner("key", "secret", "pass")

	headers := signer.GenerateHeaders("POST", "/api/v5/trade/order", "{\"instId\":\"BTC-USDT-SWAP\"}")

	if headers["OK-ACCESS-KEY"] != "key" {
		t.Errorf("Expected OK-ACCESS-KEY to be 'key', got %s", headers["OK-ACCESS-KEY"])
	}
	if headers["OK-ACCESS-PASSPHRASE"] != "pass" {
		t.Errorf("Expected OK-ACCESS-PASSPHRASE to be 'pass', got %s", headers["OK-ACCESS-PASSPHRASE"])
	}
	if headers["OK-ACCESS-SIGN"] == "" {
		t.Error("OK-ACCESS-SIGN should not be empty")
	}
	// ISO8601 with millisecond precision, e.g. 2020-12-08T09:08:57.715Z
	ts := headers["OK-ACCESS-TIMESTAMP"]
	if len(ts) != 24 || !strings.HasSuffix(ts, "Z") {
		t.Errorf("Expected ISO8601 millisecond timestamp, got %s", ts)
	}
}

func TestSigner_DeterministicSignature(t *testing.T) {
	signer := NewSigner("key", "secret", "pass")

	h1 := signer.headersAt("2020-12-08T09:08:57.715Z", "GET", "/api/v5/trade/order?ordId=1", "")
	h2 := signer.headersAt("2020-12-08T09:08:57.715Z", "GET", "/api/v5/trade/order?ordId=1", "")

	if h1["OK-ACCESS-SIGN"] != h2["OK-ACCESS-SIGN"] {
		t.Error("same inputs should produce the same signature")
	}

	h3 := signer.headersAt("2020-12-08T09:08:57.716Z", "GET", "/api/v5/trade/order?ordId=1", "")
	if h1["OK-ACCESS-SIGN"] == h3["OK-ACCESS-SIGN"] {
		t.Error("different timestamps should produce different signatures")
	}
}

func TestComputeHmacSha256(t *testing.T) {
	// Standard HMAC-SHA256 Test Vector
	key := "key"
	data := "The quick brown fox jumps over the lazy dog"

	expected := "97yD9DBThCSxMpjmqm+xQ+9NWaFJRhdZl0edvC0aPNg="

	signer := NewSigner("dummy_access", key, "dummy_pass")
	result := signer.computeHmacSha256(data)

	if result != expected {
		t.Errorf("HMAC Mismatch. Expected %s, got %s", expected, result)
	}
}

func TestSigner_Wipe(t *testing.T) {
	signer := NewSigner("key", "secret", "pass")
	signer.Wipe()

	for _, b := range signer.secretKey {
		if b != 0 {
			t.Fatal("secret key not wiped")
		}
	}
}

func TestParseCandleRow(t *testing.T) {
	row := []string{"1700000000000", "100.5", "101", "99.5", "100.75", "12.5", "0", "0", "1"}

	bar, err := parseCandleRow(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bar.Ts.UnixMilli() != 1700000000000 {
		t.Errorf("Ts = %v", bar.Ts)
	}
	if bar.Open.String() != "100.5" || bar.Close.String() != "100.75" {
		t.Errorf("OHLC mismatch: open=%s close=%s", bar.Open, bar.Close)
	}
	if bar.Volume.String() != "12.5" {
		t.Errorf("Volume = %s", bar.Volume)
	}

	if _, err := parseCandleRow([]string{"1700000000000", "1"}); err == nil {
		t.Error("short row should error")
	}
	if _, err := parseCandleRow([]string{"nope", "1", "1", "1", "1", "1"}); err == nil {
		t.Error("bad timestamp should error")
	}
}
