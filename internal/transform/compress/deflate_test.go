package compress

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"short", []byte("hello")},
		{"repetitive", bytes.Repeat([]byte("tunnel "), 400)},
		{"binary", func() []byte {
			b := make([]byte, 1024)
			for i := range b {
				b[i] = byte(i * 7)
			}
			return b
		}()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := New(6)
			defer tr.Close()

			enc, err := tr.Encode(nil, tc.payload)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			dec, err := tr.Decode(nil, enc)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !bytes.Equal(dec, tc.payload) {
				t.Fatalf("round trip mismatch: got %d bytes, want %d", len(dec), len(tc.payload))
			}
		})
	}
}

func TestRepetitivePayloadShrinks(t *testing.T) {
	tr := New(9)
	defer tr.Close()

	payload := bytes.Repeat([]byte{'a'}, 2000)
	enc, err := tr.Encode(nil, payload)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(enc) >= len(payload) {
		t.Fatalf("level-9 deflate did not shrink %d repetitive bytes (got %d)", len(payload), len(enc))
	}
}

func TestCorruptInputFails(t *testing.T) {
	tr := New(6)
	defer tr.Close()

	if _, err := tr.Decode(nil, []byte{0xde, 0xad, 0xbe, 0xef}); err == nil {
		t.Fatalf("expected error decoding garbage, got nil")
	}
}
