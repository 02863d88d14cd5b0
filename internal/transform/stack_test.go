package transform

import (
	"bytes"
	"testing"
)

type dropStage struct{}

func (dropStage) Encode(dst, payload []byte) ([]byte, error) { return nil, nil }
func (dropStage) Decode(dst, payload []byte) ([]byte, error) { return append(dst[:0], payload...), nil }
func (dropStage) EncodeAvailable() bool                      { return true }
func (dropStage) DecodeAvailable() bool                      { return true }
func (dropStage) Close() error                               { return nil }

type xorStage struct{ key byte }

func (x xorStage) xor(dst, payload []byte) []byte {
	out := dst[:0]
	for _, b := range payload {
		out = append(out, b^x.key)
	}
	return out
}

func (x xorStage) Encode(dst, payload []byte) ([]byte, error) { return x.xor(dst, payload), nil }
func (x xorStage) Decode(dst, payload []byte) ([]byte, error) { return x.xor(dst, payload), nil }
func (x xorStage) EncodeAvailable() bool                      { return true }
func (x xorStage) DecodeAvailable() bool                      { return true }
func (x xorStage) Close() error                               { return nil }

func TestStackAppliesHeadToTailThenReverse(t *testing.T) {
	stack := NewStack(xorStage{key: 0x01}, xorStage{key: 0x02})

	payload := []byte("hello")
	encoded, err := stack.Encode(nil, payload)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := stack.Decode(nil, encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Fatalf("got %q, want %q", decoded, payload)
	}
}

func TestStackDropSignalsNilWithoutError(t *testing.T) {
	stack := NewStack(dropStage{})
	out, err := stack.Encode(nil, []byte("x"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if out != nil {
		t.Fatalf("expected dropped frame (nil), got %v", out)
	}
}
