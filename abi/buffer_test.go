package abi

import (
	"errors"
	"testing"
)

func TestDecodeWithoutRequest(t *testing.T) {
	b := make([]byte, BufferSize)
	if _, err := Decode(b); !errors.Is(err, ErrNoRequest) {
		t.Fatalf("expected ErrNoRequest, got %v", err)
	}
	if _, err := Decode(b[:10]); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

func TestChannelTakeResponse(t *testing.T) {
	b := make([]byte, 4096)
	if err := Encode(b, ChannelTake{Channel: SlotKeyboard}); err != nil {
		t.Fatal(err)
	}
	sc, err := Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	take, ok := sc.(ChannelTake)
	if !ok || take.Channel != SlotKeyboard || take.HasResponse {
		t.Fatalf("unexpected request %#v", sc)
	}

	if err := SetResponse(b, 0x41); err != nil {
		t.Fatal(err)
	}
	v, ok := Response(b)
	if !ok || v != 0x41 {
		t.Fatalf("expected response 0x41, got 0x%x (%v)", v, ok)
	}
	sc, _ = Decode(b)
	if take := sc.(ChannelTake); !take.HasResponse || take.Response != 0x41 {
		t.Fatalf("expected decoded response, got %#v", take)
	}
}

func TestEncodeClearsPreviousResponse(t *testing.T) {
	b := make([]byte, BufferSize)
	_ = Encode(b, ChannelTake{Channel: 1})
	_ = SetResponse(b, 9)
	_ = Encode(b, ChannelPut{Channel: 1, Value: 2})
	if _, ok := Response(b); ok {
		t.Fatal("expected response cleared by new request")
	}
}

func TestPrintTruncates(t *testing.T) {
	long := make([]byte, PrintMax+20)
	for i := range long {
		long[i] = 'x'
	}
	p := NewPrint(string(long))
	if int(p.Len) != PrintMax {
		t.Fatalf("expected len %d, got %d", PrintMax, p.Len)
	}

	b := make([]byte, BufferSize)
	if err := Encode(b, NewPrint("hi")); err != nil {
		t.Fatal(err)
	}
	sc, err := Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	got := sc.(Print)
	if string(got.Payload()) != "hi" {
		t.Fatalf("unexpected payload %q", got.Payload())
	}
}

func TestDecodeUnknownCall(t *testing.T) {
	b := make([]byte, BufferSize)
	b[offPending] = 1
	b[offCall] = 200
	if _, err := Decode(b); !errors.Is(err, ErrUnknownCall) {
		t.Fatalf("expected ErrUnknownCall, got %v", err)
	}
}

func TestInitialSP(t *testing.T) {
	if got := InitialSP(StackVAddr); got != 0x80003ff8 {
		t.Fatalf("unexpected sp %s", got)
	}
}
