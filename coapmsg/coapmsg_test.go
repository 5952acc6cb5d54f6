package coapmsg

import (
	"bytes"
	"testing"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	orig := NewMessage()
	orig.Type = Confirmable
	orig.Code = GET
	orig.MessageID = 0x1234
	orig.Token = []byte{0xAA, 0xBB, 0xCC}
	orig.SetPathString("js/mode")
	orig.Options().Set(ContentFormat, AppOctets)
	orig.Payload = []byte("hello")

	bin := orig.MustMarshalBinary()

	got, err := ParseMessage(bin)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}

	if got.Type != orig.Type || got.Code != orig.Code || got.MessageID != orig.MessageID {
		t.Fatalf("header mismatch: %+v vs %+v", got, orig)
	}
	if !bytes.Equal(got.Token, orig.Token) {
		t.Fatalf("token mismatch: %x vs %x", got.Token, orig.Token)
	}
	if got.PathString() != "js/mode" {
		t.Fatalf("path mismatch: %s", got.PathString())
	}
	if !bytes.Equal(got.Payload, orig.Payload) {
		t.Fatalf("payload mismatch: %s vs %s", got.Payload, orig.Payload)
	}
}

func TestUnmarshalRejectsShortPacket(t *testing.T) {
	_, err := ParseMessage([]byte{0x40, 0x01})
	if err == nil {
		t.Fatal("expected error for short packet")
	}
}

func TestUnmarshalRejectsBadVersion(t *testing.T) {
	_, err := ParseMessage([]byte{0x00, 0x01, 0x00, 0x01})
	if err == nil {
		t.Fatal("expected error for invalid version")
	}
}

func TestNewRstIsEmptyFourBytes(t *testing.T) {
	m := NewRst(0xBEEF)
	bin := m.MustMarshalBinary()
	want := Reset(0xBEEF)
	if !bytes.Equal(bin, want) {
		t.Fatalf("Reset() %x != NewRst().MustMarshalBinary() %x", want, bin)
	}
	if len(bin) != 4 {
		t.Fatalf("expected 4 byte RST, got %d", len(bin))
	}
	if bin[0] != 0x70 || bin[1] != 0x00 {
		t.Fatalf("unexpected RST header: %x", bin)
	}
}

func TestBuildAndParseObserveReply(t *testing.T) {
	observe := uint32(0)
	cf := AppOctets
	bin, err := Build(Confirmable, Content, 42, []byte{0x01, 0x02}, []string{"st", "js"}, []string{"fmt=raw"}, &cf, &observe, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if !LooksLikeCoap(bin) {
		t.Fatalf("built message does not look like CoAP: %x", bin)
	}

	reply, err := ParseObserveReply(bin)
	if err != nil {
		t.Fatalf("ParseObserveReply: %v", err)
	}
	if reply.MessageID != 42 {
		t.Fatalf("expected MID 42, got %d", reply.MessageID)
	}
	if !bytes.Equal(reply.Token, []byte{0x01, 0x02}) {
		t.Fatalf("unexpected token: %x", reply.Token)
	}
	if !bytes.Equal(reply.Payload, []byte{1, 2, 3}) {
		t.Fatalf("unexpected payload: %x", reply.Payload)
	}
}

func TestCodeClassDetail(t *testing.T) {
	if Content.Class() != 2 || Content.Detail() != 5 {
		t.Fatalf("Content = %d.%02d, want 2.05", Content.Class(), Content.Detail())
	}
	if !Content.IsSuccess() {
		t.Fatal("Content should be success")
	}
	if !BadRequest.IsError() {
		t.Fatal("BadRequest should be error")
	}
}

func TestIntrospectionHelpers(t *testing.T) {
	if !IsRequestCode(byte(GET)) {
		t.Fatal("GET should be a request code")
	}
	if !IsResponseCode(byte(Content)) {
		t.Fatal("Content should be a response code")
	}
	if !IsEmptyCode(byte(Empty)) {
		t.Fatal("Empty should be the empty code")
	}
}
