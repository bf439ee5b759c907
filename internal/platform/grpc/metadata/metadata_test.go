package metadata

import (
	"context"
	"testing"

	"google.golang.org/grpc/metadata"
)

func TestFirstMetadataValueSkipsUnprintable(t *testing.T) {
	md := metadata.MD{"X-Sharedgamemode-Locale": {"pt\x00", "pt-BR"}}
	if got := FirstMetadataValue(md, LocaleHeader); got != "pt-BR" {
		t.Fatalf("value = %q, want pt-BR", got)
	}
	if got := FirstMetadataValue(nil, LocaleHeader); got != "" {
		t.Fatalf("value = %q, want empty", got)
	}
}

func TestLocaleFromContext(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(LocaleHeader, "en-GB"))
	if got := LocaleFromContext(ctx); got != "en-GB" {
		t.Fatalf("locale = %q, want en-GB", got)
	}
	if got := LocaleFromContext(context.Background()); got != "" {
		t.Fatalf("locale = %q, want empty", got)
	}
}

func TestOutgoingContextSkipsEmpty(t *testing.T) {
	ctx := OutgoingContext(context.Background(), "req-1", "", "en-US")
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatal("expected outgoing metadata")
	}
	if got := md.Get(RequestIDHeader); len(got) != 1 || got[0] != "req-1" {
		t.Fatalf("request id = %v", got)
	}
	if got := md.Get(InvocationIDHeader); len(got) != 0 {
		t.Fatalf("invocation id = %v, want none", got)
	}
	base := context.Background()
	if OutgoingContext(base, "", "", "") != base {
		t.Fatal("context replaced without headers")
	}
}

func TestContextValues(t *testing.T) {
	ctx := WithInvocationID(WithRequestID(context.Background(), "req"), "inv")
	if RequestIDFromContext(ctx) != "req" || InvocationIDFromContext(ctx) != "inv" {
		t.Fatalf("ids = %q/%q", RequestIDFromContext(ctx), InvocationIDFromContext(ctx))
	}
	if RequestIDFromContext(nil) != "" {
		t.Fatal("nil context returned a request id")
	}
}
