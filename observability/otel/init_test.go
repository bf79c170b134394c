package otel

import (
	"context"
	"testing"
)

func TestInitWithoutEndpointRecordsLocally(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "dexctl", Traces: true, Metrics: true})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected service name error")
	}
}

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders("a=1, b = 2,broken,=x")
	if len(headers) != 2 || headers["a"] != "1" || headers["b"] != "2" {
		t.Fatalf("unexpected headers %+v", headers)
	}
}
