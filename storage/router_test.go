package storage

import (
	"context"
	"testing"
)

type stubAdapter struct {
	name string
}

func (s *stubAdapter) Open(ctx context.Context, identifier string) (*Object, error) {
	return &Object{Name: s.name + ":" + identifier}, nil
}

func (s *stubAdapter) Stat(ctx context.Context, identifier string) (*Object, error) {
	return &Object{Name: s.name + ":" + identifier}, nil
}

func TestRouterDispatchesByPrefix(t *testing.T) {
	def := &stubAdapter{name: "local"}
	remote := &stubAdapter{name: "s3"}

	r := NewRouter(def)
	r.Mount("remote/", remote)

	obj, err := r.Open(context.Background(), "remote/page1.jp2")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if obj.Name != "s3:remote/page1.jp2" {
		t.Errorf("Name = %q, want routed to s3 adapter", obj.Name)
	}

	obj, err = r.Open(context.Background(), "page2.jp2")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if obj.Name != "local:page2.jp2" {
		t.Errorf("Name = %q, want routed to default adapter", obj.Name)
	}
}
