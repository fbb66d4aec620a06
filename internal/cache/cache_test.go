package cache

import (
	"context"
	"errors"
	"testing"
)

type failing struct{ calls int }

func (f *failing) Invalidate(context.Context, ...string) error {
	f.calls++
	return errors.New("redis down")
}

func (f *failing) InvalidatePattern(context.Context, string) error {
	f.calls++
	return errors.New("redis down")
}

func TestSafeSwallowsErrors(t *testing.T) {
	f := &failing{}
	Safe(context.Background(), f, UserKey(1))
	SafePattern(context.Background(), f, PostPagesPattern)
	Safe(context.Background(), nil, "x")
	if f.calls != 2 {
		t.Fatalf("calls = %d", f.calls)
	}
}

func TestKeys(t *testing.T) {
	if UserKey(42) != "user_42" || PostKey(7) != "post_7" || UserDealsKey(3) != "deals_user_3" {
		t.Fatal("unexpected key format")
	}
	r := &Redis{prefix: "dd"}
	if r.key("user_1") != "dd:user_1" {
		t.Fatalf("prefixed key = %q", r.key("user_1"))
	}
}
