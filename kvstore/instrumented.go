package kvstore

import (
	"context"
	"time"
)

// ObserveFunc receives the duration and result of every store call.
type ObserveFunc func(op string, duration time.Duration, err error)

type instrumented struct {
	next    Store
	observe ObserveFunc
}

// Instrument wraps s so that each call is reported to observe.
func Instrument(s Store, observe ObserveFunc) Store {
	if observe == nil {
		return s
	}
	return &instrumented{next: s, observe: observe}
}

func (i *instrumented) track(op string, start time.Time, err error) {
	i.observe(op, time.Since(start), err)
}

func (i *instrumented) Get(ctx context.Context, key string) (v string, found bool, err error) {
	defer func(start time.Time) { i.track("get", start, err) }(time.Now())
	return i.next.Get(ctx, key)
}

func (i *instrumented) Set(ctx context.Context, key, value string) (err error) {
	defer func(start time.Time) { i.track("set", start, err) }(time.Now())
	return i.next.Set(ctx, key, value)
}

func (i *instrumented) Del(ctx context.Context, keys ...string) (err error) {
	defer func(start time.Time) { i.track("del", start, err) }(time.Now())
	return i.next.Del(ctx, keys...)
}

func (i *instrumented) MGet(ctx context.Context, keys ...string) (vals []*string, err error) {
	defer func(start time.Time) { i.track("mget", start, err) }(time.Now())
	return i.next.MGet(ctx, keys...)
}

func (i *instrumented) SMembers(ctx context.Context, set string) (members []string, err error) {
	defer func(start time.Time) { i.track("smembers", start, err) }(time.Now())
	return i.next.SMembers(ctx, set)
}

func (i *instrumented) SAdd(ctx context.Context, set string, members ...string) (err error) {
	defer func(start time.Time) { i.track("sadd", start, err) }(time.Now())
	return i.next.SAdd(ctx, set, members...)
}

func (i *instrumented) SRem(ctx context.Context, set string, members ...string) (err error) {
	defer func(start time.Time) { i.track("srem", start, err) }(time.Now())
	return i.next.SRem(ctx, set, members...)
}

func (i *instrumented) Keys(ctx context.Context, pattern string) (keys []string, err error) {
	defer func(start time.Time) { i.track("keys", start, err) }(time.Now())
	return i.next.Keys(ctx, pattern)
}

func (i *instrumented) Ping(ctx context.Context) (err error) {
	defer func(start time.Time) { i.track("ping", start, err) }(time.Now())
	return i.next.Ping(ctx)
}
