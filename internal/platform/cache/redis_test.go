package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
)

func TestRedisStoreGetHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store, err := NewRedisStore(db)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}

	mock.ExpectGet("order:ord-1").SetVal(`{"id":"ord-1"}`)

	value, ok, err := store.Get(context.Background(), "order:ord-1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(value) != `{"id":"ord-1"}` {
		t.Fatalf("unexpected value %s", value)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRedisStoreGetMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store, _ := NewRedisStore(db)

	mock.ExpectGet("order:missing").RedisNil()

	_, ok, err := store.Get(context.Background(), "order:missing")
	if err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRedisStoreGetError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store, _ := NewRedisStore(db)

	mock.ExpectGet("order:ord-1").SetErr(errors.New("connection refused"))

	if _, _, err := store.Get(context.Background(), "order:ord-1"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRedisStoreSetAndDelete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store, _ := NewRedisStore(db)
	ctx := context.Background()
	payload := []byte(`{"id":"ord-1"}`)

	mock.ExpectSet("order:ord-1", payload, 10*time.Minute).SetVal("OK")
	mock.ExpectDel("order:ord-1").SetVal(1)

	if err := store.Set(ctx, "order:ord-1", payload, 10*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Delete(ctx, "order:ord-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRedisStorePing(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store, _ := NewRedisStore(db)

	mock.ExpectPing().SetVal("PONG")

	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestNewClientRequiresAddress(t *testing.T) {
	if _, err := NewClient(Options{}); err == nil {
		t.Fatalf("expected error for empty address")
	}
}
