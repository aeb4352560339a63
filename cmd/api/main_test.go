package main

import (
	"testing"
	"time"
)

func TestParseKeyValueList(t *testing.T) {
	got := parseKeyValueList(" secret://redis=3, bad ,=x,y=, secret://amqp = latest ")
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %v", got)
	}
	if got["secret://redis"] != "3" || got["secret://amqp"] != "latest" {
		t.Fatalf("unexpected pins %v", got)
	}
}

func TestBuildInfoFromEnvDefaults(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	info := buildInfoFromEnv(map[string]string{}, started)
	if info.Version != "dev" || info.CommitSHA != "unknown" || info.Environment != "local" {
		t.Fatalf("unexpected defaults %+v", info)
	}

	info = buildInfoFromEnv(map[string]string{
		"ORDERS_BUILD_VERSION":    "1.2.3",
		"ORDERS_BUILD_COMMIT_SHA": "abc",
		"ORDERS_ENVIRONMENT":      "prod",
	}, started)
	if info.Version != "1.2.3" || info.CommitSHA != "abc" || info.Environment != "prod" || !info.StartedAt.Equal(started) {
		t.Fatalf("unexpected info %+v", info)
	}
}
