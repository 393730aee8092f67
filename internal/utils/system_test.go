package utils

import (
	"strings"
	"testing"
)

func TestGetUsername(t *testing.T) {
	username, err := GetUsername()
	if err != nil {
		t.Fatalf("GetUsername failed: %v", err)
	}
	if username == "" {
		t.Fatal("Expected non-empty username")
	}
}

func TestGetHostname(t *testing.T) {
	hostname, err := GetHostname()
	if err != nil {
		t.Fatalf("GetHostname failed: %v", err)
	}
	if hostname == "" {
		t.Fatal("Expected non-empty hostname")
	}
}

func TestActor(t *testing.T) {
	actor := Actor()
	if actor == "" {
		t.Fatal("Expected non-empty actor")
	}

	username, err := GetUsername()
	if err == nil && !strings.HasPrefix(actor, username) {
		t.Errorf("Expected actor %q to start with username %q", actor, username)
	}
}
