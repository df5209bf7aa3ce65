package openwebif

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/e2remote/e2remote/internal/reqlog"
)

// serverAddress returns the host:port of a test server, as a user would
// type it.
func serverAddress(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}

// closedAddress returns an address nothing is listening on.
func closedAddress(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func TestNewClient(t *testing.T) {
	log := reqlog.New(10)
	client := NewClient(log)

	if client.HTTPClient == nil {
		t.Fatal("HTTPClient should not be nil")
	}
	if client.HTTPClient.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", client.HTTPClient.Timeout, DefaultTimeout)
	}
	if client.Log != log {
		t.Error("Log not set")
	}

	client.SetTimeout(3 * time.Second)
	if client.HTTPClient.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", client.HTTPClient.Timeout)
	}
}

func TestSendVolumeUp(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathRemoteControl {
			t.Errorf("path = %s, want %s", r.URL.Path, PathRemoteControl)
		}
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(`<?xml version="1.0"?><e2remotecontrol><e2result>True</e2result></e2remotecontrol>`))
	}))
	defer server.Close()

	log := reqlog.New(10)
	client := NewClient(log)

	if err := client.Send(context.Background(), serverAddress(server), KeyVolumeUp); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gotQuery != "command=115" {
		t.Errorf("query = %q, want command=115", gotQuery)
	}

	entries := log.Entries(reqlog.Filter{})
	if len(entries) != 1 {
		t.Fatalf("log has %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.StatusCode != http.StatusOK || !e.Completed {
		t.Errorf("entry = %+v, want completed with 200", e)
	}
	if e.Kind != reqlog.KindCommand {
		t.Errorf("Kind = %s, want command", e.Kind)
	}
	if !strings.HasSuffix(e.URL, "/web/remotecontrol?command=115") {
		t.Errorf("URL = %s", e.URL)
	}
	if !strings.Contains(e.Summary, "e2result") {
		t.Errorf("Summary = %q, want body excerpt", e.Summary)
	}
}

func TestSendPowerState(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathPowerState {
			t.Errorf("path = %s, want %s", r.URL.Path, PathPowerState)
		}
		gotQuery = r.URL.RawQuery
	}))
	defer server.Close()

	log := reqlog.New(10)
	client := NewClient(log)

	if err := client.SendPowerState(context.Background(), serverAddress(server), PowerStandby); err != nil {
		t.Fatalf("SendPowerState() error = %v", err)
	}
	if gotQuery != "newstate=0" {
		t.Errorf("query = %q, want newstate=0", gotQuery)
	}
	if entries := log.Entries(reqlog.Filter{}); len(entries) != 1 || entries[0].Kind != reqlog.KindPower {
		t.Errorf("entries = %+v, want one power entry", entries)
	}
}

func TestSendServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	log := reqlog.New(10)
	err := NewClient(log).Send(context.Background(), serverAddress(server), KeyOK)
	if !IsServerError(err) {
		t.Fatalf("error = %v, want server error", err)
	}
	if StatusCode(err) != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", StatusCode(err))
	}
	if e := log.Entries(reqlog.Filter{})[0]; e.StatusCode != http.StatusUnauthorized {
		t.Errorf("logged status = %d, want 401", e.StatusCode)
	}
}

func TestSendEmptyAddress(t *testing.T) {
	log := reqlog.New(10)
	err := NewClient(log).Send(context.Background(), "", KeyOK)
	if !IsInvalidAddress(err) {
		t.Fatalf("error = %v, want invalid address", err)
	}
	if log.Len() != 0 {
		t.Errorf("log has %d entries, want none", log.Len())
	}
}

func TestSendConnectionRefused(t *testing.T) {
	log := reqlog.New(10)
	err := NewClient(log).Send(context.Background(), closedAddress(t), KeyOK)
	if !IsHostUnreachable(err) {
		t.Fatalf("error = %v, want host unreachable", err)
	}

	e := log.Entries(reqlog.Filter{})[0]
	if !e.Completed || e.StatusCode != 0 {
		t.Errorf("entry = %+v, want completed without status", e)
	}
	if e.Summary == "" {
		t.Error("failed entry should carry a summary")
	}
}

func TestSendTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(nil)
	client.SetTimeout(50 * time.Millisecond)

	start := time.Now()
	err := client.Send(context.Background(), serverAddress(server), KeyOK)
	if !IsHostUnreachable(err) {
		t.Fatalf("error = %v, want host unreachable", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Send took %v, want it bounded by the timeout", elapsed)
	}
}

func TestSendCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewClient(nil).Send(ctx, serverAddress(server), KeyOK)
	if !IsCancelled(err) {
		t.Fatalf("error = %v, want cancelled", err)
	}
}
