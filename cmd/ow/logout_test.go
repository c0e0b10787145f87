package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/omniwatch/omniwatch/internal/models"
	"github.com/omniwatch/omniwatch/internal/store"
)

func TestLogoutCmd_ClearsSessionAndSnapshot(t *testing.T) {
	cfgPath := writeTestConfig(t)

	app, err := openApp(cfgPath)
	if err != nil {
		t.Fatalf("open app: %v", err)
	}
	if err := app.sessions.Save("tok-1", models.User{ID: "u-1"}); err != nil {
		t.Fatalf("save session: %v", err)
	}
	if err := app.store.Put(store.KeyOngoingPatrol, []byte(`{"schema_version":1,"patrol_id":"p-1"}`)); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"logout", "-c", cfgPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !strings.Contains(buf.String(), "Logged out") {
		t.Errorf("output = %q, want logged out notice", buf.String())
	}

	app2, err := openApp(cfgPath)
	if err != nil {
		t.Fatalf("reopen app: %v", err)
	}
	if _, ok := app2.sessions.Load(); ok {
		t.Error("session survived logout")
	}
	if _, err := app2.store.Get(store.KeyOngoingPatrol); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("snapshot get = %v, want ErrNotFound", err)
	}
}

func TestLogoutCmd_IdempotentWhenLoggedOut(t *testing.T) {
	cfgPath := writeTestConfig(t)

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"logout", "-c", cfgPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("logout with nothing saved: %v", err)
	}
}
