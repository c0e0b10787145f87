package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/omniwatch/omniwatch/internal/models"
	"github.com/omniwatch/omniwatch/internal/store"
)

func seedSnapshot(t *testing.T, cfgPath string, snap models.PatrolSnapshot) {
	t.Helper()
	app, err := openApp(cfgPath)
	if err != nil {
		t.Fatalf("open app: %v", err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	if err := app.store.Put(store.KeyOngoingPatrol, data); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}
}

func TestPatrolStatusCmd_NoPatrol(t *testing.T) {
	cfgPath := writeTestConfig(t)

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"patrol", "status", "-c", cfgPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("patrol status: %v", err)
	}
	if !strings.Contains(buf.String(), "No patrol in progress") {
		t.Errorf("output = %q, want no-patrol notice", buf.String())
	}
}

func TestPatrolStatusCmd_OngoingPatrol(t *testing.T) {
	cfgPath := writeTestConfig(t)
	seedSnapshot(t, cfgPath, models.PatrolSnapshot{
		SchemaVersion: models.SnapshotSchemaVersion,
		PatrolID:      "p-7",
		StartTime:     time.Now().Add(-30 * time.Minute),
		Samples: []models.LocationSample{
			{Latitude: 52.520008, Longitude: 13.404954, CapturedAt: time.Now().UnixMilli()},
		},
		Checkpoints: []models.Checkpoint{{Area: "Gate A", LoggedAt: time.Now()}},
	})

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"patrol", "status", "-c", cfgPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("patrol status: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"p-7", "Samples:     1", "Checkpoints: 1", "52.520008"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLoadSnapshot_CorruptReadsAsAbsent(t *testing.T) {
	cfgPath := writeTestConfig(t)
	app, err := openApp(cfgPath)
	if err != nil {
		t.Fatalf("open app: %v", err)
	}
	if err := app.store.Put(store.KeyOngoingPatrol, []byte("{broken")); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	_, ok, err := loadSnapshot(app.store)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if ok {
		t.Error("corrupt snapshot read as present")
	}
}

func TestLoadSnapshot_UnknownSchemaReadsAsAbsent(t *testing.T) {
	cfgPath := writeTestConfig(t)
	seedSnapshot(t, cfgPath, models.PatrolSnapshot{SchemaVersion: 99, PatrolID: "p-9"})

	app, err := openApp(cfgPath)
	if err != nil {
		t.Fatalf("open app: %v", err)
	}
	_, ok, err := loadSnapshot(app.store)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if ok {
		t.Error("unknown-schema snapshot read as present")
	}
}

func TestPatrolStartCmd_RefusesWhenPatrolOngoing(t *testing.T) {
	cfgPath := writeTestConfig(t)
	app, err := openApp(cfgPath)
	if err != nil {
		t.Fatalf("open app: %v", err)
	}
	if err := app.sessions.Save("tok-1", models.User{ID: "u-1"}); err != nil {
		t.Fatalf("save session: %v", err)
	}
	seedSnapshot(t, cfgPath, models.PatrolSnapshot{
		SchemaVersion: models.SnapshotSchemaVersion,
		PatrolID:      "p-7",
		StartTime:     time.Now().Add(-10 * time.Minute),
	})

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"patrol", "start", "-c", cfgPath})

	execErr := cmd.Execute()
	if execErr == nil || !strings.Contains(execErr.Error(), "already in progress") {
		t.Errorf("Execute() = %v, want already-in-progress error", execErr)
	}
}

func TestPatrolStopCmd_NotLoggedIn(t *testing.T) {
	cfgPath := writeTestConfig(t)

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"patrol", "stop", "-c", cfgPath, "--yes"})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Errorf("Execute() = %v, want not-logged-in error", err)
	}
}
