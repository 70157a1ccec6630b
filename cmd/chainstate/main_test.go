package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chainstate/internal/blob"
	"chainstate/internal/config"
	"chainstate/internal/persistence"
	"chainstate/internal/workspace"
	"chainstate/pkg/chainerr"
	"chainstate/pkg/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CHAINSTATE_BLOB_DRIVER", "CHAINSTATE_BLOB_FS_ROOT", "CHAINSTATE_LISTEN", "CHAINSTATE_AUTOSAVE_ENABLED", "CHAINSTATE_AUTOSAVE_DELAY", "CHAINSTATE_LOG_FORMAT"} {
		t.Setenv(k, "")
	}
}

// writeConfig points the fs driver at a fresh directory.
func writeConfig(t *testing.T) (cfgPath, root string) {
	t.Helper()
	clearEnv(t)
	dir := t.TempDir()
	root = filepath.Join(dir, "data")
	cfgPath = filepath.Join(dir, "chainstate.yaml")
	body := "blob:\n  driver: fs\n  root: " + root + "\nlog:\n  level: error\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath, root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// seed stores one local chain with an account and returns its id.
func seed(t *testing.T, root string) string {
	t.Helper()
	store, err := blob.NewFilesystem(root)
	if err != nil {
		t.Fatalf("fs store: %v", err)
	}
	ws, err := workspace.New(workspace.Options{Store: store, DisableAutosave: true})
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	defer ws.Close()
	ctx := context.Background()
	p, err := ws.CreateChain(ctx, "Alpha", domain.ChainLocal)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := p.State().Accounts.Add(domain.Account{Address: "0xabc", Balance: domain.NewAmount(5)}); err != nil {
		t.Fatalf("add account: %v", err)
	}
	if err := ws.Teardown(ctx); err != nil {
		t.Fatalf("teardown: %v", err)
	}
	return p.ID()
}

func TestSnapshotsListEmpty(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	out, err := execute(t, "snapshots", "list", "-c", cfgPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "No stored chains.") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestSnapshotsListShowVerify(t *testing.T) {
	cfgPath, root := writeConfig(t)
	id := seed(t, root)

	out, err := execute(t, "snapshots", "list", "--json", "-c", cfgPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var rows []snapshotRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode rows: %v\n%s", err, out)
	}
	if len(rows) != 1 || rows[0].ID != id || rows[0].DisplayName != "Alpha" || rows[0].Accounts != 1 || rows[0].Status != "ok" {
		t.Fatalf("unexpected rows %+v", rows)
	}

	out, err = execute(t, "snapshots", "list", "-c", cfgPath)
	if err != nil || !strings.Contains(out, "Alpha") || !strings.Contains(out, "STATUS") {
		t.Fatalf("table output %q err %v", out, err)
	}

	out, err = execute(t, "snapshots", "show", id, "-c", cfgPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	var snap persistence.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.ID != id || len(snap.Fingerprint) != 64 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	if out, err = execute(t, "snapshots", "verify", "-c", cfgPath); err != nil {
		t.Fatalf("verify: %v (%s)", err, out)
	}
	if !strings.Contains(out, id+"  ok") {
		t.Fatalf("verify output %q", out)
	}
}

func TestSnapshotsVerifyReportsCorruption(t *testing.T) {
	cfgPath, root := writeConfig(t)
	id := seed(t, root)

	store, err := blob.NewFilesystem(root)
	if err != nil {
		t.Fatalf("fs store: %v", err)
	}
	if _, err := store.Write(context.Background(), persistence.ChainKey(id), []byte(`{"id":`)); err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	out, err := execute(t, "snapshots", "verify", "-c", cfgPath)
	if !chainerr.Is(err, chainerr.CodePersistence) {
		t.Fatalf("expected PERSISTENCE, got %v", err)
	}
	if !strings.Contains(out, "unreadable") {
		t.Fatalf("verify output %q", out)
	}
}

func TestSnapshotsShowMissing(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	_, err := execute(t, "snapshots", "show", "nope", "-c", cfgPath)
	if !chainerr.Is(err, chainerr.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestAppRestoresAndServes(t *testing.T) {
	_, root := writeConfig(t)
	id := seed(t, root)

	cfg := config.Default()
	cfg.Blob = blob.Config{Driver: blob.DriverFilesystem, Root: root}
	cfg.Metrics.Expvar = true
	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	if err := a.start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := a.ws.Registry().Current().Get(); got != id {
		t.Fatalf("current = %q, want restored %q", got, id)
	}

	srv := httptest.NewServer(a.handler)
	defer srv.Close()
	for _, path := range []string{"/health", "/api/chains", "/metrics", "/debug/vars"} {
		resp, err := srv.Client().Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status %d", path, resp.StatusCode)
		}
	}
	if err := a.shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestAppEmptyStoreCreatesDefaultChain(t *testing.T) {
	clearEnv(t)
	cfg := config.Default()
	cfg.Blob = blob.Config{Driver: blob.DriverMemory}
	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.close()
	if err := a.start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	p, ok := a.ws.Registry().CurrentProvider()
	if !ok || p.Info().DisplayName != workspace.DefaultChainName || p.Kind() != domain.ChainLocal {
		t.Fatalf("unexpected default chain %+v", p)
	}
}

func TestErrorHandlerMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{chainerr.ChainNotFound("x"), "snapshots list"},
		{chainerr.InvalidInput("bad"), "Invalid input"},
		{chainerr.Persistence("write", "local-x.json", errors.New("disk full")), "Blob key: local-x.json"},
		{errors.New("boom"), "Error: boom"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		if got := newErrorHandler(&buf, false).Handle(tc.err); got != tc.err {
			t.Fatalf("Handle returned %v", got)
		}
		if !strings.Contains(buf.String(), tc.want) {
			t.Fatalf("output %q missing %q", buf.String(), tc.want)
		}
	}

	var buf bytes.Buffer
	_ = newErrorHandler(&buf, true).Handle(chainerr.InvalidInput("bad").WithDetail("field", "listen"))
	if !strings.Contains(buf.String(), `"field": "listen"`) {
		t.Fatalf("verbose output %q", buf.String())
	}
}
