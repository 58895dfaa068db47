package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/vbridge/internal/config"
	"github.com/vango-dev/vbridge/pkg/bridge"
	"github.com/vango-dev/vbridge/pkg/protocol"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

const listScript = `
const ul = document.createElement('ul');
document.body.appendChild(ul);
for (const name of ['a', 'b']) {
	const li = document.createElement('li');
	ul.appendChild(li);
	li.textContent = name;
}
document.title = 'List';
`

func TestRunWritesFile(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "list.js", listScript)
	out := filepath.Join(dir, "dist", "index.html")

	if _, stderr, err := execute(t, "run", src, "--out", out, "--config", dir, "--log-level", "error"); err != nil {
		t.Fatalf("run: %v\n%s", err, stderr)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"<title>List</title>", "<ul><li>a</li><li>b</li></ul>"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("document missing %q:\n%s", want, data)
		}
	}
}

func TestRunIntoPageToStdout(t *testing.T) {
	dir := t.TempDir()
	page := writeFile(t, dir, "index.html", `<html><body><div id="app"></div></body></html>`)
	src := writeFile(t, dir, "app.js", `
		const p = document.createElement('p');
		document.getElementById('app').appendChild(p);
		p.innerHTML = '<b>hi</b><script>alert(1)</script>';
	`)

	stdout, stderr, err := execute(t, "run", src, "--html", page, "--out", "-", "--config", dir)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, stderr)
	}
	if !strings.Contains(stdout, `<div id="app"><p><b>hi</b></p></div>`) {
		t.Errorf("stdout = %s, want sanitized markup inside #app", stdout)
	}
}

func TestRunScriptError(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "bad.js", `throw new Error('nope')`)

	_, _, err := execute(t, "run", src, "--config", dir)
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("error = %v, want script failure", err)
	}
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version", "--short")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(stdout) != version {
		t.Errorf("version = %q, want %q", stdout, version)
	}
}

func newTestServer(t *testing.T, src string) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	path := ""
	if src != "" {
		path = writeFile(t, dir, "app.js", src)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sv, err := newServer(config.New(), logger, path, time.Second, prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(sv.routes())
	t.Cleanup(srv.Close)
	return srv
}

func TestServeHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, "")

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok\n" {
		t.Errorf("/healthz = %d %q, want 200 ok", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "vbridge_sessions_active") {
		t.Errorf("/metrics missing vbridge_sessions_active:\n%s", body)
	}
}

func TestServeRunsScriptForRenderer(t *testing.T) {
	srv := newTestServer(t, `
		const h1 = document.createElement('h1');
		document.body.appendChild(h1);
		h1.textContent = 'hello';
	`)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/renderer", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	hello := protocol.NewFrame(protocol.FrameHello, protocol.EncodeHello(&protocol.Hello{Version: protocol.Version, Renderer: "test"}))
	if err := conn.WriteMessage(websocket.BinaryMessage, hello.Encode()); err != nil {
		t.Fatal(err)
	}

	for {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("no h1 text command: %v", err)
		}
		f, err := protocol.DecodeFrame(msg)
		if err != nil {
			t.Fatal(err)
		}
		if f.Type != protocol.FrameCommand {
			continue
		}
		cmd, err := protocol.DecodeCommand(f.Payload)
		if err != nil {
			t.Fatal(err)
		}
		if cmd.Op == bridge.OpUpdate && cmd.Text == "hello" {
			break
		}
	}
}
