package sshserver

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/ssh"

	"pkt.systems/replee/core"
	"pkt.systems/replee/schema"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, buf *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(buf.String(), want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q; got %q", want, buf.String())
}

type recordingHistory struct {
	mu    sync.Mutex
	seed  []string
	added []string
}

func (h *recordingHistory) Texts(limit int) ([]string, error) {
	return append([]string(nil), h.seed...), nil
}

func (h *recordingHistory) Record(ctx context.Context, command string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.added = append(h.added, command)
	return nil
}

func (h *recordingHistory) Added() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.added...)
}

func echoFactory(ctx context.Context) (core.Evaluator, func(), error) {
	return core.EvaluatorFunc(func(ctx context.Context, req schema.Request) (schema.Response, error) {
		return schema.Response{Mode: schema.ModeComplete, Output: "=> " + req.Input}, nil
	}), nil, nil
}

func startTestSSH(t *testing.T, srv *Server, client ssh.Signer) string {
	t.Helper()
	dir := t.TempDir()
	srv.HostKeyPath = filepath.Join(dir, "host_ed25519")
	srv.AuthorizedKeysPath = filepath.Join(dir, "authorized_keys")
	if err := os.WriteFile(srv.AuthorizedKeysPath, ssh.MarshalAuthorizedKey(client.PublicKey()), 0o600); err != nil {
		t.Fatalf("write authorized keys: %v", err)
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv.Listener = listener

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})
	return listener.Addr().String()
}

type testShell struct {
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	out     *syncBuffer
}

func openShell(t *testing.T, addr string, auth ...ssh.AuthMethod) *testShell {
	t.Helper()
	client, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            "alice",
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         3 * time.Second,
	})
	if err != nil {
		t.Fatalf("ssh dial: %v", err)
	}
	session, err := client.NewSession()
	if err != nil {
		_ = client.Close()
		t.Fatalf("new session: %v", err)
	}
	out := &syncBuffer{}
	session.Stdout = out
	session.Stderr = out
	stdin, err := session.StdinPipe()
	if err != nil {
		t.Fatalf("stdin: %v", err)
	}
	if err := session.RequestPty("xterm", 24, 80, ssh.TerminalModes{}); err != nil {
		t.Fatalf("pty: %v", err)
	}
	if err := session.Shell(); err != nil {
		t.Fatalf("shell: %v", err)
	}
	shell := &testShell{client: client, session: session, stdin: stdin, out: out}
	t.Cleanup(shell.Close)
	return shell
}

func (s *testShell) Close() {
	_ = s.session.Close()
	_ = s.client.Close()
}

func TestSSHSessionEvaluatesAndRecordsHistory(t *testing.T) {
	key := newTestKey(t)
	history := &recordingHistory{seed: []string{"older"}}
	srv := &Server{NewEvaluator: echoFactory, History: history, HistoryLimit: 10}
	srv.Console.Recorder = history
	addr := startTestSSH(t, srv, key)

	shell := openShell(t, addr, ssh.PublicKeys(key))
	waitFor(t, shell.out, core.DefaultPrompt)
	if _, err := io.WriteString(shell.stdin, "hi\r"); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, shell.out, "=> hi")

	// Seeded history is reachable with the up arrow.
	if _, err := io.WriteString(shell.stdin, "\x1b[A\x1b[A\r"); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, shell.out, "=> older")

	if _, err := io.WriteString(shell.stdin, "\x04"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := shell.session.Wait(); err != nil {
		t.Fatalf("expected clean exit, got %v", err)
	}
	added := history.Added()
	if len(added) != 2 || added[0] != "hi" || added[1] != "older" {
		t.Fatalf("unexpected recorded history: %v", added)
	}
}

func TestSSHRejectsSecondSession(t *testing.T) {
	key := newTestKey(t)
	srv := &Server{NewEvaluator: echoFactory}
	addr := startTestSSH(t, srv, key)

	first := openShell(t, addr, ssh.PublicKeys(key))
	waitFor(t, first.out, core.DefaultPrompt)

	second := openShell(t, addr, ssh.PublicKeys(key))
	waitFor(t, second.out, schema.ErrSessionBusy.Error())
	if err := second.session.Wait(); err == nil {
		t.Fatalf("expected busy session to exit with failure")
	}

	// The slot frees up once the first session ends.
	if _, err := io.WriteString(first.stdin, "\x04"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := first.session.Wait(); err != nil {
		t.Fatalf("first session exit: %v", err)
	}
	third := openShell(t, addr, ssh.PublicKeys(key))
	waitFor(t, third.out, core.DefaultPrompt)
}

func TestSSHRejectsUnknownKey(t *testing.T) {
	key := newTestKey(t)
	srv := &Server{NewEvaluator: echoFactory}
	addr := startTestSSH(t, srv, key)

	_, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            "mallory",
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(newTestKey(t))},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         3 * time.Second,
	})
	if err == nil {
		t.Fatalf("expected unknown key to be rejected")
	}
}

func TestSSHRequiresTOTPWhenConfigured(t *testing.T) {
	key := newTestKey(t)
	otpKey, err := totp.Generate(totp.GenerateOpts{Issuer: "replee", AccountName: "alice"})
	if err != nil {
		t.Fatalf("totp generate: %v", err)
	}
	srv := &Server{NewEvaluator: echoFactory, TOTPSecret: otpKey.Secret()}
	addr := startTestSSH(t, srv, key)

	wrongCode := ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
		return []string{"000000"}, nil
	})
	if _, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            "alice",
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(key), wrongCode},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         3 * time.Second,
	}); err == nil {
		// 000000 can be the current code; skip rather than flake.
		t.Skip("generated code happened to be 000000")
	}

	rightCode := ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
		code, err := totp.GenerateCode(otpKey.Secret(), time.Now())
		return []string{code}, err
	})
	shell := openShell(t, addr, ssh.PublicKeys(key), rightCode)
	waitFor(t, shell.out, core.DefaultPrompt)
}
