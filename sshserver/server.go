package sshserver

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync/atomic"

	gliderssh "github.com/gliderlabs/ssh"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/ssh"

	"pkt.systems/pslog"
	"pkt.systems/replee/console"
	"pkt.systems/replee/core"
	"pkt.systems/replee/internal/logx"
	"pkt.systems/replee/schema"
)

// EvaluatorFactory provides the evaluator for one SSH session. The returned
// release func is called when the session ends.
type EvaluatorFactory func(ctx context.Context) (core.Evaluator, func(), error)

// HistorySource seeds the history ledger of new sessions.
type HistorySource interface {
	Texts(limit int) ([]string, error)
}

// Server exposes the REPL over SSH to one client at a time.
type Server struct {
	Addr               string
	HostKeyPath        string
	AuthorizedKeysPath string
	TOTPSecret         string
	Listener           net.Listener
	NewEvaluator       EvaluatorFactory
	Console            console.Options
	History            HistorySource
	HistoryLimit       int

	active atomic.Bool
	logger pslog.Logger
}

type authContextKey string

const loginPubKeyOK authContextKey = "login-pubkey-ok"

// NewServer builds a server from cfg.
func NewServer(cfg Config, factory EvaluatorFactory) *Server {
	return &Server{
		Addr:               cfg.Addr,
		HostKeyPath:        cfg.HostKeyPath,
		AuthorizedKeysPath: cfg.AuthorizedKeysPath,
		TOTPSecret:         cfg.TOTPSecret,
		NewEvaluator:       factory,
	}
}

// ListenAndServe starts the SSH server and shuts down on context cancellation.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.logger == nil {
		s.logger = pslog.Ctx(ctx)
	}
	if s.NewEvaluator == nil {
		return errors.New("evaluator factory is required for SSH")
	}
	if _, err := LoadAuthorizedKeys(s.AuthorizedKeysPath); err != nil {
		return err
	}

	signer, created, err := EnsureHostKey(s.HostKeyPath)
	if err != nil {
		return err
	}
	if created {
		s.logger.Info("ssh host key generated", "path", s.HostKeyPath, "fingerprint", ssh.FingerprintSHA256(signer.PublicKey()))
	}

	server := &gliderssh.Server{
		Addr:             s.Addr,
		Handler:          s.handleSession,
		PublicKeyHandler: s.handlePublicKey,
	}
	if s.totpEnabled() {
		server.KeyboardInteractiveHandler = s.handleKeyboardInteractive
	}
	server.AddHostKey(signer)

	errCh := make(chan error, 1)
	go func() {
		if s.Listener != nil {
			errCh <- server.Serve(s.Listener)
			return
		}
		errCh <- server.ListenAndServe()
	}()
	addr := s.Addr
	if s.Listener != nil {
		addr = s.Listener.Addr().String()
	}
	s.logger.Info("ssh listening", "addr", addr, "totp", s.totpEnabled())

	select {
	case <-ctx.Done():
		_ = server.Close()
		s.logger.Info("ssh stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) totpEnabled() bool {
	return strings.TrimSpace(s.TOTPSecret) != ""
}

func (s *Server) handlePublicKey(ctx gliderssh.Context, key gliderssh.PublicKey) bool {
	log := s.log(ctx)
	fingerprint := ssh.FingerprintSHA256(key)
	remote := remoteAddr(ctx)
	if ctx.User() == "" {
		log.Warn("ssh pubkey rejected", "reason", "missing user", "remote", remote, "fingerprint", fingerprint)
		return false
	}
	log = logx.WithRemote(log.With("user", ctx.User(), "fingerprint", fingerprint), remote)
	// Re-read on every attempt so edits apply without a restart.
	keys, err := LoadAuthorizedKeys(s.AuthorizedKeysPath)
	if err != nil {
		log.Warn("ssh pubkey rejected", "err", err)
		return false
	}
	if !keyAuthorized(keys, key) {
		log.Warn("ssh pubkey rejected", "reason", "no matching key")
		return false
	}
	if s.totpEnabled() {
		ctx.SetValue(loginPubKeyOK, true)
		log.Info("ssh pubkey accepted", "next", "totp")
		return false
	}
	log.Info("ssh pubkey accepted")
	return true
}

func (s *Server) handleKeyboardInteractive(ctx gliderssh.Context, challenger ssh.KeyboardInteractiveChallenge) bool {
	if ctx.Value(loginPubKeyOK) != true {
		return false
	}
	log := logx.WithRemote(s.log(ctx).With("user", ctx.User()), remoteAddr(ctx))
	answers, err := challenger(ctx.User(), "", []string{"Verification code: "}, []bool{false})
	if err != nil {
		log.Warn("ssh totp rejected", "reason", "challenge failed", "err", err)
		return false
	}
	if len(answers) != 1 {
		log.Warn("ssh totp rejected", "reason", "invalid answer count", "count", len(answers))
		return false
	}
	if !ValidateTOTP(s.TOTPSecret, answers[0]) {
		log.Warn("ssh totp rejected", "reason", "invalid code")
		return false
	}
	log.Info("ssh totp accepted")
	return true
}

// ValidateTOTP checks code against the base32 secret.
func ValidateTOTP(secret, code string) bool {
	code = strings.TrimSpace(code)
	if code == "" || strings.TrimSpace(secret) == "" {
		return false
	}
	return totp.Validate(code, strings.TrimSpace(secret))
}

func remoteAddr(ctx gliderssh.Context) string {
	if ctx == nil || ctx.RemoteAddr() == nil {
		return ""
	}
	return ctx.RemoteAddr().String()
}

func (s *Server) log(ctx context.Context) pslog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return pslog.Ctx(ctx)
}

func (s *Server) handleSession(sess gliderssh.Session) {
	user := sess.User()
	sessionID := shortSessionID(sess.Context().SessionID())
	log := logx.WithRemote(s.log(sess.Context()).With("user", user), sess.RemoteAddr().String())
	if sessionID != "" {
		log = log.With("session", sessionID)
	}

	pty, winCh, ok := sess.Pty()
	if !ok {
		log.Info("ssh session rejected", "reason", "pty required")
		_, _ = io.WriteString(sess, "pty required\n")
		_ = sess.Exit(1)
		return
	}
	if !s.active.CompareAndSwap(false, true) {
		log.Info("ssh session rejected", "reason", "busy")
		_, _ = io.WriteString(sess, schema.ErrSessionBusy.Error()+"\r\n")
		_ = sess.Exit(1)
		return
	}
	defer s.active.Store(false)
	go func() {
		for range winCh {
		}
	}()

	ctx := logx.ContextWithSessionLogger(sess.Context(), log, user, sessionID)
	evaluator, release, err := s.NewEvaluator(ctx)
	if err != nil {
		log.Warn("ssh evaluator unavailable", "err", err)
		_, _ = io.WriteString(sess, core.ErrorHint(core.NewEvalError(core.EvalErrorUnavailable, "session", err))+"\r\n")
		_ = sess.Exit(1)
		return
	}
	if release != nil {
		defer release()
	}

	opts := s.Console
	if s.History != nil {
		texts, err := s.History.Texts(s.HistoryLimit)
		if err != nil {
			log.Warn("ssh history load failed", "err", err)
		} else {
			opts.History = texts
		}
	}

	log.Info("ssh session opened", "term", pty.Term)
	if err := console.New(sess, sess, evaluator, opts).Run(ctx); err != nil {
		log.Warn("ssh session ended with error", "err", err)
		_ = sess.Exit(1)
		return
	}
	log.Info("ssh session closed", "term", pty.Term)
	_ = sess.Exit(0)
}

func shortSessionID(id string) schema.SessionID {
	if len(id) > 12 {
		id = id[:12]
	}
	return schema.SessionID(id)
}
