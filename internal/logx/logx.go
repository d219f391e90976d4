package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/replee/schema"
)

type contextKey int

const (
	userKey contextKey = iota
	sessionKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithUser annotates the logger with the user name if present.
func WithUser(ctx context.Context, user string) pslog.Logger {
	log := pslog.Ctx(ctx)
	if user != "" {
		if current, ok := ctx.Value(userKey).(string); ok && current == user {
			return log
		}
		log = log.With("user", user)
	}
	return log
}

// WithUserSession annotates the logger with user and session identifiers.
func WithUserSession(ctx context.Context, user string, sessionID schema.SessionID) pslog.Logger {
	log := WithUser(ctx, user)
	if sessionID != "" {
		if current, ok := ctx.Value(sessionKey).(schema.SessionID); ok && current == sessionID {
			return log
		}
		log = log.With("session", sessionID)
	}
	return log
}

// WithRemote annotates the logger with the peer address when available.
func WithRemote(log pslog.Logger, remote string) pslog.Logger {
	if remote != "" {
		log = log.With("remote", remote)
	}
	return log
}

// ContextWithUser stores the user marker on the context for log de-duplication.
func ContextWithUser(ctx context.Context, user string) context.Context {
	if ctx == nil || user == "" {
		return ctx
	}
	return context.WithValue(ctx, userKey, user)
}

// ContextWithSession stores the session marker on the context for log de-duplication.
func ContextWithSession(ctx context.Context, sessionID schema.SessionID) context.Context {
	if ctx == nil || sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sessionID)
}

// ContextWithSessionLogger attaches the logger and user/session markers to the context.
func ContextWithSessionLogger(ctx context.Context, log pslog.Logger, user string, sessionID schema.SessionID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithSession(ContextWithUser(ctx, user), sessionID)
}

// SessionFromContext returns the session marker, if any.
func SessionFromContext(ctx context.Context) schema.SessionID {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(sessionKey).(schema.SessionID)
	return id
}

// CopyContextFields copies user/session markers from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if user, ok := src.Value(userKey).(string); ok && user != "" {
		dst = ContextWithUser(dst, user)
	}
	if id, ok := src.Value(sessionKey).(schema.SessionID); ok && id != "" {
		dst = ContextWithSession(dst, id)
	}
	return dst
}
