package schema

// ThemeName identifies a console color theme.
type ThemeName string

// SessionID identifies one interactive console session.
type SessionID string

// LocalSessionID names the session attached to the local terminal.
const LocalSessionID SessionID = "local"
