package sessionregistry

import "fmt"

// deriveTerminalKey implements terminal-key rule set
// (first matching rule wins).
func deriveTerminalKey(t TerminalIdentity, sessionID string) string {
	switch {
	case t.EmulatorSessionID != "":
		return "EMULATOR:" + t.EmulatorSessionID
	case t.TTYDevice != "":
		return "TTY:" + t.TTYDevice
	case t.ProcessPID != 0:
		return fmt.Sprintf("PID:%d", t.ProcessPID)
	default:
		return "UNKNOWN:" + sessionIDPrefix(sessionID)
	}
}

func sessionIDPrefix(id string) string {
	const n = 8
	if len(id) <= n {
		return id
	}
	return id[:n]
}

// disambiguate suffixes key with the new session's id prefix when it
// collides with an already-live terminal key.
func disambiguate(key, sessionID string) string {
	return key + ":" + sessionIDPrefix(sessionID)
}
