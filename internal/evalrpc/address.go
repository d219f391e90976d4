package evalrpc

import (
	"errors"
	"strings"
)

// splitAddress maps an evaluator address to a network and dial address.
// unix:// prefixes and paths select a unix socket; everything else is TCP.
func splitAddress(address string) (string, string, error) {
	a := strings.TrimSpace(address)
	switch {
	case a == "":
		return "", "", errors.New("evaluator address is required")
	case strings.HasPrefix(a, "unix://"):
		return "unix", strings.TrimPrefix(a, "unix://"), nil
	case strings.HasPrefix(a, "unix:"):
		return "unix", strings.TrimPrefix(a, "unix:"), nil
	case strings.HasPrefix(a, "tcp://"):
		return "tcp", strings.TrimPrefix(a, "tcp://"), nil
	case strings.HasPrefix(a, "/"), strings.HasPrefix(a, "."), strings.HasSuffix(a, ".sock"):
		return "unix", a, nil
	default:
		return "tcp", a, nil
	}
}
