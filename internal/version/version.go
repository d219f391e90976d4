package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/replee"

// buildVersion is set via -ldflags "-X pkt.systems/replee/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes the running binary.
type Info struct {
	Module    string
	Version   string
	Revision  string
	Time      time.Time
	Modified  bool
	GoVersion string
}

// String renders the one-line form printed by `replee version`.
func (i Info) String() string {
	return i.Module + " " + i.Version
}

// Read collects build information for the running binary.
func Read() Info {
	info, _ := debug.ReadBuildInfo()
	return fromBuildInfo(info, strings.TrimSpace(buildVersion))
}

// Current returns the best available version string (without dirty suffix).
func Current() string {
	return Read().Version
}

// Module returns the module path from build info when available.
func Module() string {
	return Read().Module
}

func fromBuildInfo(info *debug.BuildInfo, override string) Info {
	out := Info{Module: defaultModule, Version: "v0.0.0-unknown"}
	if info != nil {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			out.Module = path
		}
		out.GoVersion = info.GoVersion
		out.Revision, out.Time, out.Modified = vcsSettings(info)
	}
	switch {
	case override != "":
		out.Version = strings.TrimSuffix(override, "+dirty")
	case info != nil && info.Main.Version != "" && info.Main.Version != "(devel)":
		out.Version = strings.TrimSuffix(info.Main.Version, "+dirty")
	default:
		if v := pseudoVersion(out.Revision, out.Time); v != "" {
			out.Version = v
		}
	}
	return out
}

func vcsSettings(info *debug.BuildInfo) (string, time.Time, bool) {
	var revision string
	var stamp time.Time
	var modified bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.time":
			if parsed, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				stamp = parsed.UTC()
			}
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	return revision, stamp, modified
}

func pseudoVersion(revision string, stamp time.Time) string {
	if revision == "" || stamp.IsZero() {
		return ""
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	return "v0.0.0-" + stamp.Format("20060102150405") + "-" + revision
}
