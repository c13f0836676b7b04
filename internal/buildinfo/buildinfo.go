// Package buildinfo reports what the running tmplstore binary was built from.
package buildinfo

import (
	"runtime/debug"
	"strings"
)

// Info is the subset of debug.BuildInfo printed by "tmplstore version".
type Info struct {
	Version  string
	Revision string
	Modified bool
	Tags     string
}

var readBuildInfo = debug.ReadBuildInfo

func Read() Info {
	info, ok := readBuildInfo()
	if !ok || info == nil {
		return Info{Version: "dev"}
	}
	out := Info{Version: info.Main.Version}
	if out.Version == "" || out.Version == "(devel)" {
		out.Version = "dev"
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			out.Revision = setting.Value
		case "vcs.modified":
			out.Modified = setting.Value == "true"
		case "-tags":
			out.Tags = setting.Value
		}
	}
	return out
}

// String renders "v1.2.3 (abc1234-dirty, tags: x)", dropping empty parts.
func (i Info) String() string {
	var extra []string
	if i.Revision != "" {
		rev := i.Revision
		if len(rev) > 7 {
			rev = rev[:7]
		}
		if i.Modified {
			rev += "-dirty"
		}
		extra = append(extra, rev)
	}
	if i.Tags != "" {
		extra = append(extra, "tags: "+i.Tags)
	}
	if len(extra) == 0 {
		return i.Version
	}
	return i.Version + " (" + strings.Join(extra, ", ") + ")"
}
