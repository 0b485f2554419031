package logging

import (
	"fmt"
	"strings"
)

// RotateOptions describes the logrotate stanza for one component
type RotateOptions struct {
	Component string
	Dir       string // defaults to DefaultLogDir
	Keep      int    // rotated files kept, defaults to 14
	Owner     string // "user group" for recreated files, defaults to "agencysite agencysite"
}

// GenerateLogrotateConfig renders a logrotate stanza. The server keeps its
// log file open and does not reopen on a signal, so files are rotated with
// copytruncate.
func GenerateLogrotateConfig(opts RotateOptions) string {
	if opts.Dir == "" {
		opts.Dir = DefaultLogDir
	}
	if opts.Keep <= 0 {
		opts.Keep = 14
	}
	if opts.Owner == "" {
		opts.Owner = "agencysite agencysite"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# logrotate configuration for %s\n", opts.Component)
	fmt.Fprintf(&b, "# Install as /etc/logrotate.d/agencysite-%s\n\n", opts.Component)
	fmt.Fprintf(&b, "%s/%s/*.log {\n", strings.TrimRight(opts.Dir, "/"), opts.Component)
	for _, directive := range []string{
		"daily",
		fmt.Sprintf("rotate %d", opts.Keep),
		"compress",
		"delaycompress",
		"missingok",
		"notifempty",
		"copytruncate",
		"su " + opts.Owner,
	} {
		fmt.Fprintf(&b, "    %s\n", directive)
	}
	b.WriteString("}\n")
	return b.String()
}
