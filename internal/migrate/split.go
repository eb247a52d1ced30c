package migrate

import "strings"

// StatementBreakpoint separates statements in generated migration files.
const StatementBreakpoint = "--> statement-breakpoint"

// SplitStatements splits a migration script into executable statements.
// Files containing StatementBreakpoint markers are split on them only;
// otherwise a statement ends at a line ending in ';'. Full-line "--"
// comments are dropped in the latter mode. Bodies with inner semicolons
// (triggers) need the breakpoint form.
func SplitStatements(src string) []string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	if strings.Contains(src, StatementBreakpoint) {
		var out []string
		for _, part := range strings.Split(src, StatementBreakpoint) {
			if stmt := strings.TrimSpace(part); stmt != "" {
				out = append(out, stmt)
			}
		}
		return out
	}

	var (
		out []string
		buf strings.Builder
	)
	flush := func() {
		if stmt := strings.TrimSpace(buf.String()); stmt != "" {
			out = append(out, stmt)
		}
		buf.Reset()
	}
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()
	return out
}
