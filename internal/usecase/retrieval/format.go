package retrieval

import (
	"fmt"
	"strings"

	domret "github.com/kailas-cloud/quizrag/internal/domain/retrieval"
)

// FormatContext renders passages as numbered reference blocks for a prompt.
func FormatContext(r domret.Result) string {
	var sb strings.Builder
	for i, p := range r.Passages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[참고자료 %d]", i+1)
		var labels []string
		if s := p.Chunk.Subject(); s != "" {
			labels = append(labels, "과목: "+s)
		}
		if u := p.Chunk.Unit(); u != "" {
			labels = append(labels, "단원: "+u)
		}
		if len(labels) > 0 {
			fmt.Fprintf(&sb, " (%s)", strings.Join(labels, ", "))
		}
		sb.WriteByte('\n')
		sb.WriteString(strings.TrimSpace(p.Chunk.Text()))
	}
	return sb.String()
}
