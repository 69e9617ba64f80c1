// Package policy enforces NEXUS's hybrid safety mode: documents stay
// local, only bounded, attributed, hash-audited snippets go to a cloud
// provider. Grounded line-for-line on the original Python implementation's
// PolicyRedactor.
package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Citation is the subset of a retrieved chunk's metadata the redactor
// needs: where it came from and what it says.
type Citation struct {
	Source  string
	Page    int // 0 means "no page"
	Excerpt string
}

// Redactor truncates and attributes citation excerpts before they leave
// the local workspace boundary.
type Redactor struct {
	HybridSafeMode   bool
	MaxSnippetLength int
}

// New constructs a Redactor from the resolved configuration values.
func New(hybridSafeMode bool, maxSnippetLength int) *Redactor {
	return &Redactor{HybridSafeMode: hybridSafeMode, MaxSnippetLength: maxSnippetLength}
}

// RedactSnippets hashes each citation's full excerpt (before any
// truncation, for audit), truncates it to MaxSnippetLength under safe
// mode, prepends a "[Source: path, Page n]" attribution line, and joins
// every snippet with "\n\n---\n\n". If the combined context still
// exceeds MaxSnippetLength*len(citations) under safe mode, it is
// emergency-truncated with a trailing marker.
func (r *Redactor) RedactSnippets(citations []Citation) (combined string, excerptHashes []string) {
	snippets := make([]string, 0, len(citations))
	excerptHashes = make([]string, 0, len(citations))

	for _, c := range citations {
		excerptHashes = append(excerptHashes, hashContent(c.Excerpt))

		excerpt := c.Excerpt
		if r.HybridSafeMode && len(excerpt) > r.MaxSnippetLength {
			excerpt = excerpt[:r.MaxSnippetLength] + "..."
		}

		sourceInfo := fmt.Sprintf("[Source: %s", c.Source)
		if c.Page != 0 {
			sourceInfo += fmt.Sprintf(", Page %d", c.Page)
		}
		sourceInfo += "]"

		snippets = append(snippets, sourceInfo+"\n"+excerpt)
	}

	combined = strings.Join(snippets, "\n\n---\n\n")

	if r.HybridSafeMode && len(citations) > 0 {
		maxTotal := r.MaxSnippetLength * len(citations)
		if len(combined) > maxTotal {
			combined = combined[:maxTotal] + "\n\n[Context truncated for safety]"
		}
	}

	return combined, excerptHashes
}

// ValidateOutboundPayload reports whether payload is safe to send to a
// cloud provider: under safe mode its length must not exceed
// MaxSnippetLength*10, and it must not contain sentinel (used by tests
// to prove full documents never leak).
func (r *Redactor) ValidateOutboundPayload(payload string, sentinel string) bool {
	if r.HybridSafeMode {
		maxAllowed := r.MaxSnippetLength * 10
		if len(payload) > maxAllowed {
			return false
		}
	}
	if sentinel != "" && strings.Contains(payload, sentinel) {
		return false
	}
	return true
}

// Summary reports the active policy settings, for structured logging.
func (r *Redactor) Summary() map[string]any {
	return map[string]any{
		"hybrid_safe_mode":   r.HybridSafeMode,
		"max_snippet_length": r.MaxSnippetLength,
		"policy_enforced":    true,
	}
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
