package codereview

import (
	"fmt"
	"strings"

	"github.com/klubi/relay/internal/tools/filesystem"
	"github.com/klubi/relay/internal/tools/github"
)

// Instructions is the system prompt of the code review agent.
const Instructions = `You are an expert code reviewer. Review the pull request for:
- correctness and edge cases
- security issues
- performance problems
- readability and maintainability
- missing or weak tests

Be specific and constructive. Reference files and lines where you can.
Start each blocking problem on its own line with "ISSUE:" and each
non-blocking improvement on its own line with "SUGGESTION:".
End with a short overall assessment.`

func buildPrompt(prURL string, pr *github.PullRequest, files []filesystem.FileContent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review the pull request at %s.\n", prURL)
	if pr == nil {
		return b.String()
	}

	fmt.Fprintf(&b, "\nTitle: %s\nAuthor: %s\nState: %s\nChanges: +%d -%d in %d files\n",
		pr.Title, pr.Author, pr.State, pr.Additions, pr.Deletions, len(pr.ChangedFiles))
	for _, f := range files {
		fmt.Fprintf(&b, "\n--- %s (%d lines)\n%s", f.Path, f.Lines, f.Content)
		if !strings.HasSuffix(f.Content, "\n") {
			b.WriteByte('\n')
		}
	}
	if skipped := len(pr.ChangedFiles) - len(files); skipped > 0 {
		fmt.Fprintf(&b, "\n(%d more changed files not shown)\n", skipped)
	}
	return b.String()
}

// parseFindings splits generated feedback into issue and suggestion lines.
func parseFindings(feedback string) (issues, suggestions []string) {
	for _, line := range strings.Split(feedback, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-* "))
		switch {
		case hasPrefixFold(line, "ISSUE:"):
			issues = append(issues, strings.TrimSpace(line[len("ISSUE:"):]))
		case hasPrefixFold(line, "SUGGESTION:"):
			suggestions = append(suggestions, strings.TrimSpace(line[len("SUGGESTION:"):]))
		}
	}
	return issues, suggestions
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
