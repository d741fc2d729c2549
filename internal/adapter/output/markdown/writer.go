package markdown

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jmorrow/prompt-arena/internal/domain"
)

type clock func() string

// Writer renders battle reports into Markdown files.
type Writer struct {
	now clock
}

// NewWriter constructs a Markdown writer with a timestamp supplier.
func NewWriter(now clock) *Writer {
	return &Writer{now: now}
}

// Write persists a Markdown report for the battle to disk and returns
// the file path. The secret is never written: reports may be shared
// before a rematch against the same defense template.
func (w *Writer) Write(ctx context.Context, outputDir string, battle domain.Battle) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	filename := fmt.Sprintf("battle_%s_%s.md", sanitise(battle.ID), w.now())
	path := filepath.Join(outputDir, filename)

	content := buildContent(battle)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write markdown: %w", err)
	}

	return path, nil
}

func buildContent(battle domain.Battle) string {
	var builder strings.Builder
	caser := cases.Title(language.English)
	builder.WriteString("# Battle Report\n\n")
	builder.WriteString(fmt.Sprintf("- Battle: %s\n", battle.ID))
	builder.WriteString(fmt.Sprintf("- Attacker: %s\n", battle.AttackerRef.String()))
	builder.WriteString(fmt.Sprintf("- Defender: %s\n", battle.DefenderRef.String()))
	builder.WriteString(fmt.Sprintf("- Status: %s\n", caser.String(battle.Status)))
	builder.WriteString(fmt.Sprintf("- Created: %s\n\n", battle.CreatedAt.Format("2006-01-02 15:04:05 MST")))

	if battle.Result == nil {
		builder.WriteString("The battle has not been executed yet.\n")
		return builder.String()
	}

	builder.WriteString("## Outcome\n\n")
	if battle.Result.AttackWon {
		builder.WriteString("The secret was extracted.\n\n")
	} else {
		builder.WriteString("The defense held.\n\n")
	}
	builder.WriteString(fmt.Sprintf("- Winner: %s\n", battle.Result.WinnerRef.String()))
	builder.WriteString(fmt.Sprintf("- Attacker rating change: %+.1f\n", battle.Result.AttackerDelta))
	builder.WriteString(fmt.Sprintf("- Defender rating change: %+.1f\n\n", battle.Result.DefenderDelta))

	builder.WriteString("## Model Response\n\n")
	builder.WriteString("```\n")
	builder.WriteString(battle.Result.Response)
	builder.WriteString("\n```\n")

	return builder.String()
}

func sanitise(value string) string {
	if value == "" {
		return "unknown"
	}
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, string(filepath.Separator), "-")
	value = strings.ReplaceAll(value, " ", "-")
	return value
}
