package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dieseltech/stacks/internal/classify"
	"github.com/dieseltech/stacks/internal/model"
)

// Prompter implements the interactive prompting interface for filename
// classification.
type Prompter struct {
	writer io.Writer
	reader *NonBlockingReader
}

// NewPrompter creates a prompter over the given reader and writer. Nil
// arguments default to stdin and stdout.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return &Prompter{
		reader: NewNonBlockingReader(reader),
		writer: writer,
	}
}

// SelectAmbiguous presents functionally distinct candidate interpretations of
// a filename and reads the operator's pick.
func (p *Prompter) SelectAmbiguous(ctx context.Context, filename string, candidates []classify.Candidate) (classify.Choice, error) {
	select {
	case <-ctx.Done():
		return classify.Choice{}, ctx.Err()
	default:
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("File: %s\n\n", filename))
	for i, cand := range candidates {
		sb.WriteString(fmt.Sprintf("  [%d] %s\n", i+1, formatCandidate(cand)))
	}

	if _, err := fmt.Fprintln(p.writer, RenderBox("Ambiguous Match", sb.String())); err != nil {
		return classify.Choice{}, fmt.Errorf("failed to write candidates: %w", err)
	}
	if _, err := fmt.Fprintf(p.writer, "  [1-%d] Use interpretation\n  [M] Enter details manually\n  [S] Skip this file\n  [X] Skip this series for the session\n\n", len(candidates)); err != nil {
		return classify.Choice{}, fmt.Errorf("failed to write options: %w", err)
	}

	for {
		answer, err := p.prompt(ctx, "Choice")
		if err != nil {
			return classify.Choice{}, err
		}

		switch answer {
		case "m":
			return p.promptManual(ctx, filename)
		case "s":
			return classify.Choice{Action: classify.ChoiceSkipFile}, nil
		case "x":
			return classify.Choice{Action: classify.ChoiceSkipSeries}, nil
		}

		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(candidates) {
			return classify.Choice{Action: classify.ChoiceUse, Index: n - 1}, nil
		}

		if _, err := fmt.Fprintln(p.writer, FormatWarning("Please choose one of the listed options.")); err != nil {
			return classify.Choice{}, fmt.Errorf("failed to write retry notice: %w", err)
		}
	}
}

// ConfirmLowConfidence asks whether to accept a weak best match.
func (p *Prompter) ConfirmLowConfidence(ctx context.Context, filename string, best classify.Candidate) (classify.Choice, error) {
	select {
	case <-ctx.Done():
		return classify.Choice{}, ctx.Err()
	default:
	}

	content := fmt.Sprintf("File: %s\n\nBest guess: %s\n%s",
		filename,
		formatCandidate(best),
		SubtleStyle.Render(fmt.Sprintf("confidence score %.1f", best.Score)))

	if _, err := fmt.Fprintln(p.writer, RenderBox("Low Confidence Match", content)); err != nil {
		return classify.Choice{}, fmt.Errorf("failed to write candidate: %w", err)
	}
	if _, err := fmt.Fprintln(p.writer, "  [A] Accept this interpretation\n  [M] Enter details manually\n  [S] Skip this file\n  [X] Skip this series for the session"); err != nil {
		return classify.Choice{}, fmt.Errorf("failed to write options: %w", err)
	}

	for {
		answer, err := p.prompt(ctx, "Choice")
		if err != nil {
			return classify.Choice{}, err
		}

		switch answer {
		case "a":
			return classify.Choice{Action: classify.ChoiceUse, Index: 0}, nil
		case "m":
			return p.promptManual(ctx, filename)
		case "s":
			return classify.Choice{Action: classify.ChoiceSkipFile}, nil
		case "x":
			return classify.Choice{Action: classify.ChoiceSkipSeries}, nil
		}

		if _, err := fmt.Fprintln(p.writer, FormatWarning("Please choose A, M, S or X.")); err != nil {
			return classify.Choice{}, fmt.Errorf("failed to write retry notice: %w", err)
		}
	}
}

// ResolveUnmatched handles filenames no rule matched usably.
func (p *Prompter) ResolveUnmatched(ctx context.Context, filename string) (classify.Choice, error) {
	select {
	case <-ctx.Done():
		return classify.Choice{}, ctx.Err()
	default:
	}

	if _, err := fmt.Fprintln(p.writer, RenderBox("No Match", fmt.Sprintf("File: %s\n\nNo naming pattern recognized this file.", filename))); err != nil {
		return classify.Choice{}, fmt.Errorf("failed to write notice: %w", err)
	}
	if _, err := fmt.Fprintln(p.writer, "  [M] Enter details manually\n  [S] Skip this file"); err != nil {
		return classify.Choice{}, fmt.Errorf("failed to write options: %w", err)
	}

	for {
		answer, err := p.prompt(ctx, "Choice")
		if err != nil {
			return classify.Choice{}, err
		}

		switch answer {
		case "m":
			return p.promptManual(ctx, filename)
		case "s":
			return classify.Choice{Action: classify.ChoiceSkipFile}, nil
		}

		if _, err := fmt.Fprintln(p.writer, FormatWarning("Please choose M or S.")); err != nil {
			return classify.Choice{}, fmt.Errorf("failed to write retry notice: %w", err)
		}
	}
}

// ConfirmFormatDrift asks whether to keep using the remembered pattern when a
// series' filenames change shape. Declining (the default) re-classifies.
func (p *Prompter) ConfirmFormatDrift(ctx context.Context, seriesName string, remembered, current model.FormatFingerprint) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	content := fmt.Sprintf("Series: %s\n\nRemembered shape: %s\nCurrent file:     %s",
		seriesName, remembered.ExampleFilename, current.ExampleFilename)

	if _, err := fmt.Fprintln(p.writer, RenderBox("Naming Format Changed", content)); err != nil {
		return false, fmt.Errorf("failed to write drift notice: %w", err)
	}

	answer, err := p.prompt(ctx, "Reuse remembered pattern anyway? [y/N]")
	if err != nil {
		return false, err
	}
	return answer == "y" || answer == "yes", nil
}

// promptManual collects series, chapter and volume directly from the
// operator. Only the series name is required.
func (p *Prompter) promptManual(ctx context.Context, filename string) (classify.Choice, error) {
	if _, err := fmt.Fprintln(p.writer, SubtleStyle.Render("Manual entry for "+filename)); err != nil {
		return classify.Choice{}, fmt.Errorf("failed to write manual header: %w", err)
	}

	var series string
	for series == "" {
		if _, err := fmt.Fprint(p.writer, FormatPrompt("Series name")); err != nil {
			return classify.Choice{}, fmt.Errorf("failed to write prompt: %w", err)
		}
		line, err := p.reader.ReadLine(ctx)
		if err != nil {
			return classify.Choice{}, err
		}
		series = strings.TrimSpace(line)
	}

	chapter, err := p.promptOptional(ctx, "Chapter (blank for none)")
	if err != nil {
		return classify.Choice{}, err
	}
	volume, err := p.promptOptional(ctx, "Volume (blank for none)")
	if err != nil {
		return classify.Choice{}, err
	}

	ex := model.NewExtraction(model.RuleNameManual)
	ex.Fields[model.FieldSeries] = series
	if chapter != "" {
		ex.Fields[model.FieldChapter] = chapter
	}
	if volume != "" {
		ex.Fields[model.FieldVolume] = volume
	}

	return classify.Choice{Action: classify.ChoiceManual, Manual: ex}, nil
}

func (p *Prompter) promptOptional(ctx context.Context, label string) (string, error) {
	if _, err := fmt.Fprint(p.writer, FormatPrompt(label)); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}
	line, err := p.reader.ReadLine(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// prompt reads one lowercased answer.
func (p *Prompter) prompt(ctx context.Context, label string) (string, error) {
	if _, err := fmt.Fprint(p.writer, FormatPrompt(label)); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}
	line, err := p.reader.ReadLine(ctx)
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(line)), nil
}

// formatCandidate renders one extraction for display.
func formatCandidate(cand classify.Candidate) string {
	ex := cand.Extraction
	parts := []string{fmt.Sprintf("Series %q", ex.SeriesName())}
	if v := ex.Volume(); v != "" {
		parts = append(parts, "Volume "+v)
	}
	if c := ex.Chapter(); c != "" {
		parts = append(parts, "Chapter "+c)
	}
	return fmt.Sprintf("%s %s",
		strings.Join(parts, ", "),
		SubtleStyle.Render(fmt.Sprintf("(%s, %.1f)", ex.RuleName, cand.Score)))
}
