package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/debemdeboas/kable/internal/form"
	"github.com/debemdeboas/kable/internal/submission"
	"github.com/debemdeboas/kable/internal/validation"
)

var (
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	bannerStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func successMessage(parentID int) string {
	return fmt.Sprintf("Submission #%d created successfully!", parentID)
}

func writeSubmitting(w io.Writer) {
	fmt.Fprintln(w, promptStyle.Render("Submitting…"))
}

func writeStep(w io.Writer, ev submission.Event) {
	target := "submission"
	if ev.ItemIndex >= 0 {
		target = fmt.Sprintf("item %d", ev.ItemIndex+1)
	}
	if ev.Failed() {
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("  ✗ %s %s", ev.Step, target)))
		return
	}
	fmt.Fprintln(w, detailStyle.Render(fmt.Sprintf("  ✓ %s %s (record #%d)", ev.Step, target, ev.RecordID)))
}

func writeSuccess(w io.Writer, r submission.Receipt) {
	lines := []string{successStyle.Render(successMessage(int(r.ParentID)))}
	lines = append(lines, receiptLines(r)...)
	fmt.Fprintln(w, bannerStyle.Render(strings.Join(lines, "\n")))
}

// writeFailure shows the message the form would show, followed by whatever
// the store already holds.
func writeFailure(w io.Writer, state form.State, err error) {
	lines := []string{errorStyle.Render(state.Message)}

	var se *submission.StoreError
	if errors.As(err, &se) {
		lines = append(lines, detailStyle.Render("Failed step: "+string(se.Step)))
		if se.Receipt.ParentID != 0 {
			lines = append(lines, detailStyle.Render(fmt.Sprintf("Partial submission #%d was left in place:", se.Receipt.ParentID)))
			lines = append(lines, receiptLines(se.Receipt)...)
		}
	}
	fmt.Fprintln(w, bannerStyle.Render(strings.Join(lines, "\n")))
}

func writeInvalid(w io.Writer, errs validation.Errors) {
	lines := []string{errorStyle.Render("The form has errors:")}
	for _, f := range errs.Fields() {
		lines = append(lines, detailStyle.Render(fmt.Sprintf("  %s: %s", f, errs[f])))
	}
	fmt.Fprintln(w, bannerStyle.Render(strings.Join(lines, "\n")))
}

func receiptLines(r submission.Receipt) []string {
	var lines []string
	for _, it := range r.Items {
		line := fmt.Sprintf("  item %d (%s): record #%d", it.Index+1, it.ClientID, it.RecordID)
		switch {
		case it.ImageLinked():
			line += ", image linked"
		case it.AssetPath != "":
			line += ", image uploaded but not linked"
		}
		lines = append(lines, detailStyle.Render(line))
	}
	return lines
}
