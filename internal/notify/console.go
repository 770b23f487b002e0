// Package notify hands recommendations to the notification collaborator. The
// engine has no knowledge of delivery channels; the console adapter is the
// built-in sink.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/kamalneel/rollwatch/internal/models"
)

// Notifier receives the recommendations that survived deduplication.
type Notifier interface {
	Publish(ctx context.Context, recs []models.Recommendation) error
}

// Console prints recommendations as a table on stdout.
type Console struct {
	out io.Writer
}

// Ensure Console implements Notifier at compile time.
var _ Notifier = (*Console)(nil)

// NewConsole creates a notifier that writes to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Publish renders the recommendations. MONITOR entries are summarized on one
// line instead of cluttering the table.
func (c *Console) Publish(_ context.Context, recs []models.Recommendation) error {
	now := time.Now().Format("15:04:05")

	actionable := make([]models.Recommendation, 0, len(recs))
	monitoring := 0
	for _, r := range recs {
		if r.Action == models.ActionMonitor {
			monitoring++
			continue
		}
		actionable = append(actionable, r)
	}

	if len(actionable) == 0 {
		fmt.Fprintf(c.out, "[%s] no action needed (%d position(s) monitored)\n", now, monitoring)
		return nil
	}

	fmt.Fprintf(c.out, "[%s] %d recommendation(s):\n", now, len(actionable))

	table := tablewriter.NewWriter(c.out)
	table.Header("Action", "Priority", "Symbol", "Account", "Target", "Reason")
	for _, r := range actionable {
		table.Append(
			string(r.Action),
			string(r.Priority),
			r.Symbol,
			r.AccountName,
			targetColumn(&r),
			r.Reason,
		)
	}
	table.Render()

	if monitoring > 0 {
		fmt.Fprintf(c.out, "  plus %d position(s) with nothing to do\n", monitoring)
	}
	return nil
}

func targetColumn(r *models.Recommendation) string {
	switch {
	case r.Roll != nil:
		return fmt.Sprintf("%.2f @ %s (net $%.2f)",
			r.Roll.TargetStrike, r.Roll.TargetExpiration.Format("2006-01-02"), r.Roll.NetCostTotal)
	case r.Assignment != nil:
		if r.Assignment.Unconditional {
			return fmt.Sprintf("loss $%.2f", r.Assignment.AssignmentLoss)
		}
		return fmt.Sprintf("saves $%.2f", r.Assignment.Savings)
	case r.BuyBack != nil:
		return fmt.Sprintf("%.2f vs %.2f", r.BuyBack.CurrentPrice, r.BuyBack.AssignmentPrice)
	default:
		return "-"
	}
}
