package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/whenitworks/backend/internal/intake"
	"github.com/whenitworks/backend/internal/upload"
)

func init() {
	rootCmd.AddCommand(readCmd)
	readCmd.Flags().Bool("trace", false, "Print every state transition to stderr")
}

var readCmd = &cobra.Command{
	Use:   "read <file>",
	Short: "Validate and read a local file, printing its text",
	Long: `Runs a local file through the same checks as the web page: the extension
must be accepted and the size within the limit. On success the text is written
to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		trace, _ := cmd.Flags().GetBool("trace")

		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		policy, err := cfg.Policy()
		if err != nil {
			return err
		}

		f, err := intake.FromPath(args[0])
		if err != nil {
			return err
		}

		var observers []upload.Observer
		if trace {
			observers = append(observers, traceObserver(cmd.ErrOrStderr()))
		}

		st, err := upload.NewController(policy, observers...).SelectAndWait(commandContext(cmd), f)
		if err != nil {
			return err
		}
		if st.Phase != upload.PhaseDisplayed {
			return errors.New(st.Error)
		}

		_, err = io.WriteString(cmd.OutOrStdout(), st.Content)
		return err
	},
}

var phaseColors = map[upload.Phase]*color.Color{
	upload.PhaseValidating: color.New(color.FgCyan),
	upload.PhaseReading:    color.New(color.FgYellow),
	upload.PhaseDisplayed:  color.New(color.FgGreen, color.Bold),
	upload.PhaseFailed:     color.New(color.FgRed, color.Bold),
	upload.PhaseIdle:       color.New(color.Faint),
}

func traceObserver(w io.Writer) upload.ObserverFunc {
	return func(prev, next upload.State) {
		label := string(next.Phase)
		if c, ok := phaseColors[next.Phase]; ok {
			label = c.Sprint(label)
		}

		detail := ""
		switch {
		case next.Phase == upload.PhaseValidating && next.File != nil:
			detail = fmt.Sprintf("%s (%s)", next.File.Name, next.File.SizeLabel)
		case next.Phase == upload.PhaseFailed:
			detail = next.Error
		case next.Phase == upload.PhaseDisplayed:
			detail = fmt.Sprintf("%d characters in %s", len([]rune(next.Content)), next.FinishedAt.Sub(next.ReadStartedAt).Round(time.Microsecond))
		}
		fmt.Fprintf(w, "%s -> %s %s\n", prev.Phase, label, detail)
	}
}
