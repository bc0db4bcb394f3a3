package cmd

import (
	"errors"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lthummus/loginguard/internal/durations"
	"github.com/lthummus/loginguard/internal/simulate"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [scenario file]",
	Short: "replays a scenario of logins against a lockout tracker",
	Long: "replays a YAML file of login failures, successes, checks and waits against a fresh tracker and " +
		"prints the state after every event. Waits are simulated, so long scenarios finish instantly",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("loginguard: simulate: exactly one scenario file must be given")
		}

		scenario, err := simulate.LoadScenario(args[0])
		if err != nil {
			return err
		}

		resultTable := table.NewWriter()
		resultTable.SetOutputMirror(os.Stdout)
		resultTable.AppendHeader(table.Row{"#", "Elapsed", "User", "Event", "Failures", "Blocked"})

		for _, curr := range simulate.Run(scenario) {
			if curr.Event == simulate.EventWait {
				resultTable.AppendRow(table.Row{curr.Step, durations.NiceDuration(curr.Elapsed), "", curr.Event, "", ""})
				continue
			}
			resultTable.AppendRow(table.Row{curr.Step, durations.NiceDuration(curr.Elapsed), curr.User, curr.Event, curr.Failures, curr.Blocked})
		}

		resultTable.Render()

		return nil
	},
}
