package commands

import (
	"fmt"
	"strings"

	"github.com/andewx/dieselshare/vulkan"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "List Vulkan adapters and whether they can share surfaces",
	RunE:  runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	if err := vulkan.LoadCoreFunctions(nil); err != nil {
		return err
	}
	reports, err := vulkan.Probe(cfg.Vulkan.AppName, log)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(reports) == 0 {
		fmt.Fprintln(out, "no Vulkan adapters")
		return nil
	}
	for i, r := range reports {
		verdict := "suitable"
		if !r.Suitable {
			verdict = "unsuitable: " + strings.Join(r.Failed, ", ")
		}
		fmt.Fprintf(out, "[%d] %s: %s\n", i, r.Name, verdict)
		if len(r.MissingExtensions) > 0 {
			fmt.Fprintf(out, "    missing extensions: %s\n", strings.Join(r.MissingExtensions, ", "))
		}
		fmt.Fprintf(out, "    queue family %d, transfer family %d, %d memory types\n",
			r.QueueFamily, r.TransferFamily, len(r.MemoryTypes))
	}
	return nil
}
