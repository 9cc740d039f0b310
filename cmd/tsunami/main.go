// Command tsunami is the development CLI for the axp21264 core: loading
// a system topology, single-stepping or free-running it, inspecting CPU
// state, and decoding raw instruction words, built with cobra/pflag per
// §10's ambient CLI tooling.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tsunami-core/axp21264/internal/axp/decode"
	"github.com/tsunami-core/axp21264/internal/axp/tsunami"
	"github.com/tsunami-core/axp21264/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tsunami",
		Short: "Alpha 21264 / Tsunami-Typhoon core emulator",
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newStepCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newDecodeCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var topologyPath string
	var entry uint64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Free-run a system built from a topology file until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := buildSystem(topologyPath)
			if err != nil {
				return err
			}
			sys.CPU(0).SetPC(entry, false)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			fmt.Printf("running %d CPU(s), entry 0x%x (Ctrl-C to stop)\n", sys.NumCPUs(), entry)
			err = sys.Run(ctx)
			if err != nil && ctx.Err() == nil {
				return err
			}
			fmt.Println("stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&topologyPath, "topology", "", "YAML topology file (defaults built in if omitted)")
	cmd.Flags().Uint64Var(&entry, "entry", 0, "Initial PC for CPU 0")
	return cmd
}

func newStepCmd() *cobra.Command {
	var topologyPath string
	var entry uint64
	var cycles int

	cmd := &cobra.Command{
		Use:   "step",
		Short: "Single-step a system a fixed number of cycles and report retirement counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := buildSystem(topologyPath)
			if err != nil {
				return err
			}
			sys.CPU(0).SetPC(entry, false)

			for i := 0; i < cycles; i++ {
				sys.Step()
			}
			for i := 0; i < sys.NumCPUs(); i++ {
				c := sys.CPU(i)
				fmt.Printf("cpu%d: retired=%d pc=0x%x\n", i, c.RetiredCount, c.PC().Addr())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&topologyPath, "topology", "", "YAML topology file (defaults built in if omitted)")
	cmd.Flags().Uint64Var(&entry, "entry", 0, "Initial PC for CPU 0")
	cmd.Flags().IntVar(&cycles, "cycles", 1, "Number of cycles to step")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var topologyPath string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the chipset CSR state a topology resets to",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := buildSystem(topologyPath)
			if err != nil {
				return err
			}
			fmt.Printf("cpus: %d\n", sys.NumCPUs())
			fmt.Printf("cchip: CSC=0x%x MTR=0x%x\n", sys.Cchip().CSC().Get(), sys.Cchip().MTR().Get())
			fmt.Printf("dchip: STR=0x%x DREV=0x%x pchip1Present=%v\n",
				sys.Dchip().STR().Get(), sys.Dchip().DREV().Get(), sys.Dchip().Pchip1Present())
			return nil
		},
	}
	cmd.Flags().StringVar(&topologyPath, "topology", "", "YAML topology file (defaults built in if omitted)")
	return cmd
}

func newDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode [hex-word...]",
		Short: "Decode one or more raw 32-bit instruction words",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				word, err := parseHexWord(arg)
				if err != nil {
					return fmt.Errorf("decode: %s: %w", arg, err)
				}
				d, err := decode.Decode(decode.Raw(word))
				if err != nil {
					fmt.Printf("0x%08x: decode error: %v\n", word, err)
					continue
				}
				fmt.Printf("0x%08x: opcode=0x%02x format=%v ra=%d rb=%d rc=%d func=0x%x literal=%v(%d) brdisp=%d\n",
					word, d.Opcode, d.Format, d.Ra, d.Rb, d.Rc, d.Func, d.IsLiteral, d.Literal, d.BrDisp)
			}
			return nil
		},
	}
	return cmd
}

func parseHexWord(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// buildSystem loads topologyPath if given, otherwise assembles the
// built-in default topology.
func buildSystem(topologyPath string) (*tsunami.System, error) {
	if topologyPath == "" {
		return tsunami.New(config.Default().ToSystemConfig())
	}
	return config.Build(topologyPath)
}
