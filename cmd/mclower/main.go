// Command mclower is a small demonstrator for package mcbackend: it
// builds one of a handful of canned micro-instruction programs and
// lowers it through the full pipeline, printing either a disassembly
// listing or the raw object bytes.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/microlower/mcbackend"
	"github.com/microlower/mcbackend/internal/builder"
	"github.com/microlower/mcbackend/internal/mcir"
	"github.com/microlower/mcbackend/internal/x64"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mclower",
		Short: "Lower a canned micro-instruction program through mcbackend",
	}
	root.AddCommand(newLowerCmd())
	return root
}

var programs = map[string]func(b *builder.Builder){
	"return-const": func(b *builder.Builder) {
		b.EncodeLoadRegImm(x64.RAX.VReg(), 0x2A, mcir.OpBits32)
		b.EncodeRet()
	},
	"call-extern": func(b *builder.Builder) {
		b.EncodeCallExtern(mcir.IdentRef(1), mcir.CallConvSystemV)
		b.EncodeRet()
	},
	"loop-zero": func(b *builder.Builder) {
		l1 := b.EncodeLabel()
		b.EncodeLoadRegImm(x64.RAX.VReg(), 0, mcir.OpBits32)
		b.EncodeCmpRegImm(x64.RAX.VReg(), 0, mcir.OpBits32)
		b.EncodeJump(mcir.CondNotEqual, mcir.OpBits32, l1)
		b.EncodeRet()
	},
}

func newLowerCmd() *cobra.Command {
	var convName string
	var optName string
	var outPath string
	var asHex bool

	cmd := &cobra.Command{
		Use:   "lower [program]",
		Short: "Build and lower a named demo program (return-const, call-extern, loop-zero)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			build, ok := programs[args[0]]
			if !ok {
				names := make([]string, 0, len(programs))
				for n := range programs {
					names = append(names, n)
				}
				return fmt.Errorf("unknown program %q; available: %v", args[0], names)
			}

			cc, err := parseCallConv(convName)
			if err != nil {
				return err
			}
			opt, err := parseOptLevel(optName)
			if err != nil {
				return err
			}

			b := builder.New()
			build(b)

			out, err := mcbackend.Lower(b, cc, mcbackend.Options{Module: args[0], OptLevel: opt})
			if err != nil {
				return fmt.Errorf("lowering %q: %w", args[0], err)
			}

			if outPath != "" {
				return os.WriteFile(outPath, out.Bytes, 0o644)
			}
			if asHex {
				fmt.Println(hex.EncodeToString(out.Bytes))
				return nil
			}
			fmt.Print(out.Disassemble())
			for _, r := range out.CodeRelocations {
				fmt.Printf("reloc: kind=%d symbol=%d offset=%d addend=%d\n", r.Kind, r.Symbol, r.CodeOffset, r.Addend)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&convName, "conv", "systemv", "calling convention: host, systemv, windows")
	cmd.Flags().StringVar(&optName, "opt", "o1", "optimization level: o0, o1, os")
	cmd.Flags().StringVar(&outPath, "out", "", "write raw object bytes to this file instead of printing")
	cmd.Flags().BoolVar(&asHex, "hex", false, "print the object bytes as a hex string instead of a disassembly")
	return cmd
}

func parseCallConv(s string) (mcbackend.CallConvKind, error) {
	switch s {
	case "host":
		return mcbackend.CallConvHost, nil
	case "systemv":
		return mcbackend.CallConvSystemV, nil
	case "windows":
		return mcbackend.CallConvWindows, nil
	default:
		return 0, fmt.Errorf("unknown calling convention %q", s)
	}
}

func parseOptLevel(s string) (mcbackend.OptLevel, error) {
	switch s {
	case "o0":
		return mcbackend.O0, nil
	case "o1":
		return mcbackend.O1, nil
	case "os":
		return mcbackend.Os, nil
	default:
		return 0, fmt.Errorf("unknown optimization level %q", s)
	}
}
