package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/scott-cotton/cli"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/coffersTech/facetql/internal/config"
	"github.com/coffersTech/facetql/internal/engine"
	"github.com/coffersTech/facetql/internal/pkg/lucene"
)

func normalize(cfg *NormalizeConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Normalize.Parse(cc, args)
	if err != nil {
		return err
	}

	raw, tree, err := parseArgs(args)
	if err != nil {
		return err
	}

	out := tree.String()

	if !cfg.Diff {
		fmt.Fprintln(cc.Out, out)
		return nil
	}

	writeDiff(cc.Out, raw, out, isTerminal(cc.Out))

	return nil
}

func explain(cfg *ExplainConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Explain.Parse(cc, args)
	if err != nil {
		return err
	}

	_, tree, err := parseArgs(args)
	if err != nil {
		return err
	}

	writeTree(cc.Out, tree.Root, newPalette(useColor(cfg.Explain, "color", cc.Out, cfg.Color)))

	return nil
}

func facet(cfg *FacetConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Facet.Parse(cc, args)
	if err != nil {
		return err
	}

	if cfg.Field == "" {
		return fmt.Errorf("%w: -field is required", cli.ErrUsage)
	}

	isRange := cfg.Min != "" || cfg.Max != ""
	if isRange == (cfg.Value != "") {
		return fmt.Errorf("%w: give either -value or -min/-max", cli.ErrUsage)
	}

	tree, err := lucene.NewTree(strings.Join(args, " "))
	if err != nil {
		return err
	}

	if isRange {
		err = engine.SetRange(tree, cfg.Field, cfg.Min, cfg.Max)
	} else {
		_, err = engine.ToggleFacet(tree, cfg.Field, cfg.Value)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cc.Out, tree.String())

	return nil
}

func hash(cfg *HashConfig, cc *cli.Context, args []string) error {
	_, err := cfg.Hash.Parse(cc, args)
	if err != nil {
		return err
	}

	if cfg.Token == "" {
		return fmt.Errorf("%w: -token is required", cli.ErrUsage)
	}

	h, err := config.HashToken(cfg.Token)
	if err != nil {
		return err
	}

	fmt.Fprintln(cc.Out, h)

	return nil
}

func parseArgs(args []string) (string, *lucene.Tree, error) {
	raw := strings.Join(args, " ")
	if strings.TrimSpace(raw) == "" {
		return "", nil, fmt.Errorf("%w: no query given", cli.ErrUsage)
	}

	tree, err := lucene.NewTree(raw)
	if err != nil {
		return "", nil, err
	}

	return raw, tree, nil
}

// useColor follows the flag when it was given on the command line and
// falls back to checking whether w is a terminal.
func useColor(cmd *cli.Command, name string, w io.Writer, flag bool) bool {
	if flag {
		return true
	}

	for _, opt := range cmd.Opts {
		if opt.Name == name && opt.Value != nil {
			return false
		}
	}

	return isTerminal(w)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd())
}

func writeDiff(w io.Writer, from, to string, colored bool) {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(from, to, false))

	del := color.New(color.FgRed, color.CrossedOut)
	ins := color.New(color.FgGreen, color.Underline)
	del.EnableColor()
	ins.EnableColor()

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			b.WriteString(d.Text)
		case diffmatchpatch.DiffDelete:
			if colored {
				b.WriteString(del.Sprint(d.Text))
			} else {
				b.WriteString("[-" + d.Text + "-]")
			}
		case diffmatchpatch.DiffInsert:
			if colored {
				b.WriteString(ins.Sprint(d.Text))
			} else {
				b.WriteString("{+" + d.Text + "+}")
			}
		}
	}

	fmt.Fprintln(w, b.String())
}
