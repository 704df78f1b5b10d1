package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
	"github.com/fxamacker/cbor/v2"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/wippyai/guest-bridge/dispatch"
)

type toolConfig struct {
	MaxOpsBytes  int64 `toml:"max_ops_bytes"`
	MaxTextBytes int64 `toml:"max_text_bytes"`
	Color        bool  `toml:"color"`
}

func defaultConfig() toolConfig {
	return toolConfig{
		MaxOpsBytes:  1 << 20,
		MaxTextBytes: 1 << 20,
		Color:        true,
	}
}

func main() {
	var (
		opsFile     = flag.String("ops", "", "Path to operations buffer file")
		textFile    = flag.String("text", "", "Path to text buffer file (optional)")
		configFile  = flag.String("config", "", "Path to TOML config file")
		traceOut    = flag.String("trace", "", "Write decoded operations as CBOR to this file")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *opsFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: opdump -ops <file> [-text <file>] [-config <file.toml>]")
		fmt.Fprintln(os.Stderr, "       opdump -ops <file> -trace <out.cbor>")
		fmt.Fprintln(os.Stderr, "       opdump -ops <file> -i  (interactive mode)")
		os.Exit(1)
	}

	if err := run(*opsFile, *textFile, *configFile, *traceOut, *interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opsFile, textFile, configFile, traceOut string, interactive bool) error {
	cfg := defaultConfig()
	if configFile != "" {
		if _, err := toml.DecodeFile(configFile, &cfg); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	ops, err := readCapped(opsFile, cfg.MaxOpsBytes)
	if err != nil {
		return err
	}

	var text []byte
	if textFile != "" {
		if text, err = readCapped(textFile, cfg.MaxTextBytes); err != nil {
			return err
		}
	}

	traces, err := dispatch.Trace(ops, text, nil)
	if err != nil {
		return fmt.Errorf("decode batch: %w", err)
	}

	if traceOut != "" {
		encoded, err := cbor.Marshal(traces)
		if err != nil {
			return fmt.Errorf("encode trace: %w", err)
		}
		if err := os.WriteFile(traceOut, encoded, 0o644); err != nil {
			return fmt.Errorf("write trace: %w", err)
		}
		fmt.Printf("Wrote %d operations to %s\n", len(traces), traceOut)
	}

	if interactive {
		return runInteractive(opsFile, traces)
	}

	printBatch(opsFile, len(ops), len(text), traces, cfg.Color)
	return nil
}

func readCapped(path string, limit int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > limit {
		return nil, fmt.Errorf("%s is %d bytes, limit is %d", path, info.Size(), limit)
	}
	return os.ReadFile(path)
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	opStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#98FB98"))

	fieldStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func printBatch(name string, opsLen, textLen int, traces []dispatch.OpTrace, color bool) {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	if !color || !term.IsTerminal(int(os.Stdout.Fd())) {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("batch %s", name)))
	fmt.Println(dimStyle.Render(fmt.Sprintf("%d ops bytes, %d text bytes, %d operations",
		opsLen, textLen, len(traces))))
	fmt.Println()

	for i, tr := range traces {
		fmt.Printf("%s %s\n", dimStyle.Render(fmt.Sprintf("[%d]", i)), opStyle.Render(tr.Op))
		for _, line := range traceLines(tr) {
			if len(line) > width-4 {
				line = line[:width-7] + "..."
			}
			fmt.Printf("    %s\n", line)
		}
	}
}

// traceLines renders one decoded operation as indented detail lines.
func traceLines(tr dispatch.OpTrace) []string {
	var lines []string
	field := func(name, value string) {
		lines = append(lines, fieldStyle.Render(name+":")+" "+value)
	}

	field("target", fmt.Sprintf("%#x", tr.Target))
	if tr.Name != "" {
		field("name", tr.Name)
	}
	if tr.Callback != 0 {
		field("callback", fmt.Sprintf("%#x", tr.Callback))
	}
	if tr.Arity != "" {
		field("arity", tr.Arity)
	}
	for i, state := range tr.Hint {
		field(fmt.Sprintf("hint[%d]", i), strings.Join(state, " | "))
	}
	for i, arg := range tr.Args {
		field(fmt.Sprintf("arg[%d]", i), arg)
	}
	return lines
}
