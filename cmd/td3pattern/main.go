// Package main is the entry point for td3pattern CLI
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/james-see/td3pattern/pkg/api"
	"github.com/james-see/td3pattern/pkg/config"
	"github.com/james-see/td3pattern/pkg/converter"
	"github.com/james-see/td3pattern/pkg/converter/devices"
	"github.com/james-see/td3pattern/pkg/debug"
	"github.com/james-see/td3pattern/pkg/librarian"
	"github.com/james-see/td3pattern/pkg/transport"
	"github.com/james-see/td3pattern/pkg/tui"
	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfg        *config.Config
	configPath string
	inPort     string
	outPort    string
	timeout    time.Duration
	debugLog   bool
	cfgFile    string

	saveConfig bool
	tempo      float64

	outputFile  string
	patternFile string
	groupArg    string
	patternArg  string
	serverPort  int
)

func main() {
	err := rootCmd.Execute()
	midi.CloseDriver()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "td3pattern",
	Short: "Download, upload and convert Behringer TD-3 patterns",
	Long: `td3pattern talks to a Behringer TD-3 over USB MIDI and converts its
patterns between SysEx dumps, an editable text format and MIDI files.

Examples:
  td3pattern download 1 2B
  td3pattern download 1 2B -f pattern1-2B.txt
  td3pattern upload 3 8A -f confusion-pattern.txt
  td3pattern --in "Loopback in 1" --out "Loopback out 1" download 1 2B
  td3pattern convert pattern.syx -o pattern.txt
  td3pattern txt2midi pattern.txt
  td3pattern tui
  td3pattern serve --port 8080`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) { debug.Disable() },
}

var downloadCmd = &cobra.Command{
	Use:   "download <group> <pattern>",
	Short: "Download a pattern from the TD-3",
	Long:  `Downloads the pattern stored in group 1-4, pattern 1A-8B and prints it as text or saves it with -f.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runDownload,
}

var uploadCmd = &cobra.Command{
	Use:   "upload <group> <pattern>",
	Short: "Upload a pattern file to the TD-3",
	Long:  `Reads a text, .syx or MIDI pattern with -f and writes it to group 1-4, pattern 1A-8B.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runUpload,
}

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Auto-detect and convert between formats",
	Long:  `Automatically detects input format and converts to the output format based on file extension.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI ports",
	RunE:  runPorts,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective settings",
	Long:  `Prints the settings after flags are applied. With --save they are written to the config file.`,
	RunE:  runConfig,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func init() {
	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Config file (default ~/.config/td3pattern/config.yaml)")
	pf.StringVar(&inPort, "in", config.DefaultPortName, "Name of the TD-3 MIDI input port")
	pf.StringVar(&outPort, "out", config.DefaultPortName, "Name of the TD-3 MIDI output port")
	pf.DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait for the TD-3 to answer")
	pf.BoolVar(&debugLog, "debug", false, "Trace MIDI traffic to the debug log")

	downloadCmd.Flags().StringVarP(&patternFile, "file", "f", "", "Save the pattern to this file instead of printing it")
	tempoFlag(downloadCmd)
	uploadCmd.Flags().StringVarP(&patternFile, "file", "f", "", "Pattern file to upload (required)")
	_ = uploadCmd.MarkFlagRequired("file")

	// Convert command
	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (required)")
	_ = convertCmd.MarkFlagRequired("output")
	slotFlags(convertCmd)
	tempoFlag(convertCmd)
	slotFlags(tuiCmd)

	// serve command
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")

	configCmd.Flags().BoolVar(&saveConfig, "save", false, "Write the effective settings to the config file")

	// Add commands
	rootCmd.AddCommand(downloadCmd, uploadCmd, convertCmd, portsCmd, tuiCmd, configCmd, serveCmd)
	for _, c := range conversionCmds() {
		rootCmd.AddCommand(c)
	}
}

func slotFlags(c *cobra.Command) {
	c.Flags().StringVarP(&groupArg, "group", "g", "1", "Group 1-4 written into .syx output")
	c.Flags().StringVarP(&patternArg, "pattern", "p", "1A", "Pattern 1A-8B written into .syx output")
}

func tempoFlag(c *cobra.Command) {
	c.Flags().Float64VarP(&tempo, "tempo", "t", 120, "Tempo in BPM written into MIDI output")
}

// conversionCmds builds one shortcut command per supported conversion
func conversionCmds() []*cobra.Command {
	pairs := []struct{ from, to converter.Format }{
		{converter.FormatSyx, converter.FormatText},
		{converter.FormatText, converter.FormatSyx},
		{converter.FormatSyx, converter.FormatMIDI},
		{converter.FormatText, converter.FormatMIDI},
		{converter.FormatMIDI, converter.FormatText},
		{converter.FormatMIDI, converter.FormatSyx},
	}

	cmds := make([]*cobra.Command, 0, len(pairs))
	for _, p := range pairs {
		from, to := p.from, p.to
		c := &cobra.Command{
			Use:   fmt.Sprintf("%s2%s <input%s>", from, to, from.Extension()),
			Short: fmt.Sprintf("Convert %s to %s format", from, to),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConversion(args[0], from, to)
			},
		}
		c.Flags().StringVarP(&outputFile, "output", "o", "", fmt.Sprintf("Output %s file path", to.Extension()))
		switch to {
		case converter.FormatSyx:
			slotFlags(c)
		case converter.FormatMIDI:
			tempoFlag(c)
		}
		cmds = append(cmds, c)
	}
	return cmds
}

// loadConfig reads the config file, lets explicitly set flags override it
// and switches on debug tracing
func loadConfig(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}

	cfgFile = path

	var err error
	if cfg, err = config.Load(path); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("in") {
		cfg.InPort = inPort
	}
	if flags.Changed("out") {
		cfg.OutPort = outPort
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("port") {
		cfg.ServerPort = serverPort
	}

	if debugLog && cfg.DebugLog == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return err
		}
		cfg.DebugLog = filepath.Join(dir, "debug.log")
	}
	if cfg.DebugLog != "" {
		if err := debug.Enable(cfg.DebugLog); err != nil {
			return fmt.Errorf("failed to open debug log: %w", err)
		}
	}
	return cfg.Validate()
}

// newConverter builds a TD-3 converter carrying the --tempo value
func newConverter() *converter.Converter {
	conv := converter.New(devices.NewTD3())
	conv.SetTempo(tempo)
	return conv
}

func getSlot() (converter.Slot, error) {
	return converter.ParseSlot(groupArg, patternArg)
}

func getOutputPath(input string, to converter.Format) string {
	if outputFile != "" {
		return outputFile
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + to.Extension()
}

// connect opens the MIDI ports and checks that a TD-3 answers on them
func connect(ctx context.Context) (*librarian.Librarian, func(), error) {
	td3 := devices.NewTD3()
	session, err := transport.Open(cfg.InPort, cfg.OutPort, td3.SysExHeader(), cfg.Timeout)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = session.Close() }
	if debug.Enabled() {
		fmt.Printf("Tracing MIDI traffic to %s, timeout %s\n", cfg.DebugLog, session.Timeout())
	}

	lib := librarian.New(session, td3)
	id, err := lib.Identify(ctx)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	fmt.Printf("Product Name %s, Firmware version is %s\n", id.ProductName, id.Firmware)
	return lib, closeFn, nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	slot, err := converter.ParseSlot(args[0], args[1])
	if err != nil {
		return err
	}

	lib, closeFn, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	pattern, err := lib.Download(cmd.Context(), slot)
	if err != nil {
		return err
	}

	if patternFile == "" {
		text, err := converter.RenderText(pattern)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n\n%s", slot, text)
		return nil
	}

	conv := newConverter()
	conv.SetSlot(slot)
	if err := conv.SaveFile(pattern, patternFile); err != nil {
		return err
	}
	fmt.Printf("%s is saved to %s\n", slot, patternFile)
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	slot, err := converter.ParseSlot(args[0], args[1])
	if err != nil {
		return err
	}

	pattern, err := converter.New(devices.NewTD3()).LoadFile(patternFile)
	if err != nil {
		return fmt.Errorf("%s: %w", patternFile, err)
	}

	lib, closeFn, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	if err := lib.Upload(cmd.Context(), slot, pattern); err != nil {
		return err
	}
	fmt.Printf("File %s is uploaded to %s\n", patternFile, slot)
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]
	slot, err := getSlot()
	if err != nil {
		return err
	}
	conv := newConverter()
	conv.SetSlot(slot)

	fmt.Printf("Converting %s -> %s\n", input, outputFile)
	if err := conv.ConvertFile(input, outputFile); err != nil {
		return err
	}
	fmt.Println("Conversion complete!")
	return nil
}

func runConversion(input string, from, to converter.Format) error {
	output := getOutputPath(input, to)

	conv := newConverter()
	if to == converter.FormatSyx {
		slot, err := getSlot()
		if err != nil {
			return err
		}
		conv.SetSlot(slot)
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	result, err := conv.Convert(data, from, to)
	if err != nil {
		return err
	}

	if err := os.WriteFile(output, result, 0644); err != nil {
		return err
	}

	if from == converter.FormatMIDI {
		fmt.Printf("Source tempo %.1f BPM\n", conv.Tempo())
	}
	fmt.Printf("Converted %s -> %s\n", input, output)
	return nil
}

func runPorts(cmd *cobra.Command, args []string) error {
	ins, outs := transport.ListPorts()
	fmt.Println("MIDI inputs:")
	for _, name := range ins {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println("MIDI outputs:")
	for _, name := range outs {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	slot, err := getSlot()
	if err != nil {
		return err
	}
	return tui.Run(slot)
}

func runConfig(cmd *cobra.Command, args []string) error {
	fmt.Printf("Config file: %s\n", cfgFile)
	fmt.Printf("MIDI in:     %s\n", cfg.InPort)
	fmt.Printf("MIDI out:    %s\n", cfg.OutPort)
	fmt.Printf("Timeout:     %s\n", cfg.Timeout)
	fmt.Printf("Server port: %d\n", cfg.ServerPort)
	if debug.Enabled() {
		fmt.Printf("Debug log:   %s\n", cfg.DebugLog)
	} else {
		fmt.Println("Debug log:   off")
	}

	if !saveConfig {
		return nil
	}
	if err := cfg.Save(cfgFile); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Printf("Settings saved to %s\n", cfgFile)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Printf("Starting API server on port %d...\n", cfg.ServerPort)
	return api.StartServer(cfg.ServerPort)
}
