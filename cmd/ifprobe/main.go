package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/kisun-bit/ifprobe/nic"
	"github.com/kisun-bit/ifprobe/util/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	query    nic.Query
	jsonOut  bool
	debugLog bool
)

var rootCmd = &cobra.Command{
	Use:          "ifprobe [keywords...]",
	Short:        "Show network interface information",
	Long:         "ifprobe enumerates the host's network interfaces and prints a normalized, filterable snapshot of their attributes.",
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	flags := rootCmd.Flags()
	flags.BoolVarP(&query.IncludeDown, "all", "a", false, "display all interfaces (even if down)")
	flags.BoolVarP(&query.Verbose, "verbose", "v", false, "verbose output (features, rings, channels on linux)")
	flags.BoolVarP(&query.IPv4Only, "ipv4", "4", false, "show only interfaces with IPv4")
	flags.BoolVarP(&query.IPv6Only, "ipv6", "6", false, "show only interfaces with IPv6")
	flags.BoolVarP(&query.RunningOnly, "running", "r", false, "show only running interfaces")
	flags.BoolVarP(&query.IgnoreCase, "ignore-case", "i", false, "case insensitive keyword matching")
	flags.BoolVar(&jsonOut, "json", false, "emit the snapshot as JSON")
	flags.BoolVarP(&debugLog, "debug", "d", false, "enable debug logging")
}

func run(_ *cobra.Command, args []string) error {
	if debugLog {
		logger.SetupDefaultLogger(logger.NewLogger("ifprobe", zap.DebugLevel))
	}
	query.Keywords = args

	snap, err := nic.NewBuilder(query.Verbose).Build(query.IncludeDown)
	if err != nil {
		return err
	}
	result := query.Apply(snap)

	if jsonOut {
		j, e := result.JSON()
		if e != nil {
			return e
		}
		fmt.Println(j)
		return nil
	}
	for _, rec := range result.Records {
		printRecord(rec, query.Verbose)
	}
	return nil
}

var (
	nameUpStyle   = color.New(color.FgHiBlue, color.Bold)
	nameDownStyle = color.New(color.FgBlue)
	valueStyle    = color.New(color.FgBlue)
	dimStyle      = color.New(color.Faint)
)

func printRecord(rec nic.Record, verbose bool) {
	if rec.LinkUp {
		fmt.Printf("%s %s", nameUpStyle.Sprint(rec.Name), dimStyle.Sprint("[link-up]"))
	} else {
		fmt.Printf("%s %s", nameDownStyle.Sprint(rec.Name), dimStyle.Sprint("[link-down]"))
	}
	if rec.Namespace != "" {
		fmt.Printf(" {%s}", rec.Namespace)
	}
	fmt.Println()

	printField := func(label, value string) {
		fmt.Printf("  %-9s %s\n", label+":", value)
	}
	if rec.MAC != "" {
		printField("MAC", valueStyle.Sprint(rec.MAC))
	}
	for _, a := range rec.IPv4 {
		printField("IPv4", fmt.Sprintf("%s/%d", valueStyle.Sprint(a.Address), a.Prefix))
	}
	for _, a := range rec.IPv6 {
		printField("IPv6", fmt.Sprintf("%s/%d", valueStyle.Sprint(a.Address), a.Prefix))
	}
	if len(rec.Flags) > 0 {
		printField("Flags", dimStyle.Sprint(strings.Join(rec.Flags, " ")))
	}
	if rec.DriverName != "" {
		printField("Driver", fmt.Sprintf("%s (v: %s)", valueStyle.Sprint(rec.DriverName), rec.DriverVersion))
	}
	if rec.BusInfo != "" {
		printField("Bus", rec.BusInfo)
	}
	if rec.PCIAddress != "" {
		printField("PCI", valueStyle.Sprint(rec.PCIAddress))
	}
	if rec.VendorName != "" || rec.DeviceName != "" {
		printField("Device", valueStyle.Sprintf("%s %s", rec.VendorName, rec.DeviceName))
	}
	if rec.MTU != nil {
		mtu := fmt.Sprintf("%d", *rec.MTU)
		if rec.Metric != nil {
			mtu += fmt.Sprintf(" (Metric: %d)", *rec.Metric)
		}
		printField("MTU", mtu)
	}
	if rec.Media != "" {
		printField("Media", dimStyle.Sprint(rec.Media))
	}
	if verbose && rec.Verbose != nil {
		if rec.Verbose.Features != nil {
			if active := rec.Verbose.Features.Active(); len(active) > 0 {
				printField("Features", strings.Join(active, " "))
			}
		}
		if r := rec.Verbose.Rings; r != nil && (r.RX > 0 || r.TX > 0) {
			printField("Rings", fmt.Sprintf("RX: %d, TX: %d", r.RX, r.TX))
		}
		if c := rec.Verbose.Channels; c != nil && (c.RX > 0 || c.TX > 0 || c.Other > 0 || c.Combined > 0) {
			printField("Channels", fmt.Sprintf("RX: %d, TX: %d, Other: %d, Combined: %d", c.RX, c.TX, c.Other, c.Combined))
		}
	}
	if rec.Stats.RxBytes > 0 || rec.Stats.TxBytes > 0 {
		printField("Stats", fmt.Sprintf("RX: %s (%s pkts), TX: %s (%s pkts)",
			humanize.Bytes(rec.Stats.RxBytes), humanize.Comma(int64(rec.Stats.RxPackets)),
			humanize.Bytes(rec.Stats.TxBytes), humanize.Comma(int64(rec.Stats.TxPackets))))
	}
	fmt.Println()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
