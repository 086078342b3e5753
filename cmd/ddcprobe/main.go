// Command ddcprobe is a thin diagnostic harness over the ddc package,
// the same role cmd/tnctest plays for the TNC core: it exercises the
// library directly from the command line without attempting to be a
// general-purpose DDC/CI control surface. It has no EDID support, no
// MCCS feature-table decoding, and no profile save/load — those remain
// out of scope (spec.md §1).
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/kgreenek/ddcutil-go"
	"github.com/kgreenek/ddcutil-go/internal/busenum"
	"github.com/kgreenek/ddcutil-go/internal/ddcconfig"
)

func main() {
	var (
		bus         = pflag.IntP("bus", "b", -1, "I2C bus number (/dev/i2c-N)")
		configPath  = pflag.StringP("config", "c", "", "path to an optional YAML config file")
		vcp         = pflag.String("vcp", "", "VCP feature code in hex, e.g. 10")
		setValue    = pflag.String("value", "", "value to set (non-table) or hex bytes to write (table)")
		table       = pflag.Bool("table", false, "treat --vcp as a Table feature")
		listBuses   = pflag.Bool("list-buses", false, "list candidate /dev/i2c-* buses and exit")
		capabilites = pflag.Bool("capabilities", false, "read the Capabilities string")
		save        = pflag.Bool("save", false, "issue Save Current Settings")
		verbose     = pflag.BoolP("verbose", "v", false, "enable debug logging")
	)
	pflag.Parse()

	logger := log.Default()
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if *listBuses {
		runListBuses(logger)
		return
	}

	if *bus < 0 {
		fmt.Fprintln(os.Stderr, "ddcprobe: --bus is required (see --list-buses)")
		os.Exit(2)
	}

	cfg, err := ddcconfig.Load(*configPath)
	if err != nil {
		logger.Fatal("loading config", "err", err)
	}
	opts := ddc.OptionsFromConfig(cfg)
	opts.Logger = logger

	h, err := ddc.Open(*bus, opts)
	if err != nil {
		logger.Fatal("opening bus", "bus", *bus, "err", err)
	}
	defer h.Close()

	switch {
	case *save:
		runSave(h, logger)
	case *capabilites:
		runCapabilities(h, logger)
	case *vcp != "" && *setValue != "":
		runSet(h, logger, *vcp, *setValue, *table)
	case *vcp != "":
		runGet(h, logger, *vcp, *table)
	default:
		pflag.Usage()
		os.Exit(2)
	}
}

func runListBuses(logger *log.Logger) {
	buses, err := busenum.List()
	if err != nil {
		logger.Fatal("listing buses", "err", err)
	}
	for _, b := range buses {
		fmt.Printf("%d\t%s\t%s\n", b.Number, b.DevicePath, b.AdapterName)
	}
}

func runSave(h *ddc.Handle, logger *log.Logger) {
	if err := h.SaveSettings(); err != nil {
		logger.Fatal("save settings", "err", err)
	}
	fmt.Println("ok")
}

func runCapabilities(h *ddc.Handle, logger *log.Logger) {
	caps, err := h.GetCapabilities()
	if err != nil {
		logger.Fatal("get capabilities", "err", err)
	}
	fmt.Println(string(caps))
}

func runGet(h *ddc.Handle, logger *log.Logger, vcpHex string, isTable bool) {
	vcp := parseVCP(logger, vcpHex)

	if isTable {
		data, err := h.GetTableVCP(vcp)
		if err != nil {
			logger.Fatal("get table vcp", "vcp", vcpHex, "err", err)
		}
		fmt.Println(hex.EncodeToString(data))
		return
	}

	val, err := h.GetNonTableVCP(vcp)
	if err != nil {
		logger.Fatal("get vcp", "vcp", vcpHex, "err", err)
	}
	fmt.Printf("current=%d max=%d\n", val.CurrentValue, val.MaxValue)
}

func runSet(h *ddc.Handle, logger *log.Logger, vcpHex, value string, isTable bool) {
	vcp := parseVCP(logger, vcpHex)

	if isTable {
		data, err := hex.DecodeString(value)
		if err != nil {
			logger.Fatal("parsing --value as hex", "err", err)
		}
		if err := h.SetTableVCP(vcp, data); err != nil {
			logger.Fatal("set table vcp", "vcp", vcpHex, "err", err)
		}
		fmt.Println("ok")
		return
	}

	n, err := strconv.ParseUint(value, 10, 16)
	if err != nil {
		logger.Fatal("parsing --value as decimal", "err", err)
	}
	if err := h.SetNonTableVCP(vcp, uint16(n)); err != nil {
		logger.Fatal("set vcp", "vcp", vcpHex, "err", err)
	}
	fmt.Println("ok")
}

func parseVCP(logger *log.Logger, vcpHex string) byte {
	n, err := strconv.ParseUint(vcpHex, 16, 8)
	if err != nil {
		logger.Fatal("parsing --vcp as hex", "err", err)
	}
	return byte(n)
}
