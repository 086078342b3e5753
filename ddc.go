// Package ddc is the public, upward-facing API of the DDC/CI exchange
// core (spec.md §6): open a monitor's I²C bus, read and write VCP
// features and the Table-feature/Capabilities multi-part protocols, and
// inspect the process-wide retry statistics.
//
// Everything below this package's surface — codec, transport, delay
// policy, retry driver, multi-part assembler/segmenter, statistics — is
// unexported under internal/, the same way the teacher keeps its
// port-specific machinery out of cmd/ and behind a small set of entry
// points.
package ddc

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kgreenek/ddcutil-go/internal/ddcconfig"
	"github.com/kgreenek/ddcutil-go/internal/ddcdelay"
	"github.com/kgreenek/ddcutil-go/internal/ddcerr"
	"github.com/kgreenek/ddcutil-go/internal/ddcexchange"
	"github.com/kgreenek/ddcutil-go/internal/ddcmultipart"
	"github.com/kgreenek/ddcutil-go/internal/ddcretry"
	"github.com/kgreenek/ddcutil-go/internal/ddcstats"
	"github.com/kgreenek/ddcutil-go/internal/ddctransport"
	"github.com/kgreenek/ddcutil-go/internal/ddcwire"
)

// Re-export the error taxonomy so callers can errors.Is/As against it
// without importing an internal package.
type Error = ddcerr.Error

const (
	BusError                  = ddcerr.BusError
	ShortRead                 = ddcerr.ShortRead
	ChecksumError             = ddcerr.ChecksumError
	BadByteCount              = ddcerr.BadByteCount
	InvalidData               = ddcerr.InvalidData
	NullResponse              = ddcerr.NullResponse
	AllZeroResponse           = ddcerr.AllZeroResponse
	ReportedUnsupported       = ddcerr.ReportedUnsupported
	MultiPartFragmentMismatch = ddcerr.MultiPartFragmentMismatch
	RetriesExceeded           = ddcerr.RetriesExceeded
	OperationUnsupported      = ddcerr.OperationUnsupported
)

// Class re-exports the statistics operation classes of spec.md §3.
type Class = ddcstats.Class

const (
	ClassWriteOnly      = ddcstats.WriteOnly
	ClassWriteRead      = ddcstats.WriteRead
	ClassMultiPartRead  = ddcstats.MultiPartRead
	ClassMultiPartWrite = ddcstats.MultiPartWrite
)

// Options configures Open, covering the full surface of spec.md §6.
type Options struct {
	MaxTriesWriteOnly         int
	MaxTriesWriteRead         int
	MaxTriesMultiPart         int
	ForceSlaveAddr            bool
	ReadTimeoutMs             int
	AllowAllZeroFirstFragment bool

	// Delay overrides the default backoff policy. Nil uses
	// ddcdelay.DefaultBackoff().
	Delay ddcdelay.Policy

	// Stats overrides the process-wide default registry. Nil uses
	// ddcstats.Default.
	Stats *ddcstats.Registry

	// Logger overrides the package default logger. Nil uses a
	// charmbracelet/log logger at Info level writing to stderr.
	Logger *log.Logger
}

// OptionsFromConfig builds Options from a loaded ddcconfig.Config,
// leaving Delay/Stats/Logger at their defaults.
func OptionsFromConfig(cfg ddcconfig.Config) Options {
	return Options{
		MaxTriesWriteOnly:         cfg.MaxTriesWriteOnly,
		MaxTriesWriteRead:         cfg.MaxTriesWriteRead,
		MaxTriesMultiPart:         cfg.MaxTriesMultiPart,
		ForceSlaveAddr:            cfg.ForceSlaveAddr,
		ReadTimeoutMs:             cfg.ReadTimeoutMs,
		AllowAllZeroFirstFragment: cfg.AllowAllZeroFirst,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxTriesWriteOnly == 0 {
		o.MaxTriesWriteOnly = 4
	}
	if o.MaxTriesWriteRead == 0 {
		o.MaxTriesWriteRead = 4
	}
	if o.MaxTriesMultiPart == 0 {
		o.MaxTriesMultiPart = 4
	}
	return o
}

// Handle is one open DDC/CI connection. Every exchange on a Handle is
// strictly serialized (spec.md §5 "Ordering guarantees"): Handle holds a
// mutex around the transport for the lifetime of one logical operation.
type Handle struct {
	mu       sync.Mutex
	bus      int
	t        *ddctransport.I2C
	delay    ddcdelay.Policy
	stats    *ddcstats.Registry
	log      *log.Logger
	opts     Options
}

// Open opens /dev/i2c-<busNo> and addresses the monitor's DDC/CI slave
// address (spec.md §4.2).
func Open(busNo int, opts Options) (*Handle, error) {
	opts = opts.withDefaults()

	t, err := ddctransport.Open(devicePath(busNo), ddctransport.Options{
		ForceSlave:  opts.ForceSlaveAddr,
		ReadTimeout: msToDuration(opts.ReadTimeoutMs),
	})
	if err != nil {
		return nil, fmt.Errorf("ddc: open bus %d: %w", busNo, err)
	}

	delay := opts.Delay
	if delay == nil {
		delay = ddcdelay.DefaultBackoff()
	}
	stats := opts.Stats
	if stats == nil {
		stats = ddcstats.Default
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	stats.SetMaxTries(ddcstats.WriteOnly, opts.MaxTriesWriteOnly)
	stats.SetMaxTries(ddcstats.WriteRead, opts.MaxTriesWriteRead)
	stats.SetMaxTries(ddcstats.MultiPartRead, opts.MaxTriesMultiPart)
	stats.SetMaxTries(ddcstats.MultiPartWrite, opts.MaxTriesMultiPart)

	return &Handle{
		bus:   busNo,
		t:     t,
		delay: delay,
		stats: stats,
		log:   logger,
		opts:  opts,
	}, nil
}

// Close releases the underlying transport.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.t.Close()
}

func devicePath(busNo int) string {
	return fmt.Sprintf("/dev/i2c-%d", busNo)
}

func msToDuration(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// NonTableValue is a typed view of spec.md §4.1's non-table VCP response
// layout.
type NonTableValue struct {
	MaxValue     uint16
	CurrentValue uint16
}

// GetNonTableVCP issues a Get-VCP request for vcpCode and returns its
// current/max value pair.
func (h *Handle) GetNonTableVCP(vcpCode byte) (NonTableValue, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	result, err := ddcretry.Do(h.stats, h.delay, ddcstats.WriteRead, h.stats.GetMaxTries(ddcstats.WriteRead), func() (ddcexchange.ReadResult, error) {
		return ddcexchange.WriteRead(h.t, h.delay, ddcexchange.Request{
			Kind:   ddcwire.GetVCPRequest,
			Opcode: vcpCode,
		}, ddcwire.GetVCPResponse, vcpCode, 11, false)
	})
	if err != nil {
		h.log.Debug("get-vcp failed", "vcp", vcpCode, "err", err)
		return NonTableValue{}, err
	}

	return NonTableValue{MaxValue: result.NonTable.MaxValue, CurrentValue: result.NonTable.CurrentValue}, nil
}

// SetNonTableVCP issues a Set-VCP request for vcpCode with value.
func (h *Handle) SetNonTableVCP(vcpCode byte, value uint16) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	payload := []byte{byte(value >> 8), byte(value)}
	_, err := ddcretry.Do(h.stats, h.delay, ddcstats.WriteOnly, h.stats.GetMaxTries(ddcstats.WriteOnly), func() (struct{}, error) {
		return struct{}{}, ddcexchange.WriteOnly(h.t, h.delay, ddcexchange.Request{
			Kind:    ddcwire.SetVCPRequest,
			Opcode:  vcpCode,
			Payload: payload,
		})
	})
	return err
}

// SaveSettings issues the "save current settings" command.
func (h *Handle) SaveSettings() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := ddcretry.Do(h.stats, h.delay, ddcstats.WriteOnly, h.stats.GetMaxTries(ddcstats.WriteOnly), func() (struct{}, error) {
		return struct{}{}, ddcexchange.WriteOnly(h.t, h.delay, ddcexchange.Request{Kind: ddcwire.SaveSettingsRequest})
	})
	return err
}

// GetCapabilities retrieves the monitor's Capabilities string via the
// multi-part read protocol (spec.md §4.6).
func (h *Handle) GetCapabilities() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.multiPartRead(ddcwire.CapabilitiesRequest, ddcwire.CapabilitiesResponse, 0)
}

// GetTableVCP retrieves a Table feature's value via the multi-part read
// protocol (spec.md §4.6).
func (h *Handle) GetTableVCP(vcpCode byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.multiPartRead(ddcwire.TableReadRequest, ddcwire.TableReadResponse, vcpCode)
}

func (h *Handle) multiPartRead(reqKind, respKind ddcwire.Kind, subtype byte) ([]byte, error) {
	maxTries := h.stats.GetMaxTries(ddcstats.MultiPartRead)

	return ddcmultipart.ReadAssembler(h.stats, h.delay, ddcstats.MultiPartRead, maxTries, h.opts.AllowAllZeroFirstFragment,
		func(offset int, allowAllZero bool) (ddcwire.Fragment, error) {
			var opcode byte
			var payload []byte
			if reqKind == ddcwire.TableReadRequest {
				opcode = subtype
				payload = ddcwire.MultiPartOffset(offset)
			} else {
				payload = ddcwire.MultiPartOffset(offset)
			}

			result, err := ddcexchange.WriteRead(h.t, h.delay, ddcexchange.Request{
				Kind:    reqKind,
				Opcode:  opcode,
				Payload: payload,
			}, respKind, subtype, 39, allowAllZero)
			if err != nil {
				return ddcwire.Fragment{}, err
			}
			return *result.Fragment, nil
		})
}

// SetTableVCP writes a Table feature's value via the multi-part write
// protocol (spec.md §4.7).
func (h *Handle) SetTableVCP(vcpCode byte, value []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	maxTries := h.stats.GetMaxTries(ddcstats.MultiPartWrite)

	return ddcmultipart.WriteSegmenter(h.stats, h.delay, ddcstats.MultiPartWrite, maxTries, value,
		func(offset int, data []byte) error {
			payload := append(ddcwire.MultiPartOffset(offset), data...)
			return ddcexchange.WriteOnly(h.t, h.delay, ddcexchange.Request{
				Kind:    ddcwire.TableWriteRequest,
				Opcode:  vcpCode,
				Payload: payload,
			})
		})
}

// StatsSetMaxTries sets the default registry's max_tries for class
// (spec.md §6 "stats_set_max_tries").
func StatsSetMaxTries(class Class, n int) { ddcstats.Default.SetMaxTries(class, n) }

// StatsReset resets the default registry's counters for class
// (spec.md §6 "stats_reset").
func StatsReset(class Class) { ddcstats.Default.Reset(class) }

// StatsReport returns a best-effort snapshot of the default registry's
// counters for class (spec.md §6 "stats_report").
func StatsReport(class Class, depth int) ddcstats.Snapshot { return ddcstats.Default.Report(class, depth) }
