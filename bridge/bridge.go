// Package bridge assembles the H:4 UART transport, the raw controller
// stack and the timesync subsystem into one runnable bridge.
package bridge

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/hciuart"
	"github.com/rigado/hciuart/config"
	"github.com/rigado/hciuart/journal"
	"github.com/rigado/hciuart/linux/hci"
	"github.com/rigado/hciuart/linux/hci/controller"
	"github.com/rigado/hciuart/linux/hci/h4"
	"github.com/rigado/hciuart/linux/hci/socket"
	"github.com/rigado/hciuart/timesync"
)

// Hardware are the devices the bridge drives. Nil fields are opened or
// created from the configuration by Start.
type Hardware struct {
	Port             h4.Port
	Controller       io.ReadWriter
	Clock            timesync.Clock
	Timer            timesync.CompareTimer
	SyncLine         timesync.Line
	PresentationLine timesync.Line
	Report           io.Writer
}

type Bridge struct {
	cfg        *config.Config
	hw         Hardware
	log        hciuart.Logger
	errHandler func(error)
	// submitErrHandler sees packets the stack failed to forward. They are
	// already logged, counted and released.
	submitErrHandler func(error)

	h4           *h4.H4
	raw          *controller.Raw
	dispatcher   *h4.Dispatcher
	presentation *timesync.Presentation
	correlator   *timesync.Correlator

	closers []io.Closer
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	cmu     sync.Mutex
	started bool
}

// New validates cfg and applies opts on top of it. Nothing is opened yet.
func New(cfg *config.Config, hw Hardware, opts ...hciuart.Option) (*Bridge, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	c := *cfg

	b := &Bridge{
		cfg: &c,
		hw:  hw,
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, errors.Wrap(err, "can't set options")
		}
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	if b.log == nil {
		b.log = hciuart.GetLogger()
	}
	b.log = hciuart.ComponentLogger(b.log, "bridge")
	return b, nil
}

// Start opens the devices, wires the components and starts the dispatch
// and controller loops.
func (b *Bridge) Start(ctx context.Context) error {
	b.cmu.Lock()
	defer b.cmu.Unlock()
	if b.started {
		return errors.New("already started")
	}

	if err := b.openHardware(ctx); err != nil {
		b.closeAll()
		return err
	}

	cfg := b.cfg
	pool, err := hci.NewPool(cfg.Buffers)
	if err != nil {
		b.closeAll()
		return errors.Wrap(err, "buffers")
	}

	b.h4 = h4.New(b.hw.Port, pool, h4.Config{
		RxQueueSize: cfg.Queues.Inbound,
		TxQueueSize: cfg.Queues.Outbound,
	}, b.log)

	reg := hci.NewRegistry()
	b.raw = controller.NewRaw(b.hw.Controller, reg, b.log)
	b.raw.SetHost(b.h4)

	toggler := timesync.NewToggler(b.hw.Clock, b.hw.SyncLine, cfg.Timesync.ThresholdUS)
	if err := timesync.NewIsoTimesync(toggler, b.h4, b.log).Register(reg); err != nil {
		b.h4, b.raw = nil, nil
		b.closeAll()
		return err
	}

	// the file is rewritten on every append, keep it off the controller loop
	var j hciuart.Journal
	if cfg.Journal.Path != "" {
		aj := journal.NewAsync(journal.New(cfg.Journal.Path, cfg.Journal.Max), journal.DefaultQueueSize, b.log)
		b.closers = append(b.closers, aj)
		j = aj
	}
	b.correlator = timesync.NewCorrelator(toggler, b.hw.Report, j, b.log)
	b.raw.SetObserver(func(p *hci.Packet) { b.correlator.Observe(p) })

	b.presentation = timesync.NewPresentation(b.hw.Timer, b.hw.PresentationLine,
		time.Duration(cfg.Timesync.PresentationUS)*time.Microsecond, cfg.Timesync.ThresholdUS, b.log)
	if cfg.Timesync.StartupDelayUS > 0 {
		b.presentation.ArmIn(time.Duration(cfg.Timesync.StartupDelayUS) * time.Microsecond)
	}

	b.h4.Open()
	if cfg.WaitNOP {
		b.h4.SendNOP()
	}

	b.dispatcher = b.h4.Dispatcher(b.raw)
	if b.submitErrHandler != nil {
		b.dispatcher.SetErrorHandler(b.submitErrHandler)
	}

	ctx, b.cancel = context.WithCancel(ctx)
	b.run(ctx, "dispatch", b.dispatcher.Run)
	b.run(ctx, "controller", b.raw.Run)

	b.started = true
	b.log.Infof("bridge started on %s", cfg.Uart.Path)
	return nil
}

func (b *Bridge) run(ctx context.Context, name string, f func(context.Context) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		err := f(ctx)
		if err != nil && ctx.Err() == nil {
			b.dispatchError(errors.Wrap(err, name))
		}
	}()
}

func (b *Bridge) dispatchError(err error) {
	if err == nil {
		return
	}
	b.log.Error(err)
	if b.errHandler != nil {
		b.errHandler(err)
	}
}

func (b *Bridge) openHardware(ctx context.Context) error {
	cfg := b.cfg

	if b.hw.Port == nil {
		sp, err := h4.OpenSerial(h4.SerialConfig{
			Path:     cfg.Uart.Path,
			Baud:     cfg.Uart.Baud,
			FIFOSize: cfg.Uart.FIFOSize,
		}, b.log)
		if err != nil {
			return err
		}
		b.hw.Port = sp
		b.closers = append(b.closers, sp)
	}

	if b.hw.Controller == nil {
		octx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Controller.OpenTimeoutS)*time.Second)
		defer cancel()
		s, err := socket.Open(octx, cfg.Controller.HCIDev, b.log)
		if err != nil {
			return err
		}
		b.hw.Controller = s
		b.closers = append(b.closers, s)
	}

	if b.hw.Report == nil && cfg.Timesync.ReportPath != "" {
		r, err := h4.OpenSerialDevice(cfg.Timesync.ReportPath, cfg.Timesync.ReportBaud)
		if err != nil {
			return err
		}
		b.hw.Report = r
		b.closers = append(b.closers, r)
	}

	if b.hw.Clock == nil {
		b.hw.Clock = timesync.NewMonotonicClock()
	}
	if b.hw.Timer == nil {
		st := timesync.NewSoftTimer(b.hw.Clock)
		b.hw.Timer = st
		b.closers = append(b.closers, closerFunc(func() error { st.Stop(); return nil }))
	}
	if b.hw.SyncLine == nil {
		b.hw.SyncLine = timesync.NewLogLine("timesync", b.log)
	}
	if b.hw.PresentationLine == nil {
		b.hw.PresentationLine = timesync.NewLogLine("alternate_toggle", b.log)
	}
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Send queues a packet for the host.
func (b *Bridge) Send(p *hci.Packet) error {
	if b.h4 == nil {
		return hci.ErrClosed
	}
	return b.h4.Send(p)
}

// Fatal reports an unrecoverable fault to the host and halts the transport.
func (b *Bridge) Fatal(file string, line uint32) {
	if b.h4 == nil {
		return
	}
	b.h4.Fatal(file, line)
}

// Presentation exposes the deferred toggle so callers can re-arm it.
func (b *Bridge) Presentation() *timesync.Presentation {
	return b.presentation
}

// Stats summarizes the transport counters.
type Stats struct {
	Framer       h4.FramerStats
	Sent         uint64
	Forwarded    uint64
	Handled      uint64
	SubmitErrors uint64
}

func (b *Bridge) Stats() Stats {
	if b.h4 == nil || b.dispatcher == nil {
		return Stats{}
	}
	return Stats{
		Framer:       b.h4.Stats(),
		Sent:         b.h4.Sent(),
		Forwarded:    b.dispatcher.Forwarded(),
		Handled:      b.dispatcher.Handled(),
		SubmitErrors: b.dispatcher.Errors(),
	}
}

// Close stops the loops and closes everything Start opened.
func (b *Bridge) Close() error {
	b.cmu.Lock()
	defer b.cmu.Unlock()

	if b.cancel != nil {
		b.cancel()
	}
	err := b.closeAll()
	b.wg.Wait()
	b.started = false
	return err
}

func (b *Bridge) closeAll() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}
