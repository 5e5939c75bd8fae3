package h4

import (
	"io"
	"sync"

	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	"github.com/rigado/hciuart"
)

// SerialConfig selects the UART facing the host.
type SerialConfig struct {
	Path     string
	Baud     uint
	FIFOSize int
}

// SerialPort is a FIFOPort wired to a real serial device: a reader goroutine
// injects received bytes and a writer goroutine shifts the tx FIFO out.
type SerialPort struct {
	*FIFOPort

	sp   io.ReadWriteCloser
	log  hciuart.Logger
	done chan struct{}
	cmu  sync.Mutex
	wg   sync.WaitGroup
}

// OpenSerialDevice opens path as a raw 8N1 port with a short inter-character
// timeout so reads return periodically.
func OpenSerialDevice(path string, baud uint) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              path,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
	}
	sp, err := serial.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open %s", path)
	}
	return sp, nil
}

// OpenSerial opens the device in cfg and starts its pumps.
func OpenSerial(cfg SerialConfig, l hciuart.Logger) (*SerialPort, error) {
	sp, err := OpenSerialDevice(cfg.Path, cfg.Baud)
	if err != nil {
		return nil, err
	}
	return NewSerialPort(sp, cfg.FIFOSize, l), nil
}

// NewSerialPort runs the pumps over an already opened stream.
func NewSerialPort(sp io.ReadWriteCloser, fifoSize int, l hciuart.Logger) *SerialPort {
	p := &SerialPort{
		FIFOPort: NewFIFOPort("uart", fifoSize, sp),
		sp:       sp,
		log:      hciuart.ComponentLogger(l, "serial"),
		done:     make(chan struct{}),
	}

	p.wg.Add(2)
	go p.rxLoop()
	go p.txLoop()
	return p
}

func (p *SerialPort) rxLoop() {
	defer p.wg.Done()

	tmp := make([]byte, 512)
	for {
		select {
		case <-p.done:
			p.log.Debug("rxLoop killed")
			return
		default:
		}

		n, err := p.sp.Read(tmp)
		if n > 0 {
			if acc := p.Inject(tmp[:n]); acc < n {
				p.log.Warnf("rx overrun: dropped %d of %d bytes", n-acc, n)
			}
		}
		if err != nil && err != io.EOF {
			select {
			case <-p.done:
				return
			default:
				p.log.Debugf("read: %v", err)
			}
		}
	}
}

func (p *SerialPort) txLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case <-p.Kick():
			for p.Shift() > 0 {
			}
		}
	}
}

func (p *SerialPort) Close() error {
	p.cmu.Lock()
	defer p.cmu.Unlock()

	select {
	case <-p.done:
		return nil
	default:
	}

	close(p.done)
	p.DisableRx()
	p.DisableTx()
	err := p.sp.Close()
	p.wg.Wait()
	return errors.Wrap(err, "can't close serial port")
}
