//go:build linux

package socket

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/rigado/hciuart"
	"golang.org/x/sys/unix"
)

// ioctl request encoding, asm-generic/ioctl.h
func ioc(dir, nr uintptr) uintptr {
	const typHCI = 'H'
	const size = 4
	return dir<<30 | size<<16 | typHCI<<8 | nr
}

var (
	hciDevDown    = ioc(1, 202)
	hciGetDevList = ioc(2, 210)
)

const (
	maxDevices = 16

	// DefaultReadTimeout bounds a Read that sees no traffic.
	DefaultReadTimeout = time.Second

	pollErr = int16(unix.POLLHUP | unix.POLLNVAL | unix.POLLERR)
	pollIn  = int16(unix.POLLIN)

	flushTimeoutMS = 20
	retryInterval  = time.Second
)

type devListReq struct {
	num  uint16
	devs [maxDevices]struct {
		id  uint16
		opt uint32
	}
}

func ioctl(fd, op, arg uintptr) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, op, arg); errno != 0 {
		return errno
	}
	return nil
}

// Socket is an HCI user channel: exclusive raw access to one controller,
// one packet per Read and Write, H:4 type byte included.
type Socket struct {
	fd     int
	id     int
	log    hciuart.Logger
	closed atomic.Bool

	// ReadTimeout is how long Read polls before returning 0 bytes.
	ReadTimeout time.Duration

	rmu sync.Mutex
	wmu sync.Mutex
}

// Devices lists the controller indexes the kernel knows about.
func Devices() ([]int, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW, unix.BTPROTO_HCI)
	if err != nil {
		return nil, errors.Wrap(err, "can't create socket")
	}
	defer unix.Close(fd)

	req := devListReq{num: maxDevices}
	if err := ioctl(uintptr(fd), hciGetDevList, uintptr(unsafe.Pointer(&req))); err != nil {
		return nil, errors.Wrap(err, "can't get device list")
	}

	ids := make([]int, 0, req.num)
	for i := 0; i < int(req.num); i++ {
		ids = append(ids, int(req.devs[i].id))
	}
	return ids, nil
}

// Open binds the user channel of hci<id>. A busy device is retried every
// second until ctx is done. With id -1 the first device that binds is used.
func Open(ctx context.Context, id int, l hciuart.Logger) (*Socket, error) {
	l = hciuart.ComponentLogger(l, "hci-socket")

	if id == -1 {
		return openAny(l)
	}

	for {
		s, err := open(id, l)
		if err == nil {
			return s, nil
		}
		l.Warnf("hci%d: %v, retrying", id, err)

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(err, "hci%d", id)
		case <-time.After(retryInterval):
		}
	}
}

func openAny(l hciuart.Logger) (*Socket, error) {
	ids, err := Devices()
	if err != nil {
		return nil, err
	}

	var failed []string
	for _, id := range ids {
		s, err := open(id, l)
		if err == nil {
			return s, nil
		}
		failed = append(failed, fmt.Sprintf("hci%d: %v", id, err))
	}
	return nil, errors.Errorf("no controller available [%s]", strings.Join(failed, ", "))
}

func open(id int, l hciuart.Logger) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW, unix.BTPROTO_HCI)
	if err != nil {
		return nil, errors.Wrap(err, "can't create socket")
	}

	// the kernel only hands out the user channel of a downed device
	if err := ioctl(uintptr(fd), hciDevDown, uintptr(id)); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "can't down device")
	}
	if err := unix.Bind(fd, &unix.SockaddrHCI{Dev: uint16(id), Channel: unix.HCI_CHANNEL_USER}); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "can't bind user channel")
	}

	s := &Socket{
		fd:          fd,
		id:          id,
		log:         l.ChildLogger(map[string]interface{}{"dev": id}),
		ReadTimeout: DefaultReadTimeout,
	}
	if err := s.flush(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	s.log.Infof("bound hci%d user channel", id)
	return s, nil
}

// flush drops whatever the controller queued before the channel was ours.
func (s *Socket) flush() error {
	ready, err := s.poll(flushTimeoutMS)
	if err != nil || !ready {
		return err
	}
	b := make([]byte, 2048)
	_, err = unix.Read(s.fd, b)
	return errors.Wrap(err, "can't flush user channel")
}

func (s *Socket) poll(ms int) (bool, error) {
	pfds := []unix.PollFd{{Fd: int32(s.fd), Events: pollIn}}
	if _, err := unix.Poll(pfds, ms); err != nil && err != unix.EINTR {
		return false, errors.Wrap(err, "poll")
	}
	ev := pfds[0].Revents
	if ev&pollErr != 0 {
		return false, errors.Wrapf(io.EOF, "poll events 0x%04x", ev)
	}
	return ev&pollIn != 0, nil
}

// Read returns one packet, or 0 and no error when nothing arrived within
// ReadTimeout. A closed or hung up socket reads io.EOF.
func (s *Socket) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, io.EOF
	}

	s.rmu.Lock()
	defer s.rmu.Unlock()

	ready, err := s.poll(int(s.ReadTimeout / time.Millisecond))
	if err != nil {
		s.log.Error(err)
		return 0, io.EOF
	}
	if !ready {
		return 0, nil
	}

	n, err := unix.Read(s.fd, p)
	if s.closed.Load() {
		return 0, io.EOF
	}
	return n, errors.Wrap(err, "can't read hci socket")
}

func (s *Socket) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, io.EOF
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	n, err := unix.Write(s.fd, p)
	return n, errors.Wrap(err, "can't write hci socket")
}

func (s *Socket) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.log.Info("closing hci socket")

	// wait out a Read in progress
	s.rmu.Lock()
	defer s.rmu.Unlock()
	return errors.Wrap(unix.Close(s.fd), "can't close hci socket")
}

// ID is the bound device index.
func (s *Socket) ID() int {
	return s.id
}
