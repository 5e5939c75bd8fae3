//go:build !linux

package socket

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/rigado/hciuart"
)

// Socket is unavailable off Linux.
type Socket struct {
	io.ReadWriteCloser
}

// Open is a dummy function for non-Linux platforms.
func Open(ctx context.Context, id int, l hciuart.Logger) (*Socket, error) {
	return nil, errors.New("hci user channel only available on linux")
}

func (s *Socket) ID() int {
	return -1
}

func Devices() ([]int, error) {
	return nil, errors.New("hci user channel only available on linux")
}
