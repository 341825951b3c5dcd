package uart

import (
	"io"

	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
)

// DefaultSerialOptions are the port settings the framed protocol needs:
// 8N1 with hardware flow control, returning partial reads quickly so
// the assembler sees bytes as they arrive.
func DefaultSerialOptions(port string, baud uint) serial.OpenOptions {
	return serial.OpenOptions{
		PortName:              port,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		RTSCTSFlowControl:     true,
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
	}
}

// OpenPort opens the serial device behind an adapter.
func OpenPort(port string, baud uint) (io.ReadWriteCloser, error) {
	sp, err := serial.Open(DefaultSerialOptions(port, baud))
	return sp, errors.Wrapf(err, "opening %s", port)
}
