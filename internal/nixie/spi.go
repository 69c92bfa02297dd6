package nixie

import (
	"fmt"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// DefaultSPIFreq is the shift register clock rate.
const DefaultSPIFreq = 100 * physic.KiloHertz

// SPIBus is a connection to the shift registers over SPI mode 0, 8 bit words.
type SPIBus struct {
	port spi.PortCloser
	conn spi.Conn
}

// OpenSPI opens the named SPI port ("" for the first available) and connects
// at freq.
func OpenSPI(name string, freq physic.Frequency) (*SPIBus, error) {
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", name, err)
	}
	bus, err := ConnectSPI(port, freq)
	if err != nil {
		return nil, multierr.Append(err, port.Close())
	}
	return bus, nil
}

// ConnectSPI connects to an already open port.
func ConnectSPI(port spi.PortCloser, freq physic.Frequency) (*SPIBus, error) {
	c, err := port.Connect(freq, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("connect spi at %s: %w", freq, err)
	}
	return &SPIBus{port: port, conn: c}, nil
}

// Tx implements Transport.
func (b *SPIBus) Tx(w, r []byte) error {
	return b.conn.Tx(w, r)
}

// Close releases the port.
func (b *SPIBus) Close() error {
	return b.port.Close()
}
