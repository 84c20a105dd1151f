// internal/loader/modbus/client.go
package modbus

import (
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/pkg/errors"
)

// Mode selects the Modbus framing.
type Mode string

const (
	ModeTCP Mode = "tcp"
	ModeRTU Mode = "rtu"
)

// Config is minimal transport config.
type Config struct {
	Mode     Mode
	Endpoint string // host:port for TCP, serial device for RTU
	UnitID   uint8
	BaudRate int
	Timeout  time.Duration
}

type connector interface {
	Connect() error
	Close() error
}

// EndpointClient is a single connection to one bench controller.
// It serializes requests; the bridge issues several per call.
type EndpointClient struct {
	mu      sync.Mutex
	handler connector
	client  modbus.Client
}

// NewEndpointClient creates a connected client.
func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("loader modbus: endpoint required")
	}

	var (
		h      connector
		client modbus.Client
	)
	switch cfg.Mode {
	case ModeTCP, "":
		th := modbus.NewTCPClientHandler(cfg.Endpoint)
		th.Timeout = cfg.Timeout
		th.SlaveId = cfg.UnitID
		h, client = th, modbus.NewClient(th)

	case ModeRTU:
		rh := modbus.NewRTUClientHandler(cfg.Endpoint)
		rh.BaudRate = cfg.BaudRate
		rh.DataBits = 8
		rh.Parity = "N"
		rh.StopBits = 1
		rh.Timeout = cfg.Timeout
		rh.SlaveId = cfg.UnitID
		h, client = rh, modbus.NewClient(rh)

	default:
		return nil, errors.Errorf("loader modbus: unknown mode %q", cfg.Mode)
	}

	if err := h.Connect(); err != nil {
		return nil, errors.Wrapf(err, "loader modbus: connect %s", cfg.Endpoint)
	}

	return &EndpointClient{handler: h, client: client}, nil
}

func (c *EndpointClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

// ---- Registers interface ----

func (c *EndpointClient) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client.ReadHoldingRegisters(address, quantity)
}

func (c *EndpointClient) WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client.WriteMultipleRegisters(address, quantity, value)
}

func (c *EndpointClient) WriteSingleRegister(address, value uint16) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client.WriteSingleRegister(address, value)
}
