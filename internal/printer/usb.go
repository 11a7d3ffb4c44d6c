package printer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"
)

// ErrDeviceNotFound is returned when no device matches the vendor/product pair.
var ErrDeviceNotFound = errors.New("usb printer not found")

type outEndpoint interface {
	WriteContext(ctx context.Context, buf []byte) (int, error)
}

// USBPrinter owns a USB printer for the lifetime of the process. It must be
// released with Close.
type USBPrinter struct {
	mu        sync.Mutex
	usb       *gousb.Context
	device    *gousb.Device
	release   func()
	out       outEndpoint
	feedLines int
	logger    *logrus.Logger
}

// OpenUSB claims the printer identified by vendorID/productID and its first
// bulk OUT endpoint.
func OpenUSB(vendorID, productID uint16, feedLines int, logger *logrus.Logger) (*USBPrinter, error) {
	usbCtx := gousb.NewContext()

	device, err := usbCtx.OpenDeviceWithVIDPID(gousb.ID(vendorID), gousb.ID(productID))
	if err != nil {
		usbCtx.Close()
		return nil, fmt.Errorf("open usb device %04x:%04x: %w", vendorID, productID, err)
	}
	if device == nil {
		usbCtx.Close()
		return nil, fmt.Errorf("%w: %04x:%04x", ErrDeviceNotFound, vendorID, productID)
	}

	if err := device.SetAutoDetach(true); err != nil {
		logger.WithError(err).Debug("Kernel driver auto-detach unavailable")
	}

	intf, done, err := device.DefaultInterface()
	if err != nil {
		device.Close()
		usbCtx.Close()
		return nil, fmt.Errorf("claim usb interface: %w", err)
	}

	epNum, ok := bulkOutEndpoint(intf.Setting)
	if !ok {
		done()
		device.Close()
		usbCtx.Close()
		return nil, fmt.Errorf("usb device %04x:%04x has no bulk OUT endpoint", vendorID, productID)
	}
	out, err := intf.OutEndpoint(epNum)
	if err != nil {
		done()
		device.Close()
		usbCtx.Close()
		return nil, fmt.Errorf("open OUT endpoint %d: %w", epNum, err)
	}

	logger.WithFields(logrus.Fields{
		"vendor_id":  fmt.Sprintf("0x%04x", vendorID),
		"product_id": fmt.Sprintf("0x%04x", productID),
		"endpoint":   epNum,
	}).Info("Connected to USB printer")

	return &USBPrinter{
		usb:       usbCtx,
		device:    device,
		release:   done,
		out:       out,
		feedLines: feedLines,
		logger:    logger,
	}, nil
}

func bulkOutEndpoint(setting gousb.InterfaceSetting) (int, bool) {
	var candidates []int
	for _, ep := range setting.Endpoints {
		if ep.Direction == gousb.EndpointDirectionOut && ep.TransferType == gousb.TransferTypeBulk {
			candidates = append(candidates, ep.Number)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	sort.Ints(candidates)
	return candidates[0], true
}

// Print writes the line and its paper feed to the device.
func (p *USBPrinter) Print(ctx context.Context, line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.out == nil {
		return fmt.Errorf("usb printer is closed")
	}

	data := render(line, p.feedLines)
	n, err := p.out.WriteContext(ctx, data)
	if err != nil {
		return fmt.Errorf("usb write: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("usb write: short write %d of %d bytes", n, len(data))
	}
	return nil
}

// Close releases the interface, the device and the USB context.
func (p *USBPrinter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.out == nil {
		return nil
	}
	p.out = nil

	if p.release != nil {
		p.release()
	}
	var err error
	if p.device != nil {
		err = p.device.Close()
	}
	if p.usb != nil {
		if cerr := p.usb.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
