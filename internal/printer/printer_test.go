package printer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEndpoint struct {
	written [][]byte
	short   int
	err     error
}

func (f *fakeEndpoint) WriteContext(ctx context.Context, buf []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.written = append(f.written, append([]byte(nil), buf...))
	if f.short > 0 {
		return f.short, nil
	}
	return len(buf), nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestRender(t *testing.T) {
	assert.Equal(t, "[alice@discord] hello\n\n\n", string(render("[alice@discord] hello", 2)))
	assert.Equal(t, "line\n", string(render("line", 0)))
	assert.Equal(t, "line\n", string(render("line", -3)))
}

func TestWriterSink_Print(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf, 2)

	require.NoError(t, sink.Print(context.Background(), "[alice@discord] hello"))
	require.NoError(t, sink.Print(context.Background(), "[bob@discord] hi"))

	assert.Equal(t, "[alice@discord] hello\n\n\n[bob@discord] hi\n\n\n", buf.String())
}

func TestWriterSink_Errors(t *testing.T) {
	err := NewWriterSink(failingWriter{}, 0).Print(context.Background(), "x")
	assert.ErrorContains(t, err, "broken pipe")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewWriterSink(&bytes.Buffer{}, 0).Print(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func newTestPrinter(ep *fakeEndpoint) *USBPrinter {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return &USBPrinter{out: ep, feedLines: 2, logger: logger}
}

func TestUSBPrinter_Print(t *testing.T) {
	ep := &fakeEndpoint{}
	p := newTestPrinter(ep)

	require.NoError(t, p.Print(context.Background(), "[alice@discord] hello"))

	require.Len(t, ep.written, 1)
	assert.Equal(t, "[alice@discord] hello\n\n\n", string(ep.written[0]))
}

func TestUSBPrinter_PrintFaults(t *testing.T) {
	t.Run("device error", func(t *testing.T) {
		p := newTestPrinter(&fakeEndpoint{err: errors.New("libusb: no device [code -4]")})

		err := p.Print(context.Background(), "x")
		assert.ErrorContains(t, err, "usb write")
	})

	t.Run("short write", func(t *testing.T) {
		p := newTestPrinter(&fakeEndpoint{short: 1})

		err := p.Print(context.Background(), "hello")
		assert.ErrorContains(t, err, "short write")
	})

	t.Run("closed", func(t *testing.T) {
		p := newTestPrinter(&fakeEndpoint{})
		require.NoError(t, p.Close())
		require.NoError(t, p.Close())

		assert.ErrorContains(t, p.Print(context.Background(), "x"), "closed")
	})
}

func TestBulkOutEndpoint(t *testing.T) {
	setting := gousb.InterfaceSetting{
		Endpoints: map[gousb.EndpointAddress]gousb.EndpointDesc{
			0x81: {Number: 1, Direction: gousb.EndpointDirectionIn, TransferType: gousb.TransferTypeBulk},
			0x03: {Number: 3, Direction: gousb.EndpointDirectionOut, TransferType: gousb.TransferTypeBulk},
			0x02: {Number: 2, Direction: gousb.EndpointDirectionOut, TransferType: gousb.TransferTypeBulk},
			0x04: {Number: 4, Direction: gousb.EndpointDirectionOut, TransferType: gousb.TransferTypeInterrupt},
		},
	}

	num, ok := bulkOutEndpoint(setting)
	assert.True(t, ok)
	assert.Equal(t, 2, num)

	_, ok = bulkOutEndpoint(gousb.InterfaceSetting{})
	assert.False(t, ok)
}
