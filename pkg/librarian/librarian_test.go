package librarian

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/james-see/td3pattern/pkg/converter"
	"github.com/james-see/td3pattern/pkg/converter/devices"
)

type call struct {
	desc string
	data []byte
}

// scriptedDevice replies to requests from a queue
type scriptedDevice struct {
	replies [][]byte
	err     error
	calls   []call
}

func (d *scriptedDevice) Request(_ context.Context, desc string, data []byte) ([]byte, error) {
	d.calls = append(d.calls, call{desc, append([]byte(nil), data...)})
	if d.err != nil {
		return nil, d.err
	}
	if len(d.replies) == 0 {
		return nil, errors.New("no scripted reply")
	}
	r := d.replies[0]
	d.replies = d.replies[1:]
	return r, nil
}

var (
	productReply  = []byte{0x07, 'T', 'D', '-', '3', 0x00}
	firmwareReply = []byte{0x09, 0x00, 1, 0, 6}
)

func TestIdentify(t *testing.T) {
	dev := &scriptedDevice{replies: [][]byte{productReply, firmwareReply}}
	lib := New(dev, nil)

	id, err := lib.Identify(context.Background())
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if id.ProductName != "TD-3" {
		t.Errorf("ProductName = %q, want TD-3", id.ProductName)
	}
	if id.Firmware != "1.0.6" {
		t.Errorf("Firmware = %q, want 1.0.6", id.Firmware)
	}

	if len(dev.calls) != 2 {
		t.Fatalf("got %d requests, want 2", len(dev.calls))
	}
	if !bytes.Equal(dev.calls[0].data, []byte{0x06}) || !bytes.Equal(dev.calls[1].data, []byte{0x08, 0x00}) {
		t.Errorf("requests = % X, % X", dev.calls[0].data, dev.calls[1].data)
	}
}

func TestIdentifyWrongDevice(t *testing.T) {
	dev := &scriptedDevice{replies: [][]byte{{0x07, 'T', 'D', '-', '0', 0x00}}}
	_, err := New(dev, nil).Identify(context.Background())
	if err == nil || !strings.Contains(err.Error(), "TD-0") {
		t.Errorf("Identify() error = %v, want product name mismatch", err)
	}
	if len(dev.calls) != 1 {
		t.Errorf("got %d requests, want 1", len(dev.calls))
	}
}

func TestIdentifyShortReplies(t *testing.T) {
	dev := &scriptedDevice{replies: [][]byte{{0x07}}}
	if _, err := New(dev, nil).Identify(context.Background()); err == nil {
		t.Error("Identify() expected error for short product name reply")
	}

	dev = &scriptedDevice{replies: [][]byte{productReply, {0x09, 0x00}}}
	if _, err := New(dev, nil).Identify(context.Background()); err == nil {
		t.Error("Identify() expected error for short firmware reply")
	}
}

func TestDownload(t *testing.T) {
	td3 := devices.NewTD3()
	want := converter.NewPattern()
	want.ActiveSteps = 8
	want.Steps[2] = converter.Step{Note: 4, Transpose: converter.TransposeUp, Accent: true, Time: converter.TimeNormal}
	slot := converter.Slot{Group: 1, Pattern: 3, AB: 1}

	dump, err := td3.EncodePattern(want, slot)
	if err != nil {
		t.Fatalf("EncodePattern() error = %v", err)
	}
	dev := &scriptedDevice{replies: [][]byte{dump}}

	got, err := New(dev, td3).Download(context.Background(), slot)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if *got != *want {
		t.Errorf("Download() = %+v, want %+v", *got, *want)
	}
	if !bytes.Equal(dev.calls[0].data, []byte{0x77, 0x01, 0x0B}) {
		t.Errorf("request = % X, want 77 01 0B", dev.calls[0].data)
	}
}

func TestDownloadErrors(t *testing.T) {
	lib := New(&scriptedDevice{}, nil)
	if _, err := lib.Download(context.Background(), converter.Slot{Group: 7}); err == nil {
		t.Error("Download() expected error for invalid slot")
	}

	dev := &scriptedDevice{replies: [][]byte{{0x78, 0x00}}}
	_, err := New(dev, nil).Download(context.Background(), converter.Slot{})
	if !errors.Is(err, converter.ErrPayloadSize) {
		t.Errorf("Download() error = %v, want ErrPayloadSize", err)
	}

	dev = &scriptedDevice{replies: [][]byte{{0x09, 0x00}}}
	if _, err := New(dev, nil).Download(context.Background(), converter.Slot{}); err == nil {
		t.Error("Download() expected error for non-dump reply")
	}

	boom := errors.New("timeout")
	dev = &scriptedDevice{err: boom}
	if _, err := New(dev, nil).Download(context.Background(), converter.Slot{}); !errors.Is(err, boom) {
		t.Errorf("Download() error = %v, want %v", err, boom)
	}
}

func TestUpload(t *testing.T) {
	dev := &scriptedDevice{replies: [][]byte{{0x78}}}
	lib := New(dev, nil)
	slot := converter.Slot{Group: 3, Pattern: 7, AB: 0}

	if err := lib.Upload(context.Background(), slot, converter.NewPattern()); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	sent := dev.calls[0].data
	if len(sent) != devices.PayloadSize {
		t.Fatalf("sent %d bytes, want %d", len(sent), devices.PayloadSize)
	}
	if sent[0] != 0x78 || sent[1] != 0x03 || sent[2] != 0x07 {
		t.Errorf("dump header = % X, want 78 03 07", sent[:3])
	}
}

func TestUploadValidatesFirst(t *testing.T) {
	dev := &scriptedDevice{}
	lib := New(dev, nil)

	bad := converter.NewPattern()
	bad.Steps[0].Transpose = 5
	if err := lib.Upload(context.Background(), converter.Slot{}, bad); !errors.Is(err, converter.ErrMalformedField) {
		t.Errorf("Upload() error = %v, want ErrMalformedField", err)
	}
	if err := lib.Upload(context.Background(), converter.Slot{AB: 3}, converter.NewPattern()); err == nil {
		t.Error("Upload() expected error for invalid slot")
	}
	if len(dev.calls) != 0 {
		t.Errorf("Upload() sent %d requests for invalid input", len(dev.calls))
	}
}
