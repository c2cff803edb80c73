// Package librarian downloads and uploads TD-3 patterns over a SysEx session.
package librarian

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/james-see/td3pattern/pkg/converter"
	"github.com/james-see/td3pattern/pkg/converter/devices"
	"github.com/james-see/td3pattern/pkg/debug"
)

// Requester sends one SysEx request and returns the reply payload.
// *transport.Session implements it.
type Requester interface {
	Request(ctx context.Context, desc string, data []byte) ([]byte, error)
}

// Identity describes the connected device
type Identity struct {
	ProductName string `json:"productName"`
	Firmware    string `json:"firmware"`
}

// Librarian performs pattern transfers with a TD-3
type Librarian struct {
	req Requester
	td3 *devices.TD3
}

// New creates a librarian talking through req
func New(req Requester, td3 *devices.TD3) *Librarian {
	if td3 == nil {
		td3 = devices.NewTD3()
	}
	return &Librarian{req: req, td3: td3}
}

// Identify asks for the product name and firmware version and fails unless
// the device reports itself as a TD-3
func (l *Librarian) Identify(ctx context.Context) (*Identity, error) {
	resp, err := l.req.Request(ctx, "product name", l.td3.ProductNameRequest())
	if err != nil {
		return nil, err
	}
	// command echo first, NUL terminator last
	if len(resp) < 2 {
		return nil, fmt.Errorf("product name reply too short: % X", resp)
	}
	name := string(resp[1 : len(resp)-1])
	if name != devices.TD3ProductName {
		return nil, fmt.Errorf("product name is %q, expected %q", name, devices.TD3ProductName)
	}

	resp, err = l.req.Request(ctx, "firmware version", l.td3.FirmwareVersionRequest())
	if err != nil {
		return nil, err
	}
	if len(resp) < 3 {
		return nil, fmt.Errorf("firmware version reply too short: % X", resp)
	}
	parts := make([]string, 0, len(resp)-2)
	for _, b := range resp[2:] {
		parts = append(parts, strconv.Itoa(int(b)))
	}

	id := &Identity{ProductName: name, Firmware: strings.Join(parts, ".")}
	debug.Log("librarian", "identified %s firmware %s", id.ProductName, id.Firmware)
	return id, nil
}

// Download fetches the pattern stored in slot
func (l *Librarian) Download(ctx context.Context, slot converter.Slot) (*converter.Pattern, error) {
	req, err := l.td3.PatternRequest(slot)
	if err != nil {
		return nil, err
	}

	resp, err := l.req.Request(ctx, slot.String(), req)
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 || resp[0] != devices.CmdPatternDump {
		return nil, fmt.Errorf("%s: reply is not a pattern dump: % X", slot, resp[:min(len(resp), 4)])
	}

	pattern, err := l.td3.DecodePattern(resp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", slot, err)
	}
	debug.Log("librarian", "downloaded %s", slot)
	return pattern, nil
}

// Upload writes pattern into slot on the device
func (l *Librarian) Upload(ctx context.Context, slot converter.Slot, pattern *converter.Pattern) error {
	payload, err := l.td3.EncodePattern(pattern, slot)
	if err != nil {
		return err
	}

	if _, err := l.req.Request(ctx, slot.String(), payload); err != nil {
		return err
	}
	debug.Log("librarian", "uploaded %s", slot)
	return nil
}
