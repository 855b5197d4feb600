// Package cloud implements the vendor monitoring API collaborators: the
// telemetry snapshot sources and the control read/write channel. Request
// signing, retry and backoff are intentionally not implemented here.
package cloud

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/solarmon/go-dess/internal/config"
	"github.com/solarmon/go-dess/internal/domain"
	"github.com/solarmon/go-dess/internal/jsontree"
)

// API action names understood by the vendor endpoint.
const (
	actionLastData      = "querySPDeviceLastData"
	actionEnergyFlow    = "webQueryDeviceEnergyFlowEs"
	actionCtrlFields    = "queryDeviceCtrlField"
	actionCtrlValue     = "queryDeviceCtrlValue"
	actionCtrlDevice    = "ctrlDevice"
	actionDirectCommand = "sendDirectCommand"
	actionListDevices   = "webQueryDeviceEs"
)

// Client talks to the vendor cloud API. It implements both
// domain.SnapshotSource and domain.ControlClient.
type Client struct {
	baseURL    string
	token      string
	secret     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new vendor API client from configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    cfg.Cloud.BaseURL,
		token:      cfg.Cloud.Token,
		secret:     cfg.Cloud.Secret,
		httpClient: &http.Client{Timeout: cfg.CloudTimeout()},
		logger:     log.With().Str("component", "cloud").Logger(),
	}
}

// do performs one API request and unwraps the {err, desc, dat} envelope.
func (c *Client) do(ctx context.Context, action string, params url.Values) (jsontree.Value, error) {
	params.Set("action", action)
	params.Set("token", c.token)
	params.Set("secret", c.secret)
	params.Set("source", "1")

	reqURL := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return jsontree.Null(), fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return jsontree.Null(), fmt.Errorf("%s request failed: %w", action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return jsontree.Null(), fmt.Errorf("failed to read %s response: %w", action, err)
	}
	if resp.StatusCode != http.StatusOK {
		return jsontree.Null(), fmt.Errorf("%s returned status %d: %s", action, resp.StatusCode, string(body))
	}

	doc, err := jsontree.Parse(body)
	if err != nil {
		return jsontree.Null(), fmt.Errorf("failed to decode %s response: %w", action, err)
	}

	if errVal, ok := doc.Get("err"); ok {
		if code, isNum := errVal.Float64(); isNum && code != 0 {
			desc := ""
			if d, ok := doc.Get("desc"); ok {
				desc = d.Text()
			}
			return jsontree.Null(), fmt.Errorf("%s failed: err=%d desc=%q", action, int(code), desc)
		}
	}

	dat, _ := doc.Get("dat")
	return dat, nil
}

func deviceParams(dev domain.Device) url.Values {
	params := url.Values{}
	params.Set("pn", dev.PN)
	params.Set("sn", dev.SN)
	params.Set("devcode", strconv.Itoa(dev.Devcode))
	params.Set("devaddr", strconv.Itoa(dev.Devaddr))
	return params
}

// LastData returns the latest telemetry document for the device.
func (c *Client) LastData(ctx context.Context, dev domain.Device) (jsontree.Value, error) {
	return c.do(ctx, actionLastData, deviceParams(dev))
}

// EnergyFlow returns the energy-flow document for the device.
func (c *Client) EnergyFlow(ctx context.Context, dev domain.Device) (jsontree.Value, error) {
	return c.do(ctx, actionEnergyFlow, deviceParams(dev))
}

// CtrlFields returns the live control-field schema for the device.
func (c *Client) CtrlFields(ctx context.Context, dev domain.Device) (jsontree.Value, error) {
	return c.do(ctx, actionCtrlFields, deviceParams(dev))
}

// ReadParam reads the current encoded value of a control parameter.
func (c *Client) ReadParam(ctx context.Context, dev domain.Device, paramID string) (domain.CtrlValue, error) {
	params := deviceParams(dev)
	params.Set("id", paramID)

	dat, err := c.do(ctx, actionCtrlValue, params)
	if err != nil {
		return domain.CtrlValue{}, err
	}
	val, _ := dat.Get("val")
	return domain.CtrlValue{Val: val, Raw: dat}, nil
}

// WriteParam sets a control parameter to an encoded value.
func (c *Client) WriteParam(ctx context.Context, dev domain.Device, paramID, value string) (jsontree.Value, error) {
	params := deviceParams(dev)
	params.Set("id", paramID)
	params.Set("val", value)

	c.logger.Info().
		Str("pn", dev.PN).
		Str("param_id", paramID).
		Str("value", value).
		Msg("Writing control parameter")

	return c.do(ctx, actionCtrlDevice, params)
}

// SendDirectCommand issues a raw command on the binary side-channel.
func (c *Client) SendDirectCommand(ctx context.Context, dev domain.Device, commandHex string) (jsontree.Value, error) {
	params := deviceParams(dev)
	params.Set("hex", commandHex)

	dat, err := c.do(ctx, actionDirectCommand, params)
	if err != nil {
		return jsontree.Null(), err
	}
	// Callers expect the {dat: ...} envelope shape of the vendor response.
	return jsontree.Object(jsontree.Field("dat", dat)), nil
}

// Devices lists the devices visible to the account.
func (c *Client) Devices(ctx context.Context) ([]domain.Device, error) {
	params := url.Values{}
	params.Set("page", "0")
	params.Set("pagesize", "50")

	dat, err := c.do(ctx, actionListDevices, params)
	if err != nil {
		return nil, err
	}

	list, ok := dat.Get("device")
	if !ok {
		return nil, nil
	}

	var devices []domain.Device
	for _, item := range list.Elems() {
		dev := domain.Device{}
		if v, ok := item.Get("pn"); ok {
			dev.PN = v.Text()
		}
		if v, ok := item.Get("sn"); ok {
			dev.SN = v.Text()
		}
		if v, ok := item.Get("devcode"); ok {
			dev.Devcode = int(resolveInt(v))
		}
		if v, ok := item.Get("devaddr"); ok {
			dev.Devaddr = int(resolveInt(v))
		}
		if v, ok := item.Get("devalias"); ok {
			dev.Alias = v.Text()
		}
		if dev.PN != "" {
			devices = append(devices, dev)
		}
	}
	return devices, nil
}

func resolveInt(v jsontree.Value) int64 {
	if f, ok := v.Float64(); ok {
		return int64(f)
	}
	if n, err := strconv.ParseInt(v.Text(), 10, 64); err == nil {
		return n
	}
	return 0
}
