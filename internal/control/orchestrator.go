package control

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/solarmon/go-dess/internal/domain"
	"github.com/solarmon/go-dess/internal/jsontree"
	"github.com/solarmon/go-dess/internal/resolve"
)

// ErrNotConfigured is returned by every orchestrator entry point when the
// control collaborator was not wired in. This is a deployment defect, not a
// data-shape issue, and is therefore reported immediately instead of being
// absorbed like a resolution miss.
var ErrNotConfigured = errors.New("control: collaborator client not configured")

// outputPriorityControl is the logical name of the output-source priority
// control in the alias table.
const outputPriorityControl = "output_priority_option"

// Codec encodes logical direct-command names to command hex and decodes the
// raw response payload. Implementations live outside this package.
type Codec interface {
	CommandHex(name string) (string, error)
	Decode(name string, dat jsontree.Value) (jsontree.Value, error)
}

// Orchestrator combines the schema resolver with the control-read and
// control-write collaborators. All state is injected; the orchestrator
// itself is safe for concurrent use.
type Orchestrator struct {
	client domain.ControlClient
	codec  Codec
	logger zerolog.Logger
}

// NewOrchestrator creates an orchestrator around a control client. codec
// may be nil when the direct-command channel is not used.
func NewOrchestrator(client domain.ControlClient, codec Codec) *Orchestrator {
	return &Orchestrator{
		client: client,
		codec:  codec,
		logger: log.With().Str("component", "control").Logger(),
	}
}

// ReadOutputPriority resolves the output-priority control id from the live
// schema, reads its current encoded value through the collaborator and
// canonicalizes it via the device's own item dictionary. A schema without
// the control yields "" with no collaborator call; a collaborator failure
// propagates to the caller unmodified.
func (o *Orchestrator) ReadOutputPriority(ctx context.Context, dev domain.Device, schema jsontree.Value) (string, error) {
	if o.client == nil {
		return "", ErrNotConfigured
	}

	paramID := ResolveFieldID(schema, outputPriorityControl)
	if paramID == "" {
		return "", nil
	}

	// The item list is the device's own key -> label dictionary.
	keyToLabel := make(map[string]string)
	if entry, ok := jsontree.Find(schema, jsontree.Where("id", jsontree.String(paramID)), ciOpts); ok {
		if items, ok := entry.Get("item"); ok {
			for _, item := range items.Elems() {
				key, kok := item.Get("key")
				val, vok := item.Get("val")
				if !kok || !vok || key.IsNull() || val.IsNull() {
					continue
				}
				k := strings.ToUpper(strings.TrimSpace(key.Text()))
				v := strings.ToUpper(strings.TrimSpace(val.Text()))
				keyToLabel[k] = v
			}
		}
	}

	result, err := o.client.ReadParam(ctx, dev, paramID)
	if err != nil {
		return "", err
	}
	if result.Val.IsNull() {
		return "", nil
	}

	raw := strings.ToUpper(strings.TrimSpace(integerize(result.Val.Text())))
	code := raw
	if label, ok := keyToLabel[raw]; ok {
		code = label
	}
	return resolve.OutputPriorityLabel(jsontree.String(code)), nil
}

// WriteOutputPriority sets the output-source priority to the desired
// canonical label. The schema-driven path is attempted first and always
// takes precedence; any failure inside it downgrades to the hardcoded
// per-devcode tables. An unrecognized devcode or unmapped label is a no-op.
func (o *Orchestrator) WriteOutputPriority(ctx context.Context, dev domain.Device, label string, schema jsontree.Value) (domain.CtrlResult, error) {
	if o.client == nil {
		return domain.CtrlResult{}, ErrNotConfigured
	}

	if !schema.IsNull() {
		if res, ok := o.schemaWrite(ctx, dev, label, schema); ok {
			return res, nil
		}
	}

	fb, ok := devcodeFallbacks[dev.Devcode]
	if !ok {
		o.logger.Debug().Int("devcode", dev.Devcode).Msg("No output-priority fallback for devcode")
		return domain.CtrlResult{NoOp: true}, nil
	}
	value, ok := fb.values[label]
	if !ok {
		return domain.CtrlResult{NoOp: true}, nil
	}

	resp, err := o.client.WriteParam(ctx, dev, fb.paramID, value)
	if err != nil {
		return domain.CtrlResult{}, err
	}
	return domain.CtrlResult{ParamID: fb.paramID, Value: value, Response: resp}, nil
}

// schemaWrite is the schema-driven write attempt. The boolean result makes
// the "schema path unavailable" outcome an explicit branch: false means the
// caller should fall through to the hardcoded tables, whatever the cause.
func (o *Orchestrator) schemaWrite(ctx context.Context, dev domain.Device, label string, schema jsontree.Value) (domain.CtrlResult, bool) {
	paramID := ResolveFieldID(schema, outputPriorityControl)
	if paramID == "" {
		return domain.CtrlResult{}, false
	}
	entry, ok := jsontree.Find(schema, jsontree.Where("id", jsontree.String(paramID)), ciOpts)
	if !ok {
		return domain.CtrlResult{}, false
	}
	items, ok := entry.Get("item")
	if !ok || items.Kind() != jsontree.KindArray {
		return domain.CtrlResult{}, false
	}

	wanted := resolve.OutputPriorityLabel(jsontree.String(label))
	accepted := map[string]bool{wanted: true}
	if wanted == "SUB" && !schemaHasLabel(items, "SUB") {
		// Models without a distinct SUB entry conflate sub mode into
		// utility mode. This substitution applies to SUB only.
		accepted["Utility"] = true
	}

	for _, item := range items.Elems() {
		val, vok := item.Get("val")
		if !vok || !accepted[resolve.OutputPriorityLabel(val)] {
			continue
		}
		key, kok := item.Get("key")
		if !kok || key.IsNull() {
			break
		}
		resp, err := o.client.WriteParam(ctx, dev, paramID, key.Text())
		if err != nil {
			o.logger.Debug().Err(err).
				Str("param_id", paramID).
				Msg("Schema-driven write failed, falling back to devcode tables")
			return domain.CtrlResult{}, false
		}
		return domain.CtrlResult{ParamID: paramID, Value: key.Text(), Response: resp}, true
	}
	return domain.CtrlResult{}, false
}

func schemaHasLabel(items jsontree.Value, label string) bool {
	for _, item := range items.Elems() {
		if val, ok := item.Get("val"); ok {
			if resolve.OutputPriorityLabel(val) == label {
				return true
			}
		}
	}
	return false
}

// DirectData issues a logical direct command through the binary
// side-channel: the injected codec supplies the command hex and decodes the
// response payload.
func (o *Orchestrator) DirectData(ctx context.Context, dev domain.Device, cmdName string) (jsontree.Value, error) {
	if o.client == nil || o.codec == nil {
		return jsontree.Null(), ErrNotConfigured
	}
	cmdHex, err := o.codec.CommandHex(cmdName)
	if err != nil {
		return jsontree.Null(), err
	}
	resp, err := o.client.SendDirectCommand(ctx, dev, cmdHex)
	if err != nil {
		return jsontree.Null(), err
	}
	dat, _ := resp.Get("dat")
	return o.codec.Decode(cmdName, dat)
}

// integerize collapses an integer-valued numeric string to its integer
// form ("0.0" becomes "0"); non-numeric input passes through trimmed.
func integerize(s string) string {
	t := strings.TrimSpace(s)
	f, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return t
	}
	return strconv.FormatInt(int64(f), 10)
}

// fallbackTable is one model family's hand-maintained label -> encoded
// value map and the control parameter it applies to.
type fallbackTable struct {
	paramID string
	values  map[string]string
}

// devcodeFallbacks is used when no live schema is available or the
// schema-driven attempt failed.
var devcodeFallbacks = map[int]fallbackTable{
	2341: {
		paramID: "los_output_source_priority",
		values: map[string]string{
			"Utility": "0",
			"SUB":     "0",
			"Solar":   "1",
			"SBU":     "2",
		},
	},
	2428: {
		paramID: "bse_output_source_priority",
		values: map[string]string{
			"Utility": "12336",
			"SUB":     "12336",
			"Solar":   "12337",
			"SBU":     "12338",
		},
	},
	2376: {
		paramID: "bse_eybond_ctrl_49",
		values: map[string]string{
			"Utility": "0",
			"Solar":   "1",
			"SBU":     "2",
			"SUB":     "3",
			"SUF":     "4",
		},
	},
}
