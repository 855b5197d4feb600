package control

import (
	"context"
	"errors"
	"testing"

	"github.com/solarmon/go-dess/internal/domain"
	"github.com/solarmon/go-dess/internal/jsontree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeControlClient records calls and serves canned responses.
type fakeControlClient struct {
	readValues map[string]string // paramID -> encoded value
	readErr    error
	writeErr   error

	readCalls  []string
	writeCalls [][2]string // paramID, value
}

func (f *fakeControlClient) ReadParam(_ context.Context, _ domain.Device, paramID string) (domain.CtrlValue, error) {
	f.readCalls = append(f.readCalls, paramID)
	if f.readErr != nil {
		return domain.CtrlValue{}, f.readErr
	}
	val, ok := f.readValues[paramID]
	if !ok {
		return domain.CtrlValue{}, nil
	}
	return domain.CtrlValue{Val: jsontree.String(val)}, nil
}

func (f *fakeControlClient) WriteParam(_ context.Context, _ domain.Device, paramID, value string) (jsontree.Value, error) {
	f.writeCalls = append(f.writeCalls, [2]string{paramID, value})
	if f.writeErr != nil {
		return jsontree.Null(), f.writeErr
	}
	return jsontree.Object(jsontree.Field("status", jsontree.String("ok"))), nil
}

func (f *fakeControlClient) SendDirectCommand(_ context.Context, _ domain.Device, _ string) (jsontree.Value, error) {
	return jsontree.Null(), errors.New("not implemented")
}

// ctrlSchema2376 mirrors the control-field document of a model with a full
// five-way priority item list.
var ctrlSchema2376 = jsontree.MustParse([]byte(`{
	"field": [
		{"id": "bse_eybond_ctrl_49", "name": "Output priority", "item": [
			{"key": "0", "val": "Utility first"},
			{"key": "1", "val": "Solar first"},
			{"key": "2", "val": "SBU"},
			{"key": "3", "val": "SUB"},
			{"key": "4", "val": "SUF"}
		]}
	]
}`))

// ctrlSchemaNoSub mirrors an older model whose schema has no SUB entry.
var ctrlSchemaNoSub = jsontree.MustParse([]byte(`{
	"field": [
		{"id": "bse_output_source_priority", "name": "Output source priority", "item": [
			{"key": "12336", "val": "Utility first"},
			{"key": "12337", "val": "Solar first"},
			{"key": "12338", "val": "SBU first"}
		]}
	]
}`))

func TestReadOutputPriorityViaSchema(t *testing.T) {
	for raw, want := range map[string]string{
		"0":   "Utility",
		"0.0": "Utility",
		"2":   "SBU",
		"UTI": "Utility",
	} {
		client := &fakeControlClient{readValues: map[string]string{"bse_eybond_ctrl_49": raw}}
		o := NewOrchestrator(client, nil)

		label, err := o.ReadOutputPriority(context.Background(), domain.Device{PN: "P1"}, ctrlSchema2376)
		require.NoError(t, err)
		assert.Equal(t, want, label, "raw=%q", raw)
		assert.Equal(t, []string{"bse_eybond_ctrl_49"}, client.readCalls)
	}
}

func TestReadOutputPriorityDictionaryBeatsRawCode(t *testing.T) {
	// Key 3 maps to SUB in this device's own item dictionary.
	client := &fakeControlClient{readValues: map[string]string{"bse_eybond_ctrl_49": "3"}}
	o := NewOrchestrator(client, nil)

	label, err := o.ReadOutputPriority(context.Background(), domain.Device{}, ctrlSchema2376)
	require.NoError(t, err)
	assert.Equal(t, "SUB", label)
}

func TestReadOutputPrioritySchemaMissNoCall(t *testing.T) {
	client := &fakeControlClient{}
	o := NewOrchestrator(client, nil)

	label, err := o.ReadOutputPriority(context.Background(), domain.Device{}, jsontree.MustParse([]byte(`{"field": []}`)))
	require.NoError(t, err)
	assert.Equal(t, "", label)
	assert.Empty(t, client.readCalls, "an unresolvable schema must not hit the collaborator")
}

func TestReadOutputPriorityClientErrorPropagates(t *testing.T) {
	client := &fakeControlClient{readErr: errors.New("boom")}
	o := NewOrchestrator(client, nil)

	_, err := o.ReadOutputPriority(context.Background(), domain.Device{}, ctrlSchema2376)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestReadOutputPriorityNilClient(t *testing.T) {
	o := NewOrchestrator(nil, nil)
	_, err := o.ReadOutputPriority(context.Background(), domain.Device{}, ctrlSchema2376)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestWriteOutputPriorityViaSchema(t *testing.T) {
	client := &fakeControlClient{}
	o := NewOrchestrator(client, nil)

	res, err := o.WriteOutputPriority(context.Background(), domain.Device{Devcode: 2376}, "SUB", ctrlSchema2376)
	require.NoError(t, err)
	assert.Equal(t, "bse_eybond_ctrl_49", res.ParamID)
	assert.Equal(t, "3", res.Value)
	assert.False(t, res.NoOp)
	require.Len(t, client.writeCalls, 1)
	assert.Equal(t, [2]string{"bse_eybond_ctrl_49", "3"}, client.writeCalls[0])
}

func TestWriteOutputPrioritySubSubstitutesUtility(t *testing.T) {
	// The schema has no SUB entry, so SUB degrades to the Utility item.
	client := &fakeControlClient{}
	o := NewOrchestrator(client, nil)

	res, err := o.WriteOutputPriority(context.Background(), domain.Device{Devcode: 2428}, "SUB", ctrlSchemaNoSub)
	require.NoError(t, err)
	assert.Equal(t, "bse_output_source_priority", res.ParamID)
	assert.Equal(t, "12336", res.Value)
}

func TestWriteOutputPrioritySubstitutionIsSubOnly(t *testing.T) {
	// SUF has no entry in this schema and no substitution; the devcode
	// fallback table is used instead.
	client := &fakeControlClient{}
	o := NewOrchestrator(client, nil)

	res, err := o.WriteOutputPriority(context.Background(), domain.Device{Devcode: 2428}, "SUF", ctrlSchemaNoSub)
	require.NoError(t, err)
	assert.True(t, res.NoOp, "devcode 2428 has no SUF mapping either")
	assert.Empty(t, client.writeCalls)
}

func TestWriteOutputPriorityFallbackOnSchemaFailure(t *testing.T) {
	// First write (schema path) fails; the orchestrator retries through
	// the devcode table.
	client := &fakeControlClient{writeErr: errors.New("transient")}
	o := NewOrchestrator(client, nil)

	_, err := o.WriteOutputPriority(context.Background(), domain.Device{Devcode: 2376}, "SBU", ctrlSchema2376)
	// The fallback write also fails with the same injected error.
	require.Error(t, err)
	require.Len(t, client.writeCalls, 2)
	assert.Equal(t, [2]string{"bse_eybond_ctrl_49", "2"}, client.writeCalls[0])
	assert.Equal(t, [2]string{"bse_eybond_ctrl_49", "2"}, client.writeCalls[1])
}

func TestWriteOutputPriorityNullSchemaUsesDevcodeTable(t *testing.T) {
	client := &fakeControlClient{}
	o := NewOrchestrator(client, nil)

	res, err := o.WriteOutputPriority(context.Background(), domain.Device{Devcode: 2341}, "SBU", jsontree.Null())
	require.NoError(t, err)
	assert.Equal(t, "los_output_source_priority", res.ParamID)
	assert.Equal(t, "2", res.Value)

	res, err = o.WriteOutputPriority(context.Background(), domain.Device{Devcode: 2428}, "Solar", jsontree.Null())
	require.NoError(t, err)
	assert.Equal(t, "bse_output_source_priority", res.ParamID)
	assert.Equal(t, "12337", res.Value)
}

func TestWriteOutputPriorityUnknownDevcodeIsNoOp(t *testing.T) {
	client := &fakeControlClient{}
	o := NewOrchestrator(client, nil)

	res, err := o.WriteOutputPriority(context.Background(), domain.Device{Devcode: 9999}, "SBU", jsontree.Null())
	require.NoError(t, err)
	assert.True(t, res.NoOp)
	assert.Empty(t, client.writeCalls)
}

func TestWriteOutputPriorityUnknownLabelIsNoOp(t *testing.T) {
	client := &fakeControlClient{}
	o := NewOrchestrator(client, nil)

	res, err := o.WriteOutputPriority(context.Background(), domain.Device{Devcode: 2341}, "Banana", jsontree.Null())
	require.NoError(t, err)
	assert.True(t, res.NoOp)
	assert.Empty(t, client.writeCalls)
}

func TestWriteOutputPriorityNilClient(t *testing.T) {
	o := NewOrchestrator(nil, nil)
	_, err := o.WriteOutputPriority(context.Background(), domain.Device{Devcode: 2341}, "SBU", jsontree.Null())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestIntegerize(t *testing.T) {
	assert.Equal(t, "0", integerize("0.0"))
	assert.Equal(t, "3", integerize(" 3 "))
	assert.Equal(t, "12336", integerize("12336"))
	assert.Equal(t, "1.5", integerize("1.5"))
	assert.Equal(t, "UTI", integerize("UTI"))
}
