// Package attrplugin implements the device-attributes plugin (spec §6):
// it receives ATTRIBUTES datagrams over the control socket and enqueues
// their timestamp and JSON body for upload, grounded on the original's
// plugins/attributes/attributes.c (prv_build_queue_entry /
// prv_msg_handler).
package attrplugin

import (
	"encoding/json"

	"github.com/ticos-device/ticosd/internal/daemonerr"
	"github.com/ticos-device/ticosd/internal/interfaces"
	"github.com/ticos-device/ticosd/internal/ipcwire"
	"github.com/ticos-device/ticosd/internal/logging"
	"github.com/ticos-device/ticosd/internal/queue"
)

// Record is the queue payload for an Attributes TxRecord (spec §3:
// "Attributes { timestamp_epoch_s: u64, json_body: bytes }"). The capture
// timestamp travels with the JSON body so the supervisor can format the
// eventual PATCH request's captured_date from the moment the attributes
// were captured, not from drain time, matching the original's
// prv_build_queue_entry (attributes.c: "data->timestamp = msg->timestamp").
type Record struct {
	TimestampEpochS uint64          `json:"timestamp_epoch_s"`
	JSONBody        json.RawMessage `json:"json_body"`
}

// Plugin forwards attributes datagrams into the upload queue.
type Plugin struct {
	log *logging.Logger
	q   *queue.Queue
	obs interfaces.Observer
}

// New constructs the attributes plugin. obs may be nil.
func New(log *logging.Logger, q *queue.Queue, obs interfaces.Observer) *Plugin {
	return &Plugin{log: log, q: q, obs: obs}
}

func (p *Plugin) Name() string      { return "attributes" }
func (p *Plugin) IPCPrefix() string { return ipcwire.TagAttributes }

// HandleIPC decodes an ATTRIBUTES datagram and enqueues its timestamp and
// JSON body as an Attributes record (spec §3). The original re-encodes
// timestamp+json into its own TxData header (prv_build_queue_entry); here
// that header is the JSON-wrapped Record this package defines.
func (p *Plugin) HandleIPC(msg []byte) error {
	ts, body, err := ipcwire.DecodeAttributes(msg)
	if err != nil {
		return daemonerr.Wrap("attributes.handleIPC", daemonerr.CodeIPC, err)
	}

	payload, err := json.Marshal(Record{TimestampEpochS: ts, JSONBody: json.RawMessage(body)})
	if err != nil {
		return daemonerr.Wrap("attributes.handleIPC", daemonerr.CodeConfig, err)
	}

	ok, err := p.q.Write(queue.RecordTypeAttributes, payload)
	if err != nil {
		return err
	}
	if !ok {
		p.log.WithOp("attributes.handleIPC").Warnf("queue full, attributes record dropped")
	}
	if p.obs != nil {
		p.obs.ObserveEnqueue("attributes", ok)
	}
	return nil
}
