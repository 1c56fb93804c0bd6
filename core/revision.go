package core

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

var ErrMalformedRevision = errors.New("malformed revision")

// BlockAddress locates a revision in the ledger journal.
type BlockAddress struct {
	StrandID   string `json:"strandId"`
	SequenceNo int64  `json:"sequenceNo"`
}

// Revision is one row of the committed view or of history(table).
type Revision struct {
	BlockAddress *BlockAddress  `json:"blockAddress,omitempty"`
	Hash         string         `json:"hash,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	Metadata     Metadata       `json:"metadata"`
}

// Document returns the revision data as a document carrying its metadata.
func (r Revision) Document(table, index string) Document {
	return NewDocument(table, index, r.Data).WithMetadata(r.Metadata)
}

// Row renders the revision in the shape the ledger returns it.
func (r Revision) Row() map[string]any {
	row := map[string]any{
		"metadata": map[string]any{
			"id":      r.Metadata.ID,
			"version": r.Metadata.Version,
			"txTime":  r.Metadata.TxTime,
			"txId":    r.Metadata.TxID,
		},
	}
	if r.BlockAddress != nil {
		row["blockAddress"] = map[string]any{
			"strandId":   r.BlockAddress.StrandID,
			"sequenceNo": r.BlockAddress.SequenceNo,
		}
	}
	if r.Hash != "" {
		row["hash"] = r.Hash
	}
	if r.Data != nil {
		row["data"] = cloneMap(r.Data)
	}
	return row
}

// RevisionFromRow converts a committed-view or history row into a Revision.
func RevisionFromRow(row map[string]any) (Revision, error) {
	var rev Revision

	rawMeta, ok := row["metadata"].(map[string]any)
	if !ok {
		return Revision{}, fmt.Errorf("%w: missing metadata", ErrMalformedRevision)
	}
	rev.Metadata.ID = stringValue(rawMeta["id"])
	if rev.Metadata.ID == "" {
		return Revision{}, fmt.Errorf("%w: missing metadata.id", ErrMalformedRevision)
	}
	version, err := int64Value(rawMeta["version"])
	if err != nil {
		return Revision{}, fmt.Errorf("%w: metadata.version: %v", ErrMalformedRevision, err)
	}
	rev.Metadata.Version = version
	rev.Metadata.TxID = stringValue(rawMeta["txId"])
	rev.Metadata.TxTime = timeValue(rawMeta["txTime"])

	if data, ok := row["data"].(map[string]any); ok {
		rev.Data = cloneMap(data)
	}

	switch h := row["hash"].(type) {
	case string:
		rev.Hash = h
	case []byte:
		rev.Hash = base64.StdEncoding.EncodeToString(h)
	}

	if addr, ok := row["blockAddress"].(map[string]any); ok {
		seq, _ := int64Value(addr["sequenceNo"])
		rev.BlockAddress = &BlockAddress{
			StrandID:   stringValue(addr["strandId"]),
			SequenceNo: seq,
		}
	}

	return rev, nil
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func int64Value(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint32:
		return int64(t), nil
	case uint64:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case json.Number:
		return t.Int64()
	case *big.Int:
		return t.Int64(), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

func timeValue(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
	case fmt.Stringer:
		if parsed, err := time.Parse(time.RFC3339Nano, t.String()); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
