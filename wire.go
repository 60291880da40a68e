package dts

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Export batches travel in protobuf wire format so constrained devices
// can frame uploads without a JSON stack on the wire path. The envelope
// is two fields, encoded directly with protowire instead of generated
// message code:
//
//	message ExportBatch {
//	  string device_id = 1;
//	  repeated string entries = 2;  // serialized entry text, verbatim
//	}
const (
	batchFieldDeviceID protowire.Number = 1
	batchFieldEntry    protowire.Number = 2
)

// MarshalBatch encodes a device's export batch.
func MarshalBatch(deviceID string, entries []string) []byte {
	size := len(deviceID) + 8
	for _, e := range entries {
		size += len(e) + 8
	}
	b := make([]byte, 0, size)
	b = protowire.AppendTag(b, batchFieldDeviceID, protowire.BytesType)
	b = protowire.AppendString(b, deviceID)
	for _, e := range entries {
		b = protowire.AppendTag(b, batchFieldEntry, protowire.BytesType)
		b = protowire.AppendString(b, e)
	}
	return b
}

// UnmarshalBatch decodes an export batch. Unknown fields are skipped;
// truncated or malformed input fails. Entry order is preserved — the
// chain cannot verify out of order.
func UnmarshalBatch(data []byte) (deviceID string, entries []string, err error) {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", nil, fmt.Errorf("consume tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == batchFieldDeviceID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return "", nil, fmt.Errorf("consume device_id: %w", protowire.ParseError(n))
			}
			deviceID = v
			data = data[n:]
		case num == batchFieldEntry && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return "", nil, fmt.Errorf("consume entry: %w", protowire.ParseError(n))
			}
			entries = append(entries, v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return "", nil, fmt.Errorf("skip field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	if deviceID == "" {
		return "", nil, fmt.Errorf("batch missing device_id")
	}
	return deviceID, entries, nil
}
