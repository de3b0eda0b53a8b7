package snapshot

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode is fully canonical: sorted map keys and no indefinite
// lengths. Equal stacks must serialize to identical bytes so the
// history hash is process-independent.
var encMode cbor.EncMode

func init() {
	opts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		ShortestFloat: cbor.ShortestFloatNone,
		IndefLength:   cbor.IndefLengthForbidden,
		BigIntConvert: cbor.BigIntConvertShortest,
	}
	mode, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: building cbor encode mode: %v", err))
	}
	encMode = mode
}

func encodeStack(stack []Snapshot) ([]byte, error) {
	return encMode.Marshal(stack)
}

func decodeStack(blob []byte) ([]Snapshot, error) {
	var stack []Snapshot
	if err := cbor.Unmarshal(blob, &stack); err != nil {
		return nil, err
	}
	return stack, nil
}
