package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// time.Time and friends travel as text so they survive a JSON hop.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Overlay trees and stripped values are keyed by property name.
		// The CBOR default for any-typed maps is map[any]any, which the
		// overlay codec does not accept.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		// One integer type for any-typed targets regardless of sign.
		IntDec:          cbor.IntDecConvertSigned,
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
		// Room for the message envelope around deeply nested values.
		MaxNestedLevels: 128,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encoder is a CBOR stream encoder.
type Encoder = cbor.Encoder

// Decoder is a CBOR stream decoder.
type Decoder = cbor.Decoder

// NewEncoder returns a CBOR sequence encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a CBOR sequence decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}

// Convert copies src into dst by encoding and decoding it. dst must be a
// non-nil pointer. It is used to turn generic wire values (map[string]any,
// []any, int64) into the concrete parameter types of a Go method.
func Convert(src any, dst any) error {
	data, err := encMode.Marshal(src)
	if err != nil {
		return err
	}
	return decMode.Unmarshal(data, dst)
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for data.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
