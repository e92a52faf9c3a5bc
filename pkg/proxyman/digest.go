package proxyman

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"math"
	"sort"
	"strconv"

	sha256 "github.com/minio/sha256-simd"
)

// digestBytes is the number of hash bytes kept in a digest (32 hex chars)
const digestBytes = 16

// Digest computes a stable, order-independent content digest of params.
// A nil or empty map hashes to a fixed value distinct from every non-empty
// map. Keys and values are hashed as-is, including control bytes.
func Digest(params Parameters) string {
	h := sha256.New()

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	writeLength(h, len(keys))
	for _, k := range keys {
		writeString(h, 's', k)
		writeValue(h, params[k])
	}

	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:digestBytes])
}

func writeLength(h hash.Hash, n int) {
	var buf [binary.MaxVarintLen64]byte
	size := binary.PutUvarint(buf[:], uint64(n))
	h.Write(buf[:size])
}

func writeString(h hash.Hash, tag byte, s string) {
	h.Write([]byte{tag})
	writeLength(h, len(s))
	h.Write([]byte(s))
}

func writeValue(h hash.Hash, v any) {
	switch value := v.(type) {
	case nil:
		h.Write([]byte{'n'})
	case string:
		writeString(h, 's', value)
	case []byte:
		writeString(h, 'y', string(value))
	case bool:
		writeString(h, 'b', strconv.FormatBool(value))
	case int:
		writeString(h, 'i', strconv.FormatInt(int64(value), 10))
	case int8:
		writeString(h, 'i', strconv.FormatInt(int64(value), 10))
	case int16:
		writeString(h, 'i', strconv.FormatInt(int64(value), 10))
	case int32:
		writeString(h, 'i', strconv.FormatInt(int64(value), 10))
	case int64:
		writeString(h, 'i', strconv.FormatInt(value, 10))
	case uint:
		writeString(h, 'u', strconv.FormatUint(uint64(value), 10))
	case uint8:
		writeString(h, 'u', strconv.FormatUint(uint64(value), 10))
	case uint16:
		writeString(h, 'u', strconv.FormatUint(uint64(value), 10))
	case uint32:
		writeString(h, 'u', strconv.FormatUint(uint64(value), 10))
	case uint64:
		writeString(h, 'u', strconv.FormatUint(value, 10))
	case float32:
		writeString(h, 'f', strconv.FormatUint(uint64(math.Float32bits(value)), 16))
	case float64:
		writeString(h, 'd', strconv.FormatUint(math.Float64bits(value), 16))
	case fmt.Stringer:
		writeString(h, 'x', fmt.Sprintf("%T:%s", value, value.String()))
	default:
		writeString(h, 'x', fmt.Sprintf("%T:%#v", value, value))
	}
}
