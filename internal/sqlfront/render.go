package sqlfront

import (
	"encoding/hex"
	"fmt"
	"time"

	"incresql/internal/types"
)

// RenderValue renders one result-set cell to its client-visible text form
// (spec.md §6): NULL literal, TRUE/FALSE, decimal zero-padded to its
// declared scale, dates as YYYY-MM-DD, timestamps as naive ISO-8601,
// bytea as lowercase hex, and JSON/text passed through as-is.
func RenderValue(d types.Datum, typ types.DataType) string {
	if d.IsNull() {
		return "NULL"
	}
	switch typ.Tag {
	case types.Boolean:
		v, _ := d.AsBoolean()
		if v {
			return "TRUE"
		}
		return "FALSE"
	case types.Integer:
		v, _ := d.AsInteger()
		return fmt.Sprintf("%d", v)
	case types.BigInt:
		v, _ := d.AsBigInt()
		return fmt.Sprintf("%d", v)
	case types.DecimalType:
		dec, _ := d.AsDecimal()
		return dec.Rescale(typ.Scale).String()
	case types.Date:
		encoded, _ := d.AsInteger()
		year := encoded / 512
		ordinal := encoded % 512
		return time.Date(int(year), time.January, int(ordinal), 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	case types.Timestamp:
		millis, _ := d.AsBigInt()
		return time.UnixMilli(millis).UTC().Format("2006-01-02T15:04:05.000")
	case types.ByteA:
		b, _ := d.AsBytes()
		return hex.EncodeToString(b)
	case types.Text, types.Json:
		s, _ := d.AsText()
		return s
	case types.JsonPathType:
		jp, _ := d.AsJsonPath()
		if jp == nil {
			return ""
		}
		return jp.String()
	default:
		s, _ := d.AsText()
		return s
	}
}
