package mirror

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAsTime(t *testing.T) {
	req := require.New(t)
	got, ok := asTime("2024-05-01T12:00:00Z")
	req.True(ok)
	req.Equal(2024, got.Year())

	got, ok = asTime("2024-05-01T12:00:00.123456")
	req.True(ok)
	req.Equal(time.May, got.Month())

	_, ok = asTime("yesterday")
	req.False(ok)
	_, ok = asTime(nil)
	req.False(ok)
}

func TestAsInt64(t *testing.T) {
	req := require.New(t)
	req.Equal(int64(3), asInt64(float64(3)))
	req.Equal(int64(4), asInt64(int32(4)))
	req.Equal(int64(5), asInt64("5"))
	req.Equal(int64(6), asInt64(json.Number("6")))
	req.Zero(asInt64(nil))
}

func TestAsStrings(t *testing.T) {
	req := require.New(t)
	req.Equal([]string{"a", "b"}, asStrings([]any{"a", "b"}))
	req.Equal([]string{"a"}, asStrings(`["a"]`))
	req.Nil(asStrings(42))
}

func TestPickKeepsNamedFields(t *testing.T) {
	req := require.New(t)
	row := Row{FieldContent: "c", FieldRawContent: "r", FieldSender: "s"}
	req.Equal(Row{FieldContent: "c"}, pick(row, []string{FieldContent, "missing"}))
}
