package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
)

func TestDecodeJSONArray(t *testing.T) {
	spec := vendor.OperationSpec{Decoding: vendor.DecodingJSON}
	body := []byte(`[{"id": 12, "name": "WhatsApp", "price": 0.25}, {"id": 13, "name": "Telegram"}]`)

	records, err := decodeRecords(spec, body)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "12", records[0]["id"])
	assert.Equal(t, "WhatsApp", records[0]["name"])
	assert.Equal(t, "0.25", records[0]["price"])
}

func TestDecodeJSONMapOfObjects(t *testing.T) {
	spec := vendor.OperationSpec{Decoding: vendor.DecodingJSON}
	body := []byte(`{"10": {"count": 5}, "2": {"count": 7}, "1": {"count": 3}}`)

	records, err := decodeRecords(spec, body)
	require.NoError(t, err)
	require.Len(t, records, 3)
	// Numeric keys come back in numeric order under $key.
	assert.Equal(t, "1", records[0]["$key"])
	assert.Equal(t, "2", records[1]["$key"])
	assert.Equal(t, "10", records[2]["$key"])
	assert.Equal(t, "7", records[1]["count"])
}

func TestDecodeJSONRootPath(t *testing.T) {
	spec := vendor.OperationSpec{Decoding: vendor.DecodingJSON, Root: "data.items"}
	body := []byte(`{"data": {"items": [{"service": "wa", "cost": "1.10"}]}}`)

	records, err := decodeRecords(spec, body)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "wa", records[0]["service"])
	assert.Equal(t, "1.10", records[0]["cost"])
}

func TestDecodeJSONRootPathMissing(t *testing.T) {
	spec := vendor.OperationSpec{Decoding: vendor.DecodingJSON, Root: "data.items"}
	_, err := decodeRecords(spec, []byte(`{"data": {}}`))
	assert.Error(t, err)
}

func TestDecodeJSONNestedAndScalar(t *testing.T) {
	spec := vendor.OperationSpec{Decoding: vendor.DecodingJSON}

	t.Run("nested objects get dotted selectors", func(t *testing.T) {
		records, err := decodeRecords(spec, []byte(`[{"sms": {"text": "your code is 1234"}}]`))
		require.NoError(t, err)
		assert.Equal(t, "your code is 1234", records[0]["sms.text"])
	})

	t.Run("arrays join on newline", func(t *testing.T) {
		records, err := decodeRecords(spec, []byte(`[{"sms": ["first", "second"]}]`))
		require.NoError(t, err)
		assert.Equal(t, "first\nsecond", records[0]["sms"])
	})

	t.Run("bare scalar lands under $value", func(t *testing.T) {
		records, err := decodeRecords(spec, []byte(`42.5`))
		require.NoError(t, err)
		assert.Equal(t, "42.5", records[0]["$value"])
	})
}

func TestDecodeKeyValue(t *testing.T) {
	t.Run("ampersand pairs", func(t *testing.T) {
		spec := vendor.OperationSpec{Decoding: vendor.DecodingKeyValue}
		records, err := decodeRecords(spec, []byte("status=ok&id=991&phone=79990001122"))
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "ok", records[0]["status"])
		assert.Equal(t, "991", records[0]["id"])
		assert.Equal(t, "79990001122", records[0]["phone"])
	})

	t.Run("colon-delimited tuple exposed positionally", func(t *testing.T) {
		spec := vendor.OperationSpec{Decoding: vendor.DecodingKeyValue, KVSep: ":"}
		records, err := decodeRecords(spec, []byte("ACCESS_NUMBER:991:79990001122"))
		require.NoError(t, err)
		rec := records[0]
		assert.Equal(t, "ACCESS_NUMBER", rec["0"])
		assert.Equal(t, "991", rec["1"])
		assert.Equal(t, "79990001122", rec["2"])
		assert.Equal(t, "ACCESS_NUMBER:991:79990001122", rec["$value"])
	})

	t.Run("whole body under $value", func(t *testing.T) {
		spec := vendor.OperationSpec{Decoding: vendor.DecodingKeyValue}
		records, err := decodeRecords(spec, []byte("  123.45\n"))
		require.NoError(t, err)
		assert.Equal(t, "123.45", records[0]["$value"])
	})
}

func TestDecodeCSV(t *testing.T) {
	spec := vendor.OperationSpec{Decoding: vendor.DecodingCSV}
	body := []byte("service,price,count\nwa,0.20,15\ntg,0.18,40\n")

	records, err := decodeRecords(spec, body)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "wa", records[0]["service"])
	assert.Equal(t, "40", records[1]["count"])
}

func TestDecodeCSVSemicolon(t *testing.T) {
	spec := vendor.OperationSpec{Decoding: vendor.DecodingCSV, CSVComma: ";"}
	body := []byte("service;price\nwa;0.20\n")

	records, err := decodeRecords(spec, body)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0.20", records[0]["price"])
}

func TestRecordFieldSelectors(t *testing.T) {
	rec := record{"activationId": "991", "id": "shadowed"}

	t.Run("mapping selector wins", func(t *testing.T) {
		assert.Equal(t, "991", rec.field(map[string]string{"id": "activationId"}, "id"))
	})

	t.Run("logical name is the default selector", func(t *testing.T) {
		assert.Equal(t, "shadowed", rec.field(nil, "id"))
	})
}
