package poll

import (
	"testing"
	"time"

	"github.com/couchcryptid/spotlane/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHamQTH(t *testing.T) {
	body := []byte("W1AW^14074.0^K1ABC^FT8 loud^1230 2024-01-15^FN42^extra\n" +
		"\n" +
		"DL1XX^7030^OK1ZZ^cw^0905 2024-01-15^JN79\n" +
		"BAD^line\n" +
		"N0CALL^-5^X1X^^1200 2024-01-15^\n" +
		"N0CALL^14000^X2X^^9999 2024-01-15^\n")

	spots, skipped, err := ParseHamQTH(body, time.UTC)
	require.NoError(t, err)
	assert.Len(t, skipped, 3)

	want := []domain.Spot{
		{
			Label:     "K1ABC",
			Frequency: 14074000,
			SpotTime:  time.Date(2024, 1, 15, 12, 30, 0, 0, time.UTC),
			Spotter:   "W1AW",
			Comment:   "FT8 loud",
			Location:  "FN42",
		},
		{
			Label:     "OK1ZZ",
			Frequency: 7030000,
			SpotTime:  time.Date(2024, 1, 15, 9, 5, 0, 0, time.UTC),
			Spotter:   "DL1XX",
			Comment:   "cw",
			Location:  "JN79",
		},
	}
	if diff := cmp.Diff(want, spots); diff != "" {
		t.Errorf("spots mismatch (-want +got):\n%s", diff)
	}
}

func TestParseHamQTH_ConvertsLocalTime(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	spots, _, err := ParseHamQTH([]byte("A^14000^B^c^1230 2024-01-15^d\n"), loc)
	require.NoError(t, err)
	require.Len(t, spots, 1)
	assert.Equal(t, time.Date(2024, 1, 15, 17, 30, 0, 0, time.UTC), spots[0].SpotTime)
}

func TestParsePOTA(t *testing.T) {
	body := []byte(`[
		{"activator":"K1ABC","spotter":"W1AW","frequency":"14074","spotTime":"2024-01-15T12:30:45.123","name":"Some Park","comments":"QRT soon","locationDesc":"US-MA"},
		{"activator":"N0CALL","frequency":"abc","spotTime":"2024-01-15T12:30:00"},
		{"activator":"","frequency":"7000","spotTime":"2024-01-15T12:30:00"},
		{"activator":"K2XYZ","frequency":7000,"spotTime":"2024-01-15T12:30:00"},
		{"activator":"K3XYZ","frequency":"7074.5","spotTime":"2024-01-15T12:31:00Z","name":"","comments":""}
	]`)

	spots, skipped, err := ParsePOTA(body, time.UTC)
	require.NoError(t, err)
	assert.Len(t, skipped, 3)
	require.Len(t, spots, 2)

	assert.Equal(t, "K1ABC", spots[0].Label)
	assert.InDelta(t, 14074000, spots[0].Frequency, 0)
	assert.Equal(t, time.Date(2024, 1, 15, 12, 30, 45, 0, time.UTC), spots[0].SpotTime.Truncate(time.Second))
	assert.Equal(t, "Some Park QRT soon", spots[0].Comment)
	assert.Equal(t, "US-MA", spots[0].Location)
	assert.Equal(t, "W1AW", spots[0].Spotter)

	assert.Equal(t, "K3XYZ", spots[1].Label)
	assert.InDelta(t, 7074500, spots[1].Frequency, 0)
	assert.Empty(t, spots[1].Comment)
}

func TestParsePOTA_MalformedPayload(t *testing.T) {
	_, _, err := ParsePOTA([]byte(`{"not":"an array"}`), time.UTC)
	assert.Error(t, err)
}

func TestParseSOTA(t *testing.T) {
	body := []byte(`[
		{"activatorCallsign":"G4ABC/P","callsign":"M0XYZ","frequency":"14.062","timeStamp":"2024-01-15T12:30:00","comments":"cq sota","summitDetails":"G/LD-001"},
		{"activatorCallsign":"EA1ZZ","callsign":"EA2YY","frequency":"7.032","timeStamp":"2024-01-15T11:00:00","comments":null,"summitDetails":"EA1/AT-001"},
		{"activatorCallsign":"BAD","frequency":"0","timeStamp":"2024-01-15T11:00:00"},
		{"activatorCallsign":"BAD2","frequency":"7.1","timeStamp":"yesterday"}
	]`)

	spots, skipped, err := ParseSOTA(body, time.UTC)
	require.NoError(t, err)
	assert.Len(t, skipped, 2)
	require.Len(t, spots, 2)

	assert.Equal(t, "G4ABC/P", spots[0].Label)
	assert.Equal(t, "M0XYZ", spots[0].Spotter)
	assert.InDelta(t, 14062000, spots[0].Frequency, 0.001)
	assert.Equal(t, "cq sota", spots[0].Comment)
	assert.Equal(t, "G/LD-001", spots[0].Location)

	assert.Empty(t, spots[1].Comment)
	assert.Equal(t, time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC), spots[1].SpotTime)
}

func TestParseWWFF(t *testing.T) {
	body := []byte(`{"RCD":[
		{"ACTIVATOR":"DL/K1ABC","SPOTTER":"DL1XX","QRG":"14244","DATE":"20240115","TIME":"1230","TEXT":"ssb","NAME":"DLFF-0001"},
		{"ACTIVATOR":"OE1ZZ","SPOTTER":"OE2YY","QRG":7144.5,"DATE":20240115,"TIME":905,"TEXT":"","NAME":"OEFF-0002"},
		{"ACTIVATOR":"NOQRG","DATE":"20240115","TIME":"1230"},
		{"ACTIVATOR":"BADDATE","QRG":"7000","DATE":"20241315","TIME":"1230"}
	]}`)

	spots, skipped, err := ParseWWFF(body, time.UTC)
	require.NoError(t, err)
	assert.Len(t, skipped, 2)
	require.Len(t, spots, 2)

	assert.Equal(t, "DL/K1ABC", spots[0].Label)
	assert.InDelta(t, 14244000, spots[0].Frequency, 0)
	assert.Equal(t, time.Date(2024, 1, 15, 12, 30, 0, 0, time.UTC), spots[0].SpotTime)
	assert.Equal(t, "ssb", spots[0].Comment)
	assert.Equal(t, "DLFF-0001", spots[0].Location)

	assert.InDelta(t, 7144500, spots[1].Frequency, 0)
	assert.Equal(t, time.Date(2024, 1, 15, 9, 5, 0, 0, time.UTC), spots[1].SpotTime)
}

func TestParseWWFF_EmptyAndMalformed(t *testing.T) {
	spots, skipped, err := ParseWWFF([]byte(`{}`), time.UTC)
	require.NoError(t, err)
	assert.Empty(t, spots)
	assert.Empty(t, skipped)

	_, _, err = ParseWWFF([]byte(`<html>`), time.UTC)
	assert.Error(t, err)
}

func TestFeeds(t *testing.T) {
	feeds := Feeds()
	require.Len(t, feeds, 4)
	names := make([]string, len(feeds))
	for i, f := range feeds {
		names[i] = f.Name
		assert.NotEmpty(t, f.URL)
		assert.NotNil(t, f.Parse)
	}
	assert.Equal(t, []string{"hamqth", "pota", "sota", "wwff"}, names)
}
