package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFields() Fields {
	return Fields{
		FirstName:   "Asha",
		LastName:    "Verma",
		FatherName:  "Ramesh Verma",
		NationalID:  "123456789012",
		MissingFrom: "05-01-2026",
		Timestamp:   "30-08-2026 14:05",
	}
}

func TestRenderCaseRegistered(t *testing.T) {
	subject, body, err := Render(KindCaseRegistered, sampleFields())
	require.NoError(t, err)

	assert.Equal(t, "Case Registered Successfully", subject)
	assert.Contains(t, body, "Asha")
	assert.Contains(t, body, "123456789012")
	assert.Contains(t, body, "05-01-2026")
}

func TestRenderCaseClosed(t *testing.T) {
	subject, body, err := Render(KindCaseClosed, sampleFields())
	require.NoError(t, err)

	assert.Equal(t, "Case Closed: Missing Person Found", subject)
	assert.Contains(t, body, "Asha Verma")
}

func TestRenderPersonFoundWithLocation(t *testing.T) {
	fields := sampleFields()
	fields.Location = "Latitude: 12.970000, Longitude: 77.590000"

	subject, body, err := Render(KindPersonFound, fields)
	require.NoError(t, err)

	assert.Equal(t, "Missing Person Found", subject)
	assert.Contains(t, body, "Latitude: 12.970000")
	assert.Contains(t, body, "30-08-2026 14:05")
}

func TestRenderPersonFoundWithoutLocation(t *testing.T) {
	_, body, err := Render(KindPersonFound, sampleFields())
	require.NoError(t, err)

	assert.NotContains(t, body, "Latitude")
}

func TestRenderUnknownKind(t *testing.T) {
	_, _, err := Render(Kind("bogus"), sampleFields())
	require.Error(t, err)
}
