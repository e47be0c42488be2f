package forge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveNameStripsStopWordsAndCaps(t *testing.T) {
	name := deriveName("a tool that converts currency amounts between countries")
	assert.Equal(t, "tool_converts_currency_amounts_tool", name)
}

func TestDeriveNameEmptyFallsBack(t *testing.T) {
	assert.Equal(t, "generated_tool", deriveName("   "))
}

func TestDeriveNameIsSnakeCaseLowercase(t *testing.T) {
	name := deriveName("Fetch Weather Forecast Data Now")
	assert.Equal(t, "fetch_weather_forecast_data_tool", name)
}
