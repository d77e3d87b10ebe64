package units

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvertLinear(t *testing.T) {
	cases := []struct {
		name     string
		quantity float64
		from     Unit
		to       Unit
		want     float64
	}{
		{"kg to g", 1.5, UnitKilogram, UnitGram, 1500},
		{"g to kg", 250, UnitGram, UnitKilogram, 0.25},
		{"lb to g", 1, UnitPound, UnitGram, 453.59237},
		{"l to ml", 0.15, UnitLiter, UnitMilliliter, 150},
		{"tbsp to tsp", 1, UnitTablespoon, UnitTeaspoon, 3},
		{"dozen to unit", 2, UnitDozen, UnitPiece, 24},
		{"same unit", 7, UnitGram, UnitGram, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Convert(tc.quantity, tc.from, tc.to)
			require.NoError(t, err)
			require.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestConvertTemperature(t *testing.T) {
	f, err := Convert(100, UnitCelsius, UnitFahrenheit)
	require.NoError(t, err)
	require.InDelta(t, 212, f, 1e-9)

	c, err := Convert(32, UnitFahrenheit, UnitCelsius)
	require.NoError(t, err)
	require.InDelta(t, 0, c, 1e-9)
}

func TestConvertIncompatibleDimensions(t *testing.T) {
	_, err := Convert(1, UnitGram, UnitMilliliter)
	var incompatible *IncompatibleUnitsError
	require.ErrorAs(t, err, &incompatible)
	require.Equal(t, UnitGram, incompatible.From)
	require.Equal(t, UnitMilliliter, incompatible.To)

	_, err = Convert(1, UnitCelsius, UnitGram)
	require.ErrorAs(t, err, &incompatible)
}

func TestConvertUnknownUnit(t *testing.T) {
	_, err := Convert(1, Unit("BUSHEL"), UnitGram)
	require.True(t, errors.Is(err, ErrUnknownUnit))
}

func TestParse(t *testing.T) {
	u, err := Parse(" kg ")
	require.NoError(t, err)
	require.Equal(t, UnitKilogram, u)

	_, err = Parse("fathom")
	require.ErrorIs(t, err, ErrUnknownUnit)
}

func TestDimensionOf(t *testing.T) {
	dim, err := DimensionOf(UnitCup)
	require.NoError(t, err)
	require.Equal(t, DimensionVolume, dim)
}
