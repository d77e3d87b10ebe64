// Package units provides the static measurement catalog used by recipes and
// the stock ledger. Every supported unit maps to a canonical base unit per
// dimension; conversions are linear except temperature.
package units

import (
	"errors"
	"fmt"
	"strings"
)

// Dimension groups units that can be converted between each other.
type Dimension string

const (
	DimensionWeight      Dimension = "WEIGHT"
	DimensionVolume      Dimension = "VOLUME"
	DimensionCount       Dimension = "COUNT"
	DimensionLength      Dimension = "LENGTH"
	DimensionTemperature Dimension = "TEMPERATURE"
)

// Unit identifies a supported measurement unit.
type Unit string

const (
	UnitMilligram Unit = "MG"
	UnitGram      Unit = "G"
	UnitKilogram  Unit = "KG"
	UnitOunce     Unit = "OZ"
	UnitPound     Unit = "LB"

	UnitMilliliter Unit = "ML"
	UnitCentiliter Unit = "CL"
	UnitLiter      Unit = "L"
	UnitTeaspoon   Unit = "TSP"
	UnitTablespoon Unit = "TBSP"
	UnitFluidOunce Unit = "FL_OZ"
	UnitCup        Unit = "CUP"
	UnitGallon     Unit = "GAL"

	UnitPiece Unit = "UNIT"
	UnitDozen Unit = "DOZEN"

	UnitMillimeter Unit = "MM"
	UnitCentimeter Unit = "CM"
	UnitMeter      Unit = "M"

	UnitCelsius    Unit = "CELSIUS"
	UnitFahrenheit Unit = "FAHRENHEIT"
)

// ErrUnknownUnit indicates a unit outside the catalog.
var ErrUnknownUnit = errors.New("units: unknown unit")

// IncompatibleUnitsError signals a conversion across dimensions, e.g. grams
// into milliliters. Recipe validation should catch this before the deduction
// path ever sees it.
type IncompatibleUnitsError struct {
	From Unit
	To   Unit
}

func (e *IncompatibleUnitsError) Error() string {
	return fmt.Sprintf("units: cannot convert %s to %s: incompatible dimensions", e.From, e.To)
}

type definition struct {
	dimension Dimension
	// toBase converts one of this unit into the dimension's base unit
	// (gram, milliliter, unit, millimeter). Unused for temperature.
	toBase float64
}

var catalog = map[Unit]definition{
	UnitMilligram: {DimensionWeight, 0.001},
	UnitGram:      {DimensionWeight, 1},
	UnitKilogram:  {DimensionWeight, 1000},
	UnitOunce:     {DimensionWeight, 28.349523125},
	UnitPound:     {DimensionWeight, 453.59237},

	UnitMilliliter: {DimensionVolume, 1},
	UnitCentiliter: {DimensionVolume, 10},
	UnitLiter:      {DimensionVolume, 1000},
	UnitTeaspoon:   {DimensionVolume, 4.92892159375},
	UnitTablespoon: {DimensionVolume, 14.78676478125},
	UnitFluidOunce: {DimensionVolume, 29.5735295625},
	UnitCup:        {DimensionVolume, 236.5882365},
	UnitGallon:     {DimensionVolume, 3785.411784},

	UnitPiece: {DimensionCount, 1},
	UnitDozen: {DimensionCount, 12},

	UnitMillimeter: {DimensionLength, 1},
	UnitCentimeter: {DimensionLength, 10},
	UnitMeter:      {DimensionLength, 1000},

	UnitCelsius:    {DimensionTemperature, 0},
	UnitFahrenheit: {DimensionTemperature, 0},
}

// Parse normalises a raw unit string into a catalog Unit.
func Parse(raw string) (Unit, error) {
	u := Unit(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := catalog[u]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownUnit, raw)
	}
	return u, nil
}

// DimensionOf reports the dimension of a unit.
func DimensionOf(u Unit) (Dimension, error) {
	def, ok := catalog[u]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownUnit, u)
	}
	return def.dimension, nil
}

// Convert translates quantity from one unit into another within the same
// dimension. It has no side effects and is safe for concurrent use.
func Convert(quantity float64, from, to Unit) (float64, error) {
	fromDef, ok := catalog[from]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, from)
	}
	toDef, ok := catalog[to]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, to)
	}
	if fromDef.dimension != toDef.dimension {
		return 0, &IncompatibleUnitsError{From: from, To: to}
	}
	if from == to {
		return quantity, nil
	}
	if fromDef.dimension == DimensionTemperature {
		return convertTemperature(quantity, from, to)
	}
	return quantity * fromDef.toBase / toDef.toBase, nil
}

// Temperature is affine, not linear, so it cannot go through a base factor.
func convertTemperature(quantity float64, from, to Unit) (float64, error) {
	switch {
	case from == UnitCelsius && to == UnitFahrenheit:
		return quantity*9/5 + 32, nil
	case from == UnitFahrenheit && to == UnitCelsius:
		return (quantity - 32) * 5 / 9, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, from)
	}
}
