package common

import (
	"fmt"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const MetersPerMile = 1609.344

var printer = message.NewPrinter(language.English)

func MetersToMiles(m float64) float64 {
	return m / MetersPerMile
}

func KilometersToMiles(km float64) float64 {
	return km * 1000 / MetersPerMile
}

func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// FormatThousands renders n with comma grouping, e.g. 15045 as "15,045".
func FormatThousands(n int64) string {
	return printer.Sprintf("%d", n)
}

// FormatDecimal renders v with the given number of fractional digits and comma grouping.
func FormatDecimal(v float64, digits int) string {
	return printer.Sprintf("%."+strconv.Itoa(digits)+"f", v)
}

var energyUnits = []string{"kWh", "MWh", "GWh"}

// FormatEnergy scales a kWh value to the largest unit that keeps it below 1000, stopping at GWh.
func FormatEnergy(kwh float64) string {
	unit := 0
	for unit < len(energyUnits)-1 && (kwh >= 1000 || kwh <= -1000) {
		kwh /= 1000
		unit++
	}
	return fmt.Sprintf("%.1f %s", kwh, energyUnits[unit])
}
