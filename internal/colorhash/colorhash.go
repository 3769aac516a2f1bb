// Package colorhash assigns a deterministic, visually distributed CSS color
// to an arbitrary string. The same input always produces the same color, so a
// contact renders identically everywhere it appears.
package colorhash

import (
	"fmt"
	"math"
	"unicode/utf16"
)

// saturation is fixed so hue and lightness fully determine the color.
const saturation = 70

// lightnessStops holds the lightness percentage anchored at each 60-degree
// hue sector boundary. Lightness is interpolated between neighboring stops to
// keep perceived brightness roughly constant around the hue circle.
var lightnessStops = [6]int{48, 25, 28, 27, 62, 42}

// ColorFor maps an email address (or any string) to an "hsl(H, 70%, L%)"
// color string. It is total and pure: every input, including the empty
// string, yields a valid color.
func ColorFor(email string) string {
	hash := hash16(email)
	hue := 360 * hash / 65535

	sector := (hue / 60) % 6
	next := (sector + 1) % 6
	position := float64(hue%60) / 60

	from := float64(lightnessStops[sector])
	to := float64(lightnessStops[next])
	lightness := int(math.Floor(from + (to-from)*position))

	return fmt.Sprintf("hsl(%d, %d%%, %d%%)", hue, saturation, lightness)
}

// hash16 computes a 16-bit rolling hash over the string's UTF-16 code units,
// matching how renderers that index strings by code unit would hash it.
func hash16(s string) int {
	hash := 0
	for _, unit := range utf16.Encode([]rune(s)) {
		hash = ((hash << 5) - hash + int(unit)) & 0xFFFF
	}

	return hash
}
