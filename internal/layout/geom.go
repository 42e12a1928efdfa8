package layout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Rect represents a window geometry in pixels.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// String renders the rect in X11 geometry form, WxH+X+Y.
func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Resolution is a screen size in pixels.
type Resolution struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Valid reports whether both dimensions are positive.
func (r Resolution) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// DefaultReference is the resolution tag geometries are written against
// unless the config says otherwise.
var DefaultReference = Resolution{Width: 3840, Height: 2160}

var ErrInvalidGeometry = errors.New("invalid geometry")

// ParseGeometry parses a WxH+X+Y string.
func ParseGeometry(s string) (Rect, error) {
	s = strings.TrimSpace(s)
	size, pos, ok := strings.Cut(s, "+")
	if !ok {
		return Rect{}, fmt.Errorf("%w %q", ErrInvalidGeometry, s)
	}
	w, h, ok := strings.Cut(size, "x")
	if !ok {
		return Rect{}, fmt.Errorf("%w %q", ErrInvalidGeometry, s)
	}
	x, y, ok := strings.Cut(pos, "+")
	if !ok {
		return Rect{}, fmt.Errorf("%w %q", ErrInvalidGeometry, s)
	}
	var out Rect
	for _, field := range []struct {
		dst *int
		raw string
	}{{&out.Width, w}, {&out.Height, h}, {&out.X, x}, {&out.Y, y}} {
		v, err := strconv.Atoi(field.raw)
		if err != nil {
			return Rect{}, fmt.Errorf("%w %q: %v", ErrInvalidGeometry, s, err)
		}
		*field.dst = v
	}
	if out.Width <= 0 || out.Height <= 0 {
		return Rect{}, fmt.Errorf("%w %q: size must be positive", ErrInvalidGeometry, s)
	}
	return out, nil
}

// Converter maps geometries declared against a reference resolution onto the
// current screen. It holds no mutable state and is safe to share.
type Converter struct {
	Reference Resolution
	Current   Resolution
}

// NewConverter returns a converter, falling back to the default reference and
// to an identity mapping when either resolution is unset.
func NewConverter(reference, current Resolution) Converter {
	if !reference.Valid() {
		reference = DefaultReference
	}
	if !current.Valid() {
		current = reference
	}
	return Converter{Reference: reference, Current: current}
}

// Scale converts a reference-space rect into current-screen pixels.
func (c Converter) Scale(r Rect) Rect {
	return Rect{
		X:      rescale(r.X, c.Current.Width, c.Reference.Width),
		Y:      rescale(r.Y, c.Current.Height, c.Reference.Height),
		Width:  rescale(r.Width, c.Current.Width, c.Reference.Width),
		Height: rescale(r.Height, c.Current.Height, c.Reference.Height),
	}
}

// Unscale converts current-screen pixels back into reference space.
func (c Converter) Unscale(r Rect) Rect {
	return Rect{
		X:      rescale(r.X, c.Reference.Width, c.Current.Width),
		Y:      rescale(r.Y, c.Reference.Height, c.Current.Height),
		Width:  rescale(r.Width, c.Reference.Width, c.Current.Width),
		Height: rescale(r.Height, c.Reference.Height, c.Current.Height),
	}
}

// rescale returns v*num/den rounded half away from zero.
func rescale(v, num, den int) int {
	n := v * num
	if n < 0 {
		return -((-n + den/2) / den)
	}
	return (n + den/2) / den
}

// Convert parses and scales a configured geometry string.
func (c Converter) Convert(geom string) (Rect, error) {
	r, err := ParseGeometry(geom)
	if err != nil {
		return Rect{}, err
	}
	return c.Scale(r), nil
}

// PlaceCommand renders the absolute move/resize command for r.
func PlaceCommand(r Rect) string {
	return fmt.Sprintf("move absolute position %d %d, resize set %d %d", r.X, r.Y, r.Width, r.Height)
}
