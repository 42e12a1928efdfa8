package display

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"

	"github.com/negwm/negwm/internal/layout"
	"github.com/negwm/negwm/internal/util"
)

// Querier reports the current screen resolution.
type Querier interface {
	Resolution() (layout.Resolution, error)
}

// X11 queries the root window geometry of the default display.
type X11 struct{}

// Resolution implements Querier.
func (X11) Resolution() (layout.Resolution, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return layout.Resolution{}, fmt.Errorf("connect to X server: %w", err)
	}
	defer xu.Conn().Close()

	geom, err := xproto.GetGeometry(xu.Conn(), xproto.Drawable(xu.RootWin())).Reply()
	if err != nil {
		return layout.Resolution{}, fmt.Errorf("root geometry: %w", err)
	}
	return layout.Resolution{Width: int(geom.Width), Height: int(geom.Height)}, nil
}

// Resolve picks the resolution geometries are scaled to: the configured value
// when set, otherwise the X11 root window, otherwise the reference itself.
func Resolve(configured, reference layout.Resolution, q Querier, logger *util.Logger) layout.Resolution {
	if configured.Valid() {
		return configured
	}
	if q != nil {
		res, err := q.Resolution()
		if err == nil && res.Valid() {
			logger.Debugf("detected screen resolution %dx%d", res.Width, res.Height)
			return res
		}
		if err != nil {
			logger.Warnf("resolution query failed, using reference %dx%d: %v", reference.Width, reference.Height, err)
		}
	}
	return reference
}
