package x11

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xgraphics"
)

// CaptureWindow grabs the contents of a window. When the window drawable
// cannot be read (common under compositors), the matching region of the
// root window is used instead.
func (c *Connection) CaptureWindow(windowID xproto.Window) (image.Image, error) {
	img, err := xgraphics.NewDrawable(c.XUtil, xproto.Drawable(windowID))
	if err == nil {
		return img, nil
	}

	x, y, w, h, gerr := c.WindowGeometry(windowID)
	if gerr != nil {
		return nil, fmt.Errorf("failed to capture window: %w", err)
	}

	root, rerr := xgraphics.NewDrawable(c.XUtil, xproto.Drawable(c.Root))
	if rerr != nil {
		return nil, fmt.Errorf("failed to capture root window: %w", rerr)
	}
	return root.SubImage(image.Rect(x, y, x+w, y+h)), nil
}
