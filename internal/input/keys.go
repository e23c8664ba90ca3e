package input

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// X11 keysym constants
const (
	XK_BackSpace   = 0xFF08
	XK_Tab         = 0xFF09
	XK_Return      = 0xFF0D
	XK_Pause       = 0xFF13
	XK_Scroll_Lock = 0xFF14
	XK_Escape      = 0xFF1B
	XK_Home        = 0xFF50
	XK_Left        = 0xFF51
	XK_Up          = 0xFF52
	XK_Right       = 0xFF53
	XK_Down        = 0xFF54
	XK_Page_Up     = 0xFF55
	XK_Page_Down   = 0xFF56
	XK_End         = 0xFF57
	XK_Print       = 0xFF61
	XK_Insert      = 0xFF63
	XK_Menu        = 0xFF67
	XK_Num_Lock    = 0xFF7F
	XK_F1          = 0xFFBE
	XK_Shift_L     = 0xFFE1
	XK_Control_L   = 0xFFE3
	XK_Caps_Lock   = 0xFFE5
	XK_Alt_L       = 0xFFE9
	XK_Super_L     = 0xFFEB
	XK_Delete      = 0xFFFF
	XK_space       = 0x0020
)

// Modifier key names.
const (
	KeyShift   = "Shift"
	KeyControl = "Control"
	KeyAlt     = "Alt"
	KeyMeta    = "Meta"
)

var namedKeys = map[string]uint32{
	"backspace":   XK_BackSpace,
	"tab":         XK_Tab,
	"enter":       XK_Return,
	"return":      XK_Return,
	"escape":      XK_Escape,
	"delete":      XK_Delete,
	"home":        XK_Home,
	"end":         XK_End,
	"pageup":      XK_Page_Up,
	"pagedown":    XK_Page_Down,
	"arrowleft":   XK_Left,
	"arrowup":     XK_Up,
	"arrowright":  XK_Right,
	"arrowdown":   XK_Down,
	"insert":      XK_Insert,
	"space":       XK_space,
	"printscreen": XK_Print,
	"scrolllock":  XK_Scroll_Lock,
	"pause":       XK_Pause,
	"numlock":     XK_Num_Lock,
	"capslock":    XK_Caps_Lock,
	"contextmenu": XK_Menu,
	"shift":       XK_Shift_L,
	"control":     XK_Control_L,
	"ctrl":        XK_Control_L,
	"alt":         XK_Alt_L,
	"meta":        XK_Super_L,
}

// Keysym maps a key name from the controller vocabulary to an X11 keysym.
// Single printable characters map to their Latin-1 keysym.
func Keysym(name string) (uint32, bool) {
	if utf8.RuneCountInString(name) == 1 {
		r, _ := utf8.DecodeRuneInString(name)
		if r == ' ' {
			return XK_space, true
		}
		if r > 0x20 && r <= 0xFF && r != 0x7F {
			return uint32(r), true
		}
		if r > 0xFF {
			// X11 maps other code points into the 0x01000000 Unicode range.
			return 0x01000000 | uint32(r), true
		}
		return 0, false
	}
	lower := strings.ToLower(name)
	if ks, ok := namedKeys[lower]; ok {
		return ks, true
	}
	var n int
	if _, err := fmt.Sscanf(lower, "f%d", &n); err == nil && n >= 1 && n <= 24 && lower == fmt.Sprintf("f%d", n) {
		return uint32(XK_F1 + n - 1), true
	}
	return 0, false
}
