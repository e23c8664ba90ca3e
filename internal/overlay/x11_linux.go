//go:build linux && cgo

package overlay

/*
#cgo pkg-config: x11 xext xrandr
#include <X11/Xlib.h>
#include <X11/Xutil.h>
#include <X11/Xatom.h>
#include <X11/cursorfont.h>
#include <X11/extensions/shape.h>
#include <X11/extensions/Xrandr.h>
#include <stdlib.h>
#include <string.h>

typedef struct {
	int type; // 1 motion, 2 press, 3 release, 4 key, 5 monitors
	unsigned long window;
	int x, y;
	int button;
	char key[32];
} OverlayEvent;

typedef struct {
	int x, y, width, height;
	int primary;
	char name[64];
} OverlayMonitor;

static int rr_event_base = -1;

static Display* overlay_open(const char *name) {
	XInitThreads();
	Display *d = XOpenDisplay(name);
	if (!d) return NULL;
	int err_base;
	if (XRRQueryExtension(d, &rr_event_base, &err_base)) {
		XRRSelectInput(d, DefaultRootWindow(d), RRScreenChangeNotifyMask);
	}
	return d;
}

static int overlay_monitors(Display *d, OverlayMonitor *out, int max) {
	int n = 0;
	XRRMonitorInfo *mons = XRRGetMonitors(d, DefaultRootWindow(d), True, &n);
	if (!mons) return 0;
	if (n > max) n = max;
	for (int i = 0; i < n; i++) {
		out[i].x = mons[i].x;
		out[i].y = mons[i].y;
		out[i].width = mons[i].width;
		out[i].height = mons[i].height;
		out[i].primary = mons[i].primary;
		char *nm = XGetAtomName(d, mons[i].name);
		if (nm) {
			strncpy(out[i].name, nm, sizeof(out[i].name) - 1);
			XFree(nm);
		}
	}
	XRRFreeMonitors(mons);
	return n;
}

static void set_click_through(Display *d, Window w, int through) {
	if (through) {
		XShapeCombineRectangles(d, w, ShapeInput, 0, 0, NULL, 0, ShapeSet, YXBanded);
	} else {
		XShapeCombineMask(d, w, ShapeInput, 0, 0, None, ShapeSet);
	}
	XFlush(d);
}

static Window overlay_create(Display *d, int x, int y, int w, int h) {
	XVisualInfo vi;
	int screen = DefaultScreen(d);
	if (!XMatchVisualInfo(d, screen, 32, TrueColor, &vi)) return 0;

	XSetWindowAttributes attrs;
	memset(&attrs, 0, sizeof(attrs));
	attrs.colormap = XCreateColormap(d, RootWindow(d, screen), vi.visual, AllocNone);
	attrs.override_redirect = True;
	attrs.background_pixel = 0;
	attrs.border_pixel = 0;
	attrs.event_mask = ButtonPressMask | ButtonReleaseMask | PointerMotionMask | KeyPressMask;

	Window win = XCreateWindow(d, RootWindow(d, screen), x, y, w, h, 0, 32, InputOutput, vi.visual,
		CWColormap | CWOverrideRedirect | CWBackPixel | CWBorderPixel | CWEventMask, &attrs);

	Atom state = XInternAtom(d, "_NET_WM_STATE", False);
	Atom flags[2] = {
		XInternAtom(d, "_NET_WM_STATE_ABOVE", False),
		XInternAtom(d, "_NET_WM_STATE_SKIP_TASKBAR", False),
	};
	XChangeProperty(d, win, state, XA_ATOM, 32, PropModeReplace, (unsigned char*)flags, 2);
	set_click_through(d, win, 1);
	return win;
}

static void overlay_geometry(Display *d, Window w, int *width, int *height) {
	XWindowAttributes a;
	if (XGetWindowAttributes(d, w, &a)) {
		*width = a.width;
		*height = a.height;
	}
}

static void overlay_present(Display *d, Window w, char *bgra, int width, int height) {
	XWindowAttributes a;
	if (!XGetWindowAttributes(d, w, &a)) return;
	XImage *img = XCreateImage(d, a.visual, 32, ZPixmap, 0, bgra, width, height, 32, width * 4);
	if (!img) return;
	GC gc = XCreateGC(d, w, 0, NULL);
	XPutImage(d, w, gc, img, 0, 0, 0, 0, width, height);
	XFreeGC(d, gc);
	img->data = NULL;
	XDestroyImage(img);
	XFlush(d);
}

static void overlay_cursor(Display *d, Window w, int pencil) {
	Cursor c = XCreateFontCursor(d, pencil ? XC_pencil : XC_left_ptr);
	XDefineCursor(d, w, c);
	XFreeCursor(d, c);
	XFlush(d);
}

static int overlay_pointer(Display *d, int *x, int *y) {
	Window root, child;
	int wx, wy;
	unsigned int mask;
	return XQueryPointer(d, DefaultRootWindow(d), &root, &child, x, y, &wx, &wy, &mask);
}

static int overlay_next_event(Display *d, OverlayEvent *ev) {
	while (XPending(d)) {
		XEvent e;
		XNextEvent(d, &e);
		memset(ev, 0, sizeof(*ev));
		if (rr_event_base >= 0 && e.type == rr_event_base + RRScreenChangeNotify) {
			XRRUpdateConfiguration(&e);
			ev->type = 5;
			return 1;
		}
		switch (e.type) {
		case MotionNotify:
			ev->type = 1; ev->window = e.xmotion.window;
			ev->x = e.xmotion.x; ev->y = e.xmotion.y;
			return 1;
		case ButtonPress:
		case ButtonRelease:
			if (e.xbutton.button != Button1 && e.xbutton.button != Button3) continue;
			ev->type = e.type == ButtonPress ? 2 : 3;
			ev->button = e.xbutton.button == Button3 ? 1 : 0;
			ev->window = e.xbutton.window;
			ev->x = e.xbutton.x; ev->y = e.xbutton.y;
			return 1;
		case KeyPress: {
			KeySym sym = XLookupKeysym(&e.xkey, 0);
			const char *s = XKeysymToString(sym);
			if (!s) continue;
			ev->type = 4; ev->window = e.xkey.window;
			strncpy(ev->key, s, sizeof(ev->key) - 1);
			return 1;
		}
		}
	}
	return 0;
}
*/
import "C"

import (
	"fmt"
	"image"
	"sync"
	"time"
	"unsafe"

	"github.com/rs/zerolog"

	"pairshare/internal/geom"
	"pairshare/internal/types"
)

const (
	maxMonitors = 16
	pumpPeriod  = 5 * time.Millisecond
)

// X11Platform creates override-redirect ARGB windows on an X display.
type X11Platform struct {
	mu      sync.Mutex
	display *C.Display
	windows map[C.Window]uint32
	events  chan Event
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	log     zerolog.Logger
}

func NewX11Platform(displayName string, logger *zerolog.Logger) (*X11Platform, error) {
	cName := C.CString(displayName)
	defer C.free(unsafe.Pointer(cName))
	d := C.overlay_open(cName)
	if d == nil {
		return nil, fmt.Errorf("failed to open display %s", displayName)
	}
	p := &X11Platform{
		display: d,
		windows: make(map[C.Window]uint32),
		events:  make(chan Event, 256),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		log:     logger.With().Str("component", "x11-overlay").Logger(),
	}
	go p.pump()
	return p, nil
}

func (p *X11Platform) Events() <-chan Event { return p.events }

func (p *X11Platform) Monitors() ([]types.Monitor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var infos [maxMonitors]C.OverlayMonitor
	n := int(C.overlay_monitors(p.display, &infos[0], maxMonitors))
	out := make([]types.Monitor, 0, n)
	for i := 0; i < n; i++ {
		m := infos[i]
		out = append(out, types.Monitor{
			ID:      uint32(i),
			Name:    C.GoString(&m.name[0]),
			X:       int(m.x),
			Y:       int(m.y),
			Width:   int(m.width),
			Height:  int(m.height),
			Scale:   1,
			Primary: m.primary != 0,
		})
	}
	return out, nil
}

func (p *X11Platform) NewSurface(m types.Monitor) (Surface, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w := C.overlay_create(p.display, C.int(m.X), C.int(m.Y), C.int(m.Width), C.int(m.Height))
	if w == 0 {
		return nil, fmt.Errorf("%w: no 32-bit ARGB visual", ErrGraphicsContext)
	}
	p.windows[w] = m.ID
	return &x11Surface{p: p, win: w}, nil
}

func (p *X11Platform) Pointer() (int, int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.display == nil {
		return 0, 0, false
	}
	var x, y C.int
	if C.overlay_pointer(p.display, &x, &y) == 0 {
		return 0, 0, false
	}
	return int(x), int(y), true
}

func (p *X11Platform) pump() {
	defer close(p.done)
	defer close(p.events)
	t := time.NewTicker(pumpPeriod)
	defer t.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-t.C:
		}
		for {
			p.mu.Lock()
			var ev C.OverlayEvent
			ok := C.overlay_next_event(p.display, &ev) == 1
			id := p.windows[C.Window(ev.window)]
			p.mu.Unlock()
			if !ok {
				break
			}
			p.post(translate(&ev, id))
		}
	}
}

func translate(ev *C.OverlayEvent, id uint32) Event {
	pos := geom.Position{X: float64(ev.x), Y: float64(ev.y)}
	switch ev._type {
	case 1:
		return MouseInput{MonitorID: id, Position: pos, Kind: MouseMoved}
	case 2:
		return MouseInput{MonitorID: id, Position: pos, Kind: MousePressed, Button: uint32(ev.button)}
	case 3:
		return MouseInput{MonitorID: id, Position: pos, Kind: MouseReleased, Button: uint32(ev.button)}
	case 4:
		return KeyInput{MonitorID: id, Key: C.GoString(&ev.key[0])}
	default:
		return MonitorsChanged{}
	}
}

func (p *X11Platform) post(e Event) {
	select {
	case p.events <- e:
	default:
		p.log.Warn().Msg("overlay event queue full, dropping event")
	}
}

func (p *X11Platform) Close() {
	p.once.Do(func() {
		close(p.stop)
		<-p.done
		p.mu.Lock()
		C.XCloseDisplay(p.display)
		p.display = nil
		p.mu.Unlock()
	})
}

type x11Surface struct {
	p      *X11Platform
	win    C.Window
	buf    []byte
	closed bool
}

func (s *x11Surface) SetFrame(f geom.Frame) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	C.XMoveResizeWindow(s.p.display, s.win,
		C.int(f.Origin.X), C.int(f.Origin.Y), C.uint(f.Size.Width), C.uint(f.Size.Height))
	C.XSync(s.p.display, C.False)
}

func (s *x11Surface) PhysicalSize() (int, int) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	var w, h C.int
	C.overlay_geometry(s.p.display, s.win, &w, &h)
	return int(w), int(h)
}

func (s *x11Surface) SetVisible(v bool) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if v {
		C.XMapRaised(s.p.display, s.win)
	} else {
		C.XUnmapWindow(s.p.display, s.win)
	}
	C.XFlush(s.p.display)
}

func (s *x11Surface) SetHitTest(on bool) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	through := C.int(1)
	if on {
		through = 0
		C.XSetInputFocus(s.p.display, s.win, C.RevertToParent, C.CurrentTime)
	}
	C.set_click_through(s.p.display, s.win, through)
}

func (s *x11Surface) SetCursorIcon(icon CursorIcon) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	pencil := C.int(0)
	if icon == IconPencil {
		pencil = 1
	}
	C.overlay_cursor(s.p.display, s.win, pencil)
}

// Present converts premultiplied RGBA to the BGRA byte order of the ARGB
// visual and uploads it.
func (s *x11Surface) Present(img *image.RGBA) error {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	if len(s.buf) != w*h*4 {
		s.buf = make([]byte, w*h*4)
	}
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w*4]
		dst := s.buf[y*w*4 : (y+1)*w*4]
		for i := 0; i < len(src); i += 4 {
			dst[i+0] = src[i+2]
			dst[i+1] = src[i+1]
			dst[i+2] = src[i+0]
			dst[i+3] = src[i+3]
		}
	}
	cbuf := C.CBytes(s.buf)
	defer C.free(cbuf)

	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	C.overlay_present(s.p.display, s.win, (*C.char)(cbuf), C.int(w), C.int(h))
	return nil
}

func (s *x11Surface) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	delete(s.p.windows, s.win)
	if s.p.display != nil {
		C.XDestroyWindow(s.p.display, s.win)
		C.XFlush(s.p.display)
	}
}
