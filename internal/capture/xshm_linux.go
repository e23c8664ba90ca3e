//go:build linux && cgo

package capture

/*
#cgo pkg-config: x11 xext xrandr
#include <X11/Xlib.h>
#include <X11/Xutil.h>
#include <X11/Xatom.h>
#include <X11/extensions/XShm.h>
#include <X11/extensions/Xrandr.h>
#include <sys/ipc.h>
#include <sys/shm.h>
#include <stdlib.h>
#include <string.h>

// ---------------------------------------------------------------------------
// Region grabber. XShm by default, XGetImage when use_shm is 0.
// ---------------------------------------------------------------------------

typedef struct {
	Display *display;
	Window root;
	XShmSegmentInfo shminfo;
	XImage *image;
	int use_shm;
	int x, y;
	int width;
	int height;
} RegionGrabber;

static RegionGrabber* grabber_init(const char *display_name, int x, int y, int w, int h, int use_shm) {
	RegionGrabber *c = (RegionGrabber*)calloc(1, sizeof(RegionGrabber));
	if (!c) return NULL;

	c->display = XOpenDisplay(display_name);
	if (!c->display) { free(c); return NULL; }

	int screen = DefaultScreen(c->display);
	c->root = RootWindow(c->display, screen);
	c->x = x;
	c->y = y;
	c->width = w;
	c->height = h;
	c->use_shm = use_shm && XShmQueryExtension(c->display);
	if (!c->use_shm) return c;

	c->image = XShmCreateImage(c->display,
		DefaultVisual(c->display, screen),
		DefaultDepth(c->display, screen),
		ZPixmap, NULL, &c->shminfo, w, h);
	if (!c->image) {
		XCloseDisplay(c->display);
		free(c);
		return NULL;
	}

	c->shminfo.shmid = shmget(IPC_PRIVATE,
		c->image->bytes_per_line * c->image->height,
		IPC_CREAT | 0600);
	if (c->shminfo.shmid < 0) {
		XDestroyImage(c->image);
		XCloseDisplay(c->display);
		free(c);
		return NULL;
	}

	c->shminfo.shmaddr = c->image->data = (char*)shmat(c->shminfo.shmid, NULL, 0);
	c->shminfo.readOnly = False;

	if (!XShmAttach(c->display, &c->shminfo)) {
		shmdt(c->shminfo.shmaddr);
		shmctl(c->shminfo.shmid, IPC_RMID, NULL);
		XDestroyImage(c->image);
		XCloseDisplay(c->display);
		free(c);
		return NULL;
	}

	// Mark for removal so it's cleaned up when we detach
	shmctl(c->shminfo.shmid, IPC_RMID, NULL);
	return c;
}

static int grabber_grab(RegionGrabber *c) {
	if (c->use_shm) {
		if (!XShmGetImage(c->display, c->root, c->image, c->x, c->y, AllPlanes)) {
			return -1;
		}
		XSync(c->display, False);
		return 0;
	}
	if (c->image) XDestroyImage(c->image);
	c->image = XGetImage(c->display, c->root, c->x, c->y,
		c->width, c->height, AllPlanes, ZPixmap);
	return c->image ? 0 : -1;
}

static void grabber_destroy(RegionGrabber *c) {
	if (!c) return;
	if (c->use_shm) {
		XShmDetach(c->display, &c->shminfo);
		shmdt(c->shminfo.shmaddr);
	}
	if (c->image) XDestroyImage(c->image);
	XCloseDisplay(c->display);
	free(c);
}

// ---------------------------------------------------------------------------
// Enumeration
// ---------------------------------------------------------------------------

typedef struct {
	int x, y, width, height;
	int primary;
	char name[64];
} MonitorInfo;

static int list_monitors(const char *display_name, MonitorInfo *out, int max) {
	Display *d = XOpenDisplay(display_name);
	if (!d) return -1;
	int n = 0;
	XRRMonitorInfo *mons = XRRGetMonitors(d, DefaultRootWindow(d), True, &n);
	int count = 0;
	for (int i = 0; i < n && count < max; i++) {
		out[count].x = mons[i].x;
		out[count].y = mons[i].y;
		out[count].width = mons[i].width;
		out[count].height = mons[i].height;
		out[count].primary = mons[i].primary;
		char *name = XGetAtomName(d, mons[i].name);
		if (name) {
			strncpy(out[count].name, name, sizeof(out[count].name) - 1);
			XFree(name);
		}
		count++;
	}
	if (mons) XRRFreeMonitors(mons);
	XCloseDisplay(d);
	return count;
}

typedef struct {
	unsigned long id;
	int x, y, width, height;
	char title[128];
} WindowInfo;

static int list_windows(const char *display_name, WindowInfo *out, int max) {
	Display *d = XOpenDisplay(display_name);
	if (!d) return -1;
	Window root = DefaultRootWindow(d);
	Atom list = XInternAtom(d, "_NET_CLIENT_LIST", True);
	Atom wmName = XInternAtom(d, "_NET_WM_NAME", True);
	Atom utf8 = XInternAtom(d, "UTF8_STRING", True);
	if (list == None) { XCloseDisplay(d); return 0; }

	Atom type;
	int format;
	unsigned long nitems, after;
	unsigned char *data = NULL;
	if (XGetWindowProperty(d, root, list, 0, 4096, False, XA_WINDOW,
			&type, &format, &nitems, &after, &data) != Success || !data) {
		XCloseDisplay(d);
		return 0;
	}
	Window *wins = (Window*)data;
	int count = 0;
	for (unsigned long i = 0; i < nitems && count < max; i++) {
		XWindowAttributes attr;
		if (!XGetWindowAttributes(d, wins[i], &attr) || attr.map_state != IsViewable) continue;
		Window child;
		int rx, ry;
		XTranslateCoordinates(d, wins[i], root, 0, 0, &rx, &ry, &child);
		out[count].id = wins[i];
		out[count].x = rx;
		out[count].y = ry;
		out[count].width = attr.width;
		out[count].height = attr.height;
		out[count].title[0] = 0;

		unsigned char *title = NULL;
		Atom t;
		int f;
		unsigned long n, a;
		if (wmName != None && XGetWindowProperty(d, wins[i], wmName, 0, 256, False, utf8,
				&t, &f, &n, &a, &title) == Success && title) {
			strncpy(out[count].title, (char*)title, sizeof(out[count].title) - 1);
			XFree(title);
		}
		count++;
	}
	XFree(data);
	XCloseDisplay(d);
	return count;
}
*/
import "C"
import (
	"fmt"
	"unsafe"

	"github.com/rs/zerolog"

	"pairshare/internal/types"
)

const (
	maxMonitors = 16
	maxWindows  = 256
)

// X11Source captures monitors and windows of an X display.
type X11Source struct {
	display string
	log     zerolog.Logger
}

func NewX11Source(displayName string, logger *zerolog.Logger) *X11Source {
	return &X11Source{display: displayName, log: logger.With().Str("component", "x11-capture").Logger()}
}

// Monitors lists the displays reported by XRandR.
func (s *X11Source) Monitors() ([]types.Monitor, error) {
	cDisplay := C.CString(s.display)
	defer C.free(unsafe.Pointer(cDisplay))

	var infos [maxMonitors]C.MonitorInfo
	n := int(C.list_monitors(cDisplay, &infos[0], maxMonitors))
	if n < 0 {
		return nil, fmt.Errorf("failed to open display %s", s.display)
	}
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

func (s *X11Source) windows() ([]C.WindowInfo, error) {
	cDisplay := C.CString(s.display)
	defer C.free(unsafe.Pointer(cDisplay))

	infos := make([]C.WindowInfo, maxWindows)
	n := int(C.list_windows(cDisplay, &infos[0], maxWindows))
	if n < 0 {
		return nil, fmt.Errorf("failed to open display %s", s.display)
	}
	return infos[:n], nil
}

func (s *X11Source) Enumerate() ([]types.Content, error) {
	mons, err := s.Monitors()
	if err != nil {
		return nil, err
	}
	var out []types.Content
	for _, m := range mons {
		out = append(out, types.Content{Kind: types.ContentDisplay, ID: m.ID, MonitorID: m.ID, Title: m.Name})
	}
	wins, err := s.windows()
	if err != nil {
		s.log.Warn().Err(err).Msg("window enumeration failed")
		return out, nil
	}
	for _, w := range wins {
		cx, cy := int(w.x)+int(w.width)/2, int(w.y)+int(w.height)/2
		out = append(out, types.Content{
			Kind:      types.ContentWindow,
			ID:        uint32(w.id),
			MonitorID: monitorAt(mons, cx, cy),
			Title:     C.GoString(&w.title[0]),
		})
	}
	return out, nil
}

func monitorAt(mons []types.Monitor, x, y int) uint32 {
	for _, m := range mons {
		if x >= m.X && x < m.X+m.Width && y >= m.Y && y < m.Y+m.Height {
			return m.ID
		}
	}
	return 0
}

// Open returns a grabber for content. fallback selects plain XGetImage
// instead of shared memory.
func (s *X11Source) Open(content types.Content, fallback bool) (types.ScreenGrabber, error) {
	var x, y, w, h int
	switch content.Kind {
	case types.ContentDisplay:
		mons, err := s.Monitors()
		if err != nil {
			return nil, err
		}
		if int(content.ID) >= len(mons) {
			return nil, fmt.Errorf("monitor %d not found", content.ID)
		}
		m := mons[content.ID]
		x, y, w, h = m.X, m.Y, m.Width, m.Height
	case types.ContentWindow:
		wins, err := s.windows()
		if err != nil {
			return nil, err
		}
		found := false
		for _, win := range wins {
			if uint32(win.id) == content.ID {
				x, y, w, h = int(win.x), int(win.y), int(win.width), int(win.height)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("window %d not found", content.ID)
		}
	default:
		return nil, fmt.Errorf("unknown content kind %q", content.Kind)
	}

	cDisplay := C.CString(s.display)
	defer C.free(unsafe.Pointer(cDisplay))
	useShm := C.int(1)
	if fallback {
		useShm = 0
	}
	g := C.grabber_init(cDisplay, C.int(x), C.int(y), C.int(w), C.int(h), useShm)
	if g == nil {
		return nil, fmt.Errorf("failed to initialize capture on %s", s.display)
	}
	s.log.Info().Int("width", w).Int("height", h).Bool("shm", g.use_shm != 0).Msg("grabber opened")
	return &regionGrabber{c: g}, nil
}

type regionGrabber struct {
	c *C.RegionGrabber
}

func (g *regionGrabber) Width() int  { return int(g.c.width) }
func (g *regionGrabber) Height() int { return int(g.c.height) }

// Grab returns a frame aliasing the grabber's image memory. It is valid until
// the next Grab.
func (g *regionGrabber) Grab() (*types.RawFrame, error) {
	if C.grabber_grab(g.c) != 0 {
		return nil, fmt.Errorf("XGetImage failed")
	}
	stride := int(g.c.image.bytes_per_line)
	h := int(g.c.height)
	data := unsafe.Slice((*byte)(unsafe.Pointer(g.c.image.data)), stride*h)
	return &types.RawFrame{
		Data:   data,
		Width:  int(g.c.width),
		Height: h,
		Stride: stride,
	}, nil
}

func (g *regionGrabber) Close() {
	C.grabber_destroy(g.c)
	g.c = nil
}
