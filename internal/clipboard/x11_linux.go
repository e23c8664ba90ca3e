//go:build linux && cgo

package clipboard

/*
#cgo pkg-config: x11
#include <X11/Xlib.h>
#include <X11/Xatom.h>
#include <stdlib.h>
#include <string.h>

typedef struct {
	Display *dpy;
	Window win;
	Atom clipboard;
	Atom utf8;
	Atom targets;
	char *text;
	int len;
} selection_owner;

static selection_owner *owner_open(const char *name) {
	Display *dpy = XOpenDisplay(name);
	if (!dpy) return NULL;
	selection_owner *o = calloc(1, sizeof(selection_owner));
	o->dpy = dpy;
	o->clipboard = XInternAtom(dpy, "CLIPBOARD", False);
	o->utf8 = XInternAtom(dpy, "UTF8_STRING", False);
	o->targets = XInternAtom(dpy, "TARGETS", False);
	o->win = XCreateSimpleWindow(dpy, DefaultRootWindow(dpy), 0, 0, 1, 1, 0, 0, 0);
	return o;
}

static void owner_drop_text(selection_owner *o) {
	free(o->text);
	o->text = NULL;
	o->len = 0;
}

static int owner_take(selection_owner *o, const char *text, int len) {
	owner_drop_text(o);
	o->text = malloc(len + 1);
	memcpy(o->text, text, len);
	o->text[len] = 0;
	o->len = len;
	XSetSelectionOwner(o->dpy, o->clipboard, o->win, CurrentTime);
	XFlush(o->dpy);
	return XGetSelectionOwner(o->dpy, o->clipboard) == o->win;
}

static void owner_reply(selection_owner *o, XSelectionRequestEvent *req) {
	XSelectionEvent note;
	memset(&note, 0, sizeof(note));
	note.type = SelectionNotify;
	note.requestor = req->requestor;
	note.selection = req->selection;
	note.target = req->target;
	note.time = req->time;
	note.property = None;

	if (req->target == o->targets) {
		Atom offered[] = { o->targets, o->utf8, XA_STRING };
		XChangeProperty(o->dpy, req->requestor, req->property, XA_ATOM, 32,
			PropModeReplace, (unsigned char *)offered, 3);
		note.property = req->property;
	} else if (o->text && (req->target == o->utf8 || req->target == XA_STRING)) {
		XChangeProperty(o->dpy, req->requestor, req->property, req->target, 8,
			PropModeReplace, (unsigned char *)o->text, o->len);
		note.property = req->property;
	}
	XSendEvent(o->dpy, req->requestor, False, 0, (XEvent *)&note);
	XFlush(o->dpy);
}

// owner_pump handles queued events. It returns 1 if the selection was
// taken by another client.
static int owner_pump(selection_owner *o) {
	int lost = 0;
	while (XPending(o->dpy)) {
		XEvent ev;
		XNextEvent(o->dpy, &ev);
		switch (ev.type) {
		case SelectionRequest:
			owner_reply(o, &ev.xselectionrequest);
			break;
		case SelectionClear:
			owner_drop_text(o);
			lost = 1;
			break;
		}
	}
	return lost;
}

static void owner_close(selection_owner *o) {
	owner_drop_text(o);
	XDestroyWindow(o->dpy, o->win);
	XCloseDisplay(o->dpy);
	free(o);
}
*/
import "C"
import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/rs/zerolog"

	"pairshare/internal/types"
)

// servePoll is how often pending selection requests are answered.
const servePoll = 20 * time.Millisecond

var ErrClosed = errors.New("clipboard: owner closed")

type x11Owner struct {
	mu  sync.Mutex
	o   *C.selection_owner
	log zerolog.Logger
}

// NewX11Owner opens its own connection to displayName. The CLIPBOARD
// selection is taken on the first SetText.
func NewX11Owner(displayName string, logger *zerolog.Logger) (types.ClipboardOwner, error) {
	cDisplay := C.CString(displayName)
	defer C.free(unsafe.Pointer(cDisplay))

	o := C.owner_open(cDisplay)
	if o == nil {
		return nil, fmt.Errorf("clipboard: open display %q", displayName)
	}
	return &x11Owner{o: o, log: logger.With().Str("component", "clipboard").Logger()}, nil
}

func (x *x11Owner) SetText(text string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.o == nil {
		return ErrClosed
	}
	cText := C.CString(text)
	defer C.free(unsafe.Pointer(cText))
	if C.owner_take(x.o, cText, C.int(len(text))) == 0 {
		return errors.New("clipboard: selection ownership refused")
	}
	x.log.Debug().Int("bytes", len(text)).Msg("selection taken")
	return nil
}

// Run answers selection requests from other applications until stop closes.
func (x *x11Owner) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(servePoll)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			x.mu.Lock()
			if x.o != nil && C.owner_pump(x.o) == 1 {
				x.log.Debug().Msg("selection ownership lost")
			}
			x.mu.Unlock()
		}
	}
}

func (x *x11Owner) Close() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.o == nil {
		return
	}
	C.owner_close(x.o)
	x.o = nil
	x.log.Debug().Msg("clipboard owner closed")
}
