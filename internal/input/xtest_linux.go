//go:build linux && cgo

package input

/*
#cgo pkg-config: x11 xtst
#include <X11/Xlib.h>
#include <X11/extensions/XTest.h>
#include <stdlib.h>

static Display* input_display = NULL;

static int input_init(const char *display_name) {
	input_display = XOpenDisplay(display_name);
	if (!input_display) return -1;
	return 0;
}

static void input_warp(int x, int y) {
	if (!input_display) return;
	XTestFakeMotionEvent(input_display, DefaultScreen(input_display), x, y, 0);
	XFlush(input_display);
}

static void input_button(int button, int press) {
	if (!input_display) return;
	XTestFakeButtonEvent(input_display, button, press, 0);
	XFlush(input_display);
}

static void input_button_click(int button, int count) {
	if (!input_display) return;
	for (int i = 0; i < count; i++) {
		XTestFakeButtonEvent(input_display, button, True, 0);
		XTestFakeButtonEvent(input_display, button, False, 0);
	}
	XFlush(input_display);
}

static int input_key(unsigned long keysym, int press) {
	if (!input_display) return -1;
	KeyCode kc = XKeysymToKeycode(input_display, (KeySym)keysym);
	if (kc == 0) return -1;
	XTestFakeKeyEvent(input_display, kc, press, 0);
	XFlush(input_display);
	return 0;
}

static void input_destroy() {
	if (input_display) {
		XCloseDisplay(input_display);
		input_display = NULL;
	}
}
*/
import "C"
import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"pairshare/internal/types"
)

// scrollStep is the wheel delta that produces one X11 wheel button click.
const scrollStep = 40

// X11 wheel buttons.
const (
	x11WheelUp    = 4
	x11WheelDown  = 5
	x11WheelLeft  = 6
	x11WheelRight = 7
)

type xtestBackend struct {
	mu             sync.Mutex
	closed         bool
	accumX, accumY float64
}

// NewXTestBackend opens displayName and synthesizes input through XTest.
func NewXTestBackend(displayName string) (types.InputBackend, error) {
	cDisplay := C.CString(displayName)
	defer C.free(unsafe.Pointer(cDisplay))

	if C.input_init(cDisplay) != 0 {
		return nil, fmt.Errorf("failed to open display for input: %s", displayName)
	}
	return &xtestBackend{}, nil
}

var errClosed = errors.New("input: backend closed")

func (b *xtestBackend) Warp(x, y int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}
	C.input_warp(C.int(x), C.int(y))
	return nil
}

func (b *xtestBackend) Button(btn types.Button, down bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}
	C.input_button(C.int(x11Button(btn)), cBool(down))
	return nil
}

// Scroll accumulates sub-step deltas and fires one wheel click per step.
func (b *xtestBackend) Scroll(dx, dy float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}
	b.accumX += dx
	b.accumY += dy
	up, down := steps(&b.accumY)
	left, right := steps(&b.accumX)
	C.input_button_click(x11WheelUp, C.int(up))
	C.input_button_click(x11WheelDown, C.int(down))
	C.input_button_click(x11WheelLeft, C.int(left))
	C.input_button_click(x11WheelRight, C.int(right))
	return nil
}

func steps(accum *float64) (neg, pos int) {
	for *accum <= -scrollStep {
		neg++
		*accum += scrollStep
	}
	for *accum >= scrollStep {
		pos++
		*accum -= scrollStep
	}
	return neg, pos
}

func (b *xtestBackend) Key(name string, down bool) error {
	ks, ok := Keysym(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}
	if C.input_key(C.ulong(ks), cBool(down)) != 0 {
		return fmt.Errorf("input: no keycode for %q", name)
	}
	return nil
}

func (b *xtestBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	C.input_destroy()
}

func x11Button(btn types.Button) int {
	switch btn {
	case types.ButtonMiddle:
		return 2
	case types.ButtonRight:
		return 3
	default:
		return 1
	}
}

func cBool(v bool) C.int {
	if v {
		return 1
	}
	return 0
}
