//go:build linux && cgo

package encode

/*
#cgo pkg-config: libavcodec libavutil
#include <libavcodec/avcodec.h>
#include <libavutil/imgutils.h>
#include <libavutil/opt.h>
#include <stdlib.h>
#include <string.h>

// ---------------------------------------------------------------------------
// YUV420P encoder. Frames arrive already in I420; planes are copied into the
// AVFrame and sent to libvpx-vp9, libsvtav1 or libaom-av1.
// ---------------------------------------------------------------------------

typedef struct {
	AVCodecContext *ctx;
	AVFrame *frame;
	AVPacket *pkt;
	int width;
	int height;
	int64_t pts;
} I420Encoder;

static const AVCodec* find_codec(int av1) {
	const AVCodec *codec = NULL;
	if (av1) {
		codec = avcodec_find_encoder_by_name("libsvtav1");
		if (!codec) codec = avcodec_find_encoder_by_name("libaom-av1");
	} else {
		codec = avcodec_find_encoder_by_name("libvpx-vp9");
	}
	return codec;
}

static I420Encoder* i420_encoder_init(int width, int height, int fps,
                                      int bitrate_bps, int keyint, int av1) {
	const AVCodec *codec = find_codec(av1);
	if (!codec) return NULL;

	I420Encoder *e = (I420Encoder*)calloc(1, sizeof(I420Encoder));
	if (!e) return NULL;
	e->width = width;
	e->height = height;

	e->ctx = avcodec_alloc_context3(codec);
	if (!e->ctx) { free(e); return NULL; }

	e->ctx->width = width;
	e->ctx->height = height;
	e->ctx->time_base = (AVRational){1, fps};
	e->ctx->framerate = (AVRational){fps, 1};
	e->ctx->pix_fmt = AV_PIX_FMT_YUV420P;
	e->ctx->bit_rate = (int64_t)bitrate_bps;
	e->ctx->rc_max_rate = (int64_t)bitrate_bps;
	e->ctx->gop_size = keyint;
	e->ctx->max_b_frames = 0;
	e->ctx->flags |= AV_CODEC_FLAG_LOW_DELAY;

	if (strcmp(codec->name, "libvpx-vp9") == 0) {
		av_opt_set(e->ctx->priv_data, "deadline", "realtime", 0);
		av_opt_set_int(e->ctx->priv_data, "cpu-used", 8, 0);
		av_opt_set_int(e->ctx->priv_data, "lag-in-frames", 0, 0);
		av_opt_set_int(e->ctx->priv_data, "row-mt", 1, 0);
		av_opt_set(e->ctx->priv_data, "tune-content", "screen", 0);
	} else if (strcmp(codec->name, "libsvtav1") == 0) {
		av_opt_set_int(e->ctx->priv_data, "preset", 12, 0);
		av_opt_set(e->ctx->priv_data, "svtav1-params", "pred-struct=1:scm=1", 0);
	} else {
		av_opt_set(e->ctx->priv_data, "usage", "realtime", 0);
		av_opt_set_int(e->ctx->priv_data, "cpu-used", 10, 0);
		av_opt_set_int(e->ctx->priv_data, "lag-in-frames", 0, 0);
		av_opt_set(e->ctx->priv_data, "tune-content", "screen", 0);
	}

	if (avcodec_open2(e->ctx, codec, NULL) < 0) {
		avcodec_free_context(&e->ctx);
		free(e);
		return NULL;
	}

	e->frame = av_frame_alloc();
	e->frame->format = AV_PIX_FMT_YUV420P;
	e->frame->width = width;
	e->frame->height = height;
	av_frame_get_buffer(e->frame, 0);

	e->pkt = av_packet_alloc();
	return e;
}

static void copy_plane(uint8_t *dst, int dst_stride, const uint8_t *src, int src_stride, int w, int h) {
	for (int y = 0; y < h; y++) {
		memcpy(dst + y * dst_stride, src + y * src_stride, w);
	}
}

static int i420_encoder_encode(I420Encoder *e,
                               const uint8_t *y, int y_stride,
                               const uint8_t *u, const uint8_t *v, int c_stride,
                               int force_key,
                               uint8_t **out_buf, int *out_size, int *is_key) {
	*out_size = 0;

	av_frame_make_writable(e->frame);
	copy_plane(e->frame->data[0], e->frame->linesize[0], y, y_stride, e->width, e->height);
	copy_plane(e->frame->data[1], e->frame->linesize[1], u, c_stride, e->width / 2, e->height / 2);
	copy_plane(e->frame->data[2], e->frame->linesize[2], v, c_stride, e->width / 2, e->height / 2);

	e->frame->pts = e->pts++;
	e->frame->pict_type = force_key ? AV_PICTURE_TYPE_I : AV_PICTURE_TYPE_NONE;

	int ret = avcodec_send_frame(e->ctx, e->frame);
	if (ret < 0) return -1;

	ret = avcodec_receive_packet(e->ctx, e->pkt);
	if (ret == AVERROR(EAGAIN) || ret == AVERROR_EOF) return 0;
	if (ret < 0) return -1;

	*out_buf = e->pkt->data;
	*out_size = e->pkt->size;
	*is_key = (e->pkt->flags & AV_PKT_FLAG_KEY) ? 1 : 0;
	return 0;
}

static void i420_encoder_unref(I420Encoder *e) { av_packet_unref(e->pkt); }

static const char* i420_encoder_name(I420Encoder *e) { return e->ctx->codec->name; }

static void i420_encoder_destroy(I420Encoder *e) {
	if (!e) return;
	if (e->pkt) av_packet_free(&e->pkt);
	if (e->frame) av_frame_free(&e->frame);
	if (e->ctx) avcodec_free_context(&e->ctx);
	free(e);
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

	"pairshare/internal/types"
)

type ffmpegEncoder struct {
	mu       sync.Mutex
	e        *C.I420Encoder
	width    int
	height   int
	frameDur time.Duration
	forceKey bool
}

// NewEncoder opens a software VP9 or AV1 encoder through libavcodec.
func NewEncoder(p Params, logger *zerolog.Logger) (types.VideoEncoder, error) {
	av1 := C.int(0)
	if p.Codec == AV1 {
		av1 = 1
	}
	e := C.i420_encoder_init(
		C.int(p.Width), C.int(p.Height), C.int(p.FPS),
		C.int(p.BitrateBps), C.int(p.keyint()), av1)
	if e == nil {
		return nil, fmt.Errorf("%w: %s at %dx%d", ErrUnavailable, p.Codec, p.Width, p.Height)
	}
	logger.Info().
		Str("component", "encode").
		Str("encoder", C.GoString(C.i420_encoder_name(e))).
		Int("width", p.Width).Int("height", p.Height).
		Int("bitrate", p.BitrateBps).
		Msg("video encoder opened")
	return &ffmpegEncoder{
		e:        e,
		width:    p.Width,
		height:   p.Height,
		frameDur: time.Second / time.Duration(p.FPS),
		forceKey: true,
	}, nil
}

func (enc *ffmpegEncoder) Encode(frame *image.YCbCr) (*types.EncodedFrame, error) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	if enc.e == nil {
		return nil, fmt.Errorf("encoder closed")
	}
	if frame.Rect.Dx() != enc.width || frame.Rect.Dy() != enc.height {
		return nil, fmt.Errorf("frame is %dx%d, encoder expects %dx%d",
			frame.Rect.Dx(), frame.Rect.Dy(), enc.width, enc.height)
	}

	var outBuf *C.uint8_t
	var outSize C.int
	var isKey C.int
	force := C.int(0)
	if enc.forceKey {
		force = 1
		enc.forceKey = false
	}

	ret := C.i420_encoder_encode(enc.e,
		(*C.uint8_t)(unsafe.Pointer(&frame.Y[0])), C.int(frame.YStride),
		(*C.uint8_t)(unsafe.Pointer(&frame.Cb[0])),
		(*C.uint8_t)(unsafe.Pointer(&frame.Cr[0])), C.int(frame.CStride),
		force, &outBuf, &outSize, &isKey)
	if ret != 0 {
		return nil, fmt.Errorf("encode failed")
	}
	if outSize == 0 {
		return nil, nil
	}

	data := C.GoBytes(unsafe.Pointer(outBuf), outSize)
	C.i420_encoder_unref(enc.e)

	return &types.EncodedFrame{
		Data:     data,
		IsKey:    isKey != 0,
		Duration: enc.frameDur,
	}, nil
}

func (enc *ffmpegEncoder) Close() {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	if enc.e == nil {
		return
	}
	C.i420_encoder_destroy(enc.e)
	enc.e = nil
}
