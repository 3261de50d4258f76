//go:build linux && cgo

package backend

/*
#include <stdlib.h>
#include <dlfcn.h>

typedef void *(*pw_thread_loop_new_fn)(const char *, const void *);
typedef int   (*pw_thread_loop_start_fn)(void *);
typedef void  (*pw_thread_loop_stop_fn)(void *);
typedef void  (*pw_thread_loop_destroy_fn)(void *);
typedef void  (*pw_init_fn)(int *, char ***);
typedef void *(*pw_stream_new_simple_fn)(void *loop, const char *name, void *props,
                                          const void *events, void *data);
typedef int   (*pw_stream_connect_fn)(void *stream, int direction, unsigned int target_id,
                                       unsigned int flags, const void **params, unsigned int n_params);
typedef void  (*pw_stream_disconnect_fn)(void *stream);
typedef void  (*pw_stream_destroy_fn)(void *stream);
typedef void *(*pw_stream_dequeue_buffer_fn)(void *stream);
typedef int   (*pw_stream_queue_buffer_fn)(void *stream, void *buffer);

// Minimal mirrors of spa/buffer/buffer.h and pipewire/stream.h — just
// enough layout to reach the first data plane's pointer and chunk size
// from the process callback. Field names match upstream.
struct proctap_spa_chunk {
	unsigned int offset;
	unsigned int size;
	int stride;
};

struct proctap_spa_data {
	unsigned int type;
	unsigned int flags;
	int fd;
	unsigned int mapoffset;
	unsigned int maxsize;
	void *data;
	struct proctap_spa_chunk *chunk;
};

struct proctap_spa_buffer {
	unsigned int n_metas;
	unsigned int n_datas;
	void *metas;
	struct proctap_spa_data *datas;
};

struct proctap_pw_buffer {
	struct proctap_spa_buffer *buffer;
	void *user_data;
	unsigned long long size;
	unsigned long long requested;
};

static void *proctap_pw_stream_dequeue_buffer(void *fn, void *stream) {
	return ((pw_stream_dequeue_buffer_fn)fn)(stream);
}
static int proctap_pw_stream_queue_buffer(void *fn, void *stream, void *buffer) {
	return ((pw_stream_queue_buffer_fn)fn)(stream, buffer);
}

// proctap_pw_buffer_first_plane extracts the first data plane's pointer
// and chunk size from a dequeued pw_buffer, or (NULL, 0) if absent.
static void proctap_pw_buffer_first_plane(void *bufferPtr, void **dataOut, unsigned int *sizeOut) {
	struct proctap_pw_buffer *b = (struct proctap_pw_buffer *)bufferPtr;
	*dataOut = NULL;
	*sizeOut = 0;
	if (b == NULL || b->buffer == NULL || b->buffer->n_datas < 1) {
		return;
	}
	struct proctap_spa_data *d = &b->buffer->datas[0];
	if (d->data == NULL || d->chunk == NULL) {
		return;
	}
	*dataOut = (char *)d->data + d->chunk->offset;
	*sizeOut = d->chunk->size;
}

extern void proctapPwOnProcess(void *data);

static void proctap_on_process_trampoline(void *data) {
	proctapPwOnProcess(data);
}

typedef struct {
	unsigned int version;
	void *destroy;
	void *state_changed;
	void *control_info;
	void *io_changed;
	void *param_changed;
	void *add_buffer;
	void *remove_buffer;
	void *process;
	void *drained;
} proctap_stream_events2;

static void proctap_events_set_process(proctap_stream_events2 *ev) {
	ev->process = (void *)proctap_on_process_trampoline;
}

// Trampolines: cgo cannot invoke a dlsym'd function pointer directly from
// Go, so every PipeWire entry point is called through one of these.
static void *proctap_dlsym(void *handle, const char *name) {
	return dlsym(handle, name);
}
static void proctap_pw_init(void *fn, int *argc, char ***argv) {
	((pw_init_fn)fn)(argc, argv);
}
static void *proctap_pw_thread_loop_new(void *fn, const char *name) {
	return ((pw_thread_loop_new_fn)fn)(name, NULL);
}
static int proctap_pw_thread_loop_start(void *fn, void *loop) {
	return ((pw_thread_loop_start_fn)fn)(loop);
}
static void proctap_pw_thread_loop_stop(void *fn, void *loop) {
	((pw_thread_loop_stop_fn)fn)(loop);
}
static void proctap_pw_thread_loop_destroy(void *fn, void *loop) {
	((pw_thread_loop_destroy_fn)fn)(loop);
}
static void *proctap_pw_stream_new_simple(void *fn, void *loop, const char *name,
                                           proctap_stream_events2 *events, void *data) {
	return ((pw_stream_new_simple_fn)fn)(loop, name, NULL, events, data);
}
static int proctap_pw_stream_connect(void *fn, void *stream, unsigned int targetID) {
	return ((pw_stream_connect_fn)fn)(stream, 0, targetID, 0, NULL, 0);
}
static void proctap_pw_stream_disconnect(void *fn, void *stream) {
	((pw_stream_disconnect_fn)fn)(stream);
}
static void proctap_pw_stream_destroy(void *fn, void *stream) {
	((pw_stream_destroy_fn)fn)(stream);
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"proctap/pcm"
	"proctap/ring"
)

// pwStreamPump owns a PipeWire thread loop + input stream dlopen'd from
// libpipewire-0.3. Its on_process callback is the hard real-time path
// named in spec §4.2: it may only dequeue a buffer and copy into the
// ring, never allocate.
type pwStreamPump struct {
	nodeID int
	buf    *ring.Buffer

	loop   unsafe.Pointer
	stream unsafe.Pointer
	events *C.proctap_stream_events2
	format pcm.Format

	// Resolved once at start() and used only from the real-time on_process
	// callback, which must not dlsym (dlsym/CString allocate).
	dequeueFn unsafe.Pointer
	queueFn   unsafe.Pointer
}

var (
	pwPumpsMu sync.Mutex
	pwPumps   = map[unsafe.Pointer]*pwStreamPump{}
)

func newPwStreamPump(nodeID int, buf *ring.Buffer) *pwStreamPump {
	return &pwStreamPump{nodeID: nodeID, buf: buf}
}

func (p *pwStreamPump) start() (pcm.Format, error) {
	sym := func(name string) (unsafe.Pointer, error) {
		cName := C.CString(name)
		defer C.free(unsafe.Pointer(cName))
		s := C.proctap_dlsym(pwHandle, cName)
		if s == nil {
			return nil, fmt.Errorf("missing pipewire symbol %s", name)
		}
		return s, nil
	}

	pwInit, err := sym("pw_init")
	if err != nil {
		return pcm.Format{}, err
	}
	loopNew, err := sym("pw_thread_loop_new")
	if err != nil {
		return pcm.Format{}, err
	}
	loopStart, err := sym("pw_thread_loop_start")
	if err != nil {
		return pcm.Format{}, err
	}
	streamNewSimple, err := sym("pw_stream_new_simple")
	if err != nil {
		return pcm.Format{}, err
	}
	streamConnect, err := sym("pw_stream_connect")
	if err != nil {
		return pcm.Format{}, err
	}
	dequeueBuffer, err := sym("pw_stream_dequeue_buffer")
	if err != nil {
		return pcm.Format{}, err
	}
	queueBuffer, err := sym("pw_stream_queue_buffer")
	if err != nil {
		return pcm.Format{}, err
	}
	p.dequeueFn = dequeueBuffer
	p.queueFn = queueBuffer

	C.proctap_pw_init(pwInit, nil, nil)

	loopName := C.CString("proctap")
	defer C.free(unsafe.Pointer(loopName))
	loop := C.proctap_pw_thread_loop_new(loopNew, loopName)
	if loop == nil {
		return pcm.Format{}, fmt.Errorf("pw_thread_loop_new failed")
	}
	p.loop = loop

	events := (*C.proctap_stream_events2)(C.malloc(C.sizeof_proctap_stream_events2))
	*events = C.proctap_stream_events2{}
	C.proctap_events_set_process(events)
	p.events = events

	pwPumpsMu.Lock()
	pwPumps[unsafe.Pointer(p)] = p
	pwPumpsMu.Unlock()

	streamName := C.CString("proctap-capture")
	defer C.free(unsafe.Pointer(streamName))
	stream := C.proctap_pw_stream_new_simple(streamNewSimple, loop, streamName, events, unsafe.Pointer(p))
	if stream == nil {
		return pcm.Format{}, fmt.Errorf("pw_stream_new_simple failed")
	}
	p.stream = stream

	// No format parameter is passed to pw_stream_connect and no
	// param_changed handler is installed: the pump reports 48kHz/2ch/float32
	// as the native format without negotiating it or observing what
	// PipeWire actually delivers.
	p.format = pcm.Format{SampleRate: 48000, Channels: 2, SampleFormat: pcm.SampleFormatFloat32}

	if rc := C.proctap_pw_stream_connect(streamConnect, stream, C.uint(p.nodeID)); rc < 0 {
		return pcm.Format{}, fmt.Errorf("pw_stream_connect failed: %d", int(rc))
	}

	if C.proctap_pw_thread_loop_start(loopStart, loop) != 0 {
		return pcm.Format{}, fmt.Errorf("pw_thread_loop_start failed")
	}

	return p.format, nil
}

func (p *pwStreamPump) stop() {
	sym := func(name string) unsafe.Pointer {
		cName := C.CString(name)
		defer C.free(unsafe.Pointer(cName))
		return C.proctap_dlsym(pwHandle, cName)
	}
	if p.stream != nil {
		if f := sym("pw_stream_disconnect"); f != nil {
			C.proctap_pw_stream_disconnect(f, p.stream)
		}
		if f := sym("pw_stream_destroy"); f != nil {
			C.proctap_pw_stream_destroy(f, p.stream)
		}
	}
	if p.loop != nil {
		if f := sym("pw_thread_loop_stop"); f != nil {
			C.proctap_pw_thread_loop_stop(f, p.loop)
		}
		if f := sym("pw_thread_loop_destroy"); f != nil {
			C.proctap_pw_thread_loop_destroy(f, p.loop)
		}
	}
	if p.events != nil {
		C.free(unsafe.Pointer(p.events))
	}
	pwPumpsMu.Lock()
	delete(pwPumps, unsafe.Pointer(p))
	pwPumpsMu.Unlock()
}

//export proctapPwOnProcess
func proctapPwOnProcess(data unsafe.Pointer) {
	pwPumpsMu.Lock()
	p := pwPumps[data]
	pwPumpsMu.Unlock()
	if p == nil || p.dequeueFn == nil || p.queueFn == nil {
		return
	}

	pwBuf := C.proctap_pw_stream_dequeue_buffer(p.dequeueFn, p.stream)
	if pwBuf == nil {
		return
	}

	var dataPtr unsafe.Pointer
	var size C.uint
	C.proctap_pw_buffer_first_plane(pwBuf, &dataPtr, &size)
	if dataPtr != nil && size > 0 {
		// unsafe.Slice only builds a header over PipeWire's plane memory;
		// Write copies out of it before queue_buffer hands the plane back.
		p.buf.Write(unsafe.Slice((*byte)(dataPtr), int(size)))
	}

	C.proctap_pw_stream_queue_buffer(p.queueFn, p.stream, pwBuf)
}
