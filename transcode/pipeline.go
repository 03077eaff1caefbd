// Package transcode is the C4 core pipeline: it turns a decoded source
// region into encoded, chunked output bytes without ever holding the full
// encoded response in memory at the HTTP layer. Two bounded channels
// connect three goroutines — decode worker, encode worker, and the HTTP
// response goroutine reading from BodyStream — mirroring the teacher's
// core.Processor worker pool (core/processor.go: jobQueue chan Job,
// sync.WaitGroup, shutdown via context) but specialized to a
// single-request three-stage pipeline instead of a shared N-worker queue,
// since each IIIF request needs its own decode/encode pair rather than a
// pool of interchangeable jobs.
//
// The decode worker drains codec.RegionDecoder.DecodeInto in a loop and
// sends each scanline band as its own chunk on decodedCh, so that channel
// carries bounded-size chunks rather than one whole-image object; the
// encode worker reassembles those bands into the single pixel buffer
// govips needs (it has no scanline export API) before producing the
// encoded bytes it then chunks onto the output queue.
package transcode

import (
	"context"
	"image"
	"io"
	"sync/atomic"

	apperrors "github.com/deepzoom/iiifd/apperrors"
	"github.com/deepzoom/iiifd/codec"
	"github.com/deepzoom/iiifd/codec/jpegenc"
	"github.com/deepzoom/iiifd/iiif"
)

// Encoder is the subset of jpegenc.Backend's surface the pipeline depends
// on; tests substitute a fake that skips libvips entirely. *jpegenc.Backend
// satisfies this interface as-is.
type Encoder interface {
	CanEncode(format iiif.Format) bool
	Encode(ctx context.Context, src image.Image, opts jpegenc.Options) ([]byte, error)
}

// Job describes one transcode request: a previously opened region decoder
// plus the final encode geometry the service layer resolved from the
// IIIF URL.
type Job struct {
	Region codec.RegionDecoder
	Encode jpegenc.Options
}

// Config bounds the pipeline's memory footprint.
type Config struct {
	QueueDepth int // channel depth between pipeline stages; default 4
	ChunkSize  int // bytes per chunk written to BodyStream; default 4 KiB
}

// Pipeline runs decode and encode as two goroutines connected by bounded
// channels, handing the caller a BodyStream to read as it's produced.
type Pipeline struct {
	encoder Encoder
	cfg     Config
}

// New creates a Pipeline. encoder must not be nil.
func New(encoder Encoder, cfg Config) *Pipeline {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 4
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 4 * 1024
	}
	return &Pipeline{encoder: encoder, cfg: cfg}
}

// Run starts the decode and encode workers for job and returns a
// BodyStream the caller reads to completion (or Close()s early, e.g. when
// an HTTP client disconnects).
func (p *Pipeline) Run(ctx context.Context, job Job) *BodyStream {
	runCtx, cancel := context.WithCancel(ctx)

	decodedCh := make(chan []byte, p.cfg.QueueDepth)
	chunks := make(chan []byte, p.cfg.QueueDepth)
	errCh := make(chan error, 2)
	var cancelled atomic.Bool

	go decodeWorker(runCtx, job.Region, decodedCh, errCh, &cancelled)
	go encodeWorker(runCtx, p.encoder, job.Region, job.Encode, decodedCh, chunks, errCh, p.cfg.ChunkSize, &cancelled)

	return &BodyStream{chunks: chunks, errCh: errCh, cancel: cancel}
}

// decodeWorker repeatedly calls rd.DecodeInto, sending each filled
// scanline band as an independent, immutable chunk on out. This keeps at
// most one in-flight band per queue slot resident between the decode and
// encode workers, rather than the whole decoded region.
func decodeWorker(ctx context.Context, rd codec.RegionDecoder, out chan<- []byte, errCh chan<- error, cancelled *atomic.Bool) {
	defer close(out)

	w, _ := rd.OutputSize()
	bandRows := rd.ChunkHeight()
	if bandRows <= 0 {
		bandRows = 16
	}
	bufSize := w * bandRows * 4
	if bufSize <= 0 {
		bufSize = 1
	}

	for {
		if ctx.Err() != nil {
			cancelled.Store(true)
			return
		}

		band := make([]byte, bufSize)
		n, done, err := rd.DecodeInto(ctx, band)
		if err != nil {
			trySend(errCh, err)
			return
		}

		if n > 0 {
			select {
			case out <- band[:n]:
			case <-ctx.Done():
				cancelled.Store(true)
				return
			}
		}

		if done {
			return
		}
	}
}

// encodeWorker drains the scanline bands decodeWorker produces into one
// RGBA buffer — govips's Encode takes a whole image.Image and has no
// scanline-write entry point — then runs the encoder and chunks its
// output onto chunks.
func encodeWorker(
	ctx context.Context,
	encoder Encoder,
	rd codec.RegionDecoder,
	opts jpegenc.Options,
	in <-chan []byte,
	chunks chan<- []byte,
	errCh chan<- error,
	chunkSize int,
	cancelled *atomic.Bool,
) {
	defer close(chunks)

	w, h := rd.OutputSize()
	if w <= 0 || h <= 0 {
		// Nothing to encode; drain so the decode worker's goroutine isn't
		// left blocked on a send, and let its error (if any) reach errCh.
		for range in {
		}
		return
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	offset := 0

	for band := range in {
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			return
		default:
		}
		offset += copy(img.Pix[offset:], band)
	}

	if offset != len(img.Pix) {
		// decodeWorker stopped early, either on its own error (already on
		// errCh) or because the run context was cancelled; either way
		// there is no complete region to encode.
		return
	}

	if opts.Width == 0 || opts.Height == 0 {
		if opts.Width == 0 {
			opts.Width = w
		}
		if opts.Height == 0 {
			opts.Height = h
		}
	}

	encoded, err := encoder.Encode(ctx, img, opts)
	if err != nil {
		trySend(errCh, err)
		return
	}

	for off := 0; off < len(encoded); off += chunkSize {
		end := off + chunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		chunk := append([]byte(nil), encoded[off:end]...)

		select {
		case chunks <- chunk:
		case <-ctx.Done():
			cancelled.Store(true)
			trySend(errCh, apperrors.New(apperrors.CategoryTranscodeIO, "transcode.encode_worker", apperrors.ErrConsumerGone))
			return
		}
	}
}

func trySend(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
}

// BodyStream is an io.ReadCloser that yields encoded image bytes as the
// pipeline produces them. Close cancels any in-flight decode/encode work,
// used when an HTTP client disconnects mid-response (spec §4.4's
// "consumer gone" failure mode).
type BodyStream struct {
	chunks  <-chan []byte
	errCh   <-chan error
	cancel  context.CancelFunc
	pending []byte
	done    bool
}

func (b *BodyStream) Read(p []byte) (int, error) {
	for len(b.pending) == 0 {
		if b.done {
			return 0, io.EOF
		}
		chunk, ok := <-b.chunks
		if !ok {
			b.done = true
			select {
			case err := <-b.errCh:
				if err != nil {
					return 0, err
				}
			default:
			}
			return 0, io.EOF
		}
		b.pending = chunk
	}
	n := copy(p, b.pending)
	b.pending = b.pending[n:]
	return n, nil
}

// Close cancels the underlying pipeline. Safe to call multiple times.
func (b *BodyStream) Close() error {
	b.cancel()
	return nil
}
