// Package service is the C5 orchestrator: it implements the single Call
// entry point the HTTP adapter drives, sequencing storage lookup,
// conditional-GET short-circuiting, decode, and either info.json
// construction or transcode-pipeline dispatch. Grounded on the teacher's
// top-level facade (imageprocessor.go/inner.go), which wires config,
// registry, and hooks together the same way but for a synchronous
// Process() call instead of this package's two response shapes.
package service

import (
	"bufio"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/deepzoom/iiifd/apperrors"
	"github.com/deepzoom/iiifd/codec"
	"github.com/deepzoom/iiifd/codec/jpegenc"
	"github.com/deepzoom/iiifd/config"
	"github.com/deepzoom/iiifd/iiif"
	"github.com/deepzoom/iiifd/observability"
	"github.com/deepzoom/iiifd/storage"
	"github.com/deepzoom/iiifd/transcode"
)

// sniffWindow is how many leading bytes Call peeks to content-sniff the
// source format, matching net/http.DetectContentType's own sniffing
// length so the http.DetectContentType fallback in codec.DetectFormat
// always sees a full window.
const sniffWindow = 512

// Response is what Call returns: either a complete in-memory info.json
// body or a streaming image body, never both. NotModified short-circuits
// both (spec §4.5's conditional-GET step).
type Response struct {
	NotModified  bool
	StatusCode   int
	ContentType  string
	LastModified time.Time

	// InfoJSON is set when the request targeted an info.json document.
	InfoJSON []byte

	// Body is set when the request targeted an image and streams encoded
	// bytes as the transcode pipeline produces them. The caller must
	// Close it, even on error, to release the decode/encode goroutines.
	Body *transcode.BodyStream
}

// Service wires storage, the codec registry, and the transcode pipeline
// into the request/response protocol of spec §4.5.
type Service struct {
	Storage  storage.Adapter
	Decoders *codec.Registry
	Pipeline *transcode.Pipeline
	Logger   observability.Logger
	Metrics  observability.MetricsCollector
	Config   config.Config
}

// Call executes one parsed IIIF request end to end.
func (s *Service) Call(ctx context.Context, req *iiif.Request) (*Response, error) {
	stat, err := s.Storage.Stat(ctx, req.Identifier)
	if err != nil {
		return nil, err
	}

	if req.LastAccessTime != nil && !stat.LastModified.IsZero() && !stat.LastModified.After(*req.LastAccessTime) {
		return &Response{NotModified: true, StatusCode: 304, LastModified: stat.LastModified}, nil
	}

	obj, err := s.Storage.Open(ctx, req.Identifier)
	if err != nil {
		return nil, err
	}
	opened := true
	defer func() {
		if opened {
			obj.Content.Close()
		}
	}()

	// The identifier is only a hint (spec §4.5 step 3): sniff the actual
	// bytes via a peeking buffered reader so the decoder lookup works for
	// extensionless identifiers too. Peek doesn't consume content's buffer, so
	// decoder.Info below still reads the sniffed bytes as part of the
	// stream.
	content := bufio.NewReaderSize(obj.Content, sniffWindow)
	peek, _ := content.Peek(sniffWindow)

	decoder, sourceFormat, err := s.decoderFor(req.Identifier, peek)
	if err != nil {
		return nil, err
	}

	info, err := decoder.Info(ctx, content)
	if err != nil {
		return nil, err
	}

	if req.Kind == iiif.KindInfo {
		doc := buildInfoDocument(s.baseURL(), req.Identifier, info, s.Config.MaxDimension(), s.Config.DefaultRightsURI)
		body, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryPipeline, "service.marshal_info", err)
		}
		return &Response{
			StatusCode:   200,
			ContentType:  "application/ld+json",
			LastModified: stat.LastModified,
			InfoJSON:     body,
		}, nil
	}

	// The decoder drained obj.Content reading headers for Info(); the
	// region decoder needs to read the pixel data too, so we reopen
	// rather than trying to seek (the storage.Object contract makes no
	// seek guarantee — S3 GetObject bodies are not seekable).
	obj.Content.Close()
	opened = false
	obj, err = s.Storage.Open(ctx, req.Identifier)
	if err != nil {
		return nil, err
	}

	region, err := resolveRegion(req.Parameters.Region, info.Width, info.Height)
	if err != nil {
		obj.Content.Close()
		return nil, err
	}
	targetW, targetH, err := resolveSize(req.Parameters.Size, region, s.Config.MaxDimension())
	if err != nil {
		obj.Content.Close()
		return nil, err
	}

	regionDecoder, err := decoder.OpenRegion(ctx, obj.Content, region, codec.PreferredSize{W: targetW, H: targetH})
	if err != nil {
		obj.Content.Close()
		return nil, err
	}

	opts := jpegenc.Options{
		Width:         targetW,
		Height:        targetH,
		RotateDegrees: req.Parameters.Rotation.Degrees,
		Mirror:        req.Parameters.Rotation.Mirror,
		Grayscale:     req.Parameters.Quality == iiif.QualityGray || req.Parameters.Quality == iiif.QualityBitonal,
		Format:        req.Parameters.Format,
	}

	stream := s.Pipeline.Run(ctx, transcode.Job{Region: regionDecoder, Encode: opts})

	if s.Logger != nil {
		s.Logger.Debug("service.transcode_started",
			"identifier", req.Identifier,
			"source_format", sourceFormat,
			"target_format", string(req.Parameters.Format),
			"width", targetW,
			"height", targetH,
		)
	}
	return &Response{
		StatusCode:   200,
		ContentType:  req.Parameters.Format.MediaType(),
		LastModified: stat.LastModified,
		Body:         stream,
	}, nil
}

// decoderFor resolves the Decoder for a request by content-sniffing peek
// (spec §4.5 step 3 treats the identifier as a naming hint, not a
// required codec extension — identifiers like "abcd1234" carry no
// extension at all). The identifier's extension is only consulted when
// sniffing the leading bytes doesn't match a known signature.
func (s *Service) decoderFor(identifier string, peek []byte) (codec.Decoder, string, error) {
	format := codec.DetectFormat(peek)
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(identifier), ".")
	}
	decoder, ok := s.Decoders.DecoderFor(format)
	if !ok {
		return nil, "", apperrors.New(apperrors.CategoryDecode, "service.decoder_for", apperrors.ErrNotFound)
	}
	return decoder, format, nil
}

func (s *Service) baseURL() string {
	return strings.TrimSuffix(s.Config.URLPrefix, "/")
}
