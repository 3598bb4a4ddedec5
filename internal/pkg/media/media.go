// Package media 识别上传文件类型并压缩图片。
//
// 图片统一缩放到 MaxDimension 以内并重新编码为 JPEG；视频原样保留。
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/Gopher0727/SocialSync/config"
	"github.com/Gopher0727/SocialSync/internal/model"
)

var (
	ErrUnsupported = errors.New("unsupported media type")
	ErrTooLarge    = errors.New("file too large")
	ErrEmpty       = errors.New("empty file")
)

// maxPixels 限制解码后的像素数，防止小文件声明超大尺寸
const maxPixels = 40_000_000

var imageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

var videoTypes = []string{"video/mp4", "video/quicktime", "video/webm"}

// File is an upload ready for the blob store.
type File struct {
	Data        []byte
	ContentType string
	Ext         string
	MediaType   string
	Compressed  bool
}

type Processor struct {
	maxBytes     int64
	maxDimension int
	quality      int
}

func NewProcessor(cfg config.MediaConfig) *Processor {
	p := &Processor{
		maxBytes:     int64(cfg.MaxUploadMB) << 20,
		maxDimension: cfg.MaxDimension,
		quality:      cfg.JPEGQuality,
	}
	if p.maxBytes <= 0 {
		p.maxBytes = 50 << 20
	}
	if p.maxDimension <= 0 {
		p.maxDimension = 1920
	}
	if p.quality <= 0 || p.quality > 100 {
		p.quality = jpeg.DefaultQuality
	}
	return p
}

// Process reads r fully, sniffs its type and compresses images.
// Images above maxPixels are rejected before decoding. A failed compression,
// or one that does not shrink the file, falls back to the original bytes.
func (p *Processor) Process(r io.Reader) (*File, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if int64(len(data)) > p.maxBytes {
		return nil, fmt.Errorf("%w: limit is %d MB", ErrTooLarge, p.maxBytes>>20)
	}

	mt := mimetype.Detect(data)
	switch {
	case mimetype.EqualsAny(mt.String(), videoTypes...):
		return &File{Data: data, ContentType: mt.String(), Ext: mt.Extension(), MediaType: model.MediaTypeVideo}, nil
	case mimetype.EqualsAny(mt.String(), imageTypes...):
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
			return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, maxPixels)
		}
		if out, err := p.compress(data); err == nil && len(out) < len(data) {
			return &File{Data: out, ContentType: "image/jpeg", Ext: ".jpg", MediaType: model.MediaTypeImage, Compressed: true}, nil
		}
		return &File{Data: data, ContentType: mt.String(), Ext: mt.Extension(), MediaType: model.MediaTypeImage}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, mt.String())
	}
}

func (p *Processor) compress(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	w, h := fit(b.Dx(), b.Dy(), p.maxDimension)

	// JPEG 没有透明通道，先铺白底
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fit scales (w, h) down so the longer side is at most limit. Never upscales.
func fit(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}
