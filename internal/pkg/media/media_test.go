package media

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/SocialSync/config"
	"github.com/Gopher0727/SocialSync/internal/model"
)

// pngBytes 生成噪点图，PNG 压不动，JPEG 输出一定更小
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewPCG(uint64(w), uint64(h)))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			v := rng.Uint32()
			img.Set(x, y, color.NRGBA{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func flatPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// hugePNG 是一张 1x1 灰度 PNG，IHDR 改写成 w x h。
// 解码头部得到的就是声明的尺寸，完整解码会按声明尺寸分配内存。
func hugePNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := flatPNG(t, 1, 1)
	// 8 字节签名之后：长度(4) "IHDR"(4) 宽(4) 高(4) ...，CRC 覆盖类型和数据
	require.Equal(t, "IHDR", string(data[12:16]))
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

// 最小的 mp4：只有 ftyp box
var mp4Header = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm',
	0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'm', 'p', '4', '1',
}

func TestProcess(t *testing.T) {
	p := NewProcessor(config.MediaConfig{MaxUploadMB: 1, MaxDimension: 64, JPEGQuality: 70})

	t.Run("large png is downscaled to jpeg", func(t *testing.T) {
		f, err := p.Process(bytes.NewReader(pngBytes(t, 200, 100)))
		require.NoError(t, err)
		assert.True(t, f.Compressed)
		assert.Equal(t, "image/jpeg", f.ContentType)
		assert.Equal(t, ".jpg", f.Ext)
		assert.Equal(t, model.MediaTypeImage, f.MediaType)

		cfg, err := jpeg.DecodeConfig(bytes.NewReader(f.Data))
		require.NoError(t, err)
		assert.Equal(t, 64, cfg.Width)
		assert.Equal(t, 32, cfg.Height)
	})

	t.Run("small image keeps its size", func(t *testing.T) {
		f, err := p.Process(bytes.NewReader(pngBytes(t, 60, 40)))
		require.NoError(t, err)
		require.True(t, f.Compressed)

		cfg, err := jpeg.DecodeConfig(bytes.NewReader(f.Data))
		require.NoError(t, err)
		assert.Equal(t, 60, cfg.Width)
		assert.Equal(t, 40, cfg.Height)
	})

	t.Run("keeps the original when jpeg is not smaller", func(t *testing.T) {
		data := flatPNG(t, 200, 200)
		f, err := p.Process(bytes.NewReader(data))
		require.NoError(t, err)
		assert.False(t, f.Compressed)
		assert.Equal(t, "image/png", f.ContentType)
		assert.Equal(t, ".png", f.Ext)
		assert.Equal(t, data, f.Data)
	})

	t.Run("huge dimensions are rejected before decoding", func(t *testing.T) {
		_, err := p.Process(bytes.NewReader(hugePNG(t, 12000, 12000)))
		assert.ErrorIs(t, err, ErrTooLarge)

		cfg, err := png.DecodeConfig(bytes.NewReader(hugePNG(t, 12000, 12000)))
		require.NoError(t, err)
		assert.Equal(t, 12000, cfg.Width)
	})

	t.Run("video passes through", func(t *testing.T) {
		f, err := p.Process(bytes.NewReader(mp4Header))
		require.NoError(t, err)
		assert.False(t, f.Compressed)
		assert.Equal(t, model.MediaTypeVideo, f.MediaType)
		assert.Equal(t, "video/mp4", f.ContentType)
		assert.Equal(t, mp4Header, f.Data)
	})

	t.Run("corrupt image falls back to original bytes", func(t *testing.T) {
		data := pngBytes(t, 8, 8)
		corrupt := append([]byte{}, data[:40]...)
		f, err := p.Process(bytes.NewReader(corrupt))
		require.NoError(t, err)
		assert.False(t, f.Compressed)
		assert.Equal(t, "image/png", f.ContentType)
		assert.Equal(t, corrupt, f.Data)
	})

	t.Run("text is rejected", func(t *testing.T) {
		_, err := p.Process(strings.NewReader("just some notes"))
		assert.ErrorIs(t, err, ErrUnsupported)
	})

	t.Run("empty upload", func(t *testing.T) {
		_, err := p.Process(bytes.NewReader(nil))
		assert.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("oversized upload", func(t *testing.T) {
		big := append(append([]byte{}, mp4Header...), make([]byte, 1<<20)...)
		_, err := p.Process(bytes.NewReader(big))
		assert.ErrorIs(t, err, ErrTooLarge)
	})
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h, limit  int
		wantW, wantH int
	}{
		{100, 50, 200, 100, 50},
		{4000, 3000, 1920, 1920, 1440},
		{3000, 4000, 1920, 1440, 1920},
		{5000, 1, 100, 100, 1},
	}
	for _, tt := range tests {
		w, h := fit(tt.w, tt.h, tt.limit)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}
}
