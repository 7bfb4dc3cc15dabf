package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noisePNG encodes an incompressible image so the PNG is large and the lossy
// WebP re-encode is reliably smaller.
func noisePNG(t *testing.T, seed int64) []byte {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeArchive(t *testing.T, dir, name string, entries map[string][]byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	out, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(out)
	for entryName, data := range entries {
		w, err := zw.Create(entryName)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
	return path
}

func archiveEntries(t *testing.T, path string) []string {
	t.Helper()

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer func() { _ = zr.Close() }()

	var names []string
	for _, zf := range zr.File {
		if !zf.FileInfo().IsDir() {
			names = append(names, zf.Name)
		}
	}
	return names
}

func TestClassifyEntry(t *testing.T) {
	pngData := noisePNG(t, 1)

	tests := []struct {
		name  string
		entry string
		data  []byte
		want  EntryKind
	}{
		{"png extension", "page01.png", nil, KindImage},
		{"jpeg extension", "page02.JPG", nil, KindImage},
		{"already webp", "page03.webp", nil, KindTarget},
		{"metadata", "ComicInfo.xml", nil, KindOpaque},
		{"text", "notes.txt", nil, KindOpaque},
		{"extensionless image sniffed", "page04", pngData, KindImage},
		{"extensionless junk", "thumbs", []byte("not an image"), KindOpaque},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyEntry(tt.entry, tt.data))
		})
	}
}

func TestConvertArchiveTranscodesImages(t *testing.T) {
	dir := t.TempDir()
	src := writeArchive(t, dir, "Series c01.cbz", map[string][]byte{
		"page01.png":    noisePNG(t, 1),
		"page02.png":    noisePNG(t, 2),
		"ComicInfo.xml": []byte("<ComicInfo/>"),
	})

	c := NewConverter(Config{Workers: 2})
	result, err := c.ConvertArchive(context.Background(), src, dir)
	require.NoError(t, err)

	assert.False(t, result.UsedOriginal)
	assert.Equal(t, 2, result.Converted)
	assert.Zero(t, result.Fallbacks)
	assert.Less(t, result.FinalSize, result.OriginalSize)

	names := archiveEntries(t, result.Path)
	require.Len(t, names, 3, "entry count must be preserved")
	assert.Contains(t, names, "page01.webp")
	assert.Contains(t, names, "page02.webp")
	assert.Contains(t, names, "ComicInfo.xml")
}

func TestConvertArchiveFallsBackPerImage(t *testing.T) {
	dir := t.TempDir()
	src := writeArchive(t, dir, "Series c02.cbz", map[string][]byte{
		"page01.png": noisePNG(t, 3),
		"broken.png": []byte("this is not a png"),
	})

	c := NewConverter(Config{Workers: 1})
	result, err := c.ConvertArchive(context.Background(), src, dir)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Converted)
	assert.Equal(t, 1, result.Fallbacks)

	names := archiveEntries(t, result.Path)
	require.Len(t, names, 2)
	assert.Contains(t, names, "page01.webp")
	assert.Contains(t, names, "broken.png", "failed images keep their original bytes and name")
}

func TestConvertArchiveRejectsTinyOutput(t *testing.T) {
	dir := t.TempDir()
	src := writeArchive(t, dir, "Series c03.cbz", map[string][]byte{
		"notes.txt": []byte("just metadata"),
	})

	c := NewConverter(Config{Workers: 1})
	result, err := c.ConvertArchive(context.Background(), src, dir)
	require.NoError(t, err)

	// Nothing worth keeping: the original archive is used unchanged.
	assert.True(t, result.UsedOriginal)
	assert.Equal(t, src, result.Path)
	assert.Equal(t, result.OriginalSize, result.FinalSize)
	assert.FileExists(t, src)
}

func TestConvertArchiveRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	src := writeArchive(t, dir, "evil.cbz", map[string][]byte{
		"../escape.txt": []byte("nope"),
	})

	c := NewConverter(Config{Workers: 1})
	_, err := c.ConvertArchive(context.Background(), src, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
}

func TestConvertArchiveFailsOnNonArchive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "not-a-zip.cbz")
	require.NoError(t, os.WriteFile(src, []byte("garbage"), 0600))

	c := NewConverter(Config{Workers: 1})
	_, err := c.ConvertArchive(context.Background(), src, dir)
	require.Error(t, err)
}

func TestConverterDefaultWorkers(t *testing.T) {
	c := NewConverter(Config{})
	assert.GreaterOrEqual(t, c.cfg.Workers, 1)
}

func TestOutputNameKeepsWebpSuffix(t *testing.T) {
	dir := t.TempDir()
	src := writeArchive(t, dir, "Series c04.cbz", map[string][]byte{
		"page01.png": noisePNG(t, 4),
	})

	c := NewConverter(Config{Workers: 1})
	result, err := c.ConvertArchive(context.Background(), src, dir)
	require.NoError(t, err)
	require.False(t, result.UsedOriginal)
	assert.True(t, strings.HasSuffix(result.Path, "_webp.cbz"))
}
