package convert

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/docextract/internal/document"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. It tries the Go library first,
// then falls back to pdftotext if available.
type PDFParser struct {
	FallbackPdftotext bool
}

// pdfInfoKeys are the document information entries surfaced as key/value items.
var pdfInfoKeys = []string{"Title", "Author", "Subject", "Keywords", "Creator", "Producer", "CreationDate", "ModDate"}

func (p *PDFParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "docextract-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	doc := &document.Document{
		Title: strings.TrimSuffix(filename, ".pdf"),
	}

	// Pictures and metadata are read while the temp file still exists.
	text, err := p.readPDF(tmpPath, doc)
	if err != nil && p.FallbackPdftotext {
		text, err = extractPdftotext(tmpPath)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	pages := splitPages(text)
	if _, ok := doc.PageCount(); !ok {
		doc.WithPages(len(pages))
	}
	for i, page := range pages {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		doc.Sections = append(doc.Sections, &document.Section{
			Title: fmt.Sprintf("Page %d", i+1),
			Text:  page,
			Page:  i + 1,
		})
	}

	for _, kv := range doc.KeyValues {
		if kv.Key == "Title" && kv.Value != "" {
			doc.Title = kv.Value
		}
	}
	return doc, nil
}

// readPDF extracts page text, page count, metadata and image XObjects.
func (p *PDFParser) readPDF(path string, doc *document.Document) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	numPages := reader.NumPage()
	doc.WithPages(numPages)
	doc.KeyValues = pdfInfo(reader)

	var buf strings.Builder
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		doc.Pictures = append(doc.Pictures, pagePictures(page)...)

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if i > 1 {
			buf.WriteString("\f") // Form feed as page separator.
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}

func pdfInfo(reader *pdflib.Reader) []document.KeyValue {
	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return nil
	}
	var out []document.KeyValue
	for _, k := range pdfInfoKeys {
		v := info.Key(k)
		if v.IsNull() {
			continue
		}
		if s := strings.TrimSpace(v.Text()); s != "" {
			out = append(out, document.KeyValue{Key: k, Value: s})
		}
	}
	return out
}

// pagePictures materializes every image XObject on a page. Images the reader
// cannot decode become pictures whose Image call fails.
func pagePictures(page pdflib.Page) []document.Picture {
	xobjects := page.Resources().Key("XObject")
	if xobjects.IsNull() {
		return nil
	}
	var out []document.Picture
	for _, name := range xobjects.Keys() {
		xo := xobjects.Key(name)
		if xo.Key("Subtype").Name() != "Image" {
			continue
		}
		img, err := decodeXObject(xo)
		out = append(out, &rasterPicture{img: img, err: err})
	}
	return out
}

// decodeXObject builds an image from an 8-bit Gray, RGB or CMYK sample stream.
// The pdf library panics on stream filters it does not implement.
func decodeXObject(xo pdflib.Value) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("read image stream: %v", r)
		}
	}()

	width := int(xo.Key("Width").Int64())
	height := int(xo.Key("Height").Int64())
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if bpc := xo.Key("BitsPerComponent").Int64(); bpc != 8 {
		return nil, fmt.Errorf("unsupported bits per component %d", bpc)
	}

	components := 0
	switch cs := xo.Key("ColorSpace").Name(); cs {
	case "DeviceGray":
		components = 1
	case "DeviceRGB":
		components = 3
	case "DeviceCMYK":
		components = 4
	default:
		return nil, fmt.Errorf("unsupported color space %q", cs)
	}

	rc := xo.Reader()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read image stream: %w", err)
	}
	if len(data) < width*height*components {
		return nil, fmt.Errorf("short image stream: %d bytes for %dx%d", len(data), width, height)
	}

	rect := image.Rect(0, 0, width, height)
	switch components {
	case 1:
		g := image.NewGray(rect)
		copy(g.Pix, data)
		return g, nil
	case 3:
		rgba := image.NewRGBA(rect)
		for i := 0; i < width*height; i++ {
			rgba.Pix[i*4] = data[i*3]
			rgba.Pix[i*4+1] = data[i*3+1]
			rgba.Pix[i*4+2] = data[i*3+2]
			rgba.Pix[i*4+3] = 0xff
		}
		return rgba, nil
	default:
		cmyk := image.NewCMYK(rect)
		copy(cmyk.Pix, data)
		return convertToRGBA(cmyk), nil
	}
}

func convertToRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, color.RGBAModel.Convert(src.At(x, y)))
		}
	}
	return dst
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

func splitPages(text string) []string {
	return strings.Split(strings.TrimSuffix(text, "\f"), "\f")
}
