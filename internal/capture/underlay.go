package capture

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

func init() {
	// pdfcpu would otherwise create a config dir under the user's home.
	api.DisableConfigDir()
}

// pdfPageCount validates a PDF template and returns its page count.
func pdfPageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("%s has no pages", path)
	}
	return n, nil
}

// underlay stamps page 1 of the template PDF beneath every page of doc, at
// its natural size.
func underlay(doc []byte, tplPath string) ([]byte, error) {
	wm, err := api.PDFWatermark(tplPath+":1", "scalefactor:1 abs, rotation:0", false, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("capture: template %s: %w", tplPath, err)
	}
	var out bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(doc), &out, nil, wm, nil); err != nil {
		return nil, fmt.Errorf("capture: failed to apply template: %w", err)
	}
	return out.Bytes(), nil
}
