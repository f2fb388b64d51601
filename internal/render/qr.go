package render

import qrcode "github.com/skip2/go-qrcode"

// QRPNG encodes text as a QR code PNG of the given pixel size. Sizes
// below 64 are bumped to a scannable default.
func QRPNG(text string, size int) ([]byte, error) {
	if size < 64 {
		size = 400
	}
	return qrcode.Encode(text, qrcode.Medium, size)
}
