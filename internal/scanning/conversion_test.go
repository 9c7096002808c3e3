package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)
	return img
}

func encodePNG() []byte {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, testImage())).To(Succeed())
	return buf.Bytes()
}

func encodeJPEG() []byte {
	var buf bytes.Buffer
	Expect(jpeg.Encode(&buf, testImage(), nil)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("toPNG", func() {
	It("returns PNG input unchanged", func() {
		data := encodePNG()
		out, err := toPNG(data, "image/png")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(data))
	})

	It("converts JPEG to PNG", func() {
		out, err := toPNG(encodeJPEG(), "image/jpeg")
		Expect(err).NotTo(HaveOccurred())
		_, format, err := image.Decode(bytes.NewReader(out))
		Expect(err).NotTo(HaveOccurred())
		Expect(format).To(Equal("png"))
	})

	It("sniffs the type when none is given", func() {
		out, err := toPNG(encodeJPEG(), "")
		Expect(err).NotTo(HaveOccurred())
		_, format, err := image.Decode(bytes.NewReader(out))
		Expect(err).NotTo(HaveOccurred())
		Expect(format).To(Equal("png"))
	})

	It("rejects data that is not an image", func() {
		_, err := toPNG([]byte("not an image at all"), "text/plain")
		Expect(err).To(HaveOccurred())
	})

	It("rejects empty data", func() {
		_, err := toPNG(nil, "image/png")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("normalizeMimeType", func() {
	It("lowercases and drops parameters", func() {
		Expect(normalizeMimeType(encodePNG(), " Image/PNG; charset=binary")).To(Equal("image/png"))
	})

	It("detects HEIC from the ftyp brand", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic0000")...)
		Expect(normalizeMimeType(data, "application/octet-stream")).To(Equal("image/heic"))
	})

	It("detects HEIF from the MIME type", func() {
		Expect(normalizeMimeType([]byte("x"), "image/heif")).To(Equal("image/heic"))
	})
})
