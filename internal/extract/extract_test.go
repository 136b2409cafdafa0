package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) Recognize(context.Context, []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

var _ = Describe("Extractor", func() {
	var (
		ctx context.Context
		ocr *fakeOCR
		e   *Extractor
	)

	BeforeEach(func() {
		ctx = context.Background()
		ocr = &fakeOCR{text: "x + 1 = 3"}
		e = New(ocr)
	})

	Describe("images", func() {
		It("sends image bytes straight to OCR", func() {
			text, err := e.Extract(ctx, []byte{0xFF, 0xD8, 0x00}, "image/jpeg", "hw.jpg")
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("x + 1 = 3"))
			Expect(ocr.calls).To(Equal(1))
		})

		It("propagates OCR failures", func() {
			ocr.err = errors.New("vision: quota exceeded")
			_, err := e.Extract(ctx, []byte{0xFF, 0xD8}, "image/png", "hw.png")
			Expect(err).To(MatchError(ContainSubstring("ocr")))
		})
	})

	Describe("PDFs", func() {
		It("prefers the text layer when it yields text", func() {
			e.pdfText = func([]byte) (string, error) { return "layer text", nil }
			text, err := e.Extract(ctx, []byte("%PDF-"), "application/pdf", "hw.pdf")
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("layer text"))
			Expect(ocr.calls).To(BeZero())
		})

		It("falls back to OCR when the text layer is empty", func() {
			e.pdfText = func([]byte) (string, error) { return "  \n ", nil }
			text, err := e.Extract(ctx, []byte("%PDF-"), "application/pdf", "hw.pdf")
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("x + 1 = 3"))
			Expect(ocr.calls).To(Equal(1))
		})

		It("falls back to OCR when the parser errors", func() {
			e.pdfText = func([]byte) (string, error) { return "", errors.New("malformed xref") }
			text, err := e.Extract(ctx, []byte("%PDF-"), "application/pdf", "hw.pdf")
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("x + 1 = 3"))
		})

		It("fails hard when the OCR fallback also fails", func() {
			e.pdfText = func([]byte) (string, error) { return "", errors.New("malformed xref") }
			ocr.err = errors.New("vision unavailable")
			_, err := e.Extract(ctx, []byte("%PDF-"), "application/pdf", "hw.pdf")
			Expect(err).To(MatchError(ContainSubstring("pdf ocr fallback")))
		})
	})

	Describe("Word documents", func() {
		It("parses structurally with no OCR fallback on failure", func() {
			e.docxText = func([]byte) (string, error) { return "", errors.New("docx open: not a valid zip") }
			_, err := e.Extract(ctx, []byte("garbage"), "application/msword", "hw.doc")
			Expect(err).To(MatchError(ContainSubstring("word document")))
			Expect(ocr.calls).To(BeZero())
		})

		It("recognizes a .docx by extension alone", func() {
			e.docxText = func([]byte) (string, error) { return "essay question", nil }
			text, err := e.Extract(ctx, []byte{}, "", "hw.docx")
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("essay question"))
		})
	})

	It("rejects unsupported media types before any work", func() {
		_, err := e.Extract(ctx, []byte("#!/bin/sh"), "text/x-shellscript", "run.sh")
		Expect(err).To(MatchError(ErrUnsupportedType))
		Expect(ocr.calls).To(BeZero())
	})

	It("treats a whitespace-only result as a failure", func() {
		ocr.text = "   \n\t"
		_, err := e.Extract(ctx, []byte{0xFF, 0xD8}, "image/jpeg", "blank.jpg")
		Expect(err).To(MatchError(ErrEmptyExtraction))
	})
})

var _ = Describe("docxPlainText", func() {
	buildDocx := func(documentXML string) []byte {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		w, err := zw.Create("word/document.xml")
		Expect(err).NotTo(HaveOccurred())
		_, err = w.Write([]byte(documentXML))
		Expect(err).NotTo(HaveOccurred())
		Expect(zw.Close()).To(Succeed())
		return buf.Bytes()
	}

	It("joins text runs and breaks at paragraph ends", func() {
		data := buildDocx(`<w:document xmlns:w="ns">` +
			`<w:body>` +
			`<w:p><w:r><w:t>Solve for </w:t></w:r><w:r><w:t>x</w:t></w:r></w:p>` +
			`<w:p><w:r><w:t>2x = 6</w:t></w:r></w:p>` +
			`</w:body></w:document>`)
		text, err := docxPlainText(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("Solve for x\n2x = 6\n"))
	})

	It("fails on an archive with no document body", func() {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		_, err := zw.Create("word/styles.xml")
		Expect(err).NotTo(HaveOccurred())
		Expect(zw.Close()).To(Succeed())

		_, err = docxPlainText(buf.Bytes())
		Expect(err).To(MatchError(ContainSubstring("document.xml not found")))
	})

	It("fails on bytes that are not a zip archive", func() {
		_, err := docxPlainText([]byte{0xD0, 0xCF, 0x11, 0xE0})
		Expect(err).To(MatchError(ContainSubstring("docx open")))
	})
})
