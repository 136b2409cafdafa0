package solve_test

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"taskmate/internal/llm"
	"taskmate/internal/render"
	"taskmate/internal/solve"
	"taskmate/internal/store"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(context.Context, []byte, string, string) (string, error) {
	return f.text, f.err
}

type fakeDispatcher struct {
	out llm.Completion
	err error
}

func (f *fakeDispatcher) Complete(context.Context, llm.Provider, string) (llm.Completion, error) {
	return f.out, f.err
}

type recordedUsage struct {
	ownerKey         string
	promptTokens     int64
	completionTokens int64
	err              error
	calls            int
}

func (r *recordedUsage) Add(_ context.Context, ownerKey string, _ time.Time, prompt, completion int64) error {
	r.calls++
	r.ownerKey = ownerKey
	r.promptTokens = prompt
	r.completionTokens = completion
	return r.err
}

var _ = Describe("Identity.OwnerKey", func() {
	It("prefers the authenticated user", func() {
		id := solve.Identity{UserID: 7, SessionID: "abc"}
		Expect(id.OwnerKey()).To(Equal("user:7"))
	})

	It("falls back to the session", func() {
		Expect(solve.Identity{SessionID: "abc"}.OwnerKey()).To(Equal("session:abc"))
	})

	It("labels the fully anonymous case", func() {
		Expect(solve.Identity{}.OwnerKey()).To(Equal("anon"))
	})
})

var _ = Describe("Service", func() {
	var (
		ctx        context.Context
		extractor  *fakeExtractor
		dispatcher *fakeDispatcher
		usage      *recordedUsage
		st         *store.FileStore
		svc        *solve.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		extractor = &fakeExtractor{text: "x^2 = 9"}
		dispatcher = &fakeDispatcher{out: llm.Completion{Text: "x = 3 or x = -3", PromptTokens: 12, CompletionTokens: 8}}
		usage = &recordedUsage{}

		var err error
		st, err = store.NewFileStore(filepath.Join(GinkgoT().TempDir(), "assignments.json"))
		Expect(err).NotTo(HaveOccurred())
		svc = solve.New(extractor, dispatcher, st, usage)
	})

	Describe("ProcessFile", func() {
		It("extracts, dispatches and persists one complete record", func() {
			id := solve.Identity{SessionID: "s-1"}
			a, err := svc.ProcessFile(ctx, id, llm.ProviderOpenAI, []byte{0xFF, 0xD8}, "image/jpeg", "hw.jpg")
			Expect(err).NotTo(HaveOccurred())
			Expect(a.ID).To(Equal(int64(1)))
			Expect(a.ExtractedText).To(Equal("x^2 = 9"))
			Expect(a.Response).To(Equal("x = 3 or x = -3"))
			Expect(a.InputKind).To(Equal(store.InputImage))
			Expect(a.FileName).To(Equal("hw.jpg"))

			stored, err := st.Get(ctx, a.ID, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Provider).To(Equal("openai"))
		})

		It("classifies the record by media type", func() {
			a, err := svc.ProcessFile(ctx, solve.Identity{}, llm.ProviderOpenAI, []byte("%PDF-"), "application/pdf", "hw.pdf")
			Expect(err).NotTo(HaveOccurred())
			Expect(a.InputKind).To(Equal(store.InputPDF))

			a, err = svc.ProcessFile(ctx, solve.Identity{}, llm.ProviderOpenAI, []byte{}, "application/msword", "hw.doc")
			Expect(err).NotTo(HaveOccurred())
			Expect(a.InputKind).To(Equal(store.InputDoc))
		})

		It("persists nothing when extraction fails", func() {
			extractor.err = errors.New("ocr: unavailable")
			_, err := svc.ProcessFile(ctx, solve.Identity{}, llm.ProviderOpenAI, []byte{0xFF, 0xD8}, "image/jpeg", "hw.jpg")
			Expect(err).To(HaveOccurred())

			list, err := st.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(BeEmpty())
			Expect(usage.calls).To(BeZero())
		})
	})

	Describe("ProcessText", func() {
		It("persists nothing when dispatch fails", func() {
			dispatcher.err = errors.New("failed to process with gemini")
			_, err := svc.ProcessText(ctx, solve.Identity{}, llm.ProviderGemini, "2+2")
			Expect(err).To(HaveOccurred())

			list, err := st.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(BeEmpty())
		})

		It("captures chart payloads from the provider output", func() {
			payload := `{"type":"line","points":[{"x":0,"y":0},{"x":1,"y":1}]}`
			dispatcher.out.Text = "See below." + render.ChartStart + payload + render.ChartEnd
			a, err := svc.ProcessText(ctx, solve.Identity{}, llm.ProviderOpenAI, "graph y=x")
			Expect(err).NotTo(HaveOccurred())
			Expect(a.ChartData).To(Equal([]string{payload}))
		})

		It("records token usage per owner", func() {
			_, err := svc.ProcessText(ctx, solve.Identity{UserID: 5}, llm.ProviderOpenAI, "2+2")
			Expect(err).NotTo(HaveOccurred())
			Expect(usage.calls).To(Equal(1))
			Expect(usage.ownerKey).To(Equal("user:5"))
			Expect(usage.promptTokens).To(Equal(int64(12)))
			Expect(usage.completionTokens).To(Equal(int64(8)))
		})

		It("does not fail the request when accounting fails", func() {
			usage.err = errors.New("usage table unavailable")
			a, err := svc.ProcessText(ctx, solve.Identity{}, llm.ProviderOpenAI, "2+2")
			Expect(err).NotTo(HaveOccurred())
			Expect(a.ID).To(Equal(int64(1)))
		})
	})
})
