package handle_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"taskmate/internal/auth"
	"taskmate/internal/extract"
	"taskmate/internal/handle"
	"taskmate/internal/llm"
	"taskmate/internal/solve"
	"taskmate/internal/store"
)

const signingKey = "test-signing-key"

type stubExtractor struct {
	text  string
	err   error
	calls int
}

func (s *stubExtractor) Extract(_ context.Context, _ []byte, _, _ string) (string, error) {
	s.calls++
	return s.text, s.err
}

type stubDispatcher struct {
	out   llm.Completion
	err   error
	calls int
	last  string
}

func (s *stubDispatcher) Complete(_ context.Context, p llm.Provider, text string) (llm.Completion, error) {
	if !p.Wired() {
		return llm.Completion{}, llm.ErrNotWired
	}
	s.calls++
	s.last = text
	return s.out, s.err
}

var _ = Describe("Handler", func() {
	var (
		extractor  *stubExtractor
		dispatcher *stubDispatcher
		st         *store.FileStore
		router     *gin.Engine
	)

	BeforeEach(func() {
		extractor = &stubExtractor{text: "2+2=?"}
		dispatcher = &stubDispatcher{out: llm.Completion{Text: "**4**", PromptTokens: 3, CompletionTokens: 1}}

		var err error
		st, err = store.NewFileStore(filepath.Join(GinkgoT().TempDir(), "assignments.json"))
		Expect(err).NotTo(HaveOccurred())

		svc := solve.New(extractor, dispatcher, st, nil)
		h := handle.New(svc, st, nil, nil, signingKey, 10<<20, nil)
		router = gin.New()
		h.Register(router)
	})

	do := func(req *http.Request) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	jsonBody := func(w *httptest.ResponseRecorder) map[string]any {
		var m map[string]any
		ExpectWithOffset(1, json.Unmarshal(w.Body.Bytes(), &m)).To(Succeed())
		return m
	}

	uploadReq := func(provider, filename, contentType string, data []byte) *http.Request {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(mw.WriteField("llmProvider", provider)).To(Succeed())
		Expect(mw.Close()).To(Succeed())

		req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req
	}

	textReq := func(body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/process-text", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	Describe("POST /api/upload", func() {
		It("runs the full pipeline for an image upload", func() {
			w := do(uploadReq("openai", "hw.jpg", "image/jpeg", []byte{0xFF, 0xD8, 0x01}))
			Expect(w.Code).To(Equal(http.StatusOK))

			body := jsonBody(w)
			Expect(body["success"]).To(BeTrue())
			Expect(body["extractedText"]).To(Equal("2+2=?"))
			Expect(body["llmResponse"]).To(Equal("**4**"))
			Expect(body["id"]).To(BeNumerically("==", 1))
			Expect(extractor.calls).To(Equal(1))
			Expect(dispatcher.calls).To(Equal(1))
			Expect(dispatcher.last).To(Equal("2+2=?"))

			a, err := st.Get(context.Background(), 1, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(a.FileName).To(Equal("hw.jpg"))
			Expect(a.InputKind).To(Equal(store.InputImage))
			Expect(a.SessionID).NotTo(BeEmpty())
		})

		It("rejects an unknown provider before touching the file", func() {
			w := do(uploadReq("mistral", "hw.jpg", "image/jpeg", []byte{0xFF, 0xD8}))
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(extractor.calls).To(BeZero())
			Expect(dispatcher.calls).To(BeZero())
		})

		It("rejects an enumerated but unavailable provider up front", func() {
			w := do(uploadReq("deepseek", "hw.jpg", "image/jpeg", []byte{0xFF, 0xD8}))
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(jsonBody(w)["error"]).To(ContainSubstring("not supported yet"))
			Expect(extractor.calls).To(BeZero())
		})

		It("maps unsupported file types to a 400", func() {
			extractor.err = extract.ErrUnsupportedType
			w := do(uploadReq("openai", "run.sh", "text/x-shellscript", []byte("#!/bin/sh")))
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("maps empty extraction to a 400", func() {
			extractor.err = extract.ErrEmptyExtraction
			w := do(uploadReq("openai", "blank.png", "image/png", []byte{0x89, 0x50}))
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(jsonBody(w)["error"]).To(ContainSubstring("no text"))
		})

		It("requires a file part", func() {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			Expect(mw.WriteField("llmProvider", "openai")).To(Succeed())
			Expect(mw.Close()).To(Succeed())
			req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())

			w := do(req)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /api/process-text", func() {
		It("dispatches typed text and persists the record", func() {
			w := do(textReq(`{"inputText":"solve x+1=2","llmProvider":"gemini"}`))
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(dispatcher.last).To(Equal("solve x+1=2"))
			Expect(extractor.calls).To(BeZero())

			a, err := st.Get(context.Background(), 1, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(a.InputKind).To(Equal(store.InputText))
			Expect(a.InputText).To(Equal("solve x+1=2"))
			Expect(a.FileName).To(BeEmpty())
		})

		It("reports missing fields with per-field details", func() {
			w := do(textReq(`{"llmProvider":"openai"}`))
			Expect(w.Code).To(Equal(http.StatusBadRequest))

			body := jsonBody(w)
			Expect(body["details"]).NotTo(BeEmpty())
			raw, _ := json.Marshal(body["details"])
			Expect(string(raw)).To(ContainSubstring("InputText"))
			Expect(dispatcher.calls).To(BeZero())
		})

		It("rejects whitespace-only input text", func() {
			w := do(textReq(`{"inputText":"   \n ","llmProvider":"openai"}`))
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(dispatcher.calls).To(BeZero())
		})

		It("rejects a provider outside the schema", func() {
			w := do(textReq(`{"inputText":"x","llmProvider":"mistral"}`))
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(dispatcher.calls).To(BeZero())
		})

		It("returns a 500 when the provider call fails", func() {
			dispatcher.err = errors.New("failed to process with openai")
			w := do(textReq(`{"inputText":"x","llmProvider":"openai"}`))
			Expect(w.Code).To(Equal(http.StatusInternalServerError))

			_, err := st.Get(context.Background(), 1, 0)
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})

	Describe("assignment retrieval", func() {
		It("returns 404 for an unknown id", func() {
			w := do(httptest.NewRequest(http.MethodGet, "/api/assignments/999999", nil))
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 400 for a non-numeric id", func() {
			w := do(httptest.NewRequest(http.MethodGet, "/api/assignments/abc", nil))
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("round-trips a created record", func() {
			Expect(do(textReq(`{"inputText":"solve x","llmProvider":"openai"}`)).Code).To(Equal(http.StatusOK))

			w := do(httptest.NewRequest(http.MethodGet, "/api/assignments/1", nil))
			Expect(w.Code).To(Equal(http.StatusOK))
			body := jsonBody(w)
			Expect(body["inputText"]).To(Equal("solve x"))
			Expect(body["llmResponse"]).To(Equal("**4**"))
		})

		It("keeps users' records isolated", func() {
			alice, err := auth.GenerateToken(1, signingKey)
			Expect(err).NotTo(HaveOccurred())
			bob, err := auth.GenerateToken(2, signingKey)
			Expect(err).NotTo(HaveOccurred())

			req := textReq(`{"inputText":"alice's homework","llmProvider":"openai"}`)
			req.Header.Set("Authorization", "Bearer "+alice)
			Expect(do(req).Code).To(Equal(http.StatusOK))

			get := httptest.NewRequest(http.MethodGet, "/api/assignments/1", nil)
			get.Header.Set("Authorization", "Bearer "+bob)
			Expect(do(get).Code).To(Equal(http.StatusNotFound))

			list := httptest.NewRequest(http.MethodGet, "/api/assignments", nil)
			list.Header.Set("Authorization", "Bearer "+bob)
			w := do(list)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(jsonBody(w)["assignments"]).To(BeEmpty())

			get = httptest.NewRequest(http.MethodGet, "/api/assignments/1", nil)
			get.Header.Set("Authorization", "Bearer "+alice)
			Expect(do(get).Code).To(Equal(http.StatusOK))
		})

		It("renders a stored solution as HTML", func() {
			Expect(do(textReq(`{"inputText":"solve x","llmProvider":"openai"}`)).Code).To(Equal(http.StatusOK))

			w := do(httptest.NewRequest(http.MethodGet, "/api/assignments/1/render", nil))
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Type")).To(HavePrefix("text/html"))
			Expect(w.Body.String()).To(ContainSubstring("<strong>4</strong>"))
		})
	})

	Describe("DELETE /api/assignments/cleanup", func() {
		It("purges text entries and reports the count", func() {
			Expect(do(textReq(`{"inputText":"one","llmProvider":"openai"}`)).Code).To(Equal(http.StatusOK))
			Expect(do(textReq(`{"inputText":"two","llmProvider":"openai"}`)).Code).To(Equal(http.StatusOK))
			Expect(do(uploadReq("openai", "hw.jpg", "image/jpeg", []byte{0xFF, 0xD8})).Code).To(Equal(http.StatusOK))

			w := do(httptest.NewRequest(http.MethodDelete, "/api/assignments/cleanup", nil))
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(jsonBody(w)["purged"]).To(BeNumerically("==", 2))

			_, err := st.Get(context.Background(), 3, 0)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("POST /api/assignments/:id/email", func() {
		It("validates the recipient address", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/assignments/1/email",
				strings.NewReader(`{"to":"not-an-address"}`))
			req.Header.Set("Content-Type", "application/json")
			Expect(do(req).Code).To(Equal(http.StatusBadRequest))
		})

		It("fails cleanly when no mailer is configured", func() {
			Expect(do(textReq(`{"inputText":"solve x","llmProvider":"openai"}`)).Code).To(Equal(http.StatusOK))

			req := httptest.NewRequest(http.MethodPost, "/api/assignments/1/email",
				strings.NewReader(`{"to":"student@example.com"}`))
			req.Header.Set("Content-Type", "application/json")
			Expect(do(req).Code).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("accounts on the file backend", func() {
		It("refuses registration without the postgres backend", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
				strings.NewReader(`{"username":"alice","password":"correct-horse"}`))
			req.Header.Set("Content-Type", "application/json")
			Expect(do(req).Code).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Describe("GET /healthz", func() {
		It("reports ok without a database", func() {
			w := do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(Equal("ok"))
		})
	})
})
