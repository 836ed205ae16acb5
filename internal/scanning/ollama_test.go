package scanning

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

func pngFixture() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Ollama", func() {
	var (
		server  *ghttp.Server
		scanner *Ollama
		text    string
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		scanner, err = NewOllama(server.URL()+"/", "qwen2.5vl")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		text, err = scanner.ScanText(pngFixture(), "image/png")
	})

	When("the model answers", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					var req ollamaChatRequest
					Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
					Expect(req.Model).To(Equal("qwen2.5vl"))
					Expect(req.Messages).To(HaveLen(2))
					Expect(req.Messages[1].Images).To(HaveLen(1))
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: "Total: 250.00 ETB\nRef: FT25001AAAA1"},
					Done:    true,
				}),
			))
		})

		It("should return the transcript", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("Total: 250.00 ETB\nRef: FT25001AAAA1"))
		})
	})

	When("the model sees no text", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
				Message: ollamaMessage{Role: "assistant", Content: "NO_TEXT"},
				Done:    true,
			}))
		})

		It("should return ErrNoText", func() {
			Expect(err).To(MatchError(ErrNoText))
		})
	})

	When("the server fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("should return the status", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
		})
	})
})

var _ = Describe("toPNG", func() {
	It("should pass PNG data through", func() {
		data := pngFixture()
		out, err := toPNG(data, "image/png")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(data))
	})

	It("should sniff the type when none is given", func() {
		data := pngFixture()
		out, err := toPNG(data, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(data))
	})

	It("should reject empty input", func() {
		_, err := toPNG(nil, "image/jpeg")
		Expect(err).To(HaveOccurred())
	})

	It("should reject data that is not an image", func() {
		_, err := toPNG([]byte("definitely not an image"), "image/jpeg")
		Expect(err).To(MatchError(ContainSubstring("decoding image")))
	})
})
