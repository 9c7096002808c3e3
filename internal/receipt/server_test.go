package receipt

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/receipt-clerk/internal/expense"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		ocr         *mockOCR
		syncer      *mockSyncer
		auth        BasicAuth
		server      *Server
		ghttpServer *ghttp.Server
		now         time.Time
	)

	do := func(method, path string, body io.Reader, contentType string) (*http.Response, []byte) {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp, data
	}

	upload := func(filename, partType string, content []byte) (*bytes.Buffer, string) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		if partType != "" {
			header.Set("Content-Type", partType)
		}
		part, err := writer.CreatePart(header)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(content)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())
		return body, writer.FormDataContentType()
	}

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		ocr = &mockOCR{text: cornerShopText}
		syncer = nil
		auth = BasicAuth{}
		now = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	})

	JustBeforeEach(func() {
		opts := []Option{
			WithIDGenerator(&mockIDGenerator{id: "test-id-123"}),
			WithTimeSource(&mockTimeSource{now: now}),
		}
		if syncer != nil {
			opts = append(opts, WithSyncer(syncer))
		}
		server = NewServerWithMux(NewService(db, ocr, storage, opts...), auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleUploadReceipt", func() {
		var (
			filename string
			partType string
		)

		BeforeEach(func() {
			filename = "receipt.jpg"
			partType = "image/jpeg"
		})

		When("the upload succeeds", func() {
			It("returns the receipt and its issues", func() {
				body, contentType := upload(filename, partType, []byte("fake image"))
				resp, data := do("POST", "/api/receipts", body, contentType)
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var result struct {
					Receipt *expense.Receipt `json:"receipt"`
					Issues  []string         `json:"issues"`
				}
				Expect(json.Unmarshal(data, &result)).To(Succeed())
				Expect(result.Receipt.ID).To(Equal("test-id-123"))
				Expect(result.Receipt.Store).To(Equal("CORNER SHOP"))
				Expect(result.Receipt.Total.StringFixed(2)).To(Equal("7.70"))
				Expect(result.Issues).NotTo(BeNil())
				Expect(result.Issues).To(BeEmpty())
			})
		})

		When("the part has no content type", func() {
			BeforeEach(func() {
				filename = "scan.PDF"
				partType = ""
			})

			It("derives it from the extension", func() {
				body, contentType := upload(filename, partType, []byte("%PDF-1.4"))
				resp, _ := do("POST", "/api/receipts", body, contentType)
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				Expect(ocr.gotType).To(Equal("application/pdf"))
			})
		})

		When("no file is provided", func() {
			It("returns bad request", func() {
				body := &bytes.Buffer{}
				writer := multipart.NewWriter(body)
				Expect(writer.WriteField("note", "nothing")).To(Succeed())
				Expect(writer.Close()).To(Succeed())

				resp, data := do("POST", "/api/receipts", body, writer.FormDataContentType())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(string(data)).To(ContainSubstring("No file provided"))
			})
		})

		When("OCR fails", func() {
			BeforeEach(func() {
				ocr.err = errors.New("ocr failed")
			})

			It("returns unprocessable entity", func() {
				body, contentType := upload(filename, partType, []byte("fake image"))
				resp, _ := do("POST", "/api/receipts", body, contentType)
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
			})
		})
	})

	Describe("handleListReceipts", func() {
		When("receipts exist", func() {
			BeforeEach(func() {
				db.receipts["id1"] = storedReceipt("id1", "Aldi", now, "1.00")
				db.receipts["id2"] = storedReceipt("id2", "Coles", now, "2.00")
			})

			It("should return all receipts as JSON", func() {
				resp, data := do("GET", "/api/receipts", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
				var receipts []*expense.Receipt
				Expect(json.Unmarshal(data, &receipts)).To(Succeed())
				Expect(receipts).To(HaveLen(2))
			})
		})

		When("no receipts exist", func() {
			It("should return an empty array", func() {
				_, data := do("GET", "/api/receipts", nil, "")
				Expect(strings.TrimSpace(string(data))).To(Equal("[]"))
			})
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.listErr = errors.New("db error")
			})

			It("returns internal server error", func() {
				resp, data := do("GET", "/api/receipts", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				Expect(string(data)).NotTo(ContainSubstring("db error"))
			})
		})
	})

	Describe("handleGetReceipt", func() {
		BeforeEach(func() {
			db.receipts["id1"] = storedReceipt("id1", "Aldi", now, "1.00")
		})

		It("returns the receipt", func() {
			resp, data := do("GET", "/api/receipts/id1", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var receipt expense.Receipt
			Expect(json.Unmarshal(data, &receipt)).To(Succeed())
			Expect(receipt.Store).To(Equal("Aldi"))
		})

		It("returns not found for a missing receipt", func() {
			resp, _ := do("GET", "/api/receipts/missing", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleGetReceiptFile", func() {
		BeforeEach(func() {
			r := storedReceipt("id1", "Aldi", now, "1.00")
			r.ContentType = "image/png"
			db.receipts["id1"] = r
			storage.files[r.Filename] = []byte("png bytes")
		})

		It("serves the original image", func() {
			resp, data := do("GET", "/api/receipts/id1/file", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			Expect(string(data)).To(Equal("png bytes"))
		})
	})

	Describe("handleReceiptIssues", func() {
		BeforeEach(func() {
			db.receipts["id1"] = storedReceipt("id1", "Aldi", now, "1.00")
		})

		It("returns the validation issues", func() {
			resp, data := do("GET", "/api/receipts/id1/issues", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var result map[string][]string
			Expect(json.Unmarshal(data, &result)).To(Succeed())
			Expect(result["issues"]).To(ContainElement("No items detected"))
		})
	})

	Describe("handleVerifyReceipt", func() {
		BeforeEach(func() {
			db.receipts["id1"] = storedReceipt("id1", "Aldi", now, "1.00")
		})

		It("marks the receipt verified", func() {
			resp, _ := do("POST", "/api/receipts/id1/verify", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(db.receipts["id1"].Verified).To(BeTrue())
		})
	})

	Describe("handleConfirmItem", func() {
		BeforeEach(func() {
			db.receipts["id1"] = storedReceipt("id1", "Walmart", now, "3.00", item("GV MLK", "3.00"))
		})

		It("confirms the item name", func() {
			resp, _ := do("PUT", "/api/receipts/id1/items/0", strings.NewReader(`{"name":"Great Value Milk"}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(db.receipts["id1"].Items[0].ConfirmedName).To(Equal("Great Value Milk"))
			Expect(db.corrections).To(HaveKey("GV MLK|Walmart"))
		})

		It("rejects a non-numeric index", func() {
			resp, _ := do("PUT", "/api/receipts/id1/items/first", strings.NewReader(`{"name":"x"}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects an index out of range", func() {
			resp, _ := do("PUT", "/api/receipts/id1/items/5", strings.NewReader(`{"name":"x"}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects a malformed body", func() {
			resp, _ := do("PUT", "/api/receipts/id1/items/0", strings.NewReader(`{`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("handleDeleteReceipt", func() {
		BeforeEach(func() {
			db.receipts["id1"] = storedReceipt("id1", "Aldi", now, "1.00")
			storage.files["id1_receipt.jpg"] = []byte("image")
		})

		It("returns no content", func() {
			resp, _ := do("DELETE", "/api/receipts/id1", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.receipts).To(BeEmpty())
		})

		It("returns not found for a missing receipt", func() {
			resp, _ := do("DELETE", "/api/receipts/missing", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("corrections", func() {
		It("adds a correction", func() {
			resp, data := do("POST", "/api/corrections",
				strings.NewReader(`{"raw_name":"GV MLK","store":"Walmart","product_name":"Great Value Milk"}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(string(data)).To(ContainSubstring("Great Value Milk"))
		})

		It("rejects an incomplete correction", func() {
			resp, _ := do("POST", "/api/corrections", strings.NewReader(`{"raw_name":"GV MLK"}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		When("a correction exists", func() {
			BeforeEach(func() {
				db.corrections["GV MLK|Walmart"] = &expense.Correction{RawName: "GV MLK", Store: "Walmart", ProductName: "Great Value Milk"}
			})

			It("lists it", func() {
				resp, data := do("GET", "/api/corrections", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var corrections []*expense.Correction
				Expect(json.Unmarshal(data, &corrections)).To(Succeed())
				Expect(corrections).To(HaveLen(1))
			})

			It("deletes it", func() {
				resp, _ := do("DELETE", "/api/corrections?raw_name=GV+MLK&store=Walmart", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
				Expect(db.corrections).To(BeEmpty())
			})
		})
	})

	Describe("reports", func() {
		BeforeEach(func() {
			db.receipts["id1"] = storedReceipt("id1", "Aldi", time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC), "3.50", item("Milk 2L", "3.50"))
		})

		It("serves the monthly summary", func() {
			resp, data := do("GET", "/api/reports/monthly?month=2024-01", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var summary MonthlySummary
			Expect(json.Unmarshal(data, &summary)).To(Succeed())
			Expect(summary.ReceiptCount).To(Equal(1))
			Expect(summary.Total.StringFixed(2)).To(Equal("3.50"))
		})

		It("rejects a malformed month", func() {
			resp, _ := do("GET", "/api/reports/monthly?month=2024-13", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("serves product spending", func() {
			resp, data := do("GET", "/api/reports/spent?product=milk", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var spending Spending
			Expect(json.Unmarshal(data, &spending)).To(Succeed())
			Expect(spending.PurchaseCount).To(Equal(1))
		})

		It("serves the range report", func() {
			resp, data := do("GET", "/api/reports/range?start=2024-01-01&end=2024-01-03", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var report RangeReport
			Expect(json.Unmarshal(data, &report)).To(Succeed())
			Expect(report.ReceiptCount).To(Equal(1))
		})
	})

	Describe("handleSync", func() {
		When("sync is configured", func() {
			BeforeEach(func() {
				syncer = &mockSyncer{}
				r := storedReceipt("id1", "Aldi", now, "1.00", item("Bread", "1.00"))
				r.Verified = true
				db.receipts["id1"] = r
			})

			It("returns the synced count", func() {
				resp, data := do("POST", "/api/sync", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(strings.TrimSpace(string(data))).To(Equal(`{"synced":1}`))
			})
		})

		When("sync is not configured", func() {
			It("returns service unavailable", func() {
				resp, _ := do("POST", "/api/sync", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
			})
		})
	})

	Describe("CORS", func() {
		It("answers preflight requests", func() {
			resp, _ := do("OPTIONS", "/api/receipts", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("PUT"))
		})

		It("sets headers on normal responses", func() {
			resp, _ := do("GET", "/api/receipts", nil, "")
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "clerk", Password: "secret"}
		})

		It("rejects requests without credentials", func() {
			resp, _ := do("GET", "/api/receipts", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("accepts valid credentials", func() {
			req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("clerk:secret")))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("rejects wrong credentials", func() {
			req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("clerk", "wrong")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})
})
