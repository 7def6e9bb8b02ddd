package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/parithi/bankassist/internal/gemini"
	"github.com/parithi/bankassist/internal/modality"
	"github.com/parithi/bankassist/internal/pipeline"
)

type fakeResolver struct {
	loginErr   error
	resolveErr error
	answer     pipeline.Answer

	lastAccount string
	lastText    string
	lastPayload []byte
	lastMethod  string
}

func (f *fakeResolver) Login(accountNumber, password string) (pipeline.SessionSummary, error) {
	if f.loginErr != nil {
		return pipeline.SessionSummary{}, f.loginErr
	}
	return pipeline.SessionSummary{
		AccountNumber:    accountNumber,
		Name:             "Priya Sharma",
		TransactionCount: 3,
		LoginAt:          time.Now().UTC(),
	}, nil
}

func (f *fakeResolver) ResolveText(ctx context.Context, accountNumber, text string) (pipeline.Answer, error) {
	f.lastMethod = "text"
	f.lastAccount = accountNumber
	f.lastText = text
	if f.resolveErr != nil {
		return pipeline.Answer{}, f.resolveErr
	}
	return f.answer, nil
}

func (f *fakeResolver) ResolveImage(ctx context.Context, accountNumber string, imageBytes []byte) (pipeline.Answer, error) {
	f.lastMethod = "image"
	f.lastAccount = accountNumber
	f.lastPayload = imageBytes
	if f.resolveErr != nil {
		return pipeline.Answer{}, f.resolveErr
	}
	return f.answer, nil
}

func (f *fakeResolver) ResolveAudio(ctx context.Context, accountNumber string, audioBytes []byte) (pipeline.Answer, error) {
	f.lastMethod = "audio"
	f.lastAccount = accountNumber
	f.lastPayload = audioBytes
	if f.resolveErr != nil {
		return pipeline.Answer{}, f.resolveErr
	}
	return f.answer, nil
}

func (f *fakeResolver) ResolveDocument(ctx context.Context, accountNumber string, pdfBytes []byte) (pipeline.Answer, error) {
	f.lastMethod = "document"
	f.lastAccount = accountNumber
	f.lastPayload = pdfBytes
	if f.resolveErr != nil {
		return pipeline.Answer{}, f.resolveErr
	}
	return f.answer, nil
}

func newTestHandler(f *fakeResolver) http.Handler {
	return NewHandler(Deps{Resolver: f})
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postUpload(t *testing.T, h http.Handler, path, accountNumber string, payload []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "upload.bin")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(payload); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if accountNumber != "" {
		if err := mw.WriteField("account_number", accountNumber); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error.Type
}

func TestHealth(t *testing.T) {
	h := newTestHandler(&fakeResolver{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestLogin_Success(t *testing.T) {
	h := newTestHandler(&fakeResolver{})
	rec := postJSON(t, h, "/login", map[string]string{
		"account_number": "ACC123",
		"password":       "secret",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Message string `json:"message"`
		Session struct {
			AccountNumber    string `json:"account_number"`
			TransactionCount int    `json:"transaction_count"`
		} `json:"session"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Session.AccountNumber != "ACC123" {
		t.Errorf("expected session for ACC123, got %q", body.Session.AccountNumber)
	}
	if body.Session.TransactionCount != 3 {
		t.Errorf("expected 3 transactions, got %d", body.Session.TransactionCount)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	h := newTestHandler(&fakeResolver{})
	rec := postJSON(t, h, "/login", map[string]string{"account_number": "ACC123"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	h := newTestHandler(&fakeResolver{loginErr: pipeline.ErrInvalidCredentials})
	rec := postJSON(t, h, "/login", map[string]string{
		"account_number": "ACC123",
		"password":       "wrong",
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := errType(t, rec); got != "authentication_error" {
		t.Errorf("expected authentication_error, got %q", got)
	}
}

func TestTextQuery_Success(t *testing.T) {
	f := &fakeResolver{answer: pipeline.Answer{
		Reply:              "Your balance is ₹5000.",
		QueryText:          "What is my balance?",
		Source:             modality.SourceText,
		TransactionRelated: true,
	}}
	h := newTestHandler(f)

	rec := postJSON(t, h, "/query", map[string]string{
		"query":          "What is my balance?",
		"account_number": "ACC123",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.lastAccount != "ACC123" || f.lastText != "What is my balance?" {
		t.Errorf("resolver got account=%q text=%q", f.lastAccount, f.lastText)
	}

	var answer pipeline.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &answer); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if answer.Reply != "Your balance is ₹5000." {
		t.Errorf("unexpected reply %q", answer.Reply)
	}
}

func TestTextQuery_EmptyQuery(t *testing.T) {
	h := newTestHandler(&fakeResolver{})
	rec := postJSON(t, h, "/query", map[string]string{"query": ""})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTextQuery_NoActiveSession(t *testing.T) {
	h := newTestHandler(&fakeResolver{resolveErr: pipeline.ErrNoActiveSession})
	rec := postJSON(t, h, "/query", map[string]string{"query": "balance?"})

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if got := errType(t, rec); got != "no_active_session" {
		t.Errorf("expected no_active_session, got %q", got)
	}
}

func TestUploadQuery_RoutesToResolver(t *testing.T) {
	cases := []struct {
		path   string
		method string
	}{
		{"/query/image", "image"},
		{"/query/audio", "audio"},
		{"/query/document", "document"},
	}

	for _, tc := range cases {
		t.Run(tc.method, func(t *testing.T) {
			f := &fakeResolver{answer: pipeline.Answer{Reply: "ok"}}
			h := newTestHandler(f)

			payload := []byte("fake payload bytes")
			rec := postUpload(t, h, tc.path, "ACC9", payload)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if f.lastMethod != tc.method {
				t.Errorf("expected %s resolver, got %s", tc.method, f.lastMethod)
			}
			if f.lastAccount != "ACC9" {
				t.Errorf("expected account ACC9, got %q", f.lastAccount)
			}
			if !bytes.Equal(f.lastPayload, payload) {
				t.Error("payload not passed through unchanged")
			}
		})
	}
}

func TestUploadQuery_MissingFile(t *testing.T) {
	h := newTestHandler(&fakeResolver{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("account_number", "ACC1")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/query/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPipelineErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantType string
	}{
		{"unintelligible audio", modality.ErrUnintelligibleAudio, http.StatusBadRequest, "unintelligible_audio"},
		{"speech unavailable", fmt.Errorf("stt: %w", modality.ErrSpeechUnavailable), http.StatusBadGateway, "speech_unavailable"},
		{"recognition", &modality.RecognitionError{Err: fmt.Errorf("bad image")}, http.StatusUnprocessableEntity, "recognition_error"},
		{"service error", &gemini.ServiceError{Status: 429, Body: "quota"}, http.StatusBadGateway, "model_error"},
		{"transport error", &gemini.TransportError{Attempts: 3, Err: fmt.Errorf("refused")}, http.StatusBadGateway, "model_error"},
		{"malformed response", fmt.Errorf("decode: %w", gemini.ErrMalformedResponse), http.StatusBadGateway, "model_error"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "api_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(&fakeResolver{resolveErr: tc.err})
			rec := postJSON(t, h, "/query", map[string]string{"query": "show my last transaction"})

			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, rec.Code, rec.Body.String())
			}
			if got := errType(t, rec); got != tc.wantType {
				t.Errorf("expected type %q, got %q", tc.wantType, got)
			}
		})
	}
}
