package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"

	"github.com/japaniel/tarjama/pkg/merge"
	"github.com/japaniel/tarjama/pkg/store"
)

type testEnv struct {
	e     *echo.Echo
	store *store.Store
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.Open(nil, store.WithClock(func() time.Time { return time.Unix(1000, 0) }))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := NewTranslationServer(st, merge.NewEngine(st, logger), logger)
	return &testEnv{e: New(ts, "8M"), store: st}
}

func (env *testEnv) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	var body map[string]interface{}
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, body
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

type upload struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, target string, files ...upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write(f.data)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func recordList(t *testing.T, rec *httptest.ResponseRecorder) []store.Record {
	t.Helper()
	var out []store.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode records %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestGetMissingKey(t *testing.T) {
	env := setupServer(t)
	rec, body := env.do(t, httptest.NewRequest(http.MethodGet, "/translation/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body["error"] != "Key not found" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestPutThenGet(t *testing.T) {
	env := setupServer(t)
	rec, body := env.do(t, jsonRequest(http.MethodPut, "/translation/greet", `{"english":"Hello","arabic":"مرحبا","tags":["ui","ui"]}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["success"] != true || body["version"].(float64) != 1000 {
		t.Fatalf("unexpected body %v", body)
	}

	rec, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/translation/greet", nil))
	var got store.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := store.Record{Key: "greet", English: "Hello", Arabic: "مرحبا", Tags: []string{"ui"}, Version: 1000}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	rec, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/translations", nil))
	if list := recordList(t, rec); len(list) != 1 {
		t.Fatalf("expected one record, got %d", len(list))
	}
}

func TestPutRequiresEnglish(t *testing.T) {
	env := setupServer(t)
	rec, body := env.do(t, jsonRequest(http.MethodPut, "/translation/k", `{"arabic":"x"}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body["error"] != "English is required" {
		t.Fatalf("unexpected body %v", body)
	}
	rec, _ = env.do(t, jsonRequest(http.MethodPut, "/translation/k", `not json`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rec.Code)
	}
}

func TestTranslationsSince(t *testing.T) {
	env := setupServer(t)
	env.store.Upsert("a", "A", "", []string{"web"})
	env.store.Upsert("b", "B", "", []string{"mobile"})

	rec, _ := env.do(t, httptest.NewRequest(http.MethodGet, "/translations-since/1000", nil))
	if list := recordList(t, rec); len(list) != 1 || list[0].Key != "b" {
		t.Fatalf("expected only b, got %+v", list)
	}
	rec, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/translations-since/0?tag=web", nil))
	if list := recordList(t, rec); len(list) != 1 || list[0].Key != "a" {
		t.Fatalf("expected only a, got %+v", list)
	}
	rec, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/translations-since/0?tag=desktop", nil))
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
	rec, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/translations-since/yesterday", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDeleteAlwaysSucceeds(t *testing.T) {
	env := setupServer(t)
	env.store.Upsert("a", "A", "", nil)
	for _, key := range []string{"a", "a", "never-existed"} {
		rec, body := env.do(t, httptest.NewRequest(http.MethodDelete, "/translation/"+key, nil))
		if rec.Code != http.StatusOK || body["success"] != true {
			t.Fatalf("delete %s: %d %v", key, rec.Code, body)
		}
	}
	if env.store.Len() != 0 {
		t.Fatalf("expected empty store")
	}
}

func TestSearchEnglish(t *testing.T) {
	env := setupServer(t)
	env.store.Upsert("save", "Save Changes", "حفظ التغييرات", nil)

	rec, body := env.do(t, httptest.NewRequest(http.MethodGet, "/search-english/save%20CHANGES", nil))
	if rec.Code != http.StatusOK || body["key"] != "save" {
		t.Fatalf("expected match, got %d %v", rec.Code, body)
	}
	rec, body = env.do(t, httptest.NewRequest(http.MethodGet, "/search-english/discard", nil))
	if rec.Code != http.StatusNotFound || body["error"] != "Text not found" {
		t.Fatalf("expected 404, got %d %v", rec.Code, body)
	}
}

func TestUploadJSONMissingPair(t *testing.T) {
	env := setupServer(t)
	req := multipartRequest(t, "/upload-json?tags=web",
		upload{"english", "en.json", []byte(`{"a":"Apple","b":"Banana"}`)},
		upload{"arabic", "ar.json", []byte(`{"a":"تفاحة"}`)},
	)
	rec, body := env.do(t, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["key"] != "b" || body["error"] != "Missing Arabic translation for key: b" {
		t.Fatalf("unexpected body %v", body)
	}
	if env.store.Len() != 0 {
		t.Fatalf("expected nothing merged")
	}
}

func TestUploadJSONMerges(t *testing.T) {
	env := setupServer(t)
	env.store.Upsert("hello", "Hello", "old", []string{"ui"})

	req := multipartRequest(t, "/upload-json?tags=web,ui",
		upload{"files", "en.json", []byte(`{"hi":"hello","bye":"Goodbye"}`)},
		upload{"files", "ar.json", []byte(`{"hi":"مرحبا","bye":"وداعا"}`)},
	)
	rec, body := env.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	dups := body["duplicates"].([]interface{})
	if len(dups) != 1 || dups[0].(map[string]interface{})["key"] != "hello" {
		t.Fatalf("expected hello duplicate, got %v", dups)
	}
	if news := body["newRecords"].([]interface{}); len(news) != 1 {
		t.Fatalf("expected one new record, got %v", news)
	}

	r, _ := env.store.Get("hello")
	if r.Arabic != "مرحبا" || !reflect.DeepEqual(r.Tags, []string{"ui", "web"}) {
		t.Fatalf("duplicate not updated: %+v", r)
	}
	r, _ = env.store.Get("bye")
	if !reflect.DeepEqual(r.Tags, []string{"web", "ui"}) {
		t.Fatalf("unexpected tags on new record: %+v", r)
	}
}

func TestUploadJSONRequiresBothFiles(t *testing.T) {
	env := setupServer(t)
	req := multipartRequest(t, "/upload-json", upload{"english", "en.json", []byte(`{}`)})
	rec, _ := env.do(t, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec, _ = env.do(t, jsonRequest(http.MethodPost, "/upload-json", `{}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-multipart body, got %d", rec.Code)
	}
}

func TestUploadJSONMalformed(t *testing.T) {
	env := setupServer(t)
	req := multipartRequest(t, "/upload-json",
		upload{"english", "en.json", []byte(`{"a": `)},
		upload{"arabic", "ar.json", []byte(`{"a": "x"}`)},
	)
	rec, body := env.do(t, req)
	if rec.Code != http.StatusInternalServerError || body["error"] != "Failed to process file" {
		t.Fatalf("expected 500 processing error, got %d %v", rec.Code, body)
	}
}

func workbook(t *testing.T, cells [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for r, line := range cells {
		for c, v := range line {
			name, _ := excelize.CoordinatesToCellName(c+1, r+1)
			f.SetCellValue(sheet, name, v)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestUploadExcel(t *testing.T) {
	env := setupServer(t)
	data := workbook(t, [][]string{
		{"key", "english", "arabic"},
		{"save", "Save", "حفظ"},
		{"open", "Open", "فتح"},
	})
	rec, body := env.do(t, multipartRequest(t, "/upload-excel?tags=desktop", upload{"file", "t.xlsx", data}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if news := body["newRecords"].([]interface{}); len(news) != 2 {
		t.Fatalf("expected two new records, got %v", news)
	}
	r, err := env.store.Get("open")
	if err != nil || r.Arabic != "فتح" || !reflect.DeepEqual(r.Tags, []string{"desktop"}) {
		t.Fatalf("unexpected record %+v, %v", r, err)
	}
}

func TestUploadExcelMissingArabic(t *testing.T) {
	env := setupServer(t)
	data := workbook(t, [][]string{
		{"key", "english", "arabic"},
		{"save", "Save", "حفظ"},
		{"open", "Open"},
	})
	rec, body := env.do(t, multipartRequest(t, "/upload-excel", upload{"file", "t.xlsx", data}))
	if rec.Code != http.StatusBadRequest || body["key"] != "open" {
		t.Fatalf("expected 400 naming open, got %d %v", rec.Code, body)
	}
	if env.store.Len() != 0 {
		t.Fatalf("expected nothing merged")
	}
}

func TestUploadCSV(t *testing.T) {
	env := setupServer(t)
	csv := "key,english,arabic\nyes,Yes,نعم\n"
	rec, _ := env.do(t, multipartRequest(t, "/upload-excel", upload{"file", "t.csv", []byte(csv)}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, err := env.store.Get("yes"); err != nil {
		t.Fatalf("expected csv row merged: %v", err)
	}
}

func TestUploadExcelGarbage(t *testing.T) {
	env := setupServer(t)
	rec, body := env.do(t, multipartRequest(t, "/upload-excel", upload{"file", "t.xlsx", []byte("nope")}))
	if rec.Code != http.StatusInternalServerError || body["error"] != "Failed to process file" {
		t.Fatalf("expected 500, got %d %v", rec.Code, body)
	}
}

func TestBulkUpdate(t *testing.T) {
	env := setupServer(t)
	rec, body := env.do(t, jsonRequest(http.MethodPost, "/bulk-update",
		`{"englishJson":{"a":"Apple"},"arabicJson":{"a":"تفاحة"},"tags":"fruit, food"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["success"] != true {
		t.Fatalf("unexpected body %v", body)
	}
	r, _ := env.store.Get("a")
	if !reflect.DeepEqual(r.Tags, []string{"fruit", "food"}) {
		t.Fatalf("unexpected tags %v", r.Tags)
	}

	rec, _ = env.do(t, jsonRequest(http.MethodPost, "/bulk-update",
		`{"englishJson":{"b":"Bread"},"arabicJson":{"b":"خبز"},"tags":["food"]}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for array tags, got %d", rec.Code)
	}

	rec, body = env.do(t, jsonRequest(http.MethodPost, "/bulk-update",
		`{"englishJson":{"a":"Apple","c":"Cheese"},"arabicJson":{"a":"تفاحة"}}`))
	if rec.Code != http.StatusBadRequest || body["key"] != "c" {
		t.Fatalf("expected 400 naming c, got %d %v", rec.Code, body)
	}

	rec, _ = env.do(t, jsonRequest(http.MethodPost, "/bulk-update", `{"englishJson":{"a":"Apple"}}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without arabicJson, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	env := setupServer(t)
	env.store.Upsert("a", "A", "", nil)
	rec, body := env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || body["records"].(float64) != 1 {
		t.Fatalf("unexpected health %d %v", rec.Code, body)
	}
}

func TestEscapedKeys(t *testing.T) {
	tests := []struct {
		name   string
		target string
		key    string
	}{
		{"percent sign", "/translation/discount%2541", "discount%41"},
		{"escaped slash", "/translation/menu%2Fopen", "menu/open"},
		{"space", "/translation/save%20as", "save as"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupServer(t)
			rec, _ := env.do(t, jsonRequest(http.MethodPut, tt.target, `{"english":"Value"}`))
			if rec.Code != http.StatusOK {
				t.Fatalf("put: expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if _, err := env.store.Get(tt.key); err != nil {
				t.Fatalf("expected record under %q: %v (have %+v)", tt.key, err, env.store.All())
			}

			rec, body := env.do(t, httptest.NewRequest(http.MethodGet, tt.target, nil))
			if rec.Code != http.StatusOK || body["key"] != tt.key {
				t.Fatalf("get: status %d body %v", rec.Code, body)
			}
		})
	}
}
