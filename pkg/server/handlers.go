package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/japaniel/tarjama/pkg/ingest"
	"github.com/japaniel/tarjama/pkg/merge"
	"github.com/japaniel/tarjama/pkg/store"
)

type translationBody struct {
	English string   `json:"english"`
	Arabic  string   `json:"arabic"`
	Tags    []string `json:"tags"`
}

type bulkUpdateBody struct {
	English ingest.Mapping `json:"englishJson"`
	Arabic  ingest.Mapping `json:"arabicJson"`
	Tags    tagList        `json:"tags"`
}

// tagList accepts either a JSON array of tags or a comma separated string.
type tagList []string

func (l *tagList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = ingest.ParseTags(s)
		return nil
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("tags must be a string or an array of strings")
	}
	*l = store.NormalizeTags(arr)
	return nil
}

func (t *TranslationServer) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "records": t.store.Len()})
}

func (t *TranslationServer) ListTranslations(c echo.Context) error {
	return c.JSON(http.StatusOK, t.store.All())
}

func (t *TranslationServer) GetTranslation(c echo.Context) error {
	rec, err := t.store.Get(pathParam(c, "key"))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Key not found"})
	}
	if err != nil {
		return t.internalError(c, "get translation", err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (t *TranslationServer) PutTranslation(c echo.Context) error {
	key := pathParam(c, "key")
	var body translationBody
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		t.logger.Error("put translation - failed to decode", slog.Any("err", err.Error()))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}

	version, err := t.store.Upsert(key, body.English, body.Arabic, body.Tags)
	var verr *store.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": fmt.Sprintf("%s is required", capitalize(verr.Field))})
	}
	if err != nil {
		return t.internalError(c, "upsert translation", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Translation updated successfully",
		"version": version,
	})
}

func (t *TranslationServer) DeleteTranslation(c echo.Context) error {
	if err := t.store.Delete(pathParam(c, "key")); err != nil {
		return t.internalError(c, "delete translation", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Translation deleted successfully"})
}

func (t *TranslationServer) TranslationsSince(c echo.Context) error {
	version, err := strconv.ParseInt(c.Param("version"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid version"})
	}
	return c.JSON(http.StatusOK, t.store.Since(version, strings.TrimSpace(c.QueryParam("tag"))))
}

func (t *TranslationServer) SearchEnglish(c echo.Context) error {
	rec, err := t.store.FindByEnglish(pathParam(c, "text"))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Text not found"})
	}
	if err != nil {
		return t.internalError(c, "search english", err)
	}
	return c.JSON(http.StatusOK, rec)
}

// UploadJSON merges an english and an arabic JSON file sent as the
// multipart fields "english" and "arabic", or as two "files" in that order.
func (t *TranslationServer) UploadJSON(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Expected a multipart upload"})
	}
	defer form.RemoveAll()

	enFile, arFile := firstFile(form, "english"), firstFile(form, "arabic")
	if files := form.File["files"]; (enFile == nil || arFile == nil) && len(files) >= 2 {
		enFile, arFile = files[0], files[1]
	}
	if enFile == nil || arFile == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Both English and Arabic JSON files are required"})
	}

	english, err := readMapping(enFile)
	if err != nil {
		return t.mergeError(c, err)
	}
	arabic, err := readMapping(arFile)
	if err != nil {
		return t.mergeError(c, err)
	}

	res, err := t.merger.MergeMappings(english, arabic, ingest.ParseTags(c.QueryParam("tags")))
	if err != nil {
		return t.mergeError(c, err)
	}
	return mergeOK(c, res)
}

// UploadExcel merges the first sheet of a workbook sent as the multipart
// field "file". CSV uploads are accepted too.
func (t *TranslationServer) UploadExcel(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Expected a multipart upload"})
	}
	defer form.RemoveAll()

	fh := firstFile(form, "file")
	if fh == nil {
		fh = firstFile(form, "excel")
	}
	if fh == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "A spreadsheet file is required"})
	}

	rows, err := readRows(fh)
	if err != nil {
		return t.mergeError(c, err)
	}
	res, err := t.merger.MergeRows(rows, ingest.ParseTags(c.QueryParam("tags")))
	if err != nil {
		return t.mergeError(c, err)
	}
	return mergeOK(c, res)
}

func (t *TranslationServer) BulkUpdate(c echo.Context) error {
	var body bulkUpdateBody
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		t.logger.Error("bulk update - failed to decode", slog.Any("err", err.Error()))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if body.English == nil || body.Arabic == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "englishJson and arabicJson are required"})
	}

	res, err := t.merger.MergeMappings(body.English, body.Arabic, body.Tags)
	if err != nil {
		return t.mergeError(c, err)
	}
	return mergeOK(c, res)
}

func mergeOK(c echo.Context, res merge.Result) error {
	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"message":    fmt.Sprintf("Added %d new translations, updated %d duplicates", len(res.NewRecords), len(res.Duplicates)),
		"newRecords": res.NewRecords,
		"duplicates": res.Duplicates,
		"version":    res.Version,
	})
}

// mergeError maps merge and ingest failures onto HTTP responses.
func (t *TranslationServer) mergeError(c echo.Context, err error) error {
	var missing *merge.MissingPairError
	var perr *ingest.ParseError
	var verr *store.ValidationError
	switch {
	case errors.As(err, &missing):
		msg := fmt.Sprintf("Missing %s translation for key: %s", capitalize(missing.Field), missing.Key)
		if missing.Field == "key" {
			msg = fmt.Sprintf("Missing key in row %d", missing.Line)
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "key": missing.Key})
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": fmt.Sprintf("%s is required", capitalize(verr.Field)), "key": verr.Key})
	case errors.As(err, &perr):
		t.logger.Error("failed to parse upload", slog.String("source", perr.Source), slog.Any("err", perr.Err.Error()))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to process file"})
	default:
		return t.internalError(c, "merge translations", err)
	}
}

func (t *TranslationServer) internalError(c echo.Context, op string, err error) error {
	t.logger.Error("failed to "+op, slog.Any("err", err.Error()))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal server error"})
}

func readMapping(fh *multipart.FileHeader) (ingest.Mapping, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, &ingest.ParseError{Source: fh.Filename, Err: err}
	}
	defer f.Close()
	return ingest.DecodeMapping(f, fh.Filename)
}

func readRows(fh *multipart.FileHeader) ([]ingest.Row, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, &ingest.ParseError{Source: fh.Filename, Err: err}
	}
	defer f.Close()
	if ingest.IsCSV(fh.Filename) {
		return ingest.ReadCSV(f, fh.Filename)
	}
	return ingest.ReadSpreadsheet(f, fh.Filename)
}

func firstFile(form *multipart.Form, field string) *multipart.FileHeader {
	if files := form.File[field]; len(files) > 0 {
		return files[0]
	}
	return nil
}

// pathParam returns the decoded value of a path parameter. Echo routes on
// URL.RawPath when the request carried a non-canonical escaping, and on the
// already decoded URL.Path otherwise, so only the former needs unescaping.
func pathParam(c echo.Context, name string) string {
	raw := c.Param(name)
	if c.Request().URL.RawPath == "" {
		return raw
	}
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
