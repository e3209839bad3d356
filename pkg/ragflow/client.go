// Package ragflow is the client for the document endpoints of the RAGFlow
// web API: paginated listing, streamed download, upload, delete and parse.
//
// Every answer is a JSON envelope {"code":…, "message":…, "data":…}. A
// non-200 HTTP status is a transport failure, an envelope code of 401 is a
// fatal authentication failure and any other unexpected code is an
// application failure carrying the remote message.
package ragflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/kbmirror/internal/metrics"
	"github.com/agentstation/kbmirror/internal/transport"
	"github.com/agentstation/kbmirror/pkg/constants"
	"github.com/agentstation/kbmirror/pkg/documents"
	"github.com/agentstation/kbmirror/pkg/errors"
	"github.com/agentstation/kbmirror/pkg/logging"
)

// Endpoint paths relative to the base URL.
const (
	PathList     = "/v1/document/list"
	PathDownload = "/v1/document/get/"
	PathUpload   = "/v1/document/upload"
	PathRemove   = "/v1/document/rm"
	PathRun      = "/v1/document/run"
)

// RunAction is the "run" value of a parse request.
type RunAction int

// Run actions.
const (
	RunStart  RunAction = 1
	RunCancel RunAction = 2
)

// Page is one page of the document listing.
type Page struct {
	Documents []documents.RemoteDocument
	Total     int
}

// Client talks to one RAGFlow instance. It is safe for sequential use by a
// single actor and holds no mutable state besides its HTTP connections.
type Client struct {
	cfg      Config
	api      *transport.Client
	transfer *transport.Client
}

// New validates cfg and returns a client bound to a copy of it.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	auth, err := transport.ForScheme(cfg.AuthScheme)
	if err != nil {
		return nil, err
	}

	common := []transport.Option{
		transport.WithRateLimit(cfg.RateLimit),
		transport.WithMaxRetries(cfg.MaxRetries),
		transport.WithHeader("Origin", cfg.BaseURL),
		transport.WithHeader("User-Agent", cfg.UserAgent),
	}
	return &Client{
		cfg:      cfg,
		api:      transport.New(auth, cfg.Token, append(common, transport.WithTimeout(cfg.Timeout))...),
		transfer: transport.New(auth, cfg.Token, append(common, transport.WithTimeout(cfg.TransferTimeout))...),
	}, nil
}

// Config returns the configuration the client was built with.
func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) url(path string, query url.Values) string {
	return transport.JoinURL(c.cfg.BaseURL, path, query)
}

// ListPage fetches one page of the documents of kbID. Pages start at 1.
func (c *Client) ListPage(ctx context.Context, kbID string, page, pageSize int) (_ *Page, err error) {
	defer observe("list", time.Now(), &err)

	if pageSize <= 0 || pageSize > constants.MaxPageSize {
		return nil, errors.NewValidationError("page_size", pageSize, fmt.Sprintf("must be between 1 and %d", constants.MaxPageSize))
	}
	query := url.Values{
		"kb_id":     {kbID},
		"page_size": {strconv.Itoa(pageSize)},
		"page":      {strconv.Itoa(page)},
	}
	target := c.url(PathList, query)

	resp, err := c.api.DoWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
		return transport.NewJSONRequest(ctx, http.MethodGet, target, nil)
	})
	if err != nil {
		return nil, errors.WrapAPI(PathList, 0, err)
	}

	env, err := decodeEnvelope(resp, PathList)
	if err != nil {
		return nil, err
	}
	if err := checkCode(PathList, env, constants.CodeSuccess); err != nil {
		return nil, err
	}

	var data listData
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, errors.WrapParse("json", PathList, err)
		}
	}

	out := &Page{Total: data.Total, Documents: make([]documents.RemoteDocument, 0, len(data.Docs))}
	for _, d := range data.Docs {
		out.Documents = append(out.Documents, d.document())
	}
	logging.Ctx(ctx).Debug().
		Str("kb_id", kbID).
		Int("page", page).
		Int("documents", len(out.Documents)).
		Msg("Listed page")
	return out, nil
}

// Download streams the content of docID. The caller must close the reader.
func (c *Client) Download(ctx context.Context, docID string) (_ io.ReadCloser, err error) {
	defer observe("download", time.Now(), &err)

	target := c.url(PathDownload+url.PathEscape(docID), nil)
	resp, err := c.transfer.DoWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	})
	if err != nil {
		return nil, errors.WrapAPI(PathDownload, 0, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, transport.StatusError(PathDownload, resp.StatusCode, body)
	}

	// Errors come back as a JSON envelope with status 200.
	if isJSON(resp.Header.Get("Content-Type")) {
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, errors.WrapIO("read", PathDownload, err)
		}
		if env, ok := errorEnvelope(body); ok {
			if err := checkCode(PathDownload, env, constants.CodeSuccess); err != nil {
				return nil, err
			}
		}
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return resp.Body, nil
}

// Upload sends content as filename into kbID. Success is application code 9
// with data true. Uploads are never retried.
func (c *Client) Upload(ctx context.Context, kbID, filename string, content io.Reader) (err error) {
	defer observe("upload", time.Now(), &err)

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUpload(mw, kbID, filename, content))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(PathUpload, nil), pr)
	if err != nil {
		return errors.WrapResource("create", "request", PathUpload, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.transfer.Do(ctx, req)
	if err != nil {
		_ = pr.CloseWithError(err)
		return errors.WrapAPI(PathUpload, 0, err)
	}
	env, err := decodeEnvelope(resp, PathUpload)
	if err != nil {
		return err
	}
	if err := checkCode(PathUpload, env, constants.CodeUploadSuccess); err != nil {
		return err
	}
	if !env.dataTrue() {
		return errors.NewApplicationError(PathUpload, int(env.Code), "upload not confirmed: "+env.Message)
	}
	return nil
}

func writeUpload(mw *multipart.Writer, kbID, filename string, content io.Reader) error {
	if err := mw.WriteField("kb_id", kbID); err != nil {
		return err
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	header.Set("Content-Type", contentType(filename))
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return mw.Close()
}

// Delete removes docID. Success is application code 0 with data true.
func (c *Client) Delete(ctx context.Context, docID string) (err error) {
	defer observe("delete", time.Now(), &err)

	req, err := transport.NewJSONRequest(ctx, http.MethodPost, c.url(PathRemove, nil), removeRequest{DocID: []string{docID}})
	if err != nil {
		return err
	}
	resp, err := c.api.Do(ctx, req)
	if err != nil {
		return errors.WrapAPI(PathRemove, 0, err)
	}
	env, err := decodeEnvelope(resp, PathRemove)
	if err != nil {
		return err
	}
	if err := checkCode(PathRemove, env, constants.CodeSuccess); err != nil {
		return err
	}
	if !env.dataTrue() {
		return errors.NewApplicationError(PathRemove, int(env.Code), "delete not confirmed: "+env.Message)
	}
	return nil
}

// Run starts or cancels parsing of docIDs.
func (c *Client) Run(ctx context.Context, docIDs []string, action RunAction) (err error) {
	defer observe("run", time.Now(), &err)

	if len(docIDs) == 0 {
		return nil
	}
	req, err := transport.NewJSONRequest(ctx, http.MethodPost, c.url(PathRun, nil), runRequest{DocIDs: docIDs, Run: int(action)})
	if err != nil {
		return err
	}
	resp, err := c.api.Do(ctx, req)
	if err != nil {
		return errors.WrapAPI(PathRun, 0, err)
	}
	env, err := decodeEnvelope(resp, PathRun)
	if err != nil {
		return err
	}
	return checkCode(PathRun, env, constants.CodeSuccess)
}

func decodeEnvelope(resp *http.Response, endpoint string) (envelope, error) {
	var env envelope
	if err := transport.DecodeResponse(resp, endpoint, &env); err != nil {
		return envelope{}, err
	}
	return env, nil
}

// checkCode maps an envelope code onto the error taxonomy.
func checkCode(endpoint string, env envelope, want int) error {
	switch int(env.Code) {
	case want:
		return nil
	case constants.CodeUnauthorized:
		return errors.NewAuthenticationError(endpoint, env.Message, nil)
	default:
		return errors.NewApplicationError(endpoint, int(env.Code), env.Message)
	}
}

func observe(operation string, start time.Time, err *error) {
	metrics.RemoteRequest(operation, time.Since(start), *err)
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

func contentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".pdf" {
		return "application/pdf"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
