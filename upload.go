package kbmirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dslipak/pdf"
	"github.com/karrick/godirwalk"

	"github.com/agentstation/kbmirror/internal/digest"
	"github.com/agentstation/kbmirror/internal/metrics"
	"github.com/agentstation/kbmirror/internal/report"
	"github.com/agentstation/kbmirror/pkg/documents"
	"github.com/agentstation/kbmirror/pkg/errors"
	"github.com/agentstation/kbmirror/pkg/logging"
	"github.com/agentstation/kbmirror/pkg/mirror"
)

// Uploader uploads local files unless the mirror already holds the same content.
type Uploader interface {
	// Upload hashes path and uploads it to kbID unless a document with the
	// same content hash is already mirrored. A successful upload is followed
	// by a sync so the new document enters the mirror.
	Upload(ctx context.Context, kbID, path string, opts ...OperationOption) (*UploadResult, error)

	// UploadDirectory applies Upload to every PDF below dir.
	UploadDirectory(ctx context.Context, kbID, dir string, opts ...OperationOption) (*DirectoryUploadResult, error)
}

// UploadResult describes the outcome of one guarded upload.
type UploadResult struct {
	File     string `json:"file" yaml:"file"`
	Hash     string `json:"hash" yaml:"hash"`
	Uploaded bool   `json:"uploaded" yaml:"uploaded"`
	// Existing is the mirrored document that made the upload unnecessary.
	Existing *documents.Record `json:"existing,omitempty" yaml:"existing,omitempty"`
	Sync     *SyncResult       `json:"sync,omitempty" yaml:"sync,omitempty"`
}

// Skipped reports whether the upload was skipped as a duplicate.
func (r *UploadResult) Skipped() bool {
	return r.Existing != nil
}

// Text renders the result as plain text.
func (r *UploadResult) Text() string {
	if r.Existing != nil {
		return fmt.Sprintf("Skipped %s: identical content already exists as %s (id %s, progress %s)\n",
			filepath.Base(r.File), r.Existing.Name, r.Existing.DocID, report.Percent(r.Existing.Process))
	}
	return fmt.Sprintf("Uploaded %s\n", filepath.Base(r.File))
}

// FailedFile names a file that could not be uploaded.
type FailedFile struct {
	File  string `json:"file" yaml:"file"`
	Error string `json:"error" yaml:"error"`
}

// DirectoryUploadResult summarizes UploadDirectory.
type DirectoryUploadResult struct {
	KnowledgeBase string          `json:"kb_id" yaml:"kb_id"`
	Directory     string          `json:"directory" yaml:"directory"`
	Total         int             `json:"total" yaml:"total"`
	Uploaded      int             `json:"uploaded" yaml:"uploaded"`
	Skipped       int             `json:"skipped" yaml:"skipped"`
	Failed        int             `json:"failed" yaml:"failed"`
	FailedFiles   []FailedFile    `json:"failed_files" yaml:"failed_files"`
	Results       []*UploadResult `json:"results,omitempty" yaml:"results,omitempty"`
}

// Text renders the result as plain text.
func (r *DirectoryUploadResult) Text() string {
	t := &report.Text{}
	t.Title("Upload " + r.Directory)
	t.Field("total", r.Total)
	t.Field("uploaded", r.Uploaded)
	t.Field("skipped", r.Skipped)
	t.Field("failed", r.Failed)
	if len(r.FailedFiles) > 0 {
		t.Section("Failed files")
		for _, f := range r.FailedFiles {
			t.Item("%s: %s", f.File, f.Error)
		}
	}
	return t.String()
}

// Markdown renders the result as a Markdown document.
func (r *DirectoryUploadResult) Markdown() (string, error) {
	m := report.NewMarkdownBuffer()
	m.H1("Upload report").
		BulletList(
			"Knowledge base: "+report.Code(r.KnowledgeBase),
			"Directory: "+report.Code(r.Directory),
			fmt.Sprintf("Total: %d", r.Total),
			fmt.Sprintf("Uploaded: %d", r.Uploaded),
			fmt.Sprintf("Skipped: %d", r.Skipped),
			fmt.Sprintf("Failed: %d", r.Failed),
		)

	skipped := make([][]string, 0, r.Skipped)
	for _, res := range r.Results {
		if res.Existing != nil {
			skipped = append(skipped, []string{res.File, res.Existing.DocID, res.Existing.Name})
		}
	}
	if len(skipped) > 0 {
		m.H2("Skipped")
		m.Table([]string{"File", "Existing ID", "Existing name"}, skipped)
	}

	if len(r.FailedFiles) > 0 {
		m.H2("Failed")
		rows := make([][]string, len(r.FailedFiles))
		for i, f := range r.FailedFiles {
			rows[i] = []string{f.File, f.Error}
		}
		m.Table([]string{"File", "Error"}, rows)
	}
	if err := m.Build(); err != nil {
		return "", err
	}
	return m.String(), nil
}

// Upload implements Uploader.
func (c *client) Upload(ctx context.Context, kbID, path string, opts ...OperationOption) (*UploadResult, error) {
	if err := validateKB(kbID); err != nil {
		return nil, err
	}
	options := NewOperationOptions(opts...)

	c.mu.Lock()
	defer c.mu.Unlock()

	return withStore(ctx, c, func(store mirror.Store, reset *mirror.ResetEvent) (*UploadResult, error) {
		return c.upload(ctx, store, reset, kbID, path, options)
	})
}

// upload runs the guard for one file against an open store. The caller holds c.mu.
func (c *client) upload(ctx context.Context, store mirror.Store, reset *mirror.ResetEvent, kbID, path string, options *OperationOptions) (*UploadResult, error) {
	ctx = logging.WithKnowledgeBase(ctx, kbID)
	logger := logging.Ctx(ctx).With().Str("file", path).Logger()

	// Step 1: Hash the local file
	sum, err := digest.File(path)
	if err != nil {
		return nil, err
	}
	if sum.Size == 0 {
		return nil, errors.NewValidationError("file", path, "file is empty")
	}
	result := &UploadResult{File: path, Hash: sum.Hash}

	// Step 2: Look the hash up in the mirror
	existing, err := store.FindByHash(ctx, kbID, sum.Hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logger.Info().
			Str("existing_id", existing.DocID).
			Str("existing_name", existing.Name).
			Float64("progress", existing.Process).
			Msg("Identical content already uploaded, skipping")
		result.Existing = existing
		metrics.Upload(metrics.OutcomeSkipped)
		return result, nil
	}

	// Step 3: Optionally make sure the file is a readable PDF
	if options.ValidatePDF && isPDF(path) {
		if err := validatePDF(path); err != nil {
			metrics.Upload(metrics.OutcomeFailed)
			return nil, err
		}
	}

	// Step 4: Upload
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	err = c.remote.Upload(ctx, kbID, filepath.Base(path), f)
	_ = f.Close()
	if err != nil {
		metrics.Upload(metrics.OutcomeFailed)
		return nil, err
	}
	result.Uploaded = true
	metrics.Upload(metrics.OutcomeSuccess)
	logger.Info().Str("hash", sum.Hash).Msg("File uploaded")

	// Step 5: Sync so the new document and its hash enter the mirror
	syncResult, err := c.sync(ctx, store, reset, kbID)
	result.Sync = syncResult
	if err != nil {
		return result, err
	}
	return result, nil
}

// UploadDirectory implements Uploader.
func (c *client) UploadDirectory(ctx context.Context, kbID, dir string, opts ...OperationOption) (*DirectoryUploadResult, error) {
	if err := validateKB(kbID); err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("directory", dir)
		}
		return nil, errors.WrapIO("stat", dir, err)
	}
	if !info.IsDir() {
		return nil, errors.NewValidationError("dir", dir, "not a directory")
	}
	options := NewOperationOptions(opts...)

	c.mu.Lock()
	defer c.mu.Unlock()

	return withStore(ctx, c, func(store mirror.Store, reset *mirror.ResetEvent) (*DirectoryUploadResult, error) {
		ctx := logging.WithKnowledgeBase(logging.WithOperation(ctx, "upload_directory"), kbID)

		// Step 1: Sync so the guard sees everything already uploaded
		if _, err := c.sync(ctx, store, reset, kbID); err != nil {
			return nil, err
		}

		// Step 2: Collect PDFs in lexical order
		files, err := findPDFs(dir)
		if err != nil {
			return nil, err
		}

		result := &DirectoryUploadResult{
			KnowledgeBase: kbID,
			Directory:     dir,
			Total:         len(files),
			FailedFiles:   []FailedFile{},
		}

		// Step 3: Guard and upload each file
		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return result, contextErr(err)
			}

			res, err := c.upload(ctx, store, nil, kbID, file, options)
			if err != nil && (res == nil || !res.Uploaded) {
				if errors.IsFatal(err) {
					return result, err
				}
				logging.Ctx(ctx).Warn().Err(err).Str("file", file).Msg("Upload failed")
				result.Failed++
				result.FailedFiles = append(result.FailedFiles, FailedFile{File: file, Error: err.Error()})
				continue
			}
			if err != nil {
				// Uploaded but the follow-up sync stopped.
				if errors.IsFatal(err) {
					result.Uploaded++
					result.Results = append(result.Results, res)
					return result, err
				}
				logging.Ctx(ctx).Warn().Err(err).Str("file", file).Msg("Sync after upload failed")
			}

			result.Results = append(result.Results, res)
			if res.Skipped() {
				result.Skipped++
			} else {
				result.Uploaded++
			}
		}

		logging.Ctx(ctx).Info().
			Int("total", result.Total).
			Int("uploaded", result.Uploaded).
			Int("skipped", result.Skipped).
			Int("failed", result.Failed).
			Msg("Directory upload completed")
		return result, nil
	})
}

// findPDFs walks dir recursively and returns every .pdf file in lexical order.
func findPDFs(dir string) ([]string, error) {
	var files []string
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsRegular() && isPDF(path) {
				files = append(files, path)
			}
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			logging.Warn().Err(err).Str("path", path).Msg("Skipping unreadable path")
			return godirwalk.SkipNode
		},
	})
	if err != nil {
		return nil, errors.WrapIO("walk", dir, err)
	}
	return files, nil
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// validatePDF rejects files the PDF reader cannot open or that have no pages.
func validatePDF(path string) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return errors.WrapIO("open", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.WrapIO("stat", path, err)
	}

	// The reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewParseError("pdf", path, fmt.Sprint(r), nil)
		}
	}()

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return errors.WrapParse("pdf", path, err)
	}
	if reader.NumPage() == 0 {
		return errors.NewParseError("pdf", path, "document has no pages", nil)
	}
	return nil
}
