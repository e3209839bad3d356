// Package ragflowtest provides an in-memory RAGFlow server for tests.
//
// The server speaks the document endpoints used by kbmirror with the same
// JSON envelopes as a real instance, so tests can drive the real client:
//
//	srv := ragflowtest.NewServer(t, "token")
//	srv.AddDocument("kb", "doc-1", "report.pdf", []byte("%PDF-1.4 ..."))
//	remote, err := ragflow.New(ragflow.DefaultConfig(srv.URL, "token"))
package ragflowtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentstation/kbmirror/pkg/constants"
)

// Document is a document held by the fake server.
type Document struct {
	ID         string
	KBID       string
	Name       string
	Content    []byte
	UpdateDate string
	Status     string  // "0" pending, "1" complete, "-1" failed
	Progress   float64 // [0,1]
	Run        string  // "0".."3"
}

// Server is a fake RAGFlow instance backed by httptest.Server.
type Server struct {
	URL string

	token string
	srv   *httptest.Server

	mu       sync.Mutex
	docs     []*Document
	nextID   int
	requests map[string]int
	runs     [][]string
	failRm   map[string]string
}

// NewServer starts a server that accepts token as the raw Authorization
// value. It is closed when the test ends.
func NewServer(t testing.TB, token string) *Server {
	t.Helper()

	s := &Server{
		token:    token,
		requests: make(map[string]int),
		failRm:   make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/document/list", s.handleList)
	mux.HandleFunc("GET /v1/document/get/{id}", s.handleGet)
	mux.HandleFunc("POST /v1/document/upload", s.handleUpload)
	mux.HandleFunc("POST /v1/document/rm", s.handleRemove)
	mux.HandleFunc("POST /v1/document/run", s.handleRun)

	s.srv = httptest.NewServer(s.authorize(mux))
	s.URL = s.srv.URL
	t.Cleanup(s.srv.Close)
	return s
}

// AddDocument stores a complete, parsed document in kbID.
func (s *Server) AddDocument(kbID, id, name string, content []byte) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := &Document{
		ID:         id,
		KBID:       kbID,
		Name:       name,
		Content:    content,
		UpdateDate: "2024-01-01 10:00:00",
		Status:     "1",
		Progress:   1,
		Run:        "3",
	}
	s.docs = append(s.docs, d)
	return d
}

// Update applies fn to document id under the server lock.
func (s *Server) Update(id string, fn func(*Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.docs {
		if d.ID == id {
			fn(d)
		}
	}
}

// FailDelete makes deleting id answer with an application error.
func (s *Server) FailDelete(id, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRm[id] = message
}

// Documents returns the ids held for kbID in insertion order.
func (s *Server) Documents(kbID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, d := range s.docs {
		if d.KBID == kbID {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// Requests returns how many requests reached the endpoint path prefix.
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// Runs returns the id batches received by the run endpoint.
func (s *Server) Runs() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.runs...)
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		path := r.URL.Path
		if strings.HasPrefix(path, "/v1/document/get/") {
			path = "/v1/document/get/"
		}
		s.requests[path]++
		s.mu.Unlock()

		if r.Header.Get("Authorization") != s.token {
			// RAGFlow rejects bad tokens inside a 200 envelope.
			writeEnvelope(w, constants.CodeUnauthorized, "Authentication error: API key is invalid!", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	kbID := r.URL.Query().Get("kb_id")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page < 1 || size < 1 {
		writeEnvelope(w, 102, "bad paging", nil)
		return
	}

	s.mu.Lock()
	var all []map[string]any
	for _, d := range s.docs {
		if d.KBID == kbID {
			all = append(all, wire(d))
		}
	}
	s.mu.Unlock()

	start := min((page-1)*size, len(all))
	end := min(start+size, len(all))
	writeEnvelope(w, constants.CodeSuccess, "success", map[string]any{
		"docs":  all[start:end],
		"total": len(all),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	var content []byte
	found := false
	for _, d := range s.docs {
		if d.ID == id {
			content, found = d.Content, true
		}
	}
	s.mu.Unlock()

	if !found {
		writeEnvelope(w, 102, "Document not found!", nil)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	_, _ = w.Write(content)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeEnvelope(w, 101, err.Error(), nil)
		return
	}
	kbID := r.FormValue("kb_id")
	file, header, err := r.FormFile("file")
	if err != nil {
		writeEnvelope(w, 101, "No file part!", nil)
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		writeEnvelope(w, 101, err.Error(), nil)
		return
	}

	s.mu.Lock()
	s.nextID++
	s.docs = append(s.docs, &Document{
		ID:         fmt.Sprintf("uploaded-%d", s.nextID),
		KBID:       kbID,
		Name:       header.Filename,
		Content:    content,
		UpdateDate: time.Now().UTC().Format("2006-01-02 15:04:05"),
		Status:     "1",
		Run:        "0",
	})
	s.mu.Unlock()

	writeEnvelope(w, constants.CodeUploadSuccess, "success", true)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocID []string `json:"doc_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.DocID) != 1 {
		writeEnvelope(w, 101, "bad request", nil)
		return
	}
	id := req.DocID[0]

	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := s.failRm[id]; ok {
		writeEnvelope(w, 102, msg, nil)
		return
	}
	for i, d := range s.docs {
		if d.ID == id {
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			writeEnvelope(w, constants.CodeSuccess, "success", true)
			return
		}
	}
	writeEnvelope(w, 102, "Document not found!", nil)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocIDs []string `json:"doc_ids"`
		Run    int      `json:"run"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, 101, "bad request", nil)
		return
	}

	s.mu.Lock()
	s.runs = append(s.runs, req.DocIDs)
	for _, d := range s.docs {
		for _, id := range req.DocIDs {
			if d.ID == id && req.Run == 1 {
				d.Run = "1"
			}
		}
	}
	s.mu.Unlock()

	writeEnvelope(w, constants.CodeSuccess, "success", true)
}

// wire renders d the way RAGFlow lists documents: status and run as
// strings, dates as formatted strings.
func wire(d *Document) map[string]any {
	return map[string]any{
		"id":           d.ID,
		"kb_id":        d.KBID,
		"name":         d.Name,
		"create_date":  d.UpdateDate,
		"update_date":  d.UpdateDate,
		"status":       d.Status,
		"progress":     d.Progress,
		"progress_msg": "",
		"size":         len(d.Content),
		"source_type":  "local",
		"chunk_num":    0,
		"run":          d.Run,
	}
}

func writeEnvelope(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"message": message,
		"data":    data,
	})
}
