package ragflow

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/agentstation/kbmirror/pkg/documents"
)

// envelope is the JSON wrapper around every RAGFlow API answer.
type envelope struct {
	Code    flexInt         `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// dataTrue reports whether the envelope data is the JSON literal true.
func (e envelope) dataTrue() bool {
	var ok bool
	return json.Unmarshal(e.Data, &ok) == nil && ok
}

var envelopeKeys = map[string]bool{"code": true, "message": true, "data": true}

// errorEnvelope reports whether body is an error answer rather than file
// content: an object with a code, no keys besides code, message and data,
// and data missing, null or false.
func errorEnvelope(body []byte) (envelope, bool) {
	var fields map[string]json.RawMessage
	if json.Unmarshal(body, &fields) != nil {
		return envelope{}, false
	}
	if _, ok := fields["code"]; !ok {
		return envelope{}, false
	}
	for key := range fields {
		if !envelopeKeys[key] {
			return envelope{}, false
		}
	}
	if data, ok := fields["data"]; ok {
		switch string(bytes.TrimSpace(data)) {
		case "null", "false":
		default:
			return envelope{}, false
		}
	}
	var env envelope
	if json.Unmarshal(body, &env) != nil {
		return envelope{}, false
	}
	return env, true
}

type listData struct {
	Docs  []wireDocument `json:"docs"`
	Total int            `json:"total"`
}

type wireDocument struct {
	ID          string     `json:"id"`
	KBID        string     `json:"kb_id"`
	Name        string     `json:"name"`
	CreateDate  flexString `json:"create_date"`
	UpdateDate  flexString `json:"update_date"`
	Status      flexString `json:"status"`
	ProgressMsg string     `json:"progress_msg"`
	Progress    float64    `json:"progress"`
	Size        int64      `json:"size"`
	SourceType  string     `json:"source_type"`
	ChunkNum    int        `json:"chunk_num"`
	Run         flexString `json:"run"`
}

func (w wireDocument) document() documents.RemoteDocument {
	return documents.RemoteDocument{
		ID:          w.ID,
		KBID:        w.KBID,
		Name:        w.Name,
		CreateDate:  string(w.CreateDate),
		UpdateDate:  string(w.UpdateDate),
		Status:      documents.ParseStatus(string(w.Status)),
		ProgressMsg: w.ProgressMsg,
		Progress:    w.Progress,
		Size:        w.Size,
		SourceType:  w.SourceType,
		ChunkNum:    w.ChunkNum,
		Run:         documents.ParseRunState(string(w.Run)),
	}
}

// flexString accepts a JSON string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(string(s))
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type removeRequest struct {
	DocID []string `json:"doc_id"`
}

type runRequest struct {
	DocIDs []string `json:"doc_ids"`
	Run    int      `json:"run"`
}
