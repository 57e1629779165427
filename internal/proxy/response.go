package proxy

import (
	"encoding/json"
	"net/http"

	"github.com/sheetwise/gateway/internal/util"
)

// storedResponse is the serialized form a downstream response takes in
// the cache. Only what is needed to replay the response is kept.
type storedResponse struct {
	StatusCode int                 `json:"status_code"`
	Header     map[string][]string `json:"header"`
	Body       []byte              `json:"body"`
}

// hopByHopHeaders are never forwarded or cached.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func newStoredResponse(statusCode int, header http.Header, body []byte) *storedResponse {
	kept := make(map[string][]string, len(header))
	for name, values := range header {
		kept[name] = append([]string(nil), values...)
	}
	for _, name := range hopByHopHeaders {
		delete(kept, http.CanonicalHeaderKey(name))
	}
	return &storedResponse{
		StatusCode: statusCode,
		Header:     kept,
		Body:       body,
	}
}

func (r *storedResponse) marshal() ([]byte, error) {
	return json.Marshal(r)
}

func unmarshalStoredResponse(data []byte) (*storedResponse, error) {
	var r storedResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// write replays the stored response onto w, tagging it with the cache
// disposition.
func (r *storedResponse) write(w http.ResponseWriter, cacheStatus string) {
	for name, values := range r.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	if cacheStatus != "" {
		w.Header().Set(util.HeaderCache, cacheStatus)
	}
	w.WriteHeader(r.StatusCode)
	_, _ = w.Write(r.Body)
}
