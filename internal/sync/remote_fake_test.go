package sync

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pilehq/pilebox/internal/pilesdk"
	"github.com/pilehq/pilebox/internal/utils"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory stand-in for the Pile cloud API: a posts
// table per collection, a content-addressed blob store and a ticking
// server clock so update times are strictly ordered.
type fakeRemote struct {
	mu          sync.Mutex
	clock       time.Time
	collections map[string]*pilesdk.Collection
	posts       map[string]map[string]*pilesdk.RemotePost
	blobs       map[string][]byte

	// optional posts-table columns this deployment carries
	contentMD bool
	userID    bool
	etag      bool

	upserts     int
	blobPuts    int
	lastPayload map[string]any

	srv *httptest.Server
}

func newFakeRemote(t *testing.T) *fakeRemote {
	f := &fakeRemote{
		clock:       time.Now().UTC().Truncate(time.Second),
		collections: make(map[string]*pilesdk.Collection),
		posts:       make(map[string]map[string]*pilesdk.RemotePost),
		blobs:       make(map[string][]byte),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/collections", f.handleCreateCollection)
	mux.HandleFunc("GET /api/v1/collections/{id}", f.handleGetCollection)
	mux.HandleFunc("POST /api/v1/posts/upsert", f.handleUpsert)
	mux.HandleFunc("GET /api/v1/posts", f.handleList)
	mux.HandleFunc("POST /api/v1/posts/delete", f.handleDelete)
	mux.HandleFunc("HEAD /api/v1/blob/{hash}", f.handleBlobHead)
	mux.HandleFunc("PUT /api/v1/blob/{hash}", f.handleBlobPut)
	mux.HandleFunc("POST /api/v1/blob/urls", f.handleBlobURLs)
	mux.HandleFunc("GET /signed/{hash}", f.handleBlobSigned)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// tick advances the server clock by one second and returns it.
func (f *fakeRemote) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeRemote) columnKnown(name string) bool {
	switch name {
	case pilesdk.ColumnID, pilesdk.ColumnTitle, pilesdk.ColumnContent,
		pilesdk.ColumnTags, pilesdk.ColumnDeleted,
		pilesdk.ColumnCreatedAt, pilesdk.ColumnUpdatedAt, "attachments":
		return true
	case pilesdk.ColumnContentMD:
		return f.contentMD
	case pilesdk.ColumnUserID:
		return f.userID
	case pilesdk.ColumnEtag:
		return f.etag
	}
	return false
}

// seedCollection registers a collection without going through the API.
func (f *fakeRemote) seedCollection(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	f.collections[id] = &pilesdk.Collection{ID: id, Name: name, CreatedAt: f.tick()}
	f.posts[id] = make(map[string]*pilesdk.RemotePost)
	return id
}

// seedPost drops a row straight into a collection with a fresh update
// time, as if another client had pushed it.
func (f *fakeRemote) seedPost(collectionID string, post *pilesdk.RemotePost) *pilesdk.RemotePost {
	f.mu.Lock()
	defer f.mu.Unlock()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = f.tick()
	}
	post.UpdatedAt = f.tick()
	f.posts[collectionID][post.ID] = post
	return post
}

// seedDelete tombstones a row in place, as if another client deleted it.
func (f *fakeRemote) seedDelete(collectionID, docID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.posts[collectionID][docID]
	row.Deleted = true
	row.UpdatedAt = f.tick()
}

// seedBlob stores blob bytes under their content hash.
func (f *fakeRemote) seedBlob(data []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash := utils.SHA256Hex(data)
	f.blobs[hash] = data
	return hash
}

func (f *fakeRemote) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts
}

func (f *fakeRemote) blobPutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blobPuts
}

func (f *fakeRemote) lastUpsertPayload() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPayload
}

func (f *fakeRemote) row(collectionID, docID string) *pilesdk.RemotePost {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts[collectionID][docID]
}

func writeFakeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeFakeError(w http.ResponseWriter, status int, code, message string) {
	writeFakeJSON(w, status, map[string]string{"code": code, "error": message})
}

func (f *fakeRemote) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var params pilesdk.CreateCollectionParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeFakeError(w, http.StatusBadRequest, pilesdk.CodeInvalidRequest, err.Error())
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	col := &pilesdk.Collection{ID: uuid.NewString(), Name: params.Name, CreatedAt: f.tick()}
	f.collections[col.ID] = col
	f.posts[col.ID] = make(map[string]*pilesdk.RemotePost)
	writeFakeJSON(w, http.StatusOK, col)
}

func (f *fakeRemote) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	col, ok := f.collections[r.PathValue("id")]
	if !ok {
		writeFakeError(w, http.StatusNotFound, pilesdk.CodeCollectionNotFound, "no such collection")
		return
	}
	writeFakeJSON(w, http.StatusOK, col)
}

func (f *fakeRemote) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var params pilesdk.UpsertPostParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeFakeError(w, http.StatusBadRequest, pilesdk.CodeInvalidRequest, err.Error())
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	f.lastPayload = params.Post

	for key := range params.Post {
		if !f.columnKnown(key) {
			writeFakeError(w, http.StatusBadRequest, pilesdk.CodeSchemaUnknownColumn, "unknown column "+key)
			return
		}
	}

	rows, ok := f.posts[params.CollectionID]
	if !ok {
		writeFakeError(w, http.StatusNotFound, pilesdk.CodeCollectionNotFound, "no such collection")
		return
	}
	id, _ := params.Post[pilesdk.ColumnID].(string)
	if id == "" {
		writeFakeError(w, http.StatusBadRequest, pilesdk.CodeInvalidRequest, "post id missing")
		return
	}

	row := rows[id]
	if row == nil {
		row = &pilesdk.RemotePost{ID: id, CreatedAt: f.tick()}
		rows[id] = row
	}
	if v, ok := params.Post[pilesdk.ColumnTitle].(string); ok {
		row.Title = v
	}
	if v, ok := params.Post[pilesdk.ColumnContent].(string); ok {
		row.Content = v
	}
	if v, ok := params.Post[pilesdk.ColumnContentMD].(string); ok {
		row.ContentMD = v
	}
	if v, ok := params.Post[pilesdk.ColumnUserID].(string); ok {
		row.UserID = v
	}
	if v, ok := params.Post[pilesdk.ColumnEtag].(string); ok {
		row.Etag = v
	}
	if v, ok := params.Post[pilesdk.ColumnCreatedAt].(string); ok {
		if at, err := time.Parse(time.RFC3339Nano, v); err == nil {
			row.CreatedAt = at
		}
	}
	row.Tags = decodeVia[[]string](params.Post[pilesdk.ColumnTags])
	row.Attachments = decodeVia[[]pilesdk.AttachmentRef](params.Post["attachments"])
	row.Deleted = false
	row.UpdatedAt = f.tick()

	writeFakeJSON(w, http.StatusOK, &pilesdk.UpsertPostResponse{Post: row})
}

// decodeVia converts a decoded-as-any JSON value into a concrete type by
// round-tripping it. Nil or mismatched input yields the zero value.
func decodeVia[T any](v any) T {
	var out T
	if v == nil {
		return out
	}
	data, err := json.Marshal(v)
	if err != nil {
		return out
	}
	json.Unmarshal(data, &out)
	return out
}

func (f *fakeRemote) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f.mu.Lock()
	defer f.mu.Unlock()

	if sel := q.Get("select"); sel != "" {
		for _, col := range strings.Split(sel, ",") {
			if !f.columnKnown(col) {
				writeFakeError(w, http.StatusBadRequest, pilesdk.CodeSchemaUnknownColumn, "unknown column "+col)
				return
			}
		}
	}

	rows, ok := f.posts[q.Get("collection_id")]
	if !ok {
		writeFakeError(w, http.StatusNotFound, pilesdk.CodeCollectionNotFound, "no such collection")
		return
	}

	var after time.Time
	if ua := q.Get("updated_after"); ua != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ua)
		if err != nil {
			writeFakeError(w, http.StatusBadRequest, pilesdk.CodeInvalidRequest, "bad updated_after")
			return
		}
		after = parsed
	}

	matched := make([]*pilesdk.RemotePost, 0, len(rows))
	for _, row := range rows {
		if row.UpdatedAt.After(after) {
			matched = append(matched, row)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].UpdatedAt.Before(matched[j].UpdatedAt) })

	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 && n < len(matched) {
			matched = matched[:n]
		}
	}

	writeFakeJSON(w, http.StatusOK, &pilesdk.ListPostsResponse{Posts: matched, AsOf: f.clock})
}

func (f *fakeRemote) handleDelete(w http.ResponseWriter, r *http.Request) {
	var params pilesdk.DeletePostParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeFakeError(w, http.StatusBadRequest, pilesdk.CodeInvalidRequest, err.Error())
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.posts[params.CollectionID]
	row, ok := rows[params.ID]
	if !ok {
		writeFakeError(w, http.StatusNotFound, pilesdk.CodePostNotFound, "no such post")
		return
	}
	row.Deleted = true
	row.UpdatedAt = f.tick()
	writeFakeJSON(w, http.StatusOK, &pilesdk.DeletePostResponse{ID: row.ID, Deleted: true, UpdatedAt: row.UpdatedAt})
}

func (f *fakeRemote) handleBlobHead(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blobs[r.PathValue("hash")]; !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (f *fakeRemote) handleBlobPut(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeFakeError(w, http.StatusBadRequest, pilesdk.CodeBlobPutFailed, err.Error())
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeFakeError(w, http.StatusBadRequest, pilesdk.CodeBlobPutFailed, err.Error())
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeFakeError(w, http.StatusBadRequest, pilesdk.CodeBlobPutFailed, err.Error())
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	hash := r.PathValue("hash")
	f.blobPuts++
	f.blobs[hash] = data
	writeFakeJSON(w, http.StatusOK, &pilesdk.BlobUploadResponse{Hash: hash, Size: int64(len(data))})
}

func (f *fakeRemote) handleBlobURLs(w http.ResponseWriter, r *http.Request) {
	var params pilesdk.BlobURLsParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeFakeError(w, http.StatusBadRequest, pilesdk.CodeInvalidRequest, err.Error())
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	resp := &pilesdk.BlobURLsResponse{}
	for _, hash := range params.Hashes {
		if _, ok := f.blobs[hash]; !ok {
			resp.Errors = append(resp.Errors, &pilesdk.BlobError{
				APIError: *pilesdk.NewAPIError(pilesdk.CodeBlobNotFound, "no such blob"),
				Hash:     hash,
			})
			continue
		}
		resp.URLs = append(resp.URLs, &pilesdk.BlobURL{Hash: hash, URL: f.srv.URL + "/signed/" + hash})
	}
	writeFakeJSON(w, http.StatusOK, resp)
}

func (f *fakeRemote) handleBlobSigned(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[r.PathValue("hash")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Write(data)
}

// ===================================================================================================

func signEngineToken(t *testing.T, subject string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   subject,
		"email": subject + "@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func newTestSDK(t *testing.T, f *fakeRemote) *pilesdk.Client {
	t.Helper()
	sdk, err := pilesdk.New(&pilesdk.Config{
		BaseURL:     f.srv.URL,
		AccessToken: signEngineToken(t, "user-1"),
	})
	require.NoError(t, err)
	return sdk
}

func newTestEngine(t *testing.T, sdk *pilesdk.Client) *SyncEngine {
	t.Helper()
	pile, err := NewPile(t.TempDir())
	require.NoError(t, err)

	se, err := NewSyncEngine(pile, sdk)
	require.NoError(t, err)
	t.Cleanup(func() { se.Close() })
	return se
}

// writeDoc writes a document into the pile the way an editor would.
func writeDoc(t *testing.T, se *SyncEngine, relPath string, pf *PostFile) {
	t.Helper()
	require.NoError(t, WritePostFile(se.pile.AbsPath(relPath), pf))
}
